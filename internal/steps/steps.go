// Package steps implements the concrete pipeline workers: fetching the raw
// distributions, merging them, materializing optional provider data,
// remapping, and decompiling.
//
// The remapping and decompilation engines themselves are opaque external
// collaborators behind the Remapper and Decompiler interfaces; the workers
// here only own caching, ordering, and artifact bookkeeping around them.
package steps

import (
	"context"
	"io"
	"os"
)

// Remapper rewrites an archive's class files under a mapping set. External
// bytecode-transformation engines implement this; Passthrough serves the
// identity-mapping case.
type Remapper interface {
	// Remap reads the archive at src, applies mappings, and writes the
	// result to dest. dest must be fully written or not written at all.
	Remap(ctx context.Context, src, dest string, mappings io.Reader) error
}

// Decompiler turns an archive of class files into an archive of sources.
// External decompiler engines implement this.
type Decompiler interface {
	// Decompile reads the archive at src with the given library search
	// path and writes a source archive to dest.
	Decompile(ctx context.Context, src string, libraries []string, dest string) error
}

// Passthrough is the identity Remapper: the output is the input, byte for
// byte. Used when the selected mapping strategy contributes no data.
type Passthrough struct{}

func (Passthrough) Remap(_ context.Context, src, dest string, _ io.Reader) error {
	return copyFile(src, dest)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
