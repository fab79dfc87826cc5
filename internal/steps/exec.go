package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ExecDecompiler runs an external decompiler command. Occurrences of
// {input}, {output} and {libraries} in Args are substituted per invocation;
// {libraries} expands to the library paths joined with the platform's list
// separator.
type ExecDecompiler struct {
	Command string
	Args    []string
}

func (d *ExecDecompiler) Decompile(ctx context.Context, src string, libraries []string, dest string) error {
	args := expandArgs(d.Args, map[string]string{
		"{input}":     src,
		"{output}":    dest,
		"{libraries}": strings.Join(libraries, string(os.PathListSeparator)),
	})
	return runTool(ctx, d.Command, args)
}

// ExecRemapper runs an external remapper command. Occurrences of {input},
// {output} and {mappings} in Args are substituted per invocation; the
// mappings stream is spooled to a temp file whose path fills {mappings}.
type ExecRemapper struct {
	Command string
	Args    []string
}

func (r *ExecRemapper) Remap(ctx context.Context, src, dest string, mappings io.Reader) error {
	tmp, err := os.CreateTemp("", "mappings-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if mappings != nil {
		if _, err := io.Copy(tmp, mappings); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	args := expandArgs(r.Args, map[string]string{
		"{input}":    src,
		"{output}":   dest,
		"{mappings}": tmp.Name(),
	})
	return runTool(ctx, r.Command, args)
}

func expandArgs(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, k, v)
		}
		out[i] = a
	}
	return out
}

func runTool(ctx context.Context, command string, args []string) error {
	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", command, err, msg)
		}
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}
