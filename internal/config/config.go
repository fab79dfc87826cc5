// Package config loads and validates the run configuration.
//
// Configuration is a YAML file validated against an embedded CUE schema
// before anything touches it, so type and range errors surface at startup
// with field-level positions rather than as mid-run surprises. The loaded
// Config is a value type: copy it freely, nothing mutates it.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/unearth-dev/unearth/internal/storage"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError reports a configuration file that failed schema
// validation or could not be read.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Path, e.Reason)
}

// Network bounds transfer concurrency and retry behavior.
type Network struct {
	MaxConcurrent   int `yaml:"max_concurrent"`
	MaxPerOrigin    int `yaml:"max_per_origin"`
	RetryAttempts   int `yaml:"retry_attempts"`
	RetryIntervalMS int `yaml:"retry_interval_ms"`
}

// RetryInterval returns the backoff base interval.
func (n Network) RetryInterval() time.Duration {
	return time.Duration(n.RetryIntervalMS) * time.Millisecond
}

// FlavorSet names the provider strategy selected per data kind. Empty means
// the identity strategy.
type FlavorSet struct {
	Mappings   string `yaml:"mappings"`
	Signatures string `yaml:"signatures"`
	Unpick     string `yaml:"unpick"`
	Nests      string `yaml:"nests"`
}

// Storage converts the flavor set to the store's representation.
func (f FlavorSet) Storage() storage.Flavors {
	return storage.Flavors{
		Mappings:   f.Mappings,
		Signatures: f.Signatures,
		Unpick:     f.Unpick,
		Nests:      f.Nests,
	}
}

// Tool is an external command invocation template.
type Tool struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Configured reports whether the tool was set at all.
func (t Tool) Configured() bool { return t.Command != "" }

// Tools names the external engines the transformation steps delegate to.
type Tools struct {
	Remapper   Tool `yaml:"remapper"`
	Decompiler Tool `yaml:"decompiler"`
}

// ProviderSpec configures one remote data provider.
type ProviderSpec struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	MetaURL   string `yaml:"meta_url"`
	MavenBase string `yaml:"maven_base"`
	InnerPath string `yaml:"inner_path"`
	Ext       string `yaml:"ext"`
}

// Config is the validated run configuration.
type Config struct {
	StoreRoot string `yaml:"store_root"`
	Ledger    string `yaml:"ledger"`

	// Threads caps cross-release parallelism. Zero means one release at a
	// time.
	Threads int `yaml:"threads"`

	Network   Network        `yaml:"network"`
	Flavors   FlavorSet      `yaml:"flavors"`
	Tools     Tools          `yaml:"tools"`
	Providers []ProviderSpec `yaml:"providers"`
}

// Default returns the configuration used when a field is left unset.
func Default() Config {
	return Config{
		Threads: 1,
		Network: Network{
			MaxConcurrent:   8,
			MaxPerOrigin:    4,
			RetryAttempts:   3,
			RetryIntervalMS: 2000,
		},
	}
}

// Load reads, schema-validates, and decodes the configuration at path.
// Unset fields fall back to Default values.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ValidationError{Path: path, Reason: err.Error()}
	}
	return Parse(path, raw)
}

// Parse validates and decodes raw YAML configuration. The path is used only
// for error reporting.
func Parse(path string, raw []byte) (Config, error) {
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return Config{}, &ValidationError{Path: path, Reason: fmt.Sprintf("parsing YAML: %v", err)}
	}
	if generic == nil {
		generic = map[string]any{}
	}
	if err := validate(generic); err != nil {
		return Config{}, &ValidationError{Path: path, Reason: err.Error()}
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, &ValidationError{Path: path, Reason: fmt.Sprintf("decoding: %v", err)}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// validate unifies the decoded document with the embedded schema.
func validate(doc map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(doc))
	if err := value.Err(); err != nil {
		return err
	}
	// Concrete validation makes a missing required field (store_root) an
	// error instead of an unresolved value.
	return value.Validate(cue.Concrete(true))
}

// applyDefaults backfills zero values that YAML decoding may have written
// over the Default baseline (an explicit empty section decodes to zeros).
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Threads < 1 {
		cfg.Threads = def.Threads
	}
	if cfg.Network.MaxConcurrent < 1 {
		cfg.Network.MaxConcurrent = def.Network.MaxConcurrent
	}
	if cfg.Network.MaxPerOrigin < 1 {
		cfg.Network.MaxPerOrigin = def.Network.MaxPerOrigin
	}
	if cfg.Network.RetryAttempts < 1 {
		cfg.Network.RetryAttempts = def.Network.RetryAttempts
	}
}
