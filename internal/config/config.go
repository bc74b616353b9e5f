// Package config loads the safe-event generator configuration.
//
// A config file names the directory holding event schema documents and the
// directory generated Go files are written to. Both are resolved relative to
// the config file. JSON (with comments) and YAML are accepted.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when none is given
const DefaultFile = "safe-event.config.json"

// DefaultPackage is the package name of generated files when the config sets none
const DefaultPackage = "events"

var (
	// ErrConfigNotFound is returned by Load when the config file does not exist
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidConfig is returned by Load when required fields are missing
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the generator configuration
type Config struct {
	// SchemaDir holds the event schema documents
	SchemaDir string `json:"schemaDir" yaml:"schemaDir"`
	// OutputDir receives one generated file per schema document
	OutputDir string `json:"outputDir" yaml:"outputDir"`
	// Package is the package clause of generated files
	Package string `json:"package,omitempty" yaml:"package,omitempty"`
	// TypePrefix is prepended to every generated type name
	TypePrefix string `json:"typePrefix,omitempty" yaml:"typePrefix,omitempty"`
	// TypeSuffix is appended to every generated type name
	TypeSuffix string `json:"typeSuffix,omitempty" yaml:"typeSuffix,omitempty"`

	// Path is the file the config was loaded from
	Path string `json:"-" yaml:"-"`
}

// Default returns the config written by WriteDefault
func Default() Config {
	return Config{
		SchemaDir: "./events",
		OutputDir: "./internal/events",
		Package:   DefaultPackage,
	}
}

// Load reads the config at path and resolves SchemaDir and OutputDir
// relative to the directory containing it.
func Load(fs afero.Fs, path string) (*Config, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := Unmarshal(path, data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if c.Package == "" {
		c.Package = DefaultPackage
	}

	dir := filepath.Dir(path)
	c.SchemaDir = resolve(dir, c.SchemaDir)
	c.OutputDir = resolve(dir, c.OutputDir)
	c.Path = path
	return &c, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.SchemaDir == "" {
		errs = append(errs, errors.New("schemaDir is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("outputDir is required"))
	}
	return errors.Join(errs...)
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// Unmarshal decodes data into v, choosing YAML or JSON by the extension of
// path. JSON may contain comments and trailing commas.
func Unmarshal(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(jsonc.ToJSON(data), v)
	}
}

// WriteDefault writes the default config to path unless a file already
// exists there. Returns false when the file was left untouched.
func WriteDefault(fs afero.Fs, path string) (bool, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(Default())
	default:
		data, err = json.MarshalIndent(Default(), "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return false, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
