// Package generator turns event schema documents into Go source: event name
// constants, payload structs and validating decoders built on the payload
// package.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/format"
	"io/fs"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rbaliyan/safe-event/internal/config"
	"github.com/spf13/afero"
)

// SchemaPattern matches schema documents below the schema directory
const SchemaPattern = "**/*.{json,jsonc,yaml,yml}"

// ErrNoSchemas is returned when the schema directory holds no documents
var ErrNoSchemas = errors.New("no schema files found")

// Result describes one generated file
type Result struct {
	Schema string
	Output string
	Events []string
}

// options holds configuration for generator (unexported)
type options struct {
	logger *slog.Logger
	dryRun bool
}

// Option option function for generator configuration
type Option func(*options)

// WithLogger sets a custom logger for the generator
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDryRun renders every file without writing it
func WithDryRun(enabled bool) Option {
	return func(o *options) {
		o.dryRun = enabled
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generator renders the schema documents of a config
type Generator struct {
	fs     afero.Fs
	cfg    *config.Config
	logger *slog.Logger
	dryRun bool
}

// New creates a generator reading and writing through fs
func New(fs afero.Fs, cfg *config.Config, opts ...Option) *Generator {
	o := newOptions(opts...)
	return &Generator{
		fs:     fs,
		cfg:    cfg,
		logger: o.logger.With("component", "generator"),
		dryRun: o.dryRun,
	}
}

// Discover returns the schema documents below the schema directory, sorted.
func (g *Generator) Discover() ([]string, error) {
	root := g.cfg.SchemaDir
	var files []string
	err := afero.Walk(g.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if ok, _ := doublestar.Match(SchemaPattern, filepath.ToSlash(rel)); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSchemas, root)
	}
	slices.Sort(files)
	return files, nil
}

// Parse reads and validates one schema document
func (g *Generator) Parse(path string) (*Document, error) {
	data, err := afero.ReadFile(g.fs, path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := config.Unmarshal(path, data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSchema, path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &doc, nil
}

// Render produces gofmt-ed Go source for doc. source is recorded in the
// generated header.
func (g *Generator) Render(doc *Document, source string) ([]byte, error) {
	domain := doc.DomainName()
	data := fileData{
		Source:      filepath.ToSlash(source),
		Package:     g.cfg.Package,
		Domain:      domain,
		DomainIdent: g.cfg.TypePrefix + exportName(domain) + g.cfg.TypeSuffix,
	}
	for _, name := range slices.Sorted(maps.Keys(doc.Events)) {
		data.Events = append(data.Events, g.event(domain, name, doc.Events[name]))
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", source, err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", source, err)
	}
	return out, nil
}

func (g *Generator) event(domain, name string, def EventDefinition) eventData {
	typeName := g.cfg.TypePrefix + exportName(domain) + exportName(name) + g.cfg.TypeSuffix
	ev := eventData{
		Name:        domain + ":" + name,
		Const:       typeName + "Event",
		Type:        typeName,
		Payload:     typeName + "Payload",
		ShapeVar:    lowerFirst(typeName) + "Shape",
		Description: oneLine(def.Description),
		Required:    def.Schema.Required,
		Closed:      def.Schema.AdditionalProperties != nil && !*def.Schema.AdditionalProperties,
	}
	required := make(map[string]bool, len(def.Schema.Required))
	for _, r := range def.Schema.Required {
		required[r] = true
	}
	for _, prop := range slices.Sorted(maps.Keys(def.Schema.Properties)) {
		p := def.Schema.Properties[prop]
		ev.Fields = append(ev.Fields, fieldData{
			Name:        exportName(prop),
			JSON:        prop,
			Type:        goType(p.Type),
			Kind:        kindExpr(p.Type),
			Required:    required[prop],
			Description: oneLine(p.Description),
		})
	}
	return ev
}

// OutputPath returns the file generated for doc
func (g *Generator) OutputPath(doc *Document) string {
	return filepath.Join(g.cfg.OutputDir, snakeName(doc.DomainName())+"_events.go")
}

// Generate renders every discovered schema document and writes the results.
// Processing stops at the first failing document.
func (g *Generator) Generate(ctx context.Context) ([]Result, error) {
	files, err := g.Discover()
	if err != nil {
		return nil, err
	}

	if !g.dryRun {
		if err := g.fs.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	seen := make(map[string]string, len(files))
	results := make([]Result, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		doc, err := g.Parse(file)
		if err != nil {
			return results, err
		}
		out := g.OutputPath(doc)
		if prev, ok := seen[out]; ok {
			return results, fmt.Errorf("%w: %s and %s both generate %s", ErrInvalidSchema, prev, file, out)
		}
		seen[out] = file

		src, err := g.Render(doc, g.sourceName(file))
		if err != nil {
			return results, err
		}
		if !g.dryRun {
			if err := afero.WriteFile(g.fs, out, src, 0o644); err != nil {
				return results, fmt.Errorf("write %s: %w", out, err)
			}
		}
		g.logger.Debug("generated events", "schema", file, "output", out, "events", len(doc.Events))

		results = append(results, Result{
			Schema: file,
			Output: out,
			Events: slices.Sorted(maps.Keys(doc.Events)),
		})
	}
	return results, nil
}

// sourceName is file relative to the config file, for generated headers
func (g *Generator) sourceName(file string) string {
	if g.cfg.Path != "" {
		if rel, err := filepath.Rel(filepath.Dir(g.cfg.Path), file); err == nil {
			return rel
		}
	}
	return filepath.Base(file)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
