package tools

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed defs/*.json queries/*.sql
var builtinFS embed.FS

// ErrUnknownTool is returned when a requested tool name is not in the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// Catalog is the immutable set of tool specs available to the engine.
// It is built once at startup and safe for concurrent reads.
type Catalog struct {
	specs map[string]*ToolSpec
	order []string
}

// Load builds the catalog from the embedded definitions.
func Load() (*Catalog, error) {
	return LoadFS(builtinFS, "defs", "queries")
}

// LoadFS builds a catalog from an arbitrary filesystem. Every definition
// must parse, compile and resolve its SQL template; a single bad file
// fails the whole load so a broken deploy is caught at startup.
func LoadFS(fsys fs.FS, defsDir, queriesDir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, defsDir)
	if err != nil {
		return nil, fmt.Errorf("read tool definitions: %w", err)
	}

	cat := &Catalog{specs: make(map[string]*ToolSpec)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(defsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		spec := &ToolSpec{}
		if err := json.Unmarshal(raw, spec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		if err := spec.validate(); err != nil {
			return nil, fmt.Errorf("invalid definition %s: %w", entry.Name(), err)
		}
		if _, dup := cat.specs[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", spec.Name)
		}

		queryRaw, err := fs.ReadFile(fsys, path.Join(queriesDir, spec.XQueryFile))
		if err != nil {
			return nil, fmt.Errorf("tool %s: read query %s: %w", spec.Name, spec.XQueryFile, err)
		}
		spec.QueryText = strings.TrimSpace(string(queryRaw))
		if spec.QueryText == "" {
			return nil, fmt.Errorf("tool %s: query %s is empty", spec.Name, spec.XQueryFile)
		}

		if err := spec.compileSchema(); err != nil {
			return nil, err
		}

		cat.specs[spec.Name] = spec
		cat.order = append(cat.order, spec.Name)
	}

	if len(cat.specs) == 0 {
		return nil, fmt.Errorf("no tool definitions found in %s", defsDir)
	}
	sort.Strings(cat.order)
	return cat, nil
}

// Get returns the spec for name, or ErrUnknownTool.
func (c *Catalog) Get(name string) (*ToolSpec, error) {
	spec, ok := c.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return spec, nil
}

// Has reports whether the catalog contains the named tool.
func (c *Catalog) Has(name string) bool {
	_, ok := c.specs[name]
	return ok
}

// Names returns all tool names in stable sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Describe renders every tool in the function-calling wire shape, in
// stable sorted order so transcripts and tests are deterministic.
func (c *Catalog) Describe() []map[string]any {
	out := make([]map[string]any, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.specs[name].ToOpenAIFormat())
	}
	return out
}
