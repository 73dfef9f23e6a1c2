// Package manifest loads the graph deployment descriptor: a langgraph.json
// style document naming the graphs a server exposes and the environment
// file they need.
//
//	{
//	  "graphs": {
//	    "chat": "./agents/routing/agent.py:app",
//	    "echo": "echo"
//	  },
//	  "env": ".env"
//	}
//
// Documents may be JSON or YAML and are read through afs, so any supported
// URL scheme (file://, mem://, cloud storage) works.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoGraphs     = errors.New("manifest declares no graphs")
	ErrUnknownGraph = errors.New("unknown graph")
	ErrInvalidRef   = errors.New("invalid graph reference")
)

// Manifest is a parsed deployment descriptor.
type Manifest struct {
	// Graphs maps exposed names to graph references. A reference is either a
	// catalog name ("routing") or a path whose parent directory names the
	// graph ("./agents/routing/agent.py:app").
	Graphs map[string]string `yaml:"graphs" json:"graphs"`

	// Env is a path to a dotenv file relative to the manifest, or an inline
	// map of variables.
	Env any `yaml:"env,omitempty" json:"env,omitempty"`

	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// URL is where the manifest was loaded from.
	URL string `yaml:"-" json:"-"`
}

// Load reads and parses the manifest at URL.
func Load(ctx context.Context, fs afs.Service, URL string) (*Manifest, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", URL, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", URL, err)
	}
	m.URL = URL
	return m, nil
}

// Parse decodes a JSON or YAML manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Graphs) == 0 {
		return nil, ErrNoGraphs
	}
	for name, ref := range m.Graphs {
		if _, err := ResolveRef(ref); err != nil {
			return nil, fmt.Errorf("graph %s: %w", name, err)
		}
	}
	return &m, nil
}

// Names returns the exposed graph names, sorted.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Graphs))
	for name := range m.Graphs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve maps an exposed graph name to its catalog name.
func (m *Manifest) Resolve(name string) (string, error) {
	ref, ok := m.Graphs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownGraph, name)
	}
	return ResolveRef(ref)
}

// Validate checks that every reference names a graph known to exist.
func (m *Manifest) Validate(exists func(string) bool) error {
	var errs []error
	for _, name := range m.Names() {
		target, err := m.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !exists(target) {
			errs = append(errs, fmt.Errorf("%w: %s -> %s", ErrUnknownGraph, name, target))
		}
	}
	return errors.Join(errs...)
}

// ResolveRef extracts the catalog name from a graph reference.
func ResolveRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, ":"); i >= 0 && !strings.Contains(ref[i:], "/") {
		ref = ref[:i]
	}
	if ref == "" {
		return "", ErrInvalidRef
	}

	p := path.Clean(ref)
	if path.Ext(p) != "" {
		p = path.Dir(p)
	}
	name := path.Base(p)
	if name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return name, nil
}

// LoadEnv returns the variables the manifest's env entry provides. A path
// is read relative to the manifest's own location.
func (m *Manifest) LoadEnv(ctx context.Context, fs afs.Service) (map[string]string, error) {
	switch env := m.Env.(type) {
	case nil:
		return map[string]string{}, nil
	case string:
		location := env
		if url.IsRelative(env) && m.URL != "" {
			parent, _ := url.Split(m.URL, file.Scheme)
			location = url.Join(parent, env)
		}
		data, err := fs.DownloadWithURL(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", location, err)
		}
		return godotenv.Parse(bytes.NewReader(data))
	case map[string]any:
		vars := make(map[string]string, len(env))
		for k, v := range env {
			vars[k] = fmt.Sprint(v)
		}
		return vars, nil
	default:
		return nil, fmt.Errorf("env must be a path or a map, got %T", env)
	}
}

// ApplyEnv sets each variable that is not already present in the process
// environment.
func ApplyEnv(vars map[string]string) error {
	for k, v := range vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}
