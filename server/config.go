package server

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
	"github.com/tailored-agentic-units/stategraph/runstore"
)

// Config holds initialization parameters for the graph server.
//
// Example JSON:
//
//	{
//	  "addr": ":2024",
//	  "manifest": "langgraph.json",
//	  "graph": {"observer": "slog", "max_steps": 100, "timeout": "30s"},
//	  "runstore": {"backend": "file", "dir": "/var/lib/stategraph/runs"},
//	  "max_request_bytes": 1048576,
//	  "shutdown_timeout": "10s"
//	}
type Config struct {
	// Addr is the listen address
	Addr string `json:"addr"`

	// Manifest is the path or afs URL of the graph manifest (empty serves
	// every catalog graph under its own name)
	Manifest string `json:"manifest,omitempty"`

	// Graph supplies the run settings shared by every served graph
	Graph config.GraphConfig `json:"graph"`

	// Runstore selects where finished runs are recorded
	Runstore runstore.Config `json:"runstore"`

	// MaxRequestBytes caps the size of a decoded request message
	MaxRequestBytes int64 `json:"max_request_bytes,omitempty"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests
	ShutdownTimeout config.Duration `json:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Addr:            ":2024",
		Manifest:        "langgraph.json",
		Graph:           config.DefaultGraphConfig(""),
		Runstore:        runstore.DefaultConfig(),
		MaxRequestBytes: 1 << 20,
		ShutdownTimeout: config.Duration(10 * time.Second),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.Manifest != "" {
		c.Manifest = source.Manifest
	}
	c.Graph.Merge(&source.Graph)
	c.Runstore.Merge(&source.Runstore)
	if source.MaxRequestBytes > 0 {
		c.MaxRequestBytes = source.MaxRequestBytes
	}
	if source.ShutdownTimeout > 0 {
		c.ShutdownTimeout = source.ShutdownTimeout
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
