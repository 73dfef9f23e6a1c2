package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
)

// Config defines what to run and what to watch.
//
// Example JSON:
//
//	{
//	  "command": ["graphd", "-config", "graphd.json"],
//	  "watch": ["langgraph.json", "agents"],
//	  "debounce": "250ms"
//	}
type Config struct {
	// Command is the fixed command line relaunched on every change
	Command []string `json:"command"`

	// Dir is the working directory for Command (empty = current)
	Dir string `json:"dir,omitempty"`

	// Watch lists files and directories; directories are watched recursively
	Watch []string `json:"watch"`

	// Debounce collapses bursts of filesystem events into one restart
	Debounce config.Duration `json:"debounce"`

	// RestartTimeout is how long a restart waits after SIGTERM before SIGKILL
	RestartTimeout config.Duration `json:"restart_timeout"`

	// ShutdownTimeout is how long the final stop waits before SIGKILL
	ShutdownTimeout config.Duration `json:"shutdown_timeout"`
}

// DefaultConfig returns defaults for watching a graph server deployment.
//
// Default values:
//   - Watch: langgraph.json, agents
//   - Debounce: 250ms
//   - RestartTimeout: 10s
//   - ShutdownTimeout: 5s
func DefaultConfig() Config {
	return Config{
		Watch:           []string{"langgraph.json", "agents"},
		Debounce:        config.Duration(250 * time.Millisecond),
		RestartTimeout:  config.Duration(10 * time.Second),
		ShutdownTimeout: config.Duration(5 * time.Second),
	}
}

func (c *Config) Merge(source *Config) {
	if len(source.Command) > 0 {
		c.Command = source.Command
	}
	if source.Dir != "" {
		c.Dir = source.Dir
	}
	if len(source.Watch) > 0 {
		c.Watch = source.Watch
	}
	if source.Debounce > 0 {
		c.Debounce = source.Debounce
	}
	if source.RestartTimeout > 0 {
		c.RestartTimeout = source.RestartTimeout
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
