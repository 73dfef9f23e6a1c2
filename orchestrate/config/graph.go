package config

// GraphConfig defines configuration for building and running a state graph.
//
// The Observer field is a name resolved through the observability registry
// when the graph is built, so the config stays JSON-serializable.
//
// Example JSON:
//
//	{
//	  "name": "routing",
//	  "observer": "slog",
//	  "max_steps": 100,
//	  "timeout": "30s",
//	  "fail_on_unmet_join": true
//	}
type GraphConfig struct {
	// Name identifies the graph in events and run records
	Name string `json:"name"`

	// Observer specifies which observer implementation to use ("noop", "slog", "trace")
	Observer string `json:"observer"`

	// MaxSteps bounds the number of super-steps in a single run
	MaxSteps int `json:"max_steps"`

	// Timeout bounds a single run's wall-clock time (0 = no limit)
	Timeout Duration `json:"timeout"`

	// FailOnUnmetJoin turns a node left permanently blocked by an unmet
	// join into a run failure instead of a diagnostic
	FailOnUnmetJoin bool `json:"fail_on_unmet_join"`
}

// DefaultGraphConfig returns defaults for graph execution.
//
// Default values:
//   - Observer: "slog"
//   - MaxSteps: 1000
//   - Timeout: none
//   - FailOnUnmetJoin: false (unmet joins are reported, not fatal)
func DefaultGraphConfig(name string) GraphConfig {
	return GraphConfig{
		Name:     name,
		Observer: "slog",
		MaxSteps: 1000,
	}
}

func (c *GraphConfig) Merge(source *GraphConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}

	if source.MaxSteps > 0 {
		c.MaxSteps = source.MaxSteps
	}

	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}

	if source.FailOnUnmetJoin {
		c.FailOnUnmetJoin = source.FailOnUnmetJoin
	}
}
