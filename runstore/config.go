package runstore

import (
	"fmt"

	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config selects and configures a Store backend.
//
// Example JSON:
//
//	{
//	  "backend": "redis",
//	  "redis_url": "redis://localhost:6379/0",
//	  "ttl": "24h"
//	}
type Config struct {
	// Backend is one of "memory", "file", "redis"
	Backend string `json:"backend"`

	// MaxRecords bounds the memory backend (oldest records are evicted)
	MaxRecords int `json:"max_records,omitempty"`

	// Dir is the afs URL the file backend writes to (file:// paths or mem://)
	Dir string `json:"dir,omitempty"`

	// RedisURL is parsed with redis.ParseURL
	RedisURL string `json:"redis_url,omitempty"`

	// TTL expires redis records (0 = keep forever)
	TTL config.Duration `json:"ttl,omitempty"`

	// Prefix namespaces redis keys
	Prefix string `json:"prefix,omitempty"`
}

// DefaultConfig returns an in-memory store keeping the last 1000 runs.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendMemory,
		MaxRecords: 1000,
		Prefix:     "stategraph",
	}
}

func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.MaxRecords > 0 {
		c.MaxRecords = source.MaxRecords
	}
	if source.Dir != "" {
		c.Dir = source.Dir
	}
	if source.RedisURL != "" {
		c.RedisURL = source.RedisURL
	}
	if source.TTL > 0 {
		c.TTL = source.TTL
	}
	if source.Prefix != "" {
		c.Prefix = source.Prefix
	}
}

// New creates the Store the config selects.
func New(cfg *Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.MaxRecords), nil
	case BackendFile:
		return NewFileStore(cfg.Dir)
	case BackendRedis:
		return NewRedisStore(cfg.RedisURL, cfg.Prefix, cfg.TTL.Std())
	default:
		return nil, fmt.Errorf("unknown runstore backend: %q", cfg.Backend)
	}
}
