package tasks

import (
	"time"

	"github.com/mrlokans/libreria/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 1
	Workers int

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often to clean up completed tasks. Default: 1h
	CleanupInterval time.Duration

	// SweepGracePeriod protects payloads written moments before their
	// record insert. Default: 1h
	SweepGracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:          1,
		ReleaseAfter:     15 * time.Minute,
		CleanupInterval:  1 * time.Hour,
		SweepGracePeriod: 1 * time.Hour,
	}
}

// ConfigFrom maps the application config, keeping defaults for unset values.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg.Tasks.Workers > 0 {
		c.Workers = cfg.Tasks.Workers
	}
	if cfg.Tasks.ReleaseAfter > 0 {
		c.ReleaseAfter = cfg.Tasks.ReleaseAfter
	}
	if cfg.Tasks.CleanupInterval > 0 {
		c.CleanupInterval = cfg.Tasks.CleanupInterval
	}
	if cfg.Sweep.GracePeriod > 0 {
		c.SweepGracePeriod = cfg.Sweep.GracePeriod
	}
	return c
}
