package batch

import (
	"time"
)

// Config controls pipeline cadence and per-job deadlines.
type Config struct {
	RunInterval   time.Duration
	ImportTimeout time.Duration
	JobTimeout    time.Duration
	LockTTL       time.Duration
	EnabledJobs   []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Hour,
		ImportTimeout: 30 * time.Minute,
		JobTimeout:    5 * time.Minute,
		LockTTL:       45 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ImportTimeout <= 0 {
		c.ImportTimeout = defaults.ImportTimeout
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
