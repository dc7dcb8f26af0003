package scheduler

import "time"

// Config tunes the background sweep loop.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	return c
}
