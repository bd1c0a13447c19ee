package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds tuning for the licence job queue.
type QueueConfig struct {
	// MaxWorkers is the number of concurrent jobs on the default queue.
	MaxWorkers int

	// MaxAttempts is how many times a failed reconcile is tried.
	MaxAttempts int

	// JobTimeout bounds a single reconcile.
	JobTimeout time.Duration

	// UniquePeriod collapses reconcile requests inserted within the same
	// window into one job.
	UniquePeriod time.Duration
}

// DefaultQueueConfig returns the default configuration.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers:   2, // reconcile touches a single row
		MaxAttempts:  5,
		JobTimeout:   30 * time.Second,
		UniquePeriod: time.Minute,
	}
}

// DevelopmentQueueConfig fails faster.
func DevelopmentQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()
	config.MaxWorkers = 1
	config.MaxAttempts = 2
	config.JobTimeout = 10 * time.Second
	return config
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
