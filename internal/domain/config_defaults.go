package domain

import (
	"time"

	"dario.cat/mergo"
)

func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./data",
		Storage:       DefaultStorageConfig(),
		Orchestration: DefaultOrchestrationConfig(),
		Events:        DefaultEventsConfig(),
	}
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Engine:     StorageBadger,
		SyncWrites: true,
	}
}

func DefaultOrchestrationConfig() OrchestrationConfig {
	return OrchestrationConfig{
		QueueName:        "attempts",
		AggregateRetries: 5,
		SweepInterval:    30 * time.Second,
	}
}

func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		BufferSize: 64,
	}
}

// WithDefaults fills every zero-valued field from DefaultConfig and
// returns the merged config. The receiver is not modified.
func (c *Config) WithDefaults() (*Config, error) {
	merged := *c
	if err := mergo.Merge(&merged, *DefaultConfig()); err != nil {
		return nil, err
	}
	return &merged, nil
}
