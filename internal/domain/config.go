package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	DataDir string       `json:"data_dir" yaml:"data_dir"`
	Logger  *slog.Logger `json:"-" yaml:"-"`

	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	Orchestration OrchestrationConfig `json:"orchestration" yaml:"orchestration"`
	Events        EventsConfig        `json:"events" yaml:"events"`
}

type StorageEngine string

const (
	StorageBadger   StorageEngine = "badger"
	StoragePostgres StorageEngine = "postgres"
	StorageMemory   StorageEngine = "memory"
)

type StorageConfig struct {
	Engine      StorageEngine `json:"engine" yaml:"engine"`
	PostgresDSN string        `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	SyncWrites  bool          `json:"sync_writes" yaml:"sync_writes"`
}

type OrchestrationConfig struct {
	QueueName string `json:"queue_name" yaml:"queue_name"`

	// AggregateRetries bounds the transparent retry of the state
	// aggregation read-modify-write when it loses a version race.
	AggregateRetries int `json:"aggregate_retries" yaml:"aggregate_retries"`

	// SweepInterval paces the background pass that re-enqueues attempts
	// committed while the queue was unavailable.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

type EventsConfig struct {
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`
}
