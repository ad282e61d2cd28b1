package config

import "time"

// Config is the root configuration structure for volworker.
type Config struct {
	Log        LogConfig        `description:"Logging configuration" koanf:"log"`
	Volatility VolatilityConfig `description:"Volatility 3 invocation settings" koanf:"volatility"`
	Task       TaskConfig       `description:"Default task options" koanf:"task"`
	Worker     WorkerConfig     `description:"Queue worker configuration" koanf:"worker"`
	Server     ServerConfig     `description:"Health and job API server" koanf:"server"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level (trace, debug, info, warn, error)" koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"omitempty,oneof=json text"`
	File   string `description:"Log file path" koanf:"file"`
}

// VolatilityConfig describes how the vol binary is located and invoked.
type VolatilityConfig struct {
	Binary       string        `description:"Path or name of the vol executable" koanf:"binary" validate:"required"`
	Timeout      time.Duration `description:"Per-plugin execution timeout (0 disables)" koanf:"timeout" validate:"min=0"`
	Parallel     int           `description:"Maximum plugins running at once per image (0 = all)" koanf:"parallel" validate:"min=0"`
	MinVersion   string        `description:"Semver constraint the vol binary must satisfy" koanf:"min_version"`
	CatalogFile  string        `description:"Optional YAML file overriding the plugin catalog" koanf:"catalog_file"`
	ArtifactGlob string        `description:"Glob of plugin artifacts moved into the outputs" koanf:"artifact_glob" validate:"required"`
}

// TaskConfig carries the option defaults applied when a request omits them.
type TaskConfig struct {
	OSGroup      string `description:"Default OS group of plugins to run" koanf:"os_group" validate:"required"`
	OutputFormat string `description:"Default output format: txt | json | md" koanf:"output_format" validate:"oneof=txt json md"`
}

// WorkerConfig holds queue worker settings.
type WorkerConfig struct {
	Queue       string        `description:"Queue backend: memory | redis" koanf:"queue" validate:"oneof=memory redis"`
	Concurrency int           `description:"Number of concurrent task workers" koanf:"concurrency" validate:"min=1"`
	RedisURL    string        `description:"Redis connection URL (falls back to REDIS_URL)" koanf:"redis_url" validate:"required_if=Queue redis"`
	QueueName   string        `description:"Redis list the worker consumes" koanf:"queue_name" validate:"required"`
	KeyPrefix   string        `description:"Prefix for Redis record keys and channels" koanf:"key_prefix"`
	ResultTTL   time.Duration `description:"How long job records are kept" koanf:"result_ttl" validate:"min=0"`
	InboxDir    string        `description:"Directory watched for new memory images" koanf:"inbox_dir"`
	OutputRoot  string        `description:"Root directory for inbox-triggered task outputs" koanf:"output_root"`
	LockTimeout time.Duration `description:"How long a task waits for its output directory lock" koanf:"lock_timeout" validate:"min=0"`
}

// ServerConfig holds the HTTP health and job API configuration.
type ServerConfig struct {
	Enabled      bool          `description:"Serve the HTTP API while the worker runs" koanf:"enabled"`
	Addr         string        `description:"Server listen address" koanf:"addr"`
	Port         int           `description:"Server listen port" koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `description:"HTTP read timeout" koanf:"read_timeout"`
	WriteTimeout time.Duration `description:"HTTP write timeout" koanf:"write_timeout"`
	AuthToken    string        `description:"Bearer token required by the job API (empty disables auth)" koanf:"auth_token"`

	// HandlerTimeout bounds job API handlers; 0 disables it.
	HandlerTimeout time.Duration `description:"Job API handler timeout" koanf:"handler_timeout" validate:"min=0"`
	MaxBodyBytes   int64         `description:"Largest accepted job submission body" koanf:"max_body_bytes" validate:"min=0"`
}
