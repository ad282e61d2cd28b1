package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DefaultWorkerConfig returns the default queue worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Queue:       "memory",
		Concurrency: 1,
		QueueName:   "volworker:tasks",
		KeyPrefix:   "volworker",
		ResultTTL:   24 * time.Hour,
		LockTimeout: 30 * time.Second,
	}
}

// DefaultServerConfig returns the default server configuration.
// These are sensible defaults for local development and can be overridden
// via flags, environment variables, or config files.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Enabled:      true,
		Addr:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,

		HandlerTimeout: 30 * time.Second,
		MaxBodyBytes:   1 << 20,
	}
}

// BindWorkerFlags binds worker flags to the provided FlagSet.
//
// Flags are namespaced under 'worker.' so the posflag provider maps them
// straight onto configuration keys. Example: --worker.concurrency
func BindWorkerFlags(flags *pflag.FlagSet) {
	defaults := DefaultWorkerConfig()

	flags.String("worker.queue", defaults.Queue, "Queue backend (memory, redis)")
	flags.Int("worker.concurrency", defaults.Concurrency, "Number of concurrent task workers")
	flags.String("worker.redis_url", "", "Redis connection URL (default: $REDIS_URL)")
	flags.String("worker.queue_name", defaults.QueueName, "Redis list consumed by the worker")
	flags.String("worker.inbox_dir", "", "Watch this directory for new memory images")
	flags.String("worker.output_root", "", "Root directory for inbox-triggered outputs")
}

// BindServerFlags binds server-specific flags to the provided FlagSet.
func BindServerFlags(flags *pflag.FlagSet) {
	defaults := DefaultServerConfig()

	flags.Bool("server.enabled", defaults.Enabled, "Serve the health and job API")
	flags.String("server.addr", defaults.Addr, "Server listen address (use 0.0.0.0 for all interfaces)")
	flags.Int("server.port", defaults.Port, "Server listen port")
	flags.Duration("server.read_timeout", defaults.ReadTimeout, "HTTP read timeout")
	flags.Duration("server.write_timeout", defaults.WriteTimeout, "HTTP write timeout")
	flags.Duration("server.handler_timeout", defaults.HandlerTimeout, "Job API handler timeout (0 disables)")
}
