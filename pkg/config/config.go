package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

var validate = validator.New()

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a new Manager backed by a fresh koanf instance.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Volatility: VolatilityConfig{
			Binary:       "vol",
			Timeout:      2 * time.Hour,
			Parallel:     0,
			MinVersion:   ">= 2.0.0",
			ArtifactGlob: "*.dmp",
		},
		Task: TaskConfig{
			OSGroup:      "win",
			OutputFormat: "txt",
		},
		Worker: DefaultWorkerConfig(),
		Server: DefaultServerConfig(),
	}
}

// Load merges the default sources and validates the result. A config file
// missing at path is skipped.
func (m *Manager) Load(flags *pflag.FlagSet, path string) error {
	return m.LoadSources(DefaultSources(path, false, flags)...)
}

// LoadExplicit is Load for a path the user named, which must exist.
func (m *Manager) LoadExplicit(flags *pflag.FlagSet, path string) error {
	return m.LoadSources(DefaultSources(path, true, flags)...)
}

// LoadSources loads the given sources, lowest priority first.
func (m *Manager) LoadSources(sources ...ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := make([]ConfigSource, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	for _, src := range sorted {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}

	if err := newCfg.Validate(); err != nil {
		return err
	}
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Validate checks struct-level constraints on the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultConfigAsMap converts the DefaultConfig struct to a map[string]interface{}
// for Koanf's confmap.Provider.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"volatility.binary":        def.Volatility.Binary,
		"volatility.timeout":       def.Volatility.Timeout,
		"volatility.parallel":      def.Volatility.Parallel,
		"volatility.min_version":   def.Volatility.MinVersion,
		"volatility.catalog_file":  def.Volatility.CatalogFile,
		"volatility.artifact_glob": def.Volatility.ArtifactGlob,

		"task.os_group":      def.Task.OSGroup,
		"task.output_format": def.Task.OutputFormat,

		"worker.queue":        def.Worker.Queue,
		"worker.concurrency":  def.Worker.Concurrency,
		"worker.redis_url":    def.Worker.RedisURL,
		"worker.queue_name":   def.Worker.QueueName,
		"worker.key_prefix":   def.Worker.KeyPrefix,
		"worker.result_ttl":   def.Worker.ResultTTL,
		"worker.inbox_dir":    def.Worker.InboxDir,
		"worker.output_root":  def.Worker.OutputRoot,
		"worker.lock_timeout": def.Worker.LockTimeout,

		"server.enabled":       def.Server.Enabled,
		"server.addr":          def.Server.Addr,
		"server.port":          def.Server.Port,
		"server.read_timeout":  def.Server.ReadTimeout,
		"server.write_timeout": def.Server.WriteTimeout,
		"server.auth_token":    def.Server.AuthToken,

		"server.handler_timeout": def.Server.HandlerTimeout,
		"server.max_body_bytes":  def.Server.MaxBodyBytes,
	}
}

// BindFlags defines the global command-line flags that feed configuration.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
}
