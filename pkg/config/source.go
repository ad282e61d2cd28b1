package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read into the configuration.
const EnvPrefix = "VOLWORKER_"

// RedisURLEnv is the conventional queue endpoint variable shared with other
// workers deployed next to volworker.
const RedisURLEnv = "REDIS_URL"

// Load order. A source with a higher priority overwrites keys set by lower ones.
const (
	PriorityDefaults = 10
	PriorityRedisURL = 15
	PriorityFile     = 20
	PriorityEnv      = 30
	PriorityFlags    = 40
)

// ConfigSource feeds one configuration layer into koanf.
type ConfigSource interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// sections lists the top-level keys of Config. Environment variables naming
// any other section are ignored so that unrelated VOLWORKER_* variables
// (VOLWORKER_WORKSPACE for instance) do not leak into the configuration.
var sections = map[string]struct{}{
	"log":        {},
	"volatility": {},
	"task":       {},
	"worker":     {},
	"server":     {},
}

// DefaultSource loads DefaultConfig.
type DefaultSource struct{}

func (DefaultSource) Name() string  { return "defaults" }
func (DefaultSource) Priority() int { return PriorityDefaults }

func (DefaultSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
}

// RedisURLSource seeds worker.redis_url from REDIS_URL. It sits right above
// the defaults, so a file, VOLWORKER_WORKER_REDIS_URL or --worker.redis_url
// still wins.
type RedisURLSource struct {
	// Lookup replaces os.LookupEnv in tests.
	Lookup func(string) (string, bool)
}

func (RedisURLSource) Name() string  { return "env:" + RedisURLEnv }
func (RedisURLSource) Priority() int { return PriorityRedisURL }

func (s RedisURLSource) Load(k *koanf.Koanf) error {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	url, ok := lookup(RedisURLEnv)
	if !ok || strings.TrimSpace(url) == "" {
		return nil
	}
	return k.Set("worker.redis_url", strings.TrimSpace(url))
}

// FileSource loads a YAML configuration file. A missing file is skipped
// unless Required is set, which is the case when the path was given
// explicitly on the command line.
type FileSource struct {
	Path     string
	Required bool
}

func (s FileSource) Name() string  { return "file:" + s.Path }
func (s FileSource) Priority() int { return PriorityFile }

func (s FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}
	info, err := os.Stat(s.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if s.Required {
			return fmt.Errorf("config file %s does not exist", s.Path)
		}
		return nil
	case err != nil:
		return err
	case info.IsDir():
		return fmt.Errorf("config file %s is a directory", s.Path)
	}
	return k.Load(file.Provider(s.Path), yaml.Parser())
}

// EnvSource maps VOLWORKER_<SECTION>_<KEY> to <section>.<key>. Only the
// first underscore after the prefix is a separator, so
// VOLWORKER_VOLATILITY_ARTIFACT_GLOB becomes volatility.artifact_glob.
// Empty values are ignored.
type EnvSource struct {
	Prefix string
}

func (EnvSource) Name() string  { return "env" }
func (EnvSource) Priority() int { return PriorityEnv }

func (s EnvSource) Load(k *koanf.Koanf) error {
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	return k.Load(env.ProviderWithValue(prefix, ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return envKey(prefix, key), value
	}), nil)
}

// envKey returns the koanf key for an environment variable, or "" when the
// variable does not address a known section. koanf drops empty keys.
func envKey(prefix, name string) string {
	section, rest, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, prefix)), "_")
	if !ok || rest == "" {
		return ""
	}
	if _, known := sections[section]; !known {
		return ""
	}
	return section + "." + rest
}

// FlagSource loads command-line flags registered under their config keys
// (--worker.concurrency and friends). A set --debug flag forces log.level
// to debug.
type FlagSource struct {
	Flags *pflag.FlagSet
}

func (FlagSource) Name() string  { return "flags" }
func (FlagSource) Priority() int { return PriorityFlags }

func (s FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags == nil {
		return nil
	}
	if err := k.Load(posflag.Provider(s.Flags, ".", k), nil); err != nil {
		return err
	}
	if debugEnabled(s.Flags) {
		return k.Set("log.level", "debug")
	}
	return nil
}

func debugEnabled(flags *pflag.FlagSet) bool {
	debug, err := flags.GetBool("debug")
	return err == nil && debug
}

// DefaultSources returns the standard layers for a config file at path.
func DefaultSources(path string, required bool, flags *pflag.FlagSet) []ConfigSource {
	return []ConfigSource{
		DefaultSource{},
		RedisURLSource{},
		FileSource{Path: path, Required: required},
		EnvSource{Prefix: EnvPrefix},
		FlagSource{Flags: flags},
	}
}
