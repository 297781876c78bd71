package confloader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix for broker settings.
const DefaultEnvPrefix = "WIREPOOL_"

// Loader merges broker configuration from a YAML file and environment
// variables into a typed struct. Later sources override earlier ones:
// struct defaults, then file, then environment.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges all sources and unmarshals the result into target, which
// must be a pointer to a koanf-tagged struct. Fields no source mentions
// keep the value target already holds.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// Set applies explicit key overrides on top of the loaded sources. It
// backs CLI flags, which outrank every other source. Keys are
// dot-separated paths ("server.http.address").
func (l *Loader) Set(values map[string]any) error {
	if err := l.k.Load(overrides(values), nil); err != nil {
		return fmt.Errorf("apply overrides: %w", err)
	}
	return nil
}

// Get returns one merged value by dot-separated key, or nil when no
// source provided it.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}

// envKey maps WIREPOOL_SERVER_HTTP_ADDRESS to server.http.address.
func (l *Loader) envKey(s string) string {
	s = strings.TrimPrefix(s, l.envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "_", ".")
}

// overrides is a koanf provider over an in-memory key map.
type overrides map[string]any

func (o overrides) Read() (map[string]any, error) {
	out := make(map[string]any, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out, nil
}

func (o overrides) ReadBytes() ([]byte, error) {
	return nil, errors.New("confloader: overrides have no byte form")
}
