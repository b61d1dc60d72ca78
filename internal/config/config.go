// Package config loads bmsync settings from defaults, a YAML file and the
// environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read by Load. A double underscore
// separates nesting levels: BMSYNC_API__API_KEY sets api.api_key.
const EnvPrefix = "BMSYNC_"

type API struct {
	Endpoint    string        `koanf:"endpoint" validate:"required,url"`
	RealtimeURL string        `koanf:"realtime_url" validate:"omitempty,url"`
	APIKey      string        `koanf:"api_key" validate:"required"`
	Timeout     time.Duration `koanf:"timeout"`
}

type Sync struct {
	SuppressEchoes bool          `koanf:"suppress_echoes"`
	ReconnectMax   time.Duration `koanf:"reconnect_max"`
}

type Cache struct {
	Driver string `koanf:"driver" validate:"oneof=json sqlite none"`
	Path   string `koanf:"path" validate:"required_unless=Driver none"`
}

type Log struct {
	Level string `koanf:"level" validate:"oneof=error warn info debug"`
	File  string `koanf:"file"`
}

type Cull struct {
	Concurrency    int           `koanf:"concurrency" validate:"min=1,max=100"`
	Timeout        time.Duration `koanf:"timeout"`
	ExcludeDomains []string      `koanf:"exclude_domains"`
}

type Server struct {
	Addr   string `koanf:"addr" validate:"required"`
	Table  string `koanf:"table"`
	Region string `koanf:"region"`
	// DynamoEndpoint points the DynamoDB client at a local emulator.
	DynamoEndpoint string `koanf:"dynamo_endpoint" validate:"omitempty,url"`
	APIKey         string `koanf:"api_key" validate:"required"`
}

type Config struct {
	API    API    `koanf:"api"`
	Sync   Sync   `koanf:"sync"`
	Cache  Cache  `koanf:"cache"`
	Log    Log    `koanf:"log"`
	Cull   Cull   `koanf:"cull"`
	Server Server `koanf:"server"`
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	return validateSections(c)
}

// ValidateServer checks everything but the api section, which the dev
// server and provisioning never use.
func (c *Config) ValidateServer() error {
	return validateSections(&c.Sync, &c.Cache, &c.Log, &c.Cull, &c.Server)
}

func validateSections(sections ...any) error {
	validate := validator.New()
	for _, s := range sections {
		err := validate.Struct(s)
		if err == nil {
			continue
		}
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("configuration validation failed: %v", validationErrors)
		}
		return err
	}
	return nil
}

// DefaultPath returns ~/.config/bmsync/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "bmsync", "config.yaml"), nil
}

// Load reads the configuration and validates all of it. A missing file is
// not an error; the environment may supply everything.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer is Load without the api section requirements.
func LoadServer(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := setDefaultValues(k); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	for _, p := range []*string{&cfg.Cache.Path, &cfg.Log.File} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return cfg, nil
}

// envKey maps BMSYNC_API__API_KEY to api.api_key.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// ExpandPath replaces a leading ~/ with the home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}

func setDefaultValues(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(map[string]any{
		"api.timeout":            "10s",
		"sync.suppress_echoes":   false,
		"sync.reconnect_max":     "1m",
		"cache.driver":           "json",
		"cache.path":             "~/.config/bmsync/bookmarks.json",
		"log.level":              "info",
		"log.file":               "",
		"cull.concurrency":       10,
		"cull.timeout":           "10s",
		"cull.exclude_domains":   []string{"github.com", "gitlab.com"},
		"server.addr":            ":8080",
		"server.table":           "",
		"server.region":          "us-east-1",
		"server.dynamo_endpoint": "",
		"server.api_key":         "local-dev-key",
	}, "."), nil)
}
