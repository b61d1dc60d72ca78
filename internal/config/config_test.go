package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, config map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(config)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func validAPI() map[string]any {
	return map[string]any{
		"endpoint": "https://abc.appsync-api.us-east-1.amazonaws.com/graphql",
		"api_key":  "da2-test",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{
			name:   "valid config",
			config: map[string]any{"api": validAPI()},
		},
		{
			name: "missing api.endpoint",
			config: map[string]any{
				"api": map[string]any{"api_key": "da2-test"},
			},
			wantErr: true,
		},
		{
			name: "missing api.api_key",
			config: map[string]any{
				"api": map[string]any{"endpoint": "https://example.com/graphql"},
			},
			wantErr: true,
		},
		{
			name: "invalid realtime url",
			config: map[string]any{
				"api": map[string]any{
					"endpoint":     "https://example.com/graphql",
					"api_key":      "k",
					"realtime_url": "not a url",
				},
			},
			wantErr: true,
		},
		{
			name: "unknown cache driver",
			config: map[string]any{
				"api":   validAPI(),
				"cache": map[string]any{"driver": "redis"},
			},
			wantErr: true,
		},
		{
			name: "cache none needs no path",
			config: map[string]any{
				"api":   validAPI(),
				"cache": map[string]any{"driver": "none", "path": ""},
			},
		},
		{
			name: "invalid log level",
			config: map[string]any{
				"api": validAPI(),
				"log": map[string]any{"level": "verbose"},
			},
			wantErr: true,
		},
		{
			name: "cull concurrency too low",
			config: map[string]any{
				"api":  validAPI(),
				"cull": map[string]any{"concurrency": 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.wantErr && !strings.Contains(err.Error(), "configuration validation failed") {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, map[string]any{"api": validAPI()}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("expected api.timeout 10s, got %v", cfg.API.Timeout)
	}
	if cfg.Sync.ReconnectMax != time.Minute {
		t.Errorf("expected sync.reconnect_max 1m, got %v", cfg.Sync.ReconnectMax)
	}
	if cfg.Sync.SuppressEchoes {
		t.Error("echo suppression should be off by default")
	}
	if cfg.Cache.Driver != "json" {
		t.Errorf("expected json cache, got %q", cfg.Cache.Driver)
	}
	if strings.HasPrefix(cfg.Cache.Path, "~") {
		t.Errorf("expected expanded cache path, got %q", cfg.Cache.Path)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info log level, got %q", cfg.Log.Level)
	}
	if cfg.Cull.Concurrency != 10 || cfg.Cull.Timeout != 10*time.Second {
		t.Errorf("unexpected cull defaults %+v", cfg.Cull)
	}
	if len(cfg.Cull.ExcludeDomains) != 2 {
		t.Errorf("expected default exclude domains, got %v", cfg.Cull.ExcludeDomains)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.Server.Addr)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, map[string]any{
		"api":  map[string]any{"endpoint": "https://example.com/graphql", "api_key": "k", "timeout": "3s"},
		"sync": map[string]any{"suppress_echoes": true},
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("expected 3s, got %v", cfg.API.Timeout)
	}
	if !cfg.Sync.SuppressEchoes {
		t.Error("expected suppress_echoes from file")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, map[string]any{"api": validAPI()})
	t.Setenv("BMSYNC_API__API_KEY", "from-env")
	t.Setenv("BMSYNC_LOG__LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.APIKey != "from-env" {
		t.Errorf("expected api key from env, got %q", cfg.API.APIKey)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug from env, got %q", cfg.Log.Level)
	}
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("BMSYNC_API__ENDPOINT", "https://example.com/graphql")
	t.Setenv("BMSYNC_API__API_KEY", "k")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Endpoint != "https://example.com/graphql" {
		t.Errorf("unexpected endpoint %q", cfg.API.Endpoint)
	}
}

func TestLoadServer_RelaxesAPI(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"server": map[string]any{"addr": ":9090", "table": "bookmarks"},
	})

	if _, err := Load(path); err == nil {
		t.Error("Load() should require the api section")
	}

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.Table != "bookmarks" {
		t.Errorf("unexpected server section %+v", cfg.Server)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"BMSYNC_API__API_KEY":          "api.api_key",
		"BMSYNC_SYNC__SUPPRESS_ECHOES": "sync.suppress_echoes",
		"BMSYNC_SERVER__ADDR":          "server.addr",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandPath("~/.config/bmsync/x.json")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".config", "bmsync", "x.json"); got != want {
		t.Errorf("ExpandPath() = %q, want %q", got, want)
	}

	if got, _ := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed to %q", got)
	}
}
