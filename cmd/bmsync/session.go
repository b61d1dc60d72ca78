package main

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/api"
	"github.com/nikbrunner/bmsync/internal/config"
	"github.com/nikbrunner/bmsync/internal/logger"
	"github.com/nikbrunner/bmsync/internal/storage"
	"github.com/nikbrunner/bmsync/internal/store"
)

// session holds everything a client command needs.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	cache  storage.Storage
	client *api.Client
	store  *store.Store
}

// openSession loads the configuration and wires the store. The TUI owns
// the terminal, so with interactive set logs go to a file even when none
// is configured.
func openSession(configPath string, interactive bool) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logFile := cfg.Log.File
	if logFile == "" && interactive {
		logFile = defaultLogFile(configPath)
	}
	log, err := logger.New(cfg.Log.Level, logFile)
	if err != nil {
		return nil, err
	}

	cache, err := storage.Open(cfg.Cache.Driver, cfg.Cache.Path)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg.API.Endpoint, cfg.API.APIKey, api.WithTimeout(cfg.API.Timeout))
	if err != nil {
		_ = storage.Close(cache)
		return nil, err
	}

	opts := []store.Option{
		store.WithLogger(log),
		store.WithReconnect(0, cfg.Sync.ReconnectMax),
	}
	if cache != nil {
		opts = append(opts, store.WithCache(cache))
	}
	if cfg.Sync.SuppressEchoes {
		opts = append(opts, store.WithEchoSuppression())
	}

	return &session{
		cfg:    cfg,
		logger: log,
		cache:  cache,
		client: client,
		store:  store.New(client, opts...),
	}, nil
}

func (s *session) realtime() (*api.RealtimeClient, error) {
	return api.NewRealtimeClient(s.cfg.API.Endpoint, s.cfg.API.RealtimeURL, s.cfg.API.APIKey, s.logger)
}

func (s *session) Close() {
	if err := storage.Close(s.cache); err != nil {
		s.logger.Warn("failed to close cache", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func defaultLogFile(configPath string) string {
	dir := filepath.Dir(configPath)
	if configPath == "" {
		if p, err := config.DefaultPath(); err == nil {
			dir = filepath.Dir(p)
		}
	}
	return filepath.Join(dir, "bmsync.log")
}
