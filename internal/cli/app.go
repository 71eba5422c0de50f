package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rcliao/agent-context/internal/config"
	"github.com/rcliao/agent-context/internal/contextcache"
	"github.com/rcliao/agent-context/internal/embedding"
	"github.com/rcliao/agent-context/internal/memory"
	"github.com/rcliao/agent-context/internal/pipeline"
	"github.com/rcliao/agent-context/internal/store"
	"github.com/rcliao/agent-context/internal/vector"
)

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *store.SQLiteStore
	mem       *memory.Manager
	cache     *contextcache.Cache
	pipeline  *pipeline.Pipeline
	persister *pipeline.Persister
	closers   []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func newLogger(c config.LogConfig) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newIndex picks the search index behind long-term and semantic memory.
func newIndex(cfg *config.Config, db *store.SQLiteStore) (memory.Index, error) {
	emb, err := embedding.New(cfg.Index.Embedding)
	if err != nil {
		return nil, err
	}
	if cfg.Index.Backend == config.IndexKeyword || (cfg.Index.Backend == config.IndexAuto && emb == nil) {
		return store.NewTextIndex(db), nil
	}
	x, err := vector.New(cfg.Index.VectorPath, emb)
	if err != nil {
		return nil, err
	}
	return x, nil
}

func newCache(cfg *config.Config, logger *slog.Logger) (*contextcache.Cache, func() error, error) {
	var backend interface {
		contextcache.Backend
		Close() error
	}
	var err error
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, nil, nil
	case config.CacheLocal:
		backend, err = contextcache.NewLocalBackend(cfg.Cache.MaxBytes)
	default:
		backend, err = contextcache.NewRedisBackend(cfg.Cache.URL)
	}
	if err != nil {
		return nil, nil, err
	}
	return contextcache.New(backend, cfg.Pipeline.Cache.TTL(), logger), backend.Close, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg, logger: newLogger(cfg.Log)}

	a.db, err = store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)

	index, err := newIndex(cfg, a.db)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}

	a.mem = memory.New(cfg.Memory, a.db, index, a.logger)
	a.closers = append(a.closers, a.mem.Close)

	cache, closeCache, err := newCache(cfg, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}
	a.cache = cache

	a.pipeline = pipeline.New(a.mem, cfg.Pipeline, pipeline.Options{Cache: cache, Logger: a.logger})
	a.persister = pipeline.NewPersister(a.mem, cfg.Pipeline, pipeline.PersisterOptions{Cache: cache, Logger: a.logger})
	return a, nil
}

// mustOpenApp opens the app or exits.
func mustOpenApp() *app {
	a, err := openApp()
	if err != nil {
		exitErr("init", err)
	}
	return a
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []string
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}

// connect checks the short-term backend before a turn touches it.
func (a *app) connect(ctx context.Context) {
	if err := a.mem.Connect(ctx); err != nil {
		exitErr("connect", err)
	}
}
