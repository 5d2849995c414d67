package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/skirmish-gg/skirmish/internal/dependencies/clock"
	"github.com/skirmish-gg/skirmish/internal/dependencies/random"
	"github.com/skirmish-gg/skirmish/internal/server"
	"github.com/skirmish-gg/skirmish/internal/storage"
	filestorage "github.com/skirmish-gg/skirmish/internal/storage/file"
	"github.com/skirmish-gg/skirmish/internal/storage/memory"
	redisstorage "github.com/skirmish-gg/skirmish/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeFile   = "file"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Store

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Server owns every protocol loop
	Server *server.Server

	Logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// ListenAddr is the TCP address the server binds, e.g. ":7777"
	ListenAddr string
	// StorageType selects the credential backend ("memory", "file" or "redis")
	// If empty, defaults to "file"
	StorageType string
	// FilePath is the credential file location (required if StorageType is "file")
	FilePath string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// ServerConfig overrides the default server tunables (optional)
	ServerConfig *server.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeFile
	}

	var store storage.Store
	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeFile:
		if cfg.FilePath == "" {
			return nil, errors.New("FilePath required when StorageType is file")
		}
		fileStore, err := filestorage.New(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		store = fileStore
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'file' or 'redis'")
	}

	srvCfg := server.DefaultConfig(cfg.ListenAddr)
	if cfg.ServerConfig != nil {
		srvCfg = *cfg.ServerConfig
		srvCfg.Addr = cfg.ListenAddr
	}

	return newWithDependencies(store, clock.New(), random.New(), srvCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Store, clk clock.Clock, rnd random.Random, srvCfg server.Config, logger *slog.Logger) *App {
	return &App{
		Storage: store,
		Clock:   clk,
		Random:  rnd,
		Server:  server.New(srvCfg, store, clk, rnd, logger),
		Logger:  logger,
	}
}
