package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skirmish-gg/skirmish/internal/admin"
	"github.com/skirmish-gg/skirmish/internal/factory"
	redisstorage "github.com/skirmish-gg/skirmish/internal/storage/redis"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skirmish-server <port>",
		Short: "Run the matchmaking server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[0])
			if err != nil || port < 1 || port > 65535 {
				cmd.Usage()
				return fmt.Errorf("invalid port %q", args[0])
			}
			return run(port)
		},
		SilenceErrors: true,
	}
}

func run(port int) error {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	cfg := factory.Config{
		ListenAddr:  ":" + strconv.Itoa(port),
		StorageType: os.Getenv("STORAGE_TYPE"),
		FilePath:    os.Getenv("USERS_FILE"),
		Logger:      logger,
	}
	if cfg.FilePath == "" {
		cfg.FilePath = "data/users.csv"
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Server.Start(ctx); err != nil {
		logger.Error("failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Optional operational endpoint
	if adminAddr := os.Getenv("ADMIN_ADDR"); adminAddr != "" {
		go func() {
			handler := admin.NewHandler(app.Server, logger)
			if err := handler.Serve(ctx, adminAddr); err != nil {
				logger.Error("admin endpoint failed", slog.String("error", err.Error()))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	app.Server.Shutdown()
	return nil
}
