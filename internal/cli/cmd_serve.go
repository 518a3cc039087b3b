package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/helewild/gridhud/internal/config"
	"github.com/helewild/gridhud/internal/debughttp"
	ilog "github.com/helewild/gridhud/internal/log"
	"github.com/helewild/gridhud/internal/ratelimit"
	"github.com/helewild/gridhud/internal/registry"
	"github.com/helewild/gridhud/internal/server"
	"github.com/helewild/gridhud/internal/store/sqlite"
)

func runServe(ctx context.Context, args []string) int {
	loadEnvFromDotEnv(".env")

	cfg, err := config.ParseServerFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 2
	}
	logger := ilog.New(cfg.LogLevel, cfg.LogFormat)

	classifier, err := buildClassifier(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ranks error:", err)
		return 1
	}

	store, closeStore, err := buildStore(cfg, classifier)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db error:", err)
		return 1
	}
	defer closeStore()

	if err := debughttp.StartPprofServer(ctx, cfg.PprofAddr, logger); err != nil {
		fmt.Fprintln(os.Stderr, "pprof error:", err)
		return 1
	}

	s := server.New(cfg, store, buildLimiter(cfg), logger)
	if err := s.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "server error:", err)
		return 1
	}
	return 0
}

func buildClassifier(cfg config.ServerConfig) (registry.Classifier, error) {
	if cfg.RanksFile == "" {
		return registry.NewStatic(""), nil
	}
	return registry.LoadTable(cfg.RanksFile)
}

// buildStore picks the registry backend: SQLite when a db path is
// configured, in-memory otherwise. The returned func releases the backend
// and is a no-op for the memory store.
func buildStore(cfg config.ServerConfig, c registry.Classifier) (registry.Store, func(), error) {
	if cfg.DBPath == "" {
		return registry.NewMemory(c), func() {}, nil
	}
	st, err := sqlite.Open(cfg.DBPath, c)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { _ = st.Close() }, nil
}

func buildLimiter(cfg config.ServerConfig) ratelimit.Limiter {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RateWindow)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return ratelimit.NewRedis(client, cfg.RateWindow)
}
