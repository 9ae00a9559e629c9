package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"userhub/internal/avatar"
	"userhub/internal/config"
	"userhub/internal/db"
	httpx "userhub/internal/http"
	"userhub/internal/observability"
	"userhub/internal/repo"
	"userhub/internal/repo/memory"
	"userhub/internal/repo/postgres"
	"userhub/internal/repo/sqlite"
	"userhub/internal/session"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "userhub", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			sctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	store, ping, closeStore, err := openStore(ctx, cfg, prom)

	if err != nil {
		log.Error("store init failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}

	defer closeStore()

	if err := db.EnsureAdminUser(ctx, store, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	sessions := session.NewManager(newSessionStore(cfg, log), cfg.SessionTTL(), cfg.SessionSecret)

	avatars, err := avatar.NewManager(cfg.AvatarDir)

	if err != nil {
		log.Error("avatar dir init failed", "err", err)
		os.Exit(1)
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Store:    store,
		Sessions: sessions,
		Avatars:  avatars,
		Prom:     prom,
		Registry: registry,
		Ping:     ping,
		Cfg:      cfg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "db_driver", cfg.DBDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom) (repo.UserStore, func() error, func(), error) {
	switch cfg.DBDriver {
	case "postgres":
		pool, err := db.NewPool(cfg.DBURL)

		if err != nil {
			return nil, nil, nil, err
		}

		users := postgres.NewUsersRepo(pool, prom)

		if err := users.Init(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}

		ping := func() error {
			pctx, cancel := config.WithTimeout(time.Second)
			defer cancel()
			return pool.Ping(pctx)
		}

		return users, ping, pool.Close, nil

	case "memory":
		return memory.NewUsersRepo(), func() error { return nil }, func() {}, nil

	default: // sqlite
		sqldb, err := sqlite.Open(cfg.DBPath)

		if err != nil {
			return nil, nil, nil, err
		}

		users := sqlite.NewUsersRepo(sqldb, prom)

		if err := users.Init(ctx); err != nil {
			_ = sqldb.Close()
			return nil, nil, nil, err
		}

		return users, sqldb.Ping, func() { _ = sqldb.Close() }, nil
	}
}

// newSessionStore prefers Redis when configured, falling back to the
// in-process store whenever Redis is unreachable.
func newSessionStore(cfg config.Config, log *slog.Logger) session.Store {
	mem := session.NewMemoryStore()

	if cfg.RedisAddr == "" {
		return mem
	}

	redisStore := session.NewRedisStore(session.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := redisStore.Ping(pctx); err != nil {
		log.Warn("redis unreachable at startup, sessions will fail over to memory", "err", err)
	}

	return session.NewFailoverStore(redisStore, mem)
}
