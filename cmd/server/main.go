// cmd/server/main.go
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/luxgrid/luxgrid/internal/auth"
	"github.com/luxgrid/luxgrid/internal/config"
	"github.com/luxgrid/luxgrid/internal/database"
	"github.com/luxgrid/luxgrid/internal/handlers"
	"github.com/luxgrid/luxgrid/internal/lobby"
	"github.com/luxgrid/luxgrid/internal/middleware"
	"github.com/luxgrid/luxgrid/internal/replay"
	"github.com/luxgrid/luxgrid/internal/session"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := auth.Init(cfg.TokenSecret); err != nil {
		logger.Fatalf("failed to init token signing: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatalf("failed to connect to redis at %s: %v", cfg.RedisAddr, err)
	}
	cancel()
	logger.Infof("connected to redis at %s", cfg.RedisAddr)

	var matches *database.MatchRecorder
	if cfg.DatabaseURL != "" {
		matches, err = database.Connect(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatalf("failed to connect to postgres: %v", err)
		}
		defer matches.Close()
	} else {
		logger.Info("no DATABASE_URL set, match history disabled")
	}

	sessions := session.NewStore(logger)
	lobbies := lobby.NewManager(rand.New(rand.NewSource(time.Now().UnixNano())))
	replays := replay.NewStore(rdb, logger)
	srv := handlers.NewServer(logger, sessions, lobbies, replays, matches)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sessions.StartSweeper(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/ws", middleware.LogMiddleware(logger)(srv.WSHandler()))

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logger.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown error: %v", err)
	}
}
