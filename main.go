package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/meeyouu/skiniveAPI/internal/auth"
	"github.com/meeyouu/skiniveAPI/internal/config"
	"github.com/meeyouu/skiniveAPI/internal/handlers"
	"github.com/meeyouu/skiniveAPI/internal/logging"
	"github.com/meeyouu/skiniveAPI/internal/relay"
	"github.com/meeyouu/skiniveAPI/internal/repository"
	"github.com/meeyouu/skiniveAPI/internal/usecase"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.GeneratedSecret {
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	sessions := initSessions(cfg, logger)
	client := relay.NewClient(cfg.RelayTimeout, logger)
	dashboard := usecase.NewDashboard(sessions, client, logger)

	router := newRouter(cfg, dashboard, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Skinive dashboard listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.Duration("relay_timeout", cfg.RelayTimeout),
	)
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newRouter(cfg config.Config, dashboard *usecase.Dashboard, logger *zap.Logger) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	sessionMiddleware := auth.SessionMiddleware(cfg.SessionSecret, cfg.SessionTTL)
	handlers.RegisterRoutes(r, dashboard, sessionMiddleware, handlers.Options{
		PreviewMaxWidth: cfg.PreviewMaxWidth,
		Logger:          logger,
	})
	return r
}

// initSessions picks Redis when REDIS_ADDR is set and process memory otherwise.
func initSessions(cfg config.Config, logger *zap.Logger) repository.SessionRepository {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory sessions", zap.Duration("ttl", cfg.SessionTTL))
		return repository.NewMemorySessionRepository(cfg.Defaults, cfg.SessionTTL, cfg.MaxSessions)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	logger.Info("using redis sessions", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.SessionTTL))
	return repository.NewRedisSessionRepository(repository.NewRedisCache(client), cfg.Defaults, cfg.SessionTTL, logger)
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
