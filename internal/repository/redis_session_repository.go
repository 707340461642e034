package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/meeyouu/skiniveAPI/internal/logging"
	"github.com/meeyouu/skiniveAPI/internal/relay"
)

// Cache is the slice of Redis the session store needs: one serialized
// session document per key, expiring with the session.
type Cache interface {
	Set(ctx context.Context, key string, document []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// RedisCache stores session documents through go-redis. A missing key is
// reported as redis.Nil.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a connected client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, document []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, document, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Get(ctx, key).Bytes()
}

// RedisSessionRepository shares session state between dashboard replicas.
type RedisSessionRepository struct {
	cache          Cache
	defaults       relay.Config
	ttl            time.Duration
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewRedisSessionRepository creates a Redis backed session store.
func NewRedisSessionRepository(cache Cache, defaults relay.Config, ttl time.Duration, logger *zap.Logger) *RedisSessionRepository {
	return &RedisSessionRepository{
		cache:          cache,
		defaults:       defaults,
		ttl:            ttl,
		logger:         logger.Named("session_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("dashboard:session:%s", sessionID)
}

// Load reads the session state; a missing key yields defaults.
func (r *RedisSessionRepository) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	var payload []byte
	err := r.executeWithRetry(ctx, "session.load", sessionID, func() error {
		value, err := r.cache.Get(ctx, sessionKey(sessionID))
		if err != nil {
			return err
		}
		payload = value
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return &SessionState{Config: r.defaults}, nil
	}
	if err != nil {
		return nil, err
	}

	var state SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		logging.WithOperation(r.logger, "session.load", sessionID).Warn("discarding undecodable session", zap.Error(err))
		return &SessionState{Config: r.defaults}, nil
	}
	return &state, nil
}

// Save writes the session state with the configured TTL.
func (r *RedisSessionRepository) Save(ctx context.Context, sessionID string, state *SessionState) error {
	serialized, err := json.Marshal(state)
	if err != nil {
		return logging.NewOperationError("session.save", sessionID, err)
	}
	return r.executeWithRetry(ctx, "session.save", sessionID, func() error {
		return r.cache.Set(ctx, sessionKey(sessionID), serialized, r.ttl)
	})
}

func (r *RedisSessionRepository) executeWithRetry(ctx context.Context, operation, sessionID string, fn func() error) error {
	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, sessionID)

	var err error
	for attempt := 0; attempt < r.retryAttempts || attempt == 0; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, sessionID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, redis.Nil) {
			return logging.NewOperationError(operation, sessionID, err)
		}
		if !isTransientError(err) || attempt >= r.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, sessionID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, sessionID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}
	return false
}
