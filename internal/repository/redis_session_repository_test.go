package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/meeyouu/skiniveAPI/internal/logging"
	"github.com/meeyouu/skiniveAPI/internal/relay"
)

type stubCache struct {
	setErrs   []error
	getErrs   []error
	getValues [][]byte
	setKeys   []string
	setValues [][]byte
	setTTLs   []time.Duration
	getKeys   []string
}

func (s *stubCache) Set(ctx context.Context, key string, document []byte, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	s.setValues = append(s.setValues, document)
	s.setTTLs = append(s.setTTLs, expiration)
	if len(s.setErrs) == 0 {
		return nil
	}
	err := s.setErrs[0]
	s.setErrs = s.setErrs[1:]
	return err
}

func (s *stubCache) Get(ctx context.Context, key string) ([]byte, error) {
	s.getKeys = append(s.getKeys, key)
	var value []byte
	if len(s.getValues) > 0 {
		value = s.getValues[0]
		s.getValues = s.getValues[1:]
	}
	var err error
	if len(s.getErrs) > 0 {
		err = s.getErrs[0]
		s.getErrs = s.getErrs[1:]
	}
	return value, err
}

type transientTestError struct{}

func (transientTestError) Error() string   { return "transient" }
func (transientTestError) Timeout() bool   { return true }
func (transientTestError) Temporary() bool { return true }

func newTestRedisRepository(cache Cache) *RedisSessionRepository {
	repo := NewRedisSessionRepository(cache, relay.DefaultConfig(), time.Minute, zap.NewNop())
	repo.initialBackoff = time.Millisecond
	repo.maxBackoff = 2 * time.Millisecond
	return repo
}

func TestRedisLoadMissReturnsDefaults(t *testing.T) {
	cache := &stubCache{getErrs: []error{redis.Nil}}
	repo := newTestRedisRepository(cache)

	state, err := repo.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Config != relay.DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", state.Config)
	}
	if len(cache.getKeys) != 1 || cache.getKeys[0] != "dashboard:session:s1" {
		t.Fatalf("unexpected keys %v", cache.getKeys)
	}
}

func TestRedisSaveRoundTrip(t *testing.T) {
	cache := &stubCache{}
	repo := newTestRedisRepository(cache)
	ctx := context.Background()

	state := &SessionState{Config: relay.Config{AuthToken: "tok", Locale: relay.LocaleRU}}
	if err := repo.Save(ctx, "s1", state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.setTTLs[0] != time.Minute {
		t.Fatalf("expected TTL to be applied, got %v", cache.setTTLs[0])
	}

	cache.getValues = [][]byte{cache.setValues[0]}
	loaded, err := repo.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Config != state.Config {
		t.Fatalf("expected %+v, got %+v", state.Config, loaded.Config)
	}
}

func TestRedisSaveRetriesTransientErrors(t *testing.T) {
	cache := &stubCache{setErrs: []error{transientTestError{}}}
	repo := newTestRedisRepository(cache)

	if err := repo.Save(context.Background(), "s1", &SessionState{}); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(cache.setKeys) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(cache.setKeys))
	}
}

func TestRedisLoadReturnsOperationError(t *testing.T) {
	cache := &stubCache{getErrs: []error{errors.New("boom")}}
	repo := newTestRedisRepository(cache)

	_, err := repo.Load(context.Background(), "s2")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(cache.getKeys) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(cache.getKeys))
	}

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "session.load" || opErr.SessionID != "s2" {
		t.Fatalf("unexpected operation error %+v", opErr)
	}
}

func TestRedisLoadDiscardsCorruptState(t *testing.T) {
	cache := &stubCache{getValues: [][]byte{[]byte("{not json")}}
	repo := newTestRedisRepository(cache)

	state, err := repo.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Config != relay.DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", state.Config)
	}
}

func TestSessionStateImageSurvivesJSON(t *testing.T) {
	state := SessionState{}
	raw := []byte(`{"config":{"auth_token":"t"},"image":{"name":"a.png","media_type":"image/png","data":"eA=="}}`)
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.HasImage() || string(state.Image.Data) != "x" {
		t.Fatalf("unexpected image %+v", state.Image)
	}
}
