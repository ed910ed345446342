package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionState is the per-login view of the session store the resolver reads
// from and SelectTenant writes to. It is passed in explicitly so the resolver
// stays a pure function of its inputs.
type SessionState interface {
	// SelectedTenant returns the explicitly selected tenant id, if any.
	SelectedTenant(ctx context.Context) (uint, bool, error)
	// SetSelectedTenant overwrites the selection for this session.
	SetSelectedTenant(ctx context.Context, tenantID uint) error
	// ClearSelectedTenant removes the selection, e.g. on logout.
	ClearSelectedTenant(ctx context.Context) error
}

// Store holds tenant selections in Redis, keyed by session id. Selections
// are ephemeral: they live as long as the login session and are not shared
// across devices.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewStore creates a session store and verifies connectivity.
func NewStore(ctx context.Context, addr, password string, db int, ttl time.Duration, log *zap.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("Session store connected", zap.String("addr", addr))
	return &Store{rdb: rdb, ttl: ttl, log: log}, nil
}

// NewStoreWithClient wraps an existing client; used by tests.
func NewStoreWithClient(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Store {
	return &Store{rdb: rdb, ttl: ttl, log: log}
}

// Session binds the store to one session id.
func (s *Store) Session(sessionID string) SessionState {
	return &redisSession{store: s, sessionID: sessionID}
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func selectedTenantKey(sessionID string) string {
	return "session:" + sessionID + ":selected_tenant"
}

type redisSession struct {
	store     *Store
	sessionID string
}

func (r *redisSession) SelectedTenant(ctx context.Context) (uint, bool, error) {
	val, err := r.store.rdb.Get(ctx, selectedTenantKey(r.sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("session get: %w", err)
	}

	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		// A corrupt value is indistinguishable from no selection; the
		// resolver falls through to the default-membership step.
		r.store.log.Warn("Discarding malformed tenant selection",
			zap.String("session_id", r.sessionID),
			zap.String("value", val))
		return 0, false, nil
	}
	return uint(id), true, nil
}

func (r *redisSession) SetSelectedTenant(ctx context.Context, tenantID uint) error {
	key := selectedTenantKey(r.sessionID)
	if err := r.store.rdb.Set(ctx, key, strconv.FormatUint(uint64(tenantID), 10), r.store.ttl).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

func (r *redisSession) ClearSelectedTenant(ctx context.Context) error {
	if err := r.store.rdb.Del(ctx, selectedTenantKey(r.sessionID)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}
