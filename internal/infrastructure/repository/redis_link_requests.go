package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const linkRequestKeyPrefix = "linkreq:"

// RedisLinkRequestStore implements LinkRequestStore using Redis. GETDEL
// gives the atomic consume-and-delete, and the key TTL enforces expiry, so
// the sweep has nothing left to do.
type RedisLinkRequestStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisLinkRequestStore creates a new Redis link request store.
func NewRedisLinkRequestStore(client *redis.Client, logger zerolog.Logger) *RedisLinkRequestStore {
	return &RedisLinkRequestStore{client: client, logger: logger}
}

// CreateLinkRequest stores a pending state token with a TTL matching its
// expiry.
func (s *RedisLinkRequestStore) CreateLinkRequest(ctx context.Context, req *domain.LinkRequest) error {
	ttl := time.Until(req.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("link request already expired")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode link request: %w", err)
	}

	ok, err := s.client.SetNX(ctx, linkRequestKeyPrefix+req.State, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create link request: %w", domain.StoreUnavailable(err))
	}
	if !ok {
		return fmt.Errorf("link request state already exists")
	}
	return nil
}

// ConsumeLinkRequest atomically returns and deletes the request for a state.
func (s *RedisLinkRequestStore) ConsumeLinkRequest(ctx context.Context, state string) (*domain.LinkRequest, error) {
	payload, err := s.client.GetDel(ctx, linkRequestKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume link request: %w", domain.StoreUnavailable(err))
	}

	var req domain.LinkRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, fmt.Errorf("failed to decode link request: %w", err)
	}
	// TTL already enforces expiry; this guards against clock drift between
	// the writer and Redis.
	if req.Expired(time.Now()) {
		return nil, domain.ErrNotFound
	}
	return &req, nil
}

// SweepExpiredLinkRequests is a no-op: Redis key TTLs expire requests on
// their own.
func (s *RedisLinkRequestStore) SweepExpiredLinkRequests(ctx context.Context) (int64, error) {
	return 0, nil
}

var _ ports.LinkRequestStore = (*RedisLinkRequestStore)(nil)

// ComposeCredentialStore overlays a dedicated link request store on top of a
// base credential store. Used to keep installations and authorizations in
// MongoDB while link requests live in Redis.
func ComposeCredentialStore(base ports.CredentialStore, linkRequests ports.LinkRequestStore) ports.CredentialStore {
	return &compositeCredentialStore{
		InstallationStore:     base,
		CrmAuthorizationStore: base,
		LinkRequestStore:      linkRequests,
	}
}

type compositeCredentialStore struct {
	ports.InstallationStore
	ports.CrmAuthorizationStore
	ports.LinkRequestStore
}
