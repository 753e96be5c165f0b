package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"yatri/pkg/domain"

	anchorcontract "yatri/contracts/anchor"
)

const anchorKeyPrefix = "ledger:anchor:"

// Cached is a read-through Redis cache over GetLatest. Ledger writes through
// the same client invalidate the cached anchor so verification never compares
// against an entry this process knows is stale. NotFound results are not
// cached; a subject's first anchor should become visible without waiting out
// a TTL.
type Cached struct {
	inner  Client
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ Client = (*Cached)(nil)

// NewCached wraps inner with a Redis anchor cache.
func NewCached(inner Client, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *Cached) Register(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	ref, err := c.inner.Register(ctx, subject, hash, did)
	if err == nil {
		c.invalidate(ctx, subject)
	}
	return ref, err
}

func (c *Cached) Update(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	ref, err := c.inner.Update(ctx, subject, hash, did)
	if err == nil {
		c.invalidate(ctx, subject)
	}
	return ref, err
}

func (c *Cached) RegisterNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	ref, err := c.inner.RegisterNoWait(ctx, subject, hash, did)
	if err == nil {
		c.invalidate(ctx, subject)
	}
	return ref, err
}

func (c *Cached) UpdateNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	ref, err := c.inner.UpdateNoWait(ctx, subject, hash, did)
	if err == nil {
		c.invalidate(ctx, subject)
	}
	return ref, err
}

func (c *Cached) GetLatest(ctx context.Context, subject domain.SubjectID) (*anchorcontract.Anchor, error) {
	key := anchorKeyPrefix + subject.String()
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var anchor anchorcontract.Anchor
		if err := json.Unmarshal(data, &anchor); err == nil {
			return &anchor, nil
		}
		// Corrupt cache entry; fall through to the ledger and overwrite.
	} else if !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.Warn("anchor cache read failed", "error", err, "subject", subject)
	}

	anchor, err := c.inner.GetLatest(ctx, subject)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(anchor); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Warn("anchor cache write failed", "error", err, "subject", subject)
		}
	}
	return anchor, nil
}

func (c *Cached) invalidate(ctx context.Context, subject domain.SubjectID) {
	if err := c.client.Del(ctx, anchorKeyPrefix+subject.String()).Err(); err != nil && c.logger != nil {
		c.logger.Warn("anchor cache invalidation failed", "error", fmt.Errorf("del: %w", err), "subject", subject)
	}
}
