package gatewaywebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/freshmarket/grocery-backend/pkg/redis"
)

// GuardScope namespaces webhook delivery marks in redis.
const GuardScope = "payment_webhook"

// IdempotencyGuard marks webhook deliveries so retries are processed once.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if strings.TrimSpace(scope) == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark reports whether the delivery was already seen, marking it otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, errors.New("delivery id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, deliveryID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete clears the mark so a gateway retry is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, deliveryID))
}

// DeliveryID prefers the gateway's event id header and falls back to a digest
// of the raw body.
func DeliveryID(headerValue string, body []byte) string {
	if id := strings.TrimSpace(headerValue); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
