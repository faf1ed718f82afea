package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CacheSyncer pushes a freshly committed balance to a denormalized read
// model. Sync runs after the settlement transaction commits and is strictly
// best-effort: failures are logged by the caller, never rolled back into the
// money path.
type CacheSyncer interface {
	SyncBalance(ctx context.Context, userID string, available decimal.Decimal) error
}

// RedisCacheSyncer keeps the read-model balance in a plain redis key.
type RedisCacheSyncer struct {
	RDB *redis.Client

	// TTL bounds staleness if a wallet goes quiet; zero means no expiry.
	TTL time.Duration
}

func balanceKey(userID string) string {
	return "wallet:balance:" + userID
}

func (s *RedisCacheSyncer) SyncBalance(ctx context.Context, userID string, available decimal.Decimal) error {
	if s == nil || s.RDB == nil {
		return fmt.Errorf("wallet cache: redis client not configured")
	}
	if userID == "" {
		return fmt.Errorf("wallet cache: user id required")
	}
	return s.RDB.Set(ctx, balanceKey(userID), available.String(), s.TTL).Err()
}

// NopCacheSyncer is used where no read cache is deployed (tests, local).
type NopCacheSyncer struct{}

func (NopCacheSyncer) SyncBalance(context.Context, string, decimal.Decimal) error { return nil }
