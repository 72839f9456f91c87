package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wagerhouse/bookd/internal/domain"
)

const oddsTTL = 5 * time.Minute

// OddsCache implements domain.OddsCache using Redis hashes with a
// JSON-serialized odds sheet and the market's lifecycle state alongside.
//
// Key schema:
//
//	odds:{market_id} - hash with fields "sheet" (JSON) and "state"
type OddsCache struct {
	rdb *redis.Client
}

// NewOddsCache creates an OddsCache backed by the given Client.
func NewOddsCache(c *Client) *OddsCache {
	return &OddsCache{rdb: c.Underlying()}
}

func oddsKey(marketID string) string { return "odds:" + marketID }

// Set stores a market's odds sheet and state with a 5-minute TTL.
func (oc *OddsCache) Set(ctx context.Context, marketID string, sheet domain.OddsSheet, state domain.MarketState) error {
	data, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("redis: marshal odds %s: %w", marketID, err)
	}

	key := oddsKey(marketID)

	pipe := oc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "sheet", data, "state", string(state))
	pipe.Expire(ctx, key, oddsTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set odds %s: %w", marketID, err)
	}
	return nil
}

// Get retrieves a market's cached odds sheet and state.
// It returns domain.ErrNotFound when the key does not exist.
func (oc *OddsCache) Get(ctx context.Context, marketID string) (domain.OddsSheet, domain.MarketState, error) {
	vals, err := oc.rdb.HMGet(ctx, oddsKey(marketID), "sheet", "state").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OddsSheet{}, "", domain.ErrNotFound
		}
		return domain.OddsSheet{}, "", fmt.Errorf("redis: get odds %s: %w", marketID, err)
	}

	raw, ok := vals[0].(string)
	if !ok || raw == "" {
		return domain.OddsSheet{}, "", domain.ErrNotFound
	}

	var sheet domain.OddsSheet
	if err := json.Unmarshal([]byte(raw), &sheet); err != nil {
		return domain.OddsSheet{}, "", fmt.Errorf("redis: unmarshal odds %s: %w", marketID, err)
	}

	state := ""
	if s, ok := vals[1].(string); ok {
		state = s
	}
	return sheet, domain.MarketState(state), nil
}

// Invalidate removes a market's cached odds.
func (oc *OddsCache) Invalidate(ctx context.Context, marketID string) error {
	if err := oc.rdb.Del(ctx, oddsKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate odds %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OddsCache = (*OddsCache)(nil)
