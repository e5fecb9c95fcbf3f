package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// opportunityTTL matches the detector's in-process retention so external
// readers never see an opportunity the scanner itself has already pruned.
const opportunityTTL = 2 * time.Minute

// OpportunityCache implements domain.OpportunityCache, holding the latest
// arbitrage opportunity per market as JSON at "flashscan:opp:{marketID}".
type OpportunityCache struct {
	rdb *redis.Client
}

// NewOpportunityCache creates an OpportunityCache backed by the given Client.
func NewOpportunityCache(c *Client) *OpportunityCache {
	return &OpportunityCache{rdb: c.Underlying()}
}

var _ domain.OpportunityCache = (*OpportunityCache)(nil)

func oppKey(marketID string) string {
	return keyPrefix + "opp:" + marketID
}

// Set stores the latest opportunity for its market, replacing any previous
// one.
func (oc *OpportunityCache) Set(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	data, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("redis: marshal opportunity %s: %w", opp.MarketID, err)
	}
	if err := oc.rdb.Set(ctx, oppKey(opp.MarketID), data, opportunityTTL).Err(); err != nil {
		return fmt.Errorf("redis: set opportunity %s: %w", opp.MarketID, err)
	}
	return nil
}

// Get retrieves the cached opportunity for a market. It returns
// domain.ErrNotFound when none is cached.
func (oc *OpportunityCache) Get(ctx context.Context, marketID string) (domain.ArbitrageOpportunity, error) {
	data, err := oc.rdb.Get(ctx, oppKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ArbitrageOpportunity{}, domain.ErrNotFound
		}
		return domain.ArbitrageOpportunity{}, fmt.Errorf("redis: get opportunity %s: %w", marketID, err)
	}

	var opp domain.ArbitrageOpportunity
	if err := json.Unmarshal(data, &opp); err != nil {
		return domain.ArbitrageOpportunity{}, fmt.Errorf("redis: unmarshal opportunity %s: %w", marketID, err)
	}
	return opp, nil
}

// Delete removes the cached opportunity for a market. Deleting a missing key
// is not an error.
func (oc *OpportunityCache) Delete(ctx context.Context, marketID string) error {
	if err := oc.rdb.Del(ctx, oppKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: delete opportunity %s: %w", marketID, err)
	}
	return nil
}
