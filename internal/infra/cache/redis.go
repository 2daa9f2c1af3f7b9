package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace/internal/usecase"

	"github.com/redis/go-redis/v9"
)

const (
	// カートサマリのキャッシュ: cart:{buyer_id}
	keyCartSummary = "cart:%d"
)

var ttlCartSummary = 15 * time.Minute

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// カートサマリのキャッシュ。失敗はミス扱いにしてDBへ流す。
type CartSummaryCache struct {
	rdb *redis.Client
}

func NewCartSummaryCache(rdb *redis.Client) *CartSummaryCache {
	return &CartSummaryCache{rdb: rdb}
}

func (c *CartSummaryCache) GetSummary(ctx context.Context, buyerID int64) (usecase.CartSummary, bool) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(keyCartSummary, buyerID)).Bytes()
	if err != nil {
		return usecase.CartSummary{}, false
	}

	var s usecase.CartSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return usecase.CartSummary{}, false
	}
	return s, true
}

func (c *CartSummaryCache) SetSummary(ctx context.Context, buyerID int64, s usecase.CartSummary) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, fmt.Sprintf(keyCartSummary, buyerID), raw, ttlCartSummary).Err()
}

func (c *CartSummaryCache) Invalidate(ctx context.Context, buyerID int64) {
	_ = c.rdb.Del(ctx, fmt.Sprintf(keyCartSummary, buyerID)).Err()
}
