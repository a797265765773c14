package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/beatgrid/order-service/internal/redisx"
)

// License kinds a track can be sold under. SHARED tracks can be bought by any
// number of users; EXCLUSIVE tracks contend for remaining stock at checkout.
const (
	LicenseShared    = "SHARED"
	LicenseExclusive = "EXCLUSIVE"
)

func ValidLicense(kind string) bool {
	return kind == LicenseShared || kind == LicenseExclusive
}

// Item is one cart line. Price is the price shown to the user when the item
// was added; checkout rejects the order if the catalog price has moved since.
type Item struct {
	TrackID  int64           `json:"track_id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	License  string          `json:"license"`
	CoverURL string          `json:"cover_url,omitempty"`
}

// Store keeps one Redis hash per user: cart:{user_id}, field = track_id,
// value = Item JSON. Adding an already-present track overwrites the field.
type Store struct {
	Redis *redis.Client
}

func (s *Store) Add(ctx context.Context, userID int64, item Item) error {
	b, err := json.Marshal(item)
	if err != nil {
		return err
	}
	field := strconv.FormatInt(item.TrackID, 10)
	if err := s.Redis.HSet(ctx, key(userID), field, b).Err(); err != nil {
		return fmt.Errorf("cart add: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, userID, trackID int64) error {
	field := strconv.FormatInt(trackID, 10)
	if err := s.Redis.HDel(ctx, key(userID), field).Err(); err != nil {
		return fmt.Errorf("cart remove: %w", err)
	}
	return nil
}

// Get returns the user's cart. A missing key is an empty cart, not an error.
// Items are sorted by track ID only so responses are stable; callers must not
// read meaning into the order.
func (s *Store) Get(ctx context.Context, userID int64) ([]Item, error) {
	entries, err := s.Redis.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart get: %w", err)
	}
	items := make([]Item, 0, len(entries))
	for _, raw := range entries {
		var it Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("cart decode: %w", err)
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TrackID < items[j].TrackID })
	return items, nil
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	if err := s.Redis.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("cart clear: %w", err)
	}
	return nil
}

func key(userID int64) string {
	return fmt.Sprintf(redisx.KeyCart, userID)
}
