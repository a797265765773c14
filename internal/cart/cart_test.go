package cart

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &Store{Redis: client}, mr
}

func item(trackID int64, title, price string) Item {
	return Item{
		TrackID: trackID,
		Title:   title,
		Price:   decimal.RequireFromString(price),
		License: LicenseShared,
	}
}

func TestStoreAddGet(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, item(42, "Night Drive", "9.99")))
	require.NoError(t, s.Add(ctx, 1, item(7, "Sunrise", "4.50")))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].TrackID)
	assert.Equal(t, int64(42), got[1].TrackID)
	assert.True(t, got[1].Price.Equal(decimal.RequireFromString("9.99")))
}

func TestStoreAddOverwritesSameTrack(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, item(42, "Night Drive", "9.99")))
	require.NoError(t, s.Add(ctx, 1, item(42, "Night Drive", "7.99")))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("7.99")))
}

func TestStoreGetEmpty(t *testing.T) {
	s, _ := newStore(t)

	got, err := s.Get(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreRemove(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, item(42, "Night Drive", "9.99")))
	require.NoError(t, s.Add(ctx, 1, item(7, "Sunrise", "4.50")))
	require.NoError(t, s.Remove(ctx, 1, 42))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].TrackID)

	// removing an absent track is not an error
	require.NoError(t, s.Remove(ctx, 1, 1000))
}

func TestStoreClear(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, item(42, "Night Drive", "9.99")))
	require.NoError(t, s.Clear(ctx, 1))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, mr.Exists("cart:1"))
}

func TestStoreIsolatedPerUser(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, item(42, "Night Drive", "9.99")))
	require.NoError(t, s.Add(ctx, 2, item(7, "Sunrise", "4.50")))
	require.NoError(t, s.Clear(ctx, 1))

	got, err := s.Get(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].TrackID)
}

func TestValidLicense(t *testing.T) {
	assert.True(t, ValidLicense(LicenseShared))
	assert.True(t, ValidLicense(LicenseExclusive))
	assert.False(t, ValidLicense("exclusive"))
	assert.False(t, ValidLicense(""))
}
