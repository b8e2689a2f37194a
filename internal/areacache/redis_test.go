package areacache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealody/internal/area"
	"mealody/internal/logger"
)

func init() { logger.Set(logger.Discard()) }

func newStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return New(rc, time.Hour), mr
}

func TestSaveLoadRoundTripKeepsChain(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	top := area.NewService("SS10", "関東", nil)
	ss := area.NewService("SA11", "東京", &top)
	z := area.NewLarge("Z011", "東京", ss)
	y := area.NewMiddle("Y005", "新宿", z)
	list := []area.Area{area.NewSmall("X010", "西新宿", y), area.NewSmall("X011", "新宿三丁目", y)}

	s.SaveTier(ctx, area.Small, "Y005", list)
	assert.True(t, mr.Exists("area:small:Y005"))
	assert.Equal(t, time.Hour, mr.TTL("area:small:Y005"))

	got, ok := s.LoadTier(ctx, area.Small, "Y005")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, list, got)
	assert.Equal(t, "関東 東京 東京 新宿 西新宿", got[0].FullName())
	assert.Equal(t, area.Service, got[0].Root().Kind)
}

func TestLoadMissAndCorrupt(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	_, ok := s.LoadTier(ctx, area.Large, "")
	assert.False(t, ok)

	require.NoError(t, mr.Set("area:large:", "{not json"))
	_, ok = s.LoadTier(ctx, area.Large, "")
	assert.False(t, ok)

	s.SaveTier(ctx, area.Middle, "Z011", nil)
	assert.False(t, mr.Exists("area:middle:Z011"))
}

func TestClear(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	z := area.NewLarge("Z011", "東京", area.NewService("SS10", "関東", nil))

	s.SaveTier(ctx, area.Large, "", []area.Area{z})
	s.SaveTier(ctx, area.Middle, "Z011", []area.Area{area.NewMiddle("Y005", "新宿", z)})
	require.NoError(t, mr.Set("other", "keep"))

	require.NoError(t, s.Clear(ctx))
	assert.False(t, mr.Exists("area:large:"))
	assert.False(t, mr.Exists("area:middle:Z011"))
	assert.True(t, mr.Exists("other"))
}

func TestNilClient(t *testing.T) {
	s := New(nil, 0)
	ctx := context.Background()
	s.SaveTier(ctx, area.Large, "", []area.Area{{Code: "Z011"}})
	_, ok := s.LoadTier(ctx, area.Large, "")
	assert.False(t, ok)
	assert.NoError(t, s.Clear(ctx))
}

func TestUnavailableRedisIsMiss(t *testing.T) {
	s, mr := newStore(t)
	mr.Close()
	_, ok := s.LoadTier(context.Background(), area.Large, "")
	assert.False(t, ok)
}
