package main

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealody/internal/area"
	"mealody/internal/areacache"
	"mealody/internal/gourmet"
	"mealody/internal/logger"
	"mealody/internal/shop"
)

var (
	kanto = area.NewService("SS10", "関東", nil)
	tokyo = area.NewLarge("Z011", "東京", kanto)
	kana  = area.NewLarge("Z012", "神奈川", kanto)
)

type fakeRemote struct{ failMiddle string }

func (fakeRemote) SearchShops(context.Context, url.Values) (*shop.Results, error) {
	return &shop.Results{}, nil
}

func (fakeRemote) LargeAreas(context.Context) ([]area.Area, error) {
	return []area.Area{tokyo, kana}, nil
}

func (fakeRemote) MiddleAreas(_ context.Context, _, large string) ([]area.Area, error) {
	switch large {
	case "Z011":
		return []area.Area{area.NewMiddle("Y005", "新宿", tokyo), area.NewMiddle("Y010", "渋谷", tokyo)}, nil
	case "Z012":
		return []area.Area{area.NewMiddle("Y100", "横浜", kana)}, nil
	}
	return nil, nil
}

func (f fakeRemote) SmallAreas(_ context.Context, _, middle string) ([]area.Area, error) {
	if middle == f.failMiddle {
		return nil, errors.New("boom")
	}
	return []area.Area{area.NewSmall("X"+middle[1:], "small "+middle, area.NewMiddle(middle, middle, tokyo))}, nil
}

func newClient(t *testing.T, f fakeRemote) (*gourmet.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return gourmet.New(f, gourmet.WithAreaStore(areacache.New(rc, time.Hour)), gourmet.WithLogger(logger.Discard())), mr
}

func TestSyncAllLargeAreas(t *testing.T) {
	logger.Set(logger.Discard())
	client, mr := newClient(t, fakeRemote{})

	n, err := syncTiers(context.Background(), client, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, k := range []string{"area:large:", "area:middle:Z011", "area:middle:Z012", "area:small:Y005", "area:small:Y010", "area:small:Y100"} {
		assert.True(t, mr.Exists(k), k)
	}
}

func TestSyncSelectedLargeArea(t *testing.T) {
	logger.Set(logger.Discard())
	client, mr := newClient(t, fakeRemote{})

	n, err := syncTiers(context.Background(), client, []string{"Z012"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("area:small:Y100"))
	assert.False(t, mr.Exists("area:middle:Z011"))
}

func TestSyncStopsOnError(t *testing.T) {
	logger.Set(logger.Discard())
	client, _ := newClient(t, fakeRemote{failMiddle: "Y010"})

	_, err := syncTiers(context.Background(), client, []string{"Z011"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "middle Y010")
}
