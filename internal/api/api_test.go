package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealody/internal/area"
	"mealody/internal/favorites"
	"mealody/internal/gourmet"
	"mealody/internal/locate"
	"mealody/internal/logger"
	"mealody/internal/query"
	"mealody/internal/resolver"
	"mealody/internal/session"
	"mealody/internal/shop"
	"mealody/internal/store"
)

func init() { logger.Set(logger.Discard()) }

var (
	kanto  = area.NewService("SS10", "関東", nil)
	tokyo  = area.NewLarge("Z011", "東京", kanto)
	shinju = area.NewMiddle("Y005", "新宿", tokyo)
)

// fakeRemote：25 家店铺；按 id 检索返回详情名称
type fakeRemote struct{}

func (fakeRemote) SearchShops(_ context.Context, p url.Values) (*shop.Results, error) {
	if ids := p.Get("id"); ids != "" {
		var out []shop.Shop
		for _, id := range strings.Split(ids, ",") {
			if n, err := strconv.Atoi(strings.TrimPrefix(id, "J")); err == nil && n >= 1 && n <= 25 {
				out = append(out, shop.Shop{ID: id, Name: "detail " + id, Lat: 35.69, Lng: 139.69})
			}
		}
		return &shop.Results{Available: len(out), Returned: len(out), Start: 1, Shops: out}, nil
	}
	start, count := 1, 10
	if s := p.Get("start"); s != "" {
		start, _ = strconv.Atoi(s)
	}
	if c := p.Get("count"); c != "" {
		count, _ = strconv.Atoi(c)
	}
	var out []shop.Shop
	for i := start; i < start+count && i <= 25; i++ {
		id := fmt.Sprintf("J%03d", i)
		out = append(out, shop.Shop{ID: id, Name: "lite " + id})
	}
	return &shop.Results{Available: 25, Returned: len(out), Start: start, Shops: out}, nil
}

func (fakeRemote) LargeAreas(context.Context) ([]area.Area, error) { return []area.Area{tokyo}, nil }

func (fakeRemote) MiddleAreas(_ context.Context, middle, large string) ([]area.Area, error) {
	if large == "Z011" || middle == "Y005" {
		return []area.Area{shinju}, nil
	}
	return nil, nil
}

func (fakeRemote) SmallAreas(_ context.Context, small, middle string) ([]area.Area, error) {
	if middle == "Y005" || small == "X010" {
		return []area.Area{area.NewSmall("X010", "西新宿", shinju)}, nil
	}
	return nil, nil
}

type fakeLocator struct{ loc locate.Location }

func (f fakeLocator) Lookup(string) (locate.Location, bool) { return f.loc, f.loc.Resolved }

type fakeNotes struct {
	saved []store.Entity
	notes map[int]*store.Note
	next  int
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{notes: map[int]*store.Note{1: {ID: 1, Name: "お気に入り", ShopIDs: []string{}}}, next: 2}
}

func (f *fakeNotes) SaveShop(_ context.Context, e store.Entity) error {
	f.saved = append(f.saved, e)
	return nil
}

func (f *fakeNotes) Notes(context.Context) ([]store.Note, error) {
	var out []store.Note
	for _, n := range f.notes {
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeNotes) Note(_ context.Context, id int) (*store.Note, error) { return f.notes[id], nil }

func (f *fakeNotes) CreateNote(_ context.Context, name string) (int, error) {
	id := f.next
	f.next++
	f.notes[id] = &store.Note{ID: id, Name: name, ShopIDs: []string{}}
	return id, nil
}

func (f *fakeNotes) RenameNote(_ context.Context, id int, name string) error {
	n, ok := f.notes[id]
	if !ok {
		return store.ErrNoteNotFound
	}
	n.Name = name
	return nil
}

func (f *fakeNotes) DeleteNote(_ context.Context, id int) error {
	if !store.IsNoteDeletable(id) {
		return store.ErrNoteNotDeletable
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeNotes) AddShopToNote(_ context.Context, id int, shopID string) error {
	if n, ok := f.notes[id]; ok {
		n.ShopIDs = append(n.ShopIDs, shopID)
	}
	return nil
}

func (f *fakeNotes) RemoveShopFromNote(context.Context, int, string) error { return nil }

func (f *fakeNotes) OrderedShopsForNote(_ context.Context, id int) ([]store.Entity, error) {
	var out []store.Entity
	for _, sid := range f.notes[id].ShopIDs {
		out = append(out, store.Entity{ID: sid})
	}
	return out, nil
}

type testEnv struct {
	mux   *http.ServeMux
	deps  Deps
	notes *fakeNotes
}

func newEnv(t *testing.T, mod func(*Deps)) *testEnv {
	t.Helper()
	client := gourmet.New(fakeRemote{}, gourmet.WithLogger(logger.Discard()))
	sessions := NewSessions(func() *session.Session {
		return session.New(client, session.WithLogger(logger.Discard()))
	}, time.Hour)
	t.Cleanup(sessions.Close)
	notes := newFakeNotes()
	d := Deps{
		Client:    client,
		Resolver:  resolver.New(client),
		Sessions:  sessions,
		Notes:     notes,
		Favorites: favorites.New(nil, nil),
	}
	if mod != nil {
		mod(&d)
	}
	return &testEnv{mux: BuildRoutes(d), deps: d, notes: notes}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	var out map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr, out
}

func TestSessionFlow(t *testing.T) {
	env := newEnv(t, nil)

	rr, body := env.do(t, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	id := body["id"].(string)
	base := "/sessions/" + id

	rr, body = env.do(t, http.MethodPost, base+"/search?keyword=ramen", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "success", body["state"])
	assert.EqualValues(t, 10, body["stored_shops"])
	assert.Equal(t, true, body["has_more"])

	rr, body = env.do(t, http.MethodPost, base+"/more", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 20, body["stored_shops"])
	assert.Len(t, body["results"], 20)

	rr, body = env.do(t, http.MethodPost, base+"/select/J003", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "detail J003", body["shop"].(map[string]any)["name"])

	_, body = env.do(t, http.MethodGet, "/history", "")
	require.Len(t, body["shops"], 1)

	rr, body = env.do(t, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "initial", body["state"])

	rr, _ = env.do(t, http.MethodPost, base+"/more", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = env.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr, _ = env.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearchValidation(t *testing.T) {
	env := newEnv(t, nil)
	_, body := env.do(t, http.MethodPost, "/sessions", "")
	base := "/sessions/" + body["id"].(string)

	rr, _ := env.do(t, http.MethodPost, base+"/search", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr, _ = env.do(t, http.MethodPost, base+"/search?keyword=x&count=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = env.do(t, http.MethodPost, "/sessions/not-a-uuid/search?keyword=x", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNearbySearchUsesGeoIP(t *testing.T) {
	env := newEnv(t, nil)
	_, body := env.do(t, http.MethodPost, "/sessions", "")
	base := "/sessions/" + body["id"].(string)
	rr, _ := env.do(t, http.MethodPost, base+"/search?near=ip", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	env = newEnv(t, func(d *Deps) {
		d.Locator = fakeLocator{locate.Location{Lat: 35.69, Lng: 139.7, Resolved: true}}
	})
	_, body = env.do(t, http.MethodPost, "/sessions", "")
	base = "/sessions/" + body["id"].(string)
	rr, body = env.do(t, http.MethodPost, base+"/search?near=ip&range=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	lq := body["last_query"].(map[string]any)
	assert.InDelta(t, 35.69, lq["lat"], 1e-9)
}

func TestShopRoutes(t *testing.T) {
	env := newEnv(t, nil)

	rr, body := env.do(t, http.MethodGet, "/shops/J007", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "J007", body["shop"].(map[string]any)["id"])

	rr, _ = env.do(t, http.MethodGet, "/shops/J999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, body = env.do(t, http.MethodGet, "/shops?ids=J001,J002,J999", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["shops"], 2)

	rr, _ = env.do(t, http.MethodGet, "/shops", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestShopArea(t *testing.T) {
	env := newEnv(t, nil)
	rr, _ := env.do(t, http.MethodGet, "/shops/J005/area", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	env = newEnv(t, func(d *Deps) {
		geo := resolver.GeocoderFunc(func(context.Context, float64, float64) (*resolver.Address, error) {
			return &resolver.Address{AdminArea: "東京都", Locality: "新宿区", SubLocality: "西新宿一丁目"}, nil
		})
		d.Resolver = resolver.New(d.Client, resolver.WithGeocoder(geo))
	})
	rr, body := env.do(t, http.MethodGet, "/shops/J005/area", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "X010", body["area"].(map[string]any)["code"])

	rr, _ = env.do(t, http.MethodGet, "/shops/J500/area", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAreaRoutes(t *testing.T) {
	env := newEnv(t, nil)

	rr, body := env.do(t, http.MethodGet, "/areas", "")
	require.Equal(t, http.StatusOK, rr.Code)
	areas := body["areas"].([]any)
	require.Len(t, areas, 1)
	assert.Equal(t, "SS10", areas[0].(map[string]any)["code"])

	rr, body = env.do(t, http.MethodGet, "/areas/Y005", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "関東 東京 新宿", body["full_name"])
	assert.Equal(t, "Z011", body["parent_code"])

	rr, body = env.do(t, http.MethodGet, "/areas/Z011/children", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["areas"], 1)

	rr, _ = env.do(t, http.MethodGet, "/areas/Q1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = env.do(t, http.MethodPost, "/areas/cache/clear", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestResolve(t *testing.T) {
	env := newEnv(t, nil)

	rr, body := env.do(t, http.MethodGet, "/resolve?admin="+url.QueryEscape("東京都")+"&locality="+url.QueryEscape("新宿区")+"&sub="+url.QueryEscape("西新宿"), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "X010", body["area"].(map[string]any)["code"])

	rr, _ = env.do(t, http.MethodGet, "/resolve?admin="+url.QueryEscape("大阪府")+"&locality=x", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = env.do(t, http.MethodGet, "/resolve", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	env = newEnv(t, func(d *Deps) {
		d.Locator = fakeLocator{locate.Location{Lat: 35.69, Lng: 139.69, Resolved: true,
			Address: resolver.Address{AdminArea: "東京都", Locality: "新宿区"}}}
	})
	rr, body = env.do(t, http.MethodGet, "/resolve", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "X010", body["area"].(map[string]any)["code"])
}

func TestFavorites(t *testing.T) {
	env := newEnv(t, nil)

	rr, body := env.do(t, http.MethodPut, "/favorites/J004", `{"level": 9}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 3, body["level"])
	require.Len(t, env.notes.saved, 1)
	assert.Equal(t, 3, env.notes.saved[0].FavLevel)

	_, body = env.do(t, http.MethodGet, "/favorites/J004", "")
	assert.EqualValues(t, 3, body["level"])

	rr, _ = env.do(t, http.MethodPut, "/favorites/J004", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	env = newEnv(t, func(d *Deps) { d.Favorites = nil })
	rr, _ = env.do(t, http.MethodGet, "/favorites", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestNotes(t *testing.T) {
	env := newEnv(t, nil)

	rr, body := env.do(t, http.MethodPost, "/notes", `{"name": "デート"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := int(body["id"].(float64))
	path := "/notes/" + strconv.Itoa(id)

	rr, _ = env.do(t, http.MethodPut, path+"/shops/J001", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr, body = env.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["shops"], 1)
	assert.Equal(t, true, body["deletable"])

	rr, _ = env.do(t, http.MethodPatch, path, `{"name": ""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr, _ = env.do(t, http.MethodPatch, "/notes/42", `{"name": "x"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = env.do(t, http.MethodDelete, "/notes/1", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr, _ = env.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr, _ = env.do(t, http.MethodGet, "/notes/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	env = newEnv(t, func(d *Deps) { d.Notes = nil })
	rr, _ = env.do(t, http.MethodPut, "/notes/1/shops/J1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", gourmet.ErrValidation), http.StatusBadRequest},
		{query.ErrBadParam, http.StatusBadRequest},
		{gourmet.ErrNotFound, http.StatusNotFound},
		{store.ErrNoteNotFound, http.StatusNotFound},
		{gourmet.ErrInvalidState, http.StatusConflict},
		{session.ErrBusy, http.StatusConflict},
		{store.ErrNoteNotDeletable, http.StatusConflict},
		{fmt.Errorf("x: %w", gourmet.ErrNetwork), http.StatusBadGateway},
		{gourmet.ErrDecode, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestSessionsSweep(t *testing.T) {
	client := gourmet.New(fakeRemote{}, gourmet.WithLogger(logger.Discard()))
	reg := NewSessions(func() *session.Session { return session.New(client) }, time.Minute)
	cur := time.Unix(1000, 0)
	reg.now = func() time.Time { return cur }

	idA, _ := reg.Create()
	idB, _ := reg.Create()
	cur = cur.Add(45 * time.Second)
	_, ok := reg.Get(idB)
	require.True(t, ok)
	cur = cur.Add(30 * time.Second)

	assert.Equal(t, 1, reg.Sweep())
	_, ok = reg.Get(idA)
	assert.False(t, ok)
	_, ok = reg.Get(idB)
	assert.True(t, ok)

	assert.True(t, reg.Remove(idB))
	assert.False(t, reg.Remove(idB))
	assert.Equal(t, 0, reg.Len())
	reg.Close()
}
