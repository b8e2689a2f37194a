package hotpepper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealody/internal/area"
)

const gourmetBody = `{"results":{
  "api_version":"1.30",
  "results_available":25,
  "results_returned":"2",
  "results_start":1,
  "shop":[
    {"id":"J001","name":"居酒屋 一","address":"東京都新宿区歌舞伎町1","lat":35.69,"lng":139.70,
     "genre":{"code":"G001","name":"居酒屋","catch":""},
     "catch":"駅近","urls":{"pc":"https://example.com/J001"},
     "photo":{"pc":{"l":"l.jpg","m":"m.jpg","s":"s.jpg"},"mobile":{"l":"ml.jpg","s":"ms.jpg"}},
     "open":"17:00&#12316;23:00","close":"",
     "capacity":"40","party_capacity":"応相談",
     "large_service_area":{"code":"SS10","name":"関東"},
     "large_area":{"code":"Z011","name":"東京"},
     "middle_area":{"code":"Y005","name":"新宿"},
     "small_area":{"code":"X010","name":"歌舞伎町"}},
    {"id":"J002","name":"二","address":"a","lat":35.7,"lng":139.71,
     "genre":{"code":"G002","name":"和食"},"catch":"","urls":{"pc":"u"},"photo":{"pc":{"l":"l","s":"s"}}}
  ]}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key", srv.Client())
}

func TestSearchShops_DecodesLeniently(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(gourmetBody))
	})

	res, err := c.SearchShops(context.Background(), url.Values{"keyword": {"居酒屋"}})
	require.NoError(t, err)
	assert.Equal(t, "/gourmet/v1/", gotPath)
	assert.Equal(t, "test-key", gotQuery.Get("key"))
	assert.Equal(t, "json", gotQuery.Get("format"))
	assert.Equal(t, "居酒屋", gotQuery.Get("keyword"))

	assert.Equal(t, 25, res.Available)
	assert.Equal(t, 2, res.Returned)
	assert.Equal(t, 1, res.Start)
	require.Len(t, res.Shops, 2)

	s := res.Shops[0]
	assert.Equal(t, "J001", s.ID)
	require.NotNil(t, s.Open)
	assert.Equal(t, "17:00〜23:00", *s.Open)
	assert.Nil(t, s.Close)
	require.NotNil(t, s.Capacity)
	assert.Equal(t, 40, *s.Capacity)
	assert.Nil(t, s.PartyCapacity)
	assert.Equal(t, "ms.jpg", s.SmallImageURL())

	chain, ok := s.AreaChain()
	require.True(t, ok)
	assert.Equal(t, "関東 東京 新宿 歌舞伎町", chain.FullName())

	_, ok = res.Shops[1].AreaChain()
	assert.False(t, ok)
}

func TestSearchShops_APIErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"api_version":"1.30","error":[{"message":"APIキーまたはIPアドレスの認証エラーです","code":2000}]}}`))
	})
	_, err := c.SearchShops(context.Background(), url.Values{})
	require.Error(t, err)
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 2000, ae.Code)
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestSearchShops_Non2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.SearchShops(context.Background(), url.Values{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusServiceUnavailable, ae.Status)
}

func TestSearchShops_Malformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":`))
	})
	_, err := c.SearchShops(context.Background(), url.Values{})
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestSearchShops_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := New(srv.URL, "k", srv.Client())
	srv.Close()
	_, err := c.SearchShops(context.Background(), url.Values{})
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestMissingKey(t *testing.T) {
	c := New("http://127.0.0.1:1", "", nil)
	_, err := c.LargeAreas(context.Background())
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestAreaEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/large_area/v1/":
			_, _ = w.Write([]byte(`{"results":{"large_area":[
			  {"code":"Z011","name":"東京","service_area":{"code":"SA11","name":"東京"},"large_service_area":{"code":"SS10","name":"関東"}},
			  {"code":"Z023","name":"大阪","service_area":{"code":"SA23","name":"大阪"},"large_service_area":{"code":"SS40","name":"関西"}}]}}`))
		case "/middle_area/v1/":
			assert.Equal(t, "Z011", r.URL.Query().Get("large_area"))
			_, _ = w.Write([]byte(`{"results":{"middle_area":[
			  {"code":"Y005","name":"新宿","large_area":{"code":"Z011","name":"東京"},"service_area":{"code":"SA11","name":"東京"},"large_service_area":{"code":"SS10","name":"関東"}}]}}`))
		case "/small_area/v1/":
			assert.Equal(t, "X010", r.URL.Query().Get("small_area"))
			_, _ = w.Write([]byte(`{"results":{"small_area":[
			  {"code":"X010","name":"歌舞伎町","middle_area":{"code":"Y005","name":"新宿"},"large_area":{"code":"Z011","name":"東京"},"service_area":{"code":"SA11","name":"東京"},"large_service_area":{"code":"SS10","name":"関東"}}]}}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	large, err := c.LargeAreas(ctx)
	require.NoError(t, err)
	require.Len(t, large, 2)
	assert.Equal(t, area.Large, large[0].Kind)
	assert.Equal(t, "SS10", large[0].ParentCode())
	assert.Equal(t, area.Service, large[0].Parent.Kind)

	mid, err := c.MiddleAreas(ctx, "", "Z011")
	require.NoError(t, err)
	require.Len(t, mid, 1)
	assert.Equal(t, "関東 東京 新宿", mid[0].FullName())

	small, err := c.SmallAreas(ctx, "X010", "")
	require.NoError(t, err)
	require.Len(t, small, 1)
	assert.Equal(t, "関東 東京 新宿 歌舞伎町", small[0].FullName())
	assert.Equal(t, "SS10", small[0].Root().Code)
}

func TestDecodeCharRefs(t *testing.T) {
	assert.Equal(t, "a〜b", decodeCharRefs("a&#12316;b"))
	assert.Equal(t, "&#0;", decodeCharRefs("&#0;"))
	assert.Equal(t, "plain", decodeCharRefs("plain"))
}
