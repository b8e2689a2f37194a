// 包 geocode：基于 Nominatim 兼容接口的逆地理编码（坐标 → 行政地址）
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mealody/internal/logger"
	"mealody/internal/metrics"
	"mealody/internal/resolver"
)

// ErrGeocode：上游返回非 2xx 或业务错误
var ErrGeocode = errors.New("reverse geocode failed")

const userAgent = "mealody/1.0"

// reverseResponse：只解析行政层级字段
type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		Province      string `json:"province"`
		State         string `json:"state"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		County        string `json:"county"`
		Quarter       string `json:"quarter"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
	} `json:"address"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// 文档注释：Nominatim 逆地理编码客户端
// 背景：日本地址按 都道府県 / 市区町村 / 町域 三级映射到 resolver.Address，名称取日语。
// 约束：不做重试与缓存；超时由调用方通过 resolver.WithTimeout 统一控制。
type Nominatim struct {
	base string
	hc   *http.Client
}

// New：hc 为空时使用 5s 超时的默认客户端
func New(baseURL string, hc *http.Client) *Nominatim {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Nominatim{base: strings.TrimSuffix(baseURL, "/"), hc: hc}
}

// ReverseGeocode：无结果时返回 (nil, nil)
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lng float64) (*resolver.Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", "16")
	q.Set("accept-language", "ja")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.base+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	t0 := time.Now()
	resp, err := n.hc.Do(req)
	if err != nil {
		logger.L().Warn("geocode_http_error", "err", err)
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.GeocodeDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: status %d", ErrGeocode, resp.StatusCode)
	}
	var r reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.L().Warn("geocode_decode_error", "err", err)
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrGeocode, err)
	}
	a := r.Address
	addr := resolver.Address{
		AdminArea:   firstNonEmpty(a.Province, a.State),
		Locality:    firstNonEmpty(a.City, a.Town, a.Village, a.County),
		SubLocality: firstNonEmpty(a.Quarter, a.Suburb, a.Neighbourhood),
	}
	if r.Error != "" || addr.IsZero() {
		metrics.GeocodeRequestsTotal.WithLabelValues("empty").Inc()
		logger.L().Debug("geocode_empty", "lat", lat, "lng", lng, "error", r.Error)
		return nil, nil
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("ok").Inc()
	logger.L().Debug("geocode_resp", "admin", addr.AdminArea, "locality", addr.Locality, "sub", addr.SubLocality)
	return &addr, nil
}
