// 包 hotpepper：Hotpepper グルメサーチ REST 接口的薄封装（店铺检索与三级区域目录）
package hotpepper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mealody/internal/area"
	"mealody/internal/logger"
	"mealody/internal/metrics"
	"mealody/internal/shop"
)

const (
	DefaultBaseURL = "https://webservice.recruit.co.jp/hotpepper/"

	EndpointGourmet    = "gourmet"
	EndpointLargeArea  = "large_area"
	EndpointMiddleArea = "middle_area"
	EndpointSmallArea  = "small_area"

	maxBody = 8 << 20
)

var (
	// ErrTransport：连接、超时或非 2xx 响应
	ErrTransport = errors.New("hotpepper transport error")
	// ErrDecode：响应体不是预期的 JSON 结构
	ErrDecode = errors.New("hotpepper decode error")
	// ErrMissingKey：未配置 API 密钥
	ErrMissingKey = errors.New("hotpepper: missing api key")
)

// 文档注释：远端返回的错误
// 约束：Status 为 HTTP 状态码（信封内错误时为 200）；Code/Message 来自 results.error[0]。
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 || e.Message != "" {
		return fmt.Sprintf("hotpepper api error: status=%d code=%d %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("hotpepper api error: status=%d", e.Status)
}

// 文档注释：Hotpepper REST 客户端
// 背景：四个只读端点均为 GET + 查询串 + JSON；共享同一 http.Client。
// 约束：密钥以 key 参数发送；每次调用记录指标与 debug 日志；不做重试。
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New：baseURL 为空时使用官方地址；hc 为空时使用 5s 超时的默认客户端
func New(baseURL, key string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: baseURL, key: key, http: hc}
}

// SearchShops：GET gourmet/v1/，params 为已编码的检索条件（key/format 由此处补齐）
func (c *Client) SearchShops(ctx context.Context, params url.Values) (*shop.Results, error) {
	var env gourmetEnvelope
	if err := c.get(ctx, EndpointGourmet, params, &env); err != nil {
		return nil, err
	}
	if err := env.Results.apiError(); err != nil {
		return nil, err
	}
	return env.Results.toResults(), nil
}

// LargeAreas：GET large_area/v1/，返回全部都道府県（父链为大服务区）
func (c *Client) LargeAreas(ctx context.Context) ([]area.Area, error) {
	var env struct {
		Results struct {
			errorFields
			LargeArea []largeAreaRecord `json:"large_area"`
		} `json:"results"`
	}
	if err := c.get(ctx, EndpointLargeArea, url.Values{}, &env); err != nil {
		return nil, err
	}
	if err := env.Results.apiError(); err != nil {
		return nil, err
	}
	out := make([]area.Area, 0, len(env.Results.LargeArea))
	for _, r := range env.Results.LargeArea {
		out = append(out, r.toArea())
	}
	return out, nil
}

// MiddleAreas：GET middle_area/v1/，可按自身编码或所属都道府県编码过滤（均可为空）
func (c *Client) MiddleAreas(ctx context.Context, middleCode, largeCode string) ([]area.Area, error) {
	p := url.Values{}
	if middleCode != "" {
		p.Set("middle_area", middleCode)
	}
	if largeCode != "" {
		p.Set("large_area", largeCode)
	}
	var env struct {
		Results struct {
			errorFields
			MiddleArea []middleAreaRecord `json:"middle_area"`
		} `json:"results"`
	}
	if err := c.get(ctx, EndpointMiddleArea, p, &env); err != nil {
		return nil, err
	}
	if err := env.Results.apiError(); err != nil {
		return nil, err
	}
	out := make([]area.Area, 0, len(env.Results.MiddleArea))
	for _, r := range env.Results.MiddleArea {
		out = append(out, r.toArea())
	}
	return out, nil
}

// SmallAreas：GET small_area/v1/，可按自身编码或所属市区町村编码过滤
func (c *Client) SmallAreas(ctx context.Context, smallCode, middleCode string) ([]area.Area, error) {
	p := url.Values{}
	if smallCode != "" {
		p.Set("small_area", smallCode)
	}
	if middleCode != "" {
		p.Set("middle_area", middleCode)
	}
	var env struct {
		Results struct {
			errorFields
			SmallArea []smallAreaRecord `json:"small_area"`
		} `json:"results"`
	}
	if err := c.get(ctx, EndpointSmallArea, p, &env); err != nil {
		return nil, err
	}
	if err := env.Results.apiError(); err != nil {
		return nil, err
	}
	out := make([]area.Area, 0, len(env.Results.SmallArea))
	for _, r := range env.Results.SmallArea {
		out = append(out, r.toArea())
	}
	return out, nil
}

// 文档注释：执行一次 GET 并把规整后的 JSON 解码到 out
// 约束：传输失败包装 ErrTransport；非 2xx 返回同时满足 ErrTransport 的 *APIError；解析失败包装 ErrDecode。
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.key == "" {
		return ErrMissingKey
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", c.key)
	q.Set("format", "json")
	u := c.baseURL + endpoint + "/v1/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	t0 := time.Now()
	metrics.HotpepperRequestsTotal.WithLabelValues(endpoint).Inc()
	logger.L().Debug("hotpepper_req", "endpoint", endpoint, "params", redact(q))
	resp, err := c.http.Do(req)
	if err != nil {
		logger.L().Error("hotpepper_http_error", "endpoint", endpoint, "err", err)
		metrics.HotpepperFailTotal.WithLabelValues(endpoint, "transport").Inc()
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		metrics.HotpepperFailTotal.WithLabelValues(endpoint, "transport").Inc()
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	dur := time.Since(t0).Milliseconds()
	metrics.HotpepperDurationMs.WithLabelValues(endpoint).Observe(float64(dur))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.L().Error("hotpepper_status_error", "endpoint", endpoint, "status", resp.StatusCode, "duration_ms", dur)
		metrics.HotpepperFailTotal.WithLabelValues(endpoint, "status").Inc()
		return &statusError{APIError{Status: resp.StatusCode}}
	}
	if err := decodeLenient(body, out); err != nil {
		logger.L().Error("hotpepper_decode_error", "endpoint", endpoint, "err", err)
		metrics.HotpepperFailTotal.WithLabelValues(endpoint, "decode").Inc()
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	logger.L().Debug("hotpepper_resp", "endpoint", endpoint, "bytes", len(body), "duration_ms", dur)
	metrics.HotpepperSuccessTotal.WithLabelValues(endpoint).Inc()
	return nil
}

// statusError：非 2xx 响应，既可 errors.As 为 *APIError，也满足 errors.Is(ErrTransport)
type statusError struct{ APIError }

func (e *statusError) Unwrap() []error { return []error{&e.APIError, ErrTransport} }

func redact(q url.Values) string {
	c := url.Values{}
	for k, v := range q {
		if k == "key" {
			continue
		}
		c[k] = v
	}
	return c.Encode()
}

// decodeLenient：先规整（空串、数值字符引用、数字字符串）再按类型解码
func decodeLenient(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	b, err := json.Marshal(normalize(raw))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
