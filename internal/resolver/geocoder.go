package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrGeocodeTimeout：逆地理编码超时
var ErrGeocodeTimeout = errors.New("reverse geocode timeout")

// Geocoder：坐标 → 行政地址；无结果时返回 (nil, nil)
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*Address, error)
}

// GeocoderFunc：函数适配器
type GeocoderFunc func(ctx context.Context, lat, lng float64) (*Address, error)

func (f GeocoderFunc) ReverseGeocode(ctx context.Context, lat, lng float64) (*Address, error) {
	return f(ctx, lat, lng)
}

type timeoutGeocoder struct {
	g Geocoder
	d time.Duration
}

// 文档注释：为任意 Geocoder 加统一超时
// 约束：结果与错误经同一通道返回；超时返回 ErrGeocodeTimeout，后台调用收到已取消的 ctx 后自行结束。
func WithTimeout(g Geocoder, d time.Duration) Geocoder {
	if d <= 0 {
		return g
	}
	return timeoutGeocoder{g: g, d: d}
}

type geoResult struct {
	addr *Address
	err  error
}

func (t timeoutGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*Address, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	ch := make(chan geoResult, 1)
	go func() {
		a, err := t.g.ReverseGeocode(ctx, lat, lng)
		ch <- geoResult{a, err}
	}()
	select {
	case r := <-ch:
		return r.addr, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrGeocodeTimeout, t.d)
		}
		return nil, ctx.Err()
	}
}
