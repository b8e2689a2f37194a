// 包 resolver：把行政地址（都道府県/市区町村/町域）解析为 Hotpepper 小区域
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"mealody/internal/area"
	"mealody/internal/logger"
	"mealody/internal/metrics"
	"mealody/internal/shop"
)

// Address：逆地理编码得到的行政地址
type Address struct {
	AdminArea   string `json:"admin_area"`
	Locality    string `json:"locality"`
	SubLocality string `json:"sub_locality,omitempty"`
}

func (a Address) IsZero() bool { return a.AdminArea == "" && a.Locality == "" && a.SubLocality == "" }

// AreaSource：区域目录，由 *gourmet.Client 实现
type AreaSource interface {
	LargeAreas(ctx context.Context, serviceCode string) ([]area.Area, error)
	MiddleAreas(ctx context.Context, largeCode string) ([]area.Area, error)
	SmallAreas(ctx context.Context, middleCode string) ([]area.Area, error)
}

type Resolver struct {
	src AreaSource
	geo Geocoder
	log *slog.Logger
}

type Option func(*Resolver)

// WithGeocoder：ShopArea 在店铺缺少区域信息时用它反查坐标
func WithGeocoder(g Geocoder) Option { return func(r *Resolver) { r.geo = g } }
func WithLogger(l *slog.Logger) Option { return func(r *Resolver) { r.log = l } }

func New(src AreaSource, opts ...Option) *Resolver {
	r := &Resolver{src: src}
	for _, fn := range opts {
		fn(r)
	}
	if r.log == nil {
		r.log = logger.L()
	}
	return r
}

// 文档注释：地址 → 小区域
// 背景：都道府県与市区町村名称按包含关系匹配（取列表中第一个），小区域名称与町域名比最长公共前缀。
// 约束：前缀长度按字符（rune）计；长度相同取列表中靠前者；町域为空时返回第一个小区域。
// 任一层级为空、无匹配或拉取失败都返回 nil，失败原因只记录日志。
func (r *Resolver) FindMatchingArea(ctx context.Context, addr Address) *area.Area {
	a, reason := r.match(ctx, addr)
	if a == nil {
		r.log.Debug("resolve_miss", "reason", reason, "admin", addr.AdminArea, "locality", addr.Locality)
		metrics.ResolveTotal.WithLabelValues(reason).Inc()
		return nil
	}
	metrics.ResolveTotal.WithLabelValues("ok").Inc()
	return a
}

func (r *Resolver) match(ctx context.Context, addr Address) (*area.Area, string) {
	larges, err := r.src.LargeAreas(ctx, "")
	if err != nil {
		r.log.Warn("resolve_large_error", "err", err)
		return nil, "error"
	}
	large, ok := firstContained(larges, addr.AdminArea)
	if !ok {
		return nil, "no_large"
	}
	middles, err := r.src.MiddleAreas(ctx, large.Code)
	if err != nil {
		r.log.Warn("resolve_middle_error", "large", large.Code, "err", err)
		return nil, "error"
	}
	middle, ok := firstContained(middles, addr.Locality)
	if !ok {
		return nil, "no_middle"
	}
	smalls, err := r.src.SmallAreas(ctx, middle.Code)
	if err != nil {
		r.log.Warn("resolve_small_error", "middle", middle.Code, "err", err)
		return nil, "error"
	}
	best, ok := LongestPrefix(smalls, addr.SubLocality)
	if !ok {
		return nil, "no_small"
	}
	return &best, ""
}

// firstContained：名称出现在 s 中的第一个区域；空名称不参与匹配
func firstContained(list []area.Area, s string) (area.Area, bool) {
	if s == "" {
		return area.Area{}, false
	}
	for _, a := range list {
		if a.Name != "" && strings.Contains(s, a.Name) {
			return a, true
		}
	}
	return area.Area{}, false
}

// LongestPrefix：与 s 公共前缀最长的区域；并列时取靠前者，列表为空返回 false
func LongestPrefix(list []area.Area, s string) (area.Area, bool) {
	if len(list) == 0 {
		return area.Area{}, false
	}
	best, bestLen := 0, -1
	for i, a := range list {
		if n := commonPrefixLen(a.Name, s); n > bestLen {
			best, bestLen = i, n
		}
	}
	return list[best], true
}

func commonPrefixLen(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := 0
	for n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}

// 文档注释：店铺所在小区域
// 约束：店铺自带完整的四级区域时直接使用；否则用其坐标逆地理编码后解析；任何失败返回 nil。
func (r *Resolver) ShopArea(ctx context.Context, s shop.Shop) *area.Area {
	if a, ok := s.AreaChain(); ok {
		return &a
	}
	if r.geo == nil || (s.Lat == 0 && s.Lng == 0) {
		return nil
	}
	addr, err := r.geo.ReverseGeocode(ctx, s.Lat, s.Lng)
	if err != nil || addr == nil {
		r.log.Debug("resolve_geocode_miss", "shop_id", s.ID, "err", err)
		metrics.ResolveTotal.WithLabelValues("geocode").Inc()
		return nil
	}
	return r.FindMatchingArea(ctx, *addr)
}
