// 包 locate：基于 GeoIP2 City 库的客户端 IP 粗定位
package locate

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"mealody/internal/logger"
	"mealody/internal/resolver"
)

// ErrNoDatabase：未配置 GeoIP 库
var ErrNoDatabase = errors.New("geoip database not configured")

// Location：IP 粗定位结果
type Location struct {
	Lat      float64          `json:"lat"`
	Lng      float64          `json:"lng"`
	Radius   int              `json:"accuracy_radius_km,omitempty"`
	Country  string           `json:"country,omitempty"`
	Address  resolver.Address `json:"address"`
	Resolved bool             `json:"-"`
}

// GeoIP：并发安全（底层 Reader 只读）
type GeoIP struct {
	r *geoip2.Reader
}

// Open：path 为空时返回 ErrNoDatabase，调用方据此关闭 IP 回退
func Open(path string) (*GeoIP, error) {
	if path == "" {
		return nil, ErrNoDatabase
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.L().Info("geoip_open", "path", path, "type", r.Metadata().DatabaseType)
	return &GeoIP{r: r}, nil
}

func (g *GeoIP) Close() error {
	if g == nil || g.r == nil {
		return nil
	}
	return g.r.Close()
}

// 文档注释：IP → 坐标与行政地址
// 约束：IP 非法、未命中或记录没有坐标时返回 false；地址名称优先日文，其次英文。
func (g *GeoIP) Lookup(ip string) (Location, bool) {
	if g == nil || g.r == nil {
		return Location{}, false
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Location{}, false
	}
	rec, err := g.r.City(parsed)
	if err != nil {
		logger.L().Debug("geoip_lookup_error", "ip", ip, "err", err)
		return Location{}, false
	}
	loc := fromCity(rec)
	if !loc.Resolved {
		logger.L().Debug("geoip_lookup_miss", "ip", ip)
		return Location{}, false
	}
	return loc, true
}

func fromCity(c *geoip2.City) Location {
	loc := Location{
		Lat:     c.Location.Latitude,
		Lng:     c.Location.Longitude,
		Radius:  int(c.Location.AccuracyRadius),
		Country: c.Country.IsoCode,
	}
	if len(c.Subdivisions) > 0 {
		loc.Address.AdminArea = pickName(c.Subdivisions[0].Names)
	}
	loc.Address.Locality = pickName(c.City.Names)
	loc.Resolved = loc.Lat != 0 || loc.Lng != 0
	return loc
}

func pickName(names map[string]string) string {
	if v := names["ja"]; v != "" {
		return v
	}
	return names["en"]
}

// 文档注释：访问者 IP
// 约束：依次读取常见代理头，最后回退 RemoteAddr；部署在不可信代理后需由网关过滤这些头。
func ClientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip"} {
		if x := h.Get(k); x != "" {
			return x
		}
	}
	if x := h.Get("forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := strings.Trim(x[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\"")
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
