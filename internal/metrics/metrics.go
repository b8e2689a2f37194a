// 包 metrics：Prometheus 指标定义与 /metrics 暴露
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000}

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_requests_total",
		Help: "Total number of API requests by route and status class",
	}, []string{"route", "code"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mealody_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"route"})

	HotpepperRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_hotpepper_requests_total",
		Help: "Total Hotpepper REST requests by endpoint",
	}, []string{"endpoint"})
	HotpepperSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_hotpepper_success_total",
		Help: "Total Hotpepper REST successes by endpoint",
	}, []string{"endpoint"})
	HotpepperFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_hotpepper_fail_total",
		Help: "Total Hotpepper REST failures by endpoint and reason",
	}, []string{"endpoint", "reason"})
	HotpepperDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mealody_hotpepper_duration_ms",
		Help:    "Hotpepper REST call duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"endpoint"})

	ShopCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mealody_shop_cache_hits_total",
		Help: "Shop detail cache hits that satisfied the requested query type",
	})
	ShopCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mealody_shop_cache_misses_total",
		Help: "Shop detail cache misses or insufficient cached query type",
	})
	AreaCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_area_cache_hits_total",
		Help: "Area tier cache hits by tier and layer (memory|redis)",
	}, []string{"tier", "layer"})
	AreaCacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_area_cache_misses_total",
		Help: "Area tier cache misses by tier and layer (memory|redis)",
	}, []string{"tier", "layer"})

	SessionOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_session_ops_total",
		Help: "Search session operations by op and outcome",
	}, []string{"op", "outcome"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mealody_active_sessions",
		Help: "Number of live search sessions",
	})

	ResolveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_resolve_total",
		Help: "Address to small area resolutions by outcome",
	}, []string{"outcome"})

	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_geocode_requests_total",
		Help: "Reverse geocode requests by outcome (ok|empty|error)",
	}, []string{"outcome"})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mealody_geocode_duration_ms",
		Help:    "Reverse geocode call duration in milliseconds",
		Buckets: durationBuckets,
	})

	EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mealody_events_published_total",
		Help: "Domain events published by type and status",
	}, []string{"type", "status"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(HotpepperRequestsTotal)
	prometheus.MustRegister(HotpepperSuccessTotal)
	prometheus.MustRegister(HotpepperFailTotal)
	prometheus.MustRegister(HotpepperDurationMs)
	prometheus.MustRegister(ShopCacheHitsTotal)
	prometheus.MustRegister(ShopCacheMissesTotal)
	prometheus.MustRegister(AreaCacheHitsTotal)
	prometheus.MustRegister(AreaCacheMissesTotal)
	prometheus.MustRegister(SessionOpsTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(ResolveTotal)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeDurationMs)
	prometheus.MustRegister(EventsPublishedTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标，供 Prometheus 抓取；在主入口挂载到 <API_BASE>/metrics。
func Handler() http.Handler { return promhttp.Handler() }
