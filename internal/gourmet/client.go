// 包 gourmet：远端店铺检索客户端（条件编码、店铺详情缓存、区域目录缓存、访问历史）
package gourmet

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/sync/singleflight"

	"mealody/internal/area"
	"mealody/internal/logger"
	"mealody/internal/lru"
	"mealody/internal/metrics"
	"mealody/internal/query"
	"mealody/internal/shop"
)

const DefaultShopCacheSize = 20

// API：远端接口，由 *hotpepper.Client 实现
type API interface {
	SearchShops(ctx context.Context, params url.Values) (*shop.Results, error)
	LargeAreas(ctx context.Context) ([]area.Area, error)
	MiddleAreas(ctx context.Context, middleCode, largeCode string) ([]area.Area, error)
	SmallAreas(ctx context.Context, smallCode, middleCode string) ([]area.Area, error)
}

// AreaStore：区域层级的二级缓存（如 Redis），未命中返回 false
type AreaStore interface {
	LoadTier(ctx context.Context, tier area.Kind, parent string) ([]area.Area, bool)
	SaveTier(ctx context.Context, tier area.Kind, parent string, list []area.Area)
	Clear(ctx context.Context) error
}

type cachedShop struct {
	Type shop.QueryType
	Shop shop.Shop
}

// 文档注释：远端检索客户端
// 背景：会话与地址解析共享同一实例；店铺详情缓存与区域缓存的生命周期与进程一致，由构造方显式创建并注入。
// 约束：所有网络调用以 error 返回失败，错误归类为 ErrNetwork/ErrDecode；不做重试。
type Client struct {
	api     API
	log     *slog.Logger
	shops   *lru.LRU[string, cachedShop]
	tax     *area.Taxonomy
	store   AreaStore
	history *History
	sf      singleflight.Group
}

type options struct {
	shopCacheSize int
	historySize   int
	tax           *area.Taxonomy
	store         AreaStore
	log           *slog.Logger
}

type Option func(*options)

func WithShopCacheSize(n int) Option { return func(o *options) { o.shopCacheSize = n } }
func WithHistorySize(n int) Option { return func(o *options) { o.historySize = n } }

// WithTaxonomy：注入共享的区域缓存；未指定时新建
func WithTaxonomy(t *area.Taxonomy) Option { return func(o *options) { o.tax = t } }

func WithAreaStore(s AreaStore) Option { return func(o *options) { o.store = s } }
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

func New(api API, opts ...Option) *Client {
	o := options{shopCacheSize: DefaultShopCacheSize, historySize: DefaultHistorySize}
	for _, fn := range opts {
		fn(&o)
	}
	if o.tax == nil {
		o.tax = area.NewTaxonomy()
	}
	if o.log == nil {
		o.log = logger.L()
	}
	return &Client{
		api:     api,
		log:     o.log,
		shops:   lru.New[string, cachedShop](o.shopCacheSize),
		tax:     o.tax,
		store:   o.store,
		history: NewHistory(o.historySize),
	}
}

// Taxonomy：共享的区域缓存
func (c *Client) Taxonomy() *area.Taxonomy { return c.tax }

// 文档注释：执行一次分页检索
// 约束：条件无效时不发请求并返回 ErrValidation；doCache 为 true 时把结果写入/合并进店铺缓存。
func (c *Client) Search(ctx context.Context, q query.SearchQuery, doCache bool) (shop.Results, error) {
	if err := q.Validate(); err != nil {
		return shop.Results{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	res, err := c.api.SearchShops(ctx, q.Values(""))
	if err != nil {
		c.log.Warn("gourmet_search_error", "err", err)
		return shop.Results{}, classify(err)
	}
	c.log.Debug("gourmet_search", "available", res.Available, "returned", res.Returned, "start", res.Start)
	if doCache {
		qt := q.EffectiveType()
		for _, s := range res.Shops {
			c.cacheShop(qt, s)
		}
	}
	return *res, nil
}

// 文档注释：写入店铺缓存
// 约束：缓存中已有且其类型已覆盖 qt 时内容不变，只刷新最近使用顺序；类型不足时以缓存记录为主合并并扩展类型；不存在时直接写入。
func (c *Client) cacheShop(qt shop.QueryType, s shop.Shop) {
	c.shops.Update(s.ID, func(old cachedShop, ok bool) (cachedShop, bool) {
		if !ok {
			return cachedShop{Type: qt, Shop: s}, true
		}
		if old.Type.Contains(qt) {
			return old, true
		}
		return cachedShop{Type: old.Type.Merge(qt), Shop: shop.MergeShop(old.Shop, s)}, true
	})
}

// cached：缓存中类型覆盖 qt 的店铺
func (c *Client) cached(id string, qt shop.QueryType) (shop.Shop, bool) {
	e, ok := c.shops.Get(id)
	if !ok || !e.Type.Contains(qt) {
		metrics.ShopCacheMissesTotal.Inc()
		return shop.Shop{}, false
	}
	metrics.ShopCacheHitsTotal.Inc()
	return e.Shop, true
}

// 文档注释：按 ID 获取单个店铺
// 约束：缓存命中且类型满足时直接返回；否则发起单 ID 检索并返回首条，无结果时返回 (nil, nil)。
func (c *Client) ShopByID(ctx context.Context, id string, qt shop.QueryType, doCache bool) (*shop.Shop, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty shop id", ErrValidation)
	}
	if s, ok := c.cached(id, qt); ok {
		return &s, nil
	}
	res, err := c.Search(ctx, query.ForIDs([]string{id}, qt), doCache)
	if err != nil {
		return nil, err
	}
	if len(res.Shops) == 0 {
		return nil, nil
	}
	s := res.Shops[0]
	return &s, nil
}

// 文档注释：按 ID 列表批量获取
// 约束：先命中缓存，其余 ID 按 MaxIDCount 分批请求；返回命中部分（请求顺序）在前、新获取部分在后；重复 ID 只取一次。
func (c *Client) ShopsByIDs(ctx context.Context, ids []string, qt shop.QueryType, doCache bool) ([]shop.Shop, error) {
	seen := make(map[string]bool, len(ids))
	var hits []shop.Shop
	var misses []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := c.cached(id, qt); ok {
			hits = append(hits, s)
		} else {
			misses = append(misses, id)
		}
	}
	out := make([]shop.Shop, 0, len(seen))
	out = append(out, hits...)
	for start := 0; start < len(misses); start += query.MaxIDCount {
		end := min(start+query.MaxIDCount, len(misses))
		res, err := c.Search(ctx, query.ForIDs(misses[start:end], qt), doCache)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Shops...)
	}
	return out, nil
}

// 文档注释：清空区域缓存（含大服务区层级与二级缓存）
// 约束：店铺详情缓存不受影响；二级缓存清理失败只记录日志。
func (c *Client) ClearCache(ctx context.Context) {
	c.tax.Clear()
	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			c.log.Warn("area_store_clear_error", "err", err)
		}
	}
}

func (c *Client) AddToHistory(s shop.Shop) { c.history.Add(s) }
func (c *Client) AddAllToHistory(list []shop.Shop) { c.history.AddAll(list) }
func (c *Client) VisitedShops() []shop.Shop { return c.history.List() }
