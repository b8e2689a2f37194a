// 包 favorites：收藏等级的内存缓存，写操作直写数据库并发布事件
package favorites

import (
	"context"
	"log/slog"
	"sync"

	"mealody/internal/events"
	"mealody/internal/logger"
	"mealody/internal/store"
)

// Repo：由 *store.Store 实现
type Repo interface {
	FavoriteShops(ctx context.Context) ([]store.Entity, error)
	UpdateFavoriteLevel(ctx context.Context, shopID string, level int) (int, error)
}

type Cache struct {
	repo Repo
	pub  events.Publisher
	log  *slog.Logger

	mu     sync.RWMutex
	levels map[string]int
}

// New：repo 为空时只做内存缓存
func New(repo Repo, pub events.Publisher) *Cache {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Cache{repo: repo, pub: pub, log: logger.L(), levels: map[string]int{}}
}

// Preload：把已收藏店铺并入缓存；已在内存中的条目被数据库值覆盖
func (c *Cache) Preload(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	list, err := c.repo.FavoriteShops(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, e := range list {
		c.levels[e.ID] = e.FavLevel
	}
	c.mu.Unlock()
	c.log.Debug("favorites_preload", "count", len(list))
	return nil
}

// Level：未知店铺为 0
func (c *Cache) Level(shopID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.levels[shopID]
}

// Snapshot：等级大于 0 的全部条目
func (c *Cache) Snapshot() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.levels))
	for k, v := range c.levels {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

// 文档注释：更新收藏等级
// 约束：先更新内存（截断到 0..3）再直写数据库；数据库或事件发布失败只记录日志，内存值保留。
func (c *Cache) Update(ctx context.Context, shopID string, level int) int {
	lv := store.ClampLevel(level)
	c.mu.Lock()
	c.levels[shopID] = lv
	c.mu.Unlock()

	if c.repo != nil {
		if _, err := c.repo.UpdateFavoriteLevel(ctx, shopID, lv); err != nil {
			c.log.Warn("favorites_update_error", "shop_id", shopID, "level", lv, "err", err)
		}
	}
	if err := c.pub.Publish(ctx, events.Event{Type: events.TypeFavoriteChanged, ShopID: shopID, Level: lv}); err != nil {
		c.log.Debug("favorites_event_error", "shop_id", shopID, "err", err)
	}
	return lv
}
