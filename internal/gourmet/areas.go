package gourmet

import (
	"context"
	"fmt"

	"mealody/internal/area"
	"mealody/internal/metrics"
)

// 文档注释：按层级读取区域列表（内存 → 二级缓存 → 远端）
// 背景：目录数据变化极少，首次访问时整层拉取并缓存；同一层级/父级的并发请求经 singleflight 合并为一次。
// 约束：mem 返回 false 视为未命中；fetch 成功后由 save 写入内存，并同步写入二级缓存。
func (c *Client) tier(ctx context.Context, kind area.Kind, parent string,
	mem func() ([]area.Area, bool),
	fetch func(context.Context) ([]area.Area, error),
	save func([]area.Area),
) ([]area.Area, error) {
	label := kind.String()
	if v, ok := mem(); ok {
		metrics.AreaCacheHitsTotal.WithLabelValues(label, "memory").Inc()
		return v, nil
	}
	metrics.AreaCacheMissesTotal.WithLabelValues(label, "memory").Inc()

	// 共享拉取不跟随首个调用方的取消；远端耗时由 transport 超时约束
	fctx := context.WithoutCancel(ctx)
	v, err, _ := c.sf.Do(label+":"+parent, func() (any, error) {
		if c.store != nil {
			if list, ok := c.store.LoadTier(fctx, kind, parent); ok {
				metrics.AreaCacheHitsTotal.WithLabelValues(label, "redis").Inc()
				save(list)
				return list, nil
			}
			metrics.AreaCacheMissesTotal.WithLabelValues(label, "redis").Inc()
		}
		list, err := fetch(fctx)
		if err != nil {
			c.log.Warn("area_fetch_error", "tier", label, "parent", parent, "err", err)
			return nil, classify(err)
		}
		c.log.Debug("area_fetch", "tier", label, "parent", parent, "count", len(list))
		save(list)
		if c.store != nil {
			c.store.SaveTier(fctx, kind, parent, list)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	list := v.([]area.Area)
	out := make([]area.Area, len(list))
	copy(out, list)
	return out, nil
}

func (c *Client) largeTier(ctx context.Context) ([]area.Area, error) {
	return c.tier(ctx, area.Large, "", c.tax.LargeAreas,
		c.api.LargeAreas,
		func(list []area.Area) { c.tax.SetLarge(list) })
}

// LargeServiceAreas：大服务区列表，由都道府県的父链派生
func (c *Client) LargeServiceAreas(ctx context.Context) ([]area.Area, error) {
	if v, ok := c.tax.ServiceAreas(); ok {
		metrics.AreaCacheHitsTotal.WithLabelValues(area.Service.String(), "memory").Inc()
		return v, nil
	}
	large, err := c.largeTier(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := c.tax.ServiceAreas(); ok {
		return v, nil
	}
	// 并发 Clear 之后的兜底
	return area.DistinctParents(large), nil
}

func (c *Client) LargeServiceArea(ctx context.Context, code string) (area.Area, error) {
	list, err := c.LargeServiceAreas(ctx)
	if err != nil {
		return area.Area{}, err
	}
	return findCode(list, area.Service, code)
}

// LargeAreas：都道府県列表；serviceCode 非空时只保留其下的条目
func (c *Client) LargeAreas(ctx context.Context, serviceCode string) ([]area.Area, error) {
	all, err := c.largeTier(ctx)
	if err != nil || serviceCode == "" {
		return all, err
	}
	out := make([]area.Area, 0, len(all))
	for _, a := range all {
		if a.ParentCode() == serviceCode {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *Client) LargeArea(ctx context.Context, code string) (area.Area, error) {
	list, err := c.largeTier(ctx)
	if err != nil {
		return area.Area{}, err
	}
	return findCode(list, area.Large, code)
}

// MiddleAreas：某都道府県下的全部市区町村
func (c *Client) MiddleAreas(ctx context.Context, largeCode string) ([]area.Area, error) {
	if largeCode == "" {
		return nil, fmt.Errorf("%w: empty large area code", ErrValidation)
	}
	return c.tier(ctx, area.Middle, largeCode,
		func() ([]area.Area, bool) { return c.tax.Middle(largeCode) },
		func(ctx context.Context) ([]area.Area, error) { return c.api.MiddleAreas(ctx, "", largeCode) },
		func(list []area.Area) { c.tax.SetMiddle(largeCode, list) })
}

// 文档注释：按编码获取市区町村
// 约束：缓存未命中时先按编码取回该条（编码不符视为不存在），再整层拉取其所属都道府県下的全部同级并缓存。
func (c *Client) MiddleArea(ctx context.Context, code string) (area.Area, error) {
	if k, ok := area.KindOf(code); !ok || k != area.Middle {
		return area.Area{}, fmt.Errorf("%w: %q is not a middle area code", ErrValidation, code)
	}
	if a, ok := c.tax.FindMiddle(code); ok {
		metrics.AreaCacheHitsTotal.WithLabelValues(area.Middle.String(), "memory").Inc()
		return a, nil
	}
	one, err := c.api.MiddleAreas(ctx, code, "")
	if err != nil {
		return area.Area{}, classify(err)
	}
	hit, err := findCode(one, area.Middle, code)
	if err != nil {
		return area.Area{}, err
	}
	siblings, err := c.MiddleAreas(ctx, hit.ParentCode())
	if err != nil {
		return hit, nil
	}
	if a, err := findCode(siblings, area.Middle, code); err == nil {
		return a, nil
	}
	return hit, nil
}

// SmallAreas：某市区町村下的全部小区域
func (c *Client) SmallAreas(ctx context.Context, middleCode string) ([]area.Area, error) {
	if middleCode == "" {
		return nil, fmt.Errorf("%w: empty middle area code", ErrValidation)
	}
	return c.tier(ctx, area.Small, middleCode,
		func() ([]area.Area, bool) { return c.tax.Small(middleCode) },
		func(ctx context.Context) ([]area.Area, error) { return c.api.SmallAreas(ctx, "", middleCode) },
		func(list []area.Area) { c.tax.SetSmall(middleCode, list) })
}

// SmallArea：与 MiddleArea 相同的同级预取策略
func (c *Client) SmallArea(ctx context.Context, code string) (area.Area, error) {
	if k, ok := area.KindOf(code); !ok || k != area.Small {
		return area.Area{}, fmt.Errorf("%w: %q is not a small area code", ErrValidation, code)
	}
	if a, ok := c.tax.FindSmall(code); ok {
		metrics.AreaCacheHitsTotal.WithLabelValues(area.Small.String(), "memory").Inc()
		return a, nil
	}
	one, err := c.api.SmallAreas(ctx, code, "")
	if err != nil {
		return area.Area{}, classify(err)
	}
	hit, err := findCode(one, area.Small, code)
	if err != nil {
		return area.Area{}, err
	}
	siblings, err := c.SmallAreas(ctx, hit.ParentCode())
	if err != nil {
		return hit, nil
	}
	if a, err := findCode(siblings, area.Small, code); err == nil {
		return a, nil
	}
	return hit, nil
}

// Area：按编码前缀分派到对应层级
func (c *Client) Area(ctx context.Context, code string) (area.Area, error) {
	k, ok := area.KindOf(code)
	if !ok {
		return area.Area{}, fmt.Errorf("%w: unknown area code %q", ErrValidation, code)
	}
	switch k {
	case area.Service:
		return c.LargeServiceArea(ctx, code)
	case area.Large:
		return c.LargeArea(ctx, code)
	case area.Middle:
		return c.MiddleArea(ctx, code)
	default:
		return c.SmallArea(ctx, code)
	}
}

// ChildAreas：下一层级的全部区域；小区域没有下级
func (c *Client) ChildAreas(ctx context.Context, code string) ([]area.Area, error) {
	k, ok := area.KindOf(code)
	if !ok {
		return nil, fmt.Errorf("%w: unknown area code %q", ErrValidation, code)
	}
	switch k {
	case area.Service:
		return c.LargeAreas(ctx, code)
	case area.Large:
		return c.MiddleAreas(ctx, code)
	case area.Middle:
		return c.SmallAreas(ctx, code)
	default:
		return nil, fmt.Errorf("%w: small area %s has no children", ErrValidation, code)
	}
}

func findCode(list []area.Area, kind area.Kind, code string) (area.Area, error) {
	for _, a := range list {
		if a.Code == code {
			return a, nil
		}
	}
	return area.Area{}, fmt.Errorf("%w: %s area %s", ErrNotFound, kind, code)
}
