// area-sync：预热 Redis 区域缓存
// 用法：area-sync [--clear] [Z011 Z013 ...]；不指定都道府県编码时同步全部
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"mealody/internal/areacache"
	"mealody/internal/config"
	"mealody/internal/gourmet"
	"mealody/internal/hotpepper"
	"mealody/internal/logger"
	"mealody/internal/utils"
)

const parallel = 4

func main() {
	config.LoadDotenv()
	l := logger.Setup()
	cfg := config.Load()
	if !cfg.RedisEnabled {
		fmt.Fprintln(os.Stderr, "REDIS_HOST not set")
		os.Exit(2)
	}

	wipe := false
	var codes []string
	for _, a := range os.Args[1:] {
		if a == "--clear" {
			wipe = true
			continue
		}
		codes = append(codes, strings.TrimSpace(a))
	}

	ctx := context.Background()
	rc := utils.OpenRedisFromEnv()
	defer rc.Close()
	if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
		os.Exit(1)
	}
	rs := areacache.New(rc, cfg.AreaCacheTTL)
	if wipe {
		if err := rs.Clear(ctx); err != nil {
			l.Error("area_cache_clear_error", "err", err)
			os.Exit(1)
		}
		l.Info("area_cache_cleared")
	}

	remote := hotpepper.New(cfg.HotpepperBaseURL, cfg.HotpepperKey, &http.Client{Timeout: cfg.HotpepperTimeout})
	client := gourmet.New(remote, gourmet.WithAreaStore(rs), gourmet.WithLogger(l))

	n, err := syncTiers(ctx, client, codes)
	if err != nil {
		l.Error("area_sync_error", "err", err)
		os.Exit(1)
	}
	l.Info("area_sync_ok", "small_tiers", n)
}

// 文档注释：逐层拉取并写入二级缓存
// 约束：codes 为空时取全部都道府県；市区町村之下的小区域层并发拉取，任一失败即中止。
func syncTiers(ctx context.Context, client *gourmet.Client, codes []string) (int, error) {
	if len(codes) == 0 {
		larges, err := client.LargeAreas(ctx, "")
		if err != nil {
			return 0, err
		}
		for _, a := range larges {
			codes = append(codes, a.Code)
		}
	}
	total := 0
	for _, code := range codes {
		middles, err := client.MiddleAreas(ctx, code)
		if err != nil {
			return total, fmt.Errorf("large %s: %w", code, err)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)
		for _, m := range middles {
			g.Go(func() error {
				if _, err := client.SmallAreas(gctx, m.Code); err != nil {
					return fmt.Errorf("middle %s: %w", m.Code, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}
		total += len(middles)
		logger.L().Info("area_sync_large", "code", code, "middle", len(middles))
	}
	return total, nil
}
