// 程序入口：读取配置、初始化依赖并启动服务；路由注册在 internal/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"mealody/internal/api"
	"mealody/internal/areacache"
	"mealody/internal/config"
	"mealody/internal/events"
	"mealody/internal/favorites"
	"mealody/internal/geocode"
	"mealody/internal/gourmet"
	"mealody/internal/hotpepper"
	"mealody/internal/locate"
	"mealody/internal/logger"
	"mealody/internal/metrics"
	"mealody/internal/middleware"
	"mealody/internal/migrate"
	"mealody/internal/resolver"
	"mealody/internal/session"
	"mealody/internal/store"
	"mealody/internal/utils"
)

func main() {
	config.LoadDotenv()
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.Load()
	l.Debug("config_api_base", "base", cfg.APIBase)
	if cfg.HotpepperKey == "" {
		l.Warn("hotpepper_key_missing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote := hotpepper.New(cfg.HotpepperBaseURL, cfg.HotpepperKey, &http.Client{Timeout: cfg.HotpepperTimeout})
	opts := []gourmet.Option{
		gourmet.WithShopCacheSize(cfg.ShopCacheSize),
		gourmet.WithHistorySize(cfg.HistorySize),
		gourmet.WithLogger(l),
	}

	var st *store.Store
	if cfg.PostgresEnabled {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
	} else {
		l.Info("postgres_disabled")
	}

	if cfg.RedisEnabled {
		rc := utils.OpenRedisFromEnv()
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		opts = append(opts, gourmet.WithAreaStore(areacache.New(rc, cfg.AreaCacheTTL)))
	} else {
		l.Info("redis_disabled")
	}

	client := gourmet.New(remote, opts...)

	var pub events.Publisher = events.Nop{}
	if w := events.NewKafkaWriter(cfg.KafkaBroker, cfg.KafkaTopic); w != nil {
		kp := events.NewKafkaPublisher(w)
		defer kp.Close()
		pub = kp
		l.Info("kafka_enabled", "broker", cfg.KafkaBroker, "topic", cfg.KafkaTopic)
	}

	ropts := []resolver.Option{resolver.WithLogger(l)}
	if cfg.GeocoderURL != "" {
		g := geocode.New(cfg.GeocoderURL, &http.Client{Timeout: cfg.GeocodeTimeout})
		ropts = append(ropts, resolver.WithGeocoder(resolver.WithTimeout(g, cfg.GeocodeTimeout)))
		l.Info("geocoder_enabled", "url", cfg.GeocoderURL)
	}
	deps := api.Deps{
		Client:   client,
		Resolver: resolver.New(client, ropts...),
		Events:   pub,
	}

	if cfg.GeoIPPath != "" {
		g, err := locate.Open(cfg.GeoIPPath)
		if err != nil {
			l.Error("geoip_open_error", "path", cfg.GeoIPPath, "err", err)
		} else {
			defer g.Close()
			deps.Locator = g
			l.Info("geoip_ready", "path", cfg.GeoIPPath)
		}
	}

	var favRepo favorites.Repo
	if st != nil {
		favRepo = st
		deps.Notes = st
	}
	fav := favorites.New(favRepo, pub)
	if err := fav.Preload(ctx); err != nil {
		l.Error("favorites_preload_error", "err", err)
	}
	deps.Favorites = fav

	sessions := api.NewSessions(func() *session.Session {
		return session.New(client, session.WithLogger(l))
	}, cfg.SessionTTL)
	defer sessions.Close()
	go sessions.Run(ctx, time.Minute)
	deps.Sessions = sessions

	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, api.BuildRoutes(deps)))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	// CORS_ORIGINS 为空时允许任意来源
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", logger.RequestIDHeader},
		ExposedHeaders: []string{logger.RequestIDHeader},
	})
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.RateLimit(cfg.RateLimitEnabled, cfg.RateLimitQPS)(handler)
	handler = c.Handler(handler)

	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Warn("shutdown_error", "err", err)
		}
	}()

	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_ok")
}
