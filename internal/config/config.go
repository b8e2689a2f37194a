// 包 config：从环境变量（可选 .env 文件）读取服务配置
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultHotpepperBaseURL = "https://webservice.recruit.co.jp/hotpepper/"

type Config struct {
	HotpepperKey     string
	HotpepperBaseURL string
	HotpepperTimeout time.Duration

	ShopCacheSize  int
	HistorySize    int
	AreaCacheTTL   time.Duration
	GeocodeTimeout time.Duration
	GeoIPPath      string
	GeocoderURL    string

	Addr        string
	APIBase     string
	CORSOrigins []string
	SessionTTL  time.Duration

	RateLimitEnabled bool
	RateLimitQPS     int

	KafkaBroker string
	KafkaTopic  string

	// 为空表示不启用对应组件
	PostgresEnabled bool
	RedisEnabled    bool
}

// LoadDotenv：依次尝试 .env 与 data/env/.env，已存在的环境变量不被覆盖
func LoadDotenv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// 文档注释：读取配置
// 约束：数值解析失败或非正值时回退默认值；PG_HOST / REDIS_HOST 未设置时对应组件关闭。
func Load() Config {
	return Config{
		HotpepperKey:     os.Getenv("HOTPEPPER_API_KEY"),
		HotpepperBaseURL: str("HOTPEPPER_BASE_URL", DefaultHotpepperBaseURL),
		HotpepperTimeout: millis("HOTPEPPER_TIMEOUT_MS", 5000),
		ShopCacheSize:    num("SHOP_CACHE_SIZE", 20),
		HistorySize:      num("HISTORY_SIZE", 20),
		AreaCacheTTL:     seconds("AREA_CACHE_TTL_S", 86400),
		GeocodeTimeout:   millis("GEOCODE_TIMEOUT_MS", 3000),
		GeoIPPath:        os.Getenv("GEOIP_PATH"),
		GeocoderURL:      os.Getenv("GEOCODER_URL"),
		Addr:             str("ADDR", ":8080"),
		APIBase:          strings.TrimSuffix(str("API_BASE", "/api"), "/"),
		CORSOrigins:      list("CORS_ORIGINS"),
		SessionTTL:       seconds("SESSION_IDLE_TTL_S", 1800),
		RateLimitEnabled: os.Getenv("RATE_LIMIT_ENABLED") == "true",
		RateLimitQPS:     num("RATE_LIMIT_QPS", 200),
		KafkaBroker:      os.Getenv("KAFKA_BROKER"),
		KafkaTopic:       str("KAFKA_TOPIC", "mealody.events"),
		PostgresEnabled:  os.Getenv("PG_HOST") != "",
		RedisEnabled:     os.Getenv("REDIS_HOST") != "",
	}
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func num(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func millis(key string, def int) time.Duration { return time.Duration(num(key, def)) * time.Millisecond }

func seconds(key string, def int) time.Duration { return time.Duration(num(key, def)) * time.Second }

func list(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
