package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HOTPEPPER_API_KEY", "HOTPEPPER_BASE_URL", "SHOP_CACHE_SIZE", "API_BASE", "CORS_ORIGINS", "PG_HOST", "REDIS_HOST", "RATE_LIMIT_ENABLED"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, DefaultHotpepperBaseURL, c.HotpepperBaseURL)
	assert.Equal(t, 5*time.Second, c.HotpepperTimeout)
	assert.Equal(t, 20, c.ShopCacheSize)
	assert.Equal(t, 20, c.HistorySize)
	assert.Equal(t, 24*time.Hour, c.AreaCacheTTL)
	assert.Equal(t, "/api", c.APIBase)
	assert.Empty(t, c.CORSOrigins)
	assert.False(t, c.PostgresEnabled)
	assert.False(t, c.RedisEnabled)
	assert.False(t, c.RateLimitEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HOTPEPPER_API_KEY", "k")
	t.Setenv("SHOP_CACHE_SIZE", "50")
	t.Setenv("HISTORY_SIZE", "bogus")
	t.Setenv("GEOCODE_TIMEOUT_MS", "-1")
	t.Setenv("API_BASE", "/v2/")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("PG_HOST", "db")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_QPS", "5")

	c := Load()
	assert.Equal(t, "k", c.HotpepperKey)
	assert.Equal(t, 50, c.ShopCacheSize)
	assert.Equal(t, 20, c.HistorySize)
	assert.Equal(t, 3*time.Second, c.GeocodeTimeout)
	assert.Equal(t, "/v2", c.APIBase)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	assert.True(t, c.PostgresEnabled)
	assert.True(t, c.RateLimitEnabled)
	assert.Equal(t, 5, c.RateLimitQPS)
}

func TestLoadDotenvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MEALODY_TEST_A=file\nMEALODY_TEST_B=file\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("MEALODY_TEST_A", "env")
	t.Setenv("MEALODY_TEST_B", "")
	os.Unsetenv("MEALODY_TEST_B")
	LoadDotenv()
	assert.Equal(t, "env", os.Getenv("MEALODY_TEST_A"))
	assert.Equal(t, "file", os.Getenv("MEALODY_TEST_B"))
}
