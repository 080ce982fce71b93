package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetters(t *testing.T) {
	t.Setenv("KYC_TEST_INT", " 42 ")
	t.Setenv("KYC_TEST_BAD_INT", "forty")
	t.Setenv("KYC_TEST_BOOL", "false")
	t.Setenv("KYC_TEST_LIST", "https://a.example, ,https://b.example")

	assert.Equal(t, 42, GetInt("KYC_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("KYC_TEST_BAD_INT", 1))
	assert.Equal(t, 7, GetInt("KYC_TEST_UNSET", 7))
	assert.False(t, GetBool("KYC_TEST_BOOL", true))
	assert.Equal(t, 42*time.Second, GetDuration("KYC_TEST_INT", 1, time.Second))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, GetList("KYC_TEST_LIST", nil))
	assert.Equal(t, []string{"*"}, GetList("KYC_TEST_UNSET", []string{"*"}))
}

func TestLoadAPIConfigDefaults(t *testing.T) {
	cfg := LoadAPIConfig()
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "kyc:ratelimit:", cfg.RateLimitRedisKey)
	assert.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
	assert.True(t, cfg.AllowRedecide)
	assert.False(t, cfg.IsProduction())
}

func TestLoadAPIConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("STORE_DRIVER", " Mongo ")
	t.Setenv("DOCUMENT_STORE", "S3")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_REDIS_PREFIX", "edge-a:rl:")
	t.Setenv("KYC_ALLOW_REDECIDE", "false")
	t.Setenv("UPLOAD_MAX_MB", "2")

	cfg := LoadAPIConfig()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StoreDriverMongo, cfg.StoreDriver)
	assert.Equal(t, DocumentStoreS3, cfg.DocumentStore)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, "edge-a:rl:", cfg.RateLimitRedisKey)
	assert.False(t, cfg.AllowRedecide)
	assert.Equal(t, int64(2<<20), cfg.UploadMaxBytes)
}
