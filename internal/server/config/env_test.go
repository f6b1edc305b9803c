package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("DOCVAULT_ENCRYPTION_KEY", "abc")
	t.Setenv("DOCVAULT_BLOB_DIR", "/srv/blobs")
	t.Setenv("DOCVAULT_SWEEP_INTERVAL", "90s")
	t.Setenv("DOCVAULT_MAX_UPLOAD_SIZE", "2048")
	t.Setenv("DOCVAULT_REDIS_ADDR", "")
	t.Setenv("DOCVAULT_SECURE_COOKIES", "true")

	c := &Config{RedisAddr: "keep"}
	require.NoError(t, parseEnv(c))

	assert.Equal(t, "abc", c.EncryptionKey)
	assert.Equal(t, "/srv/blobs", c.BlobDir)
	assert.Equal(t, 90*time.Second, c.SweepInterval)
	assert.Equal(t, int64(2048), c.MaxUploadSize)
	assert.Equal(t, "keep", c.RedisAddr, "empty variables are ignored")
	assert.True(t, c.SecureCookies)
}

func TestParseEnv_Invalid(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("DOCVAULT_LOG_RETENTION", "forever")
		assert.Error(t, parseEnv(&Config{}))
	})
	t.Run("size", func(t *testing.T) {
		t.Setenv("DOCVAULT_MAX_UPLOAD_SIZE", "big")
		assert.Error(t, parseEnv(&Config{}))
	})
	t.Run("bool", func(t *testing.T) {
		t.Setenv("DOCVAULT_SECURE_COOKIES", "maybe")
		assert.Error(t, parseEnv(&Config{}))
	})
}
