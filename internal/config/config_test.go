package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TZ", "Asia/Dhaka")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/wisebox_test")
	t.Setenv("UPLOAD_EXTENSIONS", "")
	t.Setenv("FRONTEND_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wisebox_test", cfg.MongoDB)
	assert.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
	assert.Equal(t, []string{".pdf", ".jpg", ".jpeg", ".png"}, cfg.UploadExtensions)
	assert.Equal(t, 30*24*time.Hour, cfg.DraftTTL)
	assert.Equal(t, 2*time.Hour, cfg.SessionIdleTTL)
	assert.Equal(t, 6*time.Hour, cfg.BlobSweepEvery)
	assert.Equal(t, 5*time.Minute, cfg.VerifyCodeTTL)
	assert.Equal(t, 30*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, "BD", cfg.GeocodeCountry)
	assert.Len(t, cfg.FrontendOrigins, 2)
	assert.False(t, cfg.MinioEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TZ", "UTC")
	t.Setenv("FRONTEND_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("UPLOAD_MAX_BYTES", "2048")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "key")
	t.Setenv("MINIO_SECRET_KEY", "secret")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("MONGO_DB", "explicit")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.FrontendOrigins)
	assert.Equal(t, int64(2048), cfg.UploadMaxBytes)
	assert.True(t, cfg.MinioEnabled())
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "explicit", cfg.MongoDB)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("TZ", "UTC")
	t.Setenv("UPLOAD_MAX_BYTES", "-1")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("UPLOAD_MAX_BYTES", "1024")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestMongoDBFromURI(t *testing.T) {
	assert.Equal(t, "wisebox", mongoDBFromURI("mongodb://localhost:27017/wisebox"))
	assert.Equal(t, "db", mongoDBFromURI("mongodb+srv://u:p@cluster/db/extra?retryWrites=true"))
	assert.Equal(t, "", mongoDBFromURI("mongodb://localhost:27017"))
}
