package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string
	ServerAddr      string
	FrontendOrigins []string
	Timezone        *time.Location

	MongoURI string
	MongoDB  string

	RedisURL        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	JWTSecret         string
	AccessTTLMinutes  int
	RefreshTTLMinutes int
	CookieSecure      bool

	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
	PresignExpiryHours int

	UploadMaxBytes   int64
	UploadExtensions []string
	DraftTTL         time.Duration
	SessionIdleTTL   time.Duration
	MaxLiveSessions  int
	BlobSweepEvery   time.Duration
	MapboxToken      string
	GeocodeCountry   string
	GeocodeCacheTTL  time.Duration
	FreeConsultURL   string
	BrevoAPIKey      string
	BrevoSenderEmail string
	BrevoSenderName  string
	BrevoSandbox     bool
	SeedDemoPassword string

	VerifyCodeTTL    time.Duration
	ResetTokenTTL    time.Duration
	PasswordResetURL string

	RateLimitBooking   int
	RateLimitLogin     int
	RateLimitUpload    int
	RateLimitWindowSec int
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads the environment. A .env file in the working directory is
// applied first; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	loc, err := time.LoadLocation(getEnv("TZ", "Asia/Dhaka"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/wisebox")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "wisebox"
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		FrontendOrigins: getEnvList("FRONTEND_ORIGINS", "http://localhost:5173,http://localhost:8080"),
		Timezone:        loc,

		MongoURI: mongoURI,
		MongoDB:  mongoDB,

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 60),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:  getEnvInt("ACCESS_TTL_MINUTES", 15),
		RefreshTTLMinutes: getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:      getEnvBool("COOKIE_SECURE", false),

		MinioEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:        getEnv("MINIO_BUCKET", "wisebox-documents"),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", false),
		PresignExpiryHours: getEnvInt("PRESIGN_EXPIRY_HOURS", 24),

		UploadMaxBytes:   int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		UploadExtensions: getEnvList("UPLOAD_EXTENSIONS", ".pdf,.jpg,.jpeg,.png"),
		DraftTTL:         time.Duration(getEnvInt("DRAFT_TTL_HOURS", 30*24)) * time.Hour,
		SessionIdleTTL:   time.Duration(getEnvInt("WIZARD_IDLE_MINUTES", 120)) * time.Minute,
		MaxLiveSessions:  getEnvInt("WIZARD_MAX_SESSIONS", 5000),
		BlobSweepEvery:   time.Duration(getEnvInt("BLOB_SWEEP_MINUTES", 360)) * time.Minute,
		MapboxToken:      getEnv("MAPBOX_TOKEN", ""),
		GeocodeCountry:   getEnv("GEOCODE_COUNTRY", "BD"),
		GeocodeCacheTTL:  time.Duration(getEnvInt("GEOCODE_CACHE_HOURS", 24)) * time.Hour,
		FreeConsultURL:   getEnv("FREE_CONSULT_URL", "https://calendly.com/wisebox/15min-free-consultation"),
		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail: getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:  getEnv("BREVO_SENDER_NAME", "Wisebox"),
		BrevoSandbox:     getEnvBool("BREVO_SANDBOX", false),
		SeedDemoPassword: getEnv("SEED_DEMO_PASSWORD", ""),

		VerifyCodeTTL:    time.Duration(getEnvInt("VERIFY_CODE_MINUTES", 5)) * time.Minute,
		ResetTokenTTL:    time.Duration(getEnvInt("PASSWORD_RESET_MINUTES", 30)) * time.Minute,
		PasswordResetURL: getEnv("PASSWORD_RESET_URL", "http://localhost:5173/auth/reset-password"),

		RateLimitBooking:   getEnvInt("RATE_LIMIT_BOOKING", 10),
		RateLimitLogin:     getEnvInt("RATE_LIMIT_LOGIN", 10),
		RateLimitUpload:    getEnvInt("RATE_LIMIT_UPLOAD", 60),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	if len(c.UploadExtensions) == 0 {
		return errors.New("UPLOAD_EXTENSIONS must not be empty")
	}
	if c.VerifyCodeTTL <= 0 || c.ResetTokenTTL <= 0 {
		return errors.New("VERIFY_CODE_MINUTES and PASSWORD_RESET_MINUTES must be positive")
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	return nil
}

// MinioEnabled reports whether blob storage should go to MinIO rather than
// the in-memory store.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSec) * time.Second
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; only the first is the db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
