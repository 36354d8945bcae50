package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppPort    string
	AppEnv     string
	AppBaseURL string

	DBDriver string
	DBDSN    string

	JWTSecret     string
	JWTExpiresMin int

	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
	CORSOrigins     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StorageDriver   string
	StorageLocalDir string
	S3BucketPrefix  string
	S3Region        string
	S3Key           string
	S3Secret        string
	S3Endpoint      string
	S3URL           string

	ListingCacheTTL    time.Duration
	RatingSyncInterval time.Duration
	MessagePageSize    int
}

func Load() Config {
	return Config{
		AppPort:    get("APP_PORT", "8080"),
		AppEnv:     get("APP_ENV", "local"),
		AppBaseURL: strings.TrimRight(get("APP_BASE_URL", ""), "/"),

		DBDriver: strings.ToLower(get("DB_DRIVER", "postgres")),
		DBDSN:    must("DB_DSN"),

		JWTSecret:     must("JWT_SECRET"),
		JWTExpiresMin: getInt("JWT_EXPIRES_MIN", 10080),

		GoogleClientID:  get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:    get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect:  get("GOOGLE_REDIRECT_URL", ""),
		FrontendBaseURL: get("FRONTEND_BASE_URL", "http://localhost:3000"),
		CORSOrigins:     get("CORS_ORIGINS", "http://127.0.0.1:3000, http://localhost:3000"),

		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		StorageDriver:   strings.ToLower(get("STORAGE_DRIVER", "local")),
		StorageLocalDir: get("STORAGE_LOCAL_DIR", "./uploads"),
		S3BucketPrefix:  get("S3_BUCKET_PREFIX", ""),
		S3Region:        get("S3_REGION", "us-east-1"),
		S3Key:           get("S3_KEY", ""),
		S3Secret:        get("S3_SECRET", ""),
		S3Endpoint:      get("S3_ENDPOINT", ""),
		S3URL:           get("S3_URL", ""),

		ListingCacheTTL:    getDuration("LISTING_CACHE_TTL", time.Minute),
		RatingSyncInterval: getDuration("RATING_SYNC_INTERVAL", time.Hour),
		MessagePageSize:    getInt("MESSAGE_PAGE_SIZE", 50),
	}
}

// IsProduction reports whether APP_ENV selects production behaviour
// (JSON logs, secure cookies).
func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}

func getInt(k string, def int) int {
	n, err := strconv.Atoi(get(k, ""))
	if err != nil {
		return def
	}
	return n
}

func getDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(get(k, ""))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
