package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	AppBaseURL  string
	DataDir     string
	ArchiveDir  string
	CORSOrigin  string
	DatabaseURL string
	JWTSecret   string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	// OpenAI Configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	// Meilisearch Configuration
	MeiliURL       string
	MeiliMasterKey string
	// SMTP Configuration
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	// Redis Configuration
	RedisURL string
	// Object storage for option media
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
}

func Load() Config {
	return Config{
		Addr:       getenv("API_ADDR", ":8787"),
		AppBaseURL: getenv("DECISIO_APP_URL", "http://localhost:5173"),
		DataDir:    getenv("DECISIO_DATA_DIR", "./data"),
		ArchiveDir: getenv("DECISIO_ARCHIVE_DIR", "./data/archive"),
		CORSOrigin: getenv("DECISIO_CORS_ORIGIN", "*"),
		// Empty disables the remote scope entirely; the app runs
		// device-local against sqlite.
		DatabaseURL: getenv("DATABASE_URL", ""),
		JWTSecret:   getenv("DECISIO_JWT_SECRET", "decisio-dev-secret"),
		AccessTTL:   time.Duration(getenvInt("DECISIO_ACCESS_TTL_SECONDS", 900)) * time.Second,
		RefreshTTL:  time.Duration(getenvInt("DECISIO_REFRESH_TTL_SECONDS", 2592000)) * time.Second,
		// OpenAI - analysis is unavailable without a key
		OpenAIAPIKey:  getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getenv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4o-mini"),
		// Meilisearch - empty URL disables it, search falls back
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		// SMTP - empty by default, email disabled if not configured
		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Decisio"),
		// Redis - refresh sessions fall back to Postgres when unset
		RedisURL: getenv("REDIS_URL", ""),
		// MinIO - media uploads disabled when endpoint is unset
		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "decisio-media"),
		MinioRegion:    getenv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
