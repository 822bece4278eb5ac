package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL settings for the document ledger.
// The ledger falls back to process memory when Host is empty.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	ConnectAttempts    int
}

// Enabled reports whether a Postgres ledger is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// StorageConfig selects the object store backend.
// Backend is "minio" (default) or "memory".
type StorageConfig struct {
	Backend       string
	PublicBaseURL string
}

// MinIOConfig holds object storage settings for MinIO or any S3-compatible endpoint.
type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PublicRead bool
}

// GeminiConfig holds generative AI settings.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// TimeoutConfig bounds every outbound network call.
type TimeoutConfig struct {
	Store   time.Duration
	Fetch   time.Duration
	Extract time.Duration
	Answer  time.Duration
}

// PipelineConfig holds document pipeline limits.
type PipelineConfig struct {
	ScratchDir       string
	MaxDocumentBytes int64
	OrphanTTL        time.Duration
	OrphanSweepEvery time.Duration
	PresignExpiry    time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port     string
	Location *time.Location
	Database DatabaseConfig
	Storage  StorageConfig
	MinIO    MinIOConfig
	Gemini   GeminiConfig
	Timeouts TimeoutConfig
	Pipeline PipelineConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		Port:     getEnv("PORT", "8080"),
		Location: getEnvLocation("TZ", time.UTC),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			ConnectAttempts:    getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", "minio"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		},
		MinIO: MinIOConfig{
			Endpoint:   getEnv("MINIO_ENDPOINT", ""),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:  getEnv("MINIO_SECRET_KEY", ""),
			Bucket:     getEnv("MINIO_BUCKET", ""),
			UseSSL:     getEnvBool("MINIO_USE_SSL", false),
			PublicRead: getEnvBool("MINIO_PUBLIC_READ", true),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Timeouts: TimeoutConfig{
			Store:   getEnvSeconds("STORE_TIMEOUT_SEC", 30),
			Fetch:   getEnvSeconds("FETCH_TIMEOUT_SEC", 30),
			Extract: getEnvSeconds("EXTRACT_TIMEOUT_SEC", 120),
			Answer:  getEnvSeconds("ANSWER_TIMEOUT_SEC", 60),
		},
		Pipeline: PipelineConfig{
			ScratchDir:       getEnv("SCRATCH_DIR", os.TempDir()),
			MaxDocumentBytes: int64(getEnvInt("MAX_DOCUMENT_BYTES", 20<<20)),
			OrphanTTL:        getEnvSeconds("ORPHAN_TTL_SEC", 3600),
			OrphanSweepEvery: getEnvSeconds("ORPHAN_SWEEP_INTERVAL_SEC", 600),
			PresignExpiry:    getEnvSeconds("PRESIGN_EXPIRY_SEC", 3600),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvSeconds reads a whole number of seconds. Non-positive values fall back to def.
func getEnvSeconds(key string, def int) time.Duration {
	n := getEnvInt(key, def)
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

func getEnvLocation(key string, def *time.Location) *time.Location {
	if v := os.Getenv(key); v != "" {
		loc, err := time.LoadLocation(v)
		if err == nil {
			return loc
		}
	}
	return def
}
