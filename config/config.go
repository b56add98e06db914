package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Blob Store 后端类型
const (
	BlobBackendLocal = "local"
	BlobBackendMinio = "minio"
)

// DefaultAllowedAudioTypes 默认允许上传的音频类型
var DefaultAllowedAudioTypes = []string{
	"audio/mpeg",
	"audio/mp3",
	"audio/wav",
	"audio/x-wav",
	"audio/wave",
	"audio/ogg",
	"audio/flac",
	"audio/x-flac",
	"audio/aac",
	"audio/mp4",
	"audio/x-m4a",
	"audio/webm",
}

// Config stores the application configuration.
type Config struct {
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration // 0 disables the limit so long streams are not cut off
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBLogLevel string // silent, error, warn, info

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT配置
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	BlobBackend    string // local or minio
	UploadDir      string // Base directory for all uploads
	AudioUploadDir string // Subdirectory for audio blobs: UploadDir/audio
	BlobWatch      bool   // Watch AudioUploadDir for blobs removed out of band

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	MinioPrefix    string

	AllowedAudioTypes []string
	MaxUploadBytes    int64

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration 支持 "30s" 这类写法
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList 解析逗号分隔的列表，空项会被忽略
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	uploadBase := getEnv("UPLOAD_DIR", "uploads")

	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":5002"),
		ReadHeaderTimeout: getEnvDuration("HTTP_READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getEnvDuration("HTTP_WRITE_TIMEOUT", 0),
		IdleTimeout:       getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout:   getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "audiovault"),
		DBLogLevel: getEnv("DB_LOG_LEVEL", "warn"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: getEnv("JWT_ISSUER", "audiovault"),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		BlobBackend:    strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendLocal)),
		UploadDir:      uploadBase,
		AudioUploadDir: getEnv("AUDIO_UPLOAD_DIR", filepath.Join(uploadBase, "audio")),
		BlobWatch:      getEnvBool("BLOB_WATCH", false),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "audiovault"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioPrefix:    getEnv("MINIO_PREFIX", "audio/"),

		AllowedAudioTypes: getEnvList("AUDIO_ALLOWED_TYPES", DefaultAllowedAudioTypes),
		MaxUploadBytes:    getEnvInt64("AUDIO_MAX_UPLOAD_BYTES", 200<<20),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
