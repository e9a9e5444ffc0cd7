package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from the environment (optionally via a .env file) with
// development-friendly defaults.
type Config struct {
	ServerPort string

	UploadDir      string // Base directory for all uploads
	AudioUploadDir string // Subdirectory for meeting audio: UploadDir/audio
	MaxUploadSize  int64  // Maximum accepted audio upload, bytes

	// Pipeline settings
	PipelineWorkers      int // Max concurrent transcription/analysis pipelines
	TranscribeTimeoutSec int
	AnalyzeTimeoutSec    int

	// Storage driver for meeting records: "memory" or "mysql"
	StorageDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置（为空时退回本地磁盘存储）
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// OpenAI-compatible provider for transcription and analysis
	OpenAIAPIBaseURL string
	OpenAIAPIKey     string
	WhisperModel     string
	ChatModel        string

	// Hosted calendar provider (read-only, upcoming meetings)
	CalendarAPIBaseURL string
	CalendarAPIKey     string
	CalendarID         string

	LogLevel string
	LogPath  string
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

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	uploadBase := getEnv("UPLOAD_DIR", "uploads")

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		UploadDir:      uploadBase,
		AudioUploadDir: filepath.Join(uploadBase, "audio"),
		MaxUploadSize:  int64(getEnvInt("MAX_UPLOAD_MB", 100)) << 20,

		PipelineWorkers:      getEnvInt("PIPELINE_WORKERS", 4),
		TranscribeTimeoutSec: getEnvInt("TRANSCRIBE_TIMEOUT_SEC", 120),
		AnalyzeTimeoutSec:    getEnvInt("ANALYZE_TIMEOUT_SEC", 60),

		StorageDriver: getEnv("STORAGE_DRIVER", "memory"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "meetscope"),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),     // 默认使用0号数据库

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "meetscope"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		OpenAIAPIBaseURL: getEnv("OPENAI_API_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		WhisperModel:     getEnv("WHISPER_MODEL", "whisper-1"),
		ChatModel:        getEnv("CHAT_MODEL", "gpt-4o"),

		CalendarAPIBaseURL: getEnv("CALENDAR_API_BASE_URL", "https://www.googleapis.com/calendar/v3"),
		CalendarAPIKey:     os.Getenv("CALENDAR_API_KEY"),
		CalendarID:         getEnv("CALENDAR_ID", "primary"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
