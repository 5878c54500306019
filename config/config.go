package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the engine configuration.
// Most values have desktop-friendly defaults; the UI shell normally
// ships a .env next to the binary.
type Config struct {
	ListenAddr    string
	FFprobePath   string
	MediaDir      string // Base directory for imported media files
	WatchImports  bool   // Watch MediaDir for new files via fsnotify
	LogPath       string
	LogLevel      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	MinioEndpoint string
	MinioAccess   string
	MinioSecret   string
	MinioBucket   string
	MinioUseSSL   bool
	MinioRegion   string

	// 播放同步参数，默认值来自引擎调优，一般不需要改动
	FrameInterval   int     // 帧回调最小间隔，毫秒
	SeekThreshold   float64 // 时钟→解码器 纠偏阈值（秒）
	PlayheadDrift   float64 // 解码器→时钟 纠偏阈值（秒）
	SnapInterval    float64 // 默认吸附网格间隔（秒）
	PixelsPerSecond float64 // 拖拽换算比例
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

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() 不会覆盖已有环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	mediaBase := getEnv("MEDIA_DIR", filepath.Join("media", "imports"))

	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", "127.0.0.1:8090"),
		FFprobePath:   getEnv("FFPROBE_PATH", "ffprobe"),
		MediaDir:      mediaBase,
		WatchImports:  getEnvBool("WATCH_IMPORTS", true),
		LogPath:       getEnv("LOG_PATH", filepath.Join("logs", "clipdeck.log")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DBHost:        getEnv("DB_HOST", "127.0.0.1"),
		DBPort:        getEnv("DB_PORT", "3306"),
		DBUser:        getEnv("DB_USER", "root"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        getEnv("DB_NAME", "clipdeck"),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		MinioEndpoint: getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccess:   os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecret:   os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:   getEnv("MINIO_BUCKET", "clipdeck"),
		MinioUseSSL:   getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:   getEnv("MINIO_REGION", "us-east-1"),

		FrameInterval:   getEnvInt("FRAME_INTERVAL_MS", 16),
		SeekThreshold:   getEnvFloat("SEEK_THRESHOLD", 0.1),
		PlayheadDrift:   getEnvFloat("PLAYHEAD_DRIFT", 0.05),
		SnapInterval:    getEnvFloat("SNAP_INTERVAL", 1.0),
		PixelsPerSecond: getEnvFloat("PIXELS_PER_SECOND", 50),
	}
}
