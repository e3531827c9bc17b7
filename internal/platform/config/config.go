package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	APIPort string
	LogDir  string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RatingQueueName      string
	RatingLockKey        string
	RatingLockTTLSeconds int
	RunEmbeddedWorker    bool

	StandingsCacheTTL      time.Duration
	DefaultSubmissionLimit int

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string
	MaxImageBytes   int64

	WSAllowedOrigins []string

	BootstrapAdminUsername string
	BootstrapAdminPassword string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		AppEnv:                 getEnv("APP_ENV", "development"),
		APIPort:                getEnv("API_PORT", "8080"),
		LogDir:                 getEnv("LOG_DIR", ""),
		JWTKey:                 []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:                 time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		DBUser:                 getEnv("DB_USER", "user"),
		DBPassword:             getEnv("DB_PASSWORD", "password"),
		DBName:                 getEnv("DB_NAME", "tohomc"),
		DBSslMode:              getEnv("DB_SSLMODE", "disable"),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvAsInt("REDIS_DB", 0),
		RatingQueueName:        getEnv("RATING_QUEUE_NAME", "rating_jobs_queue"),
		RatingLockKey:          getEnv("RATING_LOCK_KEY", "rating_job_lock"),
		RatingLockTTLSeconds:   getEnvAsInt("RATING_LOCK_TTL_SECONDS", 120),
		RunEmbeddedWorker:      getEnvAsBool("RUN_EMBEDDED_WORKER", true),
		StandingsCacheTTL:      time.Duration(getEnvAsInt("STANDINGS_CACHE_TTL_SECONDS", 15)) * time.Second,
		DefaultSubmissionLimit: getEnvAsInt("DEFAULT_SUBMISSION_LIMIT", 10),
		S3Bucket:               getEnv("S3_BUCKET", ""),
		S3Region:               getEnv("S3_REGION", "ap-northeast-1"),
		S3Endpoint:             getEnv("S3_ENDPOINT", ""),
		S3PublicBaseURL:        getEnv("S3_PUBLIC_BASE_URL", ""),
		MaxImageBytes:          int64(getEnvAsInt("MAX_IMAGE_BYTES", 5*1024*1024)),
		WSAllowedOrigins:       getEnvAsList("WS_ALLOWED_ORIGINS"),
		BootstrapAdminUsername: getEnv("BOOTSTRAP_ADMIN_USERNAME", ""),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma-separated variable, skipping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
