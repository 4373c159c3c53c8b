// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxHostAccounts is the maximum number of backing-service accounts that can be configured
const MaxHostAccounts = 5

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	JWT       JWTConfig
	PlayToken PlayTokenConfig
	Upload    UploadConfig
	VideoHost VideoHostConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds settings for validating access tokens issued by the platform identity provider
type JWTConfig struct {
	Secret string
}

// PlayTokenConfig holds playback token settings
type PlayTokenConfig struct {
	Secret         string
	TTL            time.Duration
	AllowedOrigins []string
	StrictOrigin   bool
}

// UploadConfig holds video upload settings
type UploadConfig struct {
	MaxSizeBytes   int64
	ChunkSizeBytes int64
	TempDir        string
}

// HostAccount holds one set of backing-service credentials
type HostAccount struct {
	AccountID  string
	AuthKey    string
	AuthSecret string
}

// VideoHostConfig holds backing video-hosting service settings
type VideoHostConfig struct {
	APIURL   string
	Accounts []HostAccount
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8084" // default port
	}
	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = serverPort

	// Logging configuration
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info" // default level
	}
	cfg.Logging.Level = logLevel

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOriginList(os.Getenv("CORS_ALLOWED_ORIGINS"), true)

	// JWT configuration (access tokens from the platform identity provider)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWT.Secret = jwtSecret

	// Playback token configuration
	playSecret := os.Getenv("PLAY_TOKEN_SECRET")
	if playSecret == "" {
		return nil, fmt.Errorf("PLAY_TOKEN_SECRET is required")
	}
	cfg.PlayToken.Secret = playSecret

	playTTLStr := os.Getenv("PLAY_TOKEN_TTL")
	if playTTLStr == "" {
		playTTLStr = "5m"
	}
	playTTL, err := time.ParseDuration(playTTLStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PLAY_TOKEN_TTL: %w", err)
	}
	cfg.PlayToken.TTL = playTTL

	// Playback origin allow-list (empty list disables the origin check)
	cfg.PlayToken.AllowedOrigins = parseOriginList(os.Getenv("PLAY_ALLOWED_ORIGINS"), false)

	strictStr := os.Getenv("PLAY_TOKEN_STRICT_ORIGIN")
	if strictStr != "" {
		strict, err := strconv.ParseBool(strictStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PLAY_TOKEN_STRICT_ORIGIN: %w", err)
		}
		cfg.PlayToken.StrictOrigin = strict
	}

	// Upload configuration
	maxSizeStr := os.Getenv("MAX_UPLOAD_SIZE")
	if maxSizeStr == "" {
		maxSizeStr = "524288000" // 500MB
	}
	maxSize, err := strconv.ParseInt(maxSizeStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}
	cfg.Upload.MaxSizeBytes = maxSize

	chunkSizeStr := os.Getenv("UPLOAD_CHUNK_SIZE")
	if chunkSizeStr == "" {
		chunkSizeStr = "10485760" // 10MB
	}
	chunkSize, err := strconv.ParseInt(chunkSizeStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_CHUNK_SIZE: %w", err)
	}
	cfg.Upload.ChunkSizeBytes = chunkSize

	cfg.Upload.TempDir = os.Getenv("UPLOAD_TEMP_DIR")
	if cfg.Upload.TempDir == "" {
		cfg.Upload.TempDir = os.TempDir() // default
	}

	// Backing video-hosting service configuration
	hostURL := os.Getenv("VIDEO_HOST_API_URL")
	if hostURL == "" {
		return nil, fmt.Errorf("VIDEO_HOST_API_URL is required")
	}
	cfg.VideoHost.APIURL = hostURL

	// Up to MaxHostAccounts credential sets; unset slots are skipped,
	// placeholder filtering happens at pool load
	for i := 1; i <= MaxHostAccounts; i++ {
		account := HostAccount{
			AccountID:  os.Getenv(fmt.Sprintf("VIDEO_HOST_ACCOUNT_ID_%d", i)),
			AuthKey:    os.Getenv(fmt.Sprintf("VIDEO_HOST_AUTH_KEY_%d", i)),
			AuthSecret: os.Getenv(fmt.Sprintf("VIDEO_HOST_AUTH_SECRET_%d", i)),
		}
		if account.AccountID == "" && account.AuthKey == "" && account.AuthSecret == "" {
			continue
		}
		cfg.VideoHost.Accounts = append(cfg.VideoHost.Accounts, account)
	}

	// Redis configuration (for the transcode queue)
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost" // default
	}
	cfg.Redis.Host = redisHost

	redisPortStr := os.Getenv("REDIS_PORT")
	if redisPortStr == "" {
		redisPortStr = "6379" // default
	}
	redisPort, err := strconv.Atoi(redisPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Port = redisPort

	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD") // optional

	redisDBStr := os.Getenv("REDIS_DB")
	if redisDBStr == "" {
		redisDBStr = "0" // default
	}
	redisDB, err := strconv.Atoi(redisDBStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.Redis.DB = redisDB

	return cfg, nil
}

// parseOriginList parses a comma-separated origin list.
// If allowAllDefault is true, an empty value yields ["*"]
func parseOriginList(value string, allowAllDefault bool) []string {
	if value == "" {
		if allowAllDefault {
			return []string{"*"}
		}
		return nil
	}

	parts := strings.Split(value, ",")
	origins := make([]string, 0, len(parts))
	for _, origin := range parts {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 && allowAllDefault {
		return []string{"*"}
	}
	return origins
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

// RedisAddr returns the Redis address in host:port form
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
