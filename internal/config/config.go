package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/salonmirai/sitesync/internal/storage"
	"github.com/salonmirai/sitesync/pkg/logger"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Archive   storage.MinIOConfig
	Admin     AdminConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Sync      SyncConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoDBConfig describes the remote tier. An empty URI runs the site local-only.
type MongoDBConfig struct {
	URI             string
	Database        string
	Collection      string
	AuditCollection string
	DocumentKey     string
	Timeout         time.Duration
}

// RedisConfig describes the local tier. An empty host keeps the cache in process memory.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// AdminConfig holds the fixed credential table and session lifetime.
type AdminConfig struct {
	Credentials map[string]string
	SessionTTL  time.Duration
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
	LoginRPS      float64
	LoginBurst    int
}

type SyncConfig struct {
	ProbeInterval time.Duration
	RemoteWait    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(envFile())

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", 30)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	viper.SetDefault("MONGODB_DATABASE", "salon")
	viper.SetDefault("MONGODB_COLLECTION", "salon_content")
	viper.SetDefault("MONGODB_AUDIT_COLLECTION", "admin_logs")
	viper.SetDefault("MONGODB_DOCUMENT_KEY", "salonData")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("MINIO_BUCKET", "salon-archive")
	viper.SetDefault("ADMIN_CREDENTIALS", "salon_admin:salon2024,demo_user:demo123")
	viper.SetDefault("ADMIN_SESSION_TTL_MINUTES", 120)
	viper.SetDefault("JWT_ISSUER", "sitesync")
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("LOGIN_RATE_LIMIT_RPS", 0.2)
	viper.SetDefault("LOGIN_RATE_LIMIT_BURST", 5)
	viper.SetDefault("SYNC_PROBE_INTERVAL_SECONDS", 10)
	viper.SetDefault("SYNC_REMOTE_WAIT_SECONDS", 5)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	creds, err := ParseCredentials(viper.GetString("ADMIN_CREDENTIALS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  time.Duration(viper.GetInt("SERVER_READ_TIMEOUT")) * time.Second,
			WriteTimeout: time.Duration(viper.GetInt("SERVER_WRITE_TIMEOUT")) * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:             viper.GetString("MONGODB_URI"),
			Database:        viper.GetString("MONGODB_DATABASE"),
			Collection:      viper.GetString("MONGODB_COLLECTION"),
			AuditCollection: viper.GetString("MONGODB_AUDIT_COLLECTION"),
			DocumentKey:     viper.GetString("MONGODB_DOCUMENT_KEY"),
			Timeout:         time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Archive: storage.MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		Admin: AdminConfig{
			Credentials: creds,
			SessionTTL:  time.Duration(viper.GetInt("ADMIN_SESSION_TTL_MINUTES")) * time.Minute,
		},
		Keycloak: KeycloakConfig{
			URL:      viper.GetString("KEYCLOAK_URL"),
			Realm:    viper.GetString("KEYCLOAK_REALM"),
			ClientID: viper.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: viper.GetString("JWT_ISSUER"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			LoginRPS:      viper.GetFloat64("LOGIN_RATE_LIMIT_RPS"),
			LoginBurst:    viper.GetInt("LOGIN_RATE_LIMIT_BURST"),
		},
		Sync: SyncConfig{
			ProbeInterval: time.Duration(viper.GetInt("SYNC_PROBE_INTERVAL_SECONDS")) * time.Second,
			RemoteWait:    time.Duration(viper.GetInt("SYNC_REMOTE_WAIT_SECONDS")) * time.Second,
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			File:   viper.GetString("LOG_FILE"),
		},
	}

	if cfg.JWT.Secret == "" {
		logger.Warn("JWT_SECRET is not set; a random secret is generated per process and sessions do not survive restarts")
	}
	if cfg.Admin.SessionTTL <= 0 {
		return nil, fmt.Errorf("ADMIN_SESSION_TTL_MINUTES must be positive")
	}

	return cfg, nil
}

func envFile() string {
	if p := os.Getenv("ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

// ParseCredentials reads "user:pass,user2:pass2". Whitespace around entries is ignored.
func ParseCredentials(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, pass, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(user) == "" || pass == "" {
			return nil, fmt.Errorf("invalid ADMIN_CREDENTIALS entry %q", entry)
		}
		out[strings.TrimSpace(user)] = pass
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ADMIN_CREDENTIALS must name at least one user")
	}
	return out, nil
}

// Usernames lists configured admin names in stable order.
func (a AdminConfig) Usernames() []string {
	names := make([]string, 0, len(a.Credentials))
	for n := range a.Credentials {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
