package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	URLTTL    time.Duration
}

type SecurityConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	MaxSessions      int
}

// RemovalConfig drives the background-removal API client. Mode selects the
// authoritative processing path: "inline" strips the background during the
// upload request, "deferred" publishes the raw blob and leaves removal to the
// worker.
type RemovalConfig struct {
	Endpoint string
	APIKey   string
	Mode     string
	Size     string
	Format   string
	Type     string
	BGColor  string
	Timeout  time.Duration
}

type PipelineConfig struct {
	MaxUploadAttempts int
	BackoffBase       time.Duration
	SettlingDelay     time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Removal          RemovalConfig
	Pipeline         PipelineConfig
	AllowCORSOrigins []string
}

const (
	RemovalModeInline   = "inline"
	RemovalModeDeferred = "deferred"
)

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("UPWAKE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Removal.Mode != RemovalModeInline && cfg.Removal.Mode != RemovalModeDeferred {
		return nil, fmt.Errorf("removal.mode must be %q or %q, got %q",
			RemovalModeInline, RemovalModeDeferred, cfg.Removal.Mode)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "upwake:tasks")
	v.SetDefault("redis.group", "upwake-workers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("storage.bucket", "upwake-scans")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.urlttl", "24h")

	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.jwtrefreshttl", "720h") // 30 days
	v.SetDefault("security.maxsessions", 10)

	v.SetDefault("removal.endpoint", "https://api.remove.bg/v1.0/removebg")
	v.SetDefault("removal.mode", "deferred")
	v.SetDefault("removal.size", "auto")
	v.SetDefault("removal.format", "png")
	v.SetDefault("removal.type", "product")
	v.SetDefault("removal.timeout", "30s")

	v.SetDefault("pipeline.maxuploadattempts", 3)
	v.SetDefault("pipeline.backoffbase", "2s")
	v.SetDefault("pipeline.settlingdelay", "2s")
}
