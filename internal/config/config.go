// Package config loads the platform configuration from YAML with
// environment overrides for deployment-specific secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "15s" or "5m" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Chain    ChainConfig    `yaml:"chain"`
	KYC      KYCConfig      `yaml:"kyc"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Audit    AuditConfig    `yaml:"audit"`
	Flags    FlagsConfig    `yaml:"flags"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	CORSOrigins     []string `yaml:"cors_origins"`
	RatePerSecond   int      `yaml:"rate_per_second"`
	RateBurst       int      `yaml:"rate_burst"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	// URL is a postgres DSN. Empty runs on the in-memory store.
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret  string   `yaml:"jwt_secret"`
	AccessTTL  Duration `yaml:"access_ttl"`
	RefreshTTL Duration `yaml:"refresh_ttl"`
}

type ChainConfig struct {
	RPCURL       string   `yaml:"rpc_url"`
	ChainID      int64    `yaml:"chain_id"`
	SyncInterval Duration `yaml:"sync_interval"`
}

type KYCConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type AuditConfig struct {
	LogPath string `yaml:"log_path"`
}

type FlagsConfig struct {
	CacheTTL Duration `yaml:"cache_ttl"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"*"},
			RatePerSecond:   20,
			RateBurst:       40,
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Auth: AuthConfig{
			AccessTTL:  Duration(15 * time.Minute),
			RefreshTTL: Duration(7 * 24 * time.Hour),
		},
		Chain: ChainConfig{ChainID: 1, SyncInterval: Duration(time.Minute)},
		Flags: FlagsConfig{CacheTTL: Duration(30 * time.Second)},
	}
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist, and applies environment overrides last.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment is a valid deployment.
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("auth jwt secret is required (JWT_SECRET)")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "LISTEN_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Chain.RPCURL, "CHAIN_RPC_URL")
	setInt64(&c.Chain.ChainID, "CHAIN_ID")
	setString(&c.KYC.BaseURL, "KYC_BASE_URL")
	setString(&c.KYC.APIKey, "KYC_API_KEY")
	setString(&c.KYC.WebhookSecret, "KYC_WEBHOOK_SECRET")
	setString(&c.Storage.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Storage.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Storage.Bucket, "MINIO_BUCKET")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Audit.LogPath, "AUDIT_LOG_PATH")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}
