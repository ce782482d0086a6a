package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Gemini   GeminiConfig
	Database DatabaseConfig
	S3       S3Config
	Email    EmailConfig
	Geo      GeoConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Host        string
	Port        string
	CORSOrigins []string
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

type StoreConfig struct {
	Path string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// DatabaseConfig points at the cloud report/profile tables. An empty DSN
// means local-only mode.
type DatabaseConfig struct {
	DSN string
}

type S3Config struct {
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

type EmailConfig struct {
	Endpoint  string
	AccessKey string
	FromName  string
}

type GeoConfig struct {
	Endpoint string
}

type AuthConfig struct {
	JWTSecret string
}

// Load reads configuration from the environment (plus an optional .env
// file) with sane defaults. Constructed once in main and passed by
// reference; there are no package-level config singletons.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.path", "parksign.db")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("database.dsn", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket", "parksign-reports")
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("email.endpoint", "")
	v.SetDefault("email.access_key", "")
	v.SetDefault("email.from_name", "ParkSign")
	v.SetDefault("geo.endpoint", "")
	v.SetDefault("auth.jwt_secret", "")

	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("server.host"),
			Port:        v.GetString("server.port"),
			CORSOrigins: strings.Split(v.GetString("server.cors_origins"), ","),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
		Gemini: GeminiConfig{
			APIKey: v.GetString("gemini.api_key"),
			Model:  v.GetString("gemini.model"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database.dsn"),
		},
		S3: S3Config{
			Region:        v.GetString("s3.region"),
			Endpoint:      v.GetString("s3.endpoint"),
			AccessKey:     v.GetString("s3.access_key"),
			SecretKey:     v.GetString("s3.secret_key"),
			Bucket:        v.GetString("s3.bucket"),
			PublicBaseURL: v.GetString("s3.public_base_url"),
		},
		Email: EmailConfig{
			Endpoint:  v.GetString("email.endpoint"),
			AccessKey: v.GetString("email.access_key"),
			FromName:  v.GetString("email.from_name"),
		},
		Geo: GeoConfig{
			Endpoint: v.GetString("geo.endpoint"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
	}
	return cfg, nil
}
