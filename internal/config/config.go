package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Alturino/storefront/internal/log"
)

type Application struct {
	Env       string `mapstructure:"env"        json:"env"`
	Host      string `mapstructure:"host"       json:"host"`
	SecretKey string `mapstructure:"secret_key" json:"-"`
	LogPath   string `mapstructure:"log_path"   json:"log_path"`
	PublicURL string `mapstructure:"public_url" json:"public_url"`
	Port      int    `mapstructure:"port"       json:"port"`
}

type Database struct {
	Name           string `mapstructure:"name"            json:"name"`
	Host           string `mapstructure:"host"            json:"host"`
	MigrationPath  string `mapstructure:"migration_path"  json:"migration_path"`
	Password       string `mapstructure:"password"        json:"-"`
	TimeZone       string `mapstructure:"timezone"        json:"timezone"`
	Username       string `mapstructure:"username"        json:"username"`
	MaxConnections int    `mapstructure:"max_connections" json:"max_connections"`
	MinConnections int    `mapstructure:"min_connections" json:"min_connections"`
	Port           uint16 `mapstructure:"port"            json:"port"`
}

type Cache struct {
	Host     string        `mapstructure:"host"     json:"host"`
	Password string        `mapstructure:"password" json:"-"`
	CartTTL  time.Duration `mapstructure:"cart_ttl" json:"cart_ttl"`
	Database int           `mapstructure:"database" json:"database"`
	Port     uint16        `mapstructure:"port"     json:"port"`
}

type Otel struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type Currency struct {
	Canonical      string             `mapstructure:"canonical"       json:"canonical"`
	SourceURL      string             `mapstructure:"source_url"      json:"source_url"`
	SeedRates      map[string]float64 `mapstructure:"seed_rates"      json:"seed_rates"`
	MaxAge         time.Duration      `mapstructure:"max_age"         json:"max_age"`
	FetchTimeout   time.Duration      `mapstructure:"fetch_timeout"   json:"fetch_timeout"`
	RefreshEvery   time.Duration      `mapstructure:"refresh_every"   json:"refresh_every"`
	SharedSnapshot bool               `mapstructure:"shared_snapshot" json:"shared_snapshot"`
}

type Notification struct {
	AdminAddress string        `mapstructure:"admin_address" json:"admin_address"`
	Timeout      time.Duration `mapstructure:"timeout"       json:"timeout"`
	RetryEvery   time.Duration `mapstructure:"retry_every"   json:"retry_every"`
	RetryAfter   time.Duration `mapstructure:"retry_after"   json:"retry_after"`
	RetryBatch   int           `mapstructure:"retry_batch"   json:"retry_batch"`
}

type Mail struct {
	SendgridAPIKey string `mapstructure:"sendgrid_api_key" json:"-"`
	FromAddress    string `mapstructure:"from_address"     json:"from_address"`
	FromName       string `mapstructure:"from_name"        json:"from_name"`
}

// Pricing overrides entries of the built-in custom product price table.
// Keys are "<category>:<option>:<value>" and values are INR amounts.
type Pricing struct {
	Overrides map[string]string `mapstructure:"overrides" json:"overrides"`
}

type Config struct {
	Database     `mapstructure:"db"           json:"db"`
	Cache        `mapstructure:"cache"        json:"cache"`
	Application  `mapstructure:"application"  json:"application"`
	Otel         `mapstructure:"otel"         json:"otel"`
	Currency     `mapstructure:"currency"     json:"currency"`
	Notification `mapstructure:"notification" json:"notification"`
	Mail         `mapstructure:"mail"         json:"mail"`
	Pricing      `mapstructure:"pricing"      json:"pricing"`
}

var (
	once   sync.Once
	config *Config
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("application.env", "development")
	v.SetDefault("application.host", "0.0.0.0")
	v.SetDefault("application.port", 8080)
	v.SetDefault("cache.cart_ttl", 15*time.Minute)
	v.SetDefault("currency.canonical", "INR")
	v.SetDefault("currency.max_age", time.Hour)
	v.SetDefault("currency.fetch_timeout", 5*time.Second)
	v.SetDefault("currency.refresh_every", 10*time.Minute)
	v.SetDefault("notification.timeout", 10*time.Second)
	v.SetDefault("notification.retry_every", time.Minute)
	v.SetDefault("notification.retry_after", 2*time.Minute)
	v.SetDefault("notification.retry_batch", 50)
	v.SetDefault("mail.from_name", "Storefront")
}

func InitConfig(c context.Context, filename string) *Config {
	once.Do(func() {
		logger := zerolog.Ctx(c).
			With().
			Str(log.KeyTag, "main InitConfig").
			Str(log.KeyProcess, "init config").
			Str("filename", filename).
			Logger()

		logger.Info().Msg("loading config")
		cfg, err := load(filename, "./env")
		if err != nil {
			logger.Fatal().Err(err).Msg(err.Error())
		}
		config = cfg
		logger.Info().Any(log.KeyConfig, cfg).Msg("loaded config")
	})
	return config
}

func load(filename string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(filename)
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error when reading config with error=%w", err)
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config with error=%w", err)
	}
	return &cfg, nil
}
