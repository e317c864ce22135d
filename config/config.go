package config

import (
	"fmt"
	"strings"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log      Logger         `mapstructure:"logger"`
	DB       Database       `mapstructure:"database"`
	API      API            `mapstructure:"api"`
	Engine   Engine         `mapstructure:"engine"`
	Binance  Exchange       `mapstructure:"binance"`
	GateIO   Exchange       `mapstructure:"gateio"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Cache    Cache          `mapstructure:"cache"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host" validate:"required"`
	Port            int    `mapstructure:"port" validate:"required"`
	User            string `mapstructure:"user" validate:"required"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name" validate:"required"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port int `mapstructure:"port" validate:"required"`
}

// Engine holds the scheduling knobs of the condition-evaluation engine.
// Intervals and delays are deployment configuration, not constants.
type Engine struct {
	OrderInterval        time.Duration `mapstructure:"order_interval" validate:"required"`
	AlertInterval        time.Duration `mapstructure:"alert_interval" validate:"required"`
	AccountCheckInterval time.Duration `mapstructure:"account_check_interval" validate:"required"`
	StartDelay           time.Duration `mapstructure:"start_delay"`
	StaggerStep          time.Duration `mapstructure:"stagger_step"`
	TickTimeout          time.Duration `mapstructure:"tick_timeout"`
	AlertFeedExchange    string        `mapstructure:"alert_feed_exchange"`
}

type Exchange struct {
	BaseURL             string        `mapstructure:"base_url" validate:"required"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_min"`
}

type TelegramConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerSecond int           `mapstructure:"max_request_per_second"`
	BotCacheDuration    time.Duration `mapstructure:"bot_cache_duration"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

func Load() (*Config, error) {
	// .env is optional, env vars win either way.
	_ = godotenv.Load()

	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := goValidator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")

	viper.SetDefault("api.port", 8080)

	viper.SetDefault("engine.order_interval", 10*time.Minute)
	viper.SetDefault("engine.alert_interval", 2*time.Minute)
	viper.SetDefault("engine.account_check_interval", 30*time.Minute)
	viper.SetDefault("engine.start_delay", 15*time.Second)
	viper.SetDefault("engine.stagger_step", 5*time.Second)
	viper.SetDefault("engine.tick_timeout", 5*time.Minute)
	viper.SetDefault("engine.alert_feed_exchange", "binance")

	viper.SetDefault("binance.base_url", "https://api.binance.com")
	viper.SetDefault("binance.timeout", 5*time.Second)
	viper.SetDefault("binance.max_request_per_min", 60)

	viper.SetDefault("gateio.base_url", "https://api.gateio.ws")
	viper.SetDefault("gateio.timeout", 5*time.Second)
	viper.SetDefault("gateio.max_request_per_min", 60)

	viper.SetDefault("telegram.timeout", 10*time.Second)
	viper.SetDefault("telegram.max_request_per_second", 30)
	viper.SetDefault("telegram.bot_cache_duration", 30*time.Minute)

	viper.SetDefault("cache.default_expiration", 5*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
}
