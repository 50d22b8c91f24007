package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the typed view of every setting the engine reads at startup.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Auction AuctionConfig `mapstructure:"auction"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// StorageConfig selects the Ledger Store backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuctionConfig struct {
	// FeeRates maps an auction category to the platform fee rate, as decimal strings ("0.05").
	FeeRates          map[string]string `mapstructure:"fee_rates"`
	PlatformAccountID string            `mapstructure:"platform_account_id"`
	SweepInterval     time.Duration     `mapstructure:"sweep_interval"`
	SweepLookback     time.Duration     `mapstructure:"sweep_lookback"`
	RecentBidWindow   int               `mapstructure:"recent_bid_window"`
	LiveStateBackend  string            `mapstructure:"live_state_backend"`
}

// DSN builds the postgres connection url.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// ParsedFeeRates converts the configured fee rates into decimals, rejecting values outside [0, 1).
func (c AuctionConfig) ParsedFeeRates() (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(c.FeeRates))
	for category, raw := range c.FeeRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid fee rate for %q: %w", category, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("config: fee rate for %q must be in [0, 1), got %s", category, raw)
		}
		rates[category] = rate
	}
	return rates, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9000)
	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "escrow_engine")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "auction.settled")

	v.SetDefault("auction.fee_rates", map[string]string{
		"standard": "0.05",
		"premium":  "0.10",
	})
	v.SetDefault("auction.platform_account_id", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("auction.sweep_interval", 10*time.Minute)
	v.SetDefault("auction.sweep_lookback", 24*time.Hour)
	v.SetDefault("auction.recent_bid_window", 20)
	v.SetDefault("auction.live_state_backend", "memory")
}

// Load reads .env (if present), an optional config file named by CONFIG_FILE and the environment.
// Environment keys use underscores for nesting: DB_HOST, AUCTION_SWEEP_INTERVAL, KAFKA_BROKERS.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if _, err := cfg.Auction.ParsedFeeRates(); err != nil {
		return nil, err
	}
	return cfg, nil
}
