package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver      string `mapstructure:"DB_DRIVER"`
	DB_URL        string `mapstructure:"DB_URL"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`
	AdminEmail    string        `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string        `mapstructure:"ADMIN_PASSWORD"`

	BillingBTCAddress  string `mapstructure:"BILLING_BTC_ADDRESS"`
	BillingUSDTAddress string `mapstructure:"BILLING_USDT_ADDRESS"`
	BillingTRXAddress  string `mapstructure:"BILLING_TRX_ADDRESS"`
	BillingBTCXPub     string `mapstructure:"BILLING_BTC_XPUB"`
	BTCNetwork         string `mapstructure:"BTC_NETWORK"`

	SubscriptionDays int     `mapstructure:"SUBSCRIPTION_DAYS"`
	ReferralRate     float64 `mapstructure:"REFERRAL_RATE"`

	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	MaxUploadBytes int64  `mapstructure:"MAX_UPLOAD_BYTES"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
	CORSOrigins    string  `mapstructure:"CORS_ORIGINS"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	AdminChatID      int64  `mapstructure:"ADMIN_CHAT_ID"`
}

var defaults = map[string]any{
	"HTTP_ADDR":            ":8001",
	"APP_ENV":              "development",
	"LOG_LEVEL":            "info",
	"DB_DRIVER":            "postgres",
	"DB_URL":               "",
	"DB_AUTO_MIGRATE":      true,
	"JWT_SECRET":           "",
	"TOKEN_TTL":            "72h",
	"ADMIN_EMAIL":          "",
	"ADMIN_PASSWORD":       "",
	"BILLING_BTC_ADDRESS":  "",
	"BILLING_USDT_ADDRESS": "",
	"BILLING_TRX_ADDRESS":  "",
	"BILLING_BTC_XPUB":     "",
	"BTC_NETWORK":          "mainnet",
	"SUBSCRIPTION_DAYS":    30,
	"REFERRAL_RATE":        0.5,
	"UPLOAD_DIR":           "./uploads",
	"MAX_UPLOAD_BYTES":     5 * 1024 * 1024,
	"RATE_LIMIT_RPS":       10.0,
	"RATE_LIMIT_BURST":     20,
	"CORS_ORIGINS":         "*",
	"TELEGRAM_BOT_TOKEN":   "",
	"ADMIN_CHAT_ID":        0,
}

// LoadConfig reads the env-file at path if it exists and overlays the process
// environment. Every key has a default so plain environment variables work
// without a file.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return config, fmt.Errorf("resolve config path: %w", err)
		}

		if _, statErr := os.Stat(absPath); statErr == nil {
			v.SetConfigFile(absPath)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return config, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return config, fmt.Errorf("stat config: %w", statErr)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}

	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	return config, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}
	if c.DB_URL == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}
	switch strings.ToLower(c.BTCNetwork) {
	case "mainnet", "testnet", "testnet3", "regtest":
	default:
		errs = append(errs, fmt.Errorf("BTC_NETWORK %q is not supported", c.BTCNetwork))
	}
	if c.SubscriptionDays <= 0 {
		errs = append(errs, errors.New("SUBSCRIPTION_DAYS must be positive"))
	}
	if c.ReferralRate <= 0 || c.ReferralRate > 1 {
		errs = append(errs, errors.New("REFERRAL_RATE must be in (0, 1]"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

// AllowedOrigins splits CORS_ORIGINS. A single "*" means any origin.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func (c *Config) IsRelease() bool {
	return c.AppEnv == "production" || c.AppEnv == "release"
}
