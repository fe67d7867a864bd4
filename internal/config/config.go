// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Arbitrage     ArbitrageConfig     `mapstructure:"arbitrage"`
	Execution     ExecutionConfig     `mapstructure:"execution"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	// TUIMode is set from the command line, not the config file.
	TUIMode bool `mapstructure:"-"`
}

// GatewayConfig holds exchange gateway configuration.
type GatewayConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	APISecret     string        `mapstructure:"api_secret"`
	SpotWSURL     string        `mapstructure:"spot_ws_url"`
	FuturesWSURL  string        `mapstructure:"futures_ws_url"`
	SnapshotDepth int           `mapstructure:"snapshot_depth"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	RequestsPerMinute int       `mapstructure:"requests_per_minute"`
	Leverage      int           `mapstructure:"leverage"`
	MarginMode    string        `mapstructure:"margin_mode"`
}

// ArbitrageConfig holds signal detection configuration.
type ArbitrageConfig struct {
	QuoteAsset      string  `mapstructure:"quote_asset"`
	BaseAssets      []string `mapstructure:"base_assets"`
	OpenRatio       float64 `mapstructure:"open_ratio"`
	CloseRules      []CloseRuleConfig `mapstructure:"close_rules"`
	MaxActiveDeals  int     `mapstructure:"max_active_deals"`
	BalanceFraction float64 `mapstructure:"balance_fraction"`
}

// CloseRuleConfig is one row of the close-decision table. A deal closes when
// the current open ratio has fallen to or below OpenRatioBelow and the close
// ratio has risen to or above CloseRatioAbove.
type CloseRuleConfig struct {
	OpenRatioBelow  float64 `mapstructure:"open_ratio_below"`
	CloseRatioAbove float64 `mapstructure:"close_ratio_above"`
}

// ExecutionConfig holds order execution tuning.
type ExecutionConfig struct {
	OrderRetries      int           `mapstructure:"order_retries"`
	OrderRetryDelay   time.Duration `mapstructure:"order_retry_delay"`
	LimitPricePremium float64       `mapstructure:"limit_price_premium"`
	SettleWait        time.Duration `mapstructure:"settle_wait"`
	FeePriceMaxAge    time.Duration `mapstructure:"fee_price_max_age"`
}

// LedgerConfig holds persistence configuration.
type LedgerConfig struct {
	Path     string `mapstructure:"path"`
	AuditDir string `mapstructure:"audit_dir"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// NotificationsConfig holds notification sink configuration.
type NotificationsConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`
	WebhookURL     string `mapstructure:"webhook_url"`
}

// OpenRatioDecimal returns the open threshold as decimal.Decimal.
func (c *ArbitrageConfig) OpenRatioDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.OpenRatio)
}

// BalanceFractionDecimal returns the usable balance fraction as decimal.
func (c *ArbitrageConfig) BalanceFractionDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.BalanceFraction)
}

// PremiumDecimal returns the limit-price premium as decimal.
func (c *ExecutionConfig) PremiumDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.LimitPricePremium)
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("BASIS")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "BASIS_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "BASIS_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "BASIS_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("gateway.api_key", "BASIS_API_KEY", "BINANCE_API_KEY")
	v.BindEnv("gateway.api_secret", "BASIS_API_SECRET", "BINANCE_API_SECRET")
	v.BindEnv("gateway.spot_ws_url", "BASIS_SPOT_WS_URL")
	v.BindEnv("gateway.futures_ws_url", "BASIS_FUTURES_WS_URL")

	v.BindEnv("arbitrage.quote_asset", "BASIS_QUOTE_ASSET")
	v.BindEnv("arbitrage.open_ratio", "BASIS_OPEN_RATIO")
	v.BindEnv("arbitrage.max_active_deals", "BASIS_MAX_ACTIVE_DEALS")

	v.BindEnv("ledger.path", "BASIS_LEDGER_PATH")
	v.BindEnv("ledger.audit_dir", "BASIS_AUDIT_DIR")

	v.BindEnv("telemetry.enabled", "BASIS_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "BASIS_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "BASIS_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	v.BindEnv("notifications.telegram_token", "BASIS_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("notifications.telegram_chat_id", "BASIS_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")
	v.BindEnv("notifications.webhook_url", "BASIS_WEBHOOK_URL")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "basisarb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("gateway.spot_ws_url", "wss://stream.binance.com:9443")
	v.SetDefault("gateway.futures_ws_url", "wss://fstream.binance.com")
	v.SetDefault("gateway.snapshot_depth", 20)
	v.SetDefault("gateway.read_timeout", "30s")
	v.SetDefault("gateway.write_timeout", "10s")
	v.SetDefault("gateway.requests_per_minute", 1200)
	v.SetDefault("gateway.leverage", 1)
	v.SetDefault("gateway.margin_mode", "cross")

	v.SetDefault("arbitrage.quote_asset", "USDT")
	v.SetDefault("arbitrage.base_assets", []string{"BTC", "ETH"})
	v.SetDefault("arbitrage.open_ratio", 2.0)
	v.SetDefault("arbitrage.max_active_deals", 2)
	v.SetDefault("arbitrage.balance_fraction", 0.9)

	v.SetDefault("execution.order_retries", 3)
	v.SetDefault("execution.order_retry_delay", "2s")
	v.SetDefault("execution.limit_price_premium", 0.005)
	v.SetDefault("execution.settle_wait", "10s")
	v.SetDefault("execution.fee_price_max_age", "60s")

	v.SetDefault("ledger.path", "data/deals.json")
	v.SetDefault("ledger.audit_dir", "data/audit")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "basisarb")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Arbitrage.QuoteAsset == "" {
		return fmt.Errorf("arbitrage.quote_asset is required")
	}
	if len(c.Arbitrage.BaseAssets) == 0 {
		return fmt.Errorf("arbitrage.base_assets cannot be empty")
	}
	if c.Arbitrage.MaxActiveDeals <= 0 {
		return fmt.Errorf("arbitrage.max_active_deals must be positive")
	}
	if c.Arbitrage.BalanceFraction <= 0 || c.Arbitrage.BalanceFraction > 1 {
		return fmt.Errorf("arbitrage.balance_fraction must be in (0, 1]")
	}
	if c.Execution.OrderRetries <= 0 {
		return fmt.Errorf("execution.order_retries must be positive")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if c.Gateway.MarginMode != "cross" && c.Gateway.MarginMode != "isolated" {
		return fmt.Errorf("gateway.margin_mode must be cross or isolated, got %q", c.Gateway.MarginMode)
	}
	return nil
}
