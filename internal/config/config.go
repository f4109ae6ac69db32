package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration for the trading engine.
type Config struct {
	App        AppConfig                 `mapstructure:"app"`
	Database   DatabaseConfig            `mapstructure:"database"`
	Redis      RedisConfig               `mapstructure:"redis"`
	NATS       NATSConfig                `mapstructure:"nats"`
	LLM        LLMConfig                 `mapstructure:"llm"`
	Engine     EngineConfig              `mapstructure:"engine"`
	Risk       RiskConfig                `mapstructure:"risk"`
	Exchanges  map[string]ExchangeConfig `mapstructure:"exchanges"`
	API        APIConfig                 `mapstructure:"api"`
	Auth       AuthConfig                `mapstructure:"auth"`
	Monitoring MonitoringConfig          `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for the market data cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS settings for the event bus mirror.
type NATSConfig struct {
	URL            string `mapstructure:"url"`
	EventSubjectPrefix string `mapstructure:"event_subject_prefix"`
}

// LLMConfig contains LLM gateway settings. The gateway is an opaque
// capability: the engine never talks to a vendor SDK directly.
type LLMConfig struct {
	Endpoint      string  `mapstructure:"endpoint"`
	APIKey        string  `mapstructure:"api_key"`
	PrimaryModel  string  `mapstructure:"primary_model"`
	FallbackModel string  `mapstructure:"fallback_model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	TimeoutMS     int     `mapstructure:"timeout_ms"`
}

// GetTimeout returns the LLM timeout as a time.Duration.
func (c *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// EngineConfig enumerates every cycle/pipeline tunable named in spec §6.
type EngineConfig struct {
	Symbols                []string      `mapstructure:"symbols"`                   // the eight approved symbols
	CycleInterval          time.Duration `mapstructure:"cycle_interval"`            // base cycle interval
	MinTradeInterval       time.Duration `mapstructure:"min_trade_interval"`        // minimum spacing between trades
	DebateFrequency        int           `mapstructure:"debate_frequency"`          // how many cycles between full championships
	MaxRetries             int           `mapstructure:"max_retries"`               // seeding / transient retry budget
	MinBalanceToTrade      float64       `mapstructure:"min_balance_to_trade"`
	MinConfidenceToTrade   float64       `mapstructure:"min_confidence_to_trade"`
	DryRun                 bool          `mapstructure:"dry_run"`
	MaxLeverage            int           `mapstructure:"max_leverage"`
	DefaultLeverage        int           `mapstructure:"default_leverage"`
	TakeProfitPercent      float64       `mapstructure:"take_profit_percent"`
	FundingWarnThreshold   float64       `mapstructure:"funding_warn_threshold"`
	TradingRulesCache      bool          `mapstructure:"trading_rules_cache"`
	PeakWindowStartHourUTC int           `mapstructure:"peak_window_start_hour_utc"`
	PeakWindowEndHourUTC   int           `mapstructure:"peak_window_end_hour_utc"`
	JudgeWeights           JudgeWeights  `mapstructure:"judge_weights"`
}

// JudgeWeights configures the stage-3 championship judge's four scoring
// criteria. The weights must sum to 100.
type JudgeWeights struct {
	DataQuality    float64 `mapstructure:"data_quality"`
	Logic          float64 `mapstructure:"logic"`
	RiskAwareness  float64 `mapstructure:"risk_awareness"`
	CatalystClarity float64 `mapstructure:"catalyst_clarity"`
}

// RiskConfig contains risk-council and circuit-breaker thresholds (spec §4.D, §4.F).
type RiskConfig struct {
	MaxPositionPercent      float64            `mapstructure:"max_position_percent"`
	MaxStopLossDistance     float64            `mapstructure:"max_stop_loss_distance"`
	MaxConcurrentPositions  int                `mapstructure:"max_concurrent_positions"`
	MaxSameDirection        int                `mapstructure:"max_same_direction"`
	MaxWeeklyDrawdown       float64            `mapstructure:"max_weekly_drawdown"`
	MaxFundingAgainst       float64            `mapstructure:"max_funding_against"`
	NetExposureLongLimit    float64            `mapstructure:"net_exposure_long_limit"`
	NetExposureShortLimit   float64            `mapstructure:"net_exposure_short_limit"`
	MethodologyStopLossCaps map[string]float64 `mapstructure:"methodology_stop_loss_caps"`

	BTCDropYellowPercent     float64 `mapstructure:"btc_drop_yellow_percent"`
	BTCDropOrangePercent     float64 `mapstructure:"btc_drop_orange_percent"`
	BTCDropRedPercent        float64 `mapstructure:"btc_drop_red_percent"`
	DrawdownYellowPercent    float64 `mapstructure:"drawdown_yellow_percent"`
	DrawdownOrangePercent    float64 `mapstructure:"drawdown_orange_percent"`
	DrawdownRedPercent       float64 `mapstructure:"drawdown_red_percent"`
	FundingExtremePercent    float64 `mapstructure:"funding_extreme_percent"`
}

// ExchangeConfig contains exchange-specific settings.
type ExchangeConfig struct {
	BaseURL     string    `mapstructure:"base_url"`
	APIKey      string    `mapstructure:"api_key"`
	SecretKey   string    `mapstructure:"secret_key"`
	Testnet     bool      `mapstructure:"testnet"`
	RateLimitMS int       `mapstructure:"rate_limit_ms"`
	MaxLeverage int       `mapstructure:"max_leverage"`
	Fees        FeeConfig `mapstructure:"fees"`
}

// FeeConfig contains exchange fee structure.
type FeeConfig struct {
	Maker float64 `mapstructure:"maker"`
	Taker float64 `mapstructure:"taker"`
}

// APIConfig contains REST/SSE API settings.
type APIConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	AllowLegacyTokenParam bool   `mapstructure:"allow_legacy_token_param"`
}

// AuthConfig contains bearer/refresh token settings.
type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	AccessTokenTTL     time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `mapstructure:"refresh_token_ttl"`
}

// MonitoringConfig contains monitoring settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("ENGINE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "collab-engine")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "tradeengine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.event_subject_prefix", "engine.events.")

	v.SetDefault("llm.endpoint", "http://localhost:8080/v1/chat/completions")
	v.SetDefault("llm.primary_model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.fallback_model", "gpt-4-turbo")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout_ms", 30000)

	v.SetDefault("engine.symbols", []string{
		"cmt_btcusdt", "cmt_ethusdt", "cmt_solusdt", "cmt_bnbusdt",
		"cmt_xrpusdt", "cmt_dogeusdt", "cmt_adausdt", "cmt_avaxusdt",
	})
	v.SetDefault("engine.cycle_interval", "5m")
	v.SetDefault("engine.min_trade_interval", "15m")
	v.SetDefault("engine.debate_frequency", 1)
	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.min_balance_to_trade", 10.0)
	v.SetDefault("engine.min_confidence_to_trade", 55.0)
	v.SetDefault("engine.dry_run", true)
	v.SetDefault("engine.max_leverage", 20)
	v.SetDefault("engine.default_leverage", 3)
	v.SetDefault("engine.take_profit_percent", 0.08)
	v.SetDefault("engine.funding_warn_threshold", 0.003)
	v.SetDefault("engine.trading_rules_cache", true)
	v.SetDefault("engine.peak_window_start_hour_utc", 13)
	v.SetDefault("engine.peak_window_end_hour_utc", 21)
	v.SetDefault("engine.judge_weights.data_quality", 30.0)
	v.SetDefault("engine.judge_weights.logic", 30.0)
	v.SetDefault("engine.judge_weights.risk_awareness", 25.0)
	v.SetDefault("engine.judge_weights.catalyst_clarity", 15.0)

	v.SetDefault("risk.max_position_percent", 20.0)
	v.SetDefault("risk.max_stop_loss_distance", 0.10)
	v.SetDefault("risk.max_concurrent_positions", 3)
	v.SetDefault("risk.max_same_direction", 2)
	v.SetDefault("risk.max_weekly_drawdown", 15.0)
	v.SetDefault("risk.max_funding_against", 0.01)
	v.SetDefault("risk.net_exposure_long_limit", 60.0)
	v.SetDefault("risk.net_exposure_short_limit", 60.0)
	v.SetDefault("risk.btc_drop_yellow_percent", 4.0)
	v.SetDefault("risk.btc_drop_orange_percent", 7.0)
	v.SetDefault("risk.btc_drop_red_percent", 12.0)
	v.SetDefault("risk.drawdown_yellow_percent", 8.0)
	v.SetDefault("risk.drawdown_orange_percent", 15.0)
	v.SetDefault("risk.drawdown_red_percent", 25.0)
	v.SetDefault("risk.funding_extreme_percent", 0.5)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)
	v.SetDefault("api.allow_legacy_token_param", false)

	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)

	v.SetDefault("exchanges.default.base_url", "https://api.exchange.example.com")
	v.SetDefault("exchanges.default.fees.maker", 0.0002)
	v.SetDefault("exchanges.default.fees.taker", 0.0006)
	v.SetDefault("exchanges.default.max_leverage", 125)
	v.SetDefault("exchanges.default.rate_limit_ms", 100)
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address.
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
