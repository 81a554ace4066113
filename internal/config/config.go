// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config represents the full application configuration.
type Config struct {
	BotID     string          `yaml:"bot_id"`
	Order     OrderConfig     `yaml:"order"`
	Execution ExecutionConfig `yaml:"execution"`
	Market    MarketConfig    `yaml:"market"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Broker    BrokerConfig    `yaml:"broker"`
	Journal   JournalConfig   `yaml:"journal"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// OrderConfig is the parent order to run. CLI flags override it.
type OrderConfig struct {
	Strategy   string `yaml:"strategy"` // TWAP | AGGRESSIVE | LIQUIDATE
	Symbol     string `yaml:"symbol"`
	Action     string `yaml:"action"` // buy | sell
	Size       int64  `yaml:"size"`
	MaxTimeSec int    `yaml:"maxtime_sec"`
	Slices     int    `yaml:"slices"`
}

// ExecutionConfig holds strategy timing and penalty settings.
type ExecutionConfig struct {
	AggressiveDeadlineMs  int     `yaml:"aggressive_deadline_ms"`
	LiquidationDeadlineMs int     `yaml:"liquidation_deadline_ms"`
	EscalationThresholdMs int     `yaml:"escalation_threshold_ms"`
	PenaltyRate           float64 `yaml:"penalty_rate"`
	ReadinessTimeoutSec   int     `yaml:"readiness_timeout_sec"`
	RetryBackoffMs        int     `yaml:"retry_backoff_ms"`
}

// MarketConfig holds book settings.
type MarketConfig struct {
	BookLevels []string `yaml:"book_levels"`
}

// PricingConfig selects and configures the pricing service.
type PricingConfig struct {
	Type              string `yaml:"type"` // http | local
	BaseURL           string `yaml:"base_url"`
	AggressivePath    string `yaml:"aggressive_path"`
	SlicedPath        string `yaml:"sliced_path"`
	TimeoutMs         int    `yaml:"timeout_ms"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
}

// BrokerConfig holds market and order state provider settings.
type BrokerConfig struct {
	Type                string  `yaml:"type"` // paper
	ConfirmDelayMs      int     `yaml:"confirm_delay_ms"`
	ReplenishIntervalMs int     `yaml:"replenish_interval_ms"`
	SubmitsPerSecond    int     `yaml:"submits_per_second"`
	MidPrice            float64 `yaml:"mid_price"`
	TickSize            float64 `yaml:"tick_size"`
	LevelSize           int64   `yaml:"level_size"`
	BookFile            string  `yaml:"book_file"`    // recorded depth CSV; synthetic book when empty
	ReplaySpeed         float64 `yaml:"replay_speed"` // 0 replays back to back
}

// JournalConfig holds execution journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // sqlite
	Path    string `yaml:"path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
	Events   []string        `yaml:"events"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type     string `yaml:"type"` // console | telegram
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIBase  string `yaml:"api_base"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Order.Strategy == "" {
		c.Order.Strategy = types.StrategyTWAP
	}
	if c.Order.Action == "" {
		c.Order.Action = "buy"
	}

	if c.Execution.AggressiveDeadlineMs == 0 {
		c.Execution.AggressiveDeadlineMs = 2000
	}
	if c.Execution.LiquidationDeadlineMs == 0 {
		c.Execution.LiquidationDeadlineMs = 30000
	}
	if c.Execution.EscalationThresholdMs == 0 {
		c.Execution.EscalationThresholdMs = 1000
	}
	if c.Execution.PenaltyRate == 0 {
		c.Execution.PenaltyRate = 0.125
	}
	if c.Execution.ReadinessTimeoutSec == 0 {
		c.Execution.ReadinessTimeoutSec = 30
	}
	if c.Execution.RetryBackoffMs == 0 {
		c.Execution.RetryBackoffMs = 100
	}

	if len(c.Market.BookLevels) == 0 {
		c.Market.BookLevels = []string{"L1", "L2", "L3", "L4", "L5"}
	}

	if c.Pricing.Type == "" {
		c.Pricing.Type = "local"
	}
	if c.Pricing.TimeoutMs == 0 {
		c.Pricing.TimeoutMs = 5000
	}

	if c.Broker.Type == "" {
		c.Broker.Type = "paper"
	}
	if c.Broker.MidPrice == 0 {
		c.Broker.MidPrice = 100
	}
	if c.Broker.TickSize == 0 {
		c.Broker.TickSize = 0.01
	}
	if c.Broker.LevelSize == 0 {
		c.Broker.LevelSize = 20
	}

	if c.Journal.Type == "" {
		c.Journal.Type = "sqlite"
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate fills defaults and validates the configuration. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	c.applyDefaults()

	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	// Order validation
	switch strings.ToUpper(c.Order.Strategy) {
	case types.StrategyTWAP, types.StrategyAggressive, types.StrategyLiquidate:
	default:
		add("order.strategy %q is not supported", c.Order.Strategy)
	}
	if _, err := types.ParseSide(c.Order.Action); err != nil {
		add("order.action %q must be buy or sell", c.Order.Action)
	}
	if c.Order.Size < 0 {
		add("order.size must not be negative")
	}
	if c.Order.MaxTimeSec < 0 {
		add("order.maxtime_sec must not be negative")
	}
	if c.Order.Slices < 0 {
		add("order.slices must not be negative")
	}

	// Execution validation
	if c.Execution.AggressiveDeadlineMs < 0 {
		add("execution.aggressive_deadline_ms must be positive")
	}
	if c.Execution.LiquidationDeadlineMs < 0 {
		add("execution.liquidation_deadline_ms must be positive")
	}
	if c.Execution.EscalationThresholdMs < 0 {
		add("execution.escalation_threshold_ms must be positive")
	}
	if c.Execution.PenaltyRate < 0 {
		add("execution.penalty_rate must be positive")
	}
	if c.Execution.ReadinessTimeoutSec < 0 {
		add("execution.readiness_timeout_sec must be positive")
	}
	if c.Execution.RetryBackoffMs < 0 {
		add("execution.retry_backoff_ms must not be negative")
	}

	// Pricing validation
	switch c.Pricing.Type {
	case "local":
	case "http":
		if c.Pricing.BaseURL == "" {
			add("pricing.base_url is required for http")
		}
	default:
		add("pricing.type must be 'http' or 'local'")
	}

	// Broker validation
	if c.Broker.Type != "paper" {
		add("broker.type must be 'paper'")
	}
	if c.Broker.MidPrice < 0 || c.Broker.TickSize < 0 || c.Broker.LevelSize < 0 {
		add("broker.mid_price, tick_size and level_size must be positive")
	}
	if c.Broker.ReplaySpeed < 0 {
		add("broker.replay_speed must be zero or positive")
	}

	// Journal validation
	if c.Journal.Enabled {
		if c.Journal.Type != "sqlite" {
			add("journal.type must be 'sqlite'")
		}
		if c.Journal.Path == "" {
			add("journal.path is required for sqlite")
		}
	}

	// Alerting validation
	for i, ch := range c.Alerting.Channels {
		switch ch.Type {
		case "console":
		case "telegram":
			if ch.BotToken == "" || ch.ChatID == "" {
				add("alerting.channels[%d]: telegram needs bot_token and chat_id", i)
			}
		default:
			add("alerting.channels[%d]: type %q is not supported", i, ch.Type)
		}
	}

	// Metrics validation
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		add("metrics.port %d is out of range", c.Metrics.Port)
	}

	// Logging validation
	if _, err := c.LogLevel(); err != nil {
		add("logging.level %q is not supported", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		add("logging.format must be 'text' or 'json'")
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidConfig, errs)
	}

	return nil
}

// Side returns the parsed order action.
func (c *Config) Side() (types.Side, error) {
	return types.ParseSide(c.Order.Action)
}

// MaxTime returns the parent order time budget.
func (c *Config) MaxTime() time.Duration {
	return time.Duration(c.Order.MaxTimeSec) * time.Second
}

// AggressiveDeadline returns the aggressive executor deadline.
func (c *Config) AggressiveDeadline() time.Duration {
	return time.Duration(c.Execution.AggressiveDeadlineMs) * time.Millisecond
}

// LiquidationDeadline returns the liquidation deadline.
func (c *Config) LiquidationDeadline() time.Duration {
	return time.Duration(c.Execution.LiquidationDeadlineMs) * time.Millisecond
}

// EscalationThreshold returns the TWAP escalation threshold.
func (c *Config) EscalationThreshold() time.Duration {
	return time.Duration(c.Execution.EscalationThresholdMs) * time.Millisecond
}

// ReadinessTimeout returns how long to wait for the first market snapshot.
func (c *Config) ReadinessTimeout() time.Duration {
	return time.Duration(c.Execution.ReadinessTimeoutSec) * time.Second
}

// RetryBackoff returns the pause after a retryable collaborator failure.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Execution.RetryBackoffMs) * time.Millisecond
}

// PricingTimeout returns the per-call pricing timeout.
func (c *Config) PricingTimeout() time.Duration {
	return time.Duration(c.Pricing.TimeoutMs) * time.Millisecond
}

// PenaltyRateDecimal returns the penalty rate as decimal.
func (c *Config) PenaltyRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Execution.PenaltyRate)
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Logging.Level))
	return level, err
}

// IsAlertEventEnabled checks if an alert event type is enabled.
func (c *Config) IsAlertEventEnabled(event string) bool {
	if !c.Alerting.Enabled {
		return false
	}
	// If no events specified, all are enabled
	if len(c.Alerting.Events) == 0 {
		return true
	}
	for _, e := range c.Alerting.Events {
		if e == event || e == "all" {
			return true
		}
	}
	return false
}
