// Package config loads bot settings from an optional YAML file overlaid by
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Shubhamshinde5080/DogeBOT/internal/execution"
	"github.com/Shubhamshinde5080/DogeBOT/internal/indicator"
	"github.com/Shubhamshinde5080/DogeBOT/internal/strategy"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Config holds all application configuration.
type Config struct {
	Mode     string `yaml:"mode"` // paper | live
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
	LogLevel string `yaml:"log_level"`

	// Binance
	APIKey    string  `yaml:"-"`
	APISecret string  `yaml:"-"`
	BaseURL   string  `yaml:"base_url"`
	StreamURL string  `yaml:"stream_url"`
	TickSize  float64 `yaml:"tick_size"`
	QtyStep   float64 `yaml:"qty_step"`

	// Strategy
	Strategy        strategy.Params     `yaml:"strategy"`
	Gate            strategy.GateParams `yaml:"gate"`
	Indicators      indicator.Params    `yaml:"indicators"`
	DailyTarget     float64             `yaml:"daily_target"`
	IndicatorWindow int                 `yaml:"indicator_window"`
	StoreCapacity   int                 `yaml:"store_capacity"`

	// Order gateway
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	PaperStrictMaker bool          `yaml:"paper_strict_maker"`

	// Infrastructure
	RedisAddr       string `yaml:"redis_addr"` // empty disables Redis
	RedisPassword   string `yaml:"-"`
	SQLitePath      string `yaml:"sqlite_path"` // empty disables the journal
	HTTPAddr        string `yaml:"http_addr"`
	AdminTOTPSecret string `yaml:"-"`

	// Notifications
	TelegramToken  string `yaml:"-"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	DiscordWebhook string `yaml:"-"`
	WebhookURL     string `yaml:"webhook_url"`
}

// Default returns the reference DOGE/FDUSD configuration in paper mode.
func Default() *Config {
	gw := execution.DefaultGatewayConfig()
	return &Config{
		Mode:            ModePaper,
		Symbol:          "DOGEFDUSD",
		Interval:        "15m",
		LogLevel:        "info",
		TickSize:        gw.TickSize,
		QtyStep:         1,
		Strategy:        strategy.DefaultParams(),
		Gate:            strategy.DefaultGateParams(),
		Indicators:      indicator.DefaultParams(),
		DailyTarget:     6,
		IndicatorWindow: 30,
		StoreCapacity:   500,
		MaxRetries:      gw.MaxRetries,
		RetryDelay:      gw.RetryDelay,
		SQLitePath:      "data/gridbot.db",
		HTTPAddr:        ":8080",
	}
}

// Load builds the configuration: defaults, then CONFIG_FILE (if set), then
// environment variables. The result is validated.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	log.Printf("[config] loaded %s", path)
	return nil
}

func (c *Config) applyEnv() error {
	p := envParser{}

	c.Mode = strings.ToLower(getEnv("MODE", c.Mode))
	c.Symbol = strings.ToUpper(getEnv("SYMBOL", c.Symbol))
	c.Interval = getEnv("INTERVAL", c.Interval)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.APIKey = getEnvAny(c.APIKey, "BINANCE_API_KEY", "API_KEY")
	c.APISecret = getEnvAny(c.APISecret, "BINANCE_API_SECRET", "API_SECRET")
	c.BaseURL = getEnvAny(c.BaseURL, "BINANCE_BASE_URL", "BASE_URL")
	c.StreamURL = getEnv("BINANCE_STREAM_URL", c.StreamURL)
	c.TickSize = p.float("TICK_SIZE", c.TickSize)
	c.QtyStep = p.float("QTY_STEP", c.QtyStep)

	c.Strategy.StepMultiplier = p.float("STEP_MULT", c.Strategy.StepMultiplier)
	c.Strategy.Qty0 = p.float("QTY0", c.Strategy.Qty0)
	c.Strategy.QtyIncrement = p.float("QTY_INC", c.Strategy.QtyIncrement)
	c.Strategy.ProfitTarget = p.float("PROFIT_TARGET", c.Strategy.ProfitTarget)
	c.Strategy.FundsCap = p.float("", c.Strategy.FundsCap, "FDUSD_CAP", "DOGEFDUSD_MAX_FUND_USD")
	c.DailyTarget = p.float("", c.DailyTarget, "DAILY_TARGET", "DOGEFDUSD_DAILY_TARGET_USD")
	c.IndicatorWindow = p.int("INDICATOR_WINDOW", c.IndicatorWindow)

	c.MaxRetries = p.int("MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = p.duration("RETRY_DELAY", c.RetryDelay)
	c.PaperStrictMaker = p.bool("PAPER_STRICT_MAKER", c.PaperStrictMaker)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.AdminTOTPSecret = getEnv("ADMIN_TOTP_SECRET", c.AdminTOTPSecret)

	c.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramToken)
	c.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.TelegramChatID)
	c.DiscordWebhook = getEnv("DISCORD_WEBHOOK_URL", c.DiscordWebhook)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)

	return errors.Join(p.errs...)
}

// Validate rejects settings the bot cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("config: "+format, args...))
		}
	}

	check(c.Mode == ModePaper || c.Mode == ModeLive, "MODE must be %q or %q, got %q", ModePaper, ModeLive, c.Mode)
	check(c.Symbol != "", "SYMBOL is empty")
	check(c.Strategy.StepMultiplier > 0, "STEP_MULT must be positive")
	check(c.Strategy.Qty0 > 0, "QTY0 must be positive")
	check(c.Strategy.QtyIncrement >= 0, "QTY_INC must not be negative")
	check(c.Strategy.ProfitTarget > 0, "PROFIT_TARGET must be positive")
	check(c.Strategy.FundsCap > 0, "FDUSD_CAP must be positive")
	check(c.DailyTarget > 0, "DAILY_TARGET must be positive")
	check(c.TickSize > 0, "TICK_SIZE must be positive")
	check(c.QtyStep > 0, "QTY_STEP must be positive")
	check(c.MaxRetries >= 0, "MAX_RETRIES must not be negative")
	check(c.IndicatorWindow >= c.Gate.MinCandles, "INDICATOR_WINDOW (%d) is below the gate minimum (%d)", c.IndicatorWindow, c.Gate.MinCandles)
	check(c.Gate.PullbackLookback >= 1, "gate pullback lookback must be at least 1")
	if c.Mode == ModeLive {
		check(c.APIKey != "", "BINANCE_API_KEY is required in live mode")
		check(c.APISecret != "", "BINANCE_API_SECRET is required in live mode")
	}
	return errors.Join(errs...)
}

// GatewayConfig returns the order gateway settings.
func (c *Config) GatewayConfig() execution.GatewayConfig {
	return execution.GatewayConfig{
		TickSize:   c.TickSize,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// getEnvAny returns the first non-empty variable among keys.
func getEnvAny(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return fallback
}

// envParser collects parse errors so every bad variable is reported at once.
type envParser struct {
	errs []error
}

func (p *envParser) lookup(key string, aliases []string) (string, string) {
	for _, k := range append([]string{key}, aliases...) {
		if k == "" {
			continue
		}
		if v := os.Getenv(k); v != "" {
			return k, v
		}
	}
	return "", ""
}

func (p *envParser) float(key string, fallback float64, aliases ...string) float64 {
	k, v := p.lookup(key, aliases)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %w", k, err))
		return fallback
	}
	return f
}

func (p *envParser) int(key string, fallback int) int {
	_, v := p.lookup(key, nil)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return n
}

func (p *envParser) bool(key string, fallback bool) bool {
	_, v := p.lookup(key, nil)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return b
}

// duration accepts Go durations ("50ms") or plain milliseconds ("50").
func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	_, v := p.lookup(key, nil)
	if v == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return d
}
