package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Poll interval bounds. Polling faster than every 5 minutes hammers the
// remote site for data that changes a handful of times per day.
const (
	MinPollInterval     = 5 * time.Minute
	MaxPollInterval     = 120 * time.Minute
	DefaultPollInterval = 30 * time.Minute
)

// Config holds everything the bridge needs to run. Values come from an
// optional YAML file, CUBBY_* environment variables, and flags, in
// ascending precedence.
type Config struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	BaseURL  string `mapstructure:"base_url"`

	PollIntervalMinutes int `mapstructure:"poll_interval_minutes"`
	HTTPTimeoutSeconds  int `mapstructure:"http_timeout_seconds"`
	MaxConcurrent       int `mapstructure:"max_concurrent"`
	CalendarMaxEvents   int `mapstructure:"calendar_max_events"`
	CalendarDaysAhead   int `mapstructure:"calendar_days_ahead"`

	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`
}

// PollInterval returns the poll interval clamped to the allowed range.
func (c *Config) PollInterval() time.Duration {
	d := time.Duration(c.PollIntervalMinutes) * time.Minute
	if d < MinPollInterval {
		return MinPollInterval
	}
	if d > MaxPollInterval {
		return MaxPollInterval
	}
	return d
}

// HTTPTimeout returns the per-request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// New returns a viper instance with the bridge's defaults and env binding
// applied. Kept separate from Load so the CLI can bind flags onto it.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CUBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("email", "")
	v.SetDefault("password", "")
	v.SetDefault("base_url", "")
	v.SetDefault("poll_interval_minutes", int(DefaultPollInterval/time.Minute))
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("max_concurrent", 4)
	v.SetDefault("calendar_max_events", 10)
	v.SetDefault("calendar_days_ahead", 30)
	v.SetDefault("listen_addr", ":8093")
	v.SetDefault("log_level", "info")

	return v
}

// Load reads configuration from v, optionally merging a YAML config file
// first, and validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Email == "" {
		return errors.New("config: email is required (CUBBY_EMAIL)")
	}
	if c.Password == "" {
		return errors.New("config: password is required (CUBBY_PASSWORD)")
	}
	return nil
}
