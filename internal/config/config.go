// Package config loads the service configuration from a .env file, an
// optional rabbitflow.yaml and RABBITFLOW_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/validate"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

const envPrefix = "RABBITFLOW"

// Config holds the application configuration
type Config struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	Login           string        `mapstructure:"login" validate:"required"`
	Password        string        `mapstructure:"password"`
	Vhost           string        `mapstructure:"vhost" validate:"required"`
	Addr            string        `mapstructure:"addr" validate:"required"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"gte=0"`
	Mode            string        `mapstructure:"mode" validate:"oneof=rate count publish"`
	Filter          string        `mapstructure:"filter"`
	Debug           bool          `mapstructure:"debug"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Broker returns the management API client settings.
func (c Config) Broker() broker.Config {
	return broker.Config{
		URL:      c.URL,
		Login:    c.Login,
		Password: c.Password,
		Vhost:    c.Vhost,
		Timeout:  c.Timeout,
	}
}

// ViewState is the initial mode and filter of a session.
func (c Config) ViewState() types.ViewState {
	mode, err := types.ParseMetricMode(c.Mode)
	if err != nil {
		mode = types.ModeRate
	}
	return types.ViewState{Mode: mode, Filter: c.Filter}
}

// LogLevel is debug when Debug is set, info otherwise.
func (c Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Load reads the configuration. file names an explicit config file; when
// empty, rabbitflow.yaml is looked up in ., ./config and /etc/rabbitflow and
// may be absent.
func Load(file string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("rabbitflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/rabbitflow/")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.File = v.ConfigFileUsed()

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("url", broker.DefaultURL)
	v.SetDefault("login", "guest")
	v.SetDefault("password", "guest")
	v.SetDefault("vhost", broker.DefaultVhost)
	v.SetDefault("addr", ":8081")
	v.SetDefault("timeout", "10s")
	v.SetDefault("refresh_interval", "0s")
	v.SetDefault("mode", string(types.ModeRate))
	v.SetDefault("filter", "")
	v.SetDefault("debug", false)
}
