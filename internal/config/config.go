package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BackendURL          string        `mapstructure:"BACKEND_URL"`
	AuthToken           string        `mapstructure:"AUTH_TOKEN"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	PlaceholderText     string        `mapstructure:"PLACEHOLDER_TEXT"`
	MaxUpdatesPerSecond float64       `mapstructure:"MAX_UPDATES_PER_SECOND"`
	PersistReply        bool          `mapstructure:"PERSIST_REPLY"`

	source string
}

// Source returns the config file that was read, or "" when only the
// environment and defaults were used.
func (c *Config) Source() string { return c.source }

// DefaultPlaceholder is the bot message shown until the first fragment arrives.
const DefaultPlaceholder = "Thinking..."

func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.source = v.ConfigFileUsed()

	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("BACKEND_URL", "http://localhost:8000")
	v.SetDefault("AUTH_TOKEN", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("PLACEHOLDER_TEXT", DefaultPlaceholder)
	v.SetDefault("MAX_UPDATES_PER_SECOND", 0)
	v.SetDefault("PERSIST_REPLY", true)
}
