// Package config loads the engine configuration from file and environment,
// validates it, and exposes the configured integrations to the delivery
// orchestrator.
package config

import (
	"fmt"
	"strings"

	"github.com/BATSNet/sims-sub000/internal/incident"
	"github.com/BATSNet/sims-sub000/internal/integration"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is the full engine configuration.
type Config struct {
	Listen  string `mapstructure:"listen"`
	DataDir string `mapstructure:"data_dir"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // json, console, auto
	} `mapstructure:"log"`

	Delivery struct {
		MaxConcurrent int `mapstructure:"max_concurrent"`
	} `mapstructure:"delivery"`

	Organizations []incident.Organization      `mapstructure:"organizations"`
	Templates     []integration.Template       `mapstructure:"templates" validate:"dive"`
	Integrations  []integration.OrgIntegration `mapstructure:"integrations" validate:"dive"`
}

func defaults() {
	viper.SetDefault("listen", ":8085")
	viper.SetDefault("data_dir", "/var/lib/sims")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "auto")
	viper.SetDefault("delivery.max_concurrent", 4)
}

// Load reads the configuration file, applies SIMS_* environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("SIMS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	defaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	return parse()
}

func parse() (*Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	valid := validator.New()
	if err := valid.Struct(c); err != nil {
		return nil, fmt.Errorf("validate config error: %w", err)
	}
	return &c, nil
}

// Watch re-reads the configuration whenever the file changes and hands the
// new value to onChange. Invalid edits are logged and skipped; the previous
// configuration stays active.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		c, err := parse()
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Msg("Configuration reloaded")
		onChange(c)
	})
	viper.WatchConfig()
}
