// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Regrid  RegridConfig  `yaml:"regrid" mapstructure:"regrid"`
	Utility UtilityConfig `yaml:"utility" mapstructure:"utility"`
	Weather WeatherConfig `yaml:"weather" mapstructure:"weather"`
	Ashrae  AshraeConfig  `yaml:"ashrae" mapstructure:"ashrae"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GeocodeConfig configures the geocoding providers.
type GeocodeConfig struct {
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	CensusRPS    float64 `yaml:"census_rps" mapstructure:"census_rps"`
}

// RegridConfig holds default Regrid credentials, used when a request
// carries none.
type RegridConfig struct {
	Email    string `yaml:"email" mapstructure:"email"`
	Password string `yaml:"password" mapstructure:"password"`
}

// UtilityConfig configures the NREL utility-rates lookup. The retry
// constants are tuning for one known-flaky provider, so they live here
// rather than in code.
type UtilityConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffSecs int    `yaml:"backoff_secs" mapstructure:"backoff_secs"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WeatherConfig configures the NWS station directory lookup.
type WeatherConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxStations int    `yaml:"max_stations" mapstructure:"max_stations"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AshraeConfig configures the climate-record backend store.
type AshraeConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Token       string `yaml:"token" mapstructure:"token"`
	Limit       int    `yaml:"limit" mapstructure:"limit"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BrowserConfig configures headless browser sessions.
type BrowserConfig struct {
	Headless    bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath    string `yaml:"exec_path" mapstructure:"exec_path"`
	NavTimeout  int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	WaitTimeout int    `yaml:"wait_timeout_secs" mapstructure:"wait_timeout_secs"`
}

// NavTimeoutDuration returns the navigation timeout as a duration.
func (b BrowserConfig) NavTimeoutDuration() time.Duration {
	return time.Duration(b.NavTimeout) * time.Second
}

// WaitTimeoutDuration returns the wait-condition timeout as a duration.
func (b BrowserConfig) WaitTimeoutDuration() time.Duration {
	return time.Duration(b.WaitTimeout) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("geocode.census_rps", 10)
	v.SetDefault("utility.base_url", "https://api.nrel.gov/api/utility_rates/v3.json")
	v.SetDefault("utility.max_attempts", 3)
	v.SetDefault("utility.backoff_secs", 1)
	v.SetDefault("utility.timeout_secs", 10)
	v.SetDefault("weather.base_url", "https://api.weather.gov")
	v.SetDefault("weather.max_stations", 9)
	v.SetDefault("weather.timeout_secs", 10)
	v.SetDefault("ashrae.limit", 5)
	v.SetDefault("ashrae.timeout_secs", 10)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 60)
	v.SetDefault("browser.wait_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
