package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Base       ProviderConfig   `mapstructure:"base"`
	Custom     []ProviderConfig `mapstructure:"custom"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Federation FederationConfig `mapstructure:"federation"`
	Server     ServerConfig     `mapstructure:"server"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
}

// ProviderConfig describes one Data Commons instance.
type ProviderConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	SiteURL     string `mapstructure:"site_url"`
	APIURL      string `mapstructure:"api_url"`
	APIKey      string `mapstructure:"api_key"`
	SearchIndex string `mapstructure:"search_index"`
}

// HTTPConfig configures outbound provider calls.
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// FederationConfig configures the federation controller.
type FederationConfig struct {
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

// ServerConfig configures the HTTP and SSE listeners.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SchedulerConfig configures background refresh jobs.
type SchedulerConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// StoreConfig configures the place type cache.
type StoreConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	MaxAge     time.Duration `mapstructure:"max_age"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	defaultBaseID    = "base"
	defaultBaseName  = "Data Commons"
	defaultCustomDC  = "Custom DC"
	defaultBaseSite  = "https://datacommons.org"
	defaultBaseAPI   = "https://api.datacommons.org"
	defaultBaseIndex = "base_uae_mem"
)

// Load reads configuration from .env, an optional config file and DCFED_*
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "load .env")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DCFED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "read config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(err, "unmarshal config")
	}

	cfg.applyProviderDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base.id", defaultBaseID)
	v.SetDefault("base.name", defaultBaseName)
	v.SetDefault("base.site_url", defaultBaseSite)
	v.SetDefault("base.api_url", defaultBaseAPI)
	v.SetDefault("base.api_key", "")
	v.SetDefault("base.search_index", defaultBaseIndex)

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("federation.provider_timeout", 30*time.Second)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("scheduler.refresh_interval", 24*time.Hour)
	v.SetDefault("store.max_entries", 1024)
	v.SetDefault("store.max_age", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func (c *Config) applyProviderDefaults() {
	for i := range c.Custom {
		p := &c.Custom[i]
		p.SiteURL = strings.TrimRight(p.SiteURL, "/")
		if p.ID == "" {
			p.ID = p.SiteURL
		}
		if p.Name == "" {
			p.Name = defaultCustomDC
		}
		if p.APIURL == "" && p.SiteURL != "" {
			p.APIURL = p.SiteURL + "/core/api"
		}
		if p.SearchIndex == "" {
			p.SearchIndex = defaultBaseIndex
		}
	}
}

// Validate checks provider identity and required endpoints.
func (c *Config) Validate() error {
	if c.Base.APIKey == "" && c.Base.APIURL == defaultBaseAPI {
		return eris.New("base.api_key is required for the public Data Commons API")
	}
	if c.Base.APIURL == "" || c.Base.SiteURL == "" {
		return eris.New("base.api_url and base.site_url are required")
	}

	seen := map[string]bool{c.Base.ID: true}
	for i, p := range c.Custom {
		if p.SiteURL == "" {
			return eris.Errorf("custom[%d]: site_url is required", i)
		}
		if seen[p.ID] {
			return eris.Errorf("custom[%d]: duplicate provider id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	if c.Federation.ProviderTimeout <= 0 {
		return eris.New("federation.provider_timeout must be positive")
	}
	return nil
}

// InitLogger initializes the global zap logger. Output goes to stderr so the
// stdio transport keeps stdout for protocol traffic.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrapf(err, "parse log level %q", cfg.Level)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
