package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig      `mapstructure:"http"`
	Queue    QueueConfig     `mapstructure:"queue"`
	Log      LogConfig       `mapstructure:"log"`
	Origins  []OriginConfig  `mapstructure:"origins"`
	Accounts []AccountConfig `mapstructure:"accounts"`
}

type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxRedirects int           `mapstructure:"max_redirects"`
}

type QueueConfig struct {
	Path           string        `mapstructure:"path"`
	MaxRetries     int           `mapstructure:"max_retries"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	MinBackoff     time.Duration `mapstructure:"min_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	DownloadDir    string        `mapstructure:"download_dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// OriginConfig describes one social network endpoint. Kind selects the
// provider variant: "twitter", "gnusocial", or "pumpio".
type OriginConfig struct {
	Name           string `mapstructure:"name"`
	Kind           string `mapstructure:"kind"`
	URL            string `mapstructure:"url"`
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
}

// AccountConfig binds a user's credentials to an origin. TokenOrigin is
// the host the token was issued for; it defaults to the origin's own URL
// and only differs for dialback-authenticated setups.
type AccountConfig struct {
	Origin      string `mapstructure:"origin"`
	ActorOid    string `mapstructure:"actor_oid"`
	Username    string `mapstructure:"username"`
	Token       string `mapstructure:"token"`
	TokenSecret string `mapstructure:"token_secret"`
	TokenOrigin string `mapstructure:"token_origin"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	queuePath := filepath.Join(homeDir, ".andstatus", "queue.db")
	downloadDir := filepath.Join(homeDir, ".andstatus", "downloads")
	logPath := filepath.Join(homeDir, ".andstatus", "andstatus.log")

	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "andstatus/1.0",
			MaxRedirects: 5,
		},
		Queue: QueueConfig{
			Path:           queuePath,
			MaxRetries:     10,
			PollInterval:   15 * time.Second,
			CommandTimeout: 60 * time.Second,
			MinBackoff:     1 * time.Minute,
			MaxBackoff:     4 * time.Hour,
			DownloadDir:    downloadDir,
		},
		Log: LogConfig{
			Level: "info",
			Path:  logPath,
		},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("http", cfg.HTTP)
	v.SetDefault("queue", cfg.Queue)
	v.SetDefault("log", cfg.Log)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "andstatus")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ANDSTATUS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&config)
	fillDefaults(&config)

	return &config, nil
}

// Origin looks up an origin by name.
func (c *Config) Origin(name string) (OriginConfig, bool) {
	for _, o := range c.Origins {
		if o.Name == name {
			return o, true
		}
	}
	return OriginConfig{}, false
}

// Account looks up the account bound to an origin.
func (c *Config) Account(origin string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.Origin == origin {
			return a, true
		}
	}
	return AccountConfig{}, false
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Queue.Path = expandPath(cfg.Queue.Path)
	cfg.Queue.DownloadDir = expandPath(cfg.Queue.DownloadDir)
	cfg.Log.Path = expandPath(cfg.Log.Path)
}

// fillDefaults settles the per-account fields a file may omit.
func fillDefaults(cfg *Config) {
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if acc.TokenOrigin != "" {
			continue
		}
		if o, ok := cfg.Origin(acc.Origin); ok {
			acc.TokenOrigin = o.URL
		}
	}
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Convert durations to strings for TOML readability
	httpCfg := map[string]interface{}{
		"timeout":       config.HTTP.Timeout.String(),
		"user_agent":    config.HTTP.UserAgent,
		"max_redirects": config.HTTP.MaxRedirects,
	}

	queueCfg := map[string]interface{}{
		"path":            config.Queue.Path,
		"max_retries":     config.Queue.MaxRetries,
		"poll_interval":   config.Queue.PollInterval.String(),
		"command_timeout": config.Queue.CommandTimeout.String(),
		"min_backoff":     config.Queue.MinBackoff.String(),
		"max_backoff":     config.Queue.MaxBackoff.String(),
		"download_dir":    config.Queue.DownloadDir,
	}

	origins := make([]map[string]interface{}, 0, len(config.Origins))
	for _, o := range config.Origins {
		origins = append(origins, map[string]interface{}{
			"name":            o.Name,
			"kind":            o.Kind,
			"url":             o.URL,
			"consumer_key":    o.ConsumerKey,
			"consumer_secret": o.ConsumerSecret,
		})
	}
	accounts := make([]map[string]interface{}, 0, len(config.Accounts))
	for _, a := range config.Accounts {
		accounts = append(accounts, map[string]interface{}{
			"origin":       a.Origin,
			"actor_oid":    a.ActorOid,
			"username":     a.Username,
			"token":        a.Token,
			"token_secret": a.TokenSecret,
			"token_origin": a.TokenOrigin,
		})
	}

	v.Set("http", httpCfg)
	v.Set("queue", queueCfg)
	v.Set("log", config.Log)
	v.Set("origins", origins)
	v.Set("accounts", accounts)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
