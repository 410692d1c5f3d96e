// Package config resolves client settings from flags, GUARDIAN_* environment
// variables, an optional guardian.yaml and defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	KeyAPIURL           = "api_url"
	KeyRequestTimeout   = "request_timeout"
	KeyPollInterval     = "poll_interval"
	KeyStatusDependency = "status_dependency"
	KeyStatusLabel      = "status_label"
	KeyHelpHost         = "help_host"
	KeySessionID        = "session_id"
	KeyResumeLatest     = "resume_latest"
	KeyAltScreen        = "alt_screen"
	KeyLogLevel         = "log_level"
	KeyLogFile          = "log_file"
	KeyMockAddr         = "mock_addr"

	EnvPrefix = "GUARDIAN"
)

const (
	minDuration = time.Second
	maxDuration = 10 * time.Minute
)

// Config is the resolved client configuration.
type Config struct {
	APIURL           string        `yaml:"api_url"`
	RequestTimeout   time.Duration `yaml:"-"`
	PollInterval     time.Duration `yaml:"-"`
	StatusDependency string        `yaml:"status_dependency"`
	StatusLabel      string        `yaml:"status_label"`
	HelpHost         string        `yaml:"help_host"`
	SessionID        string        `yaml:"session_id"`
	ResumeLatest     bool          `yaml:"resume_latest"`
	AltScreen        bool          `yaml:"alt_screen"`
	LogLevel         string        `yaml:"log_level"`
	LogFile          string        `yaml:"log_file"`
	MockAddr         string        `yaml:"mock_addr"`
}

var defaults = map[string]any{
	KeyAPIURL:           "http://localhost:8001/api",
	KeyRequestTimeout:   "120s",
	KeyPollInterval:     "30s",
	KeyStatusDependency: "qdrant",
	KeyStatusLabel:      "Vector Search",
	KeyHelpHost:         "pspd-guardian-help-dev.cbp.dhs.gov",
	KeySessionID:        "",
	KeyResumeLatest:     false,
	KeyAltScreen:        true,
	KeyLogLevel:         "info",
	KeyLogFile:          "",
	KeyMockAddr:         "127.0.0.1:8001",
}

// New returns a viper instance with defaults, env binding and the config
// search path set. An explicit file overrides the search path.
func New(configFile string) *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		return v
	}
	v.SetConfigName("guardian")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "guardian"))
	}
	return v
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// BindFlags binds every flag of cmd whose name maps to a config key
// (dashes become underscores).
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key := range defaults {
		name := strings.ReplaceAll(key, "_", "-")
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file if there is one and resolves the settings.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		APIURL:           v.GetString(KeyAPIURL),
		RequestTimeout:   v.GetDuration(KeyRequestTimeout),
		PollInterval:     v.GetDuration(KeyPollInterval),
		StatusDependency: v.GetString(KeyStatusDependency),
		StatusLabel:      v.GetString(KeyStatusLabel),
		HelpHost:         v.GetString(KeyHelpHost),
		SessionID:        v.GetString(KeySessionID),
		ResumeLatest:     v.GetBool(KeyResumeLatest),
		AltScreen:        v.GetBool(KeyAltScreen),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFile:          v.GetString(KeyLogFile),
		MockAddr:         v.GetString(KeyMockAddr),
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.APIURL = strings.TrimSuffix(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		c.APIURL = defaults[KeyAPIURL].(string)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_url %q: want http(s)://host[:port]/path", c.APIURL)
	}

	c.RequestTimeout = clampDuration(c.RequestTimeout, 120*time.Second)
	c.PollInterval = clampDuration(c.PollInterval, 30*time.Second)

	c.StatusDependency = strings.TrimSpace(c.StatusDependency)
	if c.StatusDependency == "" {
		c.StatusDependency = defaults[KeyStatusDependency].(string)
	}
	c.StatusLabel = strings.TrimSpace(c.StatusLabel)
	if c.StatusLabel == "" {
		c.StatusLabel = defaults[KeyStatusLabel].(string)
	}
	c.HelpHost = strings.TrimSpace(c.HelpHost)
	c.HelpHost = strings.TrimPrefix(strings.TrimPrefix(c.HelpHost, "https://"), "http://")
	c.HelpHost = strings.TrimSuffix(c.HelpHost, "/")
	c.SessionID = strings.TrimSpace(c.SessionID)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.MockAddr = strings.TrimSpace(c.MockAddr)
	if c.MockAddr == "" {
		c.MockAddr = defaults[KeyMockAddr].(string)
	}
	return nil
}

func clampDuration(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	if d < minDuration {
		return minDuration
	}
	if d > maxDuration {
		return maxDuration
	}
	return d
}

// YAML renders the effective configuration with durations as strings.
func (c Config) YAML() ([]byte, error) {
	type view struct {
		Config         `yaml:",inline"`
		RequestTimeout string `yaml:"request_timeout"`
		PollInterval   string `yaml:"poll_interval"`
	}
	return yaml.Marshal(view{
		Config:         c,
		RequestTimeout: c.RequestTimeout.String(),
		PollInterval:   c.PollInterval.String(),
	})
}
