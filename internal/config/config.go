package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

type SourceConfig struct {
	Kind     string `toml:"kind" mapstructure:"kind"`
	ICSPath  string `toml:"ics_path" mapstructure:"ics_path"`
	TenantID string `toml:"tenant_id" mapstructure:"tenant_id"`
	ClientID string `toml:"client_id" mapstructure:"client_id"`
}

type ClassifierConfig struct {
	Agent          string  `toml:"agent" mapstructure:"agent"`
	Model          string  `toml:"model" mapstructure:"model"`
	APIKeyEnv      string  `toml:"api_key_env" mapstructure:"api_key_env"`
	BaseURL        string  `toml:"base_url" mapstructure:"base_url"`
	TimeoutSeconds float64 `toml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Attempts       int     `toml:"attempts" mapstructure:"attempts"`
	BackoffSeconds float64 `toml:"backoff_seconds" mapstructure:"backoff_seconds"`
	MaxBodyChars   int     `toml:"max_body_chars" mapstructure:"max_body_chars"`
}

type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
}

type Config struct {
	TaxonomyDir         string           `toml:"taxonomy_dir" mapstructure:"taxonomy_dir"`
	ReportsOutput       string           `toml:"reports_output" mapstructure:"reports_output"`
	WorkHoursPerWeek    float64          `toml:"work_hours_per_week" mapstructure:"work_hours_per_week"`
	ConfidenceThreshold float64          `toml:"confidence_threshold" mapstructure:"confidence_threshold"`
	ReviewThreshold     float64          `toml:"review_threshold" mapstructure:"review_threshold"`
	IncludeAllDay       bool             `toml:"include_all_day" mapstructure:"include_all_day"`
	Timezone            string           `toml:"timezone" mapstructure:"timezone"`
	Source              SourceConfig     `toml:"source" mapstructure:"source"`
	Classifier          ClassifierConfig `toml:"classifier" mapstructure:"classifier"`
	Log                 LogConfig        `toml:"log" mapstructure:"log"`
}

func DefaultConfig() *Config {
	dir, _ := UmbrellaDir()
	homeDir, _ := os.UserHomeDir()
	return &Config{
		TaxonomyDir:         filepath.Join(dir, "taxonomy"),
		ReportsOutput:       filepath.Join(homeDir, "Documents", "reports"),
		WorkHoursPerWeek:    40,
		ConfidenceThreshold: 0.7,
		ReviewThreshold:     0.7,
		Timezone:            "Local",
		Source: SourceConfig{
			Kind: "mock",
		},
		Classifier: ClassifierConfig{
			Agent:          "none",
			APIKeyEnv:      "ANTHROPIC_API_KEY",
			TimeoutSeconds: 30,
			Attempts:       3,
			BackoffSeconds: 1,
			MaxBodyChars:   500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// UmbrellaDir is ~/.umbrella unless UMBRELLA_HOME is set.
func UmbrellaDir() (string, error) {
	if dir := os.Getenv("UMBRELLA_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".umbrella"), nil
}

func ConfigPath() (string, error) {
	dir, err := UmbrellaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func DatabasePath() (string, error) {
	dir, err := UmbrellaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "db", "umbrella.sqlite"), nil
}

func ErrorLogPath() (string, error) {
	dir, err := UmbrellaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "errors.log"), nil
}

// TokenPath is where the Outlook OAuth token is cached.
func TokenPath() (string, error) {
	dir, err := UmbrellaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "auth", "token.json"), nil
}

func EnsureDirectories() error {
	dir, err := UmbrellaDir()
	if err != nil {
		return err
	}

	for _, sub := range []string{"", "db", "auth"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the settings file, creating it with defaults on first run.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	// If config file doesn't exist, create it with defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := EnsureDirectories(); err != nil {
			return nil, err
		}
		if err := Save(DefaultConfig()); err != nil {
			return nil, err
		}
	}

	return LoadFile(configPath)
}

// LoadFile reads settings from path. Every key can be overridden with an
// UMBRELLA_ environment variable, e.g. UMBRELLA_CLASSIFIER_AGENT.
func LoadFile(path string) (*Config, error) {
	defaults := DefaultConfig()

	v := viper.New()
	setDefaults(v, defaults)
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	v.SetEnvPrefix("UMBRELLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Expand ~ in paths
	cfg.TaxonomyDir = expandPath(cfg.TaxonomyDir)
	cfg.ReportsOutput = expandPath(cfg.ReportsOutput)
	cfg.Source.ICSPath = expandPath(cfg.Source.ICSPath)

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("taxonomy_dir", d.TaxonomyDir)
	v.SetDefault("reports_output", d.ReportsOutput)
	v.SetDefault("work_hours_per_week", d.WorkHoursPerWeek)
	v.SetDefault("confidence_threshold", d.ConfidenceThreshold)
	v.SetDefault("review_threshold", d.ReviewThreshold)
	v.SetDefault("include_all_day", d.IncludeAllDay)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("source.kind", d.Source.Kind)
	v.SetDefault("source.ics_path", d.Source.ICSPath)
	v.SetDefault("source.tenant_id", d.Source.TenantID)
	v.SetDefault("source.client_id", d.Source.ClientID)
	v.SetDefault("classifier.agent", d.Classifier.Agent)
	v.SetDefault("classifier.model", d.Classifier.Model)
	v.SetDefault("classifier.api_key_env", d.Classifier.APIKeyEnv)
	v.SetDefault("classifier.base_url", d.Classifier.BaseURL)
	v.SetDefault("classifier.timeout_seconds", d.Classifier.TimeoutSeconds)
	v.SetDefault("classifier.attempts", d.Classifier.Attempts)
	v.SetDefault("classifier.backoff_seconds", d.Classifier.BackoffSeconds)
	v.SetDefault("classifier.max_body_chars", d.Classifier.MaxBodyChars)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(configPath, cfg)
}

func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Location resolves the configured timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds * float64(time.Second))
}

func (c *Config) ClassifierBackoff() time.Duration {
	return time.Duration(c.Classifier.BackoffSeconds * float64(time.Second))
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
