package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader consults.
const EnvPrefix = "WEATHER_MCP"

// Config represents the configuration for the weather server and client
type Config struct {
	Weather WeatherConfig `mapstructure:"weather" yaml:"weather"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`

	// DisabledOperations names operations that are not registered
	DisabledOperations []string `mapstructure:"disabled_operations" yaml:"disabled_operations"`
}

// WeatherConfig configures the weather provider client
type WeatherConfig struct {
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries int           `mapstructure:"retries" yaml:"retries"`
	RPS     int           `mapstructure:"rps" yaml:"rps"`
}

// ServerConfig configures the dispatcher
type ServerConfig struct {
	Name        string        `mapstructure:"name" yaml:"name"`
	Version     string        `mapstructure:"version" yaml:"version"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	ToolTimeout time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
}

// LLMConfig configures the completion endpoint used by the client
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

var defaults = map[string]any{
	"weather.api_key":     "",
	"weather.base_url":    "http://api.weatherapi.com/v1",
	"weather.timeout":     30 * time.Second,
	"weather.retries":     3,
	"weather.rps":         0,
	"server.name":         "weather-mcp",
	"server.version":      "",
	"server.workers":      4,
	"server.tool_timeout": time.Duration(0),
	"llm.base_url":        "https://models.inference.ai.azure.com",
	"llm.model":           "gpt-4o",
	"llm.api_key":         "",
	"disabled_operations": []string{},
}

// Well-known variables honored in addition to the prefixed ones.
var envAliases = map[string]string{
	"weather.api_key": "WEATHERAPI_KEY",
	"llm.api_key":     "GITHUB_TOKEN",
}

// FlagKeys maps command-line flag names to configuration keys. Only flags
// present in the set passed to Load are bound.
var FlagKeys = map[string]string{
	"api-key":      "weather.api_key",
	"base-url":     "weather.base_url",
	"timeout":      "weather.timeout",
	"retries":      "weather.retries",
	"rps":          "weather.rps",
	"workers":      "server.workers",
	"tool-timeout": "server.tool_timeout",
	"model":        "llm.model",
	"llm-base-url": "llm.base_url",
	"disable":      "disabled_operations",
}

// DefaultConfig returns the configuration used when nothing else is set
func DefaultConfig() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds a configuration from, in increasing precedence, defaults, the
// file at path, environment variables and flags. An empty path or a missing
// file is not an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if filepath.Ext(path) == "" {
				v.SetConfigType("yaml")
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error opening config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envVar := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envVar, alias); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", alias, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("error binding flag --%s: %w", name, err)
			}
		}
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

// IsOperationDisabled checks if an operation is in the disabled list
func (c *Config) IsOperationDisabled(name string) bool {
	return slices.Contains(c.DisabledOperations, name)
}

// Redacted returns a copy with API keys masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.DisabledOperations = slices.Clone(c.DisabledOperations)
	out.Weather.APIKey = redact(c.Weather.APIKey)
	out.LLM.APIKey = redact(c.LLM.APIKey)
	return &out
}

func redact(secret string) string {
	switch {
	case secret == "":
		return ""
	case strings.HasPrefix(secret, "op://"), strings.HasPrefix(secret, "env:"):
		return secret
	default:
		return "********"
	}
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	// Create parent directories if they don't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
