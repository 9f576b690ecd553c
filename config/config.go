/*
Config package
*/
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config wraps a viper instance scoped to one process.
//
// Components set their own defaults before reading a key, so a component that is
// never wired never pollutes the configuration.
type Config struct {
	v *viper.Viper
}

// New reads .env from the working directory (when present) and the environment.
func New() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("dotenv")
	v.AddConfigPath(".") // look for config in the working directory
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var typeErr viper.ConfigFileNotFoundError
		if !errors.As(err, &typeErr) {
			return nil, err
		}
	}

	return &Config{v: v}, nil
}

// NewWithValues builds a config without touching the filesystem.
// The environment is still consulted for keys missing from values.
func NewWithValues(values map[string]any) *Config {
	v := viper.New()
	v.AutomaticEnv()

	for key, value := range values {
		v.Set(key, value)
	}

	return &Config{v: v}
}

func (c *Config) SetDefault(key string, value any) {
	c.v.SetDefault(key, value)
}

func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}

func (c *Config) GetString(key string) string {
	return strings.TrimSpace(c.v.GetString(key))
}

func (c *Config) GetStringSlice(key string) []string {
	raw := c.v.GetStringSlice(key)

	// values coming from the environment arrive as one comma separated string
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}
