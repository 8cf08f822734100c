package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/thornview/tagcache/tagcache"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Tagcache TagcacheConfig `mapstructure:"tagcache"`
}

// TagcacheConfig stores the build settings the CLI falls back to when a
// flag is not given.
type TagcacheConfig struct {
	MusicRoot    string   `mapstructure:"musicRoot"`
	DevicePrefix string   `mapstructure:"devicePrefix"`
	OutputDir    string   `mapstructure:"outputDir"`
	GenreFile    string   `mapstructure:"genreFile"`
	Workers      int      `mapstructure:"workers"`
	CacheDSN     string   `mapstructure:"cacheDSN"`
	Extensions   []string `mapstructure:"extensions"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("tagcache.devicePrefix", internal.DefaultDevicePrefix)
	viper.SetDefault("tagcache.cacheDSN", internal.DefaultScanCacheDSN)
	viper.SetDefault("tagcache.workers", 0) // 0 lets the pipeline size itself

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // tagcache.cacheDSN becomes TAGCACHE_CACHEDSN

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
