package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoadConfig reads cfgFile (or forestbatchctl.{yaml,json,...} from the
// working directory / /etc/forestbatchctl/) layered with
// FORESTBATCHCTL_-prefixed environment variables.
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("forestbatchctl")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/forestbatchctl/")
	}

	viper.SetEnvPrefix("FORESTBATCHCTL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))

	viper.SetDefault("run.page_size", 1000)
	viper.SetDefault("run.thread_count", 0)
	viper.SetDefault("run.timeout", 30*time.Second)
	viper.SetDefault("etcd.prefix", "/forestbatch/shards")
	viper.SetDefault("api.listen_addr", ":8990")
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen_addr", ":9090")
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("azure.account_url", "")

	viper.BindEnv("run.page_size")
	viper.BindEnv("run.thread_count")
	viper.BindEnv("run.timeout")
	viper.BindEnv("etcd.endpoints")
	viper.BindEnv("etcd.username")
	viper.BindEnv("etcd.password")
	viper.BindEnv("etcd.prefix")
	viper.BindEnv("api.listen_addr")
	viper.BindEnv("api.auth_tokens")
	viper.BindEnv("metrics.enabled")
	viper.BindEnv("metrics.listen_addr")
	viper.BindEnv("s3.bucket")
	viper.BindEnv("s3.region")
	viper.BindEnv("azure.account_url")
	viper.BindEnv("azure.account_name")
	viper.BindEnv("azure.account_key")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
