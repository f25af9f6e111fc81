// Package config defines the CLI's layered configuration: etcd, api,
// run, metrics, s3 and azure sections loaded through viper with
// mapstructure tags, trimmed to what a client-side batcher CLI needs: a
// directory source, an optional status API, run defaults, optional
// metrics, and an object-store transport.
package config

import (
	"time"

	"github.com/chtzvt/forestbatch/internal/api"
)

// EtcdConfig configures the etcd-backed shard directory.
type EtcdConfig struct {
	Endpoints []string `mapstructure:"endpoints"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Prefix    string   `mapstructure:"prefix"`
}

// RunDefaults carries defaults for engine configuration that a job file
// doesn't override.
type RunDefaults struct {
	PageSize    int           `mapstructure:"page_size"`
	ThreadCount int           `mapstructure:"thread_count"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// S3Config configures the s3transport.Transport a "run" uses when the
// job's store is S3-backed.
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
}

// AzureConfig configures the azuretransport.Transport a "run" uses when
// the job's store is an Azure Blob storage account instead of S3.
type AzureConfig struct {
	AccountURL  string `mapstructure:"account_url"`
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
}

// Config is the CLI's top-level configuration.
type Config struct {
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Api     api.Config    `mapstructure:"api"`
	Run     RunDefaults   `mapstructure:"run"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	S3      S3Config      `mapstructure:"s3"`
	Azure   AzureConfig   `mapstructure:"azure"`
}

// MetricsConfig controls whether/where Prometheus metrics are exposed.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}
