package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chtzvt/forestbatch/internal/shard"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdConfig configures an EtcdDirectory, trimmed to what a read-only
// directory mirror needs (no secrets keychain: this is not a
// coordination store, only a snapshot source).
type EtcdConfig struct {
	Endpoints   []string
	Username    string // optional
	Password    string // optional
	DialTimeout time.Duration
	Prefix      string // default: "/forestbatch/shards"
}

// EtcdDirectory is a reference shard.Directory that reads a forest/host
// snapshot out of an etcd prefix: each key under Prefix holds a
// JSON-encoded shard.Shard record. It mirrors the external discovery
// service this module treats as out of scope.
type EtcdDirectory struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdDirectory dials etcd and returns a ready EtcdDirectory.
func NewEtcdDirectory(cfg EtcdConfig) (*EtcdDirectory, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("directory: dial etcd: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "/forestbatch/shards"
	}
	return &EtcdDirectory{client: cli, prefix: prefix}, nil
}

// ListShards reads every key under the configured prefix and decodes it
// as a shard.Shard record. Satisfies shard.Directory.
func (d *EtcdDirectory) ListShards() ([]shard.Shard, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := d.client.Get(ctx, d.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("directory: etcd get %s: %w", d.prefix, err)
	}

	shards := make([]shard.Shard, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var s shard.Shard
		if err := json.Unmarshal(kv.Value, &s); err != nil {
			return nil, fmt.Errorf("directory: decode %s: %w", string(kv.Key), err)
		}
		shards = append(shards, s)
	}
	return shards, nil
}

// PutShard writes (or replaces) a single shard record under the
// directory's prefix, keyed by shard ID. Used by operators/tests to seed
// or mutate the live snapshot an EtcdDirectory reads.
func (d *EtcdDirectory) PutShard(ctx context.Context, s shard.Shard) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("directory: encode shard %s: %w", s.ID, err)
	}
	key := d.prefix + "/" + s.ID
	if _, err := d.client.Put(ctx, key, string(body)); err != nil {
		return fmt.Errorf("directory: etcd put %s: %w", key, err)
	}
	return nil
}

// RemoveShard deletes a shard record, simulating a shard disappearing
// from the live discovery service.
func (d *EtcdDirectory) RemoveShard(ctx context.Context, id string) error {
	key := d.prefix + "/" + id
	if _, err := d.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("directory: etcd delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying etcd client connection.
func (d *EtcdDirectory) Close() error {
	return d.client.Close()
}
