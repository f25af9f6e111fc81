// Package testcluster spins up an embedded etcd server for tests that
// exercise internal/directory.EtcdDirectory: just enough etcd to test a
// read-only directory mirror against, no cluster coordination layer.
package testcluster

import (
	"testing"
	"time"

	"github.com/chtzvt/forestbatch/internal/directory"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/server/v3/embed"
)

// SetupEtcdDirectory starts an embedded etcd server in a temp dir, dials
// an EtcdDirectory against it under a test prefix, and returns the
// directory plus a cleanup function. randString is deterministic, so the
// prefix is the same on every call; each call starts its own etcd server
// in a fresh temp dir.
func SetupEtcdDirectory(t *testing.T) (*directory.EtcdDirectory, func()) {
	t.Helper()
	cfg := embed.NewConfig()
	cfg.Dir = t.TempDir()
	cfg.Logger = "zap"
	cfg.LogLevel = "error"
	e, err := embed.StartEtcd(cfg)
	require.NoError(t, err)

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(10 * time.Second):
		t.Fatal("etcd server did not become ready in time")
	}

	dir, err := directory.NewEtcdDirectory(directory.EtcdConfig{
		Endpoints:   []string{e.Clients[0].Addr().String()},
		DialTimeout: 2 * time.Second,
		Prefix:      "/forestbatch_test_" + randString(5),
	})
	require.NoError(t, err)

	cleanup := func() {
		_ = dir.Close()
		e.Close()
	}
	return dir, cleanup
}

func randString(n int) string {
	letters := []rune("abcdefghijklmnopqrstuvwxyz0123456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[(i*7+3)%len(letters)]
	}
	return string(b)
}
