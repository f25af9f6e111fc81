package transport_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chtzvt/forestbatch/internal/transport"
)

func TestMapResolverResolvesKnownHost(t *testing.T) {
	r := transport.NewMapResolver([]string{"h1", "h2"}, map[string]transport.Client{
		"h1": {Host: "h1"},
		"h2": {Host: "h2"},
	})
	c, err := r.Resolve("h2")
	require.NoError(t, err)
	require.Equal(t, "h2", c.Host)
}

func TestMapResolverUnknownHostFails(t *testing.T) {
	r := transport.NewMapResolver([]string{"h1"}, map[string]transport.Client{"h1": {Host: "h1"}})
	_, err := r.Resolve("h9")
	require.Error(t, err)
}

func TestMapResolverSnapshotPreservesHostOrder(t *testing.T) {
	r := transport.NewMapResolver([]string{"h2", "h1", "h3"}, map[string]transport.Client{
		"h1": {Host: "h1"},
		"h2": {Host: "h2"},
		"h3": {Host: "h3"},
	})
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "h2", snap[0].Host)
	require.Equal(t, "h1", snap[1].Host)
	require.Equal(t, "h3", snap[2].Host)
}

func TestMapResolverSnapshotSkipsMissingHosts(t *testing.T) {
	r := transport.NewMapResolver([]string{"h1", "h2"}, map[string]transport.Client{"h1": {Host: "h1"}})
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "h1", snap[0].Host)
}
