package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chtzvt/forestbatch/internal/shard"
	"github.com/chtzvt/forestbatch/internal/testcluster"
)

func TestEtcdDirectoryPutListRemoveRoundTrip(t *testing.T) {
	dir, cleanup := testcluster.SetupEtcdDirectory(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, dir.PutShard(ctx, shard.Shard{ID: "f1", Name: "forest1", Host: "h1"}))
	require.NoError(t, dir.PutShard(ctx, shard.Shard{ID: "f2", Name: "forest2", Host: "h2"}))

	shards, err := dir.ListShards()
	require.NoError(t, err)
	require.Len(t, shards, 2)

	byID := map[string]shard.Shard{}
	for _, s := range shards {
		byID[s.ID] = s
	}
	require.Equal(t, "h1", byID["f1"].Host)
	require.Equal(t, "h2", byID["f2"].Host)

	require.NoError(t, dir.RemoveShard(ctx, "f1"))
	shards, err = dir.ListShards()
	require.NoError(t, err)
	require.Len(t, shards, 1)
	require.Equal(t, "f2", shards[0].ID)
}

func TestEtcdDirectoryEmptyPrefixListsNothing(t *testing.T) {
	dir, cleanup := testcluster.SetupEtcdDirectory(t)
	defer cleanup()

	shards, err := dir.ListShards()
	require.NoError(t, err)
	require.Empty(t, shards)
}
