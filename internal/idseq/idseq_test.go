package idseq_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chtzvt/forestbatch/internal/idseq"
)

func TestSliceSequenceDrainsInOrder(t *testing.T) {
	seq := idseq.NewSliceSequence([]string{"a", "b", "c"})

	var got []string
	for seq.HasNext() {
		v, err := seq.Next()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)

	_, err := seq.Next()
	require.ErrorIs(t, err, idseq.ErrExhausted)
}

func TestFileSequenceRoundTripsUncompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.cbor")
	ids := []string{"uri:///a.xml", "uri:///b.xml", "uri:///c.xml"}
	require.NoError(t, idseq.WriteFileSequence(path, "none", ids))

	seq, err := idseq.OpenFileSequence(path, "none")
	require.NoError(t, err)
	defer seq.Close()

	var got []string
	for seq.HasNext() {
		v, err := seq.Next()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, ids, got)
}

func TestFileSequenceRoundTripsGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.cbor.gz")
	ids := []string{"x1", "x2"}
	require.NoError(t, idseq.WriteFileSequence(path, "gzip", ids))

	seq, err := idseq.OpenFileSequence(path, "gzip")
	require.NoError(t, err)
	defer seq.Close()

	var got []string
	for seq.HasNext() {
		v, err := seq.Next()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, ids, got)
}

func TestFileSequenceRoundTripsBzip2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.cbor.bz2")
	ids := []string{"y1", "y2", "y3"}
	require.NoError(t, idseq.WriteFileSequence(path, "bzip2", ids))

	seq, err := idseq.OpenFileSequence(path, "bzip2")
	require.NoError(t, err)
	defer seq.Close()

	var got []string
	for seq.HasNext() {
		v, err := seq.Next()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, ids, got)
}

func TestOpenFileSequenceOnEmptyFileHasNoNext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.cbor")
	require.NoError(t, idseq.WriteFileSequence(path, "none", nil))

	seq, err := idseq.OpenFileSequence(path, "none")
	require.NoError(t, err)
	defer seq.Close()

	require.False(t, seq.HasNext())
	_, err = seq.Next()
	require.ErrorIs(t, err, idseq.ErrExhausted)
}

func TestNewCompressWriterRejectsUnknownCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cbor")
	err := idseq.WriteFileSequence(path, "lz4", []string{"a"})
	require.Error(t, err)
}
