package idseq

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// CompressWriter is an io.WriteCloser optionally wrapping compression
// around an underlying writer. It backs both the on-disk CBOR identifier
// sequence file (the IDSequence) and the file listener.
type CompressWriter = io.WriteCloser

// NewCompressWriter returns a CompressWriter wrapping w with the
// requested compression. Supported: "gzip", "bzip2", "none"/"".
func NewCompressWriter(w io.Writer, compression string) (CompressWriter, error) {
	switch compression {
	case "gzip":
		return gzip.NewWriter(w), nil
	case "bzip2":
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	case "", "none":
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("idseq: unsupported compression: %s", compression)
	}
}

// NewDecompressReader returns a reader that undoes NewCompressWriter's
// wrapping, used when opening an existing sequence file for reading.
func NewDecompressReader(r io.Reader, compression string) (io.Reader, error) {
	switch compression {
	case "gzip":
		return gzip.NewReader(r)
	case "bzip2":
		return bzip2.NewReader(r, &bzip2.ReaderConfig{})
	case "", "none":
		return r, nil
	default:
		return nil, fmt.Errorf("idseq: unsupported compression: %s", compression)
	}
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.Writer.Write(p) }
func (n nopWriteCloser) Close() error                { return nil }
