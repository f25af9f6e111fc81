// Package idseq provides a concrete, file-backed IDSequence for the
// iterator engine: a lazy sequence of identifiers read one at a time
// from a CBOR-encoded stream, optionally gzip/bzip2 compressed on disk.
package idseq

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ErrExhausted is returned by Next once the sequence has no more items.
// HasNext returns false at the same point; callers should prefer HasNext
// and only treat Next's error as fatal when it is not ErrExhausted.
var ErrExhausted = errors.New("idseq: sequence exhausted")

// Sequence is the lazy identifier source the iterator engine drains.
// HasNext/Next mirror an iterator rather than a channel so the driver
// task can interleave buffering logic with sequence exhaustion checks.
type Sequence interface {
	HasNext() bool
	Next() (string, error)
}

// FileSequence decodes a back-to-back stream of CBOR-encoded strings
// written by WriteFileSequence. Each call to Next decodes exactly one value;
// the file is never loaded into memory wholesale, matching the "lazy
// sequence" contract the query engine's iterator variant expects.
type FileSequence struct {
	rc      io.Closer
	dec     *cbor.Decoder
	next    string
	hasNext bool
	err     error
}

// OpenFileSequence opens path, applying the given decompression, and
// primes the first item so HasNext is accurate before the first Next call.
func OpenFileSequence(path string, compression string) (*FileSequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("idseq: open %s: %w", path, err)
	}
	r, err := NewDecompressReader(f, compression)
	if err != nil {
		f.Close()
		return nil, err
	}
	fs := &FileSequence{rc: f, dec: cbor.NewDecoder(r)}
	fs.advance()
	return fs, nil
}

func (fs *FileSequence) advance() {
	var s string
	err := fs.dec.Decode(&s)
	switch {
	case err == nil:
		fs.next, fs.hasNext, fs.err = s, true, nil
	case errors.Is(err, io.EOF):
		fs.next, fs.hasNext, fs.err = "", false, nil
	default:
		fs.next, fs.hasNext, fs.err = "", false, err
	}
}

// HasNext reports whether another identifier is available without
// consuming it. It also reports true when a decode error is pending, so
// that the following Next call returns that error instead of the stream
// ending silently.
func (fs *FileSequence) HasNext() bool {
	return fs.hasNext || fs.err != nil
}

// Next returns the next identifier, or an error if decoding failed or
// the sequence is exhausted.
func (fs *FileSequence) Next() (string, error) {
	if fs.err != nil {
		return "", fs.err
	}
	if !fs.hasNext {
		return "", ErrExhausted
	}
	v := fs.next
	fs.advance()
	return v, nil
}

// Close releases the underlying file handle.
func (fs *FileSequence) Close() error {
	return fs.rc.Close()
}

// WriteFileSequence encodes ids as a back-to-back CBOR stream to path,
// applying the given compression. Mainly used by tests and by
// cmd/forestbatchctl's seed-sequence helper.
func WriteFileSequence(path string, compression string, ids []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("idseq: create %s: %w", path, err)
	}
	defer f.Close()

	w, err := NewCompressWriter(f, compression)
	if err != nil {
		return err
	}
	defer w.Close()

	enc := cbor.NewEncoder(w)
	for _, id := range ids {
		if err := enc.Encode(id); err != nil {
			return fmt.Errorf("idseq: encode: %w", err)
		}
	}
	return nil
}

// SliceSequence adapts an in-memory slice to the Sequence interface, for
// tests and small inputs that don't need the file-backed form.
type SliceSequence struct {
	ids []string
	pos int
}

func NewSliceSequence(ids []string) *SliceSequence {
	return &SliceSequence{ids: ids}
}

func (s *SliceSequence) HasNext() bool {
	return s.pos < len(s.ids)
}

func (s *SliceSequence) Next() (string, error) {
	if s.pos >= len(s.ids) {
		return "", ErrExhausted
	}
	v := s.ids[s.pos]
	s.pos++
	return v, nil
}
