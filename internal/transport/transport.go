// Package transport defines the facade the query engine uses to fetch
// one page of matching identifiers from one shard, and the sentinel
// errors that drive its terminal-page detection.
package transport

import (
	"context"
	"errors"
)

// ErrNotFound signals a "resource not found" response: the requested
// offset is past the end of the result set. The engine treats this the
// same as an empty page: terminal, not a failure.
var ErrNotFound = errors.New("transport: resource not found")

// Page is the raw response to one uris() call: the matching identifiers
// for this page plus the server-side timestamp the response was
// produced at.
type Page struct {
	IDs             []string
	ServerTimestamp int64
}

// Transport issues "list URIs matching query Q against shard F starting
// at offset S, with page length N, optionally at server timestamp T" and
// is the only way the engine talks to the store. atTimestamp is 0 when
// snapshot mode is off or no timestamp has been pinned yet.
//
// Implementations must return ErrNotFound (wrapped or bare, checked with
// errors.Is) for an out-of-range offset rather than an empty Page, when
// the underlying protocol distinguishes the two; returning an empty
// Page.IDs is equally terminal and acceptable when it doesn't.
type Transport interface {
	URIs(ctx context.Context, query string, shard string, start, pageLength int, atTimestamp int64) (Page, error)
}

// Client groups a Transport with the host it was resolved against, so
// callers that round-robin across a host list (the iterator engine) or
// re-resolve per task (the query engine) can report which host served a
// given batch.
type Client struct {
	Host      string
	Transport Transport
}

// Resolver maps a shard's current preferred host to a usable Client.
// The query engine re-resolves through this on every task rather than
// caching a Client at task construction, so a host change taking effect
// between pages is picked up immediately.
type Resolver interface {
	Resolve(host string) (Client, error)
}
