// Package azuretransport is a second reference transport.Transport,
// mirroring s3transport but over Azure Blob container listings: a shard
// is a container name, a "page" is one Marker-paginated ListBlobsFlat
// call, and blob names are the identifiers.
package azuretransport

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/chtzvt/forestbatch/internal/transport"
)

// Transport issues blob-listing-as-uris calls against one Azure storage
// account, selecting the container by shard name.
type Transport struct {
	client *azblob.Client
}

// New builds a Transport against the given storage account URL using a
// shared key credential, matching the azblob SDK's direct-credential
// construction path.
func New(accountURL, accountName, accountKey string) (*Transport, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azuretransport: shared key credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azuretransport: new client: %w", err)
	}
	return &Transport{client: client}, nil
}

// URIs lists up to pageLength blob names in the container named by
// shardContainer, walking continuation markers internally to reach the
// page starting at offset start, the same cursor-walk approach
// s3transport uses for S3's non-numeric pagination. atTimestamp is
// unused: blob listings are not timestamp-pinnable.
func (t *Transport) URIs(ctx context.Context, query string, shardContainer string, start, pageLength int, atTimestamp int64) (transport.Page, error) {
	maxResults := int32(pageLength)
	pager := t.client.NewListBlobsFlatPager(shardContainer, &azblob.ListBlobsFlatOptions{
		MaxResults: &maxResults,
	})

	skipped := 0
	var names []*string
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return transport.Page{}, fmt.Errorf("azuretransport: list %s: %w", shardContainer, err)
		}
		pageNames := blobItemNames(resp.Segment.BlobItems)
		if pageContainsOffset(skipped, len(pageNames), start) {
			names = pageNames
			break
		}
		skipped += len(pageNames)
	}

	if len(names) == 0 {
		return transport.Page{}, transport.ErrNotFound
	}

	return transport.Page{IDs: collectBlobNames(names), ServerTimestamp: time.Now().Unix()}, nil
}

// pageContainsOffset reports whether a page holding pageLen items,
// preceded by skipped items from earlier pages, contains the item at
// offset start (1-indexed). Pure cursor-walk math, kept free of the SDK
// response type so it can be tested without a live storage account.
func pageContainsOffset(skipped, pageLen, start int) bool {
	return skipped+pageLen > start-1
}

// blobItemNames extracts the Name pointer from each listed blob item.
func blobItemNames(items []*container.BlobItem) []*string {
	names := make([]*string, len(items))
	for i, item := range items {
		if item != nil {
			names[i] = item.Name
		}
	}
	return names
}

// collectBlobNames dereferences non-nil blob names, skipping entries
// the service leaves nil (prefix/virtual-directory entries under
// hierarchical listing, which this transport never requests but the SDK
// type still allows for).
func collectBlobNames(ptrs []*string) []string {
	ids := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		if p != nil {
			ids = append(ids, *p)
		}
	}
	return ids
}
