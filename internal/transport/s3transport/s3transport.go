// Package s3transport is a reference transport.Transport that treats an
// S3 bucket prefix as a shard and ListObjectsV2 pagination as the
// page-fetch protocol: each "page" is one ListObjectsV2 call, and the
// object keys returned are the identifiers. Built on the AWS SDK v2
// config/credentials/s3 stack.
package s3transport

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chtzvt/forestbatch/internal/transport"
)

// Transport issues List-Objects-as-uris calls against one S3 bucket. A
// "shard" is a key prefix within the bucket; pageLength maps to
// MaxKeys, and start is reached by walking continuation tokens from the
// first key of the prefix on every call (nothing is cached between
// calls), since S3 pagination is cursor-based rather than offset-based.
type Transport struct {
	client *s3.Client
	bucket string
}

// New builds a Transport for the given bucket using the default AWS
// config resolution chain (env vars, shared config, IMDS) via
// awsconfig.LoadDefaultConfig.
func New(ctx context.Context, bucket string, region string) (*Transport, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("s3transport: load aws config: %w", err)
	}
	return &Transport{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewWithStaticCredentials builds a Transport using fixed access
// key/secret credentials instead of the default resolution chain, for
// environments (tests, on-prem S3-compatible stores) where IMDS/shared
// config isn't available.
func NewWithStaticCredentials(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string) (*Transport, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3transport: load aws config: %w", err)
	}
	return &Transport{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// URIs lists up to pageLength object keys under the shard prefix,
// starting after the object key recorded at offset start-1 (S3 has no
// numeric offset; this transport treats "start" as "how many objects to
// skip before this page" and walks cursor pages internally to get
// there, acceptable for the batch sizes this protocol deals in).
// atTimestamp is accepted for interface compatibility but unused: S3
// listings are not timestamp-pinnable, so snapshot mode is not
// meaningful against this transport.
func (t *Transport) URIs(ctx context.Context, query string, shardPrefix string, start, pageLength int, atTimestamp int64) (transport.Page, error) {
	var token *string
	skipped := 0
	for skipped < start-1 {
		chunk := start - 1 - skipped
		if chunk > 1000 {
			chunk = 1000
		}
		resp, err := t.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(t.bucket),
			Prefix:            aws.String(shardPrefix),
			MaxKeys:           aws.Int32(int32(chunk)),
			ContinuationToken: token,
		})
		if err != nil {
			return transport.Page{}, fmt.Errorf("s3transport: list %s: %w", shardPrefix, err)
		}
		skipped += len(resp.Contents)
		if resp.NextContinuationToken == nil {
			return transport.Page{}, transport.ErrNotFound
		}
		token = resp.NextContinuationToken
	}

	resp, err := t.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:            aws.String(t.bucket),
		Prefix:            aws.String(shardPrefix),
		MaxKeys:           aws.Int32(int32(pageLength)),
		ContinuationToken: token,
	})
	if err != nil {
		return transport.Page{}, fmt.Errorf("s3transport: list %s: %w", shardPrefix, err)
	}
	if len(resp.Contents) == 0 {
		return transport.Page{}, transport.ErrNotFound
	}

	ids := make([]string, 0, len(resp.Contents))
	for _, obj := range resp.Contents {
		ids = append(ids, aws.ToString(obj.Key))
	}
	return transport.Page{IDs: ids, ServerTimestamp: time.Now().Unix()}, nil
}
