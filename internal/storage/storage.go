// Package storage wraps the object store the pipeline reads and writes
// call artifacts through.
package storage

import "context"

// Client is the blob store collaborator. Objects are addressed by bucket and
// path; payloads move through local files so large media never lives in memory.
type Client interface {
	Exists(ctx context.Context, bucket, objectPath string) (bool, error)
	Download(ctx context.Context, bucket, objectPath, localDest string) error
	Upload(ctx context.Context, bucket, objectPath, localSrc, contentType string) error
	Remove(ctx context.Context, bucket, objectPath string) error
}
