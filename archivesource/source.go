// Package archivesource fetches base64-encoded PKCS#12 archive payloads
// from operator-configured locations. Sources are read-only: a payload is
// fetched, handed to the provisioning pipeline, and never written back or
// persisted by this package.
//
// Locations are URI strings resolved by the Factory:
//
//   - file:///path/to/archive.b64 - local filesystem
//   - s3://[accessKey:secretKey@]bucket/key?region=...[&endpoint=...] - S3 or compatible
//   - vault://host:port/mount/path?field=payload[&scheme=http] - HashiCorp Vault KV v2
//   - ipfs://CID[?node=host:port] - IPFS
package archivesource

import (
	"context"
	"errors"
)

// ErrArchiveNotFound indicates the location resolved but holds no payload.
var ErrArchiveNotFound = errors.New("archive payload not found")

// ErrInvalidLocationURI indicates the location URI could not be parsed.
var ErrInvalidLocationURI = errors.New("invalid archive location URI")

// Source retrieves an archive payload from one location.
type Source interface {
	// Fetch returns the base64-encoded archive payload.
	Fetch(ctx context.Context) ([]byte, error)

	// Available reports whether the backing store is reachable.
	Available(ctx context.Context) bool

	// Name returns a unique identifier for this source, safe to log.
	Name() string
}
