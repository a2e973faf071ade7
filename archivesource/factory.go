package archivesource

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Factory creates archive sources from URI strings and aggregates several
// locations into a redundant multi-source.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a new factory instance.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// SourceFor creates an archive source from a location URI.
// The URI format is [scheme]://[auth@]host[/path][?params].
//
// Supported schemes:
//   - file:// - Local filesystem
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2
//   - ipfs:// - IPFS
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) SourceFor(locationURI string) (Source, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return f.createFileSource(u)
	case "s3":
		return f.createS3Source(u)
	case "vault":
		return f.createVaultSource(u)
	case "ipfs":
		return f.createIPFSSource(u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiSource creates a redundant multi-source from a list of location
// URIs. Invalid locations are skipped with a warning; at least one valid
// location is required.
func (f *Factory) CreateMultiSource(locationURIs []string) (Source, error) {
	sources := make([]Source, 0, len(locationURIs))

	for _, uri := range locationURIs {
		source, err := f.SourceFor(uri)
		if err != nil {
			f.log.Warn("Failed to create archive source",
				"err", err,
				slog.String("locationURI", uri))
			continue
		}
		sources = append(sources, source)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no valid archive sources created")
	}

	return NewMultiSource(sources, f.log), nil
}

// createFileSource creates a filesystem source.
// URI format: file:///etc/credentials/client.p12.b64
func (f *Factory) createFileSource(u *url.URL) (Source, error) {
	path := u.Path
	if u.Host != "" {
		// Relative form file://dir/file
		path = u.Host + u.Path
	}
	if path == "" {
		return nil, fmt.Errorf("%w: file URI missing path", ErrInvalidLocationURI)
	}
	return NewFileSource(path, f.log), nil
}

// createS3Source creates an S3 source.
// URI format: s3://[accessKey:secretKey@]bucket/key?region=us-east-1[&endpoint=host]
func (f *Factory) createS3Source(u *url.URL) (Source, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: s3 URI requires bucket and key", ErrInvalidLocationURI)
	}

	params := u.Query()
	region := params.Get("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Source(bucket, key, region, params.Get("endpoint"), accessKey, secretKey, f.log)
}

// createVaultSource creates a Vault source.
// URI format: vault://host:8200/mount/secret/path?field=payload[&scheme=http][&token=...]
func (f *Factory) createVaultSource(u *url.URL) (Source, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("%w: vault URI missing host", ErrInvalidLocationURI)
	}

	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: vault URI requires /mount/path", ErrInvalidLocationURI)
	}

	params := u.Query()
	scheme := params.Get("scheme")
	if scheme == "" {
		scheme = "https"
	}
	field := params.Get("field")
	if field == "" {
		field = "payload"
	}

	address := fmt.Sprintf("%s://%s", scheme, u.Host)
	return NewVaultSource(address, parts[0], parts[1], field, params.Get("token"), f.log)
}

// createIPFSSource creates an IPFS source.
// URI format: ipfs://QmHash[?node=host:port]
func (f *Factory) createIPFSSource(u *url.URL) (Source, error) {
	cid := u.Host
	if cid == "" {
		return nil, fmt.Errorf("%w: ipfs URI missing CID", ErrInvalidLocationURI)
	}

	node := u.Query().Get("node")
	if node == "" {
		node = "127.0.0.1:5001"
	}

	return NewIPFSSource(node, cid, f.log), nil
}
