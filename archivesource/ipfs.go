package archivesource

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	shell "github.com/ipfs/go-ipfs-api"
)

// IPFSSource reads the archive payload from IPFS by content identifier.
type IPFSSource struct {
	shell *shell.Shell
	cid   string
	log   *slog.Logger
}

// NewIPFSSource creates an IPFS archive source using the node's HTTP API at
// nodeAddr (host:port).
func NewIPFSSource(nodeAddr, cid string, log *slog.Logger) *IPFSSource {
	return &IPFSSource{
		shell: shell.NewShell(nodeAddr),
		cid:   cid,
		log:   log,
	}
}

// Fetch retrieves the payload by CID.
func (s *IPFSSource) Fetch(ctx context.Context) ([]byte, error) {
	reader, err := s.shell.Cat(s.cid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read IPFS content: %w", err)
	}

	s.log.Debug("Fetched archive payload from IPFS",
		slog.String("cid", s.cid),
		slog.Int("size", len(data)))

	return data, nil
}

// Available checks if the IPFS node answers.
func (s *IPFSSource) Available(ctx context.Context) bool {
	_, _, err := s.shell.Version()
	return err == nil
}

// Name returns a unique identifier for this source.
func (s *IPFSSource) Name() string {
	return fmt.Sprintf("ipfs-%s", s.cid)
}
