package provisioner

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardSuccessCleansUp(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "letmein")

	var seenKeyPath string
	err := WithProvisionedContext(context.Background(), archive, RequireFileBacked,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			require.Len(t, tlsConfig.Certificates, 1)
			require.Equal(t, id.leaf.Raw, tlsConfig.Certificates[0].Certificate[0])

			// While the body runs, the staged key is on storage
			dirs := stagingDirs(t)
			require.Len(t, dirs, 1)
			keys, err := filepath.Glob(filepath.Join(dirs[0], "*.key.pem"))
			require.NoError(t, err)
			require.Len(t, keys, 1)
			seenKeyPath = keys[0]

			data, err := os.ReadFile(seenKeyPath)
			require.NoError(t, err)
			require.Contains(t, string(data), "PRIVATE KEY")
			return nil
		})
	require.NoError(t, err)

	require.NotEmpty(t, seenKeyPath)
	require.NoFileExists(t, seenKeyPath)
	requireNoStagingDirs(t)
}

func TestGuardBodyErrorPropagatesUnchanged(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "")

	bodyErr := errors.New("handshake setup exploded")
	err := WithProvisionedContext(context.Background(), archive, RequireFileBacked,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			return bodyErr
		})
	require.ErrorIs(t, err, bodyErr)
	requireNoStagingDirs(t)
}

func TestGuardWrongPassphraseLeavesNothing(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "correct")
	archive.Passphrase = "incorrect"

	err := WithProvisionedContext(context.Background(), archive, RequireFileBacked,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			t.Fatal("body must not run on decode failure")
			return nil
		})
	require.ErrorIs(t, err, ErrWrongPassphrase)
	requireNoStagingDirs(t)
}

func TestGuardKeyCertMismatchLeavesNothing(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	other := newTestIdentity(t, "impostor.internal")
	mismatched := testIdentity{key: other.key, leaf: id.leaf, chain: id.chain}
	archive := encodeArchive(t, mismatched, "")

	err := WithProvisionedContext(context.Background(), archive, RequireFileBacked,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			t.Fatal("body must not run on assemble failure")
			return nil
		})
	require.ErrorIs(t, err, ErrKeyCertMismatch)
	requireNoStagingDirs(t)
}

func TestGuardCancelledBeforeBody(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithProvisionedContext(ctx, archive, RequireFileBacked,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			t.Fatal("body must not run after cancellation")
			return nil
		})
	require.ErrorIs(t, err, context.Canceled)
	requireNoStagingDirs(t)
}

func TestGuardCancelledInsideBody(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "")

	ctx, cancel := context.WithCancel(context.Background())
	err := WithProvisionedContext(ctx, archive, RequireFileBacked,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			cancel()
			return ctx.Err()
		})
	require.ErrorIs(t, err, context.Canceled)
	requireNoStagingDirs(t)
}

func TestGuardTeardownWarningDoesNotMaskBodyError(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "")

	var warning *TeardownWarning
	var extra string
	bodyErr := errors.New("original failure")

	err := WithProvisionedContext(context.Background(), archive, RequireFileBacked,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			// An unexpected file in the staging directory makes the
			// directory removal fail during teardown
			dirs := stagingDirs(t)
			require.Len(t, dirs, 1)
			extra = filepath.Join(dirs[0], "leftover")
			require.NoError(t, os.WriteFile(extra, []byte("x"), 0o600))
			return bodyErr
		},
		WithTeardownObserver(func(w *TeardownWarning) { warning = w }))

	// The body's error comes back unchanged; the cleanup problem is a warning
	require.ErrorIs(t, err, bodyErr)
	require.NotNil(t, warning)
	require.NotEmpty(t, warning.Errs)

	require.NoError(t, os.Remove(extra))
	require.NoError(t, os.Remove(filepath.Dir(extra)))
}

func TestGuardRepeatedCallsIndependent(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "")

	var first, second *tls.Config
	require.NoError(t, WithProvisionedContext(context.Background(), archive, PreferInMemory,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			first = tlsConfig
			return nil
		}))
	require.NoError(t, WithProvisionedContext(context.Background(), archive, PreferInMemory,
		func(ctx context.Context, tlsConfig *tls.Config) error {
			second = tlsConfig
			return nil
		}))

	require.NotSame(t, first, second)
	requireNoStagingDirs(t)
}

func TestGuardConcurrentCalls(t *testing.T) {
	const calls = 8

	archives := make([]ArchiveInput, calls)
	for i := range archives {
		id := newTestIdentity(t, fmt.Sprintf("client-%d.internal", i))
		archives[i] = encodeArchive(t, id, "")
	}

	var wg sync.WaitGroup
	errCh := make(chan error, calls)

	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(archive ArchiveInput) {
			defer wg.Done()
			errCh <- WithProvisionedContext(context.Background(), archive, RequireFileBacked,
				func(ctx context.Context, tlsConfig *tls.Config) error {
					if len(tlsConfig.Certificates) != 1 {
						return errors.New("missing client certificate")
					}
					return nil
				})
		}(archives[i])
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}
	requireNoStagingDirs(t)
}
