package provisioner

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/ruteri/mtls-credential-provisioner/cryptoutils"
)

// testIdentity is a freshly issued client identity with its issuing chain.
type testIdentity struct {
	key   *ecdsa.PrivateKey
	leaf  *x509.Certificate
	chain []*x509.Certificate
}

func newTestIdentity(t *testing.T, cn string) testIdentity {
	t.Helper()

	ca, caKey, err := cryptoutils.IssueCA("unit-ca")
	require.NoError(t, err)

	leaf, key, err := cryptoutils.IssueLeaf(ca, caKey, cn)
	require.NoError(t, err)

	return testIdentity{key: key, leaf: leaf, chain: []*x509.Certificate{ca}}
}

// encodeArchive builds a base64-encoded PKCS#12 archive for the identity.
// An empty passphrase produces an unencrypted archive.
func encodeArchive(t *testing.T, id testIdentity, passphrase string) ArchiveInput {
	t.Helper()

	encoder := pkcs12.Modern
	if passphrase == "" {
		encoder = pkcs12.Passwordless
	}

	der, err := encoder.Encode(id.key, id.leaf, id.chain, passphrase)
	require.NoError(t, err)

	return ArchiveInput{
		PayloadB64: []byte(base64.StdEncoding.EncodeToString(der)),
		Passphrase: passphrase,
	}
}

// stagingDirs lists the transient staging directories currently present.
func stagingDirs(t *testing.T) []string {
	t.Helper()
	dirs, err := filepath.Glob(filepath.Join(os.TempDir(), "credstage-*"))
	require.NoError(t, err)
	return dirs
}

func requireNoStagingDirs(t *testing.T) {
	t.Helper()
	require.Empty(t, stagingDirs(t), "transient staging directories left behind")
}
