package provisioner

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/require"
)

func assembleFrom(t *testing.T, id testIdentity, mode StagingMode) (*tls.Config, *StagedMaterial) {
	t.Helper()

	material, err := Stage(decodeTriple(t, id), mode)
	require.NoError(t, err)
	t.Cleanup(func() { teardownMaterial(material) })

	tlsConfig, err := Assemble(material)
	require.NoError(t, err)
	return tlsConfig, material
}

func TestAssembleInMemory(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	tlsConfig, _ := assembleFrom(t, id, PreferInMemory)

	require.Len(t, tlsConfig.Certificates, 1)
	// Round-trip identity: the context's client certificate is the archive's leaf
	require.Equal(t, id.leaf.Raw, tlsConfig.Certificates[0].Certificate[0])
	// Chain presented after the leaf
	require.Len(t, tlsConfig.Certificates[0].Certificate, 2)
	require.Equal(t, id.chain[0].Raw, tlsConfig.Certificates[0].Certificate[1])
}

func TestAssembleFileBacked(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	tlsConfig, _ := assembleFrom(t, id, RequireFileBacked)

	require.Len(t, tlsConfig.Certificates, 1)
	require.Equal(t, id.leaf.Raw, tlsConfig.Certificates[0].Certificate[0])
}

func TestAssembleVerificationMandatory(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	tlsConfig, _ := assembleFrom(t, id, PreferInMemory)

	require.False(t, tlsConfig.InsecureSkipVerify)
	require.GreaterOrEqual(t, tlsConfig.MinVersion, uint16(tls.VersionTLS12))
	require.NotNil(t, tlsConfig.RootCAs)
}

func TestAssembleKeyCertMismatch(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	other := newTestIdentity(t, "impostor.internal")

	triple := &CredentialTriple{
		PrivateKey: other.key,
		Leaf:       id.leaf,
		Chain:      id.chain,
	}
	material, err := Stage(triple, PreferInMemory)
	require.NoError(t, err)
	defer teardownMaterial(material)

	_, err = Assemble(material)
	require.ErrorIs(t, err, ErrKeyCertMismatch)
}

func TestAssembleChainCertInvalid(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	material, err := Stage(decodeTriple(t, id), PreferInMemory)
	require.NoError(t, err)
	defer teardownMaterial(material)

	material.ChainBytes = append(material.ChainBytes, []byte("-----BEGIN CERTIFICATE-----\nnot a cert\n-----END CERTIFICATE-----\n"))

	_, err = Assemble(material)
	require.ErrorIs(t, err, ErrChainCertInvalid)
}
