package provisioner

import (
	"crypto/x509"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/ruteri/mtls-credential-provisioner/cryptoutils"
)

func TestDecodeRoundTrip(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "letmein")

	triple, err := Decode(archive)
	require.NoError(t, err)
	require.NotNil(t, triple.PrivateKey)
	require.Equal(t, "client.internal", triple.Leaf.Subject.CommonName)
	require.Len(t, triple.Chain, 1)
	require.Equal(t, id.chain[0].Raw, triple.Chain[0].Raw)
}

func TestDecodeNoPassphraseWithChain(t *testing.T) {
	// Leaf plus one intermediate, unencrypted archive
	id := newTestIdentity(t, "chained.internal")
	archive := encodeArchive(t, id, "")

	triple, err := Decode(archive)
	require.NoError(t, err)
	require.Equal(t, "chained.internal", triple.Leaf.Subject.CommonName)
	require.Len(t, triple.Chain, 1)
}

func TestDecodeWrongPassphrase(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "correct")
	archive.Passphrase = "incorrect"

	_, err := Decode(archive)
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: nil},
		{name: "not base64", payload: []byte("%%% not base64 %%%")},
		{name: "base64 of garbage", payload: []byte(base64.StdEncoding.EncodeToString([]byte("not a pkcs12 container")))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(ArchiveInput{PayloadB64: tc.payload})
			require.ErrorIs(t, err, ErrMalformedArchive)
		})
	}
}

func TestDecodeArchiveWithoutKey(t *testing.T) {
	// A trust-store archive is a valid container carrying only CA
	// certificates, no key/leaf pair.
	ca, _, err := cryptoutils.IssueCA("trust-anchor")
	require.NoError(t, err)

	der, err := pkcs12.Passwordless.EncodeTrustStore([]*x509.Certificate{ca}, "")
	require.NoError(t, err)

	_, err = Decode(ArchiveInput{
		PayloadB64: []byte(base64.StdEncoding.EncodeToString(der)),
	})
	require.ErrorIs(t, err, ErrMissingKeyOrCertificate)
	require.NotErrorIs(t, err, ErrMalformedArchive)
}

func TestDecodeToleratesWhitespace(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "")
	archive.PayloadB64 = append([]byte("\n  "), append(archive.PayloadB64, '\n')...)

	_, err := Decode(archive)
	require.NoError(t, err)
}

func TestDecodeToleratesLineWrappedPayload(t *testing.T) {
	id := newTestIdentity(t, "client.internal")
	archive := encodeArchive(t, id, "")

	// Rewrap the payload at 64 columns, the usual .b64 file format.
	var wrapped []byte
	for len(archive.PayloadB64) > 0 {
		n := 64
		if n > len(archive.PayloadB64) {
			n = len(archive.PayloadB64)
		}
		wrapped = append(wrapped, archive.PayloadB64[:n]...)
		wrapped = append(wrapped, '\n')
		archive.PayloadB64 = archive.PayloadB64[n:]
	}
	archive.PayloadB64 = wrapped

	triple, err := Decode(archive)
	require.NoError(t, err)
	require.Equal(t, "client.internal", triple.Leaf.Subject.CommonName)
}
