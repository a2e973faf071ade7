package httpserver

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/ruteri/mtls-credential-provisioner/archivesource"
	"github.com/ruteri/mtls-credential-provisioner/cryptoutils"
)

func testArchive(t *testing.T, cn, passphrase string) (archiveB64 string, leaf *x509.Certificate) {
	t.Helper()

	ca, caKey, err := cryptoutils.IssueCA("probe test ca")
	require.NoError(t, err)
	leaf, leafKey, err := cryptoutils.IssueLeaf(ca, caKey, cn)
	require.NoError(t, err)

	var der []byte
	if passphrase == "" {
		der, err = pkcs12.Passwordless.Encode(leafKey, leaf, []*x509.Certificate{ca}, "")
	} else {
		der, err = pkcs12.Modern.Encode(leafKey, leaf, []*x509.Certificate{ca}, passphrase)
	}
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(der), leaf
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewHandler(archivesource.NewFactory(log), log)
}

func probe(t *testing.T, h *Handler, req ProbeRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/provision/probe", bytes.NewReader(body))
	h.HandleProbe(w, r)
	return w
}

func TestHandleProbeInlineArchive(t *testing.T) {
	archive, leaf := testArchive(t, "client.svc.internal", "hunter2")

	w := probe(t, newTestHandler(t), ProbeRequest{
		ArchiveB64: archive,
		Passphrase: "hunter2",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProbeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, leaf.Subject.String(), resp.Subject)
	assert.Equal(t, 2, resp.ChainLength)
	assert.Equal(t, "memory", resp.StagingMode)
	assert.NotContains(t, w.Body.String(), "PRIVATE KEY")
}

func TestHandleProbeFileStaging(t *testing.T) {
	archive, _ := testArchive(t, "client.svc.internal", "hunter2")

	w := probe(t, newTestHandler(t), ProbeRequest{
		ArchiveB64:  archive,
		Passphrase:  "hunter2",
		StagingMode: "file",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProbeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "file", resp.StagingMode)

	leftovers, err := filepath.Glob(filepath.Join(os.TempDir(), "credstage-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestHandleProbeWrongPassphrase(t *testing.T) {
	archive, _ := testArchive(t, "client.svc.internal", "hunter2")

	w := probe(t, newTestHandler(t), ProbeRequest{
		ArchiveB64: archive,
		Passphrase: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleProbeMalformedArchive(t *testing.T) {
	w := probe(t, newTestHandler(t), ProbeRequest{ArchiveB64: "not base64!!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleProbeRequestValidation(t *testing.T) {
	h := newTestHandler(t)

	t.Run("empty request", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, probe(t, h, ProbeRequest{}).Code)
	})

	t.Run("both inline and source", func(t *testing.T) {
		w := probe(t, h, ProbeRequest{ArchiveB64: "QQ==", SourceURI: "file:///tmp/a.b64"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad staging mode", func(t *testing.T) {
		archive, _ := testArchive(t, "client.svc.internal", "")
		w := probe(t, h, ProbeRequest{ArchiveB64: archive, StagingMode: "ramdisk"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleProbeFromFileSource(t *testing.T) {
	archive, leaf := testArchive(t, "client.svc.internal", "")

	path := filepath.Join(t.TempDir(), "client.b64")
	require.NoError(t, os.WriteFile(path, []byte(archive), 0o600))

	w := probe(t, newTestHandler(t), ProbeRequest{SourceURI: "file://" + path})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProbeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, leaf.Subject.String(), resp.Subject)
}

func TestHandleProbeSourceNotFound(t *testing.T) {
	w := probe(t, newTestHandler(t), ProbeRequest{
		SourceURI: "file://" + filepath.Join(t.TempDir(), "missing.b64"),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
