package sharehandler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/threshold-xks/api/proxyhandler"
	"github.com/ruteri/threshold-xks/cryptoutils"
	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/kms"
	"github.com/ruteri/threshold-xks/sharestore"
	"github.com/ruteri/threshold-xks/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer collects audit log lines written from server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

type deployment struct {
	ca     *cryptoutils.CA
	stores map[interfaces.ShareIndex]*sharestore.Store
	audit  map[interfaces.ShareIndex]*syncBuffer
	urls   map[interfaces.ShareIndex]string
}

func newDeployment(t *testing.T, keyIDs ...interfaces.KeyID) *deployment {
	t.Helper()
	ca, err := cryptoutils.NewCA("xks-test-ca")
	require.NoError(t, err)

	set, err := threshold.Deal(rand.Reader, keyIDs)
	require.NoError(t, err)

	d := &deployment{
		ca:     ca,
		stores: map[interfaces.ShareIndex]*sharestore.Store{},
		audit:  map[interfaces.ShareIndex]*syncBuffer{},
		urls:   map[interfaces.ShareIndex]string{},
	}
	for i, shares := range set {
		d.stores[i], err = sharestore.New(i, shares)
		require.NoError(t, err)
	}

	for _, i := range []interfaces.ShareIndex{2, 3} {
		d.audit[i] = &syncBuffer{}
		service := kms.NewPartialService(d.stores[i], slog.New(slog.NewJSONHandler(d.audit[i], nil)), nil)
		d.urls[i] = d.startShareServer(t, service, d.ca)
	}
	return d
}

func (d *deployment) startShareServer(t *testing.T, partials interfaces.PartialProvider, clientCA *cryptoutils.CA) string {
	t.Helper()
	certPEM, keyPEM, err := d.ca.Issue("share-server", "127.0.0.1")
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	pool, err := cryptoutils.NewCertPool(clientCA.CertPEM)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(partials, discardLogger()).RegisterRoutes(r)

	srv := httptest.NewUnstartedServer(r)
	srv.TLS = cryptoutils.NewServerTLSConfig(cert, pool)
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv.URL
}

func clientTLS(t *testing.T, issuer, trusted *cryptoutils.CA) *tls.Config {
	t.Helper()
	certPEM, keyPEM, err := issuer.Issue("xks-proxy")
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	pool, err := cryptoutils.NewCertPool(trusted.CertPEM)
	require.NoError(t, err)
	return cryptoutils.NewClientTLSConfig(cert, pool, "")
}

func (d *deployment) proxy(t *testing.T, tlsConfig *tls.Config, active interfaces.ShareIndex) *kms.ThresholdKMS {
	t.Helper()
	k, err := kms.NewThresholdKMS(d.stores[1], map[interfaces.ShareIndex]interfaces.PartialProvider{
		2: NewClient(d.urls[2], tlsConfig),
		3: NewClient(d.urls[3], tlsConfig),
	}, active, kms.WithTimeout(5*time.Second), kms.WithLogger(discardLogger()))
	require.NoError(t, err)
	return k
}

func TestClient_ComputePartial(t *testing.T) {
	d := newDeployment(t, "test-key-1")
	client := NewClient(d.urls[2], clientTLS(t, d.ca, d.ca))

	vp, err := threshold.MarshalPoint(threshold.HashToCurve("test-key-1"))
	require.NoError(t, err)

	resp, err := client.ComputePartial(context.Background(), interfaces.PartialRequest{
		KeyID:        "test-key-1",
		VirtualPoint: vp,
		RequestID:    "req-1",
	})
	require.NoError(t, err)

	// The remote partial matches the one computed from the same share locally.
	want, err := kms.NewPartialService(d.stores[2], discardLogger(), nil).ComputePartial(context.Background(), interfaces.PartialRequest{
		KeyID:        "test-key-1",
		VirtualPoint: vp,
		RequestID:    "req-2",
	})
	require.NoError(t, err)
	assert.Equal(t, want.PartialResult, resp.PartialResult)

	_, err = client.ComputePartial(context.Background(), interfaces.PartialRequest{
		KeyID:        "missing-key",
		VirtualPoint: vp,
		RequestID:    "req-3",
	})
	assert.ErrorIs(t, err, interfaces.ErrUnknownKey)

	_, err = client.ComputePartial(context.Background(), interfaces.PartialRequest{
		KeyID:        "test-key-1",
		VirtualPoint: []byte{0x02, 0x01},
		RequestID:    "req-4",
	})
	assert.ErrorIs(t, err, interfaces.ErrInvalidRequest)
}

func TestClient_Unauthorized(t *testing.T) {
	d := newDeployment(t, "test-key-1")
	rogue, err := cryptoutils.NewCA("rogue-ca")
	require.NoError(t, err)

	vp, err := threshold.MarshalPoint(threshold.HashToCurve("test-key-1"))
	require.NoError(t, err)
	req := interfaces.PartialRequest{KeyID: "test-key-1", VirtualPoint: vp, RequestID: "req-1"}

	_, err = NewClient(d.urls[2], clientTLS(t, rogue, d.ca)).ComputePartial(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized, "client certificate from another CA")

	_, err = NewClient(d.urls[2], clientTLS(t, d.ca, rogue)).ComputePartial(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized, "server not trusted")

	// Rejected handshakes never reach the audit log.
	assert.Empty(t, d.audit[2].entries(t))
}

func TestClient_TransportErrors(t *testing.T) {
	d := newDeployment(t, "test-key-1")
	tlsConfig := clientTLS(t, d.ca, d.ca)
	req := interfaces.PartialRequest{KeyID: "test-key-1", VirtualPoint: []byte{1}, RequestID: "req-1"}

	_, err := NewClient("https://127.0.0.1:1", tlsConfig).ComputePartial(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrRemoteUnavailable)

	stall := make(chan struct{})
	slow := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-stall:
		case <-r.Context().Done():
		}
	}))
	certPEM, keyPEM, err := d.ca.Issue("share-server", "127.0.0.1")
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	slow.TLS = cryptoutils.NewServerTLSConfig(cert, nil)
	slow.StartTLS()
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(stall) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = NewClient(slow.URL, tlsConfig).ComputePartial(ctx, req)
	assert.ErrorIs(t, err, interfaces.ErrDeadlineExceeded)
}

func TestHandlePartial_RequiresClientCertificate(t *testing.T) {
	d := newDeployment(t, "test-key-1")
	r := chi.NewRouter()
	NewHandler(kms.NewPartialService(d.stores[2], discardLogger(), nil), discardLogger()).RegisterRoutes(r)

	// Plain HTTP carries no verified peer.
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/partial", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"errorKind":"UnauthorizedError","message":"unauthorized"}`, rr.Body.String())
}

func TestHandlePartial_StrictDecoding(t *testing.T) {
	d := newDeployment(t, "test-key-1")
	client := NewClient(d.urls[2], clientTLS(t, d.ca, d.ca))

	for _, body := range []string{
		`{"keyId":"test-key-1","virtualPoint":"AQ==","requestId":"r","data":"aGVsbG8="}`,
		`{"keyId":"test-key-1","virtualPoint":"AQ==","requestId":"r","operation":"encrypt"}`,
		`not json`,
	} {
		resp, err := client.Client.Post(d.urls[2]+"/partial", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, string(respBody), interfaces.KindInvalidRequest)
	}
}

func TestEndToEnd_Failover(t *testing.T) {
	d := newDeployment(t, "test-key-1")
	proxy := d.proxy(t, clientTLS(t, d.ca, d.ca), 2)

	ciphertext, err := proxy.Encrypt(context.Background(), "test-key-1", []byte("hello from softhsm"), nil)
	require.NoError(t, err)

	require.NoError(t, proxy.Failover(3))
	plaintext, err := proxy.Decrypt(context.Background(), "test-key-1", ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello from softhsm"), plaintext)

	assert.Len(t, d.audit[2].entries(t), 1)
	assert.Len(t, d.audit[3].entries(t), 1)
}

func TestEndToEnd_ProxyRejectedByShareService(t *testing.T) {
	d := newDeployment(t, "test-key-1")
	rogue, err := cryptoutils.NewCA("rogue-ca")
	require.NoError(t, err)

	r := chi.NewRouter()
	proxyhandler.NewHandler(d.proxy(t, clientTLS(t, rogue, d.ca), 2), discardLogger()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, err = proxyhandler.NewClient(srv.URL, nil).Encrypt(context.Background(), "test-key-1", []byte("x"), nil)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
}

// One encrypt and one decrypt of the same record cost the active Share
// Service exactly one audited /partial call each, and nothing it receives
// or logs carries the data.
func TestEndToEnd_AuditScenario(t *testing.T) {
	d := newDeployment(t, "test-key-1")

	r := chi.NewRouter()
	proxyhandler.NewHandler(d.proxy(t, clientTLS(t, d.ca, d.ca), 2), discardLogger()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := proxyhandler.NewClient(srv.URL, nil)
	ctx := context.Background()

	ciphertext, err := client.Encrypt(ctx, "test-key-1", []byte("hello from softhsm"), nil)
	require.NoError(t, err)
	plaintext, err := client.Decrypt(ctx, "test-key-1", ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello from softhsm", string(plaintext))

	entries := d.audit[2].entries(t)
	require.Len(t, entries, 2)
	assert.Empty(t, d.audit[3].entries(t))

	allowed := map[string]bool{
		"time": true, "level": true, "msg": true, "component": true,
		"seq": true, "request_id": true, "key_id": true, "share_index": true, "outcome": true,
	}
	for i, entry := range entries {
		for k := range entry {
			assert.True(t, allowed[k], "unexpected audit field %q", k)
		}
		assert.Equal(t, "partial", entry["msg"])
		assert.Equal(t, "test-key-1", entry["key_id"])
		assert.Equal(t, float64(2), entry["share_index"])
		assert.Equal(t, "ok", entry["outcome"])
		assert.Equal(t, float64(i+1), entry["seq"])
	}
	assert.NotEqual(t, entries[0]["request_id"], entries[1]["request_id"])

	d.audit[2].mu.Lock()
	raw := d.audit[2].buf.String()
	d.audit[2].mu.Unlock()
	assert.NotContains(t, raw, "hello from softhsm")
	assert.NotContains(t, raw, "aGVsbG8gZnJvbSBzb2Z0aHNt")
}
