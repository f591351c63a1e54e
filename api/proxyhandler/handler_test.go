package proxyhandler

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/kms"
	"github.com/ruteri/threshold-xks/sharestore"
	"github.com/ruteri/threshold-xks/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKMS implements interfaces.KMS for testing
type MockKMS struct {
	mock.Mock
}

func (m *MockKMS) Encrypt(ctx context.Context, keyID interfaces.KeyID, plaintext, aad []byte) ([]byte, error) {
	args := m.Called(ctx, keyID, plaintext, aad)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMS) Decrypt(ctx context.Context, keyID interfaces.KeyID, ciphertext, aad []byte) ([]byte, error) {
	args := m.Called(ctx, keyID, ciphertext, aad)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newThresholdKMS wires a proxy holding share 1 to in-process services for
// shares 2 and 3.
func newThresholdKMS(t *testing.T) *kms.ThresholdKMS {
	t.Helper()
	set, err := threshold.Deal(rand.Reader, []interfaces.KeyID{"test-key-1"})
	require.NoError(t, err)

	stores := map[interfaces.ShareIndex]*sharestore.Store{}
	for i, shares := range set {
		stores[i], err = sharestore.New(i, shares)
		require.NoError(t, err)
	}

	k, err := kms.NewThresholdKMS(stores[1], map[interfaces.ShareIndex]interfaces.PartialProvider{
		2: kms.NewPartialService(stores[2], discardLogger(), nil),
		3: kms.NewPartialService(stores[3], discardLogger(), nil),
	}, 2, kms.WithLogger(discardLogger()))
	require.NoError(t, err)
	return k
}

func newRouter(k interfaces.KMS) *chi.Mux {
	r := chi.NewRouter()
	NewHandler(k, discardLogger()).RegisterRoutes(r)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleEncryptDecrypt(t *testing.T) {
	router := newRouter(newThresholdKMS(t))

	plaintext := []byte("hello from softhsm")
	reqBody, err := json.Marshal(interfaces.CryptoRequest{KeyID: "test-key-1", Data: plaintext})
	require.NoError(t, err)

	rr := post(t, router, "/encrypt", string(reqBody))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var encrypted interfaces.CryptoResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &encrypted))
	assert.NotContains(t, string(encrypted.Data), "hello")

	reqBody, err = json.Marshal(interfaces.CryptoRequest{KeyID: "test-key-1", Data: encrypted.Data})
	require.NoError(t, err)
	rr = post(t, router, "/decrypt", string(reqBody))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var decrypted interfaces.CryptoResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decrypted))
	assert.Equal(t, plaintext, decrypted.Data)

	// A tampered ciphertext fails with an opaque message.
	encrypted.Data[len(encrypted.Data)-1] ^= 0xff
	reqBody, err = json.Marshal(interfaces.CryptoRequest{KeyID: "test-key-1", Data: encrypted.Data})
	require.NoError(t, err)
	rr = post(t, router, "/decrypt", string(reqBody))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"errorKind":"AuthenticationTagError","message":"decryption failed"}`, rr.Body.String())
}

func TestHandleEncrypt_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"unknown key", fmt.Errorf("%w: k", interfaces.ErrUnknownKey), http.StatusNotFound, interfaces.KindUnknownKey},
		{"remote unavailable", interfaces.ErrRemoteUnavailable, http.StatusServiceUnavailable, interfaces.KindRemoteUnavailable},
		{"deadline", interfaces.ErrDeadlineExceeded, http.StatusGatewayTimeout, interfaces.KindDeadlineExceeded},
		{"unauthorized", interfaces.ErrUnauthorized, http.StatusBadGateway, interfaces.KindUnauthorized},
		{"combination", fmt.Errorf("%w: %w", interfaces.ErrCombination, interfaces.ErrInsufficientShares), http.StatusInternalServerError, interfaces.KindCombination},
		{"internal", assert.AnError, http.StatusInternalServerError, interfaces.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKMS := new(MockKMS)
			mockKMS.On("Encrypt", mock.Anything, interfaces.KeyID("k"), []byte("x"), []byte(nil)).Return(nil, tt.err)

			rr := post(t, newRouter(mockKMS), "/encrypt", `{"keyId":"k","data":"eA=="}`)
			assert.Equal(t, tt.wantStatus, rr.Code)

			var errResp interfaces.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
			assert.Equal(t, tt.wantKind, errResp.ErrorKind)
			assert.NotContains(t, errResp.Message, assert.AnError.Error())
			mockKMS.AssertExpectations(t)
		})
	}
}

func TestHandleEncrypt_MalformedRequests(t *testing.T) {
	mockKMS := new(MockKMS)
	router := newRouter(mockKMS)

	bodies := []string{
		``,
		`not json`,
		`{"keyId":"k","data":"not base64!"}`,
		`{"keyId":"k","data":"eA==","plaintext":"leak"}`,
		`{"keyId":"k","data":"eA=="} {"keyId":"k"}`,
		`{"keyId":"k","data":"` + strings.Repeat("A", 2<<20) + `"}`,
	}
	for _, body := range bodies {
		rr := post(t, router, "/encrypt", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), interfaces.KindInvalidRequest)
	}
	mockKMS.AssertNotCalled(t, "Encrypt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePing(t *testing.T) {
	mockKMS := new(MockKMS)
	router := newRouter(mockKMS)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(method, "/ping", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	mockKMS.AssertNotCalled(t, "Encrypt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(newRouter(newThresholdKMS(t)))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	ciphertext, err := client.Encrypt(ctx, "test-key-1", []byte("hello from softhsm"), []byte("aad"))
	require.NoError(t, err)

	plaintext, err := client.Decrypt(ctx, "test-key-1", ciphertext, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello from softhsm"), plaintext)

	_, err = client.Decrypt(ctx, "test-key-1", ciphertext, []byte("other"))
	assert.ErrorIs(t, err, interfaces.ErrAuthenticationTag)

	_, err = client.Encrypt(ctx, "missing-key", []byte("x"), nil)
	assert.ErrorIs(t, err, interfaces.ErrUnknownKey)

	_, err = NewClient("http://127.0.0.1:1", nil).Encrypt(ctx, "test-key-1", []byte("x"), nil)
	assert.ErrorIs(t, err, interfaces.ErrRemoteUnavailable)
}

func TestClient_LargePayload(t *testing.T) {
	srv := httptest.NewServer(newRouter(newThresholdKMS(t)))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	plaintext := bytes.Repeat([]byte{0x42}, 512*1024)

	ciphertext, err := client.Encrypt(context.Background(), "test-key-1", plaintext, nil)
	require.NoError(t, err)
	decrypted, err := client.Decrypt(context.Background(), "test-key-1", ciphertext, nil)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(plaintext, decrypted))
}
