package sharestore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockShareSource implements interfaces.ShareSource for testing
type MockShareSource struct {
	mock.Mock
	name string
}

func (m *MockShareSource) Fetch(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockShareSource) Name() string {
	return m.name
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "share-1.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1}`), 0600))

	source := NewFileSource(path, discardLogger())
	data, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	missing := NewFileSource(filepath.Join(t.TempDir(), "missing.json"), discardLogger())
	_, err = missing.Fetch(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrSourceUnavailable)
}

func TestVaultSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		switch r.URL.Path {
		case "/v1/secret/data/xks/share-2":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data":     map[string]interface{}{"document": `{"version":1}`},
					"metadata": map[string]interface{}{"version": 3},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
	defer srv.Close()

	newSource := func(path, token string) *VaultSource {
		source, err := NewVaultSource(VaultConfig{
			Address:    srv.URL,
			MountPath:  "secret",
			SecretPath: path,
			Token:      token,
		}, discardLogger())
		require.NoError(t, err)
		return source
	}

	data, err := newSource("xks/share-2", "test-token").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	_, err = newSource("xks/share-9", "test-token").Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrSourceUnavailable, "a missing secret is permanent")

	_, err = newSource("xks/share-2", "wrong-token").Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrSourceUnavailable, "access denial is permanent")

	_, err = NewVaultSource(VaultConfig{Address: srv.URL, MountPath: "secret"}, discardLogger())
	assert.Error(t, err)
}

func TestS3Source(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shares/xks/share-3.json":
			_, _ = w.Write([]byte(`{"version":1}`))
		case "/shares/xks/flaky.json":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
		}
	}))
	defer srv.Close()

	newSource := func(key string) *S3Source {
		source, err := NewS3Source(S3Config{
			Bucket:    "shares",
			Key:       key,
			Endpoint:  srv.URL,
			AccessKey: "AKIDEXAMPLE",
			SecretKey: "secret",
		}, discardLogger())
		require.NoError(t, err)
		return source
	}

	data, err := newSource("xks/share-3.json").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	_, err = newSource("xks/missing.json").Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrSourceUnavailable)

	_, err = newSource("xks/flaky.json").Fetch(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrSourceUnavailable)
}

func TestMultiSource_Fetch(t *testing.T) {
	ctx := context.Background()

	first := &MockShareSource{name: "first"}
	second := &MockShareSource{name: "second"}
	first.On("Fetch", ctx).Return(nil, interfaces.ErrSourceUnavailable)
	second.On("Fetch", ctx).Return([]byte("doc"), nil)

	multi := NewMultiSource([]interfaces.ShareSource{first, second}, discardLogger())
	data, err := multi.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc", string(data))
	assert.Equal(t, "multi:[first,second]", multi.Name())
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestMultiSource_AllFail(t *testing.T) {
	ctx := context.Background()

	permanent := &MockShareSource{name: "permanent"}
	transient := &MockShareSource{name: "transient"}
	permanent.On("Fetch", ctx).Return(nil, assert.AnError)
	transient.On("Fetch", ctx).Return(nil, interfaces.ErrSourceUnavailable)

	_, err := NewMultiSource([]interfaces.ShareSource{permanent, transient}, discardLogger()).Fetch(ctx)
	assert.ErrorIs(t, err, interfaces.ErrSourceUnavailable)
	assert.ErrorIs(t, err, assert.AnError)

	_, err = NewMultiSource([]interfaces.ShareSource{permanent}, discardLogger()).Fetch(ctx)
	assert.NotErrorIs(t, err, interfaces.ErrSourceUnavailable)

	_, err = NewMultiSource(nil, discardLogger()).Fetch(ctx)
	assert.Error(t, err)
}

func TestSourceFactory(t *testing.T) {
	factory := NewSourceFactory(discardLogger())

	tests := []struct {
		uri      string
		wantType interface{}
		wantErr  bool
	}{
		{uri: "file:///etc/xks/share-1.json", wantType: &FileSource{}},
		{uri: "s3://shares/xks/share-2.json?region=eu-west-1&anonymous=true", wantType: &S3Source{}},
		{uri: "vault://127.0.0.1:8200/secret/xks/share-3?field=document", wantType: &VaultSource{}},
		{uri: "vault://127.0.0.1:8200/secret", wantErr: true},
		{uri: "s3://shares", wantErr: true},
		{uri: "ipfs://localhost:5001/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			source, err := factory.SourcesFor([]string{tt.uri})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, source)
		})
	}

	source, err := factory.SourcesFor([]string{"file:///a.json", "file:///b.json"})
	require.NoError(t, err)
	assert.IsType(t, &MultiSource{}, source)

	_, err = factory.SourcesFor(nil)
	assert.Error(t, err)
}
