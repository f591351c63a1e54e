package proxyhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/threshold-xks/api"
	"github.com/ruteri/threshold-xks/interfaces"
)

var _ interfaces.KMS = (*Client)(nil)

// Client calls a Proxy Service. Error responses are mapped back to the
// sentinel errors of their kind.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// NewClient creates a client for the Proxy Service at baseURL.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/"), Client: client}
}

// Encrypt calls POST /encrypt.
func (c *Client) Encrypt(ctx context.Context, keyID interfaces.KeyID, plaintext, aad []byte) ([]byte, error) {
	return c.call(ctx, "/encrypt", interfaces.CryptoRequest{KeyID: keyID, Data: plaintext, AssociatedData: aad})
}

// Decrypt calls POST /decrypt.
func (c *Client) Decrypt(ctx context.Context, keyID interfaces.KeyID, ciphertext, aad []byte) ([]byte, error) {
	return c.call(ctx, "/decrypt", interfaces.CryptoRequest{KeyID: keyID, Data: ciphertext, AssociatedData: aad})
}

// Ping calls GET /ping.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping returned %d", interfaces.ErrRemoteUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) call(ctx context.Context, path string, body interfaces.CryptoRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("could not encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*api.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: could not read response: %v", interfaces.ErrRemoteUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, api.ResponseError(resp.StatusCode, respBody)
	}

	var cryptoResp interfaces.CryptoResponse
	if err := json.Unmarshal(respBody, &cryptoResp); err != nil {
		return nil, fmt.Errorf("%w: could not parse response: %v", interfaces.ErrRemoteUnavailable, err)
	}
	return cryptoResp.Data, nil
}
