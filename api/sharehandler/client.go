package sharehandler

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/threshold-xks/api"
	"github.com/ruteri/threshold-xks/cryptoutils"
	"github.com/ruteri/threshold-xks/interfaces"
)

var _ interfaces.PartialProvider = (*Client)(nil)

// maxResponseSize bounds a /partial response, which only carries one point.
const maxResponseSize = 4096

// Client calls a remote Share Service over mutually authenticated TLS.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// NewClient creates a client for the Share Service at baseURL presenting the
// given TLS configuration. The per-request deadline is taken from the context.
func NewClient(baseURL string, tlsConfig *tls.Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	transport.ForceAttemptHTTP2 = true

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Transport: transport},
	}
}

// ComputePartial calls POST /partial.
func (c *Client) ComputePartial(ctx context.Context, req interfaces.PartialRequest) (interfaces.PartialResponse, error) {
	var partialResp interfaces.PartialResponse

	payload, err := json.Marshal(req)
	if err != nil {
		return partialResp, fmt.Errorf("could not encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/partial", bytes.NewReader(payload))
	if err != nil {
		return partialResp, fmt.Errorf("could not initialize request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return partialResp, transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return partialResp, transportError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		return partialResp, api.ResponseError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, &partialResp); err != nil {
		return partialResp, fmt.Errorf("%w: could not parse response: %v", interfaces.ErrRemoteUnavailable, err)
	}
	return partialResp, nil
}

func transportError(ctx context.Context, err error) error {
	switch {
	case cryptoutils.IsUnauthorizedTLSError(err):
		return fmt.Errorf("%w: %v", interfaces.ErrUnauthorized, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", interfaces.ErrDeadlineExceeded, err)
	}
	return fmt.Errorf("%w: %v", interfaces.ErrRemoteUnavailable, err)
}
