// Package gateway holds the outbound HTTP edges of the server: request_uri
// dereferencing and CIBA client notification delivery.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// RequestObjectFetcher dereferences a client's request_uri over HTTPS. The
// response size is capped so a hostile endpoint cannot feed an unbounded
// body into the JOSE decoder.
type RequestObjectFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

func NewRequestObjectFetcher(client *http.Client, maxBytes int64, logger *zap.Logger) *RequestObjectFetcher {
	return &RequestObjectFetcher{client: client, maxBytes: maxBytes, logger: logger}
}

func (f *RequestObjectFetcher) Fetch(ctx context.Context, requestURI string) (string, error) {
	parsed, err := url.Parse(requestURI)
	if err != nil || parsed.Scheme != "https" {
		return "", fmt.Errorf("request_uri must be an https URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURI, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("Failed to fetch request object", zap.Error(err))
		return "", fmt.Errorf("failed to fetch request_uri: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request_uri returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read request object: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", fmt.Errorf("request object exceeds %d bytes", f.maxBytes)
	}
	return strings.TrimSpace(string(body)), nil
}
