package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/papercomputeco/mcpbridge/pkg/config"
)

// Transport performs one outbound HTTP POST. Implementations must not retry.
type Transport interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (status int, respBody []byte, err error)
}

// NewTransport returns the transport selected by the provider configuration,
// bounded by its timeout.
func NewTransport(cfg config.ProviderConfig) (Transport, error) {
	switch cfg.Transport {
	case "", config.TransportHTTP:
		return NewHTTPTransport(cfg.Timeout), nil
	case config.TransportFastHTTP:
		return NewFastHTTPTransport(cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// HTTPTransport posts with net/http.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// FastHTTPTransport posts with fasthttp. The context only contributes its
// deadline; fasthttp requests cannot be cancelled otherwise.
type FastHTTPTransport struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func NewFastHTTPTransport(timeout time.Duration) *FastHTTPTransport {
	return &FastHTTPTransport{
		client: &fasthttp.Client{
			Name:                     "mcpbridge",
			NoDefaultUserAgentHeader: true,
		},
		timeout: timeout,
	}
}

func (t *FastHTTPTransport) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}

	// resp is returned to the pool, so the body must be copied
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}
