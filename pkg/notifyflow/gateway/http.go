package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	nferrors "github.com/randalmurphal/notifyflow/pkg/notifyflow/errors"
)

// DefaultTimeout bounds each HTTP attempt when none is configured.
const DefaultTimeout = 10 * time.Second

// HTTPConfig configures an HTTP gateway client.
type HTTPConfig struct {
	// URL receives a JSON POST per message.
	URL string

	// Token is sent as a bearer token when non-empty.
	Token string

	// Timeout bounds each attempt. Default: DefaultTimeout.
	Timeout time.Duration

	// Retry controls retries of transient failures. Default: errors.DefaultRetry.
	Retry nferrors.RetryConfig

	// Client overrides the HTTP client.
	Client *http.Client
}

type httpClient struct {
	url     string
	token   string
	timeout time.Duration
	retry   nferrors.RetryConfig
	client  *http.Client
}

func newHTTPClient(cfg HTTPConfig) (*httpClient, error) {
	if cfg.URL == "" {
		return nil, nferrors.Configuration(errors.New("gateway url is required"), "gateway")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = nferrors.DefaultRetry
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &httpClient{
		url:     cfg.URL,
		token:   cfg.Token,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		client:  cfg.Client,
	}, nil
}

type sendResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// post sends payload and returns the provider message id, retrying
// transient failures.
func (c *httpClient) post(ctx context.Context, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	return nferrors.Retry(ctx, c.retry, func(ctx context.Context) (string, error) {
		return c.attempt(ctx, body)
	})
}

func (c *httpClient) attempt(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &nferrors.TimeoutError{Operation: "POST " + c.url, Duration: c.timeout.String()}
		}
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var decoded sendResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decoded.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &nferrors.HTTPError{StatusCode: resp.StatusCode, Message: msg, Endpoint: c.url}
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("gateway rejected message: %s", decoded.Error)
	}
	return decoded.ID, nil
}

// HTTPSMS is an SMSSender that posts {"to", "body"} to a provider URL.
type HTTPSMS struct {
	c *httpClient
}

var _ SMSSender = (*HTTPSMS)(nil)

// NewHTTPSMS creates an SMS client.
func NewHTTPSMS(cfg HTTPConfig) (*HTTPSMS, error) {
	c, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &HTTPSMS{c: c}, nil
}

// SendSMS implements SMSSender.
func (s *HTTPSMS) SendSMS(ctx context.Context, to, body string) (string, error) {
	return s.c.post(ctx, struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}{To: to, Body: body})
}

// HTTPPush is a PushSender that posts {"endpoint", "message"} to a provider URL.
type HTTPPush struct {
	c *httpClient
}

var _ PushSender = (*HTTPPush)(nil)

// NewHTTPPush creates a push client.
func NewHTTPPush(cfg HTTPConfig) (*HTTPPush, error) {
	c, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &HTTPPush{c: c}, nil
}

// SendPush implements PushSender.
func (p *HTTPPush) SendPush(ctx context.Context, endpoint string, msg PushMessage) (string, error) {
	return p.c.post(ctx, struct {
		Endpoint string      `json:"endpoint"`
		Message  PushMessage `json:"message"`
	}{Endpoint: endpoint, Message: msg})
}
