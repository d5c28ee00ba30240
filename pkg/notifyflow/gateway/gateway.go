// Package gateway sends SMS and push messages to external providers.
//
// The HTTP clients speak a small JSON protocol and retry transient failures
// (HTTP 429, 5xx, timeouts) with errors.Retry. Recorder is an
// in-memory sender for tests and local runs.
package gateway

import (
	"context"
)

// SMSSender delivers a text message. It returns the provider's message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// PushMessage is the content of one push notification.
type PushMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// PushSender delivers a push notification to one device endpoint.
type PushSender interface {
	SendPush(ctx context.Context, endpoint string, msg PushMessage) (string, error)
}
