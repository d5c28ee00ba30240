package gateway

import (
	"context"
	"fmt"
	"sync"
)

// SentSMS is one message captured by Recorder.
type SentSMS struct {
	To   string
	Body string
}

// SentPush is one push notification captured by Recorder.
type SentPush struct {
	Endpoint string
	Message  PushMessage
}

// Recorder captures messages instead of sending them.
// Set FailSMS or FailPush to make sends return that error.
type Recorder struct {
	mu       sync.Mutex
	sms      []SentSMS
	push     []SentPush
	FailSMS  error
	FailPush func(endpoint string) error
}

var (
	_ SMSSender  = (*Recorder)(nil)
	_ PushSender = (*Recorder)(nil)
)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SendSMS implements SMSSender.
func (r *Recorder) SendSMS(_ context.Context, to, body string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSMS != nil {
		return "", r.FailSMS
	}
	r.sms = append(r.sms, SentSMS{To: to, Body: body})
	return fmt.Sprintf("sms-%d", len(r.sms)), nil
}

// SendPush implements PushSender.
func (r *Recorder) SendPush(_ context.Context, endpoint string, msg PushMessage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailPush != nil {
		if err := r.FailPush(endpoint); err != nil {
			return "", err
		}
	}
	r.push = append(r.push, SentPush{Endpoint: endpoint, Message: msg})
	return fmt.Sprintf("push-%d", len(r.push)), nil
}

// SMS returns the captured text messages.
func (r *Recorder) SMS() []SentSMS {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentSMS(nil), r.sms...)
}

// Push returns the captured push notifications.
func (r *Recorder) Push() []SentPush {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentPush(nil), r.push...)
}
