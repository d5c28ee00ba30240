// Package channel delivers one notification to one recipient over one
// channel: SMS, push, or in-app.
//
// Handlers never panic and never return errors to the router. Every failure
// is reported in Result so the router can log it and move on to the next
// delivery.
package channel

import (
	"context"
	"fmt"

	nferrors "github.com/randalmurphal/notifyflow/pkg/notifyflow/errors"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
)

// Delivery is one unit of work: an event, a recipient, and a channel.
type Delivery struct {
	TenantID string
	Event    event.DispatchEvent
	Target   event.Target
	Action   event.ActionType
}

// Result reports how a delivery went.
type Result struct {
	Success  bool
	Err      error
	Metadata map[string]any
}

// Handler delivers over one channel.
type Handler interface {
	// Type returns the action type this handler serves.
	Type() event.ActionType

	// CanHandle reports whether the delivery has enough information to try.
	CanHandle(d Delivery) bool

	// Execute attempts the delivery.
	Execute(ctx context.Context, d Delivery) Result
}

func failed(err error) Result {
	return Result{Err: err}
}

// safely runs fn and converts a panic into a failed Result.
func safely(fn func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(nferrors.Delivery(&nferrors.PanicError{Value: r}, "handler panicked"))
		}
	}()
	return fn()
}

// Registry maps action types to handlers. It is built once at startup and
// read-only afterwards.
type Registry struct {
	handlers map[event.ActionType]Handler
}

// NewRegistry creates a registry. Two handlers for the same action type is
// a configuration error.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[event.ActionType]Handler, len(handlers))}
	for _, h := range handlers {
		if _, dup := r.handlers[h.Type()]; dup {
			return nil, nferrors.Configuration(fmt.Errorf("duplicate handler for %q", h.Type()), "channel registry")
		}
		r.handlers[h.Type()] = h
	}
	return r, nil
}

// Lookup returns the handler for t.
func (r *Registry) Lookup(t event.ActionType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered action types.
func (r *Registry) Types() []event.ActionType {
	out := make([]event.ActionType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}
