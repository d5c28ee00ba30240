package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	nferrors "github.com/randalmurphal/notifyflow/pkg/notifyflow/errors"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/directory"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/gateway"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/observability"
)

// ErrNoSubscriptions is returned when the user has no registered devices.
var ErrNoSubscriptions = errors.New("no push subscriptions")

// PushHandler sends push notifications to every device a user registered.
type PushHandler struct {
	subs   directory.PushSubscriptions
	sender gateway.PushSender
	logger *slog.Logger
}

var _ Handler = (*PushHandler)(nil)

// NewPushHandler creates a push handler.
func NewPushHandler(subs directory.PushSubscriptions, sender gateway.PushSender, logger *slog.Logger) (*PushHandler, error) {
	if subs == nil || sender == nil {
		return nil, nferrors.Configuration(errors.New("push handler needs subscriptions and a sender"), "channel")
	}
	return &PushHandler{subs: subs, sender: sender, logger: logger}, nil
}

// Type implements Handler.
func (h *PushHandler) Type() event.ActionType { return event.ActionPush }

// CanHandle implements Handler. Push needs a user account.
func (h *PushHandler) CanHandle(d Delivery) bool {
	return d.Target.UserID != ""
}

// Execute implements Handler. It succeeds if at least one device accepted
// the message.
func (h *PushHandler) Execute(ctx context.Context, d Delivery) Result {
	return safely(func() Result {
		subs, err := h.subs.ListSubscriptions(ctx, d.TenantID, d.Target.UserID)
		if err != nil {
			return failed(nferrors.Delivery(err, "list push subscriptions"))
		}
		if len(subs) == 0 {
			return failed(nferrors.Delivery(ErrNoSubscriptions, "send push"))
		}

		rendered := Render(d.Event.Kind, d.Event.Payload)
		msg := gateway.PushMessage{
			Title: rendered.Title,
			Body:  rendered.Body,
			Data:  map[string]any{"kind": d.Event.Kind.String()},
		}

		var sent int
		var lastErr error
		for _, s := range subs {
			if _, err := h.sender.SendPush(ctx, s.Endpoint, msg); err != nil {
				lastErr = err
				observability.LogHandlerFailure(h.logger, string(event.ActionPush), s.ID, err)
				continue
			}
			sent++
		}

		meta := map[string]any{"sent": sent, "failed": len(subs) - sent}
		if sent == 0 {
			return Result{
				Err:      nferrors.Delivery(fmt.Errorf("all %d subscriptions failed: %w", len(subs), lastErr), "send push"),
				Metadata: meta,
			}
		}
		return Result{Success: true, Metadata: meta}
	})
}
