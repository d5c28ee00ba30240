package channel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	nferrors "github.com/randalmurphal/notifyflow/pkg/notifyflow/errors"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/notice"
)

// InAppHandler stores a notification for the dashboard.
type InAppHandler struct {
	store notice.Store
	now   func() time.Time
}

var _ Handler = (*InAppHandler)(nil)

// NewInAppHandler creates an in-app handler.
func NewInAppHandler(store notice.Store) (*InAppHandler, error) {
	if store == nil {
		return nil, nferrors.Configuration(errors.New("in-app handler needs a store"), "channel")
	}
	return &InAppHandler{store: store, now: time.Now}, nil
}

// Type implements Handler.
func (h *InAppHandler) Type() event.ActionType { return event.ActionInApp }

// CanHandle implements Handler. In-app delivery always applies.
func (h *InAppHandler) CanHandle(Delivery) bool { return true }

// Execute implements Handler.
func (h *InAppHandler) Execute(ctx context.Context, d Delivery) Result {
	return safely(func() Result {
		msg := Render(d.Event.Kind, d.Event.Payload)
		n := notice.Notification{
			ID:         uuid.NewString(),
			TenantID:   d.TenantID,
			UserID:     d.Target.UserID,
			CustomerID: d.Target.CustomerID,
			Kind:       d.Event.Kind.String(),
			Title:      msg.Title,
			Body:       msg.Body,
			Data:       d.Event.Payload,
			CreatedAt:  h.now().UTC(),
		}
		if err := h.store.Create(ctx, n); err != nil {
			return failed(nferrors.Delivery(err, "store in-app notification"))
		}
		return Result{Success: true, Metadata: map[string]any{"notification_id": n.ID}}
	})
}
