package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	nferrors "github.com/randalmurphal/notifyflow/pkg/notifyflow/errors"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/gateway"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/observability"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/target"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/tenant"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/usage"
)

// ErrLimitReached is returned when the tenant used up its SMS allowance for
// the kind.
var ErrLimitReached = errors.New("usage limit reached")

// SMSConfig wires an SMSHandler.
type SMSConfig struct {
	Resolver *target.Resolver
	Sender   gateway.SMSSender
	Tenants  tenant.Store
	Ledger   *usage.Ledger
	Logger   *slog.Logger
}

// SMSHandler sends text messages.
type SMSHandler struct {
	resolver *target.Resolver
	sender   gateway.SMSSender
	tenants  tenant.Store
	ledger   *usage.Ledger
	logger   *slog.Logger
}

var _ Handler = (*SMSHandler)(nil)

// NewSMSHandler creates an SMS handler. Tenants and Ledger are optional;
// without them no limits are checked and no usage is tracked.
func NewSMSHandler(cfg SMSConfig) (*SMSHandler, error) {
	if cfg.Resolver == nil || cfg.Sender == nil {
		return nil, nferrors.Configuration(errors.New("sms handler needs a resolver and a sender"), "channel")
	}
	return &SMSHandler{
		resolver: cfg.Resolver,
		sender:   cfg.Sender,
		tenants:  cfg.Tenants,
		ledger:   cfg.Ledger,
		logger:   cfg.Logger,
	}, nil
}

// Type implements Handler.
func (h *SMSHandler) Type() event.ActionType { return event.ActionSMS }

// CanHandle implements Handler.
func (h *SMSHandler) CanHandle(d Delivery) bool {
	return target.CanPotentiallyResolve(candidate(d))
}

// candidate builds the resolution hints for one delivery. A payload phone
// literal is honoured only when the producer named the recipient; on a
// broadcast it would redirect every target to the same number.
func candidate(d Delivery) target.Candidate {
	c := target.Candidate{
		UserID:     d.Target.UserID,
		CustomerID: d.Target.CustomerID,
	}
	if d.Event.HasExplicitTarget() {
		c.Phone = d.Event.PayloadString(event.PayloadPhone)
	}
	return c
}

// Execute implements Handler.
func (h *SMSHandler) Execute(ctx context.Context, d Delivery) Result {
	return safely(func() Result {
		phone, err := h.resolver.Resolve(ctx, d.TenantID, candidate(d))
		if err != nil {
			return failed(nferrors.Delivery(err, "resolve phone"))
		}

		if reached, err := h.limitReached(ctx, d); err != nil {
			return failed(nferrors.Delivery(err, "check sms limit"))
		} else if reached {
			return failed(nferrors.Delivery(fmt.Errorf("%w for %s", ErrLimitReached, d.Event.Kind), "check sms limit"))
		}

		msg := Render(d.Event.Kind, d.Event.Payload)
		id, err := h.sender.SendSMS(ctx, phone, msg.Body)
		if err != nil {
			return failed(nferrors.Delivery(err, "send sms"))
		}

		h.track(ctx, d)
		return Result{
			Success:  true,
			Metadata: map[string]any{"message_id": id, "to": phone},
		}
	})
}

// limitReached checks the tenant's per-kind SMS limit, when one is configured.
func (h *SMSHandler) limitReached(ctx context.Context, d Delivery) (bool, error) {
	if h.tenants == nil || h.ledger == nil {
		return false, nil
	}
	cfg, err := h.tenants.Get(ctx, d.TenantID)
	if err != nil {
		return false, err
	}
	key := usage.KindKey(d.Event.Kind)
	return h.ledger.CheckLimit(ctx, d.TenantID, key, usage.LimitFor(cfg, key))
}

// track records the send. Failures are logged only.
func (h *SMSHandler) track(ctx context.Context, d Delivery) {
	if h.ledger == nil {
		return
	}
	category := d.Event.Category
	if category == event.CategoryUnknown {
		if meta, err := event.MetadataFor(d.Event.Kind); err == nil {
			category = meta.Category
		}
	}
	meta := usage.Meta{OTP: d.Event.PayloadBool(event.PayloadOTP)}
	if err := h.ledger.Track(ctx, d.TenantID, d.Event.Kind, category, meta); err != nil {
		observability.LogSideEffectFailure(h.logger, "track usage", err)
	}
}
