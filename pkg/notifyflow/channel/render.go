package channel

import (
	"fmt"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/template"
)

// Message is rendered notification copy.
type Message struct {
	Title string
	Body  string
}

// copyText is the title and body template for one kind.
type copyText struct {
	title string
	body  string
}

var expander = template.NewExpander(template.WithMissingAction(template.MissingEmpty))

// messages is indexed by event.Kind.
var messages = [...]copyText{
	event.KindOrderCreated:              {"New order", "Order ${order_number} was placed. Total: ${total}"},
	event.KindOrderPaymentSettled:       {"Payment received", "Payment for order ${order_number} was received. Amount: ${amount}"},
	event.KindOrderShipped:              {"Order shipped", "Order ${order_number} has shipped. Tracking: ${tracking_number}"},
	event.KindOrderDelivered:            {"Order delivered", "Order ${order_number} was delivered."},
	event.KindOrderCancelled:            {"Order cancelled", "Order ${order_number} was cancelled."},
	event.KindOrderRefunded:             {"Order refunded", "Order ${order_number} was refunded. Amount: ${amount}"},
	event.KindSubscriptionRenewed:       {"Plan renewed", "Your ${plan} plan renewed until ${period_end}."},
	event.KindSubscriptionRenewalFailed: {"Renewal failed", "We could not renew your ${plan} plan. Please update your payment method."},
	event.KindSubscriptionExpiring:      {"Plan expiring", "Your ${plan} plan expires on ${period_end}."},
	event.KindSubscriptionExpired:       {"Plan expired", "Your ${plan} plan has expired. Renew to keep your store online."},
	event.KindTenantApproved:            {"Store approved", "Your store ${tenant_name} has been approved and is now live."},
	event.KindTenantSuspended:           {"Store suspended", "Your store ${tenant_name} has been suspended. Reason: ${reason}"},
	event.KindAdminCreated:              {"Administrator added", "${admin_name} was added as an administrator."},
	event.KindAdminRemoved:              {"Administrator removed", "${admin_name} is no longer an administrator."},
	event.KindAuthPasswordReset:         {"Password reset", "Your verification code is ${code}"},
	event.KindAuthLoginAlert:            {"New sign-in", "New sign-in from ${device} at ${time}."},
	event.KindMLJobStarted:              {"Training started", "Model job ${job_id} started."},
	event.KindMLJobCompleted:            {"Training finished", "Model job ${job_id} finished."},
	event.KindMLJobFailed:               {"Training failed", "Model job ${job_id} failed: ${error}"},
}

// Compile-time check: the table covers the last kind. Gaps in the middle
// of the keyed literal are rejected by init.
var _ = [1]struct{}{}[len(messages)-event.NumKinds]

func init() {
	if gaps := missingCopy(messages[:]); len(gaps) > 0 {
		panic(fmt.Sprintf("channel: no message copy for kinds %v", gaps))
	}
}

func missingCopy(table []copyText) []int {
	var gaps []int
	for i, c := range table {
		if c.title == "" || c.body == "" {
			gaps = append(gaps, i)
		}
	}
	return gaps
}

// Render returns the notification copy for kind, filled from payload.
// Kinds outside the table get a generic message built from the taxonomy.
func Render(kind event.Kind, payload map[string]any) Message {
	if !kind.Valid() || messages[kind].body == "" {
		return fallback(kind)
	}
	c := messages[kind]
	title, _ := expander.Expand(c.title, payload)
	body, _ := expander.Expand(c.body, payload)
	return Message{Title: title, Body: body}
}

func fallback(kind event.Kind) Message {
	meta, err := event.MetadataFor(kind)
	if err != nil {
		return Message{Title: "Notification", Body: "You have a new notification."}
	}
	return Message{Title: meta.Name, Body: meta.Description + "."}
}
