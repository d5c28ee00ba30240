package event

// ActionType selects a delivery channel.
type ActionType string

// Delivery channels.
const (
	ActionSMS   ActionType = "sms"
	ActionPush  ActionType = "push"
	ActionInApp ActionType = "in_app"
)

// Payload keys the core reads. Producers may add any other keys; they are
// available to message templates.
const (
	PayloadPhone = "phone"
	PayloadOTP   = "is_otp"
)

// Actor identifies who caused an event. Used for audit records only.
type Actor struct {
	UserID     string
	Superadmin bool
}

// DispatchEvent is one routing request from a producer.
// It is consumed once per RouteEvent call and never persisted.
type DispatchEvent struct {
	Kind     Kind
	TenantID string
	Category Category
	Payload  map[string]any

	// TargetUserID, when set, is the only recipient.
	TargetUserID string

	// TargetCustomerID names a customer recipient without a user account.
	TargetCustomerID string

	Actor Actor
}

// HasExplicitTarget reports whether the producer named a recipient.
func (e DispatchEvent) HasExplicitTarget() bool {
	return e.TargetUserID != "" || e.TargetCustomerID != ""
}

// PayloadString returns a string payload value, or "" when absent or not a string.
func (e DispatchEvent) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadBool returns a bool payload value, or false when absent or not a bool.
func (e DispatchEvent) PayloadBool(key string) bool {
	if v, ok := e.Payload[key].(bool); ok {
		return v
	}
	return false
}

// Target is a resolved recipient. Computed per dispatch, never stored.
type Target struct {
	UserID     string
	CustomerID string
}

// Key returns a stable identifier for logs.
func (t Target) Key() string {
	if t.UserID != "" {
		return "user:" + t.UserID
	}
	return "customer:" + t.CustomerID
}
