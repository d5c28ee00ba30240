package event

import (
	"errors"
	"fmt"
)

// Kind identifies the semantic type of a domain occurrence.
type Kind int

// Event kinds. Keep the order in sync with the taxonomy table below.
const (
	KindOrderCreated Kind = iota
	KindOrderPaymentSettled
	KindOrderShipped
	KindOrderDelivered
	KindOrderCancelled
	KindOrderRefunded
	KindSubscriptionRenewed
	KindSubscriptionRenewalFailed
	KindSubscriptionExpiring
	KindSubscriptionExpired
	KindTenantApproved
	KindTenantSuspended
	KindAdminCreated
	KindAdminRemoved
	KindAuthPasswordReset
	KindAuthLoginAlert
	KindMLJobStarted
	KindMLJobCompleted
	KindMLJobFailed

	kindCount
)

// NumKinds is the number of kinds. Tables indexed by Kind assert their
// length against it at compile time.
const NumKinds = int(kindCount)

// Category groups kinds for usage accounting.
type Category int

const (
	// CategoryUnknown is the zero value and never appears in the taxonomy.
	CategoryUnknown Category = iota

	// CategoryAuthentication covers login and verification traffic.
	CategoryAuthentication

	// CategoryCustomerCommunication covers messages to end customers.
	CategoryCustomerCommunication

	// CategorySystemNotification covers messages to tenant administrators.
	CategorySystemNotification
)

// String returns the category name used in counter keys and logs.
func (c Category) String() string {
	switch c {
	case CategoryAuthentication:
		return "authentication"
	case CategoryCustomerCommunication:
		return "customer_communication"
	case CategorySystemNotification:
		return "system_notification"
	default:
		return "unknown"
	}
}

// Metadata describes how the router treats a Kind.
type Metadata struct {
	// Name is the wire name (e.g., "order.payment_settled").
	Name string

	// Subscribable means users may toggle the kind in their preferences.
	Subscribable bool

	// TenantFacing means the natural recipient is an end customer.
	TenantFacing bool

	// DefaultEnabled is the preference value when none is stored.
	DefaultEnabled bool

	Category    Category
	Description string
}

// IsSystem reports whether the kind is a system event: neither
// subscribable nor tenant-facing.
func (m Metadata) IsSystem() bool {
	return !m.Subscribable && !m.TenantFacing
}

// ErrUnknownKind is returned for values outside the enumeration.
var ErrUnknownKind = errors.New("unknown event kind")

var taxonomy = [...]Metadata{
	KindOrderCreated: {
		Name: "order.created", Subscribable: true, TenantFacing: true, DefaultEnabled: true,
		Category: CategoryCustomerCommunication, Description: "A customer placed an order",
	},
	KindOrderPaymentSettled: {
		Name: "order.payment_settled", Subscribable: true, TenantFacing: true, DefaultEnabled: true,
		Category: CategoryCustomerCommunication, Description: "Payment for an order was settled",
	},
	KindOrderShipped: {
		Name: "order.shipped", Subscribable: true, TenantFacing: true, DefaultEnabled: true,
		Category: CategoryCustomerCommunication, Description: "An order left the warehouse",
	},
	KindOrderDelivered: {
		Name: "order.delivered", Subscribable: true, TenantFacing: true, DefaultEnabled: false,
		Category: CategoryCustomerCommunication, Description: "An order reached the customer",
	},
	KindOrderCancelled: {
		Name: "order.cancelled", Subscribable: true, TenantFacing: true, DefaultEnabled: true,
		Category: CategoryCustomerCommunication, Description: "An order was cancelled",
	},
	KindOrderRefunded: {
		Name: "order.refunded", Subscribable: true, TenantFacing: true, DefaultEnabled: true,
		Category: CategoryCustomerCommunication, Description: "An order was refunded",
	},
	KindSubscriptionRenewed: {
		Name: "subscription.renewed", Subscribable: true, TenantFacing: false, DefaultEnabled: true,
		Category: CategorySystemNotification, Description: "The tenant plan renewed",
	},
	KindSubscriptionRenewalFailed: {
		Name: "subscription.renewal_failed", Category: CategorySystemNotification,
		Description: "The tenant plan failed to renew",
	},
	KindSubscriptionExpiring: {
		Name: "subscription.expiring", Category: CategorySystemNotification,
		Description: "The tenant plan expires soon",
	},
	KindSubscriptionExpired: {
		Name: "subscription.expired", Category: CategorySystemNotification,
		Description: "The tenant plan expired",
	},
	KindTenantApproved: {
		Name: "tenant.approved", Category: CategorySystemNotification,
		Description: "The platform approved the tenant",
	},
	KindTenantSuspended: {
		Name: "tenant.suspended", Category: CategorySystemNotification,
		Description: "The platform suspended the tenant",
	},
	KindAdminCreated: {
		Name: "admin.created", Category: CategorySystemNotification,
		Description: "An administrator account was created",
	},
	KindAdminRemoved: {
		Name: "admin.removed", Subscribable: true, DefaultEnabled: true,
		Category: CategorySystemNotification, Description: "An administrator account was removed",
	},
	KindAuthPasswordReset: {
		Name: "auth.password_reset", Subscribable: false, TenantFacing: true, DefaultEnabled: true,
		Category: CategoryAuthentication, Description: "A password reset was requested",
	},
	KindAuthLoginAlert: {
		Name: "auth.login_alert", Subscribable: true, TenantFacing: true, DefaultEnabled: false,
		Category: CategoryAuthentication, Description: "A new device signed in",
	},
	KindMLJobStarted: {
		Name: "ml.job_started", Subscribable: true, DefaultEnabled: false,
		Category: CategorySystemNotification, Description: "A model training job started",
	},
	KindMLJobCompleted: {
		Name: "ml.job_completed", Subscribable: true, DefaultEnabled: true,
		Category: CategorySystemNotification, Description: "A model training job finished",
	},
	KindMLJobFailed: {
		Name: "ml.job_failed", Category: CategorySystemNotification,
		Description: "A model training job failed",
	},
}

// Compile-time check: the table covers the last kind. A gap in the middle
// of the keyed literal still compiles, so init rejects zero entries when the
// package loads.
var _ = [1]struct{}{}[len(taxonomy)-int(kindCount)]

func init() {
	if gaps := missingEntries(taxonomy[:]); len(gaps) > 0 {
		panic(fmt.Sprintf("event: taxonomy has no entry for kinds %v", gaps))
	}
}

// missingEntries returns the indexes of table rows without a name or category.
func missingEntries(table []Metadata) []int {
	var gaps []int
	for i, m := range table {
		if m.Name == "" || m.Category == CategoryUnknown {
			gaps = append(gaps, i)
		}
	}
	return gaps
}

// workerOnly is the background-task allow-list.
var workerOnly = map[Kind]bool{
	KindSubscriptionExpiring: true,
	KindSubscriptionExpired:  true,
	KindMLJobStarted:         true,
	KindMLJobCompleted:       true,
	KindMLJobFailed:          true,
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, len(taxonomy))
	for i, meta := range taxonomy {
		m[meta.Name] = Kind(i)
	}
	return m
}()

// Valid reports whether k is a member of the enumeration.
func (k Kind) Valid() bool {
	return k >= 0 && k < kindCount
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return taxonomy[k].Name
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(taxonomy[k].Name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind returns the kind with the given wire name.
func ParseKind(name string) (Kind, error) {
	k, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// MetadataFor returns the taxonomy entry for a kind.
func MetadataFor(k Kind) (Metadata, error) {
	if !k.Valid() {
		return Metadata{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return taxonomy[k], nil
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// SubscribableKinds returns the kinds users may toggle.
func SubscribableKinds() []Kind {
	var kinds []Kind
	for k := Kind(0); k < kindCount; k++ {
		if taxonomy[k].Subscribable {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// IsWorkerOnly reports whether the kind may only run in a worker process.
func IsWorkerOnly(k Kind) bool {
	return workerOnly[k]
}
