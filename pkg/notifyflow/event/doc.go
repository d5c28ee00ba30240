// Package event defines the closed event taxonomy for notifyflow.
//
// # Overview
//
// Every domain occurrence that may produce a notification is identified by a
// Kind. Kinds form a closed enumeration fixed at build time; each one has
// exactly one Metadata entry describing how the router treats it:
//
//   - Subscribable: users may opt in or out through preferences
//   - TenantFacing: the natural recipient is an end customer
//   - DefaultEnabled: the preference value used when a user has none stored
//   - Category: Authentication, CustomerCommunication, or SystemNotification
//
// The metadata table is an array indexed by Kind. Its length is checked
// against the number of kinds at compile time, so adding a Kind without a
// table entry fails the build:
//
//	meta, err := event.MetadataFor(event.KindOrderPaymentSettled)
//	if err != nil {
//	    // only possible for values outside the enumeration
//	}
//
// # Dispatch Events
//
// Producers hand the router a DispatchEvent:
//
//	evt := event.DispatchEvent{
//	    Kind:         event.KindOrderPaymentSettled,
//	    TenantID:     "tenant-1",
//	    Category:     event.CategoryCustomerCommunication,
//	    Payload:      map[string]any{"order_number": "A-1001"},
//	    TargetUserID: "user-42",
//	}
//
// A system event is neither subscribable nor tenant-facing. System events
// skip tenant opt-in configuration and preference checks and, without an
// explicit target, go to every administrator of the tenant.
//
// # Worker-Only Kinds
//
// Subscription expiry and ML job lifecycle kinds run only in a process that
// was explicitly declared a worker. IsWorkerOnly reports membership in that
// allow-list.
package event
