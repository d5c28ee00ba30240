// Package transition turns tenant status observations into at most one
// notification per real status change.
//
// The upstream observer may fire more than once for one change, and the
// entity snapshot it passes may be from before or after the update. The
// Detector serializes observations per tenant with a processing guard,
// reconstructs the previous status from a fresh storage read, and remembers
// recent transitions in a bounded history so repeats are dropped.
package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/dedup"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/directory"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/dispatch"
	nferrors "github.com/randalmurphal/notifyflow/pkg/notifyflow/errors"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/observability"
)

// StatusField is the input key that carries the new status.
const StatusField = "status"

// StatusApproved is the status whose arrival triggers the approval notice.
const StatusApproved = "approved"

// TenantNameField is copied from the input into the approval message payload.
const TenantNameField = "tenant_name"

// Outcome says what an observation led to.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeBusy      Outcome = "busy"
	OutcomeNoChange  Outcome = "no_change"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRecorded  Outcome = "recorded"
	OutcomeApproved  Outcome = "approved"
	OutcomeFailed    Outcome = "failed"
)

// Snapshot is the tenant entity as the observer saw it.
type Snapshot struct {
	Status string
}

// Observation is one callback from the tenant-status observer.
type Observation struct {
	TenantID string

	// Input is the update that was applied. Only observations whose input
	// sets StatusField are considered.
	Input map[string]any

	Snapshot Snapshot
}

// StatusReader reads the authoritative current status.
type StatusReader interface {
	CurrentStatus(ctx context.Context, tenantID string) (string, error)
}

// Router is the part of dispatch.Router the detector uses.
type Router interface {
	RouteEvent(ctx context.Context, evt event.DispatchEvent) dispatch.Report
}

// Config wires a Detector. Reader, Admins, and Router are required.
type Config struct {
	Reader StatusReader
	Admins directory.Admins
	Router Router

	// History remembers recent transitions. Default: dedup.NewFIFOSet(dedup.DefaultCapacity).
	History *dedup.FIFOSet

	// Guard serializes observations per tenant. Default: dedup.NewGuard().
	Guard *dedup.Guard

	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
}

// Detector is safe for concurrent use. Create one per process and share it.
type Detector struct {
	reader  StatusReader
	admins  directory.Admins
	router  Router
	history *dedup.FIFOSet
	guard   *dedup.Guard
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// NewDetector creates a detector.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.Reader == nil || cfg.Admins == nil || cfg.Router == nil {
		return nil, nferrors.Configuration(errors.New("reader, admins, and router are required"), "new detector")
	}
	if cfg.History == nil {
		cfg.History = dedup.NewFIFOSet(dedup.DefaultCapacity)
	}
	if cfg.Guard == nil {
		cfg.Guard = dedup.NewGuard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	return &Detector{
		reader:  cfg.Reader,
		admins:  cfg.Admins,
		router:  cfg.Router,
		history: cfg.History,
		guard:   cfg.Guard,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Observe handles one status observation.
func (d *Detector) Observe(ctx context.Context, obs Observation) (outcome Outcome) {
	raw, ok := obs.Input[StatusField]
	if !ok || raw == nil {
		return d.finish(ctx, obs.TenantID, "", "", OutcomeIgnored)
	}
	newStatus := fmt.Sprint(raw)

	if !d.guard.TryAcquire(obs.TenantID) {
		return d.finish(ctx, obs.TenantID, "", newStatus, OutcomeBusy)
	}
	defer d.guard.Release(obs.TenantID)

	defer func() {
		if rec := recover(); rec != nil {
			observability.LogSideEffectFailure(d.logger, "observe tenant status", &nferrors.PanicError{Value: rec})
			outcome = d.finish(ctx, obs.TenantID, "", newStatus, OutcomeFailed)
		}
	}()

	fresh, err := d.reader.CurrentStatus(ctx, obs.TenantID)
	if err != nil {
		observability.LogSideEffectFailure(d.logger, "read tenant status", err)
		return d.finish(ctx, obs.TenantID, "", newStatus, OutcomeFailed)
	}

	oldStatus, changed := previousStatus(newStatus, fresh, obs.Snapshot.Status)
	if !changed || oldStatus == newStatus {
		return d.finish(ctx, obs.TenantID, oldStatus, newStatus, OutcomeNoChange)
	}

	if !d.history.Add(historyKey(obs.TenantID, oldStatus, newStatus)) {
		return d.finish(ctx, obs.TenantID, oldStatus, newStatus, OutcomeDuplicate)
	}

	if newStatus != StatusApproved {
		return d.finish(ctx, obs.TenantID, oldStatus, newStatus, OutcomeRecorded)
	}
	if err := d.notifyApproved(ctx, obs); err != nil {
		observability.LogSideEffectFailure(d.logger, "notify tenant approval", err)
		return d.finish(ctx, obs.TenantID, oldStatus, newStatus, OutcomeFailed)
	}
	return d.finish(ctx, obs.TenantID, oldStatus, newStatus, OutcomeApproved)
}

// previousStatus reconstructs the status before the update. The snapshot
// may predate or follow the update: when the input matches storage and the
// snapshot does not, the snapshot is the old value. When all three agree
// nothing changed. Otherwise the storage read is the old value.
func previousStatus(input, fresh, snapshot string) (string, bool) {
	switch {
	case input == fresh && snapshot != fresh:
		return snapshot, true
	case input == fresh && snapshot == fresh:
		return fresh, false
	default:
		return fresh, true
	}
}

func historyKey(tenantID, from, to string) string {
	return tenantID + ":" + from + ":" + to
}

// notifyApproved sends tenant.approved to every tenant administrator.
// Platform superadmins are not included. The transition is already in the
// history when this runs, so a failed admin listing is not retried.
func (d *Detector) notifyApproved(ctx context.Context, obs Observation) error {
	admins, err := d.admins.ListAdminUserIDs(ctx, obs.TenantID, false)
	if err != nil {
		return fmt.Errorf("list administrators: %w", err)
	}
	payload := approvalPayload(obs.Input)
	for _, id := range admins {
		d.router.RouteEvent(ctx, event.DispatchEvent{
			Kind:         event.KindTenantApproved,
			TenantID:     obs.TenantID,
			Category:     event.CategorySystemNotification,
			Payload:      payload,
			TargetUserID: id,
		})
	}
	return nil
}

// approvalPayload copies only the fields the approval message renders.
// The update input may carry tenant contact details such as a phone number,
// which must not leak into delivery hints.
func approvalPayload(input map[string]any) map[string]any {
	payload := map[string]any{StatusField: StatusApproved}
	if name, ok := input[TenantNameField].(string); ok && name != "" {
		payload[TenantNameField] = name
	}
	return payload
}

func (d *Detector) finish(ctx context.Context, tenantID, from, to string, outcome Outcome) Outcome {
	d.metrics.RecordTransition(ctx, string(outcome))
	if outcome != OutcomeIgnored {
		observability.LogTransition(d.logger, tenantID, from, to, string(outcome))
	}
	return outcome
}

// HistoryLen returns the number of remembered transitions.
func (d *Detector) HistoryLen() int {
	return d.history.Len()
}
