// Package dispatch routes domain events to the recipients and channels that
// should hear about them.
//
// RouteEvent never fails from the caller's point of view. Policy violations
// are logged as warnings, delivery failures as errors, and bookkeeping
// failures (audit, reminder cooldowns) as warnings from background tasks that
// the dispatch path never waits for.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/audit"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/channel"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/directory"
	nferrors "github.com/randalmurphal/notifyflow/pkg/notifyflow/errors"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/observability"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/preference"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/reminder"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/tenant"
	"golang.org/x/sync/errgroup"
)

// AuditEventName is the audit event written before every dispatch.
const AuditEventName = "notification.dispatch_attempted"

// DefaultConcurrency bounds per-target fan-out when none is configured.
const DefaultConcurrency = 8

// ProcessRole reports whether this process was declared a worker.
// config.Settings implements it.
type ProcessRole interface {
	IsWorkerProcess() (bool, error)
}

// Config wires a Router. Role, Tenants, Admins, and Handlers are required.
type Config struct {
	Role        ProcessRole
	Tenants     tenant.Store
	Preferences preference.Store
	Admins      directory.Admins
	Handlers    *channel.Registry

	// Audit receives one entry per dispatch. Optional.
	Audit audit.Sink

	// Reminders enforces the subscription-expired cooldown. Optional.
	Reminders reminder.Tracker

	// Concurrency bounds per-target fan-out. Default: DefaultConcurrency.
	Concurrency int

	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
	Spans   observability.SpanManager
}

// Router decides who is notified about an event and over which channels.
// It holds no per-dispatch state and is safe for concurrent use.
type Router struct {
	isWorker    bool
	tenants     tenant.Store
	prefs       preference.Store
	admins      directory.Admins
	handlers    *channel.Registry
	audit       audit.Sink
	reminders   reminder.Tracker
	concurrency int
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager

	pending sync.WaitGroup
}

// NewRouter creates a router. It fails when the process role has not been
// declared.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Role == nil {
		return nil, nferrors.Configuration(errors.New("process role is required"), "new router")
	}
	isWorker, err := cfg.Role.IsWorkerProcess()
	if err != nil {
		return nil, nferrors.Configuration(err, "new router")
	}
	if cfg.Tenants == nil || cfg.Admins == nil || cfg.Handlers == nil {
		return nil, nferrors.Configuration(errors.New("tenants, admins, and handlers are required"), "new router")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Spans == nil {
		cfg.Spans = observability.NoopSpanManager{}
	}

	return &Router{
		isWorker:    isWorker,
		tenants:     cfg.Tenants,
		prefs:       cfg.Preferences,
		admins:      cfg.Admins,
		handlers:    cfg.Handlers,
		audit:       cfg.Audit,
		reminders:   cfg.Reminders,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		spans:       cfg.Spans,
	}, nil
}

// systemSettings is the fixed configuration for system events, which need
// no tenant setup.
var systemSettings = tenant.EventSettings{
	Enabled: true,
	Actions: []tenant.Action{
		{Type: event.ActionInApp, Enabled: true},
		{Type: event.ActionSMS, Enabled: true},
	},
}

// RouteEvent delivers evt to every eligible recipient. It never panics and
// never returns an error; the Report describes what happened.
func (r *Router) RouteEvent(ctx context.Context, evt event.DispatchEvent) (report Report) {
	start := time.Now()
	logger := observability.EnrichLogger(r.logger, evt.TenantID, evt.Kind.String())
	ctx, span := r.spans.StartRouteSpan(ctx, evt.TenantID, evt.Kind.String())

	defer func() {
		if rec := recover(); rec != nil {
			err := &nferrors.PanicError{Value: rec}
			if logger != nil {
				logger.Error("dispatch panicked", slog.String("error", err.Error()))
			}
			report.Outcome = OutcomePanic
			r.spans.EndSpanWithError(span, err)
		} else {
			r.spans.EndSpanWithError(span, nil)
		}
		r.metrics.RecordDispatch(ctx, evt.Kind.String(), string(report.Outcome), time.Since(start))
	}()

	return r.route(ctx, logger, evt)
}

func (r *Router) route(ctx context.Context, logger *slog.Logger, evt event.DispatchEvent) Report {
	// 1. Worker-only kinds are skipped outside workers.
	if event.IsWorkerOnly(evt.Kind) && !r.isWorker {
		observability.LogDispatchSkipped(logger, "worker-only kind outside worker process")
		return Report{Outcome: OutcomeSkippedWorkerOnly}
	}

	// 2. Audit pre-log.
	r.recordAudit(ctx, logger, evt)

	// 3. Subscription-expired reminders cool down per tenant.
	if evt.Kind == event.KindSubscriptionExpired && r.reminders != nil {
		sent, err := r.reminders.SentRecently(ctx, evt.TenantID)
		if err != nil {
			observability.LogSideEffectFailure(logger, "check reminder cooldown", err)
		} else if sent {
			observability.LogDispatchSkipped(logger, "reminder cooldown active")
			return Report{Outcome: OutcomeCooldown}
		}
	}

	// 4. Metadata.
	meta, err := event.MetadataFor(evt.Kind)
	if err != nil {
		observability.LogConfigurationError(logger, nferrors.Configuration(err, "metadata lookup"))
		return Report{Outcome: OutcomeConfigurationError}
	}

	// 5. Effective configuration.
	settings, ok, err := r.effectiveSettings(ctx, evt, meta)
	if err != nil {
		observability.LogSideEffectFailure(logger, "load tenant config", err)
		return Report{Outcome: OutcomeNotConfigured}
	}
	if !ok {
		observability.LogDispatchSkipped(logger, "kind not enabled for tenant")
		return Report{Outcome: OutcomeNotConfigured}
	}

	// 6 and 7. Targets.
	targets, outcome := r.resolveTargets(ctx, logger, evt, meta)
	if outcome != "" {
		return Report{Outcome: outcome}
	}
	r.spans.AddSpanEvent(ctx, "targets_resolved")

	// 8. Fan-out.
	report := r.fanOut(ctx, logger, evt, meta, settings, targets)

	// 9. Reminder marking, after fan-out.
	if evt.Kind == event.KindSubscriptionExpired && r.reminders != nil {
		r.background(ctx, logger, "mark reminder sent", func(ctx context.Context) error {
			return r.reminders.MarkSent(ctx, evt.TenantID)
		})
	}
	return report
}

func (r *Router) recordAudit(ctx context.Context, logger *slog.Logger, evt event.DispatchEvent) {
	if r.audit == nil {
		return
	}
	entry := audit.Entry{
		TenantID:    evt.TenantID,
		EventName:   AuditEventName,
		EntityType:  "event_kind",
		EntityID:    evt.Kind.String(),
		ActorUserID: evt.Actor.UserID,
		Data: map[string]any{
			"kind":               evt.Kind.String(),
			"superadmin":         evt.Actor.Superadmin,
			"target_user_id":     evt.TargetUserID,
			"target_customer_id": evt.TargetCustomerID,
		},
	}
	r.background(ctx, logger, "record audit", func(ctx context.Context) error {
		return r.audit.Record(ctx, entry)
	})
}

// effectiveSettings returns the channel configuration for evt. ok is false
// when the tenant has not opted in.
func (r *Router) effectiveSettings(ctx context.Context, evt event.DispatchEvent, meta event.Metadata) (tenant.EventSettings, bool, error) {
	if meta.IsSystem() {
		return systemSettings, true, nil
	}
	cfg, err := r.tenants.Get(ctx, evt.TenantID)
	if err != nil {
		return tenant.EventSettings{}, false, err
	}
	settings, ok := cfg.EventConfig(evt.Kind)
	if !ok || !settings.Enabled {
		return tenant.EventSettings{}, false, nil
	}
	return settings, true, nil
}

// resolveTargets returns the recipients, or a non-empty outcome when the
// dispatch must stop.
func (r *Router) resolveTargets(ctx context.Context, logger *slog.Logger, evt event.DispatchEvent, meta event.Metadata) ([]event.Target, Outcome) {
	switch {
	case evt.TargetUserID != "":
		return []event.Target{{UserID: evt.TargetUserID}}, ""
	case evt.TargetCustomerID != "":
		return []event.Target{{CustomerID: evt.TargetCustomerID}}, ""
	case meta.Subscribable && meta.TenantFacing:
		observability.LogRoutingViolation(logger, "tenant-facing event has no explicit target")
		return nil, OutcomeMissingTarget
	}

	ids, err := r.admins.ListAdminUserIDs(ctx, evt.TenantID, true)
	if err != nil {
		observability.LogSideEffectFailure(logger, "list administrators", err)
	}
	if len(ids) == 0 {
		observability.LogRoutingViolation(logger, "no recipients resolved")
		return nil, OutcomeNoTargets
	}
	targets := make([]event.Target, len(ids))
	for i, id := range ids {
		targets[i] = event.Target{UserID: id}
	}
	return targets, ""
}

type counters struct {
	attempted atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

func (r *Router) fanOut(
	ctx context.Context,
	logger *slog.Logger,
	evt event.DispatchEvent,
	meta event.Metadata,
	settings tenant.EventSettings,
	targets []event.Target,
) Report {
	done := observability.TimedOperation()
	var c counters

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, tgt := range targets {
		g.Go(func() error {
			r.deliverTo(ctx, logger, evt, meta, settings, tgt, &c)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Outcome:   OutcomeDispatched,
		Targets:   len(targets),
		Attempted: int(c.attempted.Load()),
		Delivered: int(c.delivered.Load()),
		Failed:    int(c.failed.Load()),
		Skipped:   int(c.skipped.Load()),
	}
	observability.LogDispatchComplete(logger, report.Targets, report.Delivered, report.Failed, done())
	return report
}

func (r *Router) deliverTo(
	ctx context.Context,
	logger *slog.Logger,
	evt event.DispatchEvent,
	meta event.Metadata,
	settings tenant.EventSettings,
	tgt event.Target,
	c *counters,
) {
	defer func() {
		if rec := recover(); rec != nil {
			c.failed.Add(1)
			observability.LogHandlerFailure(logger, "", tgt.Key(), &nferrors.PanicError{Value: rec})
		}
	}()

	if meta.Subscribable && tgt.UserID != "" && !r.wantsKind(ctx, logger, evt, tgt) {
		c.skipped.Add(int64(len(settings.Actions)))
		return
	}

	for _, action := range settings.Actions {
		if !action.Enabled {
			c.skipped.Add(1)
			continue
		}
		h, ok := r.handlers.Lookup(action.Type)
		if !ok {
			observability.LogConfigurationError(logger, fmt.Errorf("no handler for action %q", action.Type))
			c.skipped.Add(1)
			continue
		}
		d := channel.Delivery{TenantID: evt.TenantID, Event: evt, Target: tgt, Action: action.Type}
		if !h.CanHandle(d) {
			c.skipped.Add(1)
			continue
		}

		c.attempted.Add(1)
		r.execute(ctx, logger, h, d, c)
	}
}

// wantsKind reports the user's effective preference. A failed lookup falls
// back to the taxonomy default.
func (r *Router) wantsKind(ctx context.Context, logger *slog.Logger, evt event.DispatchEvent, tgt event.Target) bool {
	var prefs preference.Preferences
	if r.prefs != nil {
		var err error
		prefs, err = r.prefs.GetPreferences(ctx, evt.TenantID, tgt.UserID)
		if err != nil {
			observability.LogSideEffectFailure(logger, "load preferences", err)
		}
	}
	return prefs.Enabled(evt.Kind)
}

func (r *Router) execute(ctx context.Context, logger *slog.Logger, h channel.Handler, d channel.Delivery, c *counters) {
	channelName := string(d.Action)
	start := time.Now()
	ctx, span := r.spans.StartDeliverySpan(ctx, channelName, d.Target.Key())

	res := h.Execute(ctx, d)

	elapsed := time.Since(start)
	r.metrics.RecordDelivery(ctx, channelName, res.Success, elapsed)
	if res.Success {
		c.delivered.Add(1)
		r.spans.EndSpanWithError(span, nil)
		observability.LogHandlerSuccess(logger, channelName, d.Target.Key(), float64(elapsed.Microseconds())/1000)
		return
	}

	c.failed.Add(1)
	err := res.Err
	if err == nil {
		err = errors.New("handler reported failure")
	}
	r.spans.EndSpanWithError(span, err)
	observability.LogHandlerFailure(logger, channelName, d.Target.Key(), err)
}

// background runs a best-effort side effect on its own goroutine. Failures
// and panics are logged. The task outlives the caller's cancellation.
func (r *Router) background(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer func() {
			if rec := recover(); rec != nil {
				observability.LogSideEffectFailure(logger, op, &nferrors.PanicError{Value: rec})
			}
		}()
		if err := fn(ctx); err != nil {
			observability.LogSideEffectFailure(logger, op, nferrors.SideEffect(err, op))
		}
	}()
}

// Wait blocks until every background side effect started so far has
// finished. Call it on shutdown.
func (r *Router) Wait() {
	r.pending.Wait()
}

// IsWorker reports the declared process role.
func (r *Router) IsWorker() bool {
	return r.isWorker
}
