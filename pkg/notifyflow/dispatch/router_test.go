package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/audit"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/channel"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/config"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/directory"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/dispatch"
	nferrors "github.com/randalmurphal/notifyflow/pkg/notifyflow/errors"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/gateway"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/notice"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/preference"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/reminder"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/target"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/tenant"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHandler records executions for one action type.
type countingHandler struct {
	typ     event.ActionType
	applies bool
	fail    bool
	panics  bool

	mu      sync.Mutex
	targets []event.Target
}

func (h *countingHandler) Type() event.ActionType { return h.typ }

func (h *countingHandler) CanHandle(channel.Delivery) bool { return h.applies }

func (h *countingHandler) Execute(_ context.Context, d channel.Delivery) channel.Result {
	h.mu.Lock()
	h.targets = append(h.targets, d.Target)
	h.mu.Unlock()
	if h.panics {
		panic("handler exploded")
	}
	if h.fail {
		return channel.Result{Err: errors.New("provider down")}
	}
	return channel.Result{Success: true}
}

func (h *countingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.targets)
}

type harness struct {
	dir     *directory.Memory
	tenants *tenant.MemoryStore
	prefs   *preference.MemoryStore
	audit   *audit.MemorySink
	sms     *countingHandler
	inApp   *countingHandler
	push    *countingHandler
	cfg     dispatch.Config
}

func worker() config.Settings {
	s := config.Defaults()
	s.ProcessRole = config.RoleWorker
	return s
}

func server() config.Settings {
	s := config.Defaults()
	s.ProcessRole = config.RoleServer
	return s
}

func newHarness(t *testing.T, role dispatch.ProcessRole) *harness {
	t.Helper()
	h := &harness{
		dir:     directory.NewMemory(),
		tenants: tenant.NewMemoryStore(),
		prefs:   preference.NewMemoryStore(),
		audit:   audit.NewMemorySink(),
		sms:     &countingHandler{typ: event.ActionSMS, applies: true},
		inApp:   &countingHandler{typ: event.ActionInApp, applies: true},
		push:    &countingHandler{typ: event.ActionPush, applies: true},
	}
	reg, err := channel.NewRegistry(h.sms, h.inApp, h.push)
	require.NoError(t, err)

	h.cfg = dispatch.Config{
		Role:        role,
		Tenants:     h.tenants,
		Preferences: h.prefs,
		Admins:      h.dir,
		Handlers:    reg,
		Audit:       h.audit,
	}
	return h
}

func (h *harness) router(t *testing.T) *dispatch.Router {
	t.Helper()
	r, err := dispatch.NewRouter(h.cfg)
	require.NoError(t, err)
	t.Cleanup(r.Wait)
	return r
}

func (h *harness) enable(t *testing.T, kind event.Kind, actions ...event.ActionType) {
	t.Helper()
	settings := tenant.EventSettings{Enabled: true}
	for _, a := range actions {
		settings.Actions = append(settings.Actions, tenant.Action{Type: a, Enabled: true})
	}
	_, err := h.tenants.Update(context.Background(), "t1", tenant.Patch{
		Events: map[event.Kind]tenant.EventSettings{kind: settings},
	})
	require.NoError(t, err)
}

func (h *harness) totalCalls() int {
	return h.sms.calls() + h.inApp.calls() + h.push.calls()
}

func TestNewRouter_RequiresDeclaredRole(t *testing.T) {
	h := newHarness(t, config.Settings{})
	_, err := dispatch.NewRouter(h.cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrRoleUndeclared)
	assert.True(t, nferrors.IsConfiguration(err))

	h.cfg.Role = nil
	_, err = dispatch.NewRouter(h.cfg)
	assert.True(t, nferrors.IsConfiguration(err))

	h = newHarness(t, server())
	h.cfg.Handlers = nil
	_, err = dispatch.NewRouter(h.cfg)
	assert.True(t, nferrors.IsConfiguration(err))
}

func TestRouteEvent_ExplicitUserTarget(t *testing.T) {
	h := newHarness(t, server())
	h.enable(t, event.KindOrderShipped, event.ActionSMS, event.ActionInApp)
	r := h.router(t)

	report := r.RouteEvent(context.Background(), event.DispatchEvent{
		Kind: event.KindOrderShipped, TenantID: "t1", TargetUserID: "u-customer",
	})

	assert.Equal(t, dispatch.OutcomeDispatched, report.Outcome)
	assert.Equal(t, 1, report.Targets)
	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, []event.Target{{UserID: "u-customer"}}, h.sms.targets)
	assert.Zero(t, h.push.calls(), "push not configured")
}

func TestRouteEvent_ExplicitCustomerTarget(t *testing.T) {
	h := newHarness(t, server())
	h.enable(t, event.KindOrderShipped, event.ActionSMS)
	r := h.router(t)

	report := r.RouteEvent(context.Background(), event.DispatchEvent{
		Kind: event.KindOrderShipped, TenantID: "t1", TargetCustomerID: "c1",
	})

	assert.Equal(t, dispatch.OutcomeDispatched, report.Outcome)
	assert.Equal(t, []event.Target{{CustomerID: "c1"}}, h.sms.targets)
}

func TestRouteEvent_TenantFacingWithoutTargetAborts(t *testing.T) {
	h := newHarness(t, server())
	h.dir.AddAdmin("t1", "admin-1")
	h.enable(t, event.KindOrderPaymentSettled, event.ActionSMS, event.ActionInApp)
	r := h.router(t)

	report := r.RouteEvent(context.Background(), event.DispatchEvent{
		Kind: event.KindOrderPaymentSettled, TenantID: "t1",
	})

	assert.Equal(t, dispatch.OutcomeMissingTarget, report.Outcome)
	assert.Zero(t, h.totalCalls())
}

func TestRouteEvent_SystemEventWithoutAdmins(t *testing.T) {
	h := newHarness(t, server())
	r := h.router(t)

	report := r.RouteEvent(context.Background(), event.DispatchEvent{
		Kind: event.KindTenantSuspended, TenantID: "t1",
	})

	assert.Equal(t, dispatch.OutcomeNoTargets, report.Outcome)
	assert.Zero(t, h.totalCalls())
}

func TestRouteEvent_SystemEventBroadcastsToAdmins(t *testing.T) {
	h := newHarness(t, server())
	h.dir.AddUser(directory.User{ID: "root", Superadmin: true})
	h.dir.AddAdmin("t1", "admin-1")
	h.dir.AddAdmin("t1", "admin-2")
	r := h.router(t)

	report := r.RouteEvent(context.Background(), event.DispatchEvent{
		Kind: event.KindTenantSuspended, TenantID: "t1",
	})

	assert.Equal(t, dispatch.OutcomeDispatched, report.Outcome)
	assert.Equal(t, 3, report.Targets, "superadmins included")
	assert.Equal(t, 3, h.inApp.calls())
	assert.Equal(t, 3, h.sms.calls())
	assert.Zero(t, h.push.calls(), "system default is in-app and sms")
}

func TestRouteEvent_SubscribableNeedsTenantOptIn(t *testing.T) {
	h := newHarness(t, server())
	r := h.router(t)

	report := r.RouteEvent(context.Background(), event.DispatchEvent{
		Kind: event.KindOrderShipped, TenantID: "t1", TargetUserID: "u1",
	})
	assert.Equal(t, dispatch.OutcomeNotConfigured, report.Outcome)

	_, err := h.tenants.Update(context.Background(), "t1", tenant.Patch{
		Events: map[event.Kind]tenant.EventSettings{
			event.KindOrderShipped: {Enabled: false, Actions: []tenant.Action{{Type: event.ActionSMS, Enabled: true}}},
		},
	})
	require.NoError(t, err)
	report = r.RouteEvent(context.Background(), event.DispatchEvent{
		Kind: event.KindOrderShipped, TenantID: "t1", TargetUserID: "u1",
	})
	assert.Equal(t, dispatch.OutcomeNotConfigured, report.Outcome)
	assert.Zero(t, h.totalCalls())
}

func TestRouteEvent_Preferences(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit opt-out", func(t *testing.T) {
		h := newHarness(t, server())
		h.enable(t, event.KindOrderShipped, event.ActionSMS, event.ActionInApp)
		require.NoError(t, h.prefs.SetPreference(ctx, "t1", "u1", event.KindOrderShipped, false))

		report := h.router(t).RouteEvent(ctx, event.DispatchEvent{Kind: event.KindOrderShipped, TenantID: "t1", TargetUserID: "u1"})
		assert.Equal(t, 2, report.Skipped)
		assert.Zero(t, h.totalCalls())
	})

	t.Run("default disabled kind", func(t *testing.T) {
		h := newHarness(t, server())
		h.enable(t, event.KindOrderDelivered, event.ActionInApp)

		h.router(t).RouteEvent(ctx, event.DispatchEvent{Kind: event.KindOrderDelivered, TenantID: "t1", TargetUserID: "u1"})
		assert.Zero(t, h.totalCalls())
	})

	t.Run("customer targets skip preference lookup", func(t *testing.T) {
		h := newHarness(t, server())
		h.enable(t, event.KindOrderDelivered, event.ActionInApp)

		h.router(t).RouteEvent(ctx, event.DispatchEvent{Kind: event.KindOrderDelivered, TenantID: "t1", TargetCustomerID: "c1"})
		assert.Equal(t, 1, h.inApp.calls())
	})

	t.Run("system events ignore preferences", func(t *testing.T) {
		h := newHarness(t, server())
		h.dir.AddAdmin("t1", "admin-1")
		h.cfg.Preferences = failingPrefs{}

		h.router(t).RouteEvent(ctx, event.DispatchEvent{Kind: event.KindTenantSuspended, TenantID: "t1"})
		assert.Equal(t, 1, h.inApp.calls())
	})
}

type failingPrefs struct{}

func (failingPrefs) GetPreferences(context.Context, string, string) (preference.Preferences, error) {
	panic("preferences must not be read for system events")
}

func (failingPrefs) SetPreference(context.Context, string, string, event.Kind, bool) error {
	return nil
}

func TestRouteEvent_WorkerOnlyKindsSkippedOnServer(t *testing.T) {
	h := newHarness(t, server())
	h.dir.AddAdmin("t1", "admin-1")
	r := h.router(t)

	for _, kind := range []event.Kind{event.KindMLJobFailed, event.KindSubscriptionExpiring} {
		report := r.RouteEvent(context.Background(), event.DispatchEvent{Kind: kind, TenantID: "t1"})
		assert.Equal(t, dispatch.OutcomeSkippedWorkerOnly, report.Outcome)
	}
	r.Wait()

	assert.Zero(t, h.totalCalls())
	assert.Zero(t, h.audit.Len(), "no audit effects")
}

func TestRouteEvent_WorkerOnlyKindsRunOnWorker(t *testing.T) {
	h := newHarness(t, worker())
	h.dir.AddAdmin("t1", "admin-1")
	r := h.router(t)
	assert.True(t, r.IsWorker())

	report := r.RouteEvent(context.Background(), event.DispatchEvent{Kind: event.KindMLJobFailed, TenantID: "t1"})
	assert.Equal(t, dispatch.OutcomeDispatched, report.Outcome)
	assert.Equal(t, 1, h.inApp.calls())
}

func TestRouteEvent_ReminderCooldown(t *testing.T) {
	h := newHarness(t, worker())
	h.dir.AddAdmin("t1", "admin-1")
	h.cfg.Reminders = reminder.NewMemoryTracker(time.Hour)
	r := h.router(t)
	evt := event.DispatchEvent{Kind: event.KindSubscriptionExpired, TenantID: "t1"}

	first := r.RouteEvent(context.Background(), evt)
	assert.Equal(t, dispatch.OutcomeDispatched, first.Outcome)
	r.Wait()

	second := r.RouteEvent(context.Background(), evt)
	assert.Equal(t, dispatch.OutcomeCooldown, second.Outcome)
	assert.Equal(t, 1, h.inApp.calls())

	other := r.RouteEvent(context.Background(), event.DispatchEvent{Kind: event.KindSubscriptionExpired, TenantID: "t2"})
	assert.Equal(t, dispatch.OutcomeNoTargets, other.Outcome, "cooldown is per tenant")
}

func TestRouteEvent_FailuresAreIsolated(t *testing.T) {
	h := newHarness(t, server())
	h.dir.AddAdmin("t1", "admin-1")
	h.dir.AddAdmin("t1", "admin-2")
	h.sms.fail = true
	h.cfg.Audit = failingSink{}

	var logs bytes.Buffer
	h.cfg.Logger = slog.New(slog.NewJSONHandler(&logs, nil))
	r := h.router(t)

	report := r.RouteEvent(context.Background(), event.DispatchEvent{Kind: event.KindTenantSuspended, TenantID: "t1"})
	r.Wait()

	assert.Equal(t, dispatch.OutcomeDispatched, report.Outcome)
	assert.Equal(t, 2, report.Delivered, "in-app still delivered")
	assert.Equal(t, 2, report.Failed)
	assert.Contains(t, logs.String(), "delivery failed")
	assert.Contains(t, logs.String(), "side effect failed")
}

type failingSink struct{}

func (failingSink) Record(context.Context, audit.Entry) error {
	return errors.New("audit store unavailable")
}

func TestRouteEvent_HandlerPanicIsContained(t *testing.T) {
	h := newHarness(t, server())
	h.dir.AddAdmin("t1", "admin-1")
	h.inApp.panics = true
	r := h.router(t)

	var report dispatch.Report
	require.NotPanics(t, func() {
		report = r.RouteEvent(context.Background(), event.DispatchEvent{Kind: event.KindTenantSuspended, TenantID: "t1"})
	})
	assert.Equal(t, dispatch.OutcomeDispatched, report.Outcome)
	assert.Equal(t, 1, report.Failed)
}

func TestRouteEvent_InapplicableAndUnregistered(t *testing.T) {
	h := newHarness(t, server())
	h.push.applies = false
	reg, err := channel.NewRegistry(h.inApp, h.push)
	require.NoError(t, err)
	h.cfg.Handlers = reg
	h.enable(t, event.KindOrderShipped, event.ActionSMS, event.ActionPush, event.ActionInApp)

	report := h.router(t).RouteEvent(context.Background(), event.DispatchEvent{
		Kind: event.KindOrderShipped, TenantID: "t1", TargetUserID: "u1",
	})

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, h.push.calls())
}

func TestRouteEvent_UnknownKind(t *testing.T) {
	h := newHarness(t, server())
	r := h.router(t)

	report := r.RouteEvent(context.Background(), event.DispatchEvent{Kind: event.Kind(400), TenantID: "t1", TargetUserID: "u1"})
	assert.Equal(t, dispatch.OutcomeConfigurationError, report.Outcome)
	assert.Zero(t, h.totalCalls())
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	channels []string
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, _ string, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) RecordDelivery(_ context.Context, ch string, _ bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

func (m *recordingMetrics) RecordTransition(context.Context, string) {}

func TestRouteEvent_RecordsMetrics(t *testing.T) {
	h := newHarness(t, server())
	metrics := &recordingMetrics{}
	h.cfg.Metrics = metrics
	h.enable(t, event.KindOrderShipped, event.ActionInApp)
	r := h.router(t)

	r.RouteEvent(context.Background(), event.DispatchEvent{Kind: event.KindOrderShipped, TenantID: "t1", TargetUserID: "u1"})
	r.RouteEvent(context.Background(), event.DispatchEvent{Kind: event.KindOrderShipped, TenantID: "t1"})

	assert.Equal(t, []string{"dispatched", "missing_target"}, metrics.outcomes)
	assert.Equal(t, []string{"in_app"}, metrics.channels)
}

func TestRouteEvent_BoundedFanOut(t *testing.T) {
	h := newHarness(t, server())
	for i := 0; i < 20; i++ {
		h.dir.AddAdmin("t1", "admin-"+string(rune('a'+i)))
	}
	gate := &concurrencyProbe{typ: event.ActionInApp}
	reg, err := channel.NewRegistry(gate)
	require.NoError(t, err)
	h.cfg.Handlers = reg
	h.cfg.Concurrency = 3

	report := h.router(t).RouteEvent(context.Background(), event.DispatchEvent{Kind: event.KindTenantSuspended, TenantID: "t1"})

	assert.Equal(t, 20, report.Delivered)
	assert.LessOrEqual(t, gate.peak.Load(), int32(3))
}

type concurrencyProbe struct {
	typ     event.ActionType
	running atomic.Int32
	peak    atomic.Int32
}

func (p *concurrencyProbe) Type() event.ActionType { return p.typ }
func (p *concurrencyProbe) CanHandle(channel.Delivery) bool { return true }
func (p *concurrencyProbe) Execute(context.Context, channel.Delivery) channel.Result {
	n := p.running.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	p.running.Add(-1)
	return channel.Result{Success: true}
}

// TestRouteEvent_EndToEnd wires the real handlers: a customer with no
// stored preference gets one SMS and one in-app notification, and one audit
// record is written.
func TestRouteEvent_EndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemory()
	dir.AddUser(directory.User{ID: "u-customer", LoginID: "+16502530000"})
	tenants := tenant.NewMemoryStore()
	_, err := tenants.Update(ctx, "t1", tenant.Patch{
		Events: map[event.Kind]tenant.EventSettings{
			event.KindOrderPaymentSettled: {
				Enabled: true,
				Actions: []tenant.Action{
					{Type: event.ActionSMS, Enabled: true},
					{Type: event.ActionInApp, Enabled: true},
				},
			},
		},
	})
	require.NoError(t, err)

	gw := gateway.NewRecorder()
	notices := notice.NewMemoryStore()
	sink := audit.NewMemorySink()

	sms, err := channel.NewSMSHandler(channel.SMSConfig{
		Resolver: target.NewResolver(dir, dir, "US"),
		Sender:   gw,
		Tenants:  tenants,
		Ledger:   usage.NewLedger(tenants),
	})
	require.NoError(t, err)
	inApp, err := channel.NewInAppHandler(notices)
	require.NoError(t, err)
	push, err := channel.NewPushHandler(dir, gw, nil)
	require.NoError(t, err)
	reg, err := channel.NewRegistry(sms, inApp, push)
	require.NoError(t, err)

	r, err := dispatch.NewRouter(dispatch.Config{
		Role:        server(),
		Tenants:     tenants,
		Preferences: preference.NewMemoryStore(),
		Admins:      dir,
		Handlers:    reg,
		Audit:       sink,
	})
	require.NoError(t, err)

	report := r.RouteEvent(ctx, event.DispatchEvent{
		Kind:         event.KindOrderPaymentSettled,
		TenantID:     "t1",
		Category:     event.CategoryCustomerCommunication,
		Payload:      map[string]any{"order_number": "A-1001", "amount": "$25.00"},
		TargetUserID: "u-customer",
		Actor:        event.Actor{UserID: "u-staff"},
	})
	r.Wait()

	assert.Equal(t, 2, report.Delivered)
	assert.Zero(t, report.Failed)
	require.Len(t, gw.SMS(), 1)
	assert.Equal(t, "+16502530000", gw.SMS()[0].To)
	assert.Len(t, notices.All(), 1)

	entries, err := sink.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dispatch.AuditEventName, entries[0].EventName)
	assert.Equal(t, "u-staff", entries[0].ActorUserID)
}
