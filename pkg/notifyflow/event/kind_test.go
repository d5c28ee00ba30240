package event_test

import (
	"encoding/json"
	"testing"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetadataTotal verifies every kind has a complete taxonomy entry.
func TestMetadataTotal(t *testing.T) {
	names := make(map[string]bool)
	for _, k := range event.Kinds() {
		meta, err := event.MetadataFor(k)
		require.NoError(t, err, "kind %d", int(k))
		assert.NotEmpty(t, meta.Name, "kind %d has no name", int(k))
		assert.NotEqual(t, event.CategoryUnknown, meta.Category, "kind %s has no category", meta.Name)
		assert.False(t, names[meta.Name], "duplicate name %s", meta.Name)
		names[meta.Name] = true
	}
}

func TestMetadataForUnknown(t *testing.T) {
	_, err := event.MetadataFor(event.Kind(-1))
	assert.ErrorIs(t, err, event.ErrUnknownKind)

	_, err = event.MetadataFor(event.Kind(10_000))
	assert.ErrorIs(t, err, event.ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		want    event.Kind
		wantErr bool
	}{
		{"order.payment_settled", event.KindOrderPaymentSettled, false},
		{"tenant.approved", event.KindTenantApproved, false},
		{"ml.job_failed", event.KindMLJobFailed, false},
		{"order.teleported", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := event.ParseKind(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, event.ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.name, got.String())
		})
	}
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(map[string]event.Kind{"kind": event.KindOrderShipped})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"order.shipped"}`, string(data))

	var decoded map[string]event.Kind
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.KindOrderShipped, decoded["kind"])
}

func TestSystemClassification(t *testing.T) {
	approved, err := event.MetadataFor(event.KindTenantApproved)
	require.NoError(t, err)
	assert.True(t, approved.IsSystem())

	settled, err := event.MetadataFor(event.KindOrderPaymentSettled)
	require.NoError(t, err)
	assert.False(t, settled.IsSystem())
	assert.True(t, settled.TenantFacing)
	assert.True(t, settled.Subscribable)
}

func TestSubscribableKinds(t *testing.T) {
	for _, k := range event.SubscribableKinds() {
		meta, err := event.MetadataFor(k)
		require.NoError(t, err)
		assert.True(t, meta.Subscribable, k.String())
	}
	assert.Contains(t, event.SubscribableKinds(), event.KindOrderPaymentSettled)
	assert.NotContains(t, event.SubscribableKinds(), event.KindTenantApproved)
}

func TestWorkerOnly(t *testing.T) {
	assert.True(t, event.IsWorkerOnly(event.KindSubscriptionExpired))
	assert.True(t, event.IsWorkerOnly(event.KindMLJobCompleted))
	assert.False(t, event.IsWorkerOnly(event.KindOrderPaymentSettled))
	assert.False(t, event.IsWorkerOnly(event.KindTenantApproved))
}

func TestDispatchEventHelpers(t *testing.T) {
	evt := event.DispatchEvent{
		Payload: map[string]any{"phone": "+15550100", "is_otp": true, "n": 3},
	}
	assert.Equal(t, "+15550100", evt.PayloadString(event.PayloadPhone))
	assert.True(t, evt.PayloadBool(event.PayloadOTP))
	assert.Equal(t, "", evt.PayloadString("n"))
	assert.False(t, evt.HasExplicitTarget())

	evt.TargetCustomerID = "c1"
	assert.True(t, evt.HasExplicitTarget())
	assert.Equal(t, "customer:c1", event.Target{CustomerID: "c1"}.Key())
	assert.Equal(t, "user:u1", event.Target{UserID: "u1", CustomerID: "c1"}.Key())
}
