package dispatch

// Outcome says how a RouteEvent call ended.
type Outcome string

const (
	// OutcomeDispatched means fan-out ran. Individual deliveries may still
	// have failed; see Report.Failed.
	OutcomeDispatched Outcome = "dispatched"

	// OutcomeSkippedWorkerOnly means the kind may only run in a worker.
	OutcomeSkippedWorkerOnly Outcome = "skipped_worker_only"

	// OutcomeCooldown means a subscription-expired reminder was sent recently.
	OutcomeCooldown Outcome = "cooldown"

	// OutcomeConfigurationError means the kind has no metadata.
	OutcomeConfigurationError Outcome = "configuration_error"

	// OutcomeNotConfigured means the tenant has not enabled the kind.
	OutcomeNotConfigured Outcome = "not_configured"

	// OutcomeMissingTarget means a tenant-facing event named no recipient.
	OutcomeMissingTarget Outcome = "missing_target"

	// OutcomeNoTargets means target resolution produced nobody.
	OutcomeNoTargets Outcome = "no_targets"

	// OutcomePanic means an unexpected panic was recovered.
	OutcomePanic Outcome = "panic"
)

// Report summarizes one RouteEvent call.
type Report struct {
	Outcome Outcome

	// Targets is the number of resolved recipients.
	Targets int

	// Attempted counts handler executions.
	Attempted int
	Delivered int
	Failed    int

	// Skipped counts actions not attempted: disabled by config or
	// preference, no handler, or not applicable.
	Skipped int
}
