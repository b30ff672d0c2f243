package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionSessionStarted    = "session.started"
	ActionSessionCompleted  = "session.completed"
	ActionSessionFailed     = "session.failed"
	ActionCheckpointCreated = "checkpoint.created"
	ActionRedirectDetected  = "redirect.detected"
	ActionHarnessPaused     = "harness.paused"
	ActionScaleUp           = "scale.up"
	ActionScaleDown         = "scale.down"
	ActionShutdown          = "harness.shutdown"
)

// Audit event categories group related actions.
const (
	CategorySession = "harness.session"
	CategoryRun     = "harness.run"
	CategoryScale   = "harness.scale"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceSession    = "session"
	ResourceCheckpoint = "checkpoint"
	ResourceHarness    = "harness_run"
	ResourcePool       = "worker_pool"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionSessionStarted,
		ActionSessionCompleted,
		ActionSessionFailed,
		ActionCheckpointCreated,
		ActionRedirectDetected,
		ActionHarnessPaused,
		ActionScaleUp,
		ActionScaleDown,
		ActionShutdown,
	}
}
