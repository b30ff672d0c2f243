package harness

import "errors"

var (
	// Configuration errors.
	ErrNoStore    = errors.New("harness: no store configured")
	ErrNoSource   = errors.New("harness: no work source configured")
	ErrNoExecutor = errors.New("harness: no session executor configured")

	// Not found errors.
	ErrStateNotFound      = errors.New("harness: state not found")
	ErrCheckpointNotFound = errors.New("harness: checkpoint not found")
	ErrWorkerNotFound     = errors.New("harness: worker not found")

	// Conflict errors.
	ErrStateAlreadyExists = errors.New("harness: state already exists")
	ErrWorkerBusy         = errors.New("harness: worker has an active assignment")

	// State errors.
	ErrInvalidTransition = errors.New("harness: invalid status transition")
	ErrNotRunning        = errors.New("harness: harness is not running")

	// Assignment errors.
	ErrNoIdleWorker = errors.New("harness: no idle worker available")
	ErrClaimFailed  = errors.New("harness: work source rejected the claim")
	ErrPriming      = errors.New("harness: cannot construct priming context")
)
