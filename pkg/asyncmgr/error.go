package asyncmgr

import "fmt"

// ErrStopped is raised by Add/Delete/Update/RestoreSnapshot/Query when
// called after Stop, rather than silently queuing work a drain will never
// run.
type ErrStopped = error

// NewStoppedError builds an ErrStopped.
func NewStoppedError() ErrStopped {
	return fmt.Errorf("asyncmgr: manager is stopping, no further actions accepted")
}

// ErrPool is raised when the underlying worker pool cannot be created.
type ErrPool = error

// NewPoolError builds an ErrPool.
func NewPoolError(err error) ErrPool {
	return fmt.Errorf("asyncmgr: creating worker pool: %w", err)
}

// ErrUnknownAction is raised when drain encounters an action kind it has
// no handler for, which would only happen if a future action kind were
// added to the enum without a matching case in perform.
type ErrUnknownAction = error

// NewUnknownActionError builds an ErrUnknownAction.
func NewUnknownActionError() ErrUnknownAction {
	return fmt.Errorf("asyncmgr: unknown action kind")
}
