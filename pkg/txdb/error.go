package txdb

import "fmt"

// ErrNoTransaction is raised when End is called with no matching Begin.
type ErrNoTransaction = error

// NewNoTransactionError builds an ErrNoTransaction.
func NewNoTransactionError() ErrNoTransaction {
	return fmt.Errorf("txdb: End called with no open transaction")
}

// ErrCommit is raised when committing a relation's log to its adapter
// fails at transaction End.
type ErrCommit = error

// NewCommitError builds an ErrCommit.
func NewCommitError(relation string, err error) ErrCommit {
	return fmt.Errorf("txdb: failed to commit relation %q: %w", relation, err)
}
