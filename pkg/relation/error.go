package relation

import (
	"fmt"

	"github.com/l7mp/reldb/pkg/value"
)

// ErrRename is raised when a rename map is not a bijection over its
// input scheme.
type ErrRename = error

// NewRenameError builds an ErrRename.
func NewRenameError(attr value.Attribute, reason string) ErrRename {
	return fmt.Errorf("invalid rename of %q: %s", string(attr), reason)
}

// ErrEvaluation is raised when a relation fails to evaluate, wrapping the
// underlying cause (a storage error, a predicate evaluation error, etc).
type ErrEvaluation = error

// NewEvaluationError builds an ErrEvaluation.
func NewEvaluationError(kind Kind, err error) ErrEvaluation {
	return fmt.Errorf("failed to evaluate %s relation: %w", kind, err)
}
