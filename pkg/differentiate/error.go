package differentiate

import (
	"fmt"

	"github.com/l7mp/reldb/pkg/relation"
)

// ErrApply is raised when computing a node's derivative fails, typically
// because evaluating a select or update predicate against a delta row
// failed the same way it would have during a full Eval.
type ErrApply = error

// NewApplyError builds an ErrApply.
func NewApplyError(kind relation.Kind, err error) ErrApply {
	return fmt.Errorf("differentiate: %s: %w", kind, err)
}

// ErrUnknownKind is raised when a Relation node carries a Kind the
// differentiator has no derivative rule for.
type ErrUnknownKind = error

// NewUnknownKindError builds an ErrUnknownKind.
func NewUnknownKindError(kind relation.Kind) ErrUnknownKind {
	return fmt.Errorf("differentiate: no derivative rule for relation kind %s", kind)
}
