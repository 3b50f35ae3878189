package expr

import "fmt"

// ErrExpression is raised when an expression fails to evaluate.
type ErrExpression = error

// NewExpressionError builds an ErrExpression.
func NewExpressionError(e *Expression, err error) ErrExpression {
	return fmt.Errorf("failed to evaluate expression %s: %w", e.String(), err)
}

// ErrUnboundAttribute is raised when an attribute reference resolves
// against neither the object row nor, for join conditions, the subject row.
type ErrUnboundAttribute = error

// NewUnboundAttributeError builds an ErrUnboundAttribute.
func NewUnboundAttributeError(attr string) ErrUnboundAttribute {
	return fmt.Errorf("attribute %q is not bound in the evaluation context", attr)
}
