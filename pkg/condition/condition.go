// Package condition evaluates branch conditions against user input.
package condition

import (
	"strings"

	"github.com/aretw0/flowrun/pkg/domain"
)

// Func decides the outcome of a condition node for a given input.
type Func func(c domain.Condition, input string) bool

// Evaluate compares input against c.Value after lower-casing both sides.
// Whitespace is significant. Unknown operators evaluate to false.
func Evaluate(c domain.Condition, input string) bool {
	value := strings.ToLower(c.Value)
	in := strings.ToLower(input)

	switch c.Operator {
	case domain.OperatorEquals:
		return in == value
	case domain.OperatorContains:
		return strings.Contains(in, value)
	default:
		return false
	}
}
