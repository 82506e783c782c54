package condition_test

import (
	"testing"

	"github.com/aretw0/flowrun/pkg/condition"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		cond  domain.Condition
		input string
		want  bool
	}{
		{"equals ignores case", domain.Condition{Operator: domain.OperatorEquals, Value: "YES"}, "yes", true},
		{"equals mismatch", domain.Condition{Operator: domain.OperatorEquals, Value: "yes"}, "no", false},
		{"equals keeps whitespace", domain.Condition{Operator: domain.OperatorEquals, Value: "yes"}, " yes ", false},
		{"contains substring", domain.Condition{Operator: domain.OperatorContains, Value: "billing"}, "I have a billing question", true},
		{"contains ignores case", domain.Condition{Operator: domain.OperatorContains, Value: "Refund"}, "I'd like a REFUND please", true},
		{"contains missing", domain.Condition{Operator: domain.OperatorContains, Value: "refund"}, "hello", false},
		{"contains empty value", domain.Condition{Operator: domain.OperatorContains, Value: ""}, "anything", true},
		{"unknown operator", domain.Condition{Operator: "regex", Value: ".*"}, "anything", false},
		{"empty operator", domain.Condition{Value: "x"}, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, condition.Evaluate(tt.cond, tt.input))
		})
	}
}

func TestEvaluate_SatisfiesFunc(t *testing.T) {
	var fn condition.Func = condition.Evaluate
	assert.True(t, fn(domain.Condition{Operator: domain.OperatorEquals, Value: "a"}, "A"))
}
