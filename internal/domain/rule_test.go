package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleThresholdsFallBackToDefaults(t *testing.T) {
	empty := RuleThresholds{}
	assert.Equal(t, float64(DefaultAmountThreshold), empty.AmountOrDefault())
	assert.Equal(t, float64(DefaultCashThreshold), empty.CashAmountOrDefault())

	overridden := RuleThresholds{ThresholdAmount: 2_000_000, ThresholdCashAmount: 750_000}
	assert.Equal(t, 2_000_000.0, overridden.AmountOrDefault())
	assert.Equal(t, 750_000.0, overridden.CashAmountOrDefault())
}

func TestConditionEnabled(t *testing.T) {
	r := &Rule{Conditions: map[Predicate]bool{PredicateAmountThreshold: true, PredicateVelocityCheck: false}}

	assert.True(t, r.ConditionEnabled(PredicateAmountThreshold))
	assert.False(t, r.ConditionEnabled(PredicateVelocityCheck))
	assert.False(t, r.ConditionEnabled(PredicateStructuringDetect))

	var nilConditions Rule
	assert.False(t, nilConditions.ConditionEnabled(PredicateAmountThreshold))
}
