package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeriveSystemFields(t *testing.T) {
	tx := &Transaction{
		Money:              NGN(decimal.NewFromInt(6_000_000)),
		BeneficiaryCountry: "GB",
		HomeCountry:        "NG",
	}
	tx.DeriveSystemFields()

	assert.True(t, tx.AboveCTRThreshold)
	assert.True(t, tx.CrossBorder)
	assert.NotNil(t, tx.RiskFlags)
}

func TestDeriveSystemFieldsBelowThresholdSameCountry(t *testing.T) {
	tx := &Transaction{
		Money:              NGN(decimal.NewFromInt(1_000)),
		BeneficiaryCountry: "NG",
		HomeCountry:        "NG",
	}
	tx.DeriveSystemFields()

	assert.False(t, tx.AboveCTRThreshold)
	assert.False(t, tx.CrossBorder)
}

func TestApplyRiskScoreSuspiciousThreshold(t *testing.T) {
	tx := &Transaction{}

	tx.ApplyRiskScore(decimal.NewFromInt(59))
	assert.False(t, tx.IsSuspicious)

	tx.ApplyRiskScore(decimal.NewFromInt(60))
	assert.True(t, tx.IsSuspicious)
}

func TestClampScore(t *testing.T) {
	assert.True(t, ClampScore(decimal.NewFromInt(-10)).Equal(decimal.Zero))
	assert.True(t, ClampScore(decimal.NewFromInt(150)).Equal(decimal.NewFromInt(100)))
	assert.True(t, ClampScore(decimal.NewFromInt(55)).Equal(decimal.NewFromInt(55)))
}
