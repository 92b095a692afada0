package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSLADeadlineForBasePriority(t *testing.T) {
	opened := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := SLADeadlineFor(opened, 2, "fraud_review")

	assert.Equal(t, opened.Add(24*time.Hour), deadline)
}

func TestSLADeadlineForHalvedCaseType(t *testing.T) {
	opened := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := SLADeadlineFor(opened, 3, "sanctions_investigation")

	assert.Equal(t, opened.Add(36*time.Hour), deadline)
}

func TestSLADeadlineForHalvedFloorsAtFourHours(t *testing.T) {
	opened := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := SLADeadlineFor(opened, 1, "terrorism_financing")

	assert.Equal(t, opened.Add(4*time.Hour), deadline)
}

func TestSLADeadlineForUnknownPriorityFallsBackToThree(t *testing.T) {
	opened := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := SLADeadlineFor(opened, 99, "fraud_review")

	assert.Equal(t, opened.Add(72*time.Hour), deadline)
}

func TestRiskLevelForThresholds(t *testing.T) {
	assert.Equal(t, CaseRiskCritical, RiskLevelFor(80, 1))
	assert.Equal(t, CaseRiskCritical, RiskLevelFor(10, 5))
	assert.Equal(t, CaseRiskHigh, RiskLevelFor(60, 1))
	assert.Equal(t, CaseRiskMedium, RiskLevelFor(40, 1))
	assert.Equal(t, CaseRiskLow, RiskLevelFor(10, 1))
}
