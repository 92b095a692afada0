package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountryRiskScoreKnownAndUnknown(t *testing.T) {
	assert.Equal(t, 100, CountryRiskScore("IR"))
	assert.Equal(t, 25, CountryRiskScore("TR"))
	assert.Equal(t, 5, CountryRiskScore("NG"))
}

func TestIsHighRiskCountryThreshold(t *testing.T) {
	assert.True(t, IsHighRiskCountry("RU"))
	assert.True(t, IsHighRiskCountry("MM"))
	assert.False(t, IsHighRiskCountry("BY"))
	assert.False(t, IsHighRiskCountry("NG"))
}
