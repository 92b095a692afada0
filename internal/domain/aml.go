package domain

// CountryRiskScores is a broader geographic risk-scoring table than the
// four-country sanctioned set used directly by the cross_border predicate
// (§4.4). No rule predicate and no Rule Registry operation reads it.
// Adapted from the
// retrieved service's domain model, which scored countries 0-100 rather
// than treating risk as a boolean.
var CountryRiskScores = map[string]int{
	"IR": 100,
	"KP": 100,
	"SY": 100,
	"AF": 90,
	"CU": 85,
	"RU": 70,
	"MM": 55,
	"BY": 45,
	"VE": 40,
	"TR": 25,
	"AE": 25,
	"HK": 20,
	"PK": 30,
}

// CountryRiskScore returns the configured risk score for isoCode, or a
// default low-risk score of 5 if the country is not separately scored.
func CountryRiskScore(isoCode string) int {
	if score, ok := CountryRiskScores[isoCode]; ok {
		return score
	}
	return 5
}

// IsHighRiskCountry reports whether a country's score is 50 or more. No
// rule predicate calls it.
func IsHighRiskCountry(isoCode string) bool {
	return CountryRiskScore(isoCode) >= 50
}
