package production

import (
	"math"
	"time"

	"streetlab/internal/catalog"
	"streetlab/internal/lab"
)

const (
	minSuccessRate = 50
	maxSuccessRate = 99
)

// Duration is baseTime × level × location × complexity × quantity.
func Duration(baseTime time.Duration, l *lab.DrugLab, drug *catalog.Drug, quantity int) time.Duration {
	levelMultiplier := math.Max(0.5, 1-0.1*float64(l.Level))
	locationMultiplier := math.Max(0.7, 1-float64(l.ProductionModifier)/100)
	complexityMultiplier := 1 + 0.1*float64(drug.RiskLevel)

	d := float64(baseTime) * levelMultiplier * locationMultiplier * complexityMultiplier * float64(quantity)
	return time.Duration(math.Round(d))
}

// SuccessRate is 90 − 2×risk + 3×security − labRisk, clamped to [50, 99].
func SuccessRate(l *lab.DrugLab, drug *catalog.Drug) int {
	rate := 90 - 2*drug.RiskLevel + 3*l.SecurityLevel - l.RiskModifier
	if rate < minSuccessRate {
		return minSuccessRate
	}
	if rate > maxSuccessRate {
		return maxSuccessRate
	}
	return rate
}
