package subsidy

import (
	"math"

	"github.com/shopspring/decimal"

	"subsidy-engine/internal/model"
)

const monthsPerYear = 12

// Estimate computes the monthly subsidy for a household given the monthly
// benchmark premium. Intermediate values stay unrounded; only the returned
// amounts are rounded to whole currency units.
func Estimate(policy *model.SubsidyPolicy, income float64, householdSize int, benchmarkMonthlyPremium float64) model.SubsidyResult {
	fplPercent := FederalPovertyLevelPercent(policy.FPL, income, householdSize)

	applicable, ok := ApplicablePercentage(policy, fplPercent)
	if !ok {
		// Below the floor another program covers the household; above the
		// ceiling the full benchmark is owed.
		var contribution int64
		if fplPercent >= model.EligibleFloorPercent {
			contribution = roundCurrency(benchmarkMonthlyPremium)
		}
		return model.SubsidyResult{
			Subsidy:             0,
			FPLPercent:          roundCurrency(fplPercent),
			Eligible:            false,
			MonthlyContribution: nonNegative(contribution),
		}
	}

	contribution := roundCurrency(income * applicable / 100 / monthsPerYear)
	subsidy := roundCurrency(math.Max(0, benchmarkMonthlyPremium-float64(contribution)))

	return model.SubsidyResult{
		Subsidy:             subsidy,
		FPLPercent:          roundCurrency(fplPercent),
		Eligible:            true,
		MonthlyContribution: nonNegative(contribution),
	}
}

// roundCurrency rounds half away from zero to a whole unit.
func roundCurrency(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(0).IntPart()
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
