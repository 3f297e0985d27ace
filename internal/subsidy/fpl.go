// Package subsidy estimates the monthly premium tax credit for a household
// against a coverage-year policy. Everything here is pure and safe to call
// from any number of goroutines.
package subsidy

import "subsidy-engine/internal/model"

// FederalPovertyLevel returns the annual poverty line for a household.
// Sizes below one are treated as a single person.
func FederalPovertyLevel(schedule model.FederalPovertyLevelSchedule, householdSize int) float64 {
	additional := householdSize - 1
	if additional < 0 {
		additional = 0
	}
	return schedule.BasePerson1 + float64(additional)*schedule.PerAdditionalPerson
}

// FederalPovertyLevelPercent expresses income as a percentage of the poverty line.
func FederalPovertyLevelPercent(schedule model.FederalPovertyLevelSchedule, income float64, householdSize int) float64 {
	return income / FederalPovertyLevel(schedule, householdSize) * 100
}

// ApplicablePercentage returns the share of income (in percent) a household is
// expected to contribute toward the benchmark premium. ok is false when the
// household is outside the credit's eligible range.
func ApplicablePercentage(policy *model.SubsidyPolicy, fplPercent float64) (percent float64, ok bool) {
	if fplPercent < model.EligibleFloorPercent {
		return 0, false
	}
	if fplPercent > model.EligibleCeilingPercent {
		if policy.AboveCap == model.AboveCapFlat {
			return policy.CapPercent, true
		}
		return 0, false
	}
	for _, band := range policy.Bands {
		if fplPercent <= band.Upper {
			return interpolate(band, fplPercent), true
		}
	}
	// Validated policies always end at the ceiling, so this is only reached
	// by a hand-built table that stops short.
	return 0, false
}

func interpolate(band model.ContributionBand, fplPercent float64) float64 {
	span := band.Upper - band.Lower
	if span <= 0 {
		return band.PercentAtLower
	}
	return band.PercentAtLower + (fplPercent-band.Lower)/span*(band.PercentAtUpper-band.PercentAtLower)
}
