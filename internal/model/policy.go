package model

// Eligible FPL range covered by a contribution band table.
const (
	EligibleFloorPercent   = 100.0
	EligibleCeilingPercent = 400.0
)

// AboveCapRule selects what happens to households above EligibleCeilingPercent.
type AboveCapRule string

const (
	// AboveCapIneligible ends the credit at the ceiling.
	AboveCapIneligible AboveCapRule = "ineligible"
	// AboveCapFlat keeps the credit and holds the contribution at CapPercent of income.
	AboveCapFlat AboveCapRule = "cap"
)

type FederalPovertyLevelSchedule struct {
	BasePerson1         float64 `json:"base_person_1" yaml:"base_person_1" validate:"gt=0"`
	PerAdditionalPerson float64 `json:"per_additional_person" yaml:"per_additional_person" validate:"gt=0"`
}

// ContributionBand maps [Lower, Upper] FPL% onto a contribution percentage
// interpolated linearly between PercentAtLower and PercentAtUpper.
type ContributionBand struct {
	Lower          float64 `json:"lower" yaml:"lower" validate:"gte=0"`
	Upper          float64 `json:"upper" yaml:"upper" validate:"gtfield=Lower"`
	PercentAtLower float64 `json:"percent_at_lower" yaml:"percent_at_lower" validate:"gte=0,lte=100"`
	PercentAtUpper float64 `json:"percent_at_upper" yaml:"percent_at_upper" validate:"gte=0,lte=100"`
}

// SubsidyPolicy is the coverage-year configuration the estimator runs against.
// Values are treated as immutable once loaded and are shared by pointer.
type SubsidyPolicy struct {
	CoverageYear int                         `json:"coverage_year" yaml:"coverage_year" validate:"gte=2014,lte=2100"`
	Description  string                      `json:"description,omitempty" yaml:"description,omitempty"`
	FPL          FederalPovertyLevelSchedule `json:"fpl" yaml:"fpl"`
	Bands        []ContributionBand          `json:"bands" yaml:"bands" validate:"min=1,dive"`
	AboveCap     AboveCapRule                `json:"above_cap" yaml:"above_cap" validate:"oneof=ineligible cap"`
	CapPercent   float64                     `json:"cap_percent,omitempty" yaml:"cap_percent,omitempty" validate:"gte=0,lte=100"`
}
