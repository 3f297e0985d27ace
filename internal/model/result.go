package model

// SubsidyResult amounts are monthly and rounded to whole currency units.
type SubsidyResult struct {
	Subsidy             int64 `json:"subsidy"`
	FPLPercent          int64 `json:"fpl_percent"`
	Eligible            bool  `json:"eligible"`
	MonthlyContribution int64 `json:"monthly_contribution"`
}
