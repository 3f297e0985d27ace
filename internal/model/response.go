package model

type EstimateResponse struct {
	CalculationMetadata CalculationMetadata `json:"calculation_metadata"`
	EstimateResult      EstimateResult      `json:"estimate_result"`
}

type CalculationMetadata struct {
	CalculationID          string `json:"calculation_id"`
	CalculationStartedAt   string `json:"calculation_started_at"`
	CalculationCompletedAt string `json:"calculation_completed_at"`
	CalculationDurationMs  int64  `json:"calculation_duration_ms"`
	CalculationOutcome     string `json:"calculation_outcome"`
}

type EstimateResult struct {
	Messages         []CalculationMessage `json:"messages"`
	CoverageYear     int                  `json:"coverage_year,omitempty"`
	BenchmarkPremium *float64             `json:"benchmark_premium,omitempty"`
	BenchmarkSource  string               `json:"benchmark_source,omitempty"`
	Subsidy          *SubsidyResult       `json:"subsidy"`
	Comparisons      []YearComparison     `json:"comparisons,omitempty"`
}

type YearComparison struct {
	CoverageYear     int           `json:"coverage_year"`
	BenchmarkPremium float64       `json:"benchmark_premium"`
	Subsidy          SubsidyResult `json:"subsidy"`
}

type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

const (
	BenchmarkFromRequest = "request"
	BenchmarkFromStore   = "plan_store"
)

type PlanSearchResponse struct {
	CoverageYear     int            `json:"coverage_year"`
	County           County         `json:"county"`
	BenchmarkPremium *float64       `json:"benchmark_premium,omitempty"`
	Subsidy          *SubsidyResult `json:"subsidy,omitempty"`
	Plans            []PlanPremium  `json:"plans"`
}
