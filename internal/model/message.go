package model

type CalculationMessage struct {
	ID      int    `json:"id"`
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
)

const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeUnknownCoverageYear   = "UNKNOWN_COVERAGE_YEAR"
	CodeBenchmarkUnavailable  = "BENCHMARK_UNAVAILABLE"
	CodeAmbiguousZip          = "AMBIGUOUS_ZIP"
	CodeLocationNotFound      = "LOCATION_NOT_FOUND"
	CodeHouseholdSizeClamped  = "HOUSEHOLD_SIZE_CLAMPED"
	CodeComparisonUnavailable = "COMPARISON_UNAVAILABLE"
	CodeStoreFailure          = "STORE_FAILURE"
)
