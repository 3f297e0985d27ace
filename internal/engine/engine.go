package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"subsidy-engine/internal/model"
	"subsidy-engine/internal/plans"
	"subsidy-engine/internal/policy"
	"subsidy-engine/internal/subsidy"
	"subsidy-engine/internal/validation"
)

// PlanStore is the plan/rate lookup the engine prices benchmarks against.
type PlanStore interface {
	CountiesByZip(ctx context.Context, zip string) ([]model.County, error)
	ListPlanPremiums(ctx context.Context, q plans.Query) ([]model.PlanPremium, error)
}

type Engine struct {
	policies *policy.Registry
	store    PlanStore
	logger   *zap.Logger
}

// New builds an engine. store may be nil, in which case every request must
// carry its own benchmark premium.
func New(policies *policy.Registry, store PlanStore, logger *zap.Logger) *Engine {
	return &Engine{policies: policies, store: store, logger: logger}
}

// calculation accumulates messages for one request.
type calculation struct {
	messages    []model.CalculationMessage
	hasCritical bool
}

func (c *calculation) add(level, code, format string, args ...any) {
	c.messages = append(c.messages, model.CalculationMessage{
		ID:      len(c.messages),
		Level:   level,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
	if level == model.LevelCritical {
		c.hasCritical = true
	}
}

// Process runs one estimate: policy, benchmark, subsidy and any requested
// year-over-year comparisons. Problems are reported as messages; a CRITICAL
// message stops the calculation and leaves the subsidy unset.
func (e *Engine) Process(ctx context.Context, req *model.EstimateRequest) *model.EstimateResponse {
	start := time.Now()
	calc := &calculation{}
	result := model.EstimateResult{}

	e.run(ctx, req, calc, &result)

	outcome := model.OutcomeSuccess
	if calc.hasCritical {
		outcome = model.OutcomeFailure
	}
	result.Messages = calc.messages
	if result.Messages == nil {
		result.Messages = []model.CalculationMessage{}
	}

	elapsed := time.Since(start)
	now := time.Now().UTC()

	return &model.EstimateResponse{
		CalculationMetadata: model.CalculationMetadata{
			CalculationID:          uuid.New().String(),
			CalculationStartedAt:   now.Add(-elapsed).Format(time.RFC3339),
			CalculationCompletedAt: now.Format(time.RFC3339),
			CalculationDurationMs:  elapsed.Milliseconds(),
			CalculationOutcome:     outcome,
		},
		EstimateResult: result,
	}
}

func (e *Engine) run(ctx context.Context, req *model.EstimateRequest, calc *calculation, result *model.EstimateResult) {
	if err := validation.ValidateStruct(req); err != nil {
		fields := validation.Fields(err)
		if len(fields) == 0 {
			calc.add(model.LevelCritical, model.CodeInvalidRequest, "%v", err)
			return
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			calc.add(model.LevelCritical, model.CodeInvalidRequest, "%s", fields[k])
		}
		return
	}

	income := *req.Household.Income
	size := req.Household.Size
	if size < 1 {
		calc.add(model.LevelWarning, model.CodeHouseholdSizeClamped,
			"Household size %d treated as 1", size)
	}

	year := req.CoverageYear
	if year == 0 {
		year = e.policies.DefaultYear()
	}
	result.CoverageYear = year

	p, err := e.policies.Get(ctx, year)
	if err != nil {
		calc.add(model.LevelCritical, model.CodeUnknownCoverageYear,
			"No subsidy policy for coverage year %d", year)
		return
	}

	var county *model.County
	benchmark, given := requestBenchmark(req)
	if given {
		result.BenchmarkSource = model.BenchmarkFromRequest
	} else {
		county = e.resolveCounty(ctx, req, calc)
		if calc.hasCritical {
			return
		}
		var ok bool
		benchmark, ok = e.lookupBenchmark(ctx, year, county, req.Applicant, calc, model.LevelCritical)
		if !ok {
			return
		}
		result.BenchmarkSource = model.BenchmarkFromStore
	}
	result.BenchmarkPremium = &benchmark

	estimate := subsidy.Estimate(p, income, size, benchmark)
	result.Subsidy = &estimate

	e.logger.Debug("subsidy estimated",
		zap.Int("coverage_year", year),
		zap.Int64("fpl_percent", estimate.FPLPercent),
		zap.Bool("eligible", estimate.Eligible),
		zap.Int64("subsidy", estimate.Subsidy),
		zap.String("benchmark_source", result.BenchmarkSource),
	)

	result.Comparisons = e.compare(ctx, req, year, county, calc)
}

// compare estimates the same household under other coverage years. A
// benchmark given in the request is reused as is; a looked-up benchmark is
// priced again for each year.
func (e *Engine) compare(ctx context.Context, req *model.EstimateRequest, primary int, county *model.County, calc *calculation) []model.YearComparison {
	var years []int
	seen := map[int]bool{primary: true}
	for _, y := range req.CompareYears {
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return nil
	}
	sort.Ints(years)

	policies := e.policies.GetMany(ctx, years)

	var out []model.YearComparison
	for _, year := range years {
		p, ok := policies[year]
		if !ok {
			calc.add(model.LevelWarning, model.CodeComparisonUnavailable,
				"No subsidy policy for comparison year %d", year)
			continue
		}

		benchmark, given := requestBenchmark(req)
		if !given {
			benchmark, ok = e.lookupBenchmark(ctx, year, county, req.Applicant, calc, model.LevelWarning)
			if !ok {
				continue
			}
		}

		out = append(out, model.YearComparison{
			CoverageYear:     year,
			BenchmarkPremium: benchmark,
			Subsidy:          subsidy.Estimate(p, *req.Household.Income, req.Household.Size, benchmark),
		})
	}
	return out
}

// requestBenchmark returns the benchmark premium supplied by the caller. A
// zero premium counts as not supplied.
func requestBenchmark(req *model.EstimateRequest) (float64, bool) {
	if req.BenchmarkPremium == nil || *req.BenchmarkPremium <= 0 {
		return 0, false
	}
	return *req.BenchmarkPremium, true
}

// resolveCounty turns the request location into a single county, using the
// zip crosswalk when no county is given. A state and rating area alone price
// plans across the whole rating area.
func (e *Engine) resolveCounty(ctx context.Context, req *model.EstimateRequest, calc *calculation) *model.County {
	loc := req.Location
	if loc == nil || (loc.CountyFIPS == "" && loc.Zip == "" && loc.RatingArea == 0) {
		calc.add(model.LevelCritical, model.CodeBenchmarkUnavailable,
			"A benchmark premium or a location is required")
		return nil
	}
	if req.Applicant == nil {
		calc.add(model.LevelCritical, model.CodeBenchmarkUnavailable,
			"Applicant age is required to price the benchmark plan")
		return nil
	}
	if e.store == nil {
		calc.add(model.LevelCritical, model.CodeBenchmarkUnavailable,
			"No plan data is configured; supply benchmark_premium")
		return nil
	}

	if loc.CountyFIPS != "" {
		return &model.County{State: strings.ToUpper(loc.State), CountyFIPS: loc.CountyFIPS, Zip: loc.Zip, RatingArea: loc.RatingArea}
	}
	if loc.Zip == "" {
		if loc.State == "" {
			calc.add(model.LevelCritical, model.CodeInvalidRequest,
				"location.state is required with location.rating_area")
			return nil
		}
		return &model.County{State: strings.ToUpper(loc.State), RatingArea: loc.RatingArea}
	}

	counties, err := e.store.CountiesByZip(ctx, loc.Zip)
	switch {
	case errors.Is(err, plans.ErrNotFound):
		calc.add(model.LevelCritical, model.CodeLocationNotFound, "Zip code %s is not in the service area", loc.Zip)
		return nil
	case err != nil:
		e.logger.Error("county lookup failed", zap.String("zip", loc.Zip), zap.Error(err))
		calc.add(model.LevelCritical, model.CodeStoreFailure, "County lookup failed")
		return nil
	}

	if loc.State != "" {
		counties = filterState(counties, loc.State)
		if len(counties) == 0 {
			calc.add(model.LevelCritical, model.CodeLocationNotFound, "Zip code %s is not in %s", loc.Zip, strings.ToUpper(loc.State))
			return nil
		}
	}
	if loc.RatingArea > 0 {
		counties = filterRatingArea(counties, loc.RatingArea)
		if len(counties) == 0 {
			calc.add(model.LevelCritical, model.CodeLocationNotFound, "Zip code %s is not in rating area %d", loc.Zip, loc.RatingArea)
			return nil
		}
	}
	if len(counties) > 1 {
		names := make([]string, len(counties))
		for i, c := range counties {
			names[i] = fmt.Sprintf("%s (%s)", c.CountyName, c.CountyFIPS)
		}
		calc.add(model.LevelCritical, model.CodeAmbiguousZip,
			"Zip code %s spans several counties: %s", loc.Zip, strings.Join(names, ", "))
		return nil
	}
	return &counties[0]
}

func (e *Engine) lookupBenchmark(ctx context.Context, year int, county *model.County, applicant *model.Applicant, calc *calculation, level string) (float64, bool) {
	premiums, err := e.store.ListPlanPremiums(ctx, plans.Query{
		Year:       year,
		State:      county.State,
		CountyFIPS: county.CountyFIPS,
		RatingArea: county.RatingArea,
		Age:        applicant.Age,
		Tobacco:    applicant.Tobacco,
	})
	if err != nil {
		e.logger.Error("plan premium lookup failed",
			zap.Int("coverage_year", year),
			zap.String("county_fips", county.CountyFIPS),
			zap.Int("rating_area", county.RatingArea),
			zap.Error(err),
		)
		calc.add(level, model.CodeStoreFailure, "Plan lookup failed for coverage year %d", year)
		return 0, false
	}

	benchmark, err := plans.SecondLowestSilver(premiums)
	if err != nil {
		code := model.CodeBenchmarkUnavailable
		if level == model.LevelWarning {
			code = model.CodeComparisonUnavailable
		}
		calc.add(level, code, "No Silver plan in %s for coverage year %d", describe(county), year)
		return 0, false
	}
	return benchmark, true
}

func describe(c *model.County) string {
	if c.CountyFIPS != "" {
		return "county " + c.CountyFIPS
	}
	return fmt.Sprintf("%s rating area %d", c.State, c.RatingArea)
}

func filterRatingArea(counties []model.County, ratingArea int) []model.County {
	var out []model.County
	for _, c := range counties {
		if c.RatingArea == ratingArea {
			out = append(out, c)
		}
	}
	return out
}

func filterState(counties []model.County, state string) []model.County {
	var out []model.County
	for _, c := range counties {
		if strings.EqualFold(c.State, state) {
			out = append(out, c)
		}
	}
	return out
}
