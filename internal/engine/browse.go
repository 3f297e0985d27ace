package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"subsidy-engine/internal/model"
	"subsidy-engine/internal/plans"
	"subsidy-engine/internal/subsidy"
)

var (
	ErrBadSearch     = errors.New("invalid plan search")
	ErrNoPlanData    = errors.New("no plan data configured")
	ErrAmbiguousZip  = errors.New("zip code spans several counties")
	ErrUnknownCounty = errors.New("location not found")
)

// SearchRequest lists plans in one county for one applicant. When Income is
// set, each plan also carries its premium net of the estimated subsidy.
type SearchRequest struct {
	Year          int
	State         string
	CountyFIPS    string
	Zip           string
	RatingArea    int
	Age           int
	Tobacco       bool
	Filter        plans.Filter
	Sort          string
	Income        *float64
	HouseholdSize int
}

// Search filters and sorts the plans offered at a location.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*model.PlanSearchResponse, error) {
	if e.store == nil {
		return nil, ErrNoPlanData
	}
	if req.Age < 0 || req.Age > 120 {
		return nil, fmt.Errorf("%w: age %d out of range", ErrBadSearch, req.Age)
	}
	if req.Income != nil && *req.Income < 0 {
		return nil, fmt.Errorf("%w: income must be non-negative", ErrBadSearch)
	}

	year := req.Year
	if year == 0 {
		year = e.policies.DefaultYear()
	}
	p, err := e.policies.Get(ctx, year)
	if err != nil {
		return nil, err
	}

	county, err := e.searchCounty(ctx, req)
	if err != nil {
		return nil, err
	}

	premiums, err := e.store.ListPlanPremiums(ctx, plans.Query{
		Year:       year,
		State:      county.State,
		CountyFIPS: county.CountyFIPS,
		RatingArea: county.RatingArea,
		Age:        req.Age,
		Tobacco:    req.Tobacco,
	})
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}

	resp := &model.PlanSearchResponse{CoverageYear: year, County: county}

	if req.Income != nil {
		// The benchmark is taken over the full county list, before any
		// metal or issuer filter narrows it.
		if benchmark, err := plans.SecondLowestSilver(premiums); err == nil {
			estimate := subsidy.Estimate(p, *req.Income, req.HouseholdSize, benchmark)
			resp.BenchmarkPremium = &benchmark
			resp.Subsidy = &estimate
		} else {
			e.logger.Info("no benchmark plan for search",
				zap.Int("coverage_year", year),
				zap.String("county_fips", county.CountyFIPS),
				zap.Int("rating_area", county.RatingArea),
			)
		}
	}

	premiums = req.Filter.Apply(premiums)
	if resp.Subsidy != nil {
		plans.ApplySubsidy(premiums, resp.Subsidy.Subsidy)
	}
	if err := plans.Sort(premiums, req.Sort); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSearch, err)
	}
	resp.Plans = premiums
	return resp, nil
}

func (e *Engine) searchCounty(ctx context.Context, req SearchRequest) (model.County, error) {
	if req.CountyFIPS != "" {
		return model.County{State: strings.ToUpper(req.State), CountyFIPS: req.CountyFIPS, Zip: req.Zip, RatingArea: req.RatingArea}, nil
	}
	if req.Zip == "" {
		if req.RatingArea > 0 && req.State != "" {
			return model.County{State: strings.ToUpper(req.State), RatingArea: req.RatingArea}, nil
		}
		return model.County{}, fmt.Errorf("%w: county_fips, zip or state with rating_area is required", ErrBadSearch)
	}

	counties, err := e.store.CountiesByZip(ctx, req.Zip)
	if errors.Is(err, plans.ErrNotFound) {
		return model.County{}, fmt.Errorf("%w: zip %s", ErrUnknownCounty, req.Zip)
	}
	if err != nil {
		return model.County{}, fmt.Errorf("looking up zip %s: %w", req.Zip, err)
	}
	if req.State != "" {
		counties = filterState(counties, req.State)
		if len(counties) == 0 {
			return model.County{}, fmt.Errorf("%w: zip %s in %s", ErrUnknownCounty, req.Zip, strings.ToUpper(req.State))
		}
	}
	if req.RatingArea > 0 {
		counties = filterRatingArea(counties, req.RatingArea)
		if len(counties) == 0 {
			return model.County{}, fmt.Errorf("%w: zip %s in rating area %d", ErrUnknownCounty, req.Zip, req.RatingArea)
		}
	}
	if len(counties) > 1 {
		return model.County{}, fmt.Errorf("%w: %s", ErrAmbiguousZip, req.Zip)
	}
	return counties[0], nil
}

// CountiesByZip exposes the zip crosswalk.
func (e *Engine) CountiesByZip(ctx context.Context, zip string) ([]model.County, error) {
	if e.store == nil {
		return nil, ErrNoPlanData
	}
	counties, err := e.store.CountiesByZip(ctx, zip)
	if errors.Is(err, plans.ErrNotFound) {
		return nil, fmt.Errorf("%w: zip %s", ErrUnknownCounty, zip)
	}
	return counties, err
}

// Policies lists the coverage-year policies the engine can estimate with.
func (e *Engine) Policies() []*model.SubsidyPolicy {
	return e.policies.Policies()
}

// DefaultYear is the coverage year used when a request names none.
func (e *Engine) DefaultYear() int {
	return e.policies.DefaultYear()
}
