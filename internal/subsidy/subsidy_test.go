package subsidy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsidy-engine/internal/model"
)

func standardPolicy() *model.SubsidyPolicy {
	return &model.SubsidyPolicy{
		CoverageYear: 2026,
		FPL:          model.FederalPovertyLevelSchedule{BasePerson1: 15650, PerAdditionalPerson: 5500},
		Bands: []model.ContributionBand{
			{Lower: 100, Upper: 133, PercentAtLower: 2.10, PercentAtUpper: 2.10},
			{Lower: 133, Upper: 150, PercentAtLower: 3.14, PercentAtUpper: 4.19},
			{Lower: 150, Upper: 200, PercentAtLower: 4.19, PercentAtUpper: 6.60},
			{Lower: 200, Upper: 250, PercentAtLower: 6.60, PercentAtUpper: 8.44},
			{Lower: 250, Upper: 300, PercentAtLower: 8.44, PercentAtUpper: 9.96},
			{Lower: 300, Upper: 400, PercentAtLower: 9.96, PercentAtUpper: 9.96},
		},
		AboveCap: model.AboveCapIneligible,
	}
}

func enhancedPolicy() *model.SubsidyPolicy {
	return &model.SubsidyPolicy{
		CoverageYear: 2025,
		FPL:          model.FederalPovertyLevelSchedule{BasePerson1: 15060, PerAdditionalPerson: 5380},
		Bands: []model.ContributionBand{
			{Lower: 100, Upper: 150, PercentAtLower: 0, PercentAtUpper: 0},
			{Lower: 150, Upper: 200, PercentAtLower: 0, PercentAtUpper: 2},
			{Lower: 200, Upper: 250, PercentAtLower: 2, PercentAtUpper: 4},
			{Lower: 250, Upper: 300, PercentAtLower: 4, PercentAtUpper: 6},
			{Lower: 300, Upper: 400, PercentAtLower: 6, PercentAtUpper: 8.5},
		},
		AboveCap:   model.AboveCapFlat,
		CapPercent: 8.5,
	}
}

func TestFederalPovertyLevel(t *testing.T) {
	schedule := standardPolicy().FPL

	assert.Equal(t, 15650.0, FederalPovertyLevel(schedule, 1))
	assert.Equal(t, 32150.0, FederalPovertyLevel(schedule, 4))

	for _, size := range []int{0, -1, -10} {
		assert.Equal(t, FederalPovertyLevel(schedule, 1), FederalPovertyLevel(schedule, size), "size %d", size)
	}
}

func TestFederalPovertyLevelPercent(t *testing.T) {
	for _, p := range []*model.SubsidyPolicy{standardPolicy(), enhancedPolicy()} {
		for n := 1; n <= 12; n++ {
			line := FederalPovertyLevel(p.FPL, n)
			assert.Equal(t, 100.0, FederalPovertyLevelPercent(p.FPL, line, n), "year %d size %d", p.CoverageYear, n)
		}
		assert.Equal(t, 0.0, FederalPovertyLevelPercent(p.FPL, 0, 3))
	}
}

func TestApplicablePercentage(t *testing.T) {
	p := standardPolicy()

	tests := []struct {
		name   string
		fpl    float64
		want   float64
		wantOK bool
	}{
		{"below floor", 99.9, 0, false},
		{"at floor", 100, 2.10, true},
		{"flat first band", 120, 2.10, true},
		{"boundary belongs to lower band", 133, 2.10, true},
		{"interpolated", 141.5, 3.665, true},
		{"upper boundary of band", 150, 4.19, true},
		{"mid band", 225, 7.52, true},
		{"flat last band", 350, 9.96, true},
		{"at ceiling", 400, 9.96, true},
		{"above ceiling", 400.01, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ApplicablePercentage(p, tt.fpl)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestApplicablePercentageAboveCap(t *testing.T) {
	got, ok := ApplicablePercentage(enhancedPolicy(), 650)
	require.True(t, ok)
	assert.Equal(t, 8.5, got)

	_, ok = ApplicablePercentage(enhancedPolicy(), 99)
	assert.False(t, ok, "the cap rule does not extend below the floor")
}

func TestApplicablePercentageNonDecreasing(t *testing.T) {
	for _, p := range []*model.SubsidyPolicy{standardPolicy(), enhancedPolicy()} {
		prev := -1.0
		for fpl := 100.0; fpl <= 400.0; fpl += 0.25 {
			got, ok := ApplicablePercentage(p, fpl)
			require.True(t, ok, "year %d fpl %.2f", p.CoverageYear, fpl)
			assert.GreaterOrEqual(t, got, prev, "year %d fpl %.2f", p.CoverageYear, fpl)
			prev = got
		}
	}
}

func TestBandBoundaries(t *testing.T) {
	// The enhanced table is continuous at every boundary.
	bands := enhancedPolicy().Bands
	for i := 0; i+1 < len(bands); i++ {
		below := interpolate(bands[i], bands[i].Upper)
		above := interpolate(bands[i+1], bands[i+1].Lower)
		assert.InDelta(t, below, above, 1e-12, "boundary %g", bands[i].Upper)
	}

	// The standard table steps up at 133% and is continuous elsewhere.
	bands = standardPolicy().Bands
	for i := 0; i+1 < len(bands); i++ {
		below := interpolate(bands[i], bands[i].Upper)
		above := interpolate(bands[i+1], bands[i+1].Lower)
		if bands[i].Upper == 133 {
			assert.Greater(t, above, below)
			continue
		}
		assert.InDelta(t, below, above, 1e-12, "boundary %g", bands[i].Upper)
	}
}

func TestEstimateScenarios(t *testing.T) {
	tests := []struct {
		name      string
		policy    *model.SubsidyPolicy
		income    float64
		size      int
		benchmark float64
		want      model.SubsidyResult
	}{
		{
			name: "single adult in the flat first band", policy: standardPolicy(),
			income: 20000, size: 1, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 465, FPLPercent: 128, Eligible: true, MonthlyContribution: 35},
		},
		{
			name: "below the poverty line", policy: standardPolicy(),
			income: 10000, size: 1, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 0, FPLPercent: 64, Eligible: false, MonthlyContribution: 0},
		},
		{
			name: "far above the ceiling", policy: standardPolicy(),
			income: 200000, size: 1, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 0, FPLPercent: 1278, Eligible: false, MonthlyContribution: 500},
		},
		{
			name: "family of four", policy: standardPolicy(),
			income: 40000, size: 4, benchmark: 800,
			want: model.SubsidyResult{Subsidy: 730, FPLPercent: 124, Eligible: true, MonthlyContribution: 70},
		},
		{
			name: "interpolated band", policy: standardPolicy(),
			income: 22000, size: 1, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 434, FPLPercent: 141, Eligible: true, MonthlyContribution: 66},
		},
		{
			name: "flat top band", policy: standardPolicy(),
			income: 60000, size: 1, benchmark: 900,
			want: model.SubsidyResult{Subsidy: 402, FPLPercent: 383, Eligible: true, MonthlyContribution: 498},
		},
		{
			name: "contribution exceeds benchmark", policy: standardPolicy(),
			income: 60000, size: 1, benchmark: 300,
			want: model.SubsidyResult{Subsidy: 0, FPLPercent: 383, Eligible: true, MonthlyContribution: 498},
		},
		{
			name: "household size zero is treated as one", policy: standardPolicy(),
			income: 20000, size: 0, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 465, FPLPercent: 128, Eligible: true, MonthlyContribution: 35},
		},
		{
			name: "enhanced zero-contribution band", policy: enhancedPolicy(),
			income: 20000, size: 1, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 500, FPLPercent: 133, Eligible: true, MonthlyContribution: 0},
		},
		{
			name: "enhanced interpolated band", policy: enhancedPolicy(),
			income: 30000, size: 1, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 451, FPLPercent: 199, Eligible: true, MonthlyContribution: 49},
		},
		{
			name: "enhanced cap above the ceiling", policy: enhancedPolicy(),
			income: 70000, size: 1, benchmark: 800,
			want: model.SubsidyResult{Subsidy: 304, FPLPercent: 465, Eligible: true, MonthlyContribution: 496},
		},
		{
			name: "enhanced cap with no remaining credit", policy: enhancedPolicy(),
			income: 200000, size: 1, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 0, FPLPercent: 1328, Eligible: true, MonthlyContribution: 1417},
		},
		{
			name: "enhanced still ineligible below the floor", policy: enhancedPolicy(),
			income: 10000, size: 1, benchmark: 500,
			want: model.SubsidyResult{Subsidy: 0, FPLPercent: 66, Eligible: false, MonthlyContribution: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(tt.policy, tt.income, tt.size, tt.benchmark)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimateNeverNegative(t *testing.T) {
	for _, p := range []*model.SubsidyPolicy{standardPolicy(), enhancedPolicy()} {
		for _, income := range []float64{-5000, 0, 1, 15650, 31000, 62000, 250000} {
			for _, benchmark := range []float64{-10, 0, 0.4, 350, 1200} {
				for _, size := range []int{-1, 0, 1, 3, 8} {
					got := Estimate(p, income, size, benchmark)
					assert.GreaterOrEqual(t, got.Subsidy, int64(0))
					assert.GreaterOrEqual(t, got.MonthlyContribution, int64(0))
				}
			}
		}
	}
}

func TestEstimateSubsidyNonIncreasingInIncome(t *testing.T) {
	for _, p := range []*model.SubsidyPolicy{standardPolicy(), enhancedPolicy()} {
		for _, size := range []int{1, 2, 5} {
			line := FederalPovertyLevel(p.FPL, size)
			prev := Estimate(p, line, size, 950).Subsidy
			for income := line; income <= line*4; income += 50 {
				got := Estimate(p, income, size, 950)
				require.True(t, got.Eligible)
				assert.LessOrEqual(t, got.Subsidy, prev, "year %d size %d income %.0f", p.CoverageYear, size, income)
				prev = got.Subsidy
			}
		}
	}
}

func TestEstimateConcurrentCallers(t *testing.T) {
	p := standardPolicy()
	want := Estimate(p, 40000, 4, 800)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, want, Estimate(p, 40000, 4, 800))
			}
		}()
	}
	wg.Wait()
}
