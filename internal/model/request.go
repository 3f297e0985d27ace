package model

type EstimateRequest struct {
	CoverageYear     int            `json:"coverage_year,omitempty" validate:"omitempty,gte=2014,lte=2100"`
	Household        HouseholdInput `json:"household"`
	BenchmarkPremium *float64       `json:"benchmark_premium,omitempty" validate:"omitempty,gte=0"`
	Location         *Location      `json:"location,omitempty"`
	Applicant        *Applicant     `json:"applicant,omitempty"`
	CompareYears     []int          `json:"compare_years,omitempty" validate:"max=5,dive,gte=2014,lte=2100"`
}

type HouseholdInput struct {
	Income *float64 `json:"income" validate:"required,gte=0"`
	Size   int      `json:"size"`
}

// Location identifies a rating area either directly or through a zip/county.
type Location struct {
	State      string `json:"state,omitempty" validate:"omitempty,len=2,alpha"`
	CountyFIPS string `json:"county_fips,omitempty" validate:"omitempty,len=5,numeric"`
	Zip        string `json:"zip,omitempty" validate:"omitempty,len=5,numeric"`
	RatingArea int    `json:"rating_area,omitempty" validate:"omitempty,gte=1"`
}

type Applicant struct {
	Age     int  `json:"age" validate:"gte=0,lte=120"`
	Tobacco bool `json:"tobacco"`
}
