package model

const (
	MetalBronze       = "Bronze"
	MetalSilver       = "Silver"
	MetalGold         = "Gold"
	MetalPlatinum     = "Platinum"
	MetalCatastrophic = "Catastrophic"
)

type Plan struct {
	PlanID     string `json:"plan_id"`
	Year       int    `json:"year"`
	Issuer     string `json:"issuer"`
	Name       string `json:"name"`
	MetalLevel string `json:"metal_level"`
	State      string `json:"state"`
	CountyFIPS string `json:"county_fips"`
	RatingArea int    `json:"rating_area"`
}

type Rate struct {
	PlanID     string  `json:"plan_id"`
	Year       int     `json:"year"`
	RatingArea int     `json:"rating_area"`
	Age        int     `json:"age"`
	Tobacco    bool    `json:"tobacco"`
	Premium    float64 `json:"premium"`
}

// PlanPremium is a plan priced for one age/tobacco profile. NetPremium is set
// only when a subsidy estimate was applied.
type PlanPremium struct {
	Plan
	Age        int      `json:"age"`
	Tobacco    bool     `json:"tobacco"`
	Premium    float64  `json:"premium"`
	NetPremium *float64 `json:"net_premium,omitempty"`
}

type County struct {
	Zip        string `json:"zip"`
	State      string `json:"state"`
	CountyFIPS string `json:"county_fips"`
	CountyName string `json:"county_name"`
	RatingArea int    `json:"rating_area"`
}
