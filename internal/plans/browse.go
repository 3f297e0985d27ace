package plans

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"subsidy-engine/internal/model"
)

const (
	SortPremium    = "premium"
	SortNetPremium = "net_premium"
	SortName       = "name"
	SortIssuer     = "issuer"
	SortMetal      = "metal"
)

var metalRank = map[string]int{
	model.MetalCatastrophic: 0,
	model.MetalBronze:       1,
	model.MetalSilver:       2,
	model.MetalGold:         3,
	model.MetalPlatinum:     4,
}

// Filter narrows a priced plan list. Empty fields match everything.
type Filter struct {
	MetalLevel string
	Issuer     string
}

// Apply returns the plans matching f, case-insensitively.
func (f Filter) Apply(premiums []model.PlanPremium) []model.PlanPremium {
	out := make([]model.PlanPremium, 0, len(premiums))
	for _, p := range premiums {
		if f.MetalLevel != "" && !strings.EqualFold(p.MetalLevel, f.MetalLevel) {
			continue
		}
		if f.Issuer != "" && !strings.EqualFold(p.Issuer, f.Issuer) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ApplySubsidy sets each plan's net premium. The credit cannot be applied to
// catastrophic plans and never takes a premium below zero.
func ApplySubsidy(premiums []model.PlanPremium, monthlySubsidy int64) {
	credit := decimal.NewFromInt(monthlySubsidy)
	for i := range premiums {
		premium := decimal.NewFromFloat(premiums[i].Premium)
		net := premium
		if premiums[i].MetalLevel != model.MetalCatastrophic {
			net = decimal.Max(decimal.Zero, premium.Sub(credit))
		}
		v, _ := net.Round(2).Float64()
		premiums[i].NetPremium = &v
	}
}

// Sort orders plans in place by key, breaking ties by name then plan id.
// Sorting by net premium falls back to the gross premium for plans without one.
func Sort(premiums []model.PlanPremium, key string) error {
	var compare func(a, b model.PlanPremium) int
	switch key {
	case "", SortPremium:
		compare = func(a, b model.PlanPremium) int { return compareFloat(a.Premium, b.Premium) }
	case SortNetPremium:
		compare = func(a, b model.PlanPremium) int { return compareFloat(netOrGross(a), netOrGross(b)) }
	case SortName:
		compare = func(a, b model.PlanPremium) int { return 0 }
	case SortIssuer:
		compare = func(a, b model.PlanPremium) int { return strings.Compare(a.Issuer, b.Issuer) }
	case SortMetal:
		compare = func(a, b model.PlanPremium) int { return metalRank[a.MetalLevel] - metalRank[b.MetalLevel] }
	default:
		return fmt.Errorf("unknown sort key %q", key)
	}

	sort.SliceStable(premiums, func(i, j int) bool {
		a, b := premiums[i], premiums[j]
		if c := compare(a, b); c != 0 {
			return c < 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PlanID < b.PlanID
	})
	return nil
}

func netOrGross(p model.PlanPremium) float64 {
	if p.NetPremium != nil {
		return *p.NetPremium
	}
	return p.Premium
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
