package plans

import (
	"errors"
	"sort"

	"subsidy-engine/internal/model"
)

var ErrNoBenchmark = errors.New("no silver plan available for benchmark")

// SecondLowestSilver picks the benchmark premium: the second-lowest Silver
// premium among the given plans. Plans with equal premiums each count. When
// only one Silver plan is offered its premium is the benchmark.
func SecondLowestSilver(premiums []model.PlanPremium) (float64, error) {
	var silver []float64
	for _, p := range premiums {
		if p.MetalLevel == model.MetalSilver {
			silver = append(silver, p.Premium)
		}
	}
	switch len(silver) {
	case 0:
		return 0, ErrNoBenchmark
	case 1:
		return silver[0], nil
	}
	sort.Float64s(silver)
	return silver[1], nil
}
