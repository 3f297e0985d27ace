package policy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"subsidy-engine/internal/model"
)

// Options configures where a Registry finds policies beyond the built-ins.
type Options struct {
	// Dir holds YAML policies that override built-ins of the same year.
	Dir string
	// RemoteURL, when set, is asked for GET {RemoteURL}/policies/{year}
	// before local policies are consulted.
	RemoteURL   string
	Timeout     time.Duration
	DefaultYear int
}

// Registry resolves subsidy policies by coverage year. Successful remote
// lookups are cached per year; local policies are loaded once and never
// change.
type Registry struct {
	local       map[int]*model.SubsidyPolicy
	defaultYear int

	remoteURL string
	client    *http.Client
	cache     sync.Map

	logger *zap.Logger
}

// NewRegistry loads built-in and directory policies.
func NewRegistry(opts Options, logger *zap.Logger) (*Registry, error) {
	local, err := Builtin()
	if err != nil {
		return nil, fmt.Errorf("loading built-in policies: %w", err)
	}
	if opts.Dir != "" {
		overrides, err := LoadDir(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("loading policies from %s: %w", opts.Dir, err)
		}
		for year, p := range overrides {
			local[year] = p
		}
	}

	r := &Registry{
		local:     local,
		remoteURL: strings.TrimRight(opts.RemoteURL, "/"),
		logger:    logger,
	}

	if r.remoteURL != "" {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		r.client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	r.defaultYear = opts.DefaultYear
	if r.defaultYear == 0 {
		years := r.Years()
		if len(years) > 0 {
			r.defaultYear = years[len(years)-1]
		}
	}
	if _, err := r.Get(context.Background(), r.defaultYear); err != nil {
		return nil, fmt.Errorf("default coverage year: %w", err)
	}

	logger.Info("subsidy policies loaded",
		zap.Ints("years", r.Years()),
		zap.Int("default_year", r.defaultYear),
		zap.Bool("remote", r.remoteURL != ""),
	)
	return r, nil
}

// NewStaticRegistry builds a registry over an explicit set of policies,
// with no remote source.
func NewStaticRegistry(policies []*model.SubsidyPolicy, defaultYear int, logger *zap.Logger) *Registry {
	local := make(map[int]*model.SubsidyPolicy, len(policies))
	for _, p := range policies {
		local[p.CoverageYear] = p
	}
	return &Registry{local: local, defaultYear: defaultYear, logger: logger}
}

// DefaultYear is the year used when a request does not name one.
func (r *Registry) DefaultYear() int {
	return r.defaultYear
}

// Years lists the local coverage years and every year already served by the
// remote registry, in ascending order.
func (r *Registry) Years() []int {
	seen := make(map[int]bool, len(r.local))
	years := make([]int, 0, len(r.local))
	for year := range r.local {
		seen[year] = true
		years = append(years, year)
	}
	r.cache.Range(func(key, _ any) bool {
		if year := key.(int); !seen[year] {
			seen[year] = true
			years = append(years, year)
		}
		return true
	})
	sort.Ints(years)
	return years
}

// Policies returns the policies of Years, preferring a cached remote policy
// over the local one of the same year.
func (r *Registry) Policies() []*model.SubsidyPolicy {
	years := r.Years()
	out := make([]*model.SubsidyPolicy, len(years))
	for i, year := range years {
		if p, ok := r.cache.Load(year); ok {
			out[i] = p.(*model.SubsidyPolicy)
			continue
		}
		out[i] = r.local[year]
	}
	return out
}

// Get resolves one coverage year. A remote failure falls back to the local
// policy for that year; the fallback is not cached, so the remote registry is
// asked again on the next lookup.
func (r *Registry) Get(ctx context.Context, year int) (*model.SubsidyPolicy, error) {
	if r.remoteURL == "" {
		if p, ok := r.local[year]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %d", ErrUnknownYear, year)
	}

	if p, ok := r.cache.Load(year); ok {
		return p.(*model.SubsidyPolicy), nil
	}

	p, err := r.fetch(ctx, year)
	if err != nil {
		r.logger.Warn("remote policy lookup failed, using local policy",
			zap.Int("coverage_year", year),
			zap.Error(err),
		)
		local, ok := r.local[year]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownYear, year)
		}
		return local, nil
	}
	r.cache.Store(year, p)
	return p, nil
}

// GetMany resolves several years, fetching uncached remote years
// concurrently. Years that cannot be resolved are absent from the result.
func (r *Registry) GetMany(ctx context.Context, years []int) map[int]*model.SubsidyPolicy {
	result := make(map[int]*model.SubsidyPolicy, len(years))

	if r.remoteURL == "" {
		for _, year := range years {
			if p, ok := r.local[year]; ok {
				result[year] = p
			}
		}
		return result
	}

	var toFetch []int
	queued := make(map[int]bool, len(years))
	for _, year := range years {
		if p, ok := r.cache.Load(year); ok {
			result[year] = p.(*model.SubsidyPolicy)
		} else if !queued[year] {
			queued[year] = true
			toFetch = append(toFetch, year)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, year := range toFetch {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			p, err := r.Get(ctx, year)
			if err != nil {
				return
			}
			mu.Lock()
			result[year] = p
			mu.Unlock()
		}(year)
	}
	wg.Wait()

	return result
}

func (r *Registry) fetch(ctx context.Context, year int) (*model.SubsidyPolicy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.remoteURL+"/policies/"+strconv.Itoa(year), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting policy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("policy registry returned %d", resp.StatusCode)
	}

	var p model.SubsidyPolicy
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding policy: %w", err)
	}
	if p.CoverageYear != year {
		return nil, fmt.Errorf("policy registry answered year %d for %d", p.CoverageYear, year)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
