// Package policy loads and validates coverage-year subsidy policies and
// resolves them by year at request time.
package policy

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"subsidy-engine/internal/model"
	"subsidy-engine/internal/validation"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var (
	ErrUnknownYear   = errors.New("unknown coverage year")
	ErrInvalidPolicy = errors.New("invalid subsidy policy")
)

// Parse decodes a YAML policy document and validates it.
func Parse(data []byte) (*model.SubsidyPolicy, error) {
	var p model.SubsidyPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks field ranges and the shape of the band table: bands must
// run contiguously from the eligible floor to the ceiling and the
// contribution may never decrease.
func Validate(p *model.SubsidyPolicy) error {
	if err := validation.ValidateStruct(p); err != nil {
		return fmt.Errorf("%w: coverage year %d: %w", ErrInvalidPolicy, p.CoverageYear, err)
	}

	var problems []string
	first, last := p.Bands[0], p.Bands[len(p.Bands)-1]
	if first.Lower != model.EligibleFloorPercent {
		problems = append(problems, fmt.Sprintf("first band starts at %g, want %g", first.Lower, model.EligibleFloorPercent))
	}
	if last.Upper != model.EligibleCeilingPercent {
		problems = append(problems, fmt.Sprintf("last band ends at %g, want %g", last.Upper, model.EligibleCeilingPercent))
	}
	for i, band := range p.Bands {
		if band.PercentAtUpper < band.PercentAtLower {
			problems = append(problems, fmt.Sprintf("band %d: contribution decreases from %g to %g", i, band.PercentAtLower, band.PercentAtUpper))
		}
		if i == 0 {
			continue
		}
		prev := p.Bands[i-1]
		if band.Lower != prev.Upper {
			problems = append(problems, fmt.Sprintf("band %d: starts at %g but band %d ends at %g", i, band.Lower, i-1, prev.Upper))
		}
		if band.PercentAtLower < prev.PercentAtUpper {
			problems = append(problems, fmt.Sprintf("band %d: contribution drops from %g to %g", i, prev.PercentAtUpper, band.PercentAtLower))
		}
	}
	if p.AboveCap == model.AboveCapFlat && p.CapPercent < last.PercentAtUpper {
		problems = append(problems, fmt.Sprintf("cap percent %g is below the last band's %g", p.CapPercent, last.PercentAtUpper))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: coverage year %d: %s", ErrInvalidPolicy, p.CoverageYear, strings.Join(problems, "; "))
	}
	return nil
}

// Builtin returns the policies compiled into the binary, keyed by year.
func Builtin() (map[int]*model.SubsidyPolicy, error) {
	return loadFS(builtinFS, "builtin")
}

// LoadDir reads every *.yaml / *.yml policy in dir.
func LoadDir(dir string) (map[int]*model.SubsidyPolicy, error) {
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) (map[int]*model.SubsidyPolicy, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("reading policy dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if !entry.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	policies := make(map[int]*model.SubsidyPolicy, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, name)))
		if err != nil {
			return nil, fmt.Errorf("reading policy %s: %w", name, err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := policies[p.CoverageYear]; dup {
			return nil, fmt.Errorf("%s: %w: coverage year %d defined twice", name, ErrInvalidPolicy, p.CoverageYear)
		}
		policies[p.CoverageYear] = p
	}
	return policies, nil
}
