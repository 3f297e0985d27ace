// Package plans stores marketplace plans and their age-rated premiums, and
// derives the benchmark premium a subsidy estimate is measured against.
package plans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"subsidy-engine/internal/model"
	"subsidy-engine/internal/plans/migrations"
)

// Rate tables price children as one band and everyone 64 or older as one band.
const (
	minRatedAge = 14
	maxRatedAge = 64
)

var ErrNotFound = errors.New("not found")

// Query selects the plans offered in one county, or across a state's rating
// area when no county is given, priced for one applicant.
type Query struct {
	Year       int
	State      string
	CountyFIPS string
	RatingArea int
	Age        int
	Tobacco    bool
}

// Store persists plans, rates and the zip/county crosswalk in SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the database at path and applies pending migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("plan store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertPlan records a plan's availability in one county.
func (s *Store) UpsertPlan(ctx context.Context, p model.Plan) error {
	if strings.TrimSpace(p.PlanID) == "" {
		return fmt.Errorf("plan id is required")
	}
	if strings.TrimSpace(p.CountyFIPS) == "" {
		return fmt.Errorf("plan %s: county fips is required", p.PlanID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (plan_id, year, issuer, name, metal_level, state, county_fips, rating_area)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (plan_id, year, county_fips) DO UPDATE SET
		   issuer = excluded.issuer,
		   name = excluded.name,
		   metal_level = excluded.metal_level,
		   state = excluded.state,
		   rating_area = excluded.rating_area`,
		p.PlanID, p.Year, p.Issuer, p.Name, p.MetalLevel, strings.ToUpper(p.State), p.CountyFIPS, p.RatingArea,
	)
	if err != nil {
		return fmt.Errorf("upsert plan %s: %w", p.PlanID, err)
	}
	return nil
}

// UpsertRate records the monthly premium of a plan for one age band.
func (s *Store) UpsertRate(ctx context.Context, r model.Rate) error {
	if r.Premium < 0 {
		return fmt.Errorf("rate for plan %s: premium must be non-negative", r.PlanID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rates (plan_id, year, rating_area, age, tobacco, premium)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (plan_id, year, rating_area, age, tobacco) DO UPDATE SET
		   premium = excluded.premium`,
		r.PlanID, r.Year, r.RatingArea, ratedAge(r.Age), boolToInt(r.Tobacco), r.Premium,
	)
	if err != nil {
		return fmt.Errorf("upsert rate for plan %s: %w", r.PlanID, err)
	}
	return nil
}

// UpsertCounty records that a zip code lies (partly) in a county.
func (s *Store) UpsertCounty(ctx context.Context, c model.County) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO zip_counties (zip, county_fips, state, county_name, rating_area)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (zip, county_fips) DO UPDATE SET
		   state = excluded.state,
		   county_name = excluded.county_name,
		   rating_area = excluded.rating_area`,
		c.Zip, c.CountyFIPS, strings.ToUpper(c.State), c.CountyName, c.RatingArea,
	)
	if err != nil {
		return fmt.Errorf("upsert county %s/%s: %w", c.Zip, c.CountyFIPS, err)
	}
	return nil
}

// CountiesByZip lists every county a zip code touches. A zip that spans
// county lines returns more than one row.
func (s *Store) CountiesByZip(ctx context.Context, zip string) ([]model.County, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zip, state, county_fips, county_name, rating_area
		 FROM zip_counties WHERE zip = ? ORDER BY county_fips`, zip)
	if err != nil {
		return nil, fmt.Errorf("query counties for zip %s: %w", zip, err)
	}
	defer rows.Close()

	var counties []model.County
	for rows.Next() {
		var c model.County
		if err := rows.Scan(&c.Zip, &c.State, &c.CountyFIPS, &c.CountyName, &c.RatingArea); err != nil {
			return nil, fmt.Errorf("scan county: %w", err)
		}
		counties = append(counties, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counties: %w", err)
	}
	if len(counties) == 0 {
		return nil, fmt.Errorf("zip %s: %w", zip, ErrNotFound)
	}
	return counties, nil
}

// ListPlanPremiums prices every plan offered in the queried county, or in the
// rating area when the query names no county. A plan sold in several counties
// of one rating area is listed once. Tobacco users fall back to the standard
// premium when a plan has no tobacco rate. Plans without a rate for the
// applicant's age are left out.
func (s *Store) ListPlanPremiums(ctx context.Context, q Query) ([]model.PlanPremium, error) {
	age := ratedAge(q.Age)
	args := []any{boolToInt(q.Tobacco), age, q.Year}
	where := `p.year = ?`
	switch {
	case q.CountyFIPS != "":
		where += ` AND p.county_fips = ?`
		args = append(args, q.CountyFIPS)
	case q.RatingArea > 0 && q.State != "":
		where += ` AND p.rating_area = ?`
		args = append(args, q.RatingArea)
	default:
		return nil, fmt.Errorf("plan query needs a county or a state and rating area")
	}
	if q.State != "" {
		where += ` AND p.state = ?`
		args = append(args, strings.ToUpper(q.State))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.plan_id, p.year, p.issuer, p.name, p.metal_level, p.state, p.county_fips, p.rating_area,
		        CASE WHEN ? = 1 THEN COALESCE(rt.premium, rn.premium) ELSE rn.premium END
		 FROM plans p
		 JOIN rates rn
		   ON rn.plan_id = p.plan_id AND rn.year = p.year AND rn.rating_area = p.rating_area
		  AND rn.age = ? AND rn.tobacco = 0
		 LEFT JOIN rates rt
		   ON rt.plan_id = p.plan_id AND rt.year = p.year AND rt.rating_area = p.rating_area
		  AND rt.age = rn.age AND rt.tobacco = 1
		 WHERE `+where+`
		 GROUP BY p.plan_id
		 ORDER BY p.plan_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query plan premiums: %w", err)
	}
	defer rows.Close()

	var out []model.PlanPremium
	for rows.Next() {
		pp := model.PlanPremium{Age: q.Age, Tobacco: q.Tobacco}
		if err := rows.Scan(
			&pp.PlanID, &pp.Year, &pp.Issuer, &pp.Name, &pp.MetalLevel,
			&pp.State, &pp.CountyFIPS, &pp.RatingArea, &pp.Premium,
		); err != nil {
			return nil, fmt.Errorf("scan plan premium: %w", err)
		}
		out = append(out, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan premiums: %w", err)
	}
	s.logger.Debug("plan premiums listed",
		zap.Int("year", q.Year),
		zap.String("county_fips", q.CountyFIPS),
		zap.Int("rating_area", q.RatingArea),
		zap.Int("age", age),
		zap.Int("plans", len(out)),
	)
	return out, nil
}

func ratedAge(age int) int {
	if age < minRatedAge {
		return minRatedAge
	}
	if age > maxRatedAge {
		return maxRatedAge
	}
	return age
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
