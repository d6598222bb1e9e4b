package discount

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
)

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewPgxRepository returns a Source backed by the discount_rules and holiday_pricing tables.
func NewPgxRepository(pool *pgxpool.Pool) Source {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) ActiveRules(ctx context.Context, venueID string) ([]Rule, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"id", "venue_id", "COALESCE(court_id::text, '')", "name", "COALESCE(description, '')",
		"discount_type", "discount_unit", "discount_value::float8",
		"COALESCE(min_weeks, 0)", "COALESCE(advance_days, 0)",
		"COALESCE(valid_from::text, '')", "COALESCE(valid_until::text, '')", "priority",
	).
		From("public.discount_rules").
		Where(squirrel.Eq{"venue_id": venueID}).
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("priority DESC").
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build discount rules query failed")
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "list discount rules failed")
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var d Rule
		if err := rows.Scan(
			&d.ID, &d.VenueID, &d.CourtID, &d.Name, &d.Description,
			&d.Type, &d.Unit, &d.Value,
			&d.MinWeeks, &d.AdvanceDays,
			&d.ValidFrom, &d.ValidUntil, &d.Priority,
		); err != nil {
			return nil, errs.Wrap(err, "scan discount rule failed")
		}
		rules = append(rules, d)
	}
	return rules, errs.Wrap(rows.Err(), "iterate discount rules failed")
}

func (r *pgxRepository) ActiveHolidays(ctx context.Context, venueID, startDate, endDate string) ([]Holiday, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"id", "venue_id", "name", "start_date::text", "end_date::text",
		"COALESCE(price_multiplier, 1)::float8", "fixed_surcharge::float8",
	).
		From("public.holiday_pricing").
		Where(squirrel.Eq{"venue_id": venueID}).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Expr("start_date <= ?::date", startDate)).
		Where(squirrel.Expr("end_date >= ?::date", endDate)).
		OrderBy("end_date - start_date ASC").
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build holiday pricing query failed")
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "list holiday pricing failed")
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var (
			h         Holiday
			surcharge *float64
		)
		if err := rows.Scan(
			&h.ID, &h.VenueID, &h.Name, &h.StartDate, &h.EndDate, &h.Multiplier, &surcharge,
		); err != nil {
			return nil, errs.Wrap(err, "scan holiday pricing failed")
		}
		if surcharge != nil && *surcharge > 0 {
			m := money.FromMajor(*surcharge)
			h.FixedSurcharge = &m
		}
		holidays = append(holidays, h)
	}
	return holidays, errs.Wrap(rows.Err(), "iterate holiday pricing failed")
}
