package court

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
)

// Repository reads the court catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Court, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Court, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"c.id", "c.venue_id", "c.name", "c.hourly_rate::float8", "c.is_active",
		"v.name", "v.opening_hours", "v.down_payment_percent",
	).
		From("public.courts c").
		Join("public.venues v ON c.venue_id = v.id").
		Where(squirrel.Eq{"c.id": id}).
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build get court query failed")
	}

	var (
		c           Court
		rate        float64
		hoursJSON   []byte
		downPayment *float64
	)
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.VenueID, &c.Name, &rate, &c.IsActive,
		&c.Venue.Name, &hoursJSON, &downPayment,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errs.Wrap(err, "get court failed")
	}

	c.Venue.ID = c.VenueID
	c.HourlyRate = money.FromMajor(rate)
	c.Venue.DownPaymentPercent = DefaultDownPaymentPercent
	if downPayment != nil {
		c.Venue.DownPaymentPercent = *downPayment
	}
	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &c.Venue.OpeningHours); err != nil {
			return nil, errs.Wrapf(err, "decode opening hours of venue %s", c.VenueID)
		}
	}
	return &c, nil
}
