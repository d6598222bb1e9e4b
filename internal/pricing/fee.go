package pricing

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
)

const platformFeeKey = "platform_fee"

// FeePolicy is the platform fee charged on top of each slot's court amount.
type FeePolicy struct {
	Enabled    bool    `json:"enabled"`
	Percentage float64 `json:"percentage"`
}

type FeeSource interface {
	FeePolicy(ctx context.Context) (FeePolicy, error)
}

// StaticFeeSource always returns the same policy.
type StaticFeeSource FeePolicy

func (s StaticFeeSource) FeePolicy(context.Context) (FeePolicy, error) {
	return FeePolicy(s), nil
}

type pgxFeeSource struct {
	pool     *pgxpool.Pool
	fallback FeePolicy
}

// NewPgxFeeSource reads the policy from platform_settings. When no row exists the fallback applies.
func NewPgxFeeSource(pool *pgxpool.Pool, fallback FeePolicy) FeeSource {
	return &pgxFeeSource{pool: pool, fallback: fallback}
}

func (s *pgxFeeSource) FeePolicy(ctx context.Context) (FeePolicy, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("value").
		From("public.platform_settings").
		Where(squirrel.Eq{"key": platformFeeKey}).
		ToSql()
	if err != nil {
		return FeePolicy{}, errs.Wrap(err, "build platform fee query failed")
	}

	var raw []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.fallback, nil
		}
		return FeePolicy{}, errs.Wrap(err, "get platform fee failed")
	}

	policy := s.fallback
	if err := json.Unmarshal(raw, &policy); err != nil {
		return FeePolicy{}, errs.Wrap(err, "decode platform fee failed")
	}
	if policy.Percentage < 0 {
		policy.Percentage = 0
	}
	return policy, nil
}
