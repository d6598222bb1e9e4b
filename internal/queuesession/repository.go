package queuesession

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
)

type Repository interface {
	// FindOverlapping returns occupying sessions on courtID whose interval overlaps [start, end).
	FindOverlapping(ctx context.Context, courtID string, start, end time.Time) ([]*Session, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) FindOverlapping(ctx context.Context, courtID string, start, end time.Time) ([]*Session, error) {
	statuses := ActiveStatuses()
	statusArgs := make([]string, len(statuses))
	for i, s := range statuses {
		statusArgs[i] = string(s)
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"id", "court_id", "COALESCE(organizer_id::text, '')", "start_time", "end_time", "status",
		"COALESCE(approval_status, 'pending')",
	).
		From("public.queue_sessions").
		Where(squirrel.Eq{"court_id": courtID}).
		Where(squirrel.Eq{"status": statusArgs}).
		Where(squirrel.Or{
			squirrel.Eq{"approval_status": nil},
			squirrel.NotEq{"approval_status": string(ApprovalRejected)},
		}).
		Where(squirrel.Lt{"start_time": end}).
		Where(squirrel.Gt{"end_time": start}).
		OrderBy("start_time ASC").
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build queue session overlap query failed")
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "query overlapping queue sessions failed")
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.ID, &s.CourtID, &s.OrganizerID, &s.StartTime, &s.EndTime, &s.Status, &s.ApprovalStatus,
		); err != nil {
			return nil, errs.Wrap(err, "scan queue session failed")
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate queue sessions failed")
	}
	return sessions, nil
}
