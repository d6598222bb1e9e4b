package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/court-reservation-engine/internal/db"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
)

// ErrSlotTaken marks inserts or updates rejected by the storage overlap constraint.
var ErrSlotTaken = errors.New("slot taken by a concurrent booking")

// Reader is the read side used by validation and queries.
type Reader interface {
	GetByID(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	// FindOverlapping returns occupying reservations on courtID overlapping [start, end).
	FindOverlapping(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*Reservation, error)
	SumGroupPending(ctx context.Context, groupID, userID string) (*GroupTotal, error)
}

// Writer is every mutation the engine performs.
type Writer interface {
	Insert(ctx context.Context, r *Reservation) error
	// Cancel moves a reservation to cancelled if its current status is one of from.
	Cancel(ctx context.Context, id string, from []Status, reason string, at time.Time) error
	// Reinstate undoes Cancel for a hold released earlier in the same batch.
	Reinstate(ctx context.Context, id string, to Status) error
	Reschedule(ctx context.Context, id string, start, end time.Time, deadline *time.Time, from RescheduleRecord) error
}

type Repository interface {
	Reader
	Writer
	// WithinTx runs fn with a Writer bound to one database transaction.
	WithinTx(ctx context.Context, fn func(w Writer) error) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
	db   db.DBTX
	tx   pgx.Tx
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool, db: pool}
}

var selectColumns = []string{
	"r.id", "r.court_id", "r.user_id", "r.start_time", "r.end_time", "r.status",
	"r.total_amount::float8", "r.amount_paid::float8", "r.discount_applied::float8",
	"COALESCE(r.discount_reason, '')", "r.platform_fee::float8", "r.recurrence_group_id::text",
	"r.payment_type", "r.cash_payment_deadline", "r.num_players", "COALESCE(r.notes, '')",
	"r.metadata", "r.created_at", "r.updated_at",
}

func scanReservation(row pgx.Row, extra ...any) (*Reservation, error) {
	var (
		r                                    Reservation
		total, paid, discountApplied, feeAmt float64
		meta                                 []byte
	)
	dest := []any{
		&r.ID, &r.CourtID, &r.UserID, &r.StartTime, &r.EndTime, &r.Status,
		&total, &paid, &discountApplied,
		&r.DiscountReason, &feeAmt, &r.RecurrenceGroupID,
		&r.PaymentType, &r.CashPaymentDeadline, &r.NumPlayers, &r.Notes,
		&meta, &r.CreatedAt, &r.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	r.TotalAmount = money.FromMajor(total)
	r.AmountPaid = money.FromMajor(paid)
	r.DiscountApplied = money.FromMajor(discountApplied)
	r.PlatformFee = money.FromMajor(feeAmt)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, errs.Wrapf(err, "decode metadata of reservation %s", r.ID)
		}
	}
	return &r, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(selectColumns...).
		From("public.reservations r").
		Where(squirrel.Eq{"r.id": id}).
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build get reservation query failed")
	}

	res, err := scanReservation(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errs.Wrap(err, "get reservation failed")
	}
	return res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(selectColumns, "count(*) OVER() AS total_count")...).
		From("public.reservations r")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"r.user_id": filter.UserID})
	}
	if filter.CourtID != "" {
		query = query.Where(squirrel.Eq{"r.court_id": filter.CourtID})
	}
	if filter.RecurrenceGroupID != "" {
		query = query.Where(squirrel.Eq{"r.recurrence_group_id": filter.RecurrenceGroupID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"r.status": filter.Status})
	}
	if filter.StartTime != nil {
		query = query.Where(squirrel.GtOrEq{"r.end_time": filter.StartTime})
	}
	if filter.EndTime != nil {
		query = query.Where(squirrel.LtOrEq{"r.start_time": filter.EndTime})
	}

	orderBy := "r.start_time"
	if filter.SortBy != "" {
		orderBy = "r." + filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder == "ASC" || filter.SortOrder == "asc" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy + " " + orderDir)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, errs.Wrap(err, "build list reservations query failed")
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, errs.Wrap(err, "list reservations failed")
	}
	defer rows.Close()

	var (
		items []*Reservation
		total int
	)
	for rows.Next() {
		res, err := scanReservation(rows, &total)
		if err != nil {
			return nil, 0, errs.Wrap(err, "scan reservation failed")
		}
		items = append(items, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.Wrap(err, "iterate reservations failed")
	}
	return items, total, nil
}

func (r *pgxRepository) FindOverlapping(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*Reservation, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(selectColumns...).
		From("public.reservations r").
		Where(squirrel.Eq{"r.court_id": courtID}).
		Where(squirrel.Eq{"r.status": statusStrings(OccupyingStatuses())}).
		Where(squirrel.Lt{"r.start_time": end}).
		Where(squirrel.Gt{"r.end_time": start}).
		OrderBy("r.start_time ASC")
	if excludeID != "" {
		query = query.Where(squirrel.NotEq{"r.id": excludeID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build overlap query failed")
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.Wrap(err, "query overlapping reservations failed")
	}
	defer rows.Close()

	var items []*Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, errs.Wrap(err, "scan reservation failed")
		}
		items = append(items, res)
	}
	return items, errs.Wrap(rows.Err(), "iterate overlapping reservations failed")
}

func (r *pgxRepository) SumGroupPending(ctx context.Context, groupID, userID string) (*GroupTotal, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("count(*)", "COALESCE(sum(total_amount), 0)::float8").
		From("public.reservations").
		Where(squirrel.Eq{"recurrence_group_id": groupID}).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"status": string(StatusPendingPayment)}).
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build group total query failed")
	}

	var (
		count int
		sum   float64
	)
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count, &sum); err != nil {
		return nil, errs.Wrap(err, "sum group total failed")
	}
	return &GroupTotal{RecurrenceGroupID: groupID, Count: count, Total: money.FromMajor(sum)}, nil
}

func (r *pgxRepository) Insert(ctx context.Context, res *Reservation) error {
	if r.tx == nil {
		return r.insert(ctx, r.db, res)
	}

	// A savepoint keeps the outer transaction usable for compensation after a failed insert.
	sp, err := r.tx.Begin(ctx)
	if err != nil {
		return errs.Wrap(err, "begin savepoint failed")
	}
	if err := r.insert(ctx, sp, res); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return errs.Wrap(sp.Commit(ctx), "release savepoint failed")
}

func (r *pgxRepository) insert(ctx context.Context, q db.DBTX, res *Reservation) error {
	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return errs.Wrap(err, "encode reservation metadata failed")
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.reservations").
		Columns(
			"court_id", "user_id", "start_time", "end_time", "status",
			"total_amount", "amount_paid", "discount_applied", "discount_reason", "platform_fee",
			"recurrence_group_id", "payment_type", "cash_payment_deadline", "num_players", "notes", "metadata",
		).
		Values(
			res.CourtID, res.UserID, res.StartTime, res.EndTime, res.Status,
			res.TotalAmount.Major(), res.AmountPaid.Major(), res.DiscountApplied.Major(), nullIfEmpty(res.DiscountReason), res.PlatformFee.Major(),
			res.RecurrenceGroupID, res.PaymentType, res.CashPaymentDeadline, res.NumPlayers, nullIfEmpty(res.Notes), meta,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return errs.Wrap(err, "build insert reservation query failed")
	}

	if err := q.QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return classifyWriteError(err, "insert reservation failed")
	}
	return nil
}

func (r *pgxRepository) Cancel(ctx context.Context, id string, from []Status, reason string, at time.Time) error {
	patch, err := json.Marshal(map[string]any{
		"cancellation_reason": reason,
		"cancelled_at":        at,
	})
	if err != nil {
		return errs.Wrap(err, "encode cancellation metadata failed")
	}
	if len(from) == 0 {
		from = OccupyingStatuses()
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.reservations").
		Set("status", StatusCancelled).
		Set("metadata", squirrel.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", patch)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": statusStrings(from)}).
		ToSql()
	if err != nil {
		return errs.Wrap(err, "build cancel reservation query failed")
	}

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return errs.Wrap(err, "cancel reservation failed")
	}
	if ct.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *pgxRepository) Reinstate(ctx context.Context, id string, to Status) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.reservations").
		Set("status", to).
		Set("metadata", squirrel.Expr("metadata - 'cancellation_reason' - 'cancelled_at'")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": string(StatusCancelled)}).
		ToSql()
	if err != nil {
		return errs.Wrap(err, "build reinstate reservation query failed")
	}

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return classifyWriteError(err, "reinstate reservation failed")
	}
	if ct.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *pgxRepository) Reschedule(ctx context.Context, id string, start, end time.Time, deadline *time.Time, from RescheduleRecord) error {
	patch, err := json.Marshal(map[string]any{"rescheduled_from": from})
	if err != nil {
		return errs.Wrap(err, "encode reschedule metadata failed")
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.reservations").
		Set("start_time", start).
		Set("end_time", end).
		Set("cash_payment_deadline", deadline).
		Set("metadata", squirrel.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", patch)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": []string{string(StatusPendingPayment), string(StatusConfirmed)}}).
		ToSql()
	if err != nil {
		return errs.Wrap(err, "build reschedule reservation query failed")
	}

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return classifyWriteError(err, "reschedule reservation failed")
	}
	if ct.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *pgxRepository) WithinTx(ctx context.Context, fn func(w Writer) error) error {
	return db.RunInTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgxRepository{pool: r.pool, db: tx, tx: tx})
	})
}

// classifyWriteError marks overlap constraint rejections with ErrSlotTaken.
func classifyWriteError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ExclusionViolation, pgerrcode.UniqueViolation:
			return errs.Mark(errs.Wrap(err, msg), ErrSlotTaken)
		}
	}
	return errs.Wrap(err, msg)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
