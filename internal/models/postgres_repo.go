package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepo is the relational EventStore and BookingStore. The seat
// invariant is enforced twice: by the conditional UPDATE in
// AdjustBookedSeats and by a CHECK constraint on the events table.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS events (
	id            UUID PRIMARY KEY,
	code          TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL,
	category      TEXT NOT NULL,
	location      TEXT NOT NULL,
	location_type TEXT NOT NULL,
	date          TIMESTAMPTZ NOT NULL,
	time          TEXT NOT NULL,
	duration      INTEGER NOT NULL CHECK (duration > 0),
	capacity      INTEGER NOT NULL CHECK (capacity >= 1),
	booked_seats  INTEGER NOT NULL DEFAULT 0,
	price         DOUBLE PRECISION NOT NULL DEFAULT 0,
	image         TEXT NOT NULL,
	organizer_id  UUID NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	CONSTRAINT booked_within_capacity CHECK (booked_seats >= 0 AND booked_seats <= capacity)
);

CREATE INDEX IF NOT EXISTS events_date_idx ON events (date);
CREATE INDEX IF NOT EXISTS events_category_idx ON events (category);

CREATE TABLE IF NOT EXISTS bookings (
	id                  UUID PRIMARY KEY,
	user_id             UUID NOT NULL,
	event_id            UUID NOT NULL REFERENCES events (id) ON DELETE RESTRICT,
	number_of_seats     INTEGER NOT NULL CHECK (number_of_seats >= 1),
	total_amount        DOUBLE PRECISION NOT NULL,
	status              TEXT NOT NULL,
	booking_date        TIMESTAMPTZ NOT NULL,
	cancelled_at        TIMESTAMPTZ,
	cancellation_reason TEXT NOT NULL DEFAULT '',
	CONSTRAINT user_event_unique UNIQUE (user_id, event_id)
);

CREATE INDEX IF NOT EXISTS bookings_event_idx ON bookings (event_id);
CREATE INDEX IF NOT EXISTS bookings_user_date_idx ON bookings (user_id, booking_date DESC);
`

func (p *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return pgErr("ensure schema", err)
	}
	return nil
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// pgErr maps driver failures onto the store's sentinel errors.
func pgErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return ErrHasDependents
		case pgCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, ErrInvalidEvent, pgErr.ConstraintName)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const eventColumns = `id, code, title, description, category, location, location_type, date, time,
	duration, capacity, booked_seats, price, image, organizer_id, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Code, &e.Title, &e.Description, &e.Category, &e.Location, &e.LocationType,
		&e.Date, &e.Time, &e.Duration, &e.Capacity, &e.BookedSeats, &e.Price, &e.Image, &e.OrganizerID,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *PostgresRepo) CreateEvent(ctx context.Context, event *Event) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		event.ID, event.Code, event.Title, event.Description, string(event.Category), event.Location,
		string(event.LocationType), event.Date, event.Time, event.Duration, event.Capacity, event.BookedSeats,
		event.Price, event.Image, event.OrganizerID, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return pgErr("insert event", err)
	}
	return nil
}

func (p *PostgresRepo) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	event, err := scanEvent(p.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, pgErr("get event", err)
	}
	return event, nil
}

func (p *PostgresRepo) UpdateEvent(ctx context.Context, event *Event) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE events SET title = $2, description = $3, category = $4, location = $5, location_type = $6,
			date = $7, time = $8, duration = $9, capacity = $10, price = $11, image = $12, updated_at = $13
		 WHERE id = $1 AND booked_seats <= $10`,
		event.ID, event.Title, event.Description, string(event.Category), event.Location,
		string(event.LocationType), event.Date, event.Time, event.Duration, event.Capacity, event.Price,
		event.Image, event.UpdatedAt,
	)
	if err != nil {
		return pgErr("update event", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.GetEvent(ctx, event.ID); err != nil {
			return err
		}
		return errCapacityBelowBooked
	}
	return nil
}

func (p *PostgresRepo) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return pgErr("delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

const adjustSeatsSQL = `UPDATE events SET booked_seats = booked_seats + $2, updated_at = $3
	WHERE id = $1 AND booked_seats + $2 BETWEEN 0 AND capacity
	RETURNING ` + eventColumns

func (p *PostgresRepo) AdjustBookedSeats(ctx context.Context, id uuid.UUID, delta int) (*Event, error) {
	event, err := scanEvent(p.pool.QueryRow(ctx, adjustSeatsSQL, id, delta, time.Now().UTC()))
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, pgErr("adjust booked seats", err)
	}
	if _, err := p.GetEvent(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrCapacityExceeded
}

// whereBuilder accumulates AND-ed predicates with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) add(clause string, args ...interface{}) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func eventWhere(f EventFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Category != "" {
		w.add("category = ?", string(f.Category))
	}
	if f.LocationType != "" {
		w.add("location_type = ?", string(f.LocationType))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		w.add("(title ILIKE ? OR description ILIKE ? OR location ILIKE ?)", pattern, pattern, pattern)
	}
	if f.From != nil {
		w.add("date >= ?", *f.From)
	}
	if f.To != nil {
		w.add("date <= ?", *f.To)
	}
	switch f.Status {
	case EventUpcoming:
		w.add("date > ?", f.Now)
	case EventOngoing:
		w.add("date <= ? AND date + duration * INTERVAL '1 minute' > ?", f.Now, f.Now)
	case EventCompleted:
		w.add("date + duration * INTERVAL '1 minute' <= ?", f.Now)
	}
	return w
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (p *PostgresRepo) ListEvents(ctx context.Context, f EventFilter) ([]*Event, int, error) {
	w := eventWhere(f)

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, pgErr("count events", err)
	}

	_, limit, offset := PageBounds(f.Page, f.Limit)
	args := append(w.args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY date ASC LIMIT $%d OFFSET $%d`,
		eventColumns, w.String(), len(w.args)+1, len(w.args)+2)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, pgErr("list events", err)
	}
	defer rows.Close()

	events := make([]*Event, 0, limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, pgErr("list events", err)
	}
	return events, total, nil
}

func (p *PostgresRepo) Categories(ctx context.Context) ([]Category, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT category FROM events ORDER BY category`)
	if err != nil {
		return nil, pgErr("list categories", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, Category(c))
	}
	return categories, rows.Err()
}

const bookingColumns = `id, user_id, event_id, number_of_seats, total_amount, status, booking_date,
	cancelled_at, cancellation_reason`

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b      Booking
		status string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.EventID, &b.NumberOfSeats, &b.TotalAmount, &status,
		&b.BookingDate, &b.CancelledAt, &b.CancellationReason)
	if err != nil {
		return nil, err
	}
	b.Status = BookingStatus(status)
	return &b, nil
}

func (p *PostgresRepo) CreateBooking(ctx context.Context, booking *Booking) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		booking.ID, booking.UserID, booking.EventID, booking.NumberOfSeats, booking.TotalAmount,
		string(booking.Status), booking.BookingDate, booking.CancelledAt, booking.CancellationReason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		var pgE *pgconn.PgError
		if errors.As(err, &pgE) && pgE.Code == pgForeignKeyViolation {
			return ErrEventNotFound
		}
		return pgErr("insert booking", err)
	}
	return nil
}

func (p *PostgresRepo) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	booking, err := scanBooking(p.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, pgErr("get booking", err)
	}
	return booking, nil
}

func (p *PostgresRepo) FindByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (*Booking, error) {
	booking, err := scanBooking(p.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 AND event_id = $2`, userID, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, pgErr("find booking by user and event", err)
	}
	return booking, nil
}

const cancelBookingSQL = `UPDATE bookings SET status = $2, cancelled_at = $3, cancellation_reason = $4
	WHERE id = $1 AND status = $5
	RETURNING ` + bookingColumns

func (p *PostgresRepo) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, error) {
	booking, err := scanBooking(p.pool.QueryRow(ctx, cancelBookingSQL,
		id, string(BookingCancelled), at, reason, string(BookingConfirmed),
	))
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, pgErr("cancel booking", err)
	}
	if _, err := p.GetBooking(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrAlreadyCancelled
}

func bookingWhere(f BookingFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.UserID != uuid.Nil {
		w.add("user_id = ?", f.UserID)
	}
	if f.EventID != uuid.Nil {
		w.add("event_id = ?", f.EventID)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	return w
}

func (p *PostgresRepo) ListBookings(ctx context.Context, f BookingFilter) ([]*Booking, int, error) {
	w := bookingWhere(f)

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, pgErr("count bookings", err)
	}

	_, limit, offset := PageBounds(f.Page, f.Limit)
	args := append(w.args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY booking_date DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, w.String(), len(w.args)+1, len(w.args)+2)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, pgErr("list bookings", err)
	}
	defer rows.Close()

	bookings := make([]*Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, pgErr("list bookings", err)
	}
	return bookings, total, nil
}

func (p *PostgresRepo) CountByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, pgErr("count event bookings", err)
	}
	return n, nil
}
