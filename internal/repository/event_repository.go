package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Event struct {
	ID                      string
	Title                   string
	Description             *string
	EventType               string
	StartDate               time.Time
	EndDate                 time.Time
	Location                *string
	Capacity                int // 0 means unlimited
	Cost                    decimal.Decimal
	RegistrationOpens       *time.Time
	RegistrationCloses      *time.Time
	EligibleMembershipTypes string // canonical comma separated tiers
	IsActive                bool
	IsPublic                bool
	CreatedBy               string
	CreatedAt               time.Time
	UpdatedAt               time.Time

	// Filled by reads.
	RegisteredCount int
	AttendedCount   int
}

type Attendance struct {
	ID           string
	EventID      string
	UserID       string
	RegisteredAt time.Time
	Attended     bool
	AttendedAt   *time.Time
	CheckedIn    bool
	CheckedInAt  *time.Time
	CheckedInBy  *string
	Notes        *string

	Ticket *EventTicket
	User   *User
	Event  *Event
}

type EventTicket struct {
	ID           string
	AttendanceID string
	TicketNumber string
	IssuedAt     time.Time
}

type EventFilter struct {
	ActiveOnly  bool
	PublicOnly  bool
	StartsAfter *time.Time
	EventType   string
}

// RegisterCheck runs inside the registration transaction with the event row
// locked. registered counts every attendance row for the event; already
// says whether the user holds one. A non-nil error aborts the registration
// and is returned unchanged.
type RegisterCheck func(ev *Event, registered int, already bool) error

type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	FindByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, f EventFilter) ([]*Event, error)
	FindStartingBetween(ctx context.Context, from, to time.Time) ([]*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error

	// Register serialises on the event row, runs check, then inserts the
	// attendance and its ticket. It returns (nil, nil) for an unknown event
	// and ErrTicketTaken, with nothing stored, when ticketNumber is in use.
	Register(ctx context.Context, eventID, userID, ticketNumber string, check RegisterCheck) (*Attendance, error)
	FindAttendance(ctx context.Context, eventID, userID string) (*Attendance, error)
	FindAttendanceByID(ctx context.Context, id string) (*Attendance, error)
	FindAttendancesByEvent(ctx context.Context, eventID string) ([]*Attendance, error)
	FindAttendancesByUser(ctx context.Context, userID string) ([]*Attendance, error)
	DeleteAttendance(ctx context.Context, id string) error
	// MarkAttended returns false when the row was already attended.
	MarkAttended(ctx context.Context, id string, at time.Time) (bool, error)
	// CheckIn returns false when the row was already checked in.
	CheckIn(ctx context.Context, id, staffID string, at time.Time) (bool, error)
	BulkCheckIn(ctx context.Context, eventID string, userIDs []string, staffID string, at time.Time) (int, error)
}

type pgEventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &pgEventRepository{pool: pool}
}

const eventSelect = `
	SELECT e.id, e.title, e.description, e.event_type, e.start_date, e.end_date, e.location,
	       e.capacity, e.cost, e.registration_opens, e.registration_closes,
	       e.eligible_membership_types, e.is_active, e.is_public, e.created_by,
	       e.created_at, e.updated_at,
	       (SELECT COUNT(*) FROM attendances a WHERE a.event_id = e.id),
	       (SELECT COUNT(*) FROM attendances a WHERE a.event_id = e.id AND a.attended)
	FROM events e
`

func scanEvent(row pgx.Row) (*Event, error) {
	e := &Event{}
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.EventType, &e.StartDate, &e.EndDate, &e.Location,
		&e.Capacity, &e.Cost, &e.RegistrationOpens, &e.RegistrationCloses,
		&e.EligibleMembershipTypes, &e.IsActive, &e.IsPublic, &e.CreatedBy,
		&e.CreatedAt, &e.UpdatedAt,
		&e.RegisteredCount, &e.AttendedCount,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func collectEvents(rows pgx.Rows) ([]*Event, error) {
	defer rows.Close()
	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *pgEventRepository) Create(ctx context.Context, e *Event) error {
	query := `
		INSERT INTO events (title, description, event_type, start_date, end_date, location, capacity,
		                    cost, registration_opens, registration_closes, eligible_membership_types,
		                    is_active, is_public, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		e.Title, e.Description, e.EventType, e.StartDate, e.EndDate, e.Location, e.Capacity,
		e.Cost, e.RegistrationOpens, e.RegistrationCloses, e.EligibleMembershipTypes,
		e.IsActive, e.IsPublic, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *pgEventRepository) FindByID(ctx context.Context, id string) (*Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id))
}

func (r *pgEventRepository) List(ctx context.Context, f EventFilter) ([]*Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ActiveOnly {
		where = append(where, "e.is_active")
	}
	if f.PublicOnly {
		where = append(where, "e.is_public")
	}
	if f.StartsAfter != nil {
		args = append(args, *f.StartsAfter)
		where = append(where, fmt.Sprintf("e.start_date > $%d", len(args)))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		where = append(where, fmt.Sprintf("e.event_type = $%d", len(args)))
	}

	query := eventSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY e.start_date`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *pgEventRepository) FindStartingBetween(ctx context.Context, from, to time.Time) ([]*Event, error) {
	rows, err := r.pool.Query(ctx,
		eventSelect+` WHERE e.is_active AND e.start_date >= $1 AND e.start_date < $2 ORDER BY e.start_date`,
		from, to)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *pgEventRepository) Update(ctx context.Context, e *Event) error {
	query := `
		UPDATE events
		SET title = $2, description = $3, event_type = $4, start_date = $5, end_date = $6,
		    location = $7, capacity = $8, cost = $9, registration_opens = $10,
		    registration_closes = $11, eligible_membership_types = $12, is_active = $13,
		    is_public = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	return r.pool.QueryRow(ctx, query,
		e.ID, e.Title, e.Description, e.EventType, e.StartDate, e.EndDate,
		e.Location, e.Capacity, e.Cost, e.RegistrationOpens,
		e.RegistrationCloses, e.EligibleMembershipTypes, e.IsActive, e.IsPublic,
	).Scan(&e.UpdatedAt)
}

func (r *pgEventRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

func (r *pgEventRepository) Register(ctx context.Context, eventID, userID, ticketNumber string, check RegisterCheck) (*Attendance, error) {
	var a *Attendance
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Lock the event so concurrent registrations see each other's rows.
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&locked)
		if isNoRows(err) {
			return nil
		}
		if err != nil {
			return err
		}

		ev, err := scanEvent(tx.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, eventID))
		if err != nil {
			return err
		}

		var already bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM attendances WHERE event_id = $1 AND user_id = $2)`,
			eventID, userID,
		).Scan(&already); err != nil {
			return err
		}

		if err := check(ev, ev.RegisteredCount, already); err != nil {
			return err
		}

		a = &Attendance{EventID: eventID, UserID: userID}
		if err := tx.QueryRow(ctx, `
			INSERT INTO attendances (event_id, user_id)
			VALUES ($1, $2)
			RETURNING id, registered_at
		`, eventID, userID).Scan(&a.ID, &a.RegisteredAt); err != nil {
			return mapWriteErr(err)
		}

		a.Ticket = &EventTicket{AttendanceID: a.ID, TicketNumber: ticketNumber}
		if err := tx.QueryRow(ctx, `
			INSERT INTO event_tickets (attendance_id, ticket_number)
			VALUES ($1, $2)
			RETURNING id, issued_at
		`, a.ID, ticketNumber).Scan(&a.Ticket.ID, &a.Ticket.IssuedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrTicketTaken
			}
			return err
		}
		a.Event = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

const attendanceSelect = `
	SELECT a.id, a.event_id, a.user_id, a.registered_at, a.attended, a.attended_at,
	       a.checked_in, a.checked_in_at, a.checked_in_by, a.notes,
	       t.id, t.ticket_number, t.issued_at,
	       u.username, u.email
	FROM attendances a
	LEFT JOIN event_tickets t ON t.attendance_id = a.id
	JOIN users u ON u.id = a.user_id
`

func scanAttendance(row pgx.Row) (*Attendance, error) {
	a := &Attendance{User: &User{}}
	var (
		ticketID, ticketNumber *string
		issuedAt               *time.Time
	)
	err := row.Scan(
		&a.ID, &a.EventID, &a.UserID, &a.RegisteredAt, &a.Attended, &a.AttendedAt,
		&a.CheckedIn, &a.CheckedInAt, &a.CheckedInBy, &a.Notes,
		&ticketID, &ticketNumber, &issuedAt,
		&a.User.Username, &a.User.Email,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.User.ID = a.UserID
	if ticketID != nil {
		a.Ticket = &EventTicket{ID: *ticketID, AttendanceID: a.ID, TicketNumber: *ticketNumber, IssuedAt: *issuedAt}
	}
	return a, nil
}

func collectAttendances(rows pgx.Rows) ([]*Attendance, error) {
	defer rows.Close()
	var out []*Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *pgEventRepository) FindAttendance(ctx context.Context, eventID, userID string) (*Attendance, error) {
	return scanAttendance(r.pool.QueryRow(ctx, attendanceSelect+` WHERE a.event_id = $1 AND a.user_id = $2`, eventID, userID))
}

func (r *pgEventRepository) FindAttendanceByID(ctx context.Context, id string) (*Attendance, error) {
	return scanAttendance(r.pool.QueryRow(ctx, attendanceSelect+` WHERE a.id = $1`, id))
}

func (r *pgEventRepository) FindAttendancesByEvent(ctx context.Context, eventID string) ([]*Attendance, error) {
	rows, err := r.pool.Query(ctx, attendanceSelect+` WHERE a.event_id = $1 ORDER BY a.registered_at`, eventID)
	if err != nil {
		return nil, err
	}
	return collectAttendances(rows)
}

func (r *pgEventRepository) FindAttendancesByUser(ctx context.Context, userID string) ([]*Attendance, error) {
	rows, err := r.pool.Query(ctx, attendanceSelect+` WHERE a.user_id = $1 ORDER BY a.registered_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	atts, err := collectAttendances(rows)
	if err != nil {
		return nil, err
	}
	for _, a := range atts {
		if a.Event, err = r.FindByID(ctx, a.EventID); err != nil {
			return nil, err
		}
	}
	return atts, nil
}

func (r *pgEventRepository) DeleteAttendance(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM attendances WHERE id = $1`, id)
	return err
}

func (r *pgEventRepository) MarkAttended(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE attendances SET attended = TRUE, attended_at = $2
		WHERE id = $1 AND NOT attended
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgEventRepository) CheckIn(ctx context.Context, id, staffID string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE attendances
		SET checked_in = TRUE, checked_in_at = $3, checked_in_by = $2,
		    attended = TRUE, attended_at = COALESCE(attended_at, $3)
		WHERE id = $1 AND NOT checked_in
	`, id, staffID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgEventRepository) BulkCheckIn(ctx context.Context, eventID string, userIDs []string, staffID string, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE attendances
		SET checked_in = TRUE, checked_in_at = $4, checked_in_by = $3,
		    attended = TRUE, attended_at = COALESCE(attended_at, $4)
		WHERE event_id = $1 AND user_id = ANY($2::uuid[]) AND NOT checked_in
	`, eventID, userIDs, staffID, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
