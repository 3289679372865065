package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

type Profile struct {
	ID          string
	UserID      string
	FullName    string
	Bio         string
	Verified    bool
	PhoneNumber string
	Location    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership is one row of a profile's tier ledger. A row is open while
// EndDate is nil; once closed it is never written again.
type Membership struct {
	ID             string
	ProfileID      string
	MembershipType types.MembershipType
	StartDate      time.Time
	EndDate        *time.Time
	IsApproved     bool
	ApprovedBy     *string
	ApprovedDate   *time.Time
}

// IsCurrent reports whether m is the profile's active tier.
func (m *Membership) IsCurrent() bool {
	return m.IsApproved && m.EndDate == nil
}

// IsPending reports whether m is an unanswered upgrade request.
func (m *Membership) IsPending() bool {
	return !m.IsApproved && m.EndDate == nil
}

type Interest struct {
	ID           string
	ProfileID    string
	InterestType types.InterestType
	StartDate    time.Time
	EndDate      *time.Time
}

// PendingMembership pairs a request with the requester, for the admin queue.
type PendingMembership struct {
	Membership *Membership
	Profile    *Profile
	User       *User
}

// ProfileRepository owns profiles and the two ledgers hanging off them.
type ProfileRepository interface {
	// CreateWithDefaults inserts the profile, its opening interests and an
	// approved membership of the given tier as one unit.
	CreateWithDefaults(ctx context.Context, p *Profile, interests []types.InterestType, tier types.MembershipType) error
	FindByID(ctx context.Context, id string) (*Profile, error)
	FindByUserID(ctx context.Context, userID string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	ListMembers(ctx context.Context) ([]*Profile, error)

	CreateMembershipRequest(ctx context.Context, m *Membership) error
	FindMembershipByID(ctx context.Context, id string) (*Membership, error)
	FindCurrentMembership(ctx context.Context, profileID string) (*Membership, error)
	FindPendingMembership(ctx context.Context, profileID string) (*Membership, error)
	FindMembershipHistory(ctx context.Context, profileID string) ([]*Membership, error)
	FindAllPendingMemberships(ctx context.Context) ([]*PendingMembership, error)
	// ApproveMembership closes the profile's other open approved rows at
	// `at` and approves id, atomically. approved is false when the row was
	// already approved and nothing changed.
	ApproveMembership(ctx context.Context, id, approverID string, at time.Time) (m *Membership, approved bool, err error)
	// DeletePendingMembership removes the open request, if any.
	DeletePendingMembership(ctx context.Context, profileID string) (bool, error)

	FindCurrentInterests(ctx context.Context, profileID string) ([]*Interest, error)
	FindInterestHistory(ctx context.Context, profileID string) ([]*Interest, error)
	// SetInterests closes open interests not in set and opens the ones that
	// are missing, atomically.
	SetInterests(ctx context.Context, profileID string, set []types.InterestType, at time.Time) (opened, closed int, err error)
}

type pgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &pgProfileRepository{pool: pool}
}

const profileColumns = `id, user_id, full_name, bio, verified, phone_number, location, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.FullName, &p.Bio, &p.Verified,
		&p.PhoneNumber, &p.Location, &p.CreatedAt, &p.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

const membershipColumns = `id, profile_id, membership_type, start_date, end_date, is_approved, approved_by, approved_date`

func scanMembership(row pgx.Row) (*Membership, error) {
	m := &Membership{}
	err := row.Scan(
		&m.ID, &m.ProfileID, &m.MembershipType, &m.StartDate, &m.EndDate,
		&m.IsApproved, &m.ApprovedBy, &m.ApprovedDate,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *pgProfileRepository) CreateWithDefaults(ctx context.Context, p *Profile, interests []types.InterestType, tier types.MembershipType) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO profiles (user_id, full_name, bio, verified, phone_number, location)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			p.UserID, p.FullName, p.Bio, p.Verified, p.PhoneNumber, p.Location,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return mapWriteErr(err)
		}

		for _, it := range interests {
			_, err := tx.Exec(ctx,
				`INSERT INTO interests (profile_id, interest_type, start_date) VALUES ($1, $2, $3)`,
				p.ID, it, p.CreatedAt,
			)
			if err != nil {
				return mapWriteErr(err)
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO memberships (profile_id, membership_type, start_date, is_approved, approved_date)
			VALUES ($1, $2, $3, TRUE, $3)
		`, p.ID, tier, p.CreatedAt)
		return mapWriteErr(err)
	})
}

func (r *pgProfileRepository) FindByID(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

func (r *pgProfileRepository) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, userID))
}

func (r *pgProfileRepository) Update(ctx context.Context, p *Profile) error {
	query := `
		UPDATE profiles
		SET full_name = $2, bio = $3, verified = $4, phone_number = $5, location = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	return r.pool.QueryRow(ctx, query,
		p.ID, p.FullName, p.Bio, p.Verified, p.PhoneNumber, p.Location,
	).Scan(&p.UpdatedAt)
}

func (r *pgProfileRepository) ListMembers(ctx context.Context) ([]*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY full_name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *pgProfileRepository) CreateMembershipRequest(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO memberships (profile_id, membership_type, start_date, is_approved)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id
	`
	m.IsApproved = false
	err := r.pool.QueryRow(ctx, query, m.ProfileID, m.MembershipType, m.StartDate).Scan(&m.ID)
	return mapWriteErr(err)
}

func (r *pgProfileRepository) FindMembershipByID(ctx context.Context, id string) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1`
	return scanMembership(r.pool.QueryRow(ctx, query, id))
}

func (r *pgProfileRepository) FindCurrentMembership(ctx context.Context, profileID string) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + ` FROM memberships
		WHERE profile_id = $1 AND is_approved AND end_date IS NULL
	`
	return scanMembership(r.pool.QueryRow(ctx, query, profileID))
}

func (r *pgProfileRepository) FindPendingMembership(ctx context.Context, profileID string) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + ` FROM memberships
		WHERE profile_id = $1 AND NOT is_approved AND end_date IS NULL
	`
	return scanMembership(r.pool.QueryRow(ctx, query, profileID))
}

func (r *pgProfileRepository) FindMembershipHistory(ctx context.Context, profileID string) ([]*Membership, error) {
	query := `
		SELECT ` + membershipColumns + ` FROM memberships
		WHERE profile_id = $1
		ORDER BY start_date DESC
	`
	rows, err := r.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgProfileRepository) FindAllPendingMemberships(ctx context.Context) ([]*PendingMembership, error) {
	query := `
		SELECT m.id, m.profile_id, m.membership_type, m.start_date, m.end_date,
		       m.is_approved, m.approved_by, m.approved_date,
		       p.id, p.user_id, p.full_name, p.bio, p.verified, p.phone_number,
		       p.location, p.created_at, p.updated_at,
		       u.id, u.username, u.email
		FROM memberships m
		JOIN profiles p ON p.id = m.profile_id
		JOIN users u ON u.id = p.user_id
		WHERE NOT m.is_approved AND m.end_date IS NULL
		ORDER BY m.start_date
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PendingMembership
	for rows.Next() {
		m, p, u := &Membership{}, &Profile{}, &User{}
		if err := rows.Scan(
			&m.ID, &m.ProfileID, &m.MembershipType, &m.StartDate, &m.EndDate,
			&m.IsApproved, &m.ApprovedBy, &m.ApprovedDate,
			&p.ID, &p.UserID, &p.FullName, &p.Bio, &p.Verified, &p.PhoneNumber,
			&p.Location, &p.CreatedAt, &p.UpdatedAt,
			&u.ID, &u.Username, &u.Email,
		); err != nil {
			return nil, err
		}
		out = append(out, &PendingMembership{Membership: m, Profile: p, User: u})
	}
	return out, rows.Err()
}

func (r *pgProfileRepository) ApproveMembership(ctx context.Context, id, approverID string, at time.Time) (*Membership, bool, error) {
	var (
		m        *Membership
		approved bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		m, err = scanMembership(tx.QueryRow(ctx,
			`SELECT `+membershipColumns+` FROM memberships WHERE id = $1 FOR UPDATE`, id))
		if err != nil || m == nil {
			return err
		}
		if m.IsApproved {
			return nil
		}
		if m.EndDate != nil {
			return ErrClosed
		}

		// Serialise concurrent approvals for the same profile.
		if _, err := tx.Exec(ctx, `SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, m.ProfileID); err != nil {
			return err
		}

		// Close first: the one-current index would reject two open approved rows.
		if _, err := tx.Exec(ctx, `
			UPDATE memberships SET end_date = $2
			WHERE profile_id = $1 AND is_approved AND end_date IS NULL AND id <> $3
		`, m.ProfileID, at, m.ID); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE memberships SET is_approved = TRUE, approved_by = $2, approved_date = $3
			WHERE id = $1
		`, m.ID, approverID, at); err != nil {
			return mapWriteErr(err)
		}

		m.IsApproved = true
		m.ApprovedBy = &approverID
		m.ApprovedDate = &at
		approved = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return m, approved, nil
}

func (r *pgProfileRepository) DeletePendingMembership(ctx context.Context, profileID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM memberships
		WHERE profile_id = $1 AND NOT is_approved AND end_date IS NULL
	`, profileID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanInterests(rows pgx.Rows) ([]*Interest, error) {
	defer rows.Close()
	var out []*Interest
	for rows.Next() {
		i := &Interest{}
		if err := rows.Scan(&i.ID, &i.ProfileID, &i.InterestType, &i.StartDate, &i.EndDate); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *pgProfileRepository) FindCurrentInterests(ctx context.Context, profileID string) ([]*Interest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, profile_id, interest_type, start_date, end_date
		FROM interests WHERE profile_id = $1 AND end_date IS NULL
		ORDER BY interest_type
	`, profileID)
	if err != nil {
		return nil, err
	}
	return scanInterests(rows)
}

func (r *pgProfileRepository) FindInterestHistory(ctx context.Context, profileID string) ([]*Interest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, profile_id, interest_type, start_date, end_date
		FROM interests WHERE profile_id = $1
		ORDER BY start_date DESC
	`, profileID)
	if err != nil {
		return nil, err
	}
	return scanInterests(rows)
}

func (r *pgProfileRepository) SetInterests(ctx context.Context, profileID string, set []types.InterestType, at time.Time) (int, int, error) {
	var opened, closed int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		names := make([]string, len(set))
		for i, it := range set {
			names[i] = string(it)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE interests SET end_date = $2
			WHERE profile_id = $1 AND end_date IS NULL AND NOT (interest_type = ANY($3))
		`, profileID, at, names)
		if err != nil {
			return err
		}
		closed = int(tag.RowsAffected())

		tag, err = tx.Exec(ctx, `
			INSERT INTO interests (profile_id, interest_type, start_date)
			SELECT $1, t, $2 FROM UNNEST($3::text[]) AS t
			WHERE NOT EXISTS (
				SELECT 1 FROM interests
				WHERE profile_id = $1 AND interest_type = t AND end_date IS NULL
			)
			ON CONFLICT DO NOTHING
		`, profileID, at, names)
		if err != nil {
			return err
		}
		opened = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return opened, closed, nil
}
