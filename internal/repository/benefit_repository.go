package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

type Benefit struct {
	ID                      string
	Name                    string
	Description             string
	MembershipLevelRequired types.AccessLevel
	IsActive                bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (b *Benefit) Active() bool                     { return b.IsActive }
func (b *Benefit) RequiredLevel() types.AccessLevel { return b.MembershipLevelRequired }

// UserBenefit is a member's activation of a benefit. There is at most one
// per (user, benefit); reactivation refreshes it in place.
type UserBenefit struct {
	ID          string
	UserID      string
	BenefitID   string
	IsActive    bool
	ActivatedAt time.Time
	ExpiresAt   *time.Time
	Benefit     *Benefit
}

// Live reports whether the activation can be used at now.
func (ub *UserBenefit) Live(now time.Time) bool {
	if !ub.IsActive {
		return false
	}
	return ub.ExpiresAt == nil || now.Before(*ub.ExpiresAt)
}

type BenefitUsageLog struct {
	ID        string
	UserID    string
	BenefitID string
	UsedAt    time.Time
	Notes     *string
	LoggedBy  *string
	Benefit   *Benefit
}

type BenefitFilter struct {
	Levels     []types.AccessLevel // restrict to these levels when non-empty
	ActiveOnly bool
}

type UsageFilter struct {
	UserID    string
	BenefitID string
	Limit     int
}

type BenefitRepository interface {
	Create(ctx context.Context, b *Benefit) error
	FindByID(ctx context.Context, id string) (*Benefit, error)
	List(ctx context.Context, f BenefitFilter) ([]*Benefit, error)
	Update(ctx context.Context, b *Benefit) error
	Delete(ctx context.Context, id string) error

	// Activate inserts or refreshes the (user, benefit) activation. created
	// is false when an existing row was refreshed.
	Activate(ctx context.Context, ub *UserBenefit) (created bool, err error)
	FindUserBenefit(ctx context.Context, userID, benefitID string) (*UserBenefit, error)
	FindUserBenefits(ctx context.Context, userID string) ([]*UserBenefit, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)

	LogUsage(ctx context.Context, l *BenefitUsageLog) error
	FindUsage(ctx context.Context, f UsageFilter) ([]*BenefitUsageLog, error)
}

type pgBenefitRepository struct {
	pool *pgxpool.Pool
}

func NewBenefitRepository(pool *pgxpool.Pool) BenefitRepository {
	return &pgBenefitRepository{pool: pool}
}

const benefitColumns = `id, name, description, membership_level_required, is_active, created_at, updated_at`

func scanBenefit(row pgx.Row) (*Benefit, error) {
	b := &Benefit{}
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.MembershipLevelRequired, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *pgBenefitRepository) Create(ctx context.Context, b *Benefit) error {
	query := `
		INSERT INTO benefits (name, description, membership_level_required, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query, b.Name, b.Description, b.MembershipLevelRequired, b.IsActive).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *pgBenefitRepository) FindByID(ctx context.Context, id string) (*Benefit, error) {
	return scanBenefit(r.pool.QueryRow(ctx, `SELECT `+benefitColumns+` FROM benefits WHERE id = $1`, id))
}

func (r *pgBenefitRepository) List(ctx context.Context, f BenefitFilter) ([]*Benefit, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	if len(f.Levels) > 0 {
		args = append(args, levelStrings(f.Levels))
		where = append(where, fmt.Sprintf("membership_level_required = ANY($%d)", len(args)))
	}

	query := `SELECT ` + benefitColumns + ` FROM benefits`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Benefit
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgBenefitRepository) Update(ctx context.Context, b *Benefit) error {
	query := `
		UPDATE benefits
		SET name = $2, description = $3, membership_level_required = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	return r.pool.QueryRow(ctx, query, b.ID, b.Name, b.Description, b.MembershipLevelRequired, b.IsActive).
		Scan(&b.UpdatedAt)
}

func (r *pgBenefitRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM benefits WHERE id = $1`, id)
	return err
}

func (r *pgBenefitRepository) Activate(ctx context.Context, ub *UserBenefit) (bool, error) {
	query := `
		INSERT INTO user_benefits (user_id, benefit_id, is_active, activated_at, expires_at)
		VALUES ($1, $2, TRUE, $3, $4)
		ON CONFLICT (user_id, benefit_id)
		DO UPDATE SET is_active = TRUE, expires_at = EXCLUDED.expires_at
		RETURNING id, activated_at, (xmax = 0) AS inserted
	`
	var created bool
	err := r.pool.QueryRow(ctx, query, ub.UserID, ub.BenefitID, ub.ActivatedAt, ub.ExpiresAt).
		Scan(&ub.ID, &ub.ActivatedAt, &created)
	if err != nil {
		return false, err
	}
	ub.IsActive = true
	return created, nil
}

const userBenefitSelect = `
	SELECT ub.id, ub.user_id, ub.benefit_id, ub.is_active, ub.activated_at, ub.expires_at,
	       b.id, b.name, b.description, b.membership_level_required, b.is_active, b.created_at, b.updated_at
	FROM user_benefits ub
	JOIN benefits b ON b.id = ub.benefit_id
`

func scanUserBenefit(row pgx.Row) (*UserBenefit, error) {
	ub := &UserBenefit{Benefit: &Benefit{}}
	b := ub.Benefit
	err := row.Scan(
		&ub.ID, &ub.UserID, &ub.BenefitID, &ub.IsActive, &ub.ActivatedAt, &ub.ExpiresAt,
		&b.ID, &b.Name, &b.Description, &b.MembershipLevelRequired, &b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ub, nil
}

func (r *pgBenefitRepository) FindUserBenefit(ctx context.Context, userID, benefitID string) (*UserBenefit, error) {
	return scanUserBenefit(r.pool.QueryRow(ctx,
		userBenefitSelect+` WHERE ub.user_id = $1 AND ub.benefit_id = $2`, userID, benefitID))
}

func (r *pgBenefitRepository) FindUserBenefits(ctx context.Context, userID string) ([]*UserBenefit, error) {
	rows, err := r.pool.Query(ctx, userBenefitSelect+` WHERE ub.user_id = $1 ORDER BY ub.activated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*UserBenefit
	for rows.Next() {
		ub, err := scanUserBenefit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ub)
	}
	return out, rows.Err()
}

func (r *pgBenefitRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_benefits SET is_active = FALSE
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgBenefitRepository) LogUsage(ctx context.Context, l *BenefitUsageLog) error {
	query := `
		INSERT INTO benefit_usage_logs (user_id, benefit_id, used_at, notes, logged_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query, l.UserID, l.BenefitID, l.UsedAt, l.Notes, l.LoggedBy).Scan(&l.ID)
}

func (r *pgBenefitRepository) FindUsage(ctx context.Context, f UsageFilter) ([]*BenefitUsageLog, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("l.user_id = $%d", len(args)))
	}
	if f.BenefitID != "" {
		args = append(args, f.BenefitID)
		where = append(where, fmt.Sprintf("l.benefit_id = $%d", len(args)))
	}

	query := `
		SELECT l.id, l.user_id, l.benefit_id, l.used_at, l.notes, l.logged_by, b.name
		FROM benefit_usage_logs l
		JOIN benefits b ON b.id = l.benefit_id
	`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY l.used_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*BenefitUsageLog
	for rows.Next() {
		l := &BenefitUsageLog{Benefit: &Benefit{}}
		if err := rows.Scan(&l.ID, &l.UserID, &l.BenefitID, &l.UsedAt, &l.Notes, &l.LoggedBy, &l.Benefit.Name); err != nil {
			return nil, err
		}
		l.Benefit.ID = l.BenefitID
		out = append(out, l)
	}
	return out, rows.Err()
}

func levelStrings(levels []types.AccessLevel) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}
