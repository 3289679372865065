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

type DigitalContent struct {
	ID          string
	Title       string
	Description *string
	ContentType string
	AccessLevel types.AccessLevel
	URL         *string
	IsActive    bool
	Views       int
	Downloads   int
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *DigitalContent) Active() bool                     { return c.IsActive }
func (c *DigitalContent) RequiredLevel() types.AccessLevel { return c.AccessLevel }

type ContentProgress struct {
	ID                 string
	UserID             string
	ContentID          string
	ProgressPercentage int
	Completed          bool
	LastAccessed       time.Time
	Content            *DigitalContent
}

type ContentFilter struct {
	Levels      []types.AccessLevel
	ActiveOnly  bool
	ContentType string
}

type ContentRepository interface {
	Create(ctx context.Context, c *DigitalContent) error
	FindByID(ctx context.Context, id string) (*DigitalContent, error)
	List(ctx context.Context, f ContentFilter) ([]*DigitalContent, error)
	Update(ctx context.Context, c *DigitalContent) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) (int, error)
	IncrementDownloads(ctx context.Context, id string) (int, error)

	// UpsertProgress writes the (user, content) progress row, creating it
	// on first touch.
	UpsertProgress(ctx context.Context, p *ContentProgress) error
	FindProgress(ctx context.Context, userID, contentID string) (*ContentProgress, error)
	FindProgressByUser(ctx context.Context, userID string) ([]*ContentProgress, error)
}

type pgContentRepository struct {
	pool *pgxpool.Pool
}

func NewContentRepository(pool *pgxpool.Pool) ContentRepository {
	return &pgContentRepository{pool: pool}
}

const contentColumns = `id, title, description, content_type, access_level, url, is_active, views, downloads, created_by, created_at, updated_at`

func scanContent(row pgx.Row) (*DigitalContent, error) {
	c := &DigitalContent{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.ContentType, &c.AccessLevel, &c.URL,
		&c.IsActive, &c.Views, &c.Downloads, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *pgContentRepository) Create(ctx context.Context, c *DigitalContent) error {
	query := `
		INSERT INTO digital_content (title, description, content_type, access_level, url, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		c.Title, c.Description, c.ContentType, c.AccessLevel, c.URL, c.IsActive, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *pgContentRepository) FindByID(ctx context.Context, id string) (*DigitalContent, error) {
	return scanContent(r.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM digital_content WHERE id = $1`, id))
}

func (r *pgContentRepository) List(ctx context.Context, f ContentFilter) ([]*DigitalContent, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	if len(f.Levels) > 0 {
		args = append(args, levelStrings(f.Levels))
		where = append(where, fmt.Sprintf("access_level = ANY($%d)", len(args)))
	}
	if f.ContentType != "" {
		args = append(args, f.ContentType)
		where = append(where, fmt.Sprintf("content_type = $%d", len(args)))
	}

	query := `SELECT ` + contentColumns + ` FROM digital_content`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DigitalContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgContentRepository) Update(ctx context.Context, c *DigitalContent) error {
	query := `
		UPDATE digital_content
		SET title = $2, description = $3, content_type = $4, access_level = $5, url = $6,
		    is_active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	return r.pool.QueryRow(ctx, query,
		c.ID, c.Title, c.Description, c.ContentType, c.AccessLevel, c.URL, c.IsActive,
	).Scan(&c.UpdatedAt)
}

func (r *pgContentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM digital_content WHERE id = $1`, id)
	return err
}

func (r *pgContentRepository) IncrementViews(ctx context.Context, id string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `UPDATE digital_content SET views = views + 1 WHERE id = $1 RETURNING views`, id).Scan(&n)
	return n, err
}

func (r *pgContentRepository) IncrementDownloads(ctx context.Context, id string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `UPDATE digital_content SET downloads = downloads + 1 WHERE id = $1 RETURNING downloads`, id).Scan(&n)
	return n, err
}

func (r *pgContentRepository) UpsertProgress(ctx context.Context, p *ContentProgress) error {
	query := `
		INSERT INTO content_progress (user_id, content_id, progress_percentage, completed, last_accessed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, content_id)
		DO UPDATE SET progress_percentage = EXCLUDED.progress_percentage,
		              completed = EXCLUDED.completed,
		              last_accessed = EXCLUDED.last_accessed
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		p.UserID, p.ContentID, p.ProgressPercentage, p.Completed, p.LastAccessed,
	).Scan(&p.ID)
}

const progressSelect = `
	SELECT p.id, p.user_id, p.content_id, p.progress_percentage, p.completed, p.last_accessed,
	       c.id, c.title, c.description, c.content_type, c.access_level, c.url,
	       c.is_active, c.views, c.downloads, c.created_by, c.created_at, c.updated_at
	FROM content_progress p
	JOIN digital_content c ON c.id = p.content_id
`

func scanProgress(row pgx.Row) (*ContentProgress, error) {
	p := &ContentProgress{Content: &DigitalContent{}}
	c := p.Content
	err := row.Scan(
		&p.ID, &p.UserID, &p.ContentID, &p.ProgressPercentage, &p.Completed, &p.LastAccessed,
		&c.ID, &c.Title, &c.Description, &c.ContentType, &c.AccessLevel, &c.URL,
		&c.IsActive, &c.Views, &c.Downloads, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgContentRepository) FindProgress(ctx context.Context, userID, contentID string) (*ContentProgress, error) {
	return scanProgress(r.pool.QueryRow(ctx, progressSelect+` WHERE p.user_id = $1 AND p.content_id = $2`, userID, contentID))
}

func (r *pgContentRepository) FindProgressByUser(ctx context.Context, userID string) ([]*ContentProgress, error) {
	rows, err := r.pool.Query(ctx, progressSelect+` WHERE p.user_id = $1 ORDER BY p.last_accessed DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ContentProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
