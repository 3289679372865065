package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// Community Models
// ============================================

type Discussion struct {
	ID           string
	Title        string
	AuthorID     string
	RepliesCount int
	CreatedAt    time.Time
	Author       *User
}

type Reply struct {
	ID           string
	DiscussionID string
	AuthorID     string
	Content      string
	CreatedAt    time.Time
	Likes        int
	Dislikes     int
	// Reaction of the viewing user: nil, true (like) or false (dislike).
	MyReaction *bool
	Author     *User
}

type Message struct {
	ID              string
	SenderID        string
	RecipientID     string
	Content         string
	ParentMessageID *string
	CreatedAt       time.Time
	Likes           int
	LikedByMe       bool
	Sender          *User
	Recipient       *User
}

// ============================================
// Community Repository Interface
// ============================================

type CommunityRepository interface {
	CreateDiscussion(ctx context.Context, d *Discussion) error
	FindDiscussionByID(ctx context.Context, id string) (*Discussion, error)
	ListDiscussions(ctx context.Context) ([]*Discussion, error)

	// CreateReply adds the reply and bumps the discussion's replies count.
	CreateReply(ctx context.Context, r *Reply) error
	FindReplyByID(ctx context.Context, id, viewerID string) (*Reply, error)
	FindReplies(ctx context.Context, discussionID, viewerID string) ([]*Reply, error)
	// SetReaction stores like (true) or dislike (false). Passing the
	// reaction the user already holds removes it.
	SetReaction(ctx context.Context, replyID, userID string, like bool) error

	CreateMessage(ctx context.Context, m *Message) error
	FindMessageByID(ctx context.Context, id, viewerID string) (*Message, error)
	FindMessagesForUser(ctx context.Context, userID string) ([]*Message, error)
	// ToggleMessageLike returns the new liked state.
	ToggleMessageLike(ctx context.Context, messageID, userID string) (bool, error)
}

type pgCommunityRepository struct {
	pool *pgxpool.Pool
}

func NewCommunityRepository(pool *pgxpool.Pool) CommunityRepository {
	return &pgCommunityRepository{pool: pool}
}

// ============================================
// Discussions
// ============================================

func (r *pgCommunityRepository) CreateDiscussion(ctx context.Context, d *Discussion) error {
	query := `
		INSERT INTO discussions (title, author_id)
		VALUES ($1, $2)
		RETURNING id, replies_count, created_at
	`
	return r.pool.QueryRow(ctx, query, d.Title, d.AuthorID).Scan(&d.ID, &d.RepliesCount, &d.CreatedAt)
}

const discussionSelect = `
	SELECT d.id, d.title, d.author_id, d.replies_count, d.created_at, u.username
	FROM discussions d
	JOIN users u ON u.id = d.author_id
`

func scanDiscussion(row pgx.Row) (*Discussion, error) {
	d := &Discussion{Author: &User{}}
	err := row.Scan(&d.ID, &d.Title, &d.AuthorID, &d.RepliesCount, &d.CreatedAt, &d.Author.Username)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Author.ID = d.AuthorID
	return d, nil
}

func (r *pgCommunityRepository) FindDiscussionByID(ctx context.Context, id string) (*Discussion, error) {
	return scanDiscussion(r.pool.QueryRow(ctx, discussionSelect+` WHERE d.id = $1`, id))
}

func (r *pgCommunityRepository) ListDiscussions(ctx context.Context) ([]*Discussion, error) {
	rows, err := r.pool.Query(ctx, discussionSelect+` ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Discussion
	for rows.Next() {
		d, err := scanDiscussion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ============================================
// Replies
// ============================================

func (r *pgCommunityRepository) CreateReply(ctx context.Context, reply *Reply) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO replies (discussion_id, author_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, reply.DiscussionID, reply.AuthorID, reply.Content).Scan(&reply.ID, &reply.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE discussions SET replies_count = replies_count + 1 WHERE id = $1`, reply.DiscussionID)
		return err
	})
}

const replySelect = `
	SELECT r.id, r.discussion_id, r.author_id, r.content, r.created_at, u.username,
	       (SELECT COUNT(*) FROM reply_reactions x WHERE x.reply_id = r.id AND x.liked),
	       (SELECT COUNT(*) FROM reply_reactions x WHERE x.reply_id = r.id AND NOT x.liked),
	       (SELECT x.liked FROM reply_reactions x WHERE x.reply_id = r.id AND x.user_id::text = $1)
	FROM replies r
	JOIN users u ON u.id = r.author_id
`

func scanReply(row pgx.Row) (*Reply, error) {
	rp := &Reply{Author: &User{}}
	err := row.Scan(
		&rp.ID, &rp.DiscussionID, &rp.AuthorID, &rp.Content, &rp.CreatedAt, &rp.Author.Username,
		&rp.Likes, &rp.Dislikes, &rp.MyReaction,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rp.Author.ID = rp.AuthorID
	return rp, nil
}

func (r *pgCommunityRepository) FindReplyByID(ctx context.Context, id, viewerID string) (*Reply, error) {
	return scanReply(r.pool.QueryRow(ctx, replySelect+` WHERE r.id = $2`, viewerID, id))
}

func (r *pgCommunityRepository) FindReplies(ctx context.Context, discussionID, viewerID string) ([]*Reply, error) {
	rows, err := r.pool.Query(ctx, replySelect+` WHERE r.discussion_id = $2 ORDER BY r.created_at`, viewerID, discussionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reply
	for rows.Next() {
		rp, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (r *pgCommunityRepository) SetReaction(ctx context.Context, replyID, userID string, like bool) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current *bool
		err := tx.QueryRow(ctx,
			`SELECT liked FROM reply_reactions WHERE reply_id = $1 AND user_id = $2 FOR UPDATE`,
			replyID, userID,
		).Scan(&current)
		if err != nil && !isNoRows(err) {
			return err
		}

		if current != nil && *current == like {
			_, err := tx.Exec(ctx, `DELETE FROM reply_reactions WHERE reply_id = $1 AND user_id = $2`, replyID, userID)
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO reply_reactions (reply_id, user_id, liked)
			VALUES ($1, $2, $3)
			ON CONFLICT (reply_id, user_id) DO UPDATE SET liked = EXCLUDED.liked
		`, replyID, userID, like)
		return err
	})
}

// ============================================
// Messages
// ============================================

func (r *pgCommunityRepository) CreateMessage(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (sender_id, recipient_id, content, parent_message_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query, m.SenderID, m.RecipientID, m.Content, m.ParentMessageID).
		Scan(&m.ID, &m.CreatedAt)
}

const messageSelect = `
	SELECT m.id, m.sender_id, m.recipient_id, m.content, m.parent_message_id, m.created_at,
	       s.username, t.username,
	       (SELECT COUNT(*) FROM message_likes l WHERE l.message_id = m.id),
	       EXISTS (SELECT 1 FROM message_likes l WHERE l.message_id = m.id AND l.user_id::text = $1)
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users t ON t.id = m.recipient_id
`

func scanMessage(row pgx.Row) (*Message, error) {
	m := &Message{Sender: &User{}, Recipient: &User{}}
	err := row.Scan(
		&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.ParentMessageID, &m.CreatedAt,
		&m.Sender.Username, &m.Recipient.Username, &m.Likes, &m.LikedByMe,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Sender.ID, m.Recipient.ID = m.SenderID, m.RecipientID
	return m, nil
}

func (r *pgCommunityRepository) FindMessageByID(ctx context.Context, id, viewerID string) (*Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, messageSelect+` WHERE m.id = $2`, viewerID, id))
}

func (r *pgCommunityRepository) FindMessagesForUser(ctx context.Context, userID string) ([]*Message, error) {
	rows, err := r.pool.Query(ctx,
		messageSelect+` WHERE m.sender_id::text = $1 OR m.recipient_id::text = $1 ORDER BY m.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgCommunityRepository) ToggleMessageLike(ctx context.Context, messageID, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM message_likes WHERE message_id = $1 AND user_id = $2`, messageID, userID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO message_likes (message_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, messageID, userID)
	if err != nil {
		return false, err
	}
	return true, nil
}
