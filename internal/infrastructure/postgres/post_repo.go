package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
)

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

const postColumns = `id, owner_id, image_url, caption, status, scheduled_at,
	media_id, error_message, origin_ref, created_at, updated_at`

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	query := `
		INSERT INTO posts (
			id, owner_id, image_url, caption, status, scheduled_at, origin_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + postColumns

	row := r.pool.QueryRow(ctx, query,
		post.ID,
		post.OwnerID,
		post.ImageURL,
		post.Caption,
		post.Status,
		post.ScheduledAt,
		post.OriginRef,
	)

	created, err := scanPost(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicatePost
		}
		return nil, err
	}
	return created, nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.pool.QueryRow(ctx, query, id))
}

func (r *PostRepository) ListByOwner(ctx context.Context, ownerID string, status domain.Status) ([]*domain.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE owner_id = $1
		ORDER BY scheduled_at ASC`
	args := []any{ownerID}

	if status != "" {
		query = `SELECT ` + postColumns + `
			FROM posts
			WHERE owner_id = $1 AND status = $2
			ORDER BY scheduled_at ASC`
		args = append(args, status)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *PostRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Post, error) {
	// Oldest-due first so a backlog drains in fair order.
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// MarkPublished transitions scheduled -> published. The status guard in the
// WHERE clause makes the transition atomic: a post already cancelled or
// failed is left untouched and the method reports false.
func (r *PostRepository) MarkPublished(ctx context.Context, id, mediaID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts
		SET status = 'published', media_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`, id, mediaID)
	if err != nil {
		return false, fmt.Errorf("mark published: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostRepository) MarkFailed(ctx context.Context, id, errorMessage string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`, id, errorMessage)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostRepository) Cancel(ctx context.Context, id, ownerID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = 'scheduled'`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("cancel post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.ImageURL, &p.Caption, &p.Status, &p.ScheduledAt,
		&p.MediaID, &p.ErrorMessage, &p.OriginRef, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]*domain.Post, error) {
	var posts []*domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
