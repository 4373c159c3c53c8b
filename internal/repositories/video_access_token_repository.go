package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/models"
)

// videoAccessTokenRepository implements playback token record operations
type videoAccessTokenRepository struct {
	db *sql.DB
}

// NewVideoAccessTokenRepository creates a new video access token repository
func NewVideoAccessTokenRepository(db *sql.DB) *videoAccessTokenRepository {
	return &videoAccessTokenRepository{
		db: db,
	}
}

// Create inserts a new token record with used_at unset
func (r *videoAccessTokenRepository) Create(ctx context.Context, record *models.VideoAccessToken) error {
	query := `
		INSERT INTO video_access_tokens (token_hash, lesson_id, subject_id, expires_at, request_origin, request_agent)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.TokenHash,
		record.LessonID,
		record.SubjectID,
		record.ExpiresAt,
		record.RequestOrigin,
		record.RequestAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to create token record: %w", err)
	}

	return nil
}

// GetByHash retrieves a token record by its hash
func (r *videoAccessTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.VideoAccessToken, error) {
	query := `
		SELECT lesson_id, subject_id, expires_at, used_at, request_origin, request_agent, created_at
		FROM video_access_tokens
		WHERE token_hash = ?
		LIMIT 1
	`

	record := &models.VideoAccessToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&record.LessonID,
		&record.SubjectID,
		&record.ExpiresAt,
		&record.UsedAt,
		&record.RequestOrigin,
		&record.RequestAgent,
		&record.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("token record not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token record: %w", err)
	}

	record.TokenHash = tokenHash
	return record, nil
}

// MarkUsed stamps used_at for the given token hash, only if it is not already
// set. Returns true if this call claimed the token. The conditional update is
// the single-use check-and-set: two concurrent calls cannot both succeed.
func (r *videoAccessTokenRepository) MarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) (bool, error) {
	query := `
		UPDATE video_access_tokens
		SET used_at = ?
		WHERE token_hash = ? AND used_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, usedAt, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to mark token used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// DeleteExpired removes token records whose expiry is older than the cutoff.
// Returns the number of rows removed.
func (r *videoAccessTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM video_access_tokens WHERE expires_at < ?`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired token records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
