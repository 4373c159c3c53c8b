package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/models"
)

// entitlementRepository answers entitlement and lesson-media queries against
// the catalog tables. Those tables are owned by the catalog service; this
// repository only reads them.
type entitlementRepository struct {
	db *sql.DB
}

// NewEntitlementRepository creates a new entitlement repository
func NewEntitlementRepository(db *sql.DB) *entitlementRepository {
	return &entitlementRepository{
		db: db,
	}
}

// GetLessonMedia retrieves the lesson's course and playable media identifier
func (r *entitlementRepository) GetLessonMedia(ctx context.Context, lessonID int) (*models.LessonMedia, error) {
	query := `
		SELECT course_id, COALESCE(media_id, '')
		FROM lessons
		WHERE id = ?
		LIMIT 1
	`

	media := &models.LessonMedia{}
	err := r.db.QueryRowContext(ctx, query, lessonID).Scan(
		&media.CourseID,
		&media.MediaID,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lesson %d not found: %w", lessonID, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson media: %w", err)
	}

	media.LessonID = lessonID
	return media, nil
}

// HasAccess reports whether the subject owns the course or holds an approved
// enrollment for it. Checked at issuance time, never from a cached result.
func (r *entitlementRepository) HasAccess(ctx context.Context, subjectID, courseID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM courses WHERE id = ? AND teacher_id = ?
		) OR EXISTS (
			SELECT 1 FROM enrollments WHERE course_id = ? AND user_id = ? AND status = 'approved'
		)
	`

	var allowed bool
	err := r.db.QueryRowContext(ctx, query, courseID, subjectID, courseID, subjectID).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("failed to check entitlement: %w", err)
	}

	return allowed, nil
}
