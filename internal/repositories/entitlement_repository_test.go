package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEntitlementTestRepository creates an entitlement repository with a mock database
func setupEntitlementTestRepository(t *testing.T) (*entitlementRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewEntitlementRepository(db)

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

func TestEntitlementRepository_GetLessonMedia(t *testing.T) {
	tests := []struct {
		name          string
		lessonID      int
		setupMock     func(sqlmock.Sqlmock)
		expectedError bool
		expectedMedia string
	}{
		{
			name:     "success",
			lessonID: 42,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"course_id", "media_id"}).
					AddRow(9, "vid-0001")
				mock.ExpectQuery(`SELECT course_id, COALESCE\(media_id, ''\)`).
					WithArgs(42).
					WillReturnRows(rows)
			},
			expectedMedia: "vid-0001",
		},
		{
			name:     "lesson without media",
			lessonID: 43,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"course_id", "media_id"}).
					AddRow(9, "")
				mock.ExpectQuery(`SELECT course_id, COALESCE\(media_id, ''\)`).
					WithArgs(43).
					WillReturnRows(rows)
			},
			expectedMedia: "",
		},
		{
			name:     "lesson not found",
			lessonID: 99,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT course_id, COALESCE\(media_id, ''\)`).
					WithArgs(99).
					WillReturnError(sql.ErrNoRows)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupEntitlementTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			media, err := repo.GetLessonMedia(context.Background(), tt.lessonID)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, media)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.lessonID, media.LessonID)
				assert.Equal(t, tt.expectedMedia, media.MediaID)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEntitlementRepository_HasAccess(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError bool
		expected      bool
	}{
		{
			name: "subject has access",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"allowed"}).AddRow(true)
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(9, 7, 9, 7).
					WillReturnRows(rows)
			},
			expected: true,
		},
		{
			name: "subject lacks access",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"allowed"}).AddRow(false)
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(9, 7, 9, 7).
					WillReturnRows(rows)
			},
			expected: false,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(9, 7, 9, 7).
					WillReturnError(errors.New("database error"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupEntitlementTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			allowed, err := repo.HasAccess(context.Background(), 7, 9)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, allowed)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
