package models

import "time"

// VideoAccessToken represents the durable use-once record for a playback token.
// The raw token is never stored; the record is keyed by a SHA-256 hash of it.
type VideoAccessToken struct {
	TokenHash     string     `json:"tokenHash" db:"token_hash"`
	LessonID      int        `json:"lessonId" db:"lesson_id"`
	SubjectID     int        `json:"subjectId" db:"subject_id"`
	ExpiresAt     time.Time  `json:"expiresAt" db:"expires_at"`
	UsedAt        *time.Time `json:"usedAt" db:"used_at"`
	RequestOrigin string     `json:"requestOrigin" db:"request_origin"`
	RequestAgent  string     `json:"requestAgent" db:"request_agent"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
}
