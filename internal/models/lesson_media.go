package models

// LessonMedia links a lesson to its playable video on the backing host.
// The lessons table is owned by the catalog service; this service only reads it.
type LessonMedia struct {
	LessonID int    `json:"lessonId" db:"lesson_id"`
	CourseID int    `json:"courseId" db:"course_id"`
	MediaID  string `json:"mediaId" db:"media_id"`
}
