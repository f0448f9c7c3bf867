package exam

import (
	"context"
	"time"
)

// Store persists exams and attempts. Implementations must make
// CreateAttempt fail with ErrDuplicateAttempt when the (exam, student) pair
// already has an attempt, and UpdateAttempt fail with ErrConflict when the
// stored status is no longer from.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error) // full exam, keys included
	// MarkFirstAttempt sets the exam's first-attempt time unless already set.
	MarkFirstAttempt(ctx context.Context, examID string, at time.Time) error

	CreateAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	FindAttempt(ctx context.Context, examID, studentID string) (Attempt, error)
	UpdateAttempt(ctx context.Context, a Attempt, from Status) error

	ListGradedAttempts(ctx context.Context, studentID, courseID string) ([]GradedAttempt, error)
}
