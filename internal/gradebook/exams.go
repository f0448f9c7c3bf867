package gradebook

import (
	"context"

	"github.com/mind-engage/mindengage-grades/internal/exam"
)

// AttemptResults reads graded exam attempts out of an exam store.
type AttemptResults struct {
	Store exam.Store
}

func (a AttemptResults) GradedExamAttempts(ctx context.Context, studentID, courseID string) ([]ExamResult, error) {
	attempts, err := a.Store.ListGradedAttempts(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]ExamResult, 0, len(attempts))
	for _, at := range attempts {
		out = append(out, ExamResult{ExamID: at.ExamID, Score: at.Score, TotalPoints: float64(at.TotalPoints)})
	}
	return out, nil
}
