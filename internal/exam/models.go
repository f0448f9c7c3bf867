package exam

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-grades/internal/grading"
	"github.com/mind-engage/mindengage-grades/internal/validate"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusGraded     Status = "graded" // terminal
)

type Question struct {
	ID      string         `json:"id" validate:"required"`
	Kind    grading.Kind   `json:"kind" validate:"required,oneof=multiple_choice true_false short_answer"`
	Prompt  string         `json:"prompt,omitempty"`
	Options []string       `json:"options,omitempty"`
	Key     grading.Answer `json:"key"` // stripped in StudentView
	Points  int            `json:"points" validate:"gte=0"`
}

type Exam struct {
	ID          string     `json:"id" validate:"required"`
	CourseID    string     `json:"course_id" validate:"required"`
	Title       string     `json:"title"`
	TotalPoints int        `json:"total_points" validate:"gt=0"`
	Questions   []Question `json:"questions" validate:"min=1,dive"`

	CreatedAt      time.Time  `json:"created_at,omitempty"`
	FirstAttemptAt *time.Time `json:"first_attempt_at,omitempty"`
}

// Attempt is one student's single try at one exam.
type Attempt struct {
	ID              string                    `json:"id"`
	ExamID          string                    `json:"exam_id"`
	StudentID       string                    `json:"student_id"`
	Status          Status                    `json:"status"`
	Answers         map[string]grading.Answer `json:"answers,omitempty"`
	AutoScore       float64                   `json:"auto_score"`
	TotalAutoPoints int                       `json:"total_auto_points"`
	ManualScore     *float64                  `json:"manual_score,omitempty"`
	Score           float64                   `json:"score"`
	IsGraded        bool                      `json:"is_graded"`
	Feedback        string                    `json:"feedback,omitempty"`
	GradedBy        string                    `json:"graded_by,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`
}

// GradedAttempt is the view of a finished attempt used for course grades.
type GradedAttempt struct {
	AttemptID   string
	ExamID      string
	Score       float64
	TotalPoints int
}

// ManualGrade is a grader's verdict on the subjective part of an attempt.
type ManualGrade struct {
	Score    float64 `json:"manual_score"`
	Feedback string  `json:"feedback,omitempty"`
	GradedBy string  `json:"-"`
}

// Validate checks an exam definition: unique question ids, points summing
// to TotalPoints, and answer keys that fit each question kind.
func (e Exam) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	seen := make(map[string]bool, len(e.Questions))
	sum := 0
	for _, q := range e.Questions {
		if seen[q.ID] {
			return errors.Wrapf(grading.ErrInvalidInput, "duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		sum += q.Points

		switch q.Kind {
		case grading.MultipleChoice:
			i, ok := q.Key.ChoiceIndex()
			if !ok || i >= len(q.Options) {
				return errors.Wrapf(grading.ErrInvalidInput, "question %q needs a key among its %d options", q.ID, len(q.Options))
			}
		case grading.TrueFalse:
			if _, ok := q.Key.Truth(); !ok {
				return errors.Wrapf(grading.ErrInvalidInput, "question %q needs a true/false key", q.ID)
			}
		case grading.ShortAnswer:
			if !q.Key.IsZero() {
				return errors.Wrapf(grading.ErrInvalidInput, "short answer question %q cannot carry a key", q.ID)
			}
		}
	}
	if sum != e.TotalPoints {
		return errors.Wrapf(grading.ErrInvalidInput, "question points sum to %d, exam declares %d", sum, e.TotalPoints)
	}
	return nil
}

// sameScoring reports whether two definitions of one exam score attempts
// identically: same course, same total and the same questions and keys.
func (e Exam) sameScoring(o Exam) (bool, error) {
	if e.CourseID != o.CourseID || e.TotalPoints != o.TotalPoints {
		return false, nil
	}
	a, err := json.Marshal(e.Questions)
	if err != nil {
		return false, err
	}
	b, err := json.Marshal(o.Questions)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

// StudentView returns a copy without answer keys.
func (e Exam) StudentView() Exam {
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		qs[i].Key = grading.Answer{}
	}
	e.Questions = qs
	return e
}

func (e Exam) Question(id string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AutoPoints is the share of TotalPoints decided by objective questions.
func (e Exam) AutoPoints() int {
	n := 0
	for _, q := range e.Questions {
		if q.Kind.Objective() {
			n += q.Points
		}
	}
	return n
}

func (e Exam) HasShortAnswer() bool {
	for _, q := range e.Questions {
		if q.Kind == grading.ShortAnswer {
			return true
		}
	}
	return false
}

func (q Question) view() grading.Q {
	return grading.Q{Kind: q.Kind, Points: q.Points, Key: q.Key}
}
