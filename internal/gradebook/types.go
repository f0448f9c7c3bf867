package gradebook

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-grades/internal/grading"
)

type Method string

const (
	MethodWeightedAverage Method = "weighted_average"
	MethodSimpleAverage   Method = "simple_average"
	MethodManual          Method = "manual"
)

// Weights are category shares of the final grade, each 0..100. They need
// not sum to 100; present categories are renormalized.
type Weights struct {
	Method        Method  `json:"method,omitempty" validate:"omitempty,oneof=weighted_average simple_average"`
	Assignments   float64 `json:"assignments" validate:"gte=0,lte=100"`
	Exams         float64 `json:"exams" validate:"gte=0,lte=100"`
	Participation float64 `json:"participation" validate:"gte=0,lte=100"`
}

var DefaultWeights = Weights{Method: MethodWeightedAverage, Assignments: 40, Exams: 50, Participation: 10}

// Record is the current grade of one student in one course.
type Record struct {
	StudentID        string             `json:"student_id"`
	CourseID         string             `json:"course_id"`
	FinalGrade       float64            `json:"final_grade"`
	LetterGrade      grading.Letter     `json:"letter_grade"`
	GradePoints      float64            `json:"grade_points"`
	Method           Method             `json:"calculation_method"`
	AssignmentGrades map[string]float64 `json:"assignment_grades,omitempty"`
	ExamGrades       map[string]float64 `json:"exam_grades,omitempty"`
	CalculatedBy     string             `json:"calculated_by,omitempty"`
	CalculatedAt     time.Time          `json:"calculated_at"`
}

// Result is one entry of a course-wide batch: a record or the error that
// prevented it.
type Result struct {
	StudentID string  `json:"student_id"`
	Record    *Record `json:"record,omitempty"`
	Err       error   `json:"-"`
}

type Submission struct {
	AssignmentID string
	Grade        float64
	MaxScore     float64
}

type ExamResult struct {
	ExamID      string
	Score       float64
	TotalPoints float64
}

type Submissions interface {
	GradedSubmissions(ctx context.Context, studentID, courseID string) ([]Submission, error)
}

type ExamResults interface {
	GradedExamAttempts(ctx context.Context, studentID, courseID string) ([]ExamResult, error)
}

type Roster interface {
	EnrolledStudents(ctx context.Context, courseID string) ([]string, error)
}

// Records persists grade records, one per (student, course).
type Records interface {
	PersistGradeRecord(ctx context.Context, r Record) (Record, error)
	StudentRecords(ctx context.Context, studentID string) ([]Record, error)
}

// Participation yields participation scores already expressed as percentages.
type Participation interface {
	ParticipationScores(ctx context.Context, studentID, courseID string) ([]float64, error)
}

// Catalog reports a course's credit hours; 0 means not tracked.
type Catalog interface {
	CourseCredits(ctx context.Context, courseID string) (float64, error)
}

type Events interface {
	Emit(ctx context.Context, typ, key string, data any) error
}
