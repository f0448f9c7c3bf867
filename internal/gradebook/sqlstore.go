package gradebook

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SQLStore serves the course-side collaborators from the shared schema.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

func (s *SQLStore) GradedSubmissions(ctx context.Context, studentID, courseID string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.assignment_id, s.grade, a.max_score
		FROM submissions s JOIN assignments a ON a.id = s.assignment_id
		WHERE s.student_id=$1 AND a.course_id=$2 AND s.status='graded' AND s.grade IS NOT NULL
		ORDER BY s.assignment_id`, studentID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.AssignmentID, &sub.Grade, &sub.MaxScore); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) EnrolledStudents(ctx context.Context, courseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT student_id FROM enrollments
		WHERE course_id=$1 AND status='enrolled' ORDER BY student_id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStore) ParticipationScores(ctx context.Context, studentID, courseID string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT score FROM participation
		WHERE course_id=$1 AND student_id=$2 ORDER BY recorded_at`, courseID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CourseCredits returns 0 for an unknown course.
func (s *SQLStore) CourseCredits(ctx context.Context, courseID string) (float64, error) {
	var c float64
	err := s.db.QueryRowContext(ctx, `SELECT credits FROM courses WHERE id=$1`, courseID).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return c, err
}

// PersistGradeRecord replaces the record for (student, course).
func (s *SQLStore) PersistGradeRecord(ctx context.Context, r Record) (Record, error) {
	aj, err := json.Marshal(nonNil(r.AssignmentGrades))
	if err != nil {
		return Record{}, err
	}
	ej, err := json.Marshal(nonNil(r.ExamGrades))
	if err != nil {
		return Record{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO grade_records
		(student_id,course_id,final_grade,letter_grade,grade_points,method,assignment_grades_json,exam_grades_json,calculated_by,calculated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (student_id, course_id) DO UPDATE SET
			final_grade=EXCLUDED.final_grade, letter_grade=EXCLUDED.letter_grade,
			grade_points=EXCLUDED.grade_points, method=EXCLUDED.method,
			assignment_grades_json=EXCLUDED.assignment_grades_json, exam_grades_json=EXCLUDED.exam_grades_json,
			calculated_by=EXCLUDED.calculated_by, calculated_at=EXCLUDED.calculated_at`,
		r.StudentID, r.CourseID, r.FinalGrade, string(r.LetterGrade), r.GradePoints, string(r.Method),
		string(aj), string(ej), r.CalculatedBy, r.CalculatedAt.UnixMilli())
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *SQLStore) StudentRecords(ctx context.Context, studentID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT student_id,course_id,final_grade,letter_grade,grade_points,method,
		assignment_grades_json,exam_grades_json,calculated_by,calculated_at
		FROM grade_records WHERE student_id=$1 ORDER BY course_id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			r      Record
			aj, ej string
			at     int64
		)
		if err := rows.Scan(&r.StudentID, &r.CourseID, &r.FinalGrade, &r.LetterGrade, &r.GradePoints, &r.Method,
			&aj, &ej, &r.CalculatedBy, &at); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(aj), &r.AssignmentGrades); err != nil {
			return nil, errors.Wrapf(err, "record %s/%s assignment grades", r.CourseID, r.StudentID)
		}
		if err := json.Unmarshal([]byte(ej), &r.ExamGrades); err != nil {
			return nil, errors.Wrapf(err, "record %s/%s exam grades", r.CourseID, r.StudentID)
		}
		if len(r.AssignmentGrades) == 0 {
			r.AssignmentGrades = nil
		}
		if len(r.ExamGrades) == 0 {
			r.ExamGrades = nil
		}
		r.CalculatedAt = time.UnixMilli(at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Course-side writers. They feed the collaborators above and are exposed
// through the admin routes.

type Course struct {
	ID      string  `json:"id" validate:"required"`
	Title   string  `json:"title"`
	Credits float64 `json:"credits" validate:"gte=0"`
}

type Assignment struct {
	ID       string  `json:"id" validate:"required"`
	CourseID string  `json:"course_id" validate:"required"`
	Title    string  `json:"title"`
	MaxScore float64 `json:"max_score" validate:"gt=0"`
}

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id,title,credits) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, credits=EXCLUDED.credits`,
		c.ID, c.Title, c.Credits)
	return err
}

func (s *SQLStore) Enroll(ctx context.Context, courseID, studentID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO enrollments (course_id,student_id,status) VALUES ($1,$2,'enrolled')
		ON CONFLICT (course_id, student_id) DO UPDATE SET status='enrolled'`, courseID, studentID)
	return err
}

// Drop keeps the enrollment row but removes the student from the roster.
func (s *SQLStore) Drop(ctx context.Context, courseID, studentID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE enrollments SET status='dropped' WHERE course_id=$1 AND student_id=$2`,
		courseID, studentID)
	return err
}

func (s *SQLStore) PutAssignment(ctx context.Context, a Assignment) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO assignments (id,course_id,title,max_score) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, title=EXCLUDED.title, max_score=EXCLUDED.max_score`,
		a.ID, a.CourseID, a.Title, a.MaxScore)
	return err
}

// RecordSubmission stores a student's work on an assignment. A nil grade
// leaves it ungraded.
func (s *SQLStore) RecordSubmission(ctx context.Context, assignmentID, studentID string, grade *float64) error {
	status := "submitted"
	var g sql.NullFloat64
	if grade != nil {
		status, g = "graded", sql.NullFloat64{Float64: *grade, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions (id,assignment_id,student_id,status,grade) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (assignment_id, student_id) DO UPDATE SET status=EXCLUDED.status, grade=EXCLUDED.grade`,
		uuid.NewString(), assignmentID, studentID, status, g)
	return err
}

func (s *SQLStore) RecordParticipation(ctx context.Context, courseID, studentID string, score float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO participation (course_id,student_id,score,recorded_at) VALUES ($1,$2,$3,$4)`,
		courseID, studentID, score, at.UnixMilli())
	return err
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
