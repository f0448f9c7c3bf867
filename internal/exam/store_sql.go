package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-grades/internal/db"
	"github.com/mind-engage/mindengage-grades/internal/grading"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh}
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	qj, err := json.Marshal(e.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams (id,course_id,title,total_points,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, title=EXCLUDED.title,
			total_points=EXCLUDED.total_points, questions_json=EXCLUDED.questions_json`,
		e.ID, e.CourseID, e.Title, e.TotalPoints, string(qj), e.CreatedAt.UnixMilli())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,course_id,title,total_points,questions_json,created_at,first_attempt_at
		FROM exams WHERE id=$1`, id)
	var (
		e       Exam
		qjson   string
		created int64
		first   sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.CourseID, &e.Title, &e.TotalPoints, &qjson, &created, &first); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, errors.Wrapf(ErrNotFound, "exam %s", id)
		}
		return Exam{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &e.Questions); err != nil {
		return Exam{}, errors.Wrapf(err, "exam %s questions", id)
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.FirstAttemptAt = db.TimePtr(first)
	return e, nil
}

func (s *SQLStore) MarkFirstAttempt(ctx context.Context, examID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE exams SET first_attempt_at=$1 WHERE id=$2 AND first_attempt_at IS NULL`,
		at.UnixMilli(), examID)
	return err
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,exam_id,student_id,status,answers_json,started_at)
		VALUES ($1,$2,$3,$4,'{}',$5)`,
		a.ID, a.ExamID, a.StudentID, string(a.Status), a.StartedAt.UnixMilli())
	if db.IsUniqueViolation(err) {
		return errors.Wrapf(ErrDuplicateAttempt, "exam %s student %s", a.ExamID, a.StudentID)
	}
	return err
}

const attemptCols = `id,exam_id,student_id,status,answers_json,auto_score,total_auto_points,manual_score,
	score,is_graded,feedback,graded_by,started_at,submitted_at,graded_at`

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, errors.Wrapf(ErrNotFound, "attempt %s", id)
	}
	return a, err
}

func (s *SQLStore) FindAttempt(ctx context.Context, examID, studentID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE exam_id=$1 AND student_id=$2`,
		examID, studentID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, errors.Wrapf(ErrNotFound, "attempt for exam %s student %s", examID, studentID)
	}
	return a, err
}

func (s *SQLStore) UpdateAttempt(ctx context.Context, a Attempt, from Status) error {
	answers := a.Answers
	if answers == nil {
		answers = map[string]grading.Answer{}
	}
	buf, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	var manual sql.NullFloat64
	if a.ManualScore != nil {
		manual = sql.NullFloat64{Float64: *a.ManualScore, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET status=$1, answers_json=$2, auto_score=$3,
			total_auto_points=$4, manual_score=$5, score=$6, is_graded=$7, feedback=$8, graded_by=$9,
			submitted_at=$10, graded_at=$11
		WHERE id=$12 AND status=$13`,
		string(a.Status), string(buf), a.AutoScore, a.TotalAutoPoints, manual, a.Score, a.IsGraded,
		a.Feedback, a.GradedBy, db.NullTime(a.SubmittedAt), db.NullTime(a.GradedAt), a.ID, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetAttempt(ctx, a.ID); err != nil {
		return err
	}
	return errors.Wrapf(ErrConflict, "attempt %s left status %s", a.ID, from)
}

func (s *SQLStore) ListGradedAttempts(ctx context.Context, studentID, courseID string) ([]GradedAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a.id, a.exam_id, a.score, e.total_points
		FROM attempts a JOIN exams e ON e.id = a.exam_id
		WHERE a.student_id=$1 AND e.course_id=$2 AND a.status=$3
		ORDER BY a.exam_id`, studentID, courseID, string(StatusGraded))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GradedAttempt
	for rows.Next() {
		var g GradedAttempt
		if err := rows.Scan(&g.AttemptID, &g.ExamID, &g.Score, &g.TotalPoints); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var (
		a                     Attempt
		status, answers       string
		manual                sql.NullFloat64
		started               int64
		submitted, gradedTime sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.ExamID, &a.StudentID, &status, &answers, &a.AutoScore, &a.TotalAutoPoints,
		&manual, &a.Score, &a.IsGraded, &a.Feedback, &a.GradedBy, &started, &submitted, &gradedTime); err != nil {
		return Attempt{}, err
	}
	a.Status = Status(status)
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return Attempt{}, errors.Wrapf(err, "attempt %s answers", a.ID)
	}
	if len(a.Answers) == 0 {
		a.Answers = nil
	}
	if manual.Valid {
		v := manual.Float64
		a.ManualScore = &v
	}
	a.StartedAt = time.UnixMilli(started).UTC()
	a.SubmittedAt = db.TimePtr(submitted)
	a.GradedAt = db.TimePtr(gradedTime)
	return a, nil
}
