package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	auth "github.com/mind-engage/mindengage-grades/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grades/internal/exam"
	"github.com/mind-engage/mindengage-grades/internal/grading"
	"github.com/mind-engage/mindengage-grades/internal/rbac"
)

// POST /exams
func CreateExamHandler(m *exam.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if err := decode(r, &e, false); err != nil {
			writeErr(w, r, err)
			return
		}
		if err := m.PutExam(r.Context(), e); err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": e.ID})
	}
}

// GET /exams/{examID}. Answer keys are included only for exam:view-keys.
func GetExamHandler(m *exam.Machine, store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		var (
			e   exam.Exam
			err error
		)
		if rbac.Allowed(r.Context(), "exam:view-keys") {
			e, err = store.GetExam(r.Context(), id)
		} else {
			e, err = m.StudentExam(r.Context(), id)
		}
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// POST /exams/{examID}/attempts  { "student_id": "..." }
// Callers without attempt:view-all always start their own attempt.
func StartAttemptHandler(m *exam.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
		}
		if err := decode(r, &req, true); err != nil {
			writeErr(w, r, err)
			return
		}
		studentID := auth.SubjectFromContext(r.Context())
		if req.StudentID != "" && rbac.Allowed(r.Context(), "attempt:view-all") {
			studentID = req.StudentID
		}
		a, err := m.Start(r.Context(), chi.URLParam(r, "examID"), studentID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(m *exam.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, m)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /attempts/{attemptID}/submit  { "answers": { "q1": 1, "q2": "text" } }
func SubmitAttemptHandler(m *exam.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, m)
		if !ok {
			return
		}
		var req struct {
			Answers map[string]json.RawMessage `json:"answers"`
		}
		if err := decode(r, &req, true); err != nil {
			writeErr(w, r, err)
			return
		}
		answers, err := m.DecodeAnswers(r.Context(), a.ID, req.Answers)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		a, err = m.Submit(r.Context(), a.ID, answers)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

type gradeAttemptReq struct {
	ManualScore *float64           `json:"manual_score"`
	Items       map[string]float64 `json:"items"` // question_id -> points
	Feedback    string             `json:"feedback,omitempty"`
}

// POST /attempts/{attemptID}/grade
// Either manual_score (whole short answer part) or items (per question).
func GradeAttemptHandler(m *exam.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		var req gradeAttemptReq
		if err := decode(r, &req, false); err != nil {
			writeErr(w, r, err)
			return
		}
		grader := auth.SubjectFromContext(r.Context())
		var (
			a   exam.Attempt
			err error
		)
		switch {
		case req.ManualScore != nil && req.Items != nil:
			err = errors.Wrap(grading.ErrInvalidInput, "send manual_score or items, not both")
		case req.Items != nil:
			a, err = m.GradeItems(r.Context(), id, req.Items, req.Feedback, grader)
		case req.ManualScore != nil:
			a, err = m.Grade(r.Context(), id, exam.ManualGrade{Score: *req.ManualScore, Feedback: req.Feedback, GradedBy: grader})
		default:
			err = errors.Wrap(grading.ErrInvalidInput, "manual_score or items required")
		}
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// ownAttempt loads the attempt in the URL and checks the caller may see it.
func ownAttempt(w http.ResponseWriter, r *http.Request, m *exam.Machine) (exam.Attempt, bool) {
	a, err := m.Attempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeErr(w, r, err)
		return exam.Attempt{}, false
	}
	if a.StudentID != auth.SubjectFromContext(r.Context()) && !rbac.Allowed(r.Context(), "attempt:view-all") {
		http.Error(w, "forbidden", http.StatusForbidden)
		return exam.Attempt{}, false
	}
	return a, true
}
