package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	auth "github.com/mind-engage/mindengage-grades/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grades/internal/gradebook"
	"github.com/mind-engage/mindengage-grades/internal/grading"
	"github.com/mind-engage/mindengage-grades/internal/syncx"
)

// CourseAdmin writes the course-side data the grade service reads.
type CourseAdmin interface {
	PutCourse(ctx context.Context, c gradebook.Course) error
	Enroll(ctx context.Context, courseID, studentID string) error
	Drop(ctx context.Context, courseID, studentID string) error
	PutAssignment(ctx context.Context, a gradebook.Assignment) error
	RecordSubmission(ctx context.Context, assignmentID, studentID string, grade *float64) error
	RecordParticipation(ctx context.Context, courseID, studentID string, score float64, at time.Time) error
}

// PUT /courses/{courseID}  { "title": "...", "credits": 3 }
func PutCourseHandler(ca CourseAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := gradebook.Course{ID: chi.URLParam(r, "courseID")}
		if err := decode(r, &c, false); err != nil {
			writeErr(w, r, err)
			return
		}
		c.ID = chi.URLParam(r, "courseID")
		if err := ca.PutCourse(r.Context(), c); err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// POST /courses/{courseID}/enrollments  { "student_id": "...", "drop": false }
func EnrollHandler(ca CourseAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id" validate:"required"`
			Drop      bool   `json:"drop,omitempty"`
		}
		if err := decode(r, &req, false); err != nil {
			writeErr(w, r, err)
			return
		}
		courseID := chi.URLParam(r, "courseID")
		var err error
		if req.Drop {
			err = ca.Drop(r.Context(), courseID, req.StudentID)
		} else {
			err = ca.Enroll(r.Context(), courseID, req.StudentID)
		}
		if err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PUT /courses/{courseID}/assignments/{assignmentID}  { "title": "...", "max_score": 50 }
func PutAssignmentHandler(ca CourseAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := gradebook.Assignment{ID: chi.URLParam(r, "assignmentID"), CourseID: chi.URLParam(r, "courseID")}
		if err := decode(r, &a, false); err != nil {
			writeErr(w, r, err)
			return
		}
		a.ID, a.CourseID = chi.URLParam(r, "assignmentID"), chi.URLParam(r, "courseID")
		if err := ca.PutAssignment(r.Context(), a); err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// PUT /assignments/{assignmentID}/submissions/{studentID}  { "grade": 45 }
// A missing grade records the submission as ungraded.
func RecordSubmissionHandler(ca CourseAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Grade *float64 `json:"grade" validate:"omitempty,gte=0"`
		}
		if err := decode(r, &req, true); err != nil {
			writeErr(w, r, err)
			return
		}
		if err := ca.RecordSubmission(r.Context(), chi.URLParam(r, "assignmentID"), chi.URLParam(r, "studentID"), req.Grade); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /courses/{courseID}/participation  { "student_id": "...", "score": 90 }
func RecordParticipationHandler(ca CourseAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string  `json:"student_id" validate:"required"`
			Score     float64 `json:"score" validate:"gte=0,lte=100"`
		}
		if err := decode(r, &req, false); err != nil {
			writeErr(w, r, err)
			return
		}
		if err := ca.RecordParticipation(r.Context(), chi.URLParam(r, "courseID"), req.StudentID, req.Score, time.Now()); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /users  { "username": "...", "password": "...", "role": "student|teacher|admin" }
func CreateUserHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username" validate:"required"`
			Password string `json:"password" validate:"required,min=8"`
			Role     string `json:"role" validate:"required"`
		}
		if err := decode(r, &req, false); err != nil {
			writeErr(w, r, err)
			return
		}
		u, err := users.Create(r.Context(), req.Username, req.Password, req.Role)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

// GET /events?after=<seq>&limit=<n>
func EventsHandler(repo *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, limit := int64(0), 0
		if s := r.URL.Query().Get("after"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				writeErr(w, r, errors.Wrap(grading.ErrInvalidInput, "after must be an integer"))
				return
			}
			after = n
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				writeErr(w, r, errors.Wrap(grading.ErrInvalidInput, "limit must be an integer"))
				return
			}
			limit = n
		}
		evs, err := repo.Since(r.Context(), after, limit)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if evs == nil {
			evs = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, evs)
	}
}
