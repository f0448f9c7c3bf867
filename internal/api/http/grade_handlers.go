package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-grades/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grades/internal/gradebook"
)

// actor carries the authenticated subject into the grade record provenance.
func actor(r *http.Request) *http.Request {
	sub := auth.SubjectFromContext(r.Context())
	return r.WithContext(gradebook.WithActor(r.Context(), sub))
}

func weightsFrom(r *http.Request) (gradebook.Weights, error) {
	var wts gradebook.Weights
	if r.ContentLength == 0 {
		return gradebook.DefaultWeights, nil
	}
	if err := decode(r, &wts, true); err != nil {
		return gradebook.Weights{}, err
	}
	if wts == (gradebook.Weights{}) {
		return gradebook.DefaultWeights, nil
	}
	return wts, nil
}

// POST /courses/{courseID}/students/{studentID}/grade  (body: weights, optional)
func CalculateGradeHandler(svc *gradebook.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wts, err := weightsFrom(r)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		r = actor(r)
		rec, err := svc.CalculateGrade(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "courseID"), wts)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// PUT /courses/{courseID}/students/{studentID}/grade  { "final_grade": 88.5 }
func SetGradeHandler(svc *gradebook.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FinalGrade *float64 `json:"final_grade" validate:"required"`
		}
		if err := decode(r, &req, false); err != nil {
			writeErr(w, r, err)
			return
		}
		r = actor(r)
		rec, err := svc.SetManualGrade(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "courseID"), *req.FinalGrade)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

type batchEntry struct {
	StudentID string            `json:"student_id"`
	Record    *gradebook.Record `json:"record,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// POST /courses/{courseID}/grades  (body: weights, optional)
func CalculateCourseHandler(svc *gradebook.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wts, err := weightsFrom(r)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		r = actor(r)
		results, err := svc.CalculateForAllStudentsInCourse(r.Context(), chi.URLParam(r, "courseID"), wts)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		out := make([]batchEntry, 0, len(results))
		for _, res := range results {
			e := batchEntry{StudentID: res.StudentID, Record: res.Record}
			if res.Err != nil {
				e.Error = res.Err.Error()
			}
			out = append(out, e)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /students/{studentID}/gpa
func StudentGPAHandler(svc *gradebook.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := svc.StudentGPA(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// GET /students/{studentID}/grades
func StudentGradesHandler(records gradebook.Records) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := records.StudentRecords(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if recs == nil {
			recs = []gradebook.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// GET /grading/scale
func ScaleHandler(svc *gradebook.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Scale())
	}
}

// isStudentSelf matches the {studentID} URL param against the caller.
func isStudentSelf(r *http.Request) bool {
	sub := auth.SubjectFromContext(r.Context())
	return sub != "" && sub == chi.URLParam(r, "studentID")
}
