package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	auth "github.com/mind-engage/mindengage-grades/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grades/internal/exam"
	"github.com/mind-engage/mindengage-grades/internal/gradebook"
	"github.com/mind-engage/mindengage-grades/internal/grading"
	"github.com/mind-engage/mindengage-grades/internal/validate"
)

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, grading.ErrInvalidInput), errors.Is(err, grading.ErrUnknownLetter),
		errors.Is(err, auth.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, exam.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrInvalidStateTransition), errors.Is(err, exam.ErrDuplicateAttempt),
		errors.Is(err, exam.ErrConflict), errors.Is(err, exam.ErrExamLocked),
		errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, exam.ErrScoreOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gradebook.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		glog.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		if code == http.StatusInternalServerError {
			http.Error(w, "internal error", code)
			return
		}
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v and validates it. An empty body leaves v
// untouched when allowEmpty is set.
func decode(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return errors.Wrapf(grading.ErrInvalidInput, "bad json: %v", err)
	}
	return validate.Struct(v)
}
