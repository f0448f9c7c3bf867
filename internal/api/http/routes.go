package http

import (
	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-grades/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grades/internal/exam"
	"github.com/mind-engage/mindengage-grades/internal/gradebook"
	"github.com/mind-engage/mindengage-grades/internal/rbac"
	"github.com/mind-engage/mindengage-grades/internal/syncx"
)

type Deps struct {
	Machine *exam.Machine
	Exams   exam.Store
	Grades  *gradebook.Service
	Records gradebook.Records
	Courses CourseAdmin
	Users   *auth.UserStore
	Events  *syncx.EventRepo
}

// Mount registers the protected API on pr. Authentication middleware is the
// caller's job; pr must already put subject and role in the context.
func Mount(pr chi.Router, d Deps) {
	// Exams and attempts
	pr.With(rbac.Require("exam:create")).
		Post("/exams", CreateExamHandler(d.Machine))
	pr.With(rbac.Require("exam:view")).
		Get("/exams/{examID}", GetExamHandler(d.Machine, d.Exams))
	pr.With(rbac.Require("attempt:start")).
		Post("/exams/{examID}/attempts", StartAttemptHandler(d.Machine))
	pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
		Get("/attempts/{attemptID}", GetAttemptHandler(d.Machine))
	pr.With(rbac.Require("attempt:submit")).
		Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Machine))
	pr.With(rbac.Require("attempt:grade")).
		Post("/attempts/{attemptID}/grade", GradeAttemptHandler(d.Machine))

	// Course grades
	pr.With(rbac.Require("grade:calculate")).
		Post("/courses/{courseID}/students/{studentID}/grade", CalculateGradeHandler(d.Grades))
	pr.With(rbac.Require("grade:set")).
		Put("/courses/{courseID}/students/{studentID}/grade", SetGradeHandler(d.Grades))
	pr.With(rbac.Require("grade:calculate")).
		Post("/courses/{courseID}/grades", CalculateCourseHandler(d.Grades))
	pr.With(rbac.RequireOwnerOr("grade:view-all", isStudentSelf)).
		Get("/students/{studentID}/grades", StudentGradesHandler(d.Records))
	pr.With(rbac.RequireOwnerOr("gpa:view-all", isStudentSelf)).
		Get("/students/{studentID}/gpa", StudentGPAHandler(d.Grades))
	pr.Get("/grading/scale", ScaleHandler(d.Grades))

	// Course-side data
	if d.Courses != nil {
		pr.With(rbac.Require("course:manage")).
			Put("/courses/{courseID}", PutCourseHandler(d.Courses))
		pr.With(rbac.Require("course:manage")).
			Post("/courses/{courseID}/enrollments", EnrollHandler(d.Courses))
		pr.With(rbac.Require("course:manage")).
			Put("/courses/{courseID}/assignments/{assignmentID}", PutAssignmentHandler(d.Courses))
		pr.With(rbac.Require("course:manage")).
			Put("/assignments/{assignmentID}/submissions/{studentID}", RecordSubmissionHandler(d.Courses))
		pr.With(rbac.Require("course:manage")).
			Post("/courses/{courseID}/participation", RecordParticipationHandler(d.Courses))
	}

	// Admin
	if d.Users != nil {
		pr.With(rbac.Require("users:create")).
			Post("/users", CreateUserHandler(d.Users))
	}
	if d.Events != nil {
		pr.With(rbac.Require("events:view")).
			Get("/events", EventsHandler(d.Events))
	}
}
