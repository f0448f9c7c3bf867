package gradebook

import (
	"context"
	"math"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-grades/internal/grading"
	"github.com/mind-engage/mindengage-grades/internal/validate"
)

type Clock func() time.Time

const (
	EventGradeCalculated = "GradeCalculated"

	DefaultConcurrency    = 4
	DefaultUniformCredits = 3

	// SystemActor is recorded as CalculatedBy when the context names no actor.
	SystemActor = "system"
)

type actorKey struct{}

// WithActor records who triggers calculations made with ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return SystemActor
}

// Service turns graded artifacts into course grade records.
type Service struct {
	subs    Submissions
	exams   ExamResults
	roster  Roster
	records Records

	participation Participation
	catalog       Catalog
	events        Events

	scale       grading.Scale
	gpa         grading.Aggregator
	concurrency int
	now         Clock
}

type Option func(*Service)

// WithScale sets the one range table used for every letter lookup.
func WithScale(sc grading.Scale) Option { return func(s *Service) { s.scale = sc } }

func WithAggregator(a grading.Aggregator) Option { return func(s *Service) { s.gpa = a } }

// WithConcurrency bounds how many students a batch calculates at once.
func WithConcurrency(n int) Option { return func(s *Service) { s.concurrency = n } }

func WithClock(c Clock) Option { return func(s *Service) { s.now = c } }

func WithParticipation(p Participation) Option { return func(s *Service) { s.participation = p } }

func WithCatalog(c Catalog) Option { return func(s *Service) { s.catalog = c } }

func WithEvents(e Events) Option { return func(s *Service) { s.events = e } }

func New(subs Submissions, exams ExamResults, roster Roster, records Records, opts ...Option) *Service {
	s := &Service{
		subs:        subs,
		exams:       exams,
		roster:      roster,
		records:     records,
		scale:       grading.DefaultScale(),
		gpa:         grading.Aggregator{UniformCredits: DefaultUniformCredits},
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

func (s *Service) Scale() grading.Scale { return s.scale }

// CalculateGrade computes and stores the grade of one student in one
// course from every graded submission and exam attempt. Categories with no
// graded items do not count. The stored record replaces any earlier one.
func (s *Service) CalculateGrade(ctx context.Context, studentID, courseID string, w Weights) (Record, error) {
	if studentID == "" || courseID == "" {
		return Record{}, errors.Wrap(grading.ErrInvalidInput, "student id and course id are required")
	}
	if err := validate.Struct(w); err != nil {
		return Record{}, err
	}
	if w.Method == "" {
		w.Method = MethodWeightedAverage
	}

	subs, err := s.subs.GradedSubmissions(ctx, studentID, courseID)
	if err != nil {
		return Record{}, dependency("graded submissions", err)
	}
	attempts, err := s.exams.GradedExamAttempts(ctx, studentID, courseID)
	if err != nil {
		return Record{}, dependency("graded exam attempts", err)
	}
	var part []float64
	if s.participation != nil {
		if part, err = s.participation.ParticipationScores(ctx, studentID, courseID); err != nil {
			return Record{}, dependency("participation", err)
		}
	}

	rec := Record{
		StudentID: studentID,
		CourseID:  courseID,
		Method:    w.Method,
	}
	assignPct := make([]float64, 0, len(subs))
	if len(subs) > 0 {
		rec.AssignmentGrades = make(map[string]float64, len(subs))
	}
	for _, sub := range subs {
		p, err := grading.Percent(sub.Grade, sub.MaxScore)
		if err != nil {
			return Record{}, errors.Wrapf(err, "assignment %s", sub.AssignmentID)
		}
		assignPct = append(assignPct, p)
		rec.AssignmentGrades[sub.AssignmentID] = sub.Grade
	}
	examPct := make([]float64, 0, len(attempts))
	if len(attempts) > 0 {
		rec.ExamGrades = make(map[string]float64, len(attempts))
	}
	for _, a := range attempts {
		p, err := grading.Percent(a.Score, a.TotalPoints)
		if err != nil {
			return Record{}, errors.Wrapf(err, "exam %s", a.ExamID)
		}
		examPct = append(examPct, p)
		rec.ExamGrades[a.ExamID] = a.Score
	}

	var final float64
	switch w.Method {
	case MethodSimpleAverage:
		all := make([]float64, 0, len(assignPct)+len(examPct)+len(part))
		all = append(append(append(all, assignPct...), examPct...), part...)
		final, err = grading.SimpleAverage(all)
	default:
		final, err = grading.WeightedAverage([]grading.Category{
			{Name: "assignments", Weight: w.Assignments, Scores: assignPct},
			{Name: "exams", Weight: w.Exams, Scores: examPct},
			{Name: "participation", Weight: w.Participation, Scores: part},
		})
	}
	if err != nil {
		return Record{}, err
	}
	if err := s.finalize(ctx, &rec, final); err != nil {
		return Record{}, err
	}
	glog.V(4).Infof("grade %s/%s: %v %s (%s, %d assignments, %d exams)",
		courseID, studentID, rec.FinalGrade, rec.LetterGrade, rec.Method, len(subs), len(attempts))
	return s.persist(ctx, rec)
}

// CalculateForAllStudentsInCourse calculates every enrolled student's grade.
// Results follow roster order. A failed student is reported in its entry
// and does not stop the others; only a roster failure fails the call.
func (s *Service) CalculateForAllStudentsInCourse(ctx context.Context, courseID string, w Weights) ([]Result, error) {
	if courseID == "" {
		return nil, errors.Wrap(grading.ErrInvalidInput, "course id is required")
	}
	if err := validate.Struct(w); err != nil {
		return nil, err
	}
	students, err := s.roster.EnrolledStudents(ctx, courseID)
	if err != nil {
		return nil, dependency("enrolled students", err)
	}

	results := make([]Result, len(students))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sid := range students {
		g.Go(func() error {
			rec, err := s.CalculateGrade(ctx, sid, courseID, w)
			if err != nil {
				glog.Warningf("course %s: grade for student %s: %v", courseID, sid, err)
				results[i] = Result{StudentID: sid, Err: err}
				return nil
			}
			results[i] = Result{StudentID: sid, Record: &rec}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	glog.Infof("course %s: calculated %d grades, %d failed", courseID, len(results)-failed, failed)
	return results, nil
}

// SetManualGrade stores a grade decided by hand instead of calculated.
func (s *Service) SetManualGrade(ctx context.Context, studentID, courseID string, finalGrade float64) (Record, error) {
	if studentID == "" || courseID == "" {
		return Record{}, errors.Wrap(grading.ErrInvalidInput, "student id and course id are required")
	}
	if math.IsNaN(finalGrade) || math.IsInf(finalGrade, 0) || finalGrade < 0 {
		return Record{}, errors.Wrapf(grading.ErrInvalidInput, "final grade %v", finalGrade)
	}
	rec := Record{StudentID: studentID, CourseID: courseID, Method: MethodManual}
	if err := s.finalize(ctx, &rec, finalGrade); err != nil {
		return Record{}, err
	}
	return s.persist(ctx, rec)
}

// GPAReport is a student's GPA with the course grades behind it.
type GPAReport struct {
	StudentID string                `json:"student_id"`
	GPA       float64               `json:"gpa"`
	Courses   []grading.CourseGrade `json:"courses"`
}

// StudentGPA aggregates the student's current course records. If any
// course has no credit hours, every course counts at the uniform weight.
func (s *Service) StudentGPA(ctx context.Context, studentID string) (GPAReport, error) {
	if studentID == "" {
		return GPAReport{}, errors.Wrap(grading.ErrInvalidInput, "student id is required")
	}
	recs, err := s.records.StudentRecords(ctx, studentID)
	if err != nil {
		return GPAReport{}, dependency("student records", err)
	}
	grades := make([]grading.CourseGrade, 0, len(recs))
	uniform := false
	for _, r := range recs {
		var credits float64
		if s.catalog != nil {
			if credits, err = s.catalog.CourseCredits(ctx, r.CourseID); err != nil {
				return GPAReport{}, dependency("course credits", err)
			}
		}
		uniform = uniform || credits == 0
		grades = append(grades, grading.CourseGrade{CourseID: r.CourseID, GradePoints: r.GradePoints, Credits: credits})
	}
	if uniform {
		for i := range grades {
			grades[i].Credits = 0
		}
	}
	gpa, err := s.gpa.GPA(grades)
	if err != nil {
		return GPAReport{}, err
	}
	return GPAReport{StudentID: studentID, GPA: gpa, Courses: grades}, nil
}

// finalize clamps and rounds the grade and fills the derived fields.
func (s *Service) finalize(ctx context.Context, rec *Record, final float64) error {
	if final > 100 {
		final = 100
	}
	final = grading.Round2(final)
	letter, err := s.scale.ToLetter(final)
	if err != nil {
		return err
	}
	pts, err := s.scale.ToGradePoints(letter)
	if err != nil {
		return err
	}
	rec.FinalGrade = final
	rec.LetterGrade = letter
	rec.GradePoints = pts
	rec.CalculatedBy = ActorFromContext(ctx)
	rec.CalculatedAt = s.now().UTC()
	return nil
}

func (s *Service) persist(ctx context.Context, rec Record) (Record, error) {
	saved, err := s.records.PersistGradeRecord(ctx, rec)
	if err != nil {
		return Record{}, dependency("persist grade record", err)
	}
	if s.events != nil {
		if err := s.events.Emit(ctx, EventGradeCalculated, rec.StudentID+"/"+rec.CourseID, saved); err != nil {
			glog.Warningf("grade %s/%s: emit: %v", rec.CourseID, rec.StudentID, err)
		}
	}
	return saved, nil
}
