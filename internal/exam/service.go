package exam

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-grades/internal/grading"
)

type Clock func() time.Time

// Events receives domain events. Emit failures are logged, never returned
// to the caller of a state transition.
type Events interface {
	Emit(ctx context.Context, typ, key string, data any) error
}

const (
	EventAttemptStarted   = "AttemptStarted"
	EventAttemptSubmitted = "AttemptSubmitted"
	EventAttemptGraded    = "AttemptGraded"
)

// SystemGrader is recorded as GradedBy when an attempt needs no manual
// grading.
const SystemGrader = "system"

// Machine drives attempts through in_progress -> submitted -> graded.
// It assumes at most one in-flight mutation per attempt; the store's
// status check turns a lost race into ErrConflict.
type Machine struct {
	store  Store
	grader grading.Grader
	now    Clock
	events Events
	newID  func() string
}

type Option func(*Machine)

func WithClock(c Clock) Option { return func(m *Machine) { m.now = c } }
func WithEvents(e Events) Option { return func(m *Machine) { m.events = e } }
func WithGrader(g grading.Grader) Option { return func(m *Machine) { m.grader = g } }
func WithIDGenerator(f func() string) Option { return func(m *Machine) { m.newID = f } }

func NewMachine(store Store, opts ...Option) *Machine {
	m := &Machine{
		store:  store,
		grader: grading.NewDefaultGrader(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// PutExam validates and stores an exam definition. Once an exam has been
// attempted only its title may change; anything that affects scoring fails
// with ErrExamLocked.
func (m *Machine) PutExam(ctx context.Context, e Exam) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch old, err := m.store.GetExam(ctx, e.ID); {
	case err == nil:
		if old.FirstAttemptAt != nil {
			same, err := old.sameScoring(e)
			if err != nil {
				return err
			}
			if !same {
				return errors.Wrapf(ErrExamLocked, "exam %s", e.ID)
			}
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	return m.store.PutExam(ctx, e)
}

// StudentExam returns the exam without answer keys.
func (m *Machine) StudentExam(ctx context.Context, id string) (Exam, error) {
	e, err := m.store.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	return e.StudentView(), nil
}

func (m *Machine) Attempt(ctx context.Context, id string) (Attempt, error) {
	return m.store.GetAttempt(ctx, id)
}

// Start opens the only attempt a student may have at an exam. Any existing
// attempt, finished or not, blocks a new one.
func (m *Machine) Start(ctx context.Context, examID, studentID string) (Attempt, error) {
	if examID == "" || studentID == "" {
		return Attempt{}, errors.Wrap(grading.ErrInvalidInput, "exam id and student id are required")
	}
	e, err := m.store.GetExam(ctx, examID)
	if err != nil {
		return Attempt{}, err
	}
	switch _, err := m.store.FindAttempt(ctx, examID, studentID); {
	case err == nil:
		return Attempt{}, errors.Wrapf(ErrDuplicateAttempt, "exam %s student %s", examID, studentID)
	case !errors.Is(err, ErrNotFound):
		return Attempt{}, err
	}

	now := m.now()
	a := Attempt{
		ID:        m.newID(),
		ExamID:    examID,
		StudentID: studentID,
		Status:    StatusInProgress,
		StartedAt: now,
	}
	if err := m.store.CreateAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	if e.FirstAttemptAt == nil {
		if err := m.store.MarkFirstAttempt(ctx, examID, now); err != nil {
			glog.Warningf("exam %s: mark first attempt: %v", examID, err)
		}
	}
	m.emit(ctx, EventAttemptStarted, a)
	return a, nil
}

// DecodeAnswers parses bare JSON answer values against the kinds of the
// attempt's exam questions.
func (m *Machine) DecodeAnswers(ctx context.Context, attemptID string, raw map[string]json.RawMessage) (map[string]grading.Answer, error) {
	a, err := m.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	e, err := m.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]grading.Answer, len(raw))
	for qid, r := range raw {
		q, ok := e.Question(qid)
		if !ok {
			return nil, errors.Wrapf(grading.ErrInvalidInput, "unknown question %q", qid)
		}
		ans, err := grading.DecodeAnswer(q.Kind, r)
		if err != nil {
			return nil, errors.Wrapf(err, "question %q", qid)
		}
		out[qid] = ans
	}
	return out, nil
}

// Submit records answers and scores the objective questions. Unanswered
// questions score zero. An exam with no short answer questions is graded
// on the spot.
func (m *Machine) Submit(ctx context.Context, attemptID string, answers map[string]grading.Answer) (Attempt, error) {
	a, err := m.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, errors.Wrapf(ErrInvalidStateTransition, "submit attempt %s in status %s", a.ID, a.Status)
	}
	e, err := m.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	for qid, ans := range answers {
		q, ok := e.Question(qid)
		if !ok {
			return Attempt{}, errors.Wrapf(grading.ErrInvalidInput, "unknown question %q", qid)
		}
		if ans.Kind() != q.Kind {
			return Attempt{}, errors.Wrapf(grading.ErrInvalidInput, "question %q expects a %s answer", qid, q.Kind)
		}
	}

	var auto float64
	needsManual := false
	for _, q := range e.Questions {
		var resp *grading.Answer
		if ans, ok := answers[q.ID]; ok {
			resp = &ans
		}
		res, err := m.grader.Score(q.view(), resp)
		if err != nil {
			return Attempt{}, errors.Wrapf(err, "score question %q", q.ID)
		}
		auto += res.AutoPoints
		needsManual = needsManual || res.NeedsManual
	}

	now := m.now()
	a.Answers = make(map[string]grading.Answer, len(answers))
	for k, v := range answers {
		a.Answers[k] = v
	}
	a.AutoScore = auto
	a.TotalAutoPoints = e.AutoPoints()
	a.Score = auto
	a.Status = StatusSubmitted
	a.SubmittedAt = &now
	if !needsManual {
		a.IsGraded = true
		a.Status = StatusGraded
		a.GradedAt = &now
		a.GradedBy = SystemGrader
	}
	if err := m.store.UpdateAttempt(ctx, a, StatusInProgress); err != nil {
		return Attempt{}, err
	}
	glog.V(4).Infof("attempt %s submitted: auto=%v/%d graded=%v", a.ID, a.AutoScore, a.TotalAutoPoints, a.IsGraded)
	m.emit(ctx, EventAttemptSubmitted, a)
	if a.IsGraded {
		m.emit(ctx, EventAttemptGraded, a)
	}
	return a, nil
}

// Grade applies the manual component and finalizes the attempt. A combined
// score above the exam's total is rejected and the attempt stays submitted.
func (m *Machine) Grade(ctx context.Context, attemptID string, g ManualGrade) (Attempt, error) {
	if math.IsNaN(g.Score) || math.IsInf(g.Score, 0) || g.Score < 0 {
		return Attempt{}, errors.Wrapf(grading.ErrInvalidInput, "manual score %v", g.Score)
	}
	a, err := m.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusSubmitted {
		return Attempt{}, errors.Wrapf(ErrInvalidStateTransition, "grade attempt %s in status %s", a.ID, a.Status)
	}
	e, err := m.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	combined := a.AutoScore + g.Score
	if combined > float64(e.TotalPoints) {
		return Attempt{}, errors.Wrapf(ErrScoreOutOfRange, "score %v exceeds exam total %d", combined, e.TotalPoints)
	}

	now := m.now()
	manual := g.Score
	a.ManualScore = &manual
	a.Score = combined
	a.IsGraded = true
	a.Status = StatusGraded
	a.Feedback = g.Feedback
	a.GradedBy = g.GradedBy
	a.GradedAt = &now
	if err := m.store.UpdateAttempt(ctx, a, StatusSubmitted); err != nil {
		return Attempt{}, err
	}
	m.emit(ctx, EventAttemptGraded, a)
	return a, nil
}

// GradeItems grades short answer questions one by one. Each award must lie
// within [0, question points]; their sum becomes the manual score.
func (m *Machine) GradeItems(ctx context.Context, attemptID string, awards map[string]float64, feedback, gradedBy string) (Attempt, error) {
	a, err := m.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusSubmitted {
		return Attempt{}, errors.Wrapf(ErrInvalidStateTransition, "grade attempt %s in status %s", a.ID, a.Status)
	}
	e, err := m.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	var sum float64
	for qid, pts := range awards {
		q, ok := e.Question(qid)
		if !ok || q.Kind != grading.ShortAnswer {
			return Attempt{}, errors.Wrapf(grading.ErrInvalidInput, "%q is not a short answer question", qid)
		}
		if math.IsNaN(pts) || pts < 0 {
			return Attempt{}, errors.Wrapf(grading.ErrInvalidInput, "award %v for %q", pts, qid)
		}
		if pts > float64(q.Points) {
			return Attempt{}, errors.Wrapf(ErrScoreOutOfRange, "award %v for %q exceeds %d points", pts, qid, q.Points)
		}
		sum += pts
	}
	return m.Grade(ctx, attemptID, ManualGrade{Score: sum, Feedback: feedback, GradedBy: gradedBy})
}

func (m *Machine) emit(ctx context.Context, typ string, a Attempt) {
	if m.events == nil {
		return
	}
	if err := m.events.Emit(ctx, typ, a.ID, a); err != nil {
		glog.Warningf("attempt %s: emit %s: %v", a.ID, typ, err)
	}
}
