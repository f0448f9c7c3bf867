package exam

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-grades/internal/grading"
)

type memoryStore struct {
	mu       sync.RWMutex
	exams    map[string]Exam
	attempts map[string]Attempt
	byPair   map[[2]string]string // (exam, student) -> attempt id
}

func NewInMemoryStore() Store {
	return &memoryStore{
		exams:    map[string]Exam{},
		attempts: map[string]Attempt{},
		byPair:   map[[2]string]string{},
	}
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.exams[e.ID]; ok && e.FirstAttemptAt == nil {
		e.FirstAttemptAt = old.FirstAttemptAt
	}
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, errors.Wrapf(ErrNotFound, "exam %s", id)
	}
	return e, nil
}

func (m *memoryStore) MarkFirstAttempt(_ context.Context, examID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "exam %s", examID)
	}
	if e.FirstAttemptAt == nil {
		e.FirstAttemptAt = &at
		m.exams[examID] = e
	}
	return nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[a.ExamID]; !ok {
		return errors.Wrapf(ErrNotFound, "exam %s", a.ExamID)
	}
	pair := [2]string{a.ExamID, a.StudentID}
	if _, ok := m.byPair[pair]; ok {
		return errors.Wrapf(ErrDuplicateAttempt, "exam %s student %s", a.ExamID, a.StudentID)
	}
	m.attempts[a.ID] = cloneAttempt(a)
	m.byPair[pair] = a.ID
	return nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, errors.Wrapf(ErrNotFound, "attempt %s", id)
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) FindAttempt(_ context.Context, examID, studentID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[[2]string{examID, studentID}]
	if !ok {
		return Attempt{}, errors.Wrapf(ErrNotFound, "attempt for exam %s student %s", examID, studentID)
	}
	return cloneAttempt(m.attempts[id]), nil
}

func (m *memoryStore) UpdateAttempt(_ context.Context, a Attempt, from Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "attempt %s", a.ID)
	}
	if cur.Status != from {
		return errors.Wrapf(ErrConflict, "attempt %s is %s, expected %s", a.ID, cur.Status, from)
	}
	m.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (m *memoryStore) ListGradedAttempts(_ context.Context, studentID, courseID string) ([]GradedAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []GradedAttempt
	for _, a := range m.attempts {
		if a.StudentID != studentID || a.Status != StatusGraded {
			continue
		}
		e, ok := m.exams[a.ExamID]
		if !ok || e.CourseID != courseID {
			continue
		}
		out = append(out, GradedAttempt{AttemptID: a.ID, ExamID: a.ExamID, Score: a.Score, TotalPoints: e.TotalPoints})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExamID < out[j].ExamID })
	return out, nil
}

func cloneAttempt(a Attempt) Attempt {
	if a.Answers != nil {
		ans := make(map[string]grading.Answer, len(a.Answers))
		for k, v := range a.Answers {
			ans[k] = v
		}
		a.Answers = ans
	}
	if a.ManualScore != nil {
		v := *a.ManualScore
		a.ManualScore = &v
	}
	return a
}
