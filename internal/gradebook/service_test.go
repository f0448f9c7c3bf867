package gradebook

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-grades/internal/grading"
)

var fixedNow = time.Date(2026, 5, 20, 14, 0, 0, 0, time.UTC)

type fakeSource struct {
	subs      map[string][]Submission
	exams     map[string][]ExamResult
	part      map[string][]float64
	failFor   map[string]bool
	roster    []string
	rosterErr error
	credits   map[string]float64
}

var errStorageDown = errors.New("storage down")

func (f *fakeSource) GradedSubmissions(_ context.Context, studentID, _ string) ([]Submission, error) {
	if f.failFor[studentID] {
		return nil, errStorageDown
	}
	return f.subs[studentID], nil
}

func (f *fakeSource) GradedExamAttempts(_ context.Context, studentID, _ string) ([]ExamResult, error) {
	return f.exams[studentID], nil
}

func (f *fakeSource) ParticipationScores(_ context.Context, studentID, _ string) ([]float64, error) {
	return f.part[studentID], nil
}

func (f *fakeSource) EnrolledStudents(context.Context, string) ([]string, error) {
	return f.roster, f.rosterErr
}

func (f *fakeSource) CourseCredits(_ context.Context, courseID string) (float64, error) {
	return f.credits[courseID], nil
}

type fakeRecords struct {
	mu   sync.Mutex
	recs map[[2]string]Record
	err  error
}

func newFakeRecords() *fakeRecords { return &fakeRecords{recs: map[[2]string]Record{}} }

func (f *fakeRecords) PersistGradeRecord(_ context.Context, r Record) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Record{}, f.err
	}
	f.recs[[2]string{r.StudentID, r.CourseID}] = r
	return r, nil
}

func (f *fakeRecords) StudentRecords(_ context.Context, studentID string) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for k, r := range f.recs {
		if k[0] == studentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func newTestService(src *fakeSource, recs *fakeRecords, opts ...Option) *Service {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithParticipation(src),
		WithCatalog(src),
	}, opts...)
	return New(src, src, src, recs, opts...)
}

var sixtyForty = Weights{Assignments: 60, Exams: 40}

func TestCalculateGrade_Weighted(t *testing.T) {
	src := &fakeSource{
		subs:  map[string][]Submission{"s1": {{"a1", 45, 50}, {"a2", 90, 100}}},
		exams: map[string][]ExamResult{"s1": {{"e1", 40, 50}}},
	}
	recs := newFakeRecords()
	svc := newTestService(src, recs)

	rec, err := svc.CalculateGrade(WithActor(context.Background(), "t1"), "s1", "bio-101", sixtyForty)
	require.NoError(t, err)
	assert.Equal(t, 86.0, rec.FinalGrade)
	assert.Equal(t, grading.Letter("B"), rec.LetterGrade)
	assert.Equal(t, 3.0, rec.GradePoints)
	assert.Equal(t, MethodWeightedAverage, rec.Method)
	assert.Equal(t, map[string]float64{"a1": 45, "a2": 90}, rec.AssignmentGrades)
	assert.Equal(t, map[string]float64{"e1": 40}, rec.ExamGrades)
	assert.Equal(t, "t1", rec.CalculatedBy)
	assert.Equal(t, fixedNow, rec.CalculatedAt)

	assert.Equal(t, rec, recs.recs[[2]string{"s1", "bio-101"}])
}

func TestCalculateGrade_MissingCategoryExcluded(t *testing.T) {
	src := &fakeSource{subs: map[string][]Submission{"s1": {{"a1", 9, 10}}}}
	svc := newTestService(src, newFakeRecords())

	rec, err := svc.CalculateGrade(context.Background(), "s1", "bio-101", sixtyForty)
	require.NoError(t, err)
	assert.Equal(t, 90.0, rec.FinalGrade, "exam weight must not drag the grade down")
	assert.Equal(t, grading.Letter("A-"), rec.LetterGrade)
	assert.Nil(t, rec.ExamGrades)
	assert.Equal(t, SystemActor, rec.CalculatedBy)
}

func TestCalculateGrade_NothingGraded(t *testing.T) {
	svc := newTestService(&fakeSource{}, newFakeRecords())
	rec, err := svc.CalculateGrade(context.Background(), "s1", "bio-101", DefaultWeights)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.FinalGrade)
	assert.Equal(t, grading.Letter("F"), rec.LetterGrade)
}

func TestCalculateGrade_Participation(t *testing.T) {
	src := &fakeSource{
		subs: map[string][]Submission{"s1": {{"a1", 8, 10}}},
		part: map[string][]float64{"s1": {100, 100}},
	}
	svc := newTestService(src, newFakeRecords())
	rec, err := svc.CalculateGrade(context.Background(), "s1", "bio-101", Weights{Assignments: 80, Participation: 20})
	require.NoError(t, err)
	assert.Equal(t, 84.0, rec.FinalGrade)
}

func TestCalculateGrade_SimpleAverage(t *testing.T) {
	src := &fakeSource{
		subs:  map[string][]Submission{"s1": {{"a1", 10, 10}, {"a2", 5, 10}}},
		exams: map[string][]ExamResult{"s1": {{"e1", 0, 20}}},
	}
	svc := newTestService(src, newFakeRecords())
	rec, err := svc.CalculateGrade(context.Background(), "s1", "bio-101", Weights{Method: MethodSimpleAverage, Exams: 100})
	require.NoError(t, err)
	assert.Equal(t, 50.0, rec.FinalGrade)
	assert.Equal(t, MethodSimpleAverage, rec.Method)
}

func TestCalculateGrade_BonusClampedTo100(t *testing.T) {
	src := &fakeSource{subs: map[string][]Submission{"s1": {{"a1", 11, 10}}}}
	svc := newTestService(src, newFakeRecords())
	rec, err := svc.CalculateGrade(context.Background(), "s1", "bio-101", sixtyForty)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rec.FinalGrade)
	assert.Equal(t, grading.Letter("A+"), rec.LetterGrade)
}

func TestCalculateGrade_Rejects(t *testing.T) {
	src := &fakeSource{subs: map[string][]Submission{"zero": {{"a1", 1, 0}}}}
	svc := newTestService(src, newFakeRecords())
	ctx := context.Background()

	_, err := svc.CalculateGrade(ctx, "zero", "bio-101", sixtyForty)
	assert.ErrorIs(t, err, grading.ErrInvalidInput, "max score 0")
	_, err = svc.CalculateGrade(ctx, "s1", "bio-101", Weights{Assignments: 120})
	assert.ErrorIs(t, err, grading.ErrInvalidInput, "weight over 100")
	_, err = svc.CalculateGrade(ctx, "s1", "bio-101", Weights{Method: MethodManual})
	assert.ErrorIs(t, err, grading.ErrInvalidInput, "manual is not a calculation")
	_, err = svc.CalculateGrade(ctx, "", "bio-101", sixtyForty)
	assert.ErrorIs(t, err, grading.ErrInvalidInput)
}

func TestCalculateGrade_AllZeroWeightsWithScores(t *testing.T) {
	src := &fakeSource{subs: map[string][]Submission{"s1": {{"a1", 9, 10}}}}
	recs := newFakeRecords()
	svc := newTestService(src, recs)
	ctx := context.Background()

	_, err := svc.CalculateGrade(ctx, "s1", "bio-101", Weights{Method: MethodWeightedAverage})
	assert.ErrorIs(t, err, grading.ErrInvalidInput)
	assert.Empty(t, recs.recs, "nothing is persisted")

	rec, err := svc.CalculateGrade(ctx, "s2", "bio-101", Weights{Method: MethodWeightedAverage})
	require.NoError(t, err, "no scores, nothing to weigh")
	assert.Equal(t, grading.Letter("F"), rec.LetterGrade)
}

func TestCalculateGrade_DependencyFailure(t *testing.T) {
	src := &fakeSource{failFor: map[string]bool{"s1": true}}
	svc := newTestService(src, newFakeRecords())
	_, err := svc.CalculateGrade(context.Background(), "s1", "bio-101", sixtyForty)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
	assert.ErrorIs(t, err, errStorageDown)

	var de *DependencyError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "graded submissions", de.Op)

	recs := newFakeRecords()
	recs.err = errStorageDown
	_, err = newTestService(&fakeSource{}, recs).CalculateGrade(context.Background(), "s1", "bio-101", sixtyForty)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
}

func TestCalculateGrade_RecalculationReplaces(t *testing.T) {
	src := &fakeSource{subs: map[string][]Submission{"s1": {{"a1", 5, 10}}}}
	recs := newFakeRecords()
	svc := newTestService(src, recs)
	ctx := context.Background()

	_, err := svc.CalculateGrade(ctx, "s1", "bio-101", sixtyForty)
	require.NoError(t, err)
	src.subs["s1"] = append(src.subs["s1"], Submission{"a2", 10, 10})
	_, err = svc.CalculateGrade(ctx, "s1", "bio-101", sixtyForty)
	require.NoError(t, err)

	require.Len(t, recs.recs, 1)
	assert.Equal(t, 75.0, recs.recs[[2]string{"s1", "bio-101"}].FinalGrade)
}

func TestCalculateForAllStudentsInCourse_IsolatesFailures(t *testing.T) {
	src := &fakeSource{
		roster:  []string{"s1", "s2", "s3"},
		subs:    map[string][]Submission{"s1": {{"a1", 9, 10}}, "s3": {{"a1", 7, 10}}},
		failFor: map[string]bool{"s2": true},
	}
	recs := newFakeRecords()
	svc := newTestService(src, recs, WithConcurrency(2))

	results, err := svc.CalculateForAllStudentsInCourse(context.Background(), "bio-101", sixtyForty)
	require.NoError(t, err)
	require.Len(t, results, 3)

	var failed, ok int
	for i, r := range results {
		assert.Equal(t, src.roster[i], r.StudentID, "roster order")
		if r.Err != nil {
			failed++
			assert.Nil(t, r.Record)
			assert.ErrorIs(t, r.Err, ErrDependencyUnavailable)
			continue
		}
		ok++
		require.NotNil(t, r.Record)
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, ok)
	assert.Equal(t, "s2", results[1].StudentID)
	assert.Equal(t, 70.0, results[2].Record.FinalGrade)
	assert.Len(t, recs.recs, 2)
}

func TestCalculateForAllStudentsInCourse_RosterFailure(t *testing.T) {
	svc := newTestService(&fakeSource{rosterErr: errStorageDown}, newFakeRecords())
	_, err := svc.CalculateForAllStudentsInCourse(context.Background(), "bio-101", sixtyForty)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
}

func TestCalculateForAllStudentsInCourse_Empty(t *testing.T) {
	svc := newTestService(&fakeSource{}, newFakeRecords())
	results, err := svc.CalculateForAllStudentsInCourse(context.Background(), "bio-101", sixtyForty)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSetManualGrade(t *testing.T) {
	recs := newFakeRecords()
	svc := newTestService(&fakeSource{}, recs)
	ctx := WithActor(context.Background(), "registrar")

	rec, err := svc.SetManualGrade(ctx, "s1", "bio-101", 88.5)
	require.NoError(t, err)
	assert.Equal(t, MethodManual, rec.Method)
	assert.Equal(t, grading.Letter("B+"), rec.LetterGrade)
	assert.Equal(t, 3.3, rec.GradePoints)
	assert.Equal(t, "registrar", rec.CalculatedBy)

	_, err = svc.SetManualGrade(ctx, "s1", "bio-101", -1)
	assert.ErrorIs(t, err, grading.ErrInvalidInput)
}

func TestStudentGPA(t *testing.T) {
	src := &fakeSource{credits: map[string]float64{"bio-101": 4, "chem-200": 3}}
	recs := newFakeRecords()
	svc := newTestService(src, recs)
	ctx := context.Background()

	_, err := svc.SetManualGrade(ctx, "s1", "bio-101", 95)
	require.NoError(t, err)
	_, err = svc.SetManualGrade(ctx, "s1", "chem-200", 85)
	require.NoError(t, err)

	rep, err := svc.StudentGPA(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.57, rep.GPA) // (4.0*4 + 3.0*3) / 7
	require.Len(t, rep.Courses, 2)

	// one course without credits puts every course on the uniform weight
	delete(src.credits, "chem-200")
	rep, err = svc.StudentGPA(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.5, rep.GPA)

	rep, err = svc.StudentGPA(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0.0, rep.GPA)
}

func TestService_CustomScale(t *testing.T) {
	sc, err := grading.NewScale([]grading.Band{
		{Letter: "P", Min: 50, Points: 4},
		{Letter: "F", Min: 0, Points: 0},
	})
	require.NoError(t, err)
	src := &fakeSource{subs: map[string][]Submission{"s1": {{"a1", 6, 10}}}}
	svc := newTestService(src, newFakeRecords(), WithScale(sc))

	rec, err := svc.CalculateGrade(context.Background(), "s1", "bio-101", sixtyForty)
	require.NoError(t, err)
	assert.Equal(t, grading.Letter("P"), rec.LetterGrade)
	assert.Equal(t, 4.0, rec.GradePoints)
}
