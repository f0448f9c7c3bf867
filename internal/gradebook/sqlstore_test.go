package gradebook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-grades/internal/db"
	"github.com/mind-engage/mindengage-grades/internal/exam"
	"github.com/mind-engage/mindengage-grades/internal/grading"
)

func openTestDB(t *testing.T) *SQLStore {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	return NewSQLStore(dbh)
}

func ptr(f float64) *float64 { return &f }

func TestSQLStore_CourseGrades(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	st := NewSQLStore(dbh)
	exams := exam.NewSQLStore(dbh)

	require.NoError(t, st.PutCourse(ctx, Course{ID: "bio-101", Title: "Biology", Credits: 4}))
	for _, s := range []string{"s1", "s2", "s3"} {
		require.NoError(t, st.Enroll(ctx, "bio-101", s))
	}
	require.NoError(t, st.Drop(ctx, "bio-101", "s3"))
	require.NoError(t, st.PutAssignment(ctx, Assignment{ID: "a1", CourseID: "bio-101", MaxScore: 50}))
	require.NoError(t, st.PutAssignment(ctx, Assignment{ID: "a2", CourseID: "bio-101", MaxScore: 10}))
	require.NoError(t, st.RecordSubmission(ctx, "a1", "s1", ptr(45)))
	require.NoError(t, st.RecordSubmission(ctx, "a2", "s1", nil)) // ungraded, ignored
	require.NoError(t, st.RecordSubmission(ctx, "a1", "s2", nil))

	m := exam.NewMachine(exams)
	require.NoError(t, m.PutExam(ctx, exam.Exam{
		ID: "exam-1", CourseID: "bio-101", TotalPoints: 10,
		Questions: []exam.Question{{ID: "q1", Kind: grading.TrueFalse, Key: grading.Bool(true), Points: 10}},
	}))
	a, err := m.Start(ctx, "exam-1", "s1")
	require.NoError(t, err)
	_, err = m.Submit(ctx, a.ID, map[string]grading.Answer{"q1": grading.Bool(true)})
	require.NoError(t, err)

	roster, err := st.EnrolledStudents(ctx, "bio-101")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, roster)

	svc := New(st, AttemptResults{Store: exams}, st, st,
		WithParticipation(st), WithCatalog(st),
		WithClock(func() time.Time { return fixedNow }))

	results, err := svc.CalculateForAllStudentsInCourse(ctx, "bio-101", sixtyForty)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 94.0, results[0].Record.FinalGrade) // 90*0.6 + 100*0.4
	assert.Equal(t, grading.Letter("A"), results[0].Record.LetterGrade)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 0.0, results[1].Record.FinalGrade)

	// regrade a1 and recalculate: the row is replaced, not appended
	require.NoError(t, st.RecordSubmission(ctx, "a1", "s1", ptr(50)))
	_, err = svc.CalculateGrade(ctx, "s1", "bio-101", sixtyForty)
	require.NoError(t, err)

	recs, err := st.StudentRecords(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	got := recs[0]
	assert.Equal(t, 100.0, got.FinalGrade)
	assert.Equal(t, grading.Letter("A+"), got.LetterGrade)
	assert.Equal(t, MethodWeightedAverage, got.Method)
	assert.Equal(t, map[string]float64{"a1": 50}, got.AssignmentGrades)
	assert.Equal(t, map[string]float64{"exam-1": 10}, got.ExamGrades)
	assert.Equal(t, SystemActor, got.CalculatedBy)
	assert.True(t, got.CalculatedAt.Equal(fixedNow))

	rep, err := svc.StudentGPA(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, rep.GPA)
	require.Len(t, rep.Courses, 1)
	assert.Equal(t, 4.0, rep.Courses[0].Credits)
}

func TestSQLStore_Participation(t *testing.T) {
	ctx := context.Background()
	st := openTestDB(t)
	require.NoError(t, st.RecordParticipation(ctx, "bio-101", "s1", 80, fixedNow))
	require.NoError(t, st.RecordParticipation(ctx, "bio-101", "s1", 100, fixedNow.Add(time.Hour)))
	require.NoError(t, st.RecordParticipation(ctx, "chem-200", "s1", 10, fixedNow))

	got, err := st.ParticipationScores(ctx, "s1", "bio-101")
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 100}, got)
}

func TestSQLStore_CourseCreditsUnknown(t *testing.T) {
	st := openTestDB(t)
	c, err := st.CourseCredits(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, 0.0, c)
}

func TestSQLStore_ManualRecordHasNoSnapshot(t *testing.T) {
	ctx := context.Background()
	st := openTestDB(t)
	svc := New(st, AttemptResults{Store: exam.NewInMemoryStore()}, st, st)

	_, err := svc.SetManualGrade(ctx, "s1", "bio-101", 72)
	require.NoError(t, err)
	recs, err := st.StudentRecords(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, MethodManual, recs[0].Method)
	assert.Equal(t, grading.Letter("C-"), recs[0].LetterGrade)
	assert.Nil(t, recs[0].AssignmentGrades)
}
