package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPA(t *testing.T) {
	got, err := GPA([]CourseGrade{{GradePoints: 4.0, Credits: 3}, {GradePoints: 3.0, Credits: 3}})
	require.NoError(t, err)
	assert.Equal(t, 3.50, got)
}

func TestGPA_CreditWeighted(t *testing.T) {
	got, err := GPA([]CourseGrade{{GradePoints: 4.0, Credits: 4}, {GradePoints: 2.0, Credits: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3.33, got)
}

func TestGPA_NoCredits(t *testing.T) {
	got, err := GPA(nil)
	require.NoError(t, err)
	assert.Zero(t, got)

	got, err = GPA([]CourseGrade{{GradePoints: 4.0}})
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestAggregator_Uniform(t *testing.T) {
	agg := Aggregator{UniformCredits: 3}
	got, err := agg.GPA([]CourseGrade{{GradePoints: 4.0}, {GradePoints: 3.7}, {GradePoints: 2.0}})
	require.NoError(t, err)
	assert.Equal(t, 3.23, got)

	_, err = agg.GPA([]CourseGrade{{GradePoints: 4.0, Credits: 4}, {GradePoints: 3.0}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGPA_InvalidInput(t *testing.T) {
	_, err := GPA([]CourseGrade{{GradePoints: -1, Credits: 3}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = GPA([]CourseGrade{{GradePoints: 3, Credits: -3}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
