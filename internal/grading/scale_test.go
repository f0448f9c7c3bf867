package grading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLetter_Boundaries(t *testing.T) {
	s := DefaultScale()
	cases := []struct {
		in   float64
		want Letter
	}{
		{0, "F"},
		{59.9, "F"},
		{60, "D-"},
		{62.99, "D-"},
		{63, "D"},
		{69.5, "D+"},
		{79.999, "C+"},
		{80, "B-"},
		{89.99, "B+"},
		{90, "A-"},
		{96.9, "A"},
		{97, "A+"},
		{100, "A+"},
		{112.5, "A+"},
		{math.Inf(1), "A+"},
	}
	for _, c := range cases {
		got, err := s.ToLetter(c.in)
		require.NoError(t, err, "percent %v", c.in)
		assert.Equal(t, c.want, got, "percent %v", c.in)
	}
}

func TestToLetter_RejectsBadInput(t *testing.T) {
	s := DefaultScale()
	for _, in := range []float64{math.NaN(), -0.01, math.Inf(-1)} {
		_, err := s.ToLetter(in)
		assert.ErrorIs(t, err, ErrInvalidInput, "percent %v", in)
	}
}

func TestGradePoints_MonotonicOverPercent(t *testing.T) {
	s := DefaultScale()
	prev := -1.0
	for p := 0.0; p <= 100; p += 0.25 {
		l, err := s.ToLetter(p)
		require.NoError(t, err)
		pts, err := s.ToGradePoints(l)
		require.NoError(t, err)
		require.GreaterOrEqual(t, pts, prev, "points dropped at %v (%s)", p, l)
		prev = pts
	}
	assert.Equal(t, 4.0, prev)
}

func TestToGradePoints(t *testing.T) {
	s := DefaultScale()
	pts, err := s.ToGradePoints("B+")
	require.NoError(t, err)
	assert.Equal(t, 3.3, pts)

	_, err = s.ToGradePoints("E")
	assert.ErrorIs(t, err, ErrUnknownLetter)
}

func TestNewScale_FillsMaxAndSorts(t *testing.T) {
	s, err := NewScale([]Band{
		{Letter: "Fail", Min: 0, Points: 0},
		{Letter: "Pass", Min: 50, Points: 2},
		{Letter: "Distinction", Min: 85, Points: 4},
	})
	require.NoError(t, err)

	bands := s.Bands()
	require.Len(t, bands, 3)
	assert.Equal(t, Letter("Distinction"), bands[0].Letter)
	assert.Equal(t, 100.0, bands[0].Max)
	assert.Equal(t, 85.0, bands[1].Max)
	assert.Equal(t, 50.0, bands[2].Max)

	l, err := s.ToLetter(84.9)
	require.NoError(t, err)
	assert.Equal(t, Letter("Pass"), l)
}

func TestNewScale_Rejects(t *testing.T) {
	cases := map[string][]Band{
		"empty":        nil,
		"gap at zero":  {{Letter: "A", Min: 90, Points: 4}, {Letter: "B", Min: 10, Points: 3}},
		"duplicate":    {{Letter: "A", Min: 50, Points: 4}, {Letter: "A", Min: 0, Points: 0}},
		"same minimum": {{Letter: "A", Min: 50, Points: 4}, {Letter: "B", Min: 50, Points: 3}, {Letter: "F", Min: 0}},
		"bad max":      {{Letter: "A", Min: 50, Max: 90, Points: 4}, {Letter: "F", Min: 0}},
		"inverted":     {{Letter: "A", Min: 50, Points: 1}, {Letter: "F", Min: 0, Points: 2}},
		"no letter":    {{Min: 0}},
	}
	for name, bands := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewScale(bands)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
