package grading

import "github.com/pkg/errors"

// CourseGrade is one finalized course result feeding a GPA.
type CourseGrade struct {
	CourseID    string  `json:"course_id,omitempty"`
	GradePoints float64 `json:"grade_points"`
	Credits     float64 `json:"credits"`
}

// Aggregator computes credit-weighted GPAs. When UniformCredits is set,
// courses that carry no credits are counted at that weight; mixing
// courses with and without credits in one call is rejected so that a
// uniform weight is never applied to only part of a transcript.
type Aggregator struct {
	UniformCredits float64
}

// GPA returns sum(points*credits)/sum(credits), rounded to two decimals, or
// 0 when no credits are counted.
func (a Aggregator) GPA(grades []CourseGrade) (float64, error) {
	var withCredits, without int
	for _, g := range grades {
		if !finite(g.GradePoints) || g.GradePoints < 0 {
			return 0, errors.Wrapf(ErrInvalidInput, "course %q grade points %v", g.CourseID, g.GradePoints)
		}
		if !finite(g.Credits) || g.Credits < 0 {
			return 0, errors.Wrapf(ErrInvalidInput, "course %q credits %v", g.CourseID, g.Credits)
		}
		if g.Credits == 0 {
			without++
		} else {
			withCredits++
		}
	}
	uniform := a.UniformCredits > 0 && without > 0
	if uniform && withCredits > 0 {
		return 0, errors.Wrap(ErrInvalidInput, "cannot mix credit-weighted and uniform courses")
	}

	var sum, credits float64
	for _, g := range grades {
		c := g.Credits
		if uniform {
			c = a.UniformCredits
		}
		sum += g.GradePoints * c
		credits += c
	}
	if credits == 0 {
		return 0, nil
	}
	return Round2(sum / credits), nil
}

// GPA aggregates with no uniform fallback.
func GPA(grades []CourseGrade) (float64, error) { return Aggregator{}.GPA(grades) }
