package grading

import (
	"math"

	"github.com/pkg/errors"
)

// Category is one weighted component of a course grade. Scores are already
// percentages of their own maximum. Weight is the category's share (0..100).
type Category struct {
	Name   string
	Weight float64
	Scores []float64
}

// Average is the arithmetic mean of the category's scores.
func (c Category) Average() float64 { return Mean(c.Scores) }

// WeightedAverage combines category averages by weight. Categories with no
// scores are left out of both numerator and denominator, so the weights of
// the categories that are present are renormalized to 100. Returns 0 when no
// category has scores. Scores that only fall in zero-weight categories
// cannot be weighed and are rejected.
func WeightedAverage(categories []Category) (float64, error) {
	var sum, used float64
	present := 0
	for _, c := range categories {
		if !finite(c.Weight) || c.Weight < 0 || c.Weight > 100 {
			return 0, errors.Wrapf(ErrInvalidInput, "category %q weight %v", c.Name, c.Weight)
		}
		if err := checkScores(c.Scores); err != nil {
			return 0, errors.Wrapf(err, "category %q", c.Name)
		}
		if len(c.Scores) == 0 {
			continue
		}
		present++
		sum += c.Average() * c.Weight
		used += c.Weight
	}
	if used == 0 {
		if present > 0 {
			return 0, errors.Wrap(ErrInvalidInput, "every graded category has weight 0")
		}
		return 0, nil
	}
	return sum / used, nil
}

// SimpleAverage is the unweighted mean of every score. Returns 0 on empty input.
func SimpleAverage(scores []float64) (float64, error) {
	if err := checkScores(scores); err != nil {
		return 0, err
	}
	return Mean(scores), nil
}

// Mean returns 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Percent expresses score as a percentage of max.
func Percent(score, max float64) (float64, error) {
	if !finite(score) || score < 0 {
		return 0, errors.Wrapf(ErrInvalidInput, "score %v", score)
	}
	if !finite(max) || max <= 0 {
		return 0, errors.Wrapf(ErrInvalidInput, "max score %v", max)
	}
	return score / max * 100, nil
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(f float64) float64 { return math.Round(f*100) / 100 }

func checkScores(scores []float64) error {
	for i, s := range scores {
		if !finite(s) || s < 0 {
			return errors.Wrapf(ErrInvalidInput, "score[%d] = %v", i, s)
		}
	}
	return nil
}
