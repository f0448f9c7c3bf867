package grading

import "github.com/pkg/errors"

// Q is the minimal view of a question needed for scoring.
type Q struct {
	Kind   Kind
	Points int
	Key    Answer // zero for ShortAnswer
}

// Result is the outcome of scoring a single response.
type Result struct {
	AutoPoints  float64
	MaxPoints   float64
	NeedsManual bool
}

// Strategy scores one question kind. A nil response means unanswered.
type Strategy interface {
	Score(q Q, response *Answer) (Result, error)
}

// Grader routes by question kind to the matching Strategy.
type Grader interface {
	Score(q Q, response *Answer) (Result, error)
}

type defaultGrader struct {
	strategies map[Kind]Strategy
}

func (g *defaultGrader) Score(q Q, response *Answer) (Result, error) {
	s, ok := g.strategies[q.Kind]
	if !ok {
		return Result{}, errors.Wrapf(ErrInvalidInput, "no strategy for kind %q", q.Kind)
	}
	if response != nil && response.Kind() != q.Kind {
		return Result{}, errors.Wrapf(ErrInvalidInput, "answer %s does not fit a %s question", response, q.Kind)
	}
	return s.Score(q, response)
}

// NewDefaultGrader installs exact-match strategies for the objective kinds
// and a manual-review strategy for ShortAnswer.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[Kind]Strategy{
			MultipleChoice: exactMatchStrategy{},
			TrueFalse:      exactMatchStrategy{},
			ShortAnswer:    manualStrategy{},
		},
	}
}

// exactMatchStrategy grants full points on an exact key match and nothing
// otherwise; there is no partial credit.
type exactMatchStrategy struct{}

func (exactMatchStrategy) Score(q Q, response *Answer) (Result, error) {
	res := Result{MaxPoints: float64(q.Points)}
	if q.Key.IsZero() {
		return res, errors.Wrapf(ErrInvalidInput, "%s question has no answer key", q.Kind)
	}
	if response != nil && response.Equal(q.Key) {
		res.AutoPoints = float64(q.Points)
	}
	return res, nil
}

type manualStrategy struct{}

func (manualStrategy) Score(q Q, _ *Answer) (Result, error) {
	return Result{MaxPoints: float64(q.Points), NeedsManual: true}, nil
}
