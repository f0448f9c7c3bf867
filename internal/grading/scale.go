package grading

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is returned for malformed numeric input (NaN, negative
	// where disallowed, weights outside 0..100).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownLetter is returned when a letter is not part of the scale.
	ErrUnknownLetter = errors.New("unknown letter grade")
)

type Letter string

// Band is one row of the letter-grade range table. Min is inclusive, Max is
// exclusive except for the top band which includes 100.
type Band struct {
	Letter Letter  `json:"letter" mapstructure:"letter"`
	Min    float64 `json:"min" mapstructure:"min"`
	Max    float64 `json:"max" mapstructure:"max"`
	Points float64 `json:"points" mapstructure:"points"`
}

// Scale is a validated range table covering 0..100 with no gaps and no
// overlaps. The zero value is not usable; build one with NewScale or
// DefaultScale.
type Scale struct {
	bands  []Band // highest Min first
	points map[Letter]float64
}

var defaultBands = []Band{
	{Letter: "A+", Min: 97, Points: 4.0},
	{Letter: "A", Min: 93, Points: 4.0},
	{Letter: "A-", Min: 90, Points: 3.7},
	{Letter: "B+", Min: 87, Points: 3.3},
	{Letter: "B", Min: 83, Points: 3.0},
	{Letter: "B-", Min: 80, Points: 2.7},
	{Letter: "C+", Min: 77, Points: 2.3},
	{Letter: "C", Min: 73, Points: 2.0},
	{Letter: "C-", Min: 70, Points: 1.7},
	{Letter: "D+", Min: 67, Points: 1.3},
	{Letter: "D", Min: 63, Points: 1.0},
	{Letter: "D-", Min: 60, Points: 0.7},
	{Letter: "F", Min: 0, Points: 0.0},
}

// DefaultScale returns the standard 4.0 table (A+ at 97 down to F at 0).
func DefaultScale() Scale {
	s, err := NewScale(defaultBands)
	if err != nil {
		panic(err)
	}
	return s
}

// NewScale validates bands and returns a Scale. Band order does not matter.
// A zero Max is filled in from the next band up (100 for the top band); a
// non-zero Max must agree with it.
func NewScale(bands []Band) (Scale, error) {
	if len(bands) == 0 {
		return Scale{}, errors.Wrap(ErrInvalidInput, "scale has no bands")
	}
	bs := make([]Band, len(bands))
	copy(bs, bands)
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].Min > bs[j].Min })

	points := make(map[Letter]float64, len(bs))
	upper := 100.0
	for i := range bs {
		b := &bs[i]
		if b.Letter == "" {
			return Scale{}, errors.Wrapf(ErrInvalidInput, "band %d has no letter", i)
		}
		if _, dup := points[b.Letter]; dup {
			return Scale{}, errors.Wrapf(ErrInvalidInput, "duplicate letter %q", b.Letter)
		}
		if !finite(b.Min) || !finite(b.Points) || b.Points < 0 {
			return Scale{}, errors.Wrapf(ErrInvalidInput, "band %q has bad bounds or points", b.Letter)
		}
		if b.Min >= upper {
			return Scale{}, errors.Wrapf(ErrInvalidInput, "band %q starts at %v, overlapping the band above", b.Letter, b.Min)
		}
		if b.Max == 0 {
			b.Max = upper
		} else if b.Max != upper {
			return Scale{}, errors.Wrapf(ErrInvalidInput, "band %q ends at %v, want %v", b.Letter, b.Max, upper)
		}
		if i > 0 && b.Points > bs[i-1].Points {
			return Scale{}, errors.Wrapf(ErrInvalidInput, "band %q is worth more points than %q", b.Letter, bs[i-1].Letter)
		}
		points[b.Letter] = b.Points
		upper = b.Min
	}
	if upper != 0 {
		return Scale{}, errors.Wrapf(ErrInvalidInput, "lowest band starts at %v, want 0", upper)
	}
	return Scale{bands: bs, points: points}, nil
}

// ToLetter maps a percentage to its band. Values above 100 are treated as
// 100; NaN and negatives are rejected.
func (s Scale) ToLetter(percent float64) (Letter, error) {
	if math.IsNaN(percent) || percent < 0 {
		return "", errors.Wrapf(ErrInvalidInput, "percent %v", percent)
	}
	if percent > 100 {
		percent = 100
	}
	for _, b := range s.bands {
		if b.Min <= percent {
			return b.Letter, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidInput, "percent %v outside scale", percent)
}

// ToGradePoints returns the 4.0-scale value of letter.
func (s Scale) ToGradePoints(letter Letter) (float64, error) {
	p, ok := s.points[letter]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownLetter, "%q", letter)
	}
	return p, nil
}

// Bands returns a copy of the table, highest band first.
func (s Scale) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}

func (s Scale) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Bands []Band `json:"bands"`
	}{s.bands})
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
