package grading

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed set of question kinds.
type Kind string

const (
	MultipleChoice Kind = "multiple_choice"
	TrueFalse      Kind = "true_false"
	ShortAnswer    Kind = "short_answer"
)

func (k Kind) Valid() bool {
	switch k {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// Objective reports whether answers of this kind are scored automatically.
func (k Kind) Objective() bool { return k == MultipleChoice || k == TrueFalse }

// Answer is a response (or an answer key) for one question: an option index
// for MultipleChoice, a boolean for TrueFalse, free text for ShortAnswer.
// Build one with Choice, Bool or Text.
type Answer struct {
	kind   Kind
	choice int
	truth  bool
	text   string
}

func Choice(i int) Answer { return Answer{kind: MultipleChoice, choice: i} }
func Bool(b bool) Answer { return Answer{kind: TrueFalse, truth: b} }
func Text(s string) Answer { return Answer{kind: ShortAnswer, text: s} }
func (a Answer) Kind() Kind { return a.kind }
func (a Answer) IsZero() bool { return a.kind == "" }

// ChoiceIndex, Truth and Content return the payload for their kind and
// false for the others.
func (a Answer) ChoiceIndex() (int, bool) { return a.choice, a.kind == MultipleChoice }
func (a Answer) Truth() (bool, bool) { return a.truth, a.kind == TrueFalse }
func (a Answer) Content() (string, bool) { return a.text, a.kind == ShortAnswer }

// Equal is an exact match: same kind and same payload.
func (a Answer) Equal(b Answer) bool { return a == b }

func (a Answer) value() any {
	switch a.kind {
	case MultipleChoice:
		return a.choice
	case TrueFalse:
		return a.truth
	default:
		return a.text
	}
}

func (a Answer) String() string { return fmt.Sprintf("%s(%v)", a.kind, a.value()) }

type answerJSON struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON writes {"kind": ..., "value": ...} so stored answers decode
// without the question at hand.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	v, err := json.Marshal(a.value())
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerJSON{Kind: a.kind, Value: v})
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*a = Answer{}
		return nil
	}
	var aj answerJSON
	if err := json.Unmarshal(b, &aj); err != nil {
		return err
	}
	v, err := DecodeAnswer(aj.Kind, aj.Value)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// DecodeAnswer parses a bare JSON value (a number, a boolean or a string)
// as an answer of the given kind. Anything else is ErrInvalidInput.
func DecodeAnswer(kind Kind, raw json.RawMessage) (Answer, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	switch kind {
	case MultipleChoice:
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return Answer{}, errors.Wrapf(ErrInvalidInput, "%s answer must be an option index", kind)
		}
		i, err := n.Int64()
		if err != nil || i < 0 {
			return Answer{}, errors.Wrapf(ErrInvalidInput, "%s answer %q is not an option index", kind, n)
		}
		return Choice(int(i)), nil
	case TrueFalse:
		var b bool
		if err := dec.Decode(&b); err != nil {
			return Answer{}, errors.Wrapf(ErrInvalidInput, "%s answer must be a boolean", kind)
		}
		return Bool(b), nil
	case ShortAnswer:
		var s string
		if err := dec.Decode(&s); err != nil {
			return Answer{}, errors.Wrapf(ErrInvalidInput, "%s answer must be text", kind)
		}
		return Text(s), nil
	default:
		return Answer{}, errors.Wrapf(ErrInvalidInput, "unknown question kind %q", kind)
	}
}
