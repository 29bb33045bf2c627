package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"NYCU-SDC/survey-wizard-backend/internal"
)

type AnswerKind int

const (
	AnswerKindScalar AnswerKind = iota
	AnswerKindMulti
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerKindScalar:
		return "scalar"
	case AnswerKindMulti:
		return "multi"
	default:
		return fmt.Sprintf("AnswerKind(%d)", int(k))
	}
}

// Answer holds either a single value (free text, single choice, rating) or
// an ordered list of values (multi-select). The zero value is an empty scalar.
type Answer struct {
	kind   AnswerKind
	scalar string
	multi  []string
}

func Scalar(value string) Answer {
	return Answer{kind: AnswerKindScalar, scalar: value}
}

func Multi(values []string) Answer {
	copied := make([]string, len(values))
	copy(copied, values)
	return Answer{kind: AnswerKindMulti, multi: copied}
}

func (a Answer) Kind() AnswerKind {
	return a.kind
}

// Scalar returns the single value and whether the answer is scalar.
func (a Answer) Scalar() (string, bool) {
	return a.scalar, a.kind == AnswerKindScalar
}

// Multi returns a copy of the selected values and whether the answer is multi-select.
func (a Answer) Multi() ([]string, bool) {
	if a.kind != AnswerKindMulti {
		return nil, false
	}
	return slices.Clone(a.multi), true
}

// Values returns the answer in list shape: a scalar becomes a one-element list.
func (a Answer) Values() []string {
	if a.kind == AnswerKindMulti {
		values := make([]string, len(a.multi))
		copy(values, a.multi)
		return values
	}
	return []string{a.scalar}
}

func (a Answer) IsEmpty() bool {
	if a.kind == AnswerKindMulti {
		return len(a.multi) == 0
	}
	return a.scalar == ""
}

func (a Answer) Equal(other Answer) bool {
	if a.kind != other.kind {
		return false
	}
	if a.kind == AnswerKindMulti {
		return slices.Equal(a.multi, other.multi)
	}
	return a.scalar == other.scalar
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.kind == AnswerKindMulti {
		if a.multi == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.multi)
	}
	return json.Marshal(a.scalar)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAnswer(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAnswer decodes a JSON string or a JSON array of strings.
func ParseAnswer(raw json.RawMessage) (Answer, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Answer{}, internal.ErrInvalidAnswer
	}

	switch trimmed[0] {
	case '"':
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return Answer{}, fmt.Errorf("%w: %v", internal.ErrInvalidAnswer, err)
		}
		return Scalar(value), nil
	case '[':
		var values []string
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return Answer{}, fmt.Errorf("%w: %v", internal.ErrInvalidAnswer, err)
		}
		return Multi(values), nil
	default:
		return Answer{}, internal.ErrInvalidAnswer
	}
}
