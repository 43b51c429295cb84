package condition

import (
	"encoding/json"
	"fmt"
)

// Verdict is the tri-state outcome of one condition. NotReady means the
// required history or data is absent; it is distinct from both true and
// false and must never be collapsed into either.
type Verdict int8

const (
	NotReady Verdict = iota
	Unsatisfied
	Satisfied
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case Satisfied:
		return "satisfied"
	case Unsatisfied:
		return "unsatisfied"
	default:
		return "not_ready"
	}
}

// MarshalJSON serializes the verdict as its string form.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON parses the string form.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "satisfied":
		*v = Satisfied
	case "unsatisfied":
		*v = Unsatisfied
	case "not_ready":
		*v = NotReady
	default:
		return fmt.Errorf("unknown verdict %q", s)
	}
	return nil
}

// verdictOf maps a plain comparison onto a Verdict.
func verdictOf(ok bool) Verdict {
	if ok {
		return Satisfied
	}
	return Unsatisfied
}

// NumConditions is the fixed length of the decision vector.
const NumConditions = 20

// Vector is the ordered outcome of all conditions for one symbol at one
// evaluation instant. Immutable once produced.
type Vector [NumConditions]Verdict

// Combined is the all-satisfied flag. Any not-ready condition propagates
// as overall not-ready; otherwise it is the logical AND of all conditions.
func (v Vector) Combined() Verdict {
	for _, c := range v {
		if c == NotReady {
			return NotReady
		}
	}
	for _, c := range v {
		if c == Unsatisfied {
			return Unsatisfied
		}
	}
	return Satisfied
}

// SatisfiedCount returns how many conditions are satisfied.
func (v Vector) SatisfiedCount() int {
	n := 0
	for _, c := range v {
		if c == Satisfied {
			n++
		}
	}
	return n
}
