package platform

import "fmt"

// Status is the outcome of a platform call.
type Status int

const (
	Error      Status = 0
	InProgress Status = 1
	Arrived    Status = 2
)

// Moving is the historical name of InProgress; it is the same state.
const Moving = InProgress

// OK is what calls that carry no motion (Analyze, Sense) return on success.
const OK = Arrived

func (s Status) String() string {
	switch s {
	case Error:
		return "error"
	case InProgress:
		return "in_progress"
	case Arrived:
		return "arrived"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) Valid() bool {
	return s >= Error && s <= Arrived
}

// ParseStatus converts a raw code, such as one read back from the store.
func ParseStatus(code int64) (Status, error) {
	s := Status(code)
	if !s.Valid() {
		return Error, fmt.Errorf("parse status: undefined code %d", code)
	}
	return s, nil
}
