package knowledge

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

type Kind uint8

const (
	KindNone Kind = iota
	KindInteger
	KindDouble
	KindDoubles
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindDoubles:
		return "doubles"
	case KindString:
		return "string"
	default:
		return "none"
	}
}

// Value is one scalar or small-array entry of the store. The JSON form is the
// replication payload.
type Value struct {
	Kind    Kind      `json:"k"`
	Int     int64     `json:"i,omitempty"`
	Double  float64   `json:"d,omitempty"`
	Doubles []float64 `json:"a,omitempty"`
	Str     string    `json:"s,omitempty"`
}

func IntValue(i int64) Value {
	return Value{Kind: KindInteger, Int: i}
}

func DoubleValue(d float64) Value {
	return Value{Kind: KindDouble, Double: d}
}

func DoublesValue(d []float64) Value {
	return Value{Kind: KindDoubles, Doubles: slices.Clone(d)}
}

func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Validate reports ErrInvalidValue for doubles that have no JSON form.
func (v Value) Validate() error {
	if !finite(v.Double) {
		return fmt.Errorf("%w: non-finite double %g", ErrInvalidValue, v.Double)
	}
	for i, d := range v.Doubles {
		if !finite(d) {
			return fmt.Errorf("%w: non-finite double %g at index %d", ErrInvalidValue, d, i)
		}
	}
	return nil
}

func finite(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0)
}

// AsInt converts numerically where it can; everything else reads as zero.
func (v Value) AsInt() int64 {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindDouble:
		return int64(v.Double)
	case KindString:
		i, _ := strconv.ParseInt(v.Str, 10, 64)
		return i
	}
	return 0
}

func (v Value) AsDouble() float64 {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int)
	case KindDouble:
		return v.Double
	case KindDoubles:
		if len(v.Doubles) > 0 {
			return v.Doubles[0]
		}
	case KindString:
		d, _ := strconv.ParseFloat(v.Str, 64)
		return d
	}
	return 0
}

func (v Value) AsDoubles() []float64 {
	switch v.Kind {
	case KindDoubles:
		return slices.Clone(v.Doubles)
	case KindInteger, KindDouble:
		return []float64{v.AsDouble()}
	}
	return nil
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case KindDoubles:
		s := "["
		for i, d := range v.Doubles {
			if i > 0 {
				s += ", "
			}
			s += strconv.FormatFloat(d, 'g', -1, 64)
		}
		return s + "]"
	case KindString:
		return v.Str
	}
	return ""
}

func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Int == o.Int && v.Double == o.Double &&
		v.Str == o.Str && slices.Equal(v.Doubles, o.Doubles)
}
