package knowledge

import "fmt"

// Integer is a named integer variable bound to a store view.
type Integer struct {
	vars Variables
	name string
}

func NewInteger(vars Variables, name string) Integer {
	return Integer{vars: vars, name: name}
}

func (c Integer) Name() string { return c.name }

// Get returns the current value; an unset variable reads as zero.
func (c Integer) Get() (int64, error) {
	v, err := get(c.vars, c.name)
	if err != nil {
		return 0, err
	}
	return v.AsInt(), nil
}

func (c Integer) Set(i int64) error {
	return set(c.vars, c.name, IntValue(i))
}

// Inc adds one and returns the new value.
func (c Integer) Inc() (int64, error) {
	i, err := c.Get()
	if err != nil {
		return 0, err
	}
	i++
	return i, c.Set(i)
}

// Double is a named floating-point variable.
type Double struct {
	vars Variables
	name string
}

func NewDouble(vars Variables, name string) Double {
	return Double{vars: vars, name: name}
}

func (c Double) Name() string { return c.name }

func (c Double) Get() (float64, error) {
	v, err := get(c.vars, c.name)
	if err != nil {
		return 0, err
	}
	return v.AsDouble(), nil
}

func (c Double) Set(d float64) error {
	return set(c.vars, c.name, DoubleValue(d))
}

// DoubleArray is a fixed-size array of doubles stored under one key, so that
// all components replicate together.
type DoubleArray struct {
	vars Variables
	name string
	size int
}

func NewDoubleArray(vars Variables, name string, size int) DoubleArray {
	return DoubleArray{vars: vars, name: name, size: size}
}

func (c DoubleArray) Name() string { return c.name }
func (c DoubleArray) Size() int    { return c.size }

// Get always returns Size() components, zero-padded.
func (c DoubleArray) Get() ([]float64, error) {
	v, err := get(c.vars, c.name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, c.size)
	copy(out, v.AsDoubles())
	return out, nil
}

func (c DoubleArray) Set(d []float64) error {
	if len(d) != c.size {
		return fmt.Errorf("set %s: want %d components, got %d", c.name, c.size, len(d))
	}
	return set(c.vars, c.name, DoublesValue(d))
}

// SetIndex updates one component, leaving the others as they are.
func (c DoubleArray) SetIndex(i int, d float64) error {
	if i < 0 || i >= c.size {
		return fmt.Errorf("set %s[%d]: index out of range", c.name, i)
	}
	cur, err := c.Get()
	if err != nil {
		return err
	}
	cur[i] = d
	return c.Set(cur)
}

// String is a named string variable.
type String struct {
	vars Variables
	name string
}

func NewString(vars Variables, name string) String {
	return String{vars: vars, name: name}
}

func (c String) Name() string { return c.name }

func (c String) Get() (string, error) {
	v, err := get(c.vars, c.name)
	if err != nil {
		return "", err
	}
	if v.Kind == KindNone {
		return "", nil
	}
	return v.String(), nil
}

func (c String) Set(s string) error {
	return set(c.vars, c.name, StringValue(s))
}

func get(vars Variables, name string) (Value, error) {
	if vars == nil {
		return Value{}, ErrUnbound
	}
	v, _, err := vars.Get(name)
	if err != nil {
		return Value{}, fmt.Errorf("get %s: %w", name, err)
	}
	return v, nil
}

func set(vars Variables, name string, v Value) error {
	if vars == nil {
		return ErrUnbound
	}
	if err := vars.Set(name, v); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}
