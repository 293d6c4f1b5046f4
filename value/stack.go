package value

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

var ErrUnderflow = errors.New("stack underflow")

// Stack is a value stack. It is not safe for concurrent use; concurrent
// evaluation gives each task its own stack.
type Stack struct {
	vals []Value
}

func NewStack(vals ...Value) *Stack {
	return &Stack{vals: slices.Clone(vals)}
}

func (s *Stack) Len() int { return len(s.vals) }

func (s *Stack) Push(vals ...Value) {
	s.vals = append(s.vals, vals...)
}

func (s *Stack) Pop() (Value, error) {
	if len(s.vals) == 0 {
		return nil, ErrUnderflow
	}
	v := s.vals[len(s.vals)-1]
	s.vals = s.vals[:len(s.vals)-1]
	return v, nil
}

// PopN removes the top n values, returned bottom to top.
func (s *Stack) PopN(n int) ([]Value, error) {
	vals, err := s.Peek(n)
	if err != nil {
		return nil, err
	}
	s.vals = s.vals[:len(s.vals)-n]
	return vals, nil
}

// Peek returns a copy of the top n values, bottom to top.
func (s *Stack) Peek(n int) ([]Value, error) {
	if n > len(s.vals) {
		return nil, fmt.Errorf("%w: need %d values, have %d", ErrUnderflow, n, len(s.vals))
	}
	return slices.Clone(s.vals[len(s.vals)-n:]), nil
}

// Values returns a copy of the stack, bottom to top.
func (s *Stack) Values() []Value {
	return slices.Clone(s.vals)
}

func (s *Stack) String() string {
	parts := make([]string, len(s.vals))
	for i, v := range s.vals {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
