// Package builtin is the default primitive registry.
package builtin

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/rivo/uniseg"
	"github.com/smasher164/sid/types"
	"github.com/smasher164/sid/value"
	"golang.org/x/exp/maps"
)

var (
	ErrDomain       = errors.New("argument out of domain")
	ErrDivideByZero = errors.New("division by zero")
)

// Table is a Registry backed by a map.
type Table struct {
	prims map[string]*value.Primitive
}

var _ value.Registry = (*Table)(nil)

func NewTable(prims ...*value.Primitive) *Table {
	t := &Table{prims: make(map[string]*value.Primitive, len(prims))}
	for _, p := range prims {
		t.prims[p.Name] = p
	}
	return t
}

func (t *Table) Lookup(name string) (*value.Primitive, bool) {
	p, ok := t.prims[name]
	return p, ok
}

func (t *Table) Names() []string {
	names := maps.Keys(t.prims)
	sort.Strings(names)
	return names
}

// With returns a copy of t with prims added or replaced.
func (t *Table) With(prims ...*value.Primitive) *Table {
	nt := NewTable(maps.Values(t.prims)...)
	for _, p := range prims {
		nt.prims[p.Name] = p
	}
	return nt
}

func effect(consumes []types.Type, produces ...types.Type) types.Effect {
	return types.Effect{Consumes: consumes, Produces: produces}
}

func in(ts ...types.Type) []types.Type { return ts }

// Std returns the standard words.
func Std() *Table {
	return NewTable(
		&value.Primitive{
			Name:   "print",
			Doc:    "Writes a string.",
			Effect: types.Effect{Consumes: in(types.String), Impure: true},
			Run:    printer(""),
		},
		&value.Primitive{
			Name:   "println",
			Doc:    "Writes a string and a newline.",
			Effect: types.Effect{Consumes: in(types.String), Impure: true},
			Run:    printer("\n"),
		},
		&value.Primitive{
			Name:    "duplicate",
			Doc:     "Copies the top value.",
			Effect:  effect(in(types.Any), types.Any, types.Any),
			Produce: func(ts []types.Type) []types.Type { return []types.Type{ts[0], ts[0]} },
			Run: func(_ value.Env, st *value.Stack) error {
				v, err := st.Pop()
				if err != nil {
					return err
				}
				st.Push(v, v)
				return nil
			},
		},
		&value.Primitive{
			Name:   "drop",
			Doc:    "Discards the top value.",
			Effect: effect(in(types.Any)),
			Run: func(_ value.Env, st *value.Stack) error {
				_, err := st.Pop()
				return err
			},
		},
		&value.Primitive{
			Name:    "swap",
			Doc:     "Exchanges the top two values.",
			Effect:  effect(in(types.Any, types.Any), types.Any, types.Any),
			Produce: func(ts []types.Type) []types.Type { return []types.Type{ts[0], ts[1]} },
			Run: func(_ value.Env, st *value.Stack) error {
				vs, err := st.PopN(2)
				if err != nil {
					return err
				}
				st.Push(vs[1], vs[0])
				return nil
			},
		},
		&value.Primitive{
			Name:    "over",
			Doc:     "Copies the second value to the top.",
			Effect:  effect(in(types.Any, types.Any), types.Any, types.Any, types.Any),
			Produce: func(ts []types.Type) []types.Type { return []types.Type{ts[1], ts[0], ts[1]} },
			Run: func(_ value.Env, st *value.Stack) error {
				vs, err := st.PopN(2)
				if err != nil {
					return err
				}
				st.Push(vs[0], vs[1], vs[0])
				return nil
			},
		},
		arith("add", func(a, b int64) (int64, error) { return a + b, nil }),
		arith("sub", func(a, b int64) (int64, error) { return a - b, nil }),
		arith("mul", func(a, b int64) (int64, error) { return a * b, nil }),
		arith("div", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, ErrDivideByZero
			}
			return a / b, nil
		}),
		&value.Primitive{
			Name:   "sqrt",
			Doc:    "Square root of an int or float.",
			Effect: effect(in(types.Any), types.Float),
			Run: func(_ value.Env, st *value.Stack) error {
				v, err := st.Pop()
				if err != nil {
					return err
				}
				var x float64
				switch v := v.(type) {
				case value.Int:
					x = float64(v)
				case value.Float:
					x = float64(v)
				default:
					return fmt.Errorf("sqrt of %s: %w", v, ErrDomain)
				}
				if x < 0 {
					return fmt.Errorf("sqrt of %s: %w", v, ErrDomain)
				}
				st.Push(value.Float(math.Sqrt(x)))
				return nil
			},
		},
		&value.Primitive{
			Name:   "eq",
			Doc:    "Structural equality.",
			Effect: effect(in(types.Any, types.Any), types.Bool),
			Run: func(_ value.Env, st *value.Stack) error {
				vs, err := st.PopN(2)
				if err != nil {
					return err
				}
				st.Push(value.Bool(value.Equal(vs[0], vs[1])))
				return nil
			},
		},
		&value.Primitive{
			Name:   "not",
			Effect: effect(in(types.Bool), types.Bool),
			Run: func(_ value.Env, st *value.Stack) error {
				v, err := st.Pop()
				if err != nil {
					return err
				}
				st.Push(!v.(value.Bool))
				return nil
			},
		},
		&value.Primitive{
			Name:   "concat",
			Doc:    "Joins two strings.",
			Effect: effect(in(types.String, types.String), types.String),
			Run: func(_ value.Env, st *value.Stack) error {
				vs, err := st.PopN(2)
				if err != nil {
					return err
				}
				st.Push(vs[0].(value.String) + vs[1].(value.String))
				return nil
			},
		},
		&value.Primitive{
			Name:   "show",
			Doc:    "Renders a value as source text.",
			Effect: effect(in(types.Any), types.String),
			Run: func(_ value.Env, st *value.Stack) error {
				v, err := st.Pop()
				if err != nil {
					return err
				}
				st.Push(value.String(v.String()))
				return nil
			},
		},
		&value.Primitive{
			Name:   "length",
			Doc:    "Number of characters in a string or items in a collection.",
			Effect: effect(in(types.Any), types.Int),
			Run: func(_ value.Env, st *value.Stack) error {
				v, err := st.Pop()
				if err != nil {
					return err
				}
				var n int
				switch v := v.(type) {
				case value.String:
					n = uniseg.GraphemeClusterCount(string(v))
				case *value.List:
					n = len(v.Items)
				case *value.Set:
					n = v.Len()
				case *value.Struct:
					n = len(v.Fields)
				default:
					return fmt.Errorf("length of %s: %w", v, ErrDomain)
				}
				st.Push(value.Int(n))
				return nil
			},
		},
		collection("list", func(t types.Type) types.Type { return types.List{Element: t} }),
		collection("set", func(t types.Type) types.Type { return types.Set{Element: t} }),
		&value.Primitive{
			Name:     "typeof",
			Doc:      "The type of a value. Applied to quoted code it gives a code type for argument declarations.",
			Effect:   effect(in(types.Any), types.TypeT),
			Comptime: true,
			Run: func(_ value.Env, st *value.Stack) error {
				v, err := st.Pop()
				if err != nil {
					return err
				}
				st.Push(value.TypeValue{T: v.Type()})
				return nil
			},
		},
	)
}

func printer(suffix string) func(value.Env, *value.Stack) error {
	return func(env value.Env, st *value.Stack) error {
		v, err := st.Pop()
		if err != nil {
			return err
		}
		_, err = io.WriteString(env.Output(), string(v.(value.String))+suffix)
		return err
	}
}

func arith(name string, op func(a, b int64) (int64, error)) *value.Primitive {
	return &value.Primitive{
		Name:   name,
		Effect: effect(in(types.Int, types.Int), types.Int),
		Run: func(_ value.Env, st *value.Stack) error {
			vs, err := st.PopN(2)
			if err != nil {
				return err
			}
			r, err := op(int64(vs[0].(value.Int)), int64(vs[1].(value.Int)))
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			st.Push(value.Int(r))
			return nil
		},
	}
}

// collection is a type constructor such as "int list".
func collection(name string, ctor func(types.Type) types.Type) *value.Primitive {
	return &value.Primitive{
		Name:     name,
		Doc:      "Builds the " + name + " type of an element type.",
		Effect:   effect(in(types.TypeT), types.TypeT),
		Comptime: true,
		Run: func(_ value.Env, st *value.Stack) error {
			v, err := st.Pop()
			if err != nil {
				return err
			}
			st.Push(value.TypeValue{T: ctor(v.(value.TypeValue).T)})
			return nil
		},
	}
}
