// Package value defines runtime values, the resolved form of code blocks,
// and the value stack.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smasher164/sid/lexer"
	"github.com/smasher164/sid/types"
)

type Value interface {
	Type() types.Type
	// String renders the value in source syntax.
	String() string
	// Hash is a canonical key; structurally equal values have equal hashes.
	Hash() string
}

var (
	_ Value = Bool(false)
	_ Value = Int(0)
	_ Value = Float(0)
	_ Value = Char("")
	_ Value = String("")
	_ Value = TypeValue{}
	_ Value = (*List)(nil)
	_ Value = (*Set)(nil)
	_ Value = (*Struct)(nil)
	_ Value = SubStack{}
	_ Value = Script{}
	_ Value = (*Function)(nil)
	_ Value = (*Primitive)(nil)
)

type Bool bool

func (Bool) Type() types.Type { return types.Bool }
func (v Bool) String() string { return strconv.FormatBool(bool(v)) }
func (v Bool) Hash() string   { return "b:" + v.String() }

type Int int64

func (Int) Type() types.Type { return types.Int }
func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }
func (v Int) Hash() string   { return "i:" + v.String() }

type Float float64

func (Float) Type() types.Type { return types.Float }

func (v Float) String() string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += "."
	}
	return s
}

func (v Float) Hash() string { return "f:" + v.String() }

// Char holds a single grapheme cluster.
type Char string

func (Char) Type() types.Type { return types.Char }
func (v Char) String() string { return lexer.QuoteChar(string(v)) }
func (v Char) Hash() string   { return "c:" + string(v) }

type String string

func (String) Type() types.Type { return types.String }
func (v String) String() string { return lexer.Quote(string(v)) }
func (v String) Hash() string   { return "s:" + string(v) }

// TypeValue is a type used as a value, such as the argument declaration of
// a function or a match pattern.
type TypeValue struct {
	T types.Type
}

func (TypeValue) Type() types.Type { return types.TypeT }
func (v TypeValue) String() string { return v.T.String() }
func (v TypeValue) Hash() string   { return "t:" + v.T.String() }

type List struct {
	Element types.Type
	Items   []Value
}

// NewList builds a list whose element type is the join of the item types.
func NewList(items ...Value) *List {
	return &List{Element: joinTypes(items), Items: items}
}

func (v *List) Type() types.Type { return types.List{Element: v.Element} }

func (v *List) String() string {
	return "[" + joinValues(v.Items, (Value).String) + "]"
}

func (v *List) Hash() string {
	return "l[" + joinValues(v.Items, (Value).Hash) + "]"
}

type Field struct {
	Name  string
	Value Value
}

type Struct struct {
	Fields []Field
}

// DuplicateError reports a repeated set element or struct field.
type DuplicateError struct {
	What string
}

func (e *DuplicateError) Error() string { return "duplicate " + e.What }

func NewStruct(fields ...Field) (*Struct, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return nil, &DuplicateError{What: fmt.Sprintf("field %q", f.Name)}
		}
		seen[f.Name] = true
	}
	return &Struct{Fields: fields}, nil
}

func (v *Struct) Type() types.Type {
	t := types.Struct{Fields: make([]types.Field, len(v.Fields))}
	for i, f := range v.Fields {
		t.Fields[i] = types.Field{Name: f.Name, Type: f.Value.Type()}
	}
	return t
}

func (v *Struct) Get(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (v *Struct) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range v.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", f.Name, f.Value)
	}
	b.WriteByte('}')
	return b.String()
}

func (v *Struct) Hash() string {
	var b strings.Builder
	b.WriteString("r{")
	for _, f := range v.Fields {
		fmt.Fprintf(&b, "%s:%s;", f.Name, f.Value.Hash())
	}
	b.WriteByte('}')
	return b.String()
}

// StructType interprets a struct whose fields all hold types as a struct
// type. It is how argument and return declarations are written.
func StructType(v Value) (types.Struct, bool) {
	s, ok := v.(*Struct)
	if !ok {
		return types.Struct{}, false
	}
	t := types.Struct{Fields: make([]types.Field, len(s.Fields))}
	for i, f := range s.Fields {
		tv, ok := f.Value.(TypeValue)
		if !ok {
			return types.Struct{}, false
		}
		t.Fields[i] = types.Field{Name: f.Name, Type: tv.T}
	}
	return t, true
}

// SubStack is a quoted sub-stack block.
type SubStack struct {
	Code *Code
}

func (v SubStack) Type() types.Type { return types.Tuple{Effect: v.Code.Effect} }
func (v SubStack) String() string   { return "!" + v.Code.Source }
func (v SubStack) Hash() string     { return fmt.Sprintf("q:%p", v.Code) }

// Script is a quoted script block.
type Script struct {
	Code *Code
}

func (v Script) Type() types.Type { return types.Script{Effect: v.Code.Effect} }
func (v Script) String() string   { return "!" + v.Code.Source }
func (v Script) Hash() string     { return fmt.Sprintf("p:%p", v.Code) }

type Function struct {
	Name    string
	Doc     string
	Args    types.Struct
	Returns types.Struct
	// Body is a SubStack or a Script.
	Body Value
}

func (fn *Function) Type() types.Type {
	impure := false
	if e, ok := types.EffectOf(fn.Body.Type()); ok {
		impure = e.Impure
	}
	return types.Function{Args: fn.Args, Returns: fn.Returns, Impure: impure}
}

func (fn *Function) Effect() types.Effect {
	return fn.Type().(types.Function).Effect()
}

func (fn *Function) String() string {
	if fn.Name != "" {
		return "!" + fn.Name
	}
	return fmt.Sprintf("%s %s %s %s fn", lexer.Quote(fn.Doc), fn.Args, fn.Body, fn.Returns)
}

func (fn *Function) Hash() string { return fmt.Sprintf("fn:%p", fn) }

// Code returns the resolved body.
func (fn *Function) Code() *Code {
	switch b := fn.Body.(type) {
	case SubStack:
		return b.Code
	case Script:
		return b.Code
	}
	panic(fmt.Sprintf("function %s has body %T", fn.Name, fn.Body))
}

// Equal compares values structurally.
func Equal(a, b Value) bool {
	return a.Hash() == b.Hash()
}

// EffectOf returns the stack effect of invoking v.
func EffectOf(v Value) (types.Effect, bool) {
	if p, ok := v.(*Primitive); ok {
		return p.Effect, true
	}
	return types.EffectOf(v.Type())
}

func joinTypes(vs []Value) types.Type {
	ts := make([]types.Type, len(vs))
	for i, v := range vs {
		ts[i] = v.Type()
	}
	return types.JoinAll(ts)
}

func joinValues(vs []Value, str func(Value) string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = str(v)
	}
	return strings.Join(parts, ", ")
}
