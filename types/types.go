package types

import (
	"fmt"
	"strings"
)

type Type interface {
	isType()
	String() string
}

var (
	_ Type = Base(0)
	_ Type = Named{}
	_ Type = Struct{}
	_ Type = List{}
	_ Type = Set{}
	_ Type = Tuple{}
	_ Type = Script{}
	_ Type = Function{}
)

type Base int

const (
	Bool Base = iota
	Int
	Float
	Char
	String
	Any
	// TypeT is the type of type values such as int or {name: str}.
	TypeT
)

var baseNames = [...]string{
	Bool:   "bool",
	Int:    "int",
	Float:  "float",
	Char:   "char",
	String: "str",
	Any:    "Any",
	TypeT:  "type",
}

func (Base) isType()          {}
func (t Base) String() string { return baseNames[t] }

// Bases lists the primitive types that have a name in source.
var Bases = []Base{Bool, Int, Float, Char, String, Any}

// Named is a type introduced by def. It aliases Type.
type Named struct {
	Name string
	Type Type
}

func (Named) isType()          {}
func (t Named) String() string { return t.Name }

type Field struct {
	Name string
	Type Type
}

// Struct is an ordered mapping of field names to types.
type Struct struct {
	Fields []Field
}

var Unit = Struct{}

func (Struct) isType() {}

func (t Struct) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range t.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", f.Name, f.Type)
	}
	b.WriteByte('}')
	return b.String()
}

// Types returns the field types in declaration order.
func (t Struct) Types() []Type {
	ts := make([]Type, len(t.Fields))
	for i, f := range t.Fields {
		ts[i] = f.Type
	}
	return ts
}

func (t Struct) Lookup(name string) (Type, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

type List struct {
	Element Type
}

func (List) isType()          {}
func (t List) String() string { return postfix(t.Element, "list") }

type Set struct {
	Element Type
}

func (Set) isType()          {}
func (t Set) String() string { return postfix(t.Element, "set") }

func postfix(elem Type, ctor string) string {
	return elem.String() + " " + ctor
}

// Tuple is the type of a sub-stack value.
type Tuple struct {
	Effect Effect
}

func (Tuple) isType()          {}
func (t Tuple) String() string { return "(" + t.Effect.String() + ")" }

// Script is the type of a script value and of primitives.
type Script struct {
	Effect Effect
}

func (Script) isType()          {}
func (t Script) String() string { return "<" + t.Effect.String() + ">" }

type Function struct {
	Args    Struct
	Returns Struct
	Impure  bool
}

func (Function) isType() {}

func (t Function) String() string {
	return fmt.Sprintf("fn %s -> %s", t.Args, t.Returns)
}

// Effect is the stack effect of calling a function.
func (t Function) Effect() Effect {
	return Effect{
		Consumes: Reversed(t.Args.Types()),
		Produces: t.Returns.Types(),
		Impure:   t.Impure,
	}
}

// Underlying strips any Named wrappers.
func Underlying(t Type) Type {
	for {
		n, ok := t.(Named)
		if !ok {
			return t
		}
		t = n.Type
	}
}

// EffectOf returns the effect of invoking a value of type t.
func EffectOf(t Type) (Effect, bool) {
	switch t := Underlying(t).(type) {
	case Tuple:
		return t.Effect, true
	case Script:
		return t.Effect, true
	case Function:
		return t.Effect(), true
	}
	return Effect{}, false
}

// Identical reports structural identity, looking through Named types.
func Identical(a, b Type) bool {
	a, b = Underlying(a), Underlying(b)
	switch a := a.(type) {
	case Base:
		b, ok := b.(Base)
		return ok && a == b
	case Struct:
		b, ok := b.(Struct)
		if !ok || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Identical(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case List:
		b, ok := b.(List)
		return ok && Identical(a.Element, b.Element)
	case Set:
		b, ok := b.(Set)
		return ok && Identical(a.Element, b.Element)
	case Tuple:
		b, ok := b.(Tuple)
		return ok && a.Effect.Identical(b.Effect)
	case Script:
		b, ok := b.(Script)
		return ok && a.Effect.Identical(b.Effect)
	case Function:
		b, ok := b.(Function)
		return ok && Identical(a.Args, b.Args) && Identical(a.Returns, b.Returns)
	}
	return false
}

// Join is the least type that both a and b can be used as.
func Join(a, b Type) Type {
	if a == nil {
		return b
	}
	if b == nil || Identical(a, b) {
		return a
	}
	return Any
}

// JoinAll joins every type in ts, returning Any for an empty list.
func JoinAll(ts []Type) Type {
	var t Type
	for _, u := range ts {
		t = Join(t, u)
	}
	if t == nil {
		return Any
	}
	return t
}
