// Package check computes and validates the stack effects of resolved code.
package check

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/smasher164/sid/lexer"
	"github.com/smasher164/sid/types"
	"github.com/smasher164/sid/value"
	"golang.org/x/exp/slices"
)

type ErrorKind int

const (
	Mismatch ErrorKind = iota
	UnknownEffect
	MatchArityMismatch
	BadPattern
	ArgumentMismatch
	ReturnMismatch
	LiteralConsumes
	FieldArity
)

var errorKindNames = [...]string{
	Mismatch:           "type mismatch",
	UnknownEffect:      "unknown stack effect",
	MatchArityMismatch: "match arity mismatch",
	BadPattern:         "bad match pattern",
	ArgumentMismatch:   "argument mismatch",
	ReturnMismatch:     "return mismatch",
	LiteralConsumes:    "literal consumes values",
	FieldArity:         "field arity",
}

func (k ErrorKind) String() string { return errorKindNames[k] }

type TypeError struct {
	Filename string
	Kind     ErrorKind
	Expected types.Type
	Actual   types.Type
	Span     lexer.Span
	Msg      string
}

func (e *TypeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Span, e.Kind)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Expected != nil || e.Actual != nil {
		msg += fmt.Sprintf(" (expected %v, found %v)", e.Expected, e.Actual)
	}
	if e.Filename == "" {
		return msg
	}
	return e.Filename + ":" + msg
}

type Checker struct {
	Oracle types.Oracle
}

func New(o types.Oracle) *Checker {
	if o == nil {
		o = types.Structural{}
	}
	return &Checker{Oracle: o}
}

// sim is a symbolic stack. Values popped past its bottom are demands on the
// enclosing stack and are recorded in consumes.
type sim struct {
	c        *Checker
	stack    []types.Type
	consumes []types.Type
	impure   bool
	// sealed stacks have nothing below them, so popping past the bottom
	// is an error instead of a demand.
	sealed bool
	// low is the lowest height the stack has had.
	low int
}

func (s *sim) push(ts ...types.Type) {
	s.stack = append(s.stack, ts...)
}

func (s *sim) pop(expected types.Type, at lexer.Span, kind ErrorKind) (types.Type, error) {
	if len(s.stack) == 0 {
		if s.sealed {
			return nil, &TypeError{Kind: kind, Expected: expected, Span: at, Msg: "stack is empty"}
		}
		s.consumes = append(s.consumes, expected)
		return expected, nil
	}
	t := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.low = min(s.low, len(s.stack))
	if !s.c.Oracle.Compatible(t, expected) {
		return nil, &TypeError{Kind: kind, Expected: expected, Actual: t, Span: at}
	}
	return t, nil
}

// apply pops the consumed types, returning the actual types popped top first.
func (s *sim) apply(e types.Effect, at lexer.Span) ([]types.Type, error) {
	popped := make([]types.Type, 0, len(e.Consumes))
	for _, want := range e.Consumes {
		t, err := s.pop(want, at, Mismatch)
		if err != nil {
			return nil, err
		}
		popped = append(popped, t)
	}
	s.impure = s.impure || e.Impure
	return popped, nil
}

func (s *sim) effect() types.Effect {
	return types.Effect{
		Consumes: slices.Clone(s.consumes),
		Produces: slices.Clone(s.stack),
		Impure:   s.impure,
	}
}

// Code computes the effect of code and of each of its items, storing them
// on code.
func (c *Checker) Code(code *value.Code) (types.Effect, error) {
	s := &sim{c: c}
	code.Effects = make([]types.Effect, len(code.Items))
	for i, it := range code.Items {
		e, err := c.item(s, it)
		if err != nil {
			return types.Effect{}, err
		}
		code.Effects[i] = e
	}
	code.Effect = s.effect()
	code.Checked = true
	return code.Effect, nil
}

// item applies it to s and returns the effect it had.
func (c *Checker) item(s *sim, it value.Item) (types.Effect, error) {
	switch it := it.(type) {
	case value.Push:
		t := it.Value.Type()
		s.push(t)
		return types.Effect{Produces: []types.Type{t}}, nil
	case value.Load:
		t := it.Binding.Value.Type()
		s.push(t)
		return types.Effect{Produces: []types.Type{t}}, nil
	case value.Call:
		return c.invoke(s, it.Binding.Value, it.At)
	case value.Exec:
		if it.Code.Params == 0 {
			return c.run(s, it.Code.Effect, nil, it.At)
		}
		taken, err := c.params(s, it.Code, it.At)
		if err != nil {
			return types.Effect{}, err
		}
		ran, err := c.run(s, it.Code.Effect, nil, it.At)
		if err != nil {
			return types.Effect{}, err
		}
		ran.Consumes = append(taken, ran.Consumes...)
		return ran, nil
	case value.Build:
		taken, err := c.params(s, it.Code, it.At)
		if err != nil {
			return types.Effect{}, err
		}
		t := it.Code.Quoted().Type()
		s.push(t)
		return types.Effect{Consumes: taken, Produces: []types.Type{t}}, nil
	case value.Param:
		s.push(types.Any)
		return types.Effect{Produces: []types.Type{types.Any}}, nil
	case value.Invoke:
		return c.dynamic(s, it.At)
	case value.MakeList:
		elem, err := c.literal(it.Elements, it.At)
		if err != nil {
			return types.Effect{}, err
		}
		t := types.List{Element: elem}
		s.push(t)
		return types.Effect{Produces: []types.Type{t}, Impure: it.Elements.Effect.Impure}, nil
	case value.MakeSet:
		elem, err := c.literal(it.Elements, it.At)
		if err != nil {
			return types.Effect{}, err
		}
		t := types.Set{Element: elem}
		s.push(t)
		return types.Effect{Produces: []types.Type{t}, Impure: it.Elements.Effect.Impure}, nil
	case value.MakeStruct:
		return c.makeStruct(s, it)
	case value.Match:
		return c.match(s, it)
	}
	panic(fmt.Sprintf("unexpected item %T", it))
}

// run applies a static effect. produce optionally refines the outputs from
// the actual inputs.
func (c *Checker) run(s *sim, e types.Effect, produce func([]types.Type) []types.Type, at lexer.Span) (types.Effect, error) {
	popped, err := s.apply(e, at)
	if err != nil {
		return types.Effect{}, err
	}
	out := e.Produces
	if produce != nil {
		out = produce(popped)
	}
	s.push(out...)
	return types.Effect{Consumes: e.Consumes, Produces: out, Impure: e.Impure}, nil
}

// params pops the values a template block takes when it is built.
func (c *Checker) params(s *sim, code *value.Code, at lexer.Span) ([]types.Type, error) {
	taken := make([]types.Type, code.Params)
	for i := range taken {
		t, err := s.pop(types.Any, at, Mismatch)
		if err != nil {
			return nil, err
		}
		taken[i] = t
	}
	return taken, nil
}

func (c *Checker) invoke(s *sim, v value.Value, at lexer.Span) (types.Effect, error) {
	if p, ok := v.(*value.Primitive); ok {
		return c.run(s, p.Effect, p.Produce, at)
	}
	e, ok := value.EffectOf(v)
	if !ok {
		return types.Effect{}, &TypeError{Kind: UnknownEffect, Actual: v.Type(), Span: at, Msg: fmt.Sprintf("%s is not callable", v)}
	}
	return c.run(s, e, nil, at)
}

func (c *Checker) dynamic(s *sim, at lexer.Span) (types.Effect, error) {
	if len(s.stack) == 0 {
		return types.Effect{}, &TypeError{Kind: UnknownEffect, Span: at, Msg: "invoked value comes from outside the block"}
	}
	t := s.stack[len(s.stack)-1]
	e, ok := types.EffectOf(t)
	if !ok {
		return types.Effect{}, &TypeError{Kind: UnknownEffect, Actual: t, Span: at, Msg: "only code values can be invoked"}
	}
	if _, err := s.pop(t, at, Mismatch); err != nil {
		return types.Effect{}, err
	}
	ran, err := c.run(s, e, nil, at)
	if err != nil {
		return types.Effect{}, err
	}
	ran.Consumes = append([]types.Type{t}, ran.Consumes...)
	return ran, nil
}

// literal checks the element code of a collection literal, returning the
// element type.
func (c *Checker) literal(code *value.Code, at lexer.Span) (types.Type, error) {
	if n := len(code.Effect.Consumes); n > 0 {
		return nil, &TypeError{Kind: LiteralConsumes, Span: at, Msg: fmt.Sprintf("elements consume %d values from outside the literal", n)}
	}
	return types.JoinAll(code.Effect.Produces), nil
}

func (c *Checker) makeStruct(s *sim, it value.MakeStruct) (types.Effect, error) {
	t := types.Struct{Fields: make([]types.Field, len(it.Fields))}
	impure := false
	for i, f := range it.Fields {
		if _, err := c.literal(f, it.At); err != nil {
			return types.Effect{}, err
		}
		if n := len(f.Effect.Produces); n != 1 {
			return types.Effect{}, &TypeError{Kind: FieldArity, Span: f.Span, Msg: fmt.Sprintf("field %q produces %d values", it.Names[i], n)}
		}
		t.Fields[i] = types.Field{Name: it.Names[i], Type: f.Effect.Produces[0]}
		impure = impure || f.Effect.Impure
	}
	s.push(t)
	return types.Effect{Produces: []types.Type{t}, Impure: impure}, nil
}

// match types a match from its deepest case. Below the scrutinee it takes
// as many values as the hungriest action consumes; each position must suit
// every action that reaches it. Only the produced arity has to agree.
func (c *Checker) match(s *sim, it value.Match) (types.Effect, error) {
	if len(it.Cases) == 0 {
		return types.Effect{}, &TypeError{Kind: BadPattern, Span: it.At, Msg: "match needs at least one case"}
	}
	effects := make([]types.Effect, len(it.Cases))
	for i, mc := range it.Cases {
		switch mc.Pattern.(type) {
		case value.TypeValue, *value.Set:
		default:
			return types.Effect{}, &TypeError{Kind: BadPattern, Actual: mc.Pattern.Type(), Span: it.At, Msg: "a pattern is a type or a set"}
		}
		e, ok := value.EffectOf(mc.Action)
		if !ok {
			return types.Effect{}, &TypeError{Kind: UnknownEffect, Actual: mc.Action.Type(), Span: it.At, Msg: fmt.Sprintf("case %d action is not callable", i)}
		}
		effects[i] = e
	}
	first := effects[0]
	for i, e := range effects[1:] {
		if len(e.Produces) != len(first.Produces) {
			return types.Effect{}, &TypeError{Kind: MatchArityMismatch, Span: it.At,
				Msg: fmt.Sprintf("case 0 produces %d values but case %d produces %d", len(first.Produces), i+1, len(e.Produces))}
		}
	}
	scrutinee, err := s.pop(types.Any, it.At, Mismatch)
	if err != nil {
		return types.Effect{}, err
	}
	impure := lo.SomeBy(effects, func(e types.Effect) bool { return e.Impure })
	consumed := make([]types.Type, it.Depth())
	for k := range consumed {
		wants := lo.FilterMap(effects, func(e types.Effect, _ int) (types.Type, bool) {
			if k < len(e.Consumes) {
				return e.Consumes[k], true
			}
			return nil, false
		})
		t, err := s.pop(wants[0], it.At, Mismatch)
		if err != nil {
			return types.Effect{}, err
		}
		for _, want := range wants[1:] {
			if !c.Oracle.Compatible(t, want) {
				return types.Effect{}, &TypeError{Kind: Mismatch, Expected: want, Actual: t, Span: it.At}
			}
		}
		consumed[k] = t
	}
	produced := make([]types.Type, len(first.Produces))
	for k := range produced {
		produced[k] = types.JoinAll(lo.Map(effects, func(e types.Effect, _ int) types.Type { return e.Produces[k] }))
	}
	s.push(produced...)
	s.impure = s.impure || impure
	return types.Effect{
		Consumes: append([]types.Type{scrutinee}, consumed...),
		Produces: produced,
		Impure:   impure,
	}, nil
}

// Function checks a function body against its declared signature. The
// body runs on a stack holding only the arguments, in field order with the
// last field on top, and must leave exactly the declared returns. A body
// that could not be checked on its own, such as one invoking one of its
// arguments, takes its effect from this check.
func (c *Checker) Function(fn *value.Function, at lexer.Span) error {
	var code *value.Code
	switch b := fn.Body.(type) {
	case value.SubStack:
		code = b.Code
	case value.Script:
		code = b.Code
	default:
		return &TypeError{Kind: UnknownEffect, Actual: fn.Body.Type(), Span: at, Msg: "function body is not code"}
	}
	args := fn.Args.Types()
	s := &sim{c: c, sealed: true, low: len(args)}
	s.push(args...)
	effects := make([]types.Effect, len(code.Items))
	for i, it := range code.Items {
		e, err := c.item(s, it)
		if err != nil {
			if te, ok := err.(*TypeError); ok && te.Kind == Mismatch {
				te.Kind = ArgumentMismatch
			}
			return err
		}
		effects[i] = e
	}
	if !code.Checked {
		code.Effects = effects
		code.Effect = types.Effect{
			Consumes: types.Reversed(args[s.low:]),
			Produces: slices.Clone(s.stack[s.low:]),
			Impure:   s.impure,
		}
		code.Checked = true
	}
	returns := fn.Returns.Types()
	if len(s.stack) != len(returns) {
		return &TypeError{Kind: ReturnMismatch, Expected: fn.Returns, Actual: types.Struct{Fields: anonymous(s.stack)}, Span: at,
			Msg: fmt.Sprintf("body leaves %d values but %d returns are declared", len(s.stack), len(returns))}
	}
	for i, want := range returns {
		if !c.Oracle.Compatible(s.stack[i], want) {
			return &TypeError{Kind: ReturnMismatch, Expected: want, Actual: s.stack[i], Span: at,
				Msg: fmt.Sprintf("return %q", fn.Returns.Fields[i].Name)}
		}
	}
	return nil
}

func anonymous(ts []types.Type) []types.Field {
	return lo.Map(ts, func(t types.Type, i int) types.Field {
		return types.Field{Name: fmt.Sprint(i), Type: t}
	})
}
