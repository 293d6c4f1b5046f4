package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/smasher164/sid/lexer"
	"github.com/smasher164/sid/sched"
	"github.com/smasher164/sid/types"
	"github.com/smasher164/sid/value"
)

// InvokeScript runs the items of code in order on st.
func (m *Machine) InvokeScript(ctx context.Context, code *value.Code, st *value.Stack) error {
	if err := m.admit(code.Effect, st, code.Span); err != nil {
		return err
	}
	ctx = deeper(ctx)
	for _, it := range code.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.exec(ctx, it, st); err != nil {
			return err
		}
	}
	return nil
}

// InvokeSubStack runs code under the machine policy. Each node works on a
// private stack seeded with the slots it reads; the block outputs are
// pushed on st once every node is done.
func (m *Machine) InvokeSubStack(ctx context.Context, code *value.Code, st *value.Stack) error {
	if err := m.admit(code.Effect, st, code.Span); err != nil {
		return err
	}
	g, err := m.Graph(code)
	if err != nil {
		return err
	}
	ext, err := st.PopN(g.Inputs)
	if err != nil {
		return underflow(code.Span, err)
	}
	slot := func(outs [][]value.Value, s sched.Slot) value.Value {
		if s.Node == sched.External {
			return ext[len(ext)-1-s.Index]
		}
		return outs[s.Node][s.Index]
	}
	outs := make([][]value.Value, len(g.Nodes))
	ctx = deeper(ctx)
	err = m.policy.schedule(ctx, g, func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := g.Nodes[i]
		in := make([]value.Value, len(n.In))
		for j, s := range n.In {
			in[j] = slot(outs, s)
		}
		local := value.NewStack(in...)
		it := code.Items[n.Item]
		if err := m.exec(ctx, it, local); err != nil {
			return err
		}
		if local.Len() != n.Out {
			return runtimeErrorf(ArityDrift, it.Span(), "%s left %d values, expected %d", n.Label, local.Len(), n.Out)
		}
		outs[i] = local.Values()
		return nil
	})
	if err != nil {
		return err
	}
	for _, s := range g.Outputs {
		st.Push(slot(outs, s))
	}
	return nil
}

// InvokeFunction checks the arguments of fn, runs its body with the
// arguments in field order, and checks the values it returns.
func (m *Machine) InvokeFunction(ctx context.Context, fn *value.Function, st *value.Stack) error {
	code := fn.Code()
	args := fn.Args.Types()
	vals, err := st.PopN(len(args))
	if err != nil {
		return underflow(code.Span, err)
	}
	for i, want := range args {
		if !m.oracle.Compatible(vals[i].Type(), want) {
			st.Push(vals...)
			return runtimeErrorf(TypeMismatch, code.Span, "argument %q of %s: expected %s, found %s",
				fn.Args.Fields[i].Name, fn, want, vals[i].Type())
		}
	}
	base := st.Len()
	st.Push(vals...)
	m.logf(ctx, "(", "%s %v", fn, vals)
	if err := m.invokeCode(ctx, code, st); err != nil {
		return err
	}
	returns := fn.Returns.Types()
	if st.Len() != base+len(returns) {
		return runtimeErrorf(ReturnMismatch, code.Span, "%s left %d values, declared %d", fn, st.Len()-base, len(returns))
	}
	rets, _ := st.Peek(len(returns))
	for i, want := range returns {
		if !m.oracle.Compatible(rets[i].Type(), want) {
			return runtimeErrorf(ReturnMismatch, code.Span, "return %q of %s: expected %s, found %s",
				fn.Returns.Fields[i].Name, fn, want, rets[i].Type())
		}
	}
	return nil
}

// EvalMatch pops the scrutinee and runs the action of the first case whose
// pattern it satisfies. The values below the scrutinee that the deepest case
// would consume are taken as well; the chosen action gets the top of them
// and the rest are dropped.
func (m *Machine) EvalMatch(ctx context.Context, mt value.Match, st *value.Stack) error {
	v, err := st.Pop()
	if err != nil {
		return underflow(mt.At, err)
	}
	below, err := st.PopN(mt.Depth())
	if err != nil {
		return underflow(mt.At, err)
	}
	for i, c := range mt.Cases {
		if !c.Matches(m.oracle, v) {
			continue
		}
		m.logf(ctx, "?", "%s matches case %d %s", v, i, c.Pattern)
		e, _ := value.EffectOf(c.Action)
		local := value.NewStack(below[len(below)-len(e.Consumes):]...)
		if err := m.call(ctx, c.Action, local, mt.At); err != nil {
			return err
		}
		st.Push(local.Values()...)
		return nil
	}
	return runtimeErrorf(NoMatchingCase, mt.At, "no case matches %s", v)
}

// admit checks that st holds values of the types e consumes.
func (m *Machine) admit(e types.Effect, st *value.Stack, at lexer.Span) error {
	n := len(e.Consumes)
	vals, err := st.Peek(n)
	if err != nil {
		return underflow(at, err)
	}
	for k, want := range e.Consumes {
		if v := vals[n-1-k]; !m.oracle.Compatible(v.Type(), want) {
			return runtimeErrorf(TypeMismatch, at, "value %d from the top: expected %s, found %s %s", k, want, v.Type(), v)
		}
	}
	return nil
}

func underflow(at lexer.Span, err error) error {
	if errors.Is(err, value.ErrUnderflow) {
		return &RuntimeError{Kind: StackUnderflow, Span: at, Err: err}
	}
	return err
}

func (m *Machine) exec(ctx context.Context, it value.Item, st *value.Stack) error {
	m.logf(ctx, ">", "%s", value.ItemString(it))
	switch it := it.(type) {
	case value.Push:
		st.Push(it.Value)
	case value.Load:
		st.Push(it.Binding.Value)
	case value.Call:
		return m.call(ctx, it.Binding.Value, st, it.At)
	case value.Exec:
		code, err := m.render(it.Code, st, it.At)
		if err != nil {
			return err
		}
		return m.invokeCode(ctx, code, st)
	case value.Build:
		code, err := m.render(it.Code, st, it.At)
		if err != nil {
			return err
		}
		st.Push(code.Quoted())
	case value.Invoke:
		v, err := st.Pop()
		if err != nil {
			return underflow(it.At, err)
		}
		return m.call(ctx, v, st, it.At)
	case value.MakeList:
		vals, err := m.collect(ctx, it.Elements)
		if err != nil {
			return err
		}
		st.Push(value.NewList(vals...))
	case value.MakeSet:
		vals, err := m.collect(ctx, it.Elements)
		if err != nil {
			return err
		}
		s, err := value.NewSet(vals...)
		if err != nil {
			return &RuntimeError{Kind: DuplicateElement, Span: it.At, Err: err}
		}
		st.Push(s)
	case value.MakeStruct:
		fields := make([]value.Field, len(it.Fields))
		for i, code := range it.Fields {
			vals, err := m.collect(ctx, code)
			if err != nil {
				return err
			}
			if len(vals) != 1 {
				return runtimeErrorf(ArityDrift, code.Span, "field %q produced %d values", it.Names[i], len(vals))
			}
			fields[i] = value.Field{Name: it.Names[i], Value: vals[0]}
		}
		s, err := value.NewStruct(fields...)
		if err != nil {
			return &RuntimeError{Kind: DuplicateElement, Span: it.At, Err: err}
		}
		st.Push(s)
	case value.Match:
		return m.EvalMatch(ctx, it, st)
	default:
		panic(fmt.Sprintf("unexpected item %T", it))
	}
	return nil
}

// render builds a template block from the values on top of st. Other
// blocks are returned as they are.
func (m *Machine) render(code *value.Code, st *value.Stack, at lexer.Span) (*value.Code, error) {
	if code.Params == 0 {
		return code, nil
	}
	vals, err := st.PopN(code.Params)
	if err != nil {
		return nil, underflow(at, err)
	}
	return code.Render(vals), nil
}

// collect runs element code on a fresh stack.
func (m *Machine) collect(ctx context.Context, code *value.Code) ([]value.Value, error) {
	local := value.NewStack()
	if err := m.invokeCode(ctx, code, local); err != nil {
		return nil, err
	}
	return local.Values(), nil
}

func (m *Machine) invokeCode(ctx context.Context, code *value.Code, st *value.Stack) error {
	if code.Kind == value.SubStackBlock {
		return m.InvokeSubStack(ctx, code, st)
	}
	return m.InvokeScript(ctx, code, st)
}

func (m *Machine) call(ctx context.Context, v value.Value, st *value.Stack, at lexer.Span) error {
	switch v := v.(type) {
	case *value.Primitive:
		if err := m.admit(v.Effect, st, at); err != nil {
			return err
		}
		m.logf(ctx, "!", "%s %s", v.Name, st)
		if err := v.Run(m, st); err != nil {
			return &RuntimeError{Kind: PrimitiveFailed, Span: at, Msg: v.Name, Err: err}
		}
		return nil
	case *value.Function:
		return m.InvokeFunction(ctx, v, st)
	case value.SubStack:
		return m.InvokeSubStack(ctx, v.Code, st)
	case value.Script:
		return m.InvokeScript(ctx, v.Code, st)
	}
	return runtimeErrorf(NotCallable, at, "%s is not callable", v)
}
