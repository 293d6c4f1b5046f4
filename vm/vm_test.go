package vm_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/smasher164/sid/builtin"
	"github.com/smasher164/sid/check"
	"github.com/smasher164/sid/fsx"
	"github.com/smasher164/sid/names"
	"github.com/smasher164/sid/value"
	"github.com/smasher164/sid/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yes = `"Yes" [
	{case: {"yes", "Yes", "y", "Y"}, action: !<"That's a yes!" print! true>}
	{case: Any, action: !<"That's not yes" print! false>}
] match`

func eval(t *testing.T, src string, opts ...vm.Option) (*vm.Machine, string) {
	t.Helper()
	var out bytes.Buffer
	m := vm.New(append([]vm.Option{vm.WithOutput(&out)}, opts...)...)
	require.NoError(t, m.Eval(context.Background(), "test.sid", src))
	return m, out.String()
}

func runtimeError(t *testing.T, err error) *vm.RuntimeError {
	t.Helper()
	var rerr *vm.RuntimeError
	require.ErrorAs(t, err, &rerr)
	return rerr
}

func TestApproxPi(t *testing.T) {
	m, _ := eval(t, `"approx_pi" 3 def 3 approx_pi`)
	assert.Equal(t, []value.Value{value.Int(3), value.Int(3)}, m.Stack())
}

func TestMatch(t *testing.T) {
	m, out := eval(t, yes)
	assert.Equal(t, "That's a yes!", out)
	assert.Equal(t, []value.Value{value.Bool(true)}, m.Stack())

	m, out = eval(t, `"nope"`+yes[len(`"Yes"`):])
	assert.Equal(t, "That's not yes", out)
	assert.Equal(t, []value.Value{value.Bool(false)}, m.Stack())
}

func TestMatchDepth(t *testing.T) {
	const cases = ` [{case: int, action: !(drop 5)} {case: Any, action: !(7)}] match`
	m, _ := eval(t, "9 1"+cases)
	assert.Equal(t, []value.Value{value.Int(5)}, m.Stack())

	// a shallower case drops what it does not consume
	m, _ = eval(t, `9 "s"`+cases)
	assert.Equal(t, []value.Value{value.Int(7)}, m.Stack())

	m, _ = eval(t, `1 2 3 [{case: int, action: !(add)} {case: Any, action: !(drop 0)}] match`)
	assert.Equal(t, []value.Value{value.Int(3)}, m.Stack())
}

func TestMatchJoin(t *testing.T) {
	const cases = ` [{case: {"yes"}, action: !<1>} {case: Any, action: !<2.5>}] match`
	code, err := vm.New().Compile("test.sid", `"yes"`+cases)
	require.NoError(t, err)
	assert.Equal(t, "-- Any", code.Effect.String())

	m, _ := eval(t, `"yes"`+cases)
	assert.Equal(t, []value.Value{value.Int(1)}, m.Stack())
	m, _ = eval(t, `"no"`+cases)
	assert.Equal(t, []value.Value{value.Float(2.5)}, m.Stack())
}

func TestDeterminism(t *testing.T) {
	const src = `("a" print 1 2 add (3 4 mul) "b" print) sub show print !<"c" print> !`
	for _, p := range []vm.Policy{vm.Sequential, vm.Concurrent(0), vm.Shuffled(5)} {
		t.Run(p.String(), func(t *testing.T) {
			var stacks [][]value.Value
			var outs []string
			for i := 0; i < 2; i++ {
				m, out := eval(t, src, vm.WithPolicy(p), vm.WithStack(value.Int(7)))
				stacks = append(stacks, m.Stack())
				outs = append(outs, out)
			}
			assert.Equal(t, stacks[0], stacks[1])
			assert.Equal(t, outs[0], outs[1])
			assert.Equal(t, "ab-9c", outs[0])
			assert.Equal(t, []value.Value{value.Int(7)}, stacks[0])
		})
	}
}

func TestFunction(t *testing.T) {
	m, out := eval(t, `
		"print_twice" "Prints a message twice" {message: str} !<duplicate print print> {} fn def
		"hi" print_twice`)
	assert.Equal(t, "hihi", out)
	assert.Empty(t, m.Stack())

	m, _ = eval(t, `
		"inc" "Adds one" {x: int} !(1 add) {r: int} fn def
		41 inc !inc !`)
	assert.Equal(t, []value.Value{value.Int(43)}, m.Stack())
}

func TestFunctionArgument(t *testing.T) {
	m, _ := eval(t, `
		"apply" "Runs f on x" {x: int, f: !(1 add) typeof} !<!> {r: int} fn def
		41 !(2 mul) apply`)
	assert.Equal(t, []value.Value{value.Int(82)}, m.Stack())

	m, out := eval(t, `
		"twice" "Runs f twice" {f: !<"" print> typeof} !(duplicate ! !) {} fn def
		!<"hi" print> twice`)
	assert.Equal(t, "hihi", out)
	assert.Empty(t, m.Stack())

	err := vm.New().Eval(context.Background(), "test.sid", `
		"apply" "" {x: int, f: !(1 add) typeof} !<!> {r: int} fn def
		1 !("s" concat) apply`)
	var terr *check.TypeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, check.Mismatch, terr.Kind)
}

func TestTemplates(t *testing.T) {
	m, _ := eval(t, `10 3 ($2 $1 sub)`)
	assert.Equal(t, []value.Value{value.Int(7)}, m.Stack())

	m, _ = eval(t, `2 5 !($1 add) !`)
	assert.Equal(t, []value.Value{value.Int(7)}, m.Stack())

	// the value is taken when the block is built, not when it runs
	m, _ = eval(t, `"k" 1 def 5 !($1 $k add) "x" swap !`)
	assert.Equal(t, []value.Value{value.String("x"), value.Int(6)}, m.Stack())

	for _, p := range []vm.Policy{vm.Concurrent(0), vm.Shuffled(2)} {
		m, _ = eval(t, `(1 2 ($2 $1 sub) 4 5 ($1 $2 sub))`, vm.WithPolicy(p))
		assert.Equal(t, []value.Value{value.Int(-1), value.Int(1)}, m.Stack())
	}

	m = vm.New(vm.WithStack(value.String("a")))
	rerr := runtimeError(t, m.Eval(context.Background(), "test.sid", "1 ($1 $2 add)"))
	assert.Equal(t, vm.TypeMismatch, rerr.Kind)
}

func TestPolicies(t *testing.T) {
	const src = `(1 2 add (3 4 mul) 5 sub [1 2 add, 4] {x: 6 7 mul} "s" length) drop`
	var stacks [][]value.Value
	for _, p := range []vm.Policy{vm.Sequential, vm.Concurrent(0), vm.Concurrent(1), vm.Shuffled(7), vm.Shuffled(8)} {
		t.Run(p.String(), func(t *testing.T) {
			m, _ := eval(t, src, vm.WithPolicy(p))
			stacks = append(stacks, m.Stack())
		})
	}
	require.Len(t, stacks, 5)
	for _, st := range stacks[1:] {
		assert.Equal(t, stacks[0], st)
	}
	assert.Equal(t, "[3 7 [3, 4] {x: 42}]", value.NewStack(stacks[0]...).String())
}

func TestEffectOrder(t *testing.T) {
	for _, p := range []vm.Policy{vm.Concurrent(0), vm.Shuffled(3)} {
		t.Run(p.String(), func(t *testing.T) {
			_, out := eval(t, `("a" print 1 "b" print 2 "c" print)`, vm.WithPolicy(p))
			assert.Equal(t, "abc", out)
		})
	}
}

func TestExternalInputs(t *testing.T) {
	m, _ := eval(t, `10 3 (sub 1)`, vm.WithPolicy(vm.Concurrent(0)))
	assert.Equal(t, []value.Value{value.Int(7), value.Int(1)}, m.Stack())
}

func TestCompileErrors(t *testing.T) {
	m := vm.New()
	err := m.Eval(context.Background(), "test.sid", `1 [{case: int, action: !<1>} {case: Any, action: !<>}] match`)
	var terr *check.TypeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, check.MatchArityMismatch, terr.Kind)

	err = m.Eval(context.Background(), "test.sid", `1 "a" add`)
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, check.Mismatch, terr.Kind)
	assert.EqualError(t, err, "test.sid:1:7-9: type mismatch (expected int, found str)")

	err = m.Eval(context.Background(), "test.sid", `"y" 1 def nope`)
	var rerr *names.ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, names.UnknownName, rerr.Kind)

	// nothing from a failed compile joins the session
	_, err = m.Compile("test.sid", "y")
	require.ErrorAs(t, err, &rerr)
	assert.Empty(t, m.Stack())
}

func TestRuntimeErrors(t *testing.T) {
	ctx := context.Background()

	m := vm.New(vm.WithStack(value.String("a"), value.Int(1)))
	rerr := runtimeError(t, m.Eval(ctx, "test.sid", "add"))
	assert.Equal(t, vm.TypeMismatch, rerr.Kind)

	m = vm.New()
	rerr = runtimeError(t, m.Eval(ctx, "test.sid", "add"))
	assert.Equal(t, vm.StackUnderflow, rerr.Kind)
	assert.ErrorIs(t, rerr, value.ErrUnderflow)

	m = vm.New()
	rerr = runtimeError(t, m.Eval(ctx, "test.sid", "-4 sqrt"))
	assert.Equal(t, vm.PrimitiveFailed, rerr.Kind)
	assert.ErrorIs(t, rerr, builtin.ErrDomain)
	assert.Equal(t, "sqrt", rerr.Msg)

	m = vm.New(vm.WithStack(value.String("x")))
	rerr = runtimeError(t, m.Eval(ctx, "test.sid", "[{case: int, action: !<>}] match"))
	assert.Equal(t, vm.NoMatchingCase, rerr.Kind)
	assert.Contains(t, rerr.Error(), `no case matches "x"`)

	m = vm.New(vm.WithStack(value.String("x")))
	require.NoError(t, m.Eval(ctx, "test.sid", `"inc" "" {x: int} !<1 add> {r: int} fn def`))
	rerr = runtimeError(t, m.Eval(ctx, "test.sid", "inc"))
	assert.Equal(t, vm.TypeMismatch, rerr.Kind)
	assert.Equal(t, []value.Value{value.String("x")}, m.Stack())

	// values consumed before a failure are not restored
	m = vm.New()
	rerr = runtimeError(t, m.Eval(ctx, "test.sid", "5 {1 0 add, 1}"))
	assert.Equal(t, vm.DuplicateElement, rerr.Kind)
	assert.Equal(t, []value.Value{value.Int(5)}, m.Stack())
}

func TestNotCallable(t *testing.T) {
	m := vm.New()
	code := &value.Code{Kind: value.ScriptBlock, Items: []value.Item{value.Invoke{}}}
	err := m.InvokeScript(context.Background(), code, value.NewStack(value.Int(1)))
	assert.Equal(t, vm.NotCallable, runtimeError(t, err).Kind)
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	m := vm.New()
	require.NoError(t, m.Eval(ctx, "<repl 1>", `"x" 5 def`))
	require.NoError(t, m.Eval(ctx, "<repl 2>", "x x add"))
	assert.Equal(t, []value.Value{value.Int(10)}, m.Stack())

	err := m.Eval(ctx, "<repl 3>", `"x" 6 def`)
	var rerr *names.ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, names.Redefined, rerr.Kind)

	b, ok := m.Scope().LookupLocal("x")
	require.True(t, ok)
	assert.Equal(t, value.Int(5), b.Value)

	// a compile that fails keeps none of its definitions
	err = m.Eval(ctx, "<repl 4>", `"y" 1 def "x" 6 def`)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, names.Redefined, rerr.Kind)
	_, ok = m.Scope().LookupLocal("y")
	assert.False(t, ok)
	require.NoError(t, m.Eval(ctx, "<repl 5>", `"y" 2 def y`))
	assert.Equal(t, []value.Value{value.Int(10), value.Int(2)}, m.Stack())
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := vm.New()
	err := m.Eval(ctx, "test.sid", "1 2 add")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Stack())

	m = vm.New(vm.WithPolicy(vm.Concurrent(0)))
	err = m.Eval(ctx, "test.sid", "(1 2 add)")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	fsys := fsx.TestFS([][2]string{
		{"lib/pi.sid", "\"approx_pi\" 3 def\n"},
		{"main.sid", "approx_pi 1 add\n"},
	})
	var out bytes.Buffer
	m := vm.New(vm.WithOutput(&out))
	for _, name := range []string{"lib/pi.sid", "main.sid"} {
		code, err := m.Load(fsys, name)
		require.NoError(t, err)
		require.NoError(t, m.Run(context.Background(), code))
	}
	assert.Equal(t, []value.Value{value.Int(4)}, m.Stack())

	_, err := m.Load(fsys, "missing.sid")
	assert.Error(t, err)
}

func TestGraphCache(t *testing.T) {
	m := vm.New()
	code, err := m.Compile("test.sid", "(1 2 add)")
	require.NoError(t, err)
	sub := code.Items[0].(value.Exec).Code
	g1, err := m.Graph(sub)
	require.NoError(t, err)
	g2, err := m.Graph(sub)
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	_, err = m.Graph(code)
	assert.Error(t, err)

	// blocks rendered from one template share its schedule
	code, err = m.Compile("test.sid", "5 !($1 add)")
	require.NoError(t, err)
	tmpl := code.Items[1].(value.Build).Code
	g1, err = m.Graph(tmpl)
	require.NoError(t, err)
	g2, err = m.Graph(tmpl.Render([]value.Value{value.Int(1)}))
	require.NoError(t, err)
	assert.Same(t, g1, g2)
}

func TestTrace(t *testing.T) {
	var lines []string
	logf := func(mess string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(mess, args...))
	}
	eval(t, "1 2 add", vm.WithLogf(logf))
	assert.Equal(t, []string{
		">> push 1",
		">> push 2",
		">> call add",
		"!! add [1 2]",
	}, lines)
}

func TestParsePolicy(t *testing.T) {
	for _, tc := range []struct {
		name string
		want string
	}{
		{"", "sequential"},
		{"sequential", "sequential"},
		{"concurrent", "concurrent(0)"},
		{"shuffled", "shuffled(42)"},
	} {
		p, err := vm.ParsePolicy(tc.name, 42)
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.String())
	}
	_, err := vm.ParsePolicy("random", 1)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	fail := errors.New("boom")
	reg := builtin.Std().With(&value.Primitive{
		Name: "boom",
		Run:  func(value.Env, *value.Stack) error { return fail },
	})
	m := vm.New(vm.WithRegistry(reg))
	rerr := runtimeError(t, m.Eval(context.Background(), "test.sid", "boom"))
	assert.Equal(t, vm.PrimitiveFailed, rerr.Kind)
	assert.ErrorIs(t, rerr, fail)
}
