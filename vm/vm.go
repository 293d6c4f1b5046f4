// Package vm executes resolved code on a value stack.
package vm

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/smasher164/sid/builtin"
	"github.com/smasher164/sid/check"
	"github.com/smasher164/sid/internal/panicerr"
	"github.com/smasher164/sid/names"
	"github.com/smasher164/sid/parser"
	"github.com/smasher164/sid/sched"
	"github.com/smasher164/sid/types"
	"github.com/smasher164/sid/value"
)

// Machine holds a session: the definitions made so far and the value stack
// they act on.
type Machine struct {
	logging

	out      syncWriter
	registry value.Registry
	oracle   types.Oracle
	policy   Policy
	stack    *value.Stack

	session *names.Scope
	checker *check.Checker
	graphs  sync.Map // *value.Code -> *sched.Graph
}

var _ value.Env = (*Machine)(nil)

func New(opts ...Option) *Machine {
	m := &Machine{}
	defaults.apply(m)
	Options(opts...).apply(m)
	if m.registry == nil {
		m.registry = builtin.Std()
	}
	if m.oracle == nil {
		m.oracle = types.Structural{}
	}
	if m.stack == nil {
		m.stack = value.NewStack()
	}
	m.checker = check.New(m.oracle)
	m.session = names.Universe(m.registry).AddScope()
	return m
}

// Output is the writer shared by all primitives of the machine.
func (m *Machine) Output() io.Writer { return &m.out }

// Stack returns the machine stack, bottom first.
func (m *Machine) Stack() []value.Value { return m.stack.Values() }

// Scope returns the session scope holding the definitions compiled so far.
func (m *Machine) Scope() *names.Scope { return m.session }

// Compile resolves and checks src. Its definitions join the session only
// if the whole source compiles.
func (m *Machine) Compile(name, src string) (*value.Code, error) {
	f, err := parser.ParseString(name, src)
	if err != nil {
		return nil, err
	}
	return m.resolve(f)
}

// Load compiles a source file from fsys.
func (m *Machine) Load(fsys fs.FS, filename string) (*value.Code, error) {
	f, err := parser.ParseFile(fsys, filename)
	if err != nil {
		return nil, err
	}
	return m.resolve(f)
}

func (m *Machine) resolve(f parser.File) (*value.Code, error) {
	scope := m.session.AddScope()
	code, err := names.NewResolver(m.checker).Resolve(f, scope)
	if err != nil {
		return nil, err
	}
	if err := m.session.Commit(scope); err != nil {
		return nil, err
	}
	return code, nil
}

// Run executes a top-level script on the machine stack. A failing run
// leaves the stack as the failure found it; values already consumed are
// not restored.
func (m *Machine) Run(ctx context.Context, code *value.Code) error {
	return panicerr.Recover("sid", func() error {
		return m.InvokeScript(ctx, code, m.stack)
	})
}

// Eval compiles and runs src.
func (m *Machine) Eval(ctx context.Context, name, src string) error {
	code, err := m.Compile(name, src)
	if err != nil {
		return err
	}
	return m.Run(ctx, code)
}

// Graph returns the cached schedule of a sub-stack. Blocks rendered from
// one template share its schedule.
func (m *Machine) Graph(code *value.Code) (*sched.Graph, error) {
	if code.Template != nil {
		code = code.Template
	}
	if g, ok := m.graphs.Load(code); ok {
		return g.(*sched.Graph), nil
	}
	g, err := sched.Analyze(code)
	if err != nil {
		return nil, err
	}
	actual, _ := m.graphs.LoadOrStore(code, g)
	return actual.(*sched.Graph), nil
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *syncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}

type logging struct {
	logfn func(mess string, args ...interface{})
}

type depthKey struct{}

func depthOf(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

func deeper(ctx context.Context) context.Context {
	return context.WithValue(ctx, depthKey{}, depthOf(ctx)+1)
}

// logf writes one trace line, repeating mark once per nesting level.
func (log logging) logf(ctx context.Context, mark, mess string, args ...interface{}) {
	if log.logfn == nil {
		return
	}
	mark = strings.Repeat(mark, depthOf(ctx)+1)
	if len(args) > 0 {
		mess = fmt.Sprintf(mess, args...)
	}
	log.logfn("%v %v", mark, mess)
}
