package vm

import (
	"io"

	"github.com/smasher164/sid/types"
	"github.com/smasher164/sid/value"
)

type Option interface {
	apply(m *Machine)
}

type optionFunc func(m *Machine)

func (f optionFunc) apply(m *Machine) { f(m) }

// Options combines several options into one.
func Options(opts ...Option) Option {
	return options(opts)
}

type options []Option

func (opts options) apply(m *Machine) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(m)
		}
	}
}

var defaults = Options(
	WithOutput(io.Discard),
	WithPolicy(Sequential),
)

// WithOutput sets where primitives such as print write.
func WithOutput(w io.Writer) Option {
	return optionFunc(func(m *Machine) { m.out.w = w })
}

// WithLogf enables tracing of every executed item.
func WithLogf(logfn func(mess string, args ...interface{})) Option {
	return optionFunc(func(m *Machine) { m.logfn = logfn })
}

func WithRegistry(reg value.Registry) Option {
	return optionFunc(func(m *Machine) { m.registry = reg })
}

func WithOracle(o types.Oracle) Option {
	return optionFunc(func(m *Machine) { m.oracle = o })
}

func WithPolicy(p Policy) Option {
	return optionFunc(func(m *Machine) { m.policy = p })
}

// WithStack seeds the machine stack, bottom first.
func WithStack(vals ...value.Value) Option {
	return optionFunc(func(m *Machine) { m.stack = value.NewStack(vals...) })
}
