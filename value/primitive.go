package value

import (
	"io"

	"github.com/smasher164/sid/types"
)

// Env is what a primitive may touch besides the stack.
type Env interface {
	Output() io.Writer
}

// Primitive is a word implemented by the host.
type Primitive struct {
	Name   string
	Doc    string
	Effect types.Effect
	// Produce, when set, refines the produced types from the consumed
	// ones (given top first), as for duplicate or swap.
	Produce func(consumed []types.Type) []types.Type
	// Comptime primitives are pure and run during construction when their
	// inputs are constants.
	Comptime bool
	// Run receives a stack holding at least the consumed values.
	Run func(env Env, st *Stack) error
}

func (p *Primitive) Type() types.Type { return types.Script{Effect: p.Effect} }
func (p *Primitive) String() string   { return "!" + p.Name }
func (p *Primitive) Hash() string     { return "prim:" + p.Name }

// Registry supplies primitives by name.
type Registry interface {
	Lookup(name string) (*Primitive, bool)
	Names() []string
}
