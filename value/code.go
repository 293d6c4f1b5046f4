package value

import (
	"fmt"

	"github.com/smasher164/sid/lexer"
	"github.com/smasher164/sid/types"
	"golang.org/x/exp/slices"
)

type BlockKind int

const (
	// SubStackBlock items are only ordered by the data they exchange.
	SubStackBlock BlockKind = iota
	// ScriptBlock items run strictly in source order.
	ScriptBlock
)

func (k BlockKind) String() string {
	if k == SubStackBlock {
		return "substack"
	}
	return "script"
}

// Code is a resolved block.
type Code struct {
	Kind  BlockKind
	Items []Item
	// Effect and Effects are filled in by the checker, Effects holding one
	// entry per item. Checked is set once they are.
	Effect  types.Effect
	Effects []types.Effect
	Checked bool
	// Captures records the constants a sub-stack copied from enclosing
	// scopes when it was built.
	Captures []Capture
	// Params is the number of values a template block takes from the
	// enclosing stack when it is built. Template is the block a rendered
	// block was built from.
	Params   int
	Template *Code
	Span     lexer.Span
	Source   string
}

// Render fills the parameters of a template block with vals, given bottom
// to top, so that $1 is the last of them.
func (c *Code) Render(vals []Value) *Code {
	r := *c
	r.Params = 0
	r.Template = c
	r.Items = make([]Item, len(c.Items))
	r.Captures = slices.Clone(c.Captures)
	for i, it := range c.Items {
		if p, ok := it.(Param); ok {
			v := vals[len(vals)-p.Index]
			it = Push{Value: v, At: p.At}
			r.Captures = append(r.Captures, Capture{Name: fmt.Sprintf("$%d", p.Index), Value: v})
		}
		r.Items[i] = it
	}
	return &r
}

// Quoted returns code as a value.
func (c *Code) Quoted() Value {
	if c.Kind == SubStackBlock {
		return SubStack{Code: c}
	}
	return Script{Code: c}
}

type Capture struct {
	Name  string
	Value Value
}

type BindKind int

const (
	ConstBind BindKind = iota
	TypeBind
	CallBind
	PrimBind
)

var bindKindNames = [...]string{
	ConstBind: "constant",
	TypeBind:  "type",
	CallBind:  "callable",
	PrimBind:  "primitive",
}

func (k BindKind) String() string { return bindKindNames[k] }

// Binding is an immutable association of a name with a value in a scope.
type Binding struct {
	ID    int
	Name  string
	Kind  BindKind
	Value Value
	Scope int
	At    lexer.Span
}

func (b *Binding) String() string {
	return fmt.Sprintf("%s#%d (%s)", b.Name, b.ID, b.Kind)
}

type Item interface {
	Span() lexer.Span
	isItem()
}

var (
	_ Item = Push{}
	_ Item = Load{}
	_ Item = Call{}
	_ Item = Exec{}
	_ Item = Invoke{}
	_ Item = MakeList{}
	_ Item = MakeSet{}
	_ Item = MakeStruct{}
	_ Item = Match{}
	_ Item = Param{}
	_ Item = Build{}
)

// Push pushes a value known at construction.
type Push struct {
	Value Value
	At    lexer.Span
}

// Load pushes the value of a constant binding when it runs.
type Load struct {
	Binding *Binding
	At      lexer.Span
}

// Call invokes the callable held by a binding.
type Call struct {
	Binding *Binding
	At      lexer.Span
}

// Exec runs an unquoted nested block.
type Exec struct {
	Code *Code
	At   lexer.Span
}

// Param stands for a value of the enclosing stack in a template block.
type Param struct {
	Index int
	At    lexer.Span
}

// Build takes the parameters of a template block from the stack and pushes
// the rendered block as a value.
type Build struct {
	Code *Code
	At   lexer.Span
}

// Invoke pops a value and runs it.
type Invoke struct {
	At lexer.Span
}

// MakeList runs Elements on a fresh stack and collects the result.
type MakeList struct {
	Elements *Code
	At       lexer.Span
}

type MakeSet struct {
	Elements *Code
	At       lexer.Span
}

// MakeStruct runs each field's code on a fresh stack; each must leave
// exactly one value.
type MakeStruct struct {
	Names  []string
	Fields []*Code
	At     lexer.Span
}

type Match struct {
	Cases []Case
	At    lexer.Span
}

// Depth is the number of values below the scrutinee that the deepest
// case action consumes. A match always takes that many; a shallower case
// sees only the top of them.
func (m Match) Depth() int {
	d := 0
	for _, c := range m.Cases {
		if e, ok := EffectOf(c.Action); ok && len(e.Consumes) > d {
			d = len(e.Consumes)
		}
	}
	return d
}

// Case pairs a pattern, which is a TypeValue or a *Set, with a callable.
type Case struct {
	Pattern Value
	Action  Value
}

func (i Push) Span() lexer.Span       { return i.At }
func (i Load) Span() lexer.Span       { return i.At }
func (i Call) Span() lexer.Span       { return i.At }
func (i Exec) Span() lexer.Span       { return i.At }
func (i Invoke) Span() lexer.Span     { return i.At }
func (i MakeList) Span() lexer.Span   { return i.At }
func (i MakeSet) Span() lexer.Span    { return i.At }
func (i MakeStruct) Span() lexer.Span { return i.At }
func (i Match) Span() lexer.Span      { return i.At }
func (i Param) Span() lexer.Span      { return i.At }
func (i Build) Span() lexer.Span      { return i.At }

func (Push) isItem()       {}
func (Load) isItem()       {}
func (Call) isItem()       {}
func (Exec) isItem()       {}
func (Invoke) isItem()     {}
func (MakeList) isItem()   {}
func (MakeSet) isItem()    {}
func (MakeStruct) isItem() {}
func (Match) isItem()      {}
func (Param) isItem()      {}
func (Build) isItem()      {}

// Constant returns the value an item pushes if it is known at construction.
func Constant(it Item) (Value, bool) {
	switch it := it.(type) {
	case Push:
		return it.Value, true
	case Load:
		return it.Binding.Value, true
	}
	return nil, false
}

// Matches reports whether v satisfies the case pattern.
func (c Case) Matches(o types.Oracle, v Value) bool {
	switch p := c.Pattern.(type) {
	case TypeValue:
		return o.Compatible(v.Type(), p.T)
	case *Set:
		if p.Contains(v) {
			return true
		}
		for _, member := range p.Items() {
			if tv, ok := member.(TypeValue); ok && o.Compatible(v.Type(), tv.T) {
				return true
			}
		}
	}
	return false
}

// ItemString describes an item for traces and dumps.
func ItemString(it Item) string {
	switch it := it.(type) {
	case Push:
		return "push " + it.Value.String()
	case Load:
		return "load " + it.Binding.Name
	case Call:
		return "call " + it.Binding.Name
	case Exec:
		return "exec " + it.Code.Source
	case Invoke:
		return "invoke"
	case MakeList:
		return "list " + it.Elements.Source
	case MakeSet:
		return "set " + it.Elements.Source
	case MakeStruct:
		return fmt.Sprintf("struct %v", it.Names)
	case Match:
		return fmt.Sprintf("match %d cases", len(it.Cases))
	case Param:
		return fmt.Sprintf("param $%d", it.Index)
	case Build:
		return "build !" + it.Code.Source
	}
	return fmt.Sprintf("%T", it)
}
