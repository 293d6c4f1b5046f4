package types

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// Effect describes what a block does to the stack. Consumes is ordered from
// the top of the stack downward; Produces is ordered bottom to top.
type Effect struct {
	Consumes []Type
	Produces []Type
	// Impure is set when running the block can perform a side effect.
	Impure bool
}

// Reversed returns a reversed copy of ts.
func Reversed(ts []Type) []Type {
	return lo.Reverse(slices.Clone(ts))
}

func (e Effect) Identical(o Effect) bool {
	return slices.EqualFunc(e.Consumes, o.Consumes, Identical) &&
		slices.EqualFunc(e.Produces, o.Produces, Identical)
}

// String renders the effect as "a b -- c", with the inputs in stack order.
func (e Effect) String() string {
	var b strings.Builder
	for _, t := range Reversed(e.Consumes) {
		b.WriteString(t.String())
		b.WriteByte(' ')
	}
	b.WriteString("--")
	for _, t := range e.Produces {
		b.WriteByte(' ')
		b.WriteString(t.String())
	}
	if e.Impure {
		b.WriteString(" !")
	}
	return b.String()
}
