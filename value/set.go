package value

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/smasher164/sid/types"
)

// Set is an unordered collection of structurally distinct values. Items are
// kept in insertion order for printing.
type Set struct {
	Element types.Type
	members *set.HashSet[Value, string]
	order   []Value
}

// NewSet fails with a DuplicateError if two items are equal.
func NewSet(items ...Value) (*Set, error) {
	s := &Set{
		Element: joinTypes(items),
		members: set.NewHashSet[Value, string](len(items)),
	}
	for _, v := range items {
		if !s.members.Insert(v) {
			return nil, &DuplicateError{What: "set element " + v.String()}
		}
		s.order = append(s.order, v)
	}
	return s, nil
}

func (v *Set) Type() types.Type { return types.Set{Element: v.Element} }

func (v *Set) Contains(x Value) bool { return v.members.Contains(x) }

func (v *Set) Len() int { return v.members.Size() }

// Items returns the members in insertion order.
func (v *Set) Items() []Value { return v.order }

func (v *Set) String() string {
	return "{" + joinValues(v.order, (Value).String) + "}"
}

func (v *Set) Hash() string {
	hashes := make([]string, 0, len(v.order))
	for _, x := range v.order {
		hashes = append(hashes, x.Hash())
	}
	sort.Strings(hashes)
	return "e{" + strings.Join(hashes, ", ") + "}"
}

// Equal reports whether both sets hold the same members.
func (v *Set) Equal(o *Set) bool {
	return v.members.Equal(o.members)
}
