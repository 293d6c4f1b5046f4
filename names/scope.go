package names

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/smasher164/sid/types"
	"github.com/smasher164/sid/value"
	"golang.org/x/exp/maps"
)

type Scope struct {
	Parent  *Scope
	ID      int
	Symbols map[string]*value.Binding
	ids     *counters
}

type counters struct {
	scopes   int
	bindings int
}

func NewScope(parent *Scope) *Scope {
	s := &Scope{Parent: parent, Symbols: make(map[string]*value.Binding)}
	if parent != nil {
		s.ids = parent.ids
		s.ids.scopes++
		s.ID = s.ids.scopes
	} else {
		s.ids = new(counters)
	}
	return s
}

func (s *Scope) AddScope() *Scope {
	return NewScope(s)
}

// Add binds b in s. A name may be bound once per scope.
func (s *Scope) Add(b *value.Binding) error {
	if prev, ok := s.Symbols[b.Name]; ok {
		return redefined(b, prev)
	}
	s.ids.bindings++
	b.ID = s.ids.bindings
	b.Scope = s.ID
	s.Symbols[b.Name] = b
	return nil
}

func redefined(b, prev *value.Binding) error {
	return &ResolveError{Kind: Redefined, Name: b.Name, Span: b.At, Msg: fmt.Sprintf("previously defined at %s", prev.At)}
}

func (s *Scope) LookupLocal(name string) (*value.Binding, bool) {
	b, ok := s.Symbols[name]
	return b, ok
}

func (s *Scope) LookupStack(name string) (b *value.Binding, p *Scope, ok bool) {
	for p = s; p != nil; p = p.Parent {
		if b, ok = p.LookupLocal(name); ok {
			return b, p, true
		}
	}
	return nil, nil, false
}

// Commit moves the bindings of child into s. If any name is already bound
// in s, nothing is moved.
func (s *Scope) Commit(child *Scope) error {
	var errs []error
	names := maps.Keys(child.Symbols)
	sort.Strings(names)
	for _, name := range names {
		if prev, ok := s.Symbols[name]; ok {
			errs = append(errs, redefined(child.Symbols[name], prev))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for _, name := range names {
		s.Add(child.Symbols[name])
	}
	return nil
}

func scopeString(buf io.Writer, s *Scope) {
	if s.Parent != nil {
		scopeString(buf, s.Parent)
		fmt.Fprint(buf, "↑\n")
	}
	if len(s.Symbols) == 0 {
		fmt.Fprintf(buf, "(empty)\n")
		return
	}
	names := maps.Keys(s.Symbols)
	sort.Strings(names)
	for _, name := range names {
		b := s.Symbols[name]
		fmt.Fprintf(buf, "%s:\t%s\t%s\n", name, b.Kind, b.Value)
	}
}

func (s *Scope) String() string {
	sb := new(strings.Builder)
	buf := tabwriter.NewWriter(sb, 0, 0, 1, ' ', 0)
	scopeString(buf, s)
	buf.Flush()
	return sb.String()
}

// Universe returns a root scope holding the primitive types and the words
// of reg.
func Universe(reg value.Registry) *Scope {
	s := NewScope(nil)
	for _, b := range types.Bases {
		s.Add(&value.Binding{Name: b.String(), Kind: value.TypeBind, Value: value.TypeValue{T: b}})
	}
	if reg != nil {
		for _, name := range reg.Names() {
			if p, ok := reg.Lookup(name); ok {
				s.Add(&value.Binding{Name: name, Kind: value.PrimBind, Value: p})
			}
		}
	}
	return s
}
