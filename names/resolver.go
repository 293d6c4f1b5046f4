// Package names resolves identifiers against lexical scopes and folds the
// construction-time words def, fn and match.
package names

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/samber/lo"
	"github.com/smasher164/sid/check"
	"github.com/smasher164/sid/lexer"
	"github.com/smasher164/sid/parser"
	"github.com/smasher164/sid/types"
	"github.com/smasher164/sid/value"
)

type ErrorKind int

const (
	UnknownName ErrorKind = iota
	Redefined
	NotConstant
	BadDefinition
	BadSignature
	BadMatchCase
	DuplicateElement
	BadLiteral
	BadTemplate
)

var errorKindNames = [...]string{
	UnknownName:      "unknown name",
	Redefined:        "redefined",
	NotConstant:      "not a constant",
	BadDefinition:    "bad definition",
	BadSignature:     "bad function signature",
	BadMatchCase:     "bad match case",
	DuplicateElement: "duplicate element",
	BadLiteral:       "bad literal",
	BadTemplate:      "bad template",
}

func (k ErrorKind) String() string { return errorKindNames[k] }

type ResolveError struct {
	Filename string
	Kind     ErrorKind
	Name     string
	Span     lexer.Span
	Msg      string
}

func (e *ResolveError) Error() string {
	msg := e.Kind.String()
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Filename == "" {
		return fmt.Sprintf("%s: %s", e.Span, msg)
	}
	return fmt.Sprintf("%s:%s: %s", e.Filename, e.Span, msg)
}

type Resolver struct {
	Checker  *check.Checker
	Filename string
}

func NewResolver(c *check.Checker) *Resolver {
	if c == nil {
		c = check.New(nil)
	}
	return &Resolver{Checker: c}
}

// Resolve builds the top-level script of f. Its definitions go directly
// into scope.
func (r *Resolver) Resolve(f parser.File, scope *Scope) (*value.Code, error) {
	r.Filename = f.Name
	return r.block(value.ScriptBlock, f.Body, scope, f.Span(), parser.Format(f))
}

// A template is a sub-stack or script body; only these may take values of
// the enclosing stack with $N.
type template bool

func (r *Resolver) errorf(kind ErrorKind, name string, span lexer.Span, format string, args ...any) error {
	return &ResolveError{Filename: r.Filename, Kind: kind, Name: name, Span: span, Msg: fmt.Sprintf(format, args...)}
}

func (r *Resolver) block(kind value.BlockKind, body []parser.Node, scope *Scope, span lexer.Span, source string) (*value.Code, error) {
	return r.checked(kind, body, scope, span, source, false)
}

func (r *Resolver) checked(kind value.BlockKind, body []parser.Node, scope *Scope, span lexer.Span, source string, tmpl template) (*value.Code, error) {
	code, err := r.build(kind, body, scope, span, source, tmpl)
	if err != nil {
		return nil, err
	}
	if err := r.check(code); err != nil {
		return nil, err
	}
	return code, nil
}

// build resolves body without checking the block it forms.
func (r *Resolver) build(kind value.BlockKind, body []parser.Node, scope *Scope, span lexer.Span, source string, tmpl template) (*value.Code, error) {
	b := &builder{r: r, kind: kind, scope: scope, template: tmpl}
	for _, n := range body {
		if err := b.node(n); err != nil {
			return nil, err
		}
	}
	if len(b.pending) > 0 {
		return nil, b.pending[0].err
	}
	return &value.Code{Kind: kind, Items: b.items, Captures: b.captures, Params: b.params, Span: span, Source: source}, nil
}

func (r *Resolver) check(code *value.Code) error {
	_, err := r.Checker.Code(code)
	return r.located(err)
}

func (r *Resolver) located(err error) error {
	var te *check.TypeError
	if errors.As(err, &te) && te.Filename == "" {
		te.Filename = r.Filename
	}
	return err
}

// builder accumulates the items of one block. Construction-time words
// consume the constants at the end of items.
type builder struct {
	r        *Resolver
	kind     value.BlockKind
	scope    *Scope
	items    []value.Item
	captures []value.Capture
	pending  []pending
	template template
	// params is the deepest $N seen; taken marks the indices used.
	params int
	taken  map[int]bool
}

// pending is a quoted block that failed to check on its own. It is an
// error unless a function takes it as its body, where it is checked again
// with the arguments on the stack.
type pending struct {
	code *value.Code
	err  error
}

func (b *builder) push(v value.Value, at lexer.Span) {
	b.items = append(b.items, value.Push{Value: v, At: at})
}

func (b *builder) node(n parser.Node) error {
	switch n := n.(type) {
	case parser.Literal:
		v, err := b.literal(n.Tok)
		if err != nil {
			return err
		}
		b.push(v, n.Span())
	case parser.Word:
		return b.word(n)
	case parser.Keyword:
		switch n.Tok.Type {
		case lexer.Def:
			return b.def(n.Span())
		case lexer.Fn:
			return b.fn(n.Span())
		case lexer.Match:
			return b.match(n.Span())
		}
		panic(fmt.Sprintf("unexpected keyword %s", n.Tok))
	case parser.Param:
		return b.param(n)
	case parser.Invoke:
		b.items = append(b.items, value.Invoke{At: n.Span()})
	case parser.Quote:
		return b.quote(n)
	case parser.SubStack:
		code, err := b.r.checked(value.SubStackBlock, n.Body, b.scope.AddScope(), n.Span(), parser.Format(n), true)
		if err != nil {
			return err
		}
		b.items = append(b.items, value.Exec{Code: code, At: n.Span()})
	case parser.Script:
		code, err := b.r.checked(value.ScriptBlock, n.Body, b.scope.AddScope(), n.Span(), parser.Format(n), true)
		if err != nil {
			return err
		}
		b.items = append(b.items, value.Exec{Code: code, At: n.Span()})
	case parser.List:
		return b.list(n)
	case parser.Set:
		return b.set(n)
	case parser.Struct:
		return b.strukt(n)
	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
	return nil
}

func (b *builder) literal(tok lexer.Token) (value.Value, error) {
	switch tok.Type {
	case lexer.True:
		return value.Bool(true), nil
	case lexer.False:
		return value.Bool(false), nil
	case lexer.Int:
		i, err := strconv.ParseInt(tok.Data, 10, 64)
		if err != nil {
			return nil, b.r.errorf(BadLiteral, "", tok.Span, "%v", err)
		}
		return value.Int(i), nil
	case lexer.Float:
		f, err := strconv.ParseFloat(tok.Data, 64)
		if err != nil {
			return nil, b.r.errorf(BadLiteral, "", tok.Span, "%v", err)
		}
		return value.Float(f), nil
	case lexer.Char, lexer.String:
		s, err := lexer.Unquote(tok)
		if err != nil {
			return nil, b.r.errorf(BadLiteral, "", tok.Span, "%v", err)
		}
		if tok.Type == lexer.Char {
			return value.Char(s), nil
		}
		return value.String(s), nil
	}
	panic(fmt.Sprintf("unexpected literal %s", tok))
}

func (b *builder) lookup(name lexer.Token) (*value.Binding, error) {
	bind, _, ok := b.scope.LookupStack(name.Data)
	if !ok {
		return nil, b.r.errorf(UnknownName, name.Data, name.Span, "")
	}
	return bind, nil
}

func (b *builder) word(w parser.Word) error {
	bind, err := b.lookup(w.Name)
	if err != nil {
		return err
	}
	at := w.Span()
	switch bind.Kind {
	case value.ConstBind, value.TypeBind:
		if b.kind == value.SubStackBlock {
			b.push(bind.Value, at)
			b.captures = append(b.captures, value.Capture{Name: bind.Name, Value: bind.Value})
		} else {
			b.items = append(b.items, value.Load{Binding: bind, At: at})
		}
		return nil
	case value.PrimBind:
		if p := bind.Value.(*value.Primitive); p.Comptime {
			folded, err := b.fold(p, at)
			if folded || err != nil {
				return err
			}
		}
	}
	b.items = append(b.items, value.Call{Binding: bind, At: at})
	return nil
}

// tail returns the values of the last n items if they are all constants.
func (b *builder) tail(n int) ([]value.Value, bool) {
	if len(b.items) < n {
		return nil, false
	}
	vals := make([]value.Value, n)
	for i, it := range b.items[len(b.items)-n:] {
		v, ok := value.Constant(it)
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

type constEnv struct{}

func (constEnv) Output() io.Writer { return io.Discard }

// fold runs a comptime primitive on constant inputs at construction.
func (b *builder) fold(p *value.Primitive, at lexer.Span) (bool, error) {
	n := len(p.Effect.Consumes)
	args, ok := b.tail(n)
	if !ok {
		return false, nil
	}
	for i, v := range args {
		if !b.r.Checker.Oracle.Compatible(v.Type(), p.Effect.Consumes[n-1-i]) {
			return false, nil
		}
	}
	st := value.NewStack(args...)
	if err := p.Run(constEnv{}, st); err != nil {
		return false, b.r.errorf(BadLiteral, p.Name, at, "%v", err)
	}
	b.items = b.items[:len(b.items)-n]
	for _, v := range st.Values() {
		b.push(v, at)
	}
	return true, nil
}

// param resolves $N and $name. $name copies the current value of a binding
// in any block; $N reserves a value of the enclosing stack.
func (b *builder) param(p parser.Param) error {
	n, ok := p.Index()
	if !ok {
		bind, err := b.lookup(lexer.Token{Type: lexer.Ident, Span: p.Span(), Data: p.Name()})
		if err != nil {
			return err
		}
		b.push(bind.Value, p.Span())
		b.captures = append(b.captures, value.Capture{Name: bind.Name, Value: bind.Value})
		return nil
	}
	switch {
	case !bool(b.template):
		return b.r.errorf(BadTemplate, "", p.Span(), "%s must be directly inside a sub-stack or script", p.Tok.Data)
	case n < 1:
		return b.r.errorf(BadTemplate, "", p.Span(), "stack indices start at $1")
	case b.taken[n]:
		return b.r.errorf(BadTemplate, "", p.Span(), "%s is taken twice", p.Tok.Data)
	}
	if b.taken == nil {
		b.taken = make(map[int]bool)
	}
	b.taken[n] = true
	b.params = max(b.params, n)
	b.items = append(b.items, value.Param{Index: n, At: p.Span()})
	return nil
}

func (b *builder) quote(q parser.Quote) error {
	switch x := q.X.(type) {
	case parser.SubStack:
		code, err := b.quoted(value.SubStackBlock, x.Body, x)
		if err != nil {
			return err
		}
		b.pushCode(code, q.Span())
		return nil
	case parser.Script:
		code, err := b.quoted(value.ScriptBlock, x.Body, x)
		if err != nil {
			return err
		}
		b.pushCode(code, q.Span())
		return nil
	case parser.Word:
		bind, err := b.lookup(x.Name)
		if err != nil {
			return err
		}
		if b.kind == value.SubStackBlock && (bind.Kind == value.ConstBind || bind.Kind == value.TypeBind) {
			b.captures = append(b.captures, value.Capture{Name: bind.Name, Value: bind.Value})
		}
		b.push(bind.Value, q.Span())
		return nil
	}
	panic(fmt.Sprintf("unexpected quoted node %T", q.X))
}

// pushCode pushes a quoted block, or builds it at run time when it is a
// template.
func (b *builder) pushCode(code *value.Code, at lexer.Span) {
	if code.Params > 0 {
		b.items = append(b.items, value.Build{Code: code, At: at})
		return
	}
	b.push(code.Quoted(), at)
}

// quoted builds a quoted block. A type error in it is held back as pending
// since the block may be the body of a function.
func (b *builder) quoted(kind value.BlockKind, body []parser.Node, n parser.Node) (*value.Code, error) {
	code, err := b.r.build(kind, body, b.scope.AddScope(), n.Span(), parser.Format(n), true)
	if err != nil {
		return nil, err
	}
	if err := b.r.check(code); err != nil {
		var te *check.TypeError
		if !errors.As(err, &te) {
			return nil, err
		}
		b.pending = append(b.pending, pending{code: code, err: err})
	}
	return code, nil
}

func (b *builder) notConstant(word string, want int, at lexer.Span) error {
	return b.r.errorf(NotConstant, "", at, "%s needs %d construction-time values before it", word, want)
}

func (b *builder) def(at lexer.Span) error {
	vals, ok := b.tail(2)
	if !ok {
		return b.notConstant("def", 2, at)
	}
	name, ok := vals[0].(value.String)
	if !ok {
		return b.r.errorf(BadDefinition, "", at, "name must be a string, found %s", vals[0])
	}
	bind := &value.Binding{Name: string(name), At: at}
	switch v := vals[1].(type) {
	case value.TypeValue:
		bind.Kind = value.TypeBind
		bind.Value = value.TypeValue{T: types.Named{Name: string(name), Type: v.T}}
	case *value.Function:
		named := *v
		named.Name = string(name)
		bind.Kind = value.CallBind
		bind.Value = &named
	case value.SubStack, value.Script, *value.Primitive:
		bind.Kind = value.CallBind
		bind.Value = v
	default:
		bind.Kind = value.ConstBind
		bind.Value = v
	}
	if err := b.scope.Add(bind); err != nil {
		err.(*ResolveError).Filename = b.r.Filename
		return err
	}
	b.items = b.items[:len(b.items)-2]
	return nil
}

func (b *builder) fn(at lexer.Span) error {
	vals, ok := b.tail(4)
	if !ok {
		return b.notConstant("fn", 4, at)
	}
	doc, ok := vals[0].(value.String)
	if !ok {
		return b.r.errorf(BadSignature, "", at, "description must be a string, found %s", vals[0])
	}
	args, ok := value.StructType(vals[1])
	if !ok {
		return b.r.errorf(BadSignature, "", at, "arguments must be a struct of types, found %s", vals[1])
	}
	switch vals[2].(type) {
	case value.SubStack, value.Script:
	default:
		return b.r.errorf(BadSignature, "", at, "body must be a quoted sub-stack or script, found %s", vals[2])
	}
	returns, ok := value.StructType(vals[3])
	if !ok {
		return b.r.errorf(BadSignature, "", at, "returns must be a struct of types, found %s", vals[3])
	}
	fn := &value.Function{Doc: string(doc), Args: args, Body: vals[2], Returns: returns}
	if err := b.r.Checker.Function(fn, at); err != nil {
		return b.r.located(err)
	}
	body := fn.Code()
	b.pending = lo.Reject(b.pending, func(p pending, _ int) bool { return p.code == body })
	b.items = b.items[:len(b.items)-4]
	b.push(fn, at)
	return nil
}

func (b *builder) match(at lexer.Span) error {
	vals, ok := b.tail(1)
	if !ok {
		return b.notConstant("match", 1, at)
	}
	list, ok := vals[0].(*value.List)
	if !ok {
		return b.r.errorf(BadMatchCase, "", at, "match expects a list of cases, found %s", vals[0])
	}
	cases := make([]value.Case, len(list.Items))
	for i, item := range list.Items {
		s, ok := item.(*value.Struct)
		if !ok || len(s.Fields) != 2 {
			return b.r.errorf(BadMatchCase, "", at, "case %d must be {case: pattern, action: code}, found %s", i, item)
		}
		pattern, ok1 := s.Get("case")
		action, ok2 := s.Get("action")
		if !ok1 || !ok2 {
			return b.r.errorf(BadMatchCase, "", at, "case %d must be {case: pattern, action: code}, found %s", i, item)
		}
		switch pattern.(type) {
		case value.TypeValue, *value.Set:
		default:
			return b.r.errorf(BadMatchCase, "", at, "case %d pattern must be a type or a set, found %s", i, pattern)
		}
		switch action.(type) {
		case value.SubStack, value.Script, *value.Function, *value.Primitive:
		default:
			return b.r.errorf(BadMatchCase, "", at, "case %d action must be quoted code, found %s", i, action)
		}
		cases[i] = value.Case{Pattern: pattern, Action: action}
	}
	b.items = b.items[:len(b.items)-1]
	b.items = append(b.items, value.Match{Cases: cases, At: at})
	return nil
}

func (b *builder) elements(elems []parser.Element, n parser.Node) (*value.Code, error) {
	body := lo.FlatMap(elems, func(e parser.Element, _ int) []parser.Node { return e.Items })
	return b.r.block(value.ScriptBlock, body, b.scope.AddScope(), n.Span(), parser.Format(n))
}

func constants(items []value.Item) ([]value.Value, bool) {
	vals := make([]value.Value, len(items))
	for i, it := range items {
		v, ok := value.Constant(it)
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func (b *builder) list(n parser.List) error {
	code, err := b.elements(n.Elements, n)
	if err != nil {
		return err
	}
	if vals, ok := constants(code.Items); ok {
		b.push(value.NewList(vals...), n.Span())
		return nil
	}
	b.items = append(b.items, value.MakeList{Elements: code, At: n.Span()})
	return nil
}

func (b *builder) set(n parser.Set) error {
	code, err := b.elements(n.Elements, n)
	if err != nil {
		return err
	}
	if vals, ok := constants(code.Items); ok {
		s, err := value.NewSet(vals...)
		if err != nil {
			return b.r.errorf(DuplicateElement, "", n.Span(), "%v", err)
		}
		b.push(s, n.Span())
		return nil
	}
	b.items = append(b.items, value.MakeSet{Elements: code, At: n.Span()})
	return nil
}

func (b *builder) strukt(n parser.Struct) error {
	names := make([]string, len(n.Fields))
	codes := make([]*value.Code, len(n.Fields))
	folded := true
	for i, f := range n.Fields {
		names[i] = f.Name()
		code, err := b.r.block(value.ScriptBlock, f.Value, b.scope.AddScope(), spanOfField(f), parser.Format(parser.File{Body: f.Value}))
		if err != nil {
			return err
		}
		codes[i] = code
		if len(code.Items) != 1 {
			folded = false
		} else if _, ok := value.Constant(code.Items[0]); !ok {
			folded = false
		}
	}
	if !folded {
		b.items = append(b.items, value.MakeStruct{Names: names, Fields: codes, At: n.Span()})
		return nil
	}
	fields := make([]value.Field, len(codes))
	for i, code := range codes {
		v, _ := value.Constant(code.Items[0])
		fields[i] = value.Field{Name: names[i], Value: v}
	}
	s, err := value.NewStruct(fields...)
	if err != nil {
		return b.r.errorf(DuplicateElement, "", n.Span(), "%v", err)
	}
	b.push(s, n.Span())
	return nil
}

func spanOfField(f parser.Field) lexer.Span {
	span := f.Key.Span
	for _, n := range f.Value {
		span = span.Add(n.Span())
	}
	return span
}
