package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smasher164/sid/lexer"
)

type Node interface {
	LeadingTrivia() []lexer.Token
	Span() lexer.Span
	ASTString(depth int) string
}

var (
	_ Node = File{}
	_ Node = Literal{}
	_ Node = Word{}
	_ Node = Keyword{}
	_ Node = Param{}
	_ Node = Invoke{}
	_ Node = Quote{}
	_ Node = SubStack{}
	_ Node = Script{}
	_ Node = List{}
	_ Node = Set{}
	_ Node = Struct{}
)

func spanOf(n any) lexer.Span {
	if n == nil {
		return lexer.Span{}
	}
	switch n := n.(type) {
	case Node:
		return n.Span()
	case []Node:
		if len(n) > 0 {
			return lexer.Span{
				Start: spanOf(n[0]).Start,
				End:   spanOf(n[len(n)-1]).End,
			}
		}
	}
	return lexer.Span{}
}

func indent(depth int) string {
	return strings.Repeat(".  ", depth)
}

func listString(depth int, label string, nodes []Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", label)
	for _, n := range nodes {
		fmt.Fprintf(&b, "\n%s%s", indent(depth+1), n.ASTString(depth+1))
	}
	return b.String()
}

// File is a parsed source file. Its body is the implicit top-level Script.
type File struct {
	Name string
	Body []Node
	EOF  lexer.Token
}

func (f File) ASTString(depth int) string {
	return listString(depth, fmt.Sprintf("File %q", f.Name), f.Body)
}

func (f File) Span() lexer.Span { return spanOf(f.Body) }

func (f File) LeadingTrivia() []lexer.Token {
	if len(f.Body) > 0 {
		return f.Body[0].LeadingTrivia()
	}
	return f.EOF.LeadingTrivia
}

// Literal is a bool, int, float, char or string token.
type Literal struct {
	Tok lexer.Token
}

func (l Literal) ASTString(depth int) string    { return "Literal " + l.Tok.String() }
func (l Literal) Span() lexer.Span              { return l.Tok.Span }
func (l Literal) LeadingTrivia() []lexer.Token { return l.Tok.LeadingTrivia }

// Word is an identifier. Bang is set when it was written with a trailing
// "!", as in print!.
type Word struct {
	Name lexer.Token
	Bang lexer.Token
}

func (w Word) Explicit() bool { return w.Bang.Type == lexer.Bang }

func (w Word) ASTString(depth int) string {
	if w.Explicit() {
		return "Word " + w.Name.String() + " !"
	}
	return "Word " + w.Name.String()
}

func (w Word) Span() lexer.Span {
	if w.Explicit() {
		return w.Name.Span.Add(w.Bang.Span)
	}
	return w.Name.Span
}

func (w Word) LeadingTrivia() []lexer.Token { return w.Name.LeadingTrivia }

// Param reads from the enclosing block when the block holding it is built:
// $N takes the Nth value from the top of the enclosing stack, $name copies
// the current value of a binding.
type Param struct {
	Tok lexer.Token
}

// Index returns N for a $N parameter.
func (p Param) Index() (int, bool) {
	n, err := strconv.Atoi(p.Tok.Data[1:])
	return n, err == nil
}

// Name returns the bound name of a $name parameter.
func (p Param) Name() string { return p.Tok.Data[1:] }

func (p Param) ASTString(depth int) string    { return "Param " + p.Tok.String() }
func (p Param) Span() lexer.Span              { return p.Tok.Span }
func (p Param) LeadingTrivia() []lexer.Token { return p.Tok.LeadingTrivia }

// Keyword is one of def, fn or match.
type Keyword struct {
	Tok  lexer.Token
	Bang lexer.Token
}

func (k Keyword) ASTString(depth int) string    { return "Keyword " + k.Tok.String() }
func (k Keyword) Span() lexer.Span              { return k.Tok.Span }
func (k Keyword) LeadingTrivia() []lexer.Token { return k.Tok.LeadingTrivia }

// Invoke is a free-standing "!" that runs the value on top of the stack.
type Invoke struct {
	Bang lexer.Token
}

func (i Invoke) ASTString(depth int) string    { return "Invoke " + i.Bang.Span.String() }
func (i Invoke) Span() lexer.Span              { return i.Bang.Span }
func (i Invoke) LeadingTrivia() []lexer.Token { return i.Bang.LeadingTrivia }

// Quote pushes X without running it.
type Quote struct {
	Bang lexer.Token
	X    Node
}

func (q Quote) ASTString(depth int) string {
	return fmt.Sprintf("Quote\n%s%s", indent(depth+1), q.X.ASTString(depth+1))
}

func (q Quote) Span() lexer.Span              { return q.Bang.Span.Add(q.X.Span()) }
func (q Quote) LeadingTrivia() []lexer.Token { return q.Bang.LeadingTrivia }

type SubStack struct {
	Open  lexer.Token
	Body  []Node
	Close lexer.Token
}

func (s SubStack) ASTString(depth int) string    { return listString(depth, "SubStack", s.Body) }
func (s SubStack) Span() lexer.Span              { return s.Open.Span.Add(s.Close.Span) }
func (s SubStack) LeadingTrivia() []lexer.Token { return s.Open.LeadingTrivia }

type Script struct {
	Open  lexer.Token
	Body  []Node
	Close lexer.Token
}

func (s Script) ASTString(depth int) string    { return listString(depth, "Script", s.Body) }
func (s Script) Span() lexer.Span              { return s.Open.Span.Add(s.Close.Span) }
func (s Script) LeadingTrivia() []lexer.Token { return s.Open.LeadingTrivia }

// Element is one comma-separated run of items inside a List or Set.
type Element struct {
	Items []Node
	Comma lexer.Token
}

func elementsString(depth int, label string, elems []Element) string {
	var b strings.Builder
	b.WriteString(label)
	for i, e := range elems {
		fmt.Fprintf(&b, "\n%s%s", indent(depth+1), listString(depth+1, fmt.Sprintf("Element %d", i), e.Items))
	}
	return b.String()
}

type List struct {
	Open     lexer.Token
	Elements []Element
	Close    lexer.Token
}

func (l List) ASTString(depth int) string    { return elementsString(depth, "List", l.Elements) }
func (l List) Span() lexer.Span              { return l.Open.Span.Add(l.Close.Span) }
func (l List) LeadingTrivia() []lexer.Token { return l.Open.LeadingTrivia }

type Set struct {
	Open     lexer.Token
	Elements []Element
	Close    lexer.Token
}

func (s Set) ASTString(depth int) string    { return elementsString(depth, "Set", s.Elements) }
func (s Set) Span() lexer.Span              { return s.Open.Span.Add(s.Close.Span) }
func (s Set) LeadingTrivia() []lexer.Token { return s.Open.LeadingTrivia }

type Field struct {
	Key   lexer.Token
	Colon lexer.Token
	Value []Node
	Comma lexer.Token
}

func (f Field) Name() string { return f.Key.Data }

type Struct struct {
	Open   lexer.Token
	Fields []Field
	Close  lexer.Token
}

func (s Struct) ASTString(depth int) string {
	var b strings.Builder
	b.WriteString("Struct")
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "\n%s%s", indent(depth+1), listString(depth+1, "Field "+f.Key.Data, f.Value))
	}
	return b.String()
}

func (s Struct) Span() lexer.Span              { return s.Open.Span.Add(s.Close.Span) }
func (s Struct) LeadingTrivia() []lexer.Token { return s.Open.LeadingTrivia }

func PrintAST(n Node) {
	fmt.Println(n.ASTString(0))
}
