package parser

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/smasher164/sid/lexer"
)

const debug = false

type ErrorKind int

const (
	UnexpectedToken ErrorKind = iota
	UnmatchedDelimiter
	MixedStructSet
	DuplicateField
	EmptyField
	MisplacedComma
	MisplacedColon
	MisplacedQuote
)

var errorKindNames = [...]string{
	UnexpectedToken:    "unexpected token",
	UnmatchedDelimiter: "unmatched delimiter",
	MixedStructSet:     "mixed struct and set literal",
	DuplicateField:     "duplicate field",
	EmptyField:         "empty field",
	MisplacedComma:     "misplaced comma",
	MisplacedColon:     "misplaced colon",
	MisplacedQuote:     "misplaced quote",
}

func (k ErrorKind) String() string { return errorKindNames[k] }

type ParseError struct {
	Filename string
	Kind     ErrorKind
	Span     lexer.Span
	Msg      string
}

func (e *ParseError) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Filename == "" {
		return fmt.Sprintf("%s: %s", e.Span, msg)
	}
	return fmt.Sprintf("%s:%s: %s", e.Filename, e.Span, msg)
}

// Lexer is a source of significant tokens.
type Lexer interface {
	Next() lexer.Token
}

type tokens struct {
	toks []lexer.Token
	eof  lexer.Token
}

func (t *tokens) Next() lexer.Token {
	if len(t.toks) == 0 {
		return t.eof
	}
	tok := t.toks[0]
	t.toks = t.toks[1:]
	if tok.Type == lexer.EOF {
		t.eof = tok
	}
	return tok
}

type parser struct {
	name   string
	l      Lexer
	tok    lexer.Token
	buf    []lexer.Token
	indent int
}

func (p *parser) trace(msg string) func() {
	if debug {
		fmt.Printf("%*s%s\n", p.indent*2, "", msg)
		p.indent++
		return func() {
			p.indent--
		}
	}
	return func() {}
}

// Parse builds the block tree for a token sequence ending in EOF.
func Parse(name string, toks []lexer.Token) (File, error) {
	return (&parser{name: name, l: &tokens{toks: toks, eof: lexer.Token{Type: lexer.EOF}}}).parseFile()
}

func ParseString(name, src string) (File, error) {
	toks, err := lexer.Tokenize(name, src)
	if err != nil {
		return File{}, err
	}
	return Parse(name, toks)
}

func ParseFile(fsys fs.FS, filename string) (File, error) {
	l, err := lexer.NewLexer(fsys, filename)
	if err != nil {
		return File{}, err
	}
	toks, err := l.All()
	if err != nil {
		return File{}, err
	}
	return Parse(filename, toks)
}

func (p *parser) next() {
	if len(p.buf) > 0 {
		p.tok = p.buf[0]
		p.buf = p.buf[1:]
		return
	}
	p.tok = p.l.Next()
}

func (p *parser) peek() lexer.Token {
	if len(p.buf) == 0 {
		p.buf = append(p.buf, p.l.Next())
	}
	return p.buf[0]
}

func (p *parser) errorf(kind ErrorKind, span lexer.Span, format string, args ...any) error {
	return &ParseError{Filename: p.name, Kind: kind, Span: span, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unmatched(open lexer.Token) error {
	if p.tok.Type == lexer.EOF {
		return p.errorf(UnmatchedDelimiter, open.Span, "%q is never closed", open.Text())
	}
	if open.Type == lexer.EOF {
		return p.errorf(UnmatchedDelimiter, p.tok.Span, "unexpected %q", p.tok.Text())
	}
	want, _ := lexer.Closing(open.Type)
	return p.errorf(UnmatchedDelimiter, p.tok.Span, "%q closed by %q, expected %q", open.Text(), p.tok.Text(), lexer.Token{Type: want}.Text())
}

func (p *parser) parseFile() (File, error) {
	defer p.trace("parseFile")()
	p.next()
	f := File{Name: p.name}
	body, err := p.parseItems(lexer.Token{Type: lexer.EOF}, lexer.EOF)
	if err != nil {
		return File{}, err
	}
	f.Body = body
	f.EOF = p.tok
	return f, nil
}

// parseItems parses items up to, but not including, the closing token.
func (p *parser) parseItems(open lexer.Token, close lexer.TokenType) ([]Node, error) {
	defer p.trace("parseItems")()
	var items []Node
	for p.tok.Type != close {
		switch {
		case p.tok.Type == lexer.EOF, p.tok.IsClose():
			return nil, p.unmatched(open)
		case p.tok.Type == lexer.Comma:
			return nil, p.errorf(MisplacedComma, p.tok.Span, "commas only separate list, set and struct elements")
		case p.tok.Type == lexer.Colon:
			return nil, p.errorf(MisplacedColon, p.tok.Span, "field names are only allowed in struct literals")
		}
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (p *parser) parseItem() (Node, error) {
	defer p.trace("parseItem")()
	tok := p.tok
	switch tok.Type {
	case lexer.Int, lexer.Float, lexer.Char, lexer.String, lexer.True, lexer.False:
		p.next()
		return Literal{Tok: tok}, nil
	case lexer.Param:
		p.next()
		return Param{Tok: tok}, nil
	case lexer.Ident:
		p.next()
		w := Word{Name: tok}
		if p.tok.Type == lexer.Bang && tok.Touches(p.tok) {
			w.Bang = p.tok
			p.next()
		}
		return w, nil
	case lexer.Def, lexer.Fn, lexer.Match:
		p.next()
		k := Keyword{Tok: tok}
		if p.tok.Type == lexer.Bang && tok.Touches(p.tok) {
			k.Bang = p.tok
			p.next()
		}
		return k, nil
	case lexer.Bang:
		return p.parseBang()
	case lexer.LeftParen:
		open, body, close, err := p.parseDelimited()
		if err != nil {
			return nil, err
		}
		return SubStack{Open: open, Body: body, Close: close}, nil
	case lexer.LessThan:
		open, body, close, err := p.parseDelimited()
		if err != nil {
			return nil, err
		}
		return Script{Open: open, Body: body, Close: close}, nil
	case lexer.LeftBracket:
		open := p.tok
		p.next()
		elems, err := p.parseElements(open, lexer.RightBracket)
		if err != nil {
			return nil, err
		}
		close := p.tok
		p.next()
		return List{Open: open, Elements: elems, Close: close}, nil
	case lexer.LeftBrace:
		return p.parseBraces()
	}
	return nil, p.errorf(UnexpectedToken, tok.Span, "unexpected %s", tok.Type)
}

func (p *parser) parseBang() (Node, error) {
	defer p.trace("parseBang")()
	bang := p.tok
	p.next()
	if !bang.Touches(p.tok) {
		return Invoke{Bang: bang}, nil
	}
	switch p.tok.Type {
	case lexer.LeftParen, lexer.LessThan, lexer.Ident:
		x, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		return Quote{Bang: bang, X: x}, nil
	case lexer.RightParen, lexer.GreaterThan, lexer.RightBracket, lexer.RightBrace, lexer.Comma, lexer.EOF:
		return Invoke{Bang: bang}, nil
	}
	return nil, p.errorf(MisplacedQuote, bang.Span.Add(p.tok.Span), "only sub-stacks, scripts and words can be quoted")
}

func (p *parser) parseDelimited() (open lexer.Token, body []Node, close lexer.Token, err error) {
	defer p.trace("parseDelimited")()
	open = p.tok
	want, _ := lexer.Closing(open.Type)
	p.next()
	body, err = p.parseItems(open, want)
	if err != nil {
		return open, nil, close, err
	}
	close = p.tok
	p.next()
	return open, body, close, nil
}

// atKey reports whether the parser is positioned on "name:".
func (p *parser) atKey() bool {
	switch p.tok.Type {
	case lexer.Ident, lexer.Def, lexer.Fn, lexer.Match:
		return p.peek().Type == lexer.Colon
	}
	return false
}

func (p *parser) parseElements(open lexer.Token, close lexer.TokenType) ([]Element, error) {
	defer p.trace("parseElements")()
	var elems []Element
	var cur Element
	for p.tok.Type != close {
		switch {
		case p.tok.Type == lexer.EOF, p.tok.IsClose():
			return nil, p.unmatched(open)
		case p.tok.Type == lexer.Colon:
			return nil, p.errorf(MisplacedColon, p.tok.Span, "field names are only allowed in struct literals")
		case p.atKey():
			if close == lexer.RightBrace {
				return nil, p.errorf(MixedStructSet, p.tok.Span, "field %q follows set elements", p.tok.Data)
			}
			return nil, p.errorf(MisplacedColon, p.peek().Span, "field names are only allowed in struct literals")
		case p.tok.Type == lexer.Comma:
			if len(cur.Items) == 0 {
				return nil, p.errorf(MisplacedComma, p.tok.Span, "empty element")
			}
			cur.Comma = p.tok
			elems = append(elems, cur)
			cur = Element{}
			p.next()
			continue
		}
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		cur.Items = append(cur.Items, item)
	}
	if len(cur.Items) > 0 {
		elems = append(elems, cur)
	}
	return elems, nil
}

func (p *parser) parseBraces() (Node, error) {
	defer p.trace("parseBraces")()
	open := p.tok
	p.next()
	if p.tok.Type == lexer.RightBrace {
		close := p.tok
		p.next()
		return Struct{Open: open, Close: close}, nil
	}
	if p.atKey() {
		return p.parseStructBody(open)
	}
	elems, err := p.parseElements(open, lexer.RightBrace)
	if err != nil {
		return nil, err
	}
	close := p.tok
	p.next()
	return Set{Open: open, Elements: elems, Close: close}, nil
}

func (p *parser) parseStructBody(open lexer.Token) (Node, error) {
	defer p.trace("parseStructBody")()
	s := Struct{Open: open}
	seen := map[string]lexer.Token{}
	for p.tok.Type != lexer.RightBrace {
		switch {
		case p.tok.Type == lexer.EOF, p.tok.IsClose():
			return nil, p.unmatched(open)
		case p.tok.Type == lexer.Comma:
			return nil, p.errorf(MisplacedComma, p.tok.Span, "empty field")
		case !p.atKey():
			return nil, p.errorf(MixedStructSet, p.tok.Span, "expected a field name")
		}
		f := Field{Key: p.tok}
		if prev, ok := seen[f.Name()]; ok {
			return nil, p.errorf(DuplicateField, f.Key.Span, "%q already defined at %s", f.Name(), prev.Span)
		}
		seen[f.Name()] = f.Key
		p.next()
		f.Colon = p.tok
		p.next()
		for p.tok.Type != lexer.Comma && p.tok.Type != lexer.RightBrace && p.tok.Type != lexer.EOF && !p.tok.IsClose() && !p.atKey() {
			if p.tok.Type == lexer.Colon {
				return nil, p.errorf(MisplacedColon, p.tok.Span, "unexpected colon in field %q", f.Name())
			}
			item, err := p.parseItem()
			if err != nil {
				return nil, err
			}
			f.Value = append(f.Value, item)
		}
		if len(f.Value) == 0 {
			return nil, p.errorf(EmptyField, f.Key.Span, "field %q has no value", f.Name())
		}
		if p.tok.Type == lexer.Comma {
			f.Comma = p.tok
			p.next()
		}
		s.Fields = append(s.Fields, f)
	}
	s.Close = p.tok
	p.next()
	return s, nil
}

// Format renders n back into source text. Parsing the result yields the same
// tree up to positions and trivia.
func Format(n Node) string {
	var b strings.Builder
	format(&b, n)
	return b.String()
}

func formatItems(b *strings.Builder, items []Node) {
	for i, item := range items {
		if i > 0 {
			b.WriteByte(' ')
		}
		format(b, item)
	}
}

func formatElements(b *strings.Builder, elems []Element) {
	for i, e := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		formatItems(b, e.Items)
	}
}

func format(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case File:
		formatItems(b, n.Body)
	case Literal:
		b.WriteString(n.Tok.Data)
	case Word:
		b.WriteString(n.Name.Data)
		if n.Explicit() {
			b.WriteByte('!')
		}
	case Param:
		b.WriteString(n.Tok.Data)
	case Keyword:
		b.WriteString(n.Tok.Text())
		if n.Bang.Type == lexer.Bang {
			b.WriteByte('!')
		}
	case Invoke:
		b.WriteByte('!')
	case Quote:
		b.WriteByte('!')
		format(b, n.X)
	case SubStack:
		b.WriteByte('(')
		formatItems(b, n.Body)
		b.WriteByte(')')
	case Script:
		b.WriteByte('<')
		formatItems(b, n.Body)
		b.WriteByte('>')
	case List:
		b.WriteByte('[')
		formatElements(b, n.Elements)
		b.WriteByte(']')
	case Set:
		b.WriteByte('{')
		formatElements(b, n.Elements)
		b.WriteByte('}')
	case Struct:
		b.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Key.Text())
			b.WriteString(": ")
			formatItems(b, f.Value)
		}
		b.WriteByte('}')
	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
}
