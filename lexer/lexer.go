package lexer

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"github.com/smasher164/xid"
)

// Ext is the file extension of source files.
const Ext = ".sid"

type Lexer struct {
	name  string
	ch    rune
	pos   int
	i     int // position in buffer
	err   error
	buf   []rune
	rdr   *bufio.Reader
	lines []int
}

const eof = -1

// LexError reports a malformed token.
type LexError struct {
	Filename string
	Pos      Pos
	Reason   string
}

func (e *LexError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("%s:%s: %s", e.Filename, e.Pos, e.Reason)
}

func (l *Lexer) lexWS() Token {
	startPos := l.pos
	for unicode.IsSpace(l.ch) {
		l.next()
	}
	return Token{Type: Whitespace, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()}
}

func isLetter(ch rune) bool {
	return ch == '_' || xid.Start(ch)
}

func isContinue(ch rune) bool {
	return ch == '_' || xid.Continue(ch)
}

func isDecimal(ch rune) bool { return '0' <= ch && ch <= '9' }

func (l *Lexer) lexIdentOrKeyword() Token {
	startPos := l.pos
	l.next()
	for isContinue(l.ch) {
		l.next()
	}
	ident := l.bufString()
	if ttyp, ok := Keywords[ident]; ok {
		return Token{Type: ttyp, Span: l.spanOf(startPos, l.pos-1), Data: ident}
	}
	return Token{Type: Ident, Span: l.spanOf(startPos, l.pos-1), Data: ident}
}

func (l *Lexer) lexParam() Token {
	startPos := l.pos
	l.next()
	switch {
	case isDecimal(l.ch):
		for isDecimal(l.ch) {
			l.next()
		}
	case isLetter(l.ch):
		for isContinue(l.ch) {
			l.next()
		}
	default:
		return Token{Type: Illegal, Span: l.spanOf(startPos, startPos), Data: "$ must be followed by a stack index or a name"}
	}
	return Token{Type: Param, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()}
}

func (l *Lexer) lexNumber() Token {
	startPos := l.pos
	ttyp := Int
	if l.ch == '-' {
		l.next()
	}
	for isDecimal(l.ch) {
		l.next()
	}
	if l.ch == '.' {
		ttyp = Float
		l.next()
		for isDecimal(l.ch) {
			l.next()
		}
	}
	if isLetter(l.ch) {
		bad := l.ch
		l.next()
		return Token{Type: Illegal, Span: l.spanOf(startPos, l.pos-1), Data: fmt.Sprintf("%q is not valid in a number", bad)}
	}
	return Token{Type: ttyp, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()}
}

func (l *Lexer) lexLineComment() Token {
	startPos := l.pos
	l.until('\n')
	return Token{Type: LineComment, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()}
}

// lexEscape consumes the character after a backslash and returns a message
// describing the problem, if any.
func (l *Lexer) lexEscape(quote rune) string {
	switch l.ch {
	case 'n', 't', 'r', '0', '\\':
		l.next()
		return ""
	case eof:
		return "escape sequence not terminated"
	}
	if l.ch == quote {
		l.next()
		return ""
	}
	msg := fmt.Sprintf("unknown escape sequence %q", "\\"+string(l.ch))
	l.next()
	return msg
}

func (l *Lexer) lexQuoted(quote rune, ttyp TokenType, what string) Token {
	startPos := l.pos
	l.next()
	var msg string
	for {
		switch l.ch {
		case eof, '\n':
			return Token{Type: Illegal, Span: l.spanOf(startPos, l.pos-1), Data: "unterminated " + what}
		case quote:
			l.next()
			if msg != "" {
				return Token{Type: Illegal, Span: l.spanOf(startPos, l.pos-1), Data: msg}
			}
			return Token{Type: ttyp, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()}
		case '\\':
			l.next()
			if m := l.lexEscape(quote); m != "" && msg == "" {
				msg = m
			}
		default:
			l.next()
		}
	}
}

func (l *Lexer) lexChar() Token {
	tok := l.lexQuoted('\'', Char, "character literal")
	if tok.Type != Char {
		return tok
	}
	body, err := Unquote(tok)
	if err != nil {
		return Token{Type: Illegal, Span: tok.Span, Data: err.Error()}
	}
	if n := uniseg.GraphemeClusterCount(body); n != 1 {
		return Token{Type: Illegal, Span: tok.Span, Data: fmt.Sprintf("character literal must hold one character, found %d", n)}
	}
	return tok
}

func (l *Lexer) next() {
	if l.ch == eof {
		return
	}
	l.i++
	l.pos++
	if l.i < len(l.buf) {
		l.ch = l.buf[l.i]
	} else {
		r, _, err := l.rdr.ReadRune()
		if err != nil {
			l.ch = eof
			if err != io.EOF {
				l.err = err
			}
		} else {
			l.ch = r
		}
		l.buf = append(l.buf, l.ch)
	}
	if l.ch == '\n' {
		if l.lines[len(l.lines)-1] < l.pos+1 {
			l.lines = append(l.lines, l.pos+1)
		}
	}
}

func (l *Lexer) backup() {
	if l.i > 0 {
		l.i--
		l.pos--
		l.ch = l.buf[l.i]
	}
}

func (l *Lexer) peek() rune {
	if l.ch == eof {
		return eof
	}
	l.next()
	ch := l.ch
	l.backup()
	return ch
}

func (l *Lexer) until(r rune) {
	for l.ch != r && l.ch != eof {
		l.next()
	}
}

func (l *Lexer) bufString() string {
	return string(l.buf[:l.i])
}

func (l *Lexer) lineIndex(offset int) int {
	line, found := sort.Find(len(l.lines), func(i int) int {
		v := l.lines[i]
		if offset == v {
			return 0
		}
		if offset < v {
			return -1
		}
		return 1
	})
	if found {
		return line
	}
	return line - 1
}

func (l *Lexer) posOf(offset int) Pos {
	line := l.lineIndex(offset)
	return Pos{Offset: offset, Line: line + 1, Column: offset - l.lines[line] + 1}
}

func (l *Lexer) spanOf(off1, off2 int) Span {
	if off2 < off1 {
		off2 = off1
	}
	start := l.posOf(off1)
	end := start
	if off1 != off2 {
		end = l.posOf(off2)
	}
	return Span{Start: start, End: end}
}

func (l *Lexer) resetPos() {
	l.buf = l.buf[l.i:]
	l.i = 0
	l.ch = l.buf[l.i]
}

// NextToken returns the next token, trivia included.
func (l *Lexer) NextToken() Token {
	defer l.resetPos()
	startPos := l.pos
	switch {
	case unicode.IsSpace(l.ch):
		return l.lexWS()
	case isLetter(l.ch):
		return l.lexIdentOrKeyword()
	case isDecimal(l.ch) || l.ch == '-' && isDecimal(l.peek()):
		return l.lexNumber()
	case l.ch == '#':
		return l.lexLineComment()
	case l.ch == '$':
		return l.lexParam()
	case l.ch == '"':
		return l.lexQuoted('"', String, "string")
	case l.ch == '\'':
		return l.lexChar()
	}
	if ttyp, ok := SingleCharTokens[l.ch]; ok {
		l.next()
		return Token{Type: ttyp, Span: l.spanOf(startPos, startPos)}
	}
	ch := l.ch
	l.next()
	return Token{Type: Illegal, Span: l.spanOf(startPos, startPos), Data: fmt.Sprintf("unexpected character %q", ch)}
}

// Next returns the next significant token with the whitespace and comments
// preceding it attached as LeadingTrivia.
func (l *Lexer) Next() Token {
	var t Token
	var trivia []Token
	for t = l.NextToken(); t.Type == Whitespace || t.Type == LineComment; t = l.NextToken() {
		trivia = append(trivia, t)
	}
	t.LeadingTrivia = trivia
	return t
}

// Err returns the first read error encountered, other than io.EOF.
func (l *Lexer) Err() error { return l.err }

// Name is the file name used in error messages.
func (l *Lexer) Name() string { return l.name }

// Error converts an Illegal token into a LexError.
func (l *Lexer) Error(tok Token) *LexError {
	return &LexError{Filename: l.name, Pos: tok.Span.Start, Reason: tok.Data}
}

// New returns a Lexer reading runes from r.
func New(name string, r io.Reader) *Lexer {
	l := &Lexer{
		name:  name,
		rdr:   bufio.NewReader(r),
		i:     -1,
		pos:   -1,
		lines: []int{0},
	}
	l.next()
	return l
}

func NewLexer(fsys fs.FS, filename string) (*Lexer, error) {
	if filepath.Ext(filename) != Ext {
		return nil, fmt.Errorf("invalid file extension %q, expected %q", filepath.Ext(filename), Ext)
	}
	f, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	return New(filename, f), nil
}

// Tokenize splits text into significant tokens, ending with EOF.
func Tokenize(name, text string) ([]Token, error) {
	l := New(name, strings.NewReader(text))
	return l.All()
}

// All drains the lexer, stopping at the first Illegal token.
func (l *Lexer) All() ([]Token, error) {
	var toks []Token
	for {
		tok := l.Next()
		if tok.Type == Illegal {
			return toks, l.Error(tok)
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks, l.Err()
		}
	}
}

// Unquote decodes the body of a String or Char token.
func Unquote(tok Token) (string, error) {
	s := []rune(tok.Data)
	if len(s) < 2 {
		return "", fmt.Errorf("malformed literal %q", tok.Data)
	}
	s = s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteRune(s[i])
			continue
		}
		i++
		if i == len(s) {
			return "", fmt.Errorf("escape sequence not terminated")
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '"', '\'':
			b.WriteRune(s[i])
		default:
			return "", fmt.Errorf("unknown escape sequence %q", "\\"+string(s[i]))
		}
	}
	return b.String(), nil
}

// Quote renders s as a String literal.
func Quote(s string) string {
	return quote(s, '"')
}

// QuoteChar renders s as a Char literal.
func QuoteChar(s string) string {
	return quote(s, '\'')
}

func quote(s string, q rune) string {
	var b strings.Builder
	b.WriteRune(q)
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		case '\\':
			b.WriteString(`\\`)
		case q:
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune(q)
	return b.String()
}
