package lexer

import (
	"fmt"

	"golang.org/x/exp/slices"
)

type TokenType int

const (
	EOF TokenType = iota
	LeftParen
	RightParen
	LessThan
	GreaterThan
	LeftBracket
	RightBracket
	LeftBrace
	RightBrace
	Comma
	Colon
	Bang

	Def
	Fn
	Match
	True
	False

	Ident
	// Param is $ followed by a stack index or a name, as in $1 or $limit.
	Param
	Int
	Float
	Char
	String
	Whitespace
	LineComment
	Illegal
)

var tokenNames = [...]string{
	EOF:          "EOF",
	LeftParen:    "LeftParen",
	RightParen:   "RightParen",
	LessThan:     "LessThan",
	GreaterThan:  "GreaterThan",
	LeftBracket:  "LeftBracket",
	RightBracket: "RightBracket",
	LeftBrace:    "LeftBrace",
	RightBrace:   "RightBrace",
	Comma:        "Comma",
	Colon:        "Colon",
	Bang:         "Bang",
	Def:          "Def",
	Fn:           "Fn",
	Match:        "Match",
	True:         "True",
	False:        "False",
	Ident:        "Ident",
	Param:        "Param",
	Int:          "Int",
	Float:        "Float",
	Char:         "Char",
	String:       "String",
	Whitespace:   "Whitespace",
	LineComment:  "LineComment",
	Illegal:      "Illegal",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var SingleCharTokens = map[rune]TokenType{
	'(': LeftParen,
	')': RightParen,
	'<': LessThan,
	'>': GreaterThan,
	'[': LeftBracket,
	']': RightBracket,
	'{': LeftBrace,
	'}': RightBrace,
	',': Comma,
	':': Colon,
	'!': Bang,
	eof: EOF,
}

var Keywords = map[string]TokenType{
	"def":   Def,
	"fn":    Fn,
	"match": Match,
	"true":  True,
	"false": False,
}

// Closing returns the delimiter that closes an opening delimiter.
func Closing(open TokenType) (TokenType, bool) {
	switch open {
	case LeftParen:
		return RightParen, true
	case LessThan:
		return GreaterThan, true
	case LeftBracket:
		return RightBracket, true
	case LeftBrace:
		return RightBrace, true
	}
	return Illegal, false
}

type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

func (p Pos) Min(other Pos) Pos {
	if p.Column == 0 {
		return other
	}
	if other.Column == 0 {
		return p
	}
	if p.Offset < other.Offset {
		return p
	}
	return other
}

func (p Pos) Max(other Pos) Pos {
	if p.Column == 0 {
		return other
	}
	if other.Column == 0 {
		return p
	}
	if p.Offset > other.Offset {
		return p
	}
	return other
}

type Span struct {
	Start Pos
	End   Pos
}

func (span Span) Add(other Span) Span {
	return Span{span.Start.Min(other.Start), span.End.Max(other.End)}
}

func (s Span) String() string {
	if s.Start == s.End {
		return fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
	}
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%d:%d-%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Token is a lexeme together with the whitespace and comments before it.
// Data holds the source text for identifiers and literals.
type Token struct {
	LeadingTrivia []Token
	Type          TokenType
	Span          Span
	Data          string
}

func (t Token) String() string {
	if t.Data == "" {
		return fmt.Sprintf("%s:%s", t.Span, t.Type)
	}
	return fmt.Sprintf("%s:%s %q", t.Span, t.Type, t.Data)
}

func (b Token) Eq(a Token) bool {
	return a.Type == b.Type && a.Data == b.Data
}

func (a Token) ExactEq(b Token) bool {
	return a.Type == b.Type && a.Span == b.Span && a.Data == b.Data && slices.EqualFunc(a.LeadingTrivia, b.LeadingTrivia, Token.ExactEq)
}

// Touches reports whether there is no trivia between a and the token b that
// follows it.
func (a Token) Touches(b Token) bool {
	return len(b.LeadingTrivia) == 0 && a.Span.End.Offset+1 == b.Span.Start.Offset
}

func (t Token) IsLiteral() bool {
	switch t.Type {
	case Int, Float, Char, String, True, False:
		return true
	}
	return false
}

func (t Token) IsOpen() bool {
	_, ok := Closing(t.Type)
	return ok
}

func (t Token) IsClose() bool {
	switch t.Type {
	case RightParen, GreaterThan, RightBracket, RightBrace:
		return true
	}
	return false
}

// Text is the source form of the token.
func (t Token) Text() string {
	if t.Data != "" {
		return t.Data
	}
	for r, ttyp := range SingleCharTokens {
		if ttyp == t.Type && r != eof {
			return string(r)
		}
	}
	for kw, ttyp := range Keywords {
		if ttyp == t.Type {
			return kw
		}
	}
	return ""
}
