package java

import (
	"fmt"
	"strings"

	"github.com/gnolang/patlint/internal/tree"
)

// TokenType defines the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenKeyword
	TokenNumber
	TokenString
	TokenChar
	TokenLiteral // true, false, null
	TokenOp
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "Ident"
	case TokenKeyword:
		return "Keyword"
	case TokenNumber:
		return "Number"
	case TokenString:
		return "String"
	case TokenChar:
		return "Char"
	case TokenLiteral:
		return "Literal"
	case TokenOp:
		return "Op"
	default:
		return "Unknown"
	}
}

// Token represents a lexical token. Start and End are byte offsets.
type Token struct {
	Type  TokenType
	Value string
	Start int
	End   int
}

var keywords = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "class": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extends": true, "final": true, "finally": true, "float": true,
	"for": true, "goto": true, "if": true, "implements": true, "import": true,
	"instanceof": true, "int": true, "interface": true, "long": true, "native": true,
	"new": true, "package": true, "private": true, "protected": true, "public": true,
	"return": true, "short": true, "static": true, "strictfp": true, "super": true,
	"switch": true, "synchronized": true, "this": true, "throw": true, "throws": true,
	"transient": true, "try": true, "void": true, "volatile": true, "while": true,
}

// operators sorted so that longer operators are tried first. A lone '>' is
// never merged with a following '>' here, the expression parser does that,
// so nested generic types close correctly.
var operators = []string{
	">>>=", "<<=", ">>=", "...", "->", "::", "++", "--", "&&", "||",
	"==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<",
	"(", ")", "{", "}", "[", "]", ";", ",", ".", "@", "=", ">", "<", "!", "~",
	"?", ":", "+", "-", "*", "/", "&", "|", "^", "%",
}

// SyntaxError describes a lexing or parsing failure.
type SyntaxError struct {
	Pos tree.Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d col %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Lex splits src into tokens and collects comments on the side.
func Lex(src []byte, idx *tree.LineIndex) ([]Token, []tree.Comment, error) {
	var (
		tokens   []Token
		comments []tree.Comment
	)
	errorf := func(off int, format string, args ...any) error {
		return &SyntaxError{Pos: idx.Pos(off), Msg: fmt.Sprintf(format, args...)}
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			start := i
			for i < len(src) && src[i] != '\n' {
				i++
			}
			comments = append(comments, tree.Comment{Text: string(src[start:i]), Span: idx.Span(start, i)})

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			start := i
			end := strings.Index(string(src[i+2:]), "*/")
			if end < 0 {
				return nil, nil, errorf(start, "comment is not terminated")
			}
			i += end + 4
			comments = append(comments, tree.Comment{Text: string(src[start:i]), Span: idx.Span(start, i)})

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			word := string(src[start:i])
			typ := TokenIdent
			switch {
			case keywords[word]:
				typ = TokenKeyword
			case word == "true" || word == "false" || word == "null":
				typ = TokenLiteral
			}
			tokens = append(tokens, Token{Type: typ, Value: word, Start: start, End: i})

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i = scanNumber(src, i)
			tokens = append(tokens, Token{Type: TokenNumber, Value: string(src[start:i]), Start: start, End: i})

		case c == '"':
			start := i
			end, err := scanString(src, i)
			if err != nil {
				return nil, nil, errorf(start, "%v", err)
			}
			i = end
			tokens = append(tokens, Token{Type: TokenString, Value: string(src[start:i]), Start: start, End: i})

		case c == '\'':
			start := i
			i++
			for i < len(src) && src[i] != '\'' {
				if src[i] == '\\' {
					i++
				}
				if i < len(src) && src[i] == '\n' {
					return nil, nil, errorf(start, "character literal is not terminated")
				}
				i++
			}
			if i >= len(src) {
				return nil, nil, errorf(start, "character literal is not terminated")
			}
			i++
			tokens = append(tokens, Token{Type: TokenChar, Value: string(src[start:i]), Start: start, End: i})

		default:
			op := matchOperator(src[i:])
			if op == "" {
				return nil, nil, errorf(i, "unexpected character %q", c)
			}
			tokens = append(tokens, Token{Type: TokenOp, Value: op, Start: i, End: i + len(op)})
			i += len(op)
		}
	}

	tokens = append(tokens, Token{Type: TokenEOF, Start: len(src), End: len(src)})
	return tokens, comments, nil
}

func matchOperator(rest []byte) string {
	for _, op := range operators {
		if len(rest) >= len(op) && string(rest[:len(op)]) == op {
			return op
		}
	}
	return ""
}

func scanNumber(src []byte, i int) int {
	if src[i] == '0' && i+1 < len(src) && (src[i+1] == 'x' || src[i+1] == 'X' || src[i+1] == 'b' || src[i+1] == 'B') {
		i += 2
		for i < len(src) && (isHexDigit(src[i]) || src[i] == '_') {
			i++
		}
	} else {
		for i < len(src) && (isDigit(src[i]) || src[i] == '_') {
			i++
		}
		if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
			i++
			for i < len(src) && (isDigit(src[i]) || src[i] == '_') {
				i++
			}
		} else if i < len(src) && src[i] == '.' && (i+1 >= len(src) || !isIdentStart(src[i+1]) && src[i+1] != '.') {
			// "1." is a valid double literal
			i++
		}
		if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
			i++
			if i < len(src) && (src[i] == '+' || src[i] == '-') {
				i++
			}
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	// type suffix
	if i < len(src) && strings.IndexByte("lLfFdD", src[i]) >= 0 {
		i++
	}
	return i
}

func scanString(src []byte, i int) (int, error) {
	// text block
	if i+2 < len(src) && src[i+1] == '"' && src[i+2] == '"' {
		end := strings.Index(string(src[i+3:]), `"""`)
		if end < 0 {
			return 0, fmt.Errorf("text block is not terminated")
		}
		return i + 3 + end + 3, nil
	}
	i++
	for i < len(src) && src[i] != '"' {
		if src[i] == '\\' {
			i++
		}
		if i < len(src) && src[i] == '\n' {
			return 0, fmt.Errorf("string literal is not terminated")
		}
		i++
	}
	if i >= len(src) {
		return 0, fmt.Errorf("string literal is not terminated")
	}
	return i + 1, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
