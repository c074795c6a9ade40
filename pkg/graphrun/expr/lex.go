package expr

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrSyntax is returned for expression strings that cannot be parsed.
var ErrSyntax = errors.New("expression syntax error")

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokWord // and, or, not, contains, in, start, end, with
	tokString
	tokNumber
	tokLiteral // true, false, null
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var words = map[string]tokenKind{
	"and": tokWord, "or": tokWord, "not": tokWord, "contains": tokWord,
	"in": tokWord, "start": tokWord, "end": tokWord, "with": tokWord,
	"true": tokLiteral, "false": tokLiteral, "null": tokLiteral, "nil": tokLiteral,
}

// ops lists symbolic operators, two-character spellings first.
var ops = []string{"==", "!=", ">=", "<=", "≥", "≤", "≠", ">", "<", "=", "!"}

func syntaxError(pos int, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, pos, fmt.Sprintf(format, args...))
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case r == '(' || r == ')':
			kind := tokLParen
			if r == ')' {
				kind = tokRParen
			}
			toks = append(toks, token{kind: kind, text: string(r), pos: i})
			i++

		case r == '\'' || r == '"':
			end := strings.IndexRune(src[i+1:], r)
			if end < 0 {
				return nil, syntaxError(i, "unterminated string")
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : i+1+end], pos: i})
			i += end + 2

		case isDigit(r) || (r == '-' && startsNumber(src[i+1:]) && operandExpected(toks)):
			j := i + 1
			for j < len(src) && (isDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], pos: i})
			i = j

		case isIdentStart(r):
			j := i
			for j < len(src) {
				r, size := utf8.DecodeRuneInString(src[j:])
				if !isIdentPart(r) {
					break
				}
				j += size
			}
			word := src[i:j]
			kind := tokIdent
			if k, ok := words[strings.ToLower(word)]; ok {
				kind = k
				word = strings.ToLower(word)
			}
			toks = append(toks, token{kind: kind, text: word, pos: i})
			i = j

		default:
			op := matchOp(src[i:])
			if op == "" {
				return nil, syntaxError(i, "unexpected %q", r)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func matchOp(s string) string {
	for _, op := range ops {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

// operandExpected reports whether a '-' at this point starts a negative
// number rather than continuing an identifier or operand.
func operandExpected(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	switch toks[len(toks)-1].kind {
	case tokOp, tokLParen, tokWord:
		return true
	}
	return false
}

func startsNumber(s string) bool {
	return s != "" && isDigit(rune(s[0]))
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '.' || r == '-'
}
