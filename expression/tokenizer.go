package expression

import (
	"strconv"
	"unicode"
)

// Kind identifies the type of a formula token
type Kind int

const (
	Number Kind = iota
	String
	Ident
	LParen
	RParen
	Comma
	Plus
	Minus
	Star
	Slash
	Compare
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case String:
		return "string"
	case Ident:
		return "identifier"
	case LParen:
		return "("
	case RParen:
		return ")"
	case Comma:
		return ","
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Star:
		return "*"
	case Slash:
		return "/"
	case Compare:
		return "comparison"
	default:
		return "unknown"
	}
}

// Token is a single lexical unit of a formula.
// Value is only meaningful for Number tokens.
type Token struct {
	Kind  Kind
	Text  string
	Value float64
}

// Tokenize converts a formula into a flat token stream.
// Characters that cannot start any token are dropped.
func Tokenize(src string) []Token {
	runes := []rune(src)
	tokens := make([]Token, 0, len(runes)/2)

	for i := 0; i < len(runes); {
		ch := runes[i]

		switch {
		case unicode.IsSpace(ch):
			i++

		case isDigit(ch) || (ch == '.' && i+1 < len(runes) && isDigit(runes[i+1])):
			start := i
			for i < len(runes) && isDigit(runes[i]) {
				i++
			}
			if i < len(runes) && runes[i] == '.' {
				i++
				for i < len(runes) && isDigit(runes[i]) {
					i++
				}
			}
			text := string(runes[start:i])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				continue
			}
			tokens = append(tokens, Token{Kind: Number, Text: text, Value: v})

		case ch == '"' || ch == '\'':
			quote := ch
			i++
			start := i
			for i < len(runes) && runes[i] != quote {
				i++
			}
			tokens = append(tokens, Token{Kind: String, Text: string(runes[start:i])})
			if i < len(runes) {
				i++ // closing quote
			}

		case unicode.IsLetter(ch) || ch == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, Token{Kind: Ident, Text: string(runes[start:i])})

		case ch == '(':
			tokens = append(tokens, Token{Kind: LParen, Text: "("})
			i++
		case ch == ')':
			tokens = append(tokens, Token{Kind: RParen, Text: ")"})
			i++
		case ch == ',':
			tokens = append(tokens, Token{Kind: Comma, Text: ","})
			i++
		case ch == '+':
			tokens = append(tokens, Token{Kind: Plus, Text: "+"})
			i++
		case ch == '-':
			tokens = append(tokens, Token{Kind: Minus, Text: "-"})
			i++
		case ch == '*':
			tokens = append(tokens, Token{Kind: Star, Text: "*"})
			i++
		case ch == '/':
			tokens = append(tokens, Token{Kind: Slash, Text: "/"})
			i++

		case ch == '>' || ch == '<' || ch == '=' || ch == '!':
			op := string(ch)
			if i+1 < len(runes) {
				switch two := string(runes[i : i+2]); two {
				case ">=", "<=", "==", "!=", "<>":
					op = two
				}
			}
			i += len(op)
			if op == "!" {
				// a lone '!' is not an operator in this language
				continue
			}
			tokens = append(tokens, Token{Kind: Compare, Text: op})

		default:
			i++
		}
	}

	return tokens
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
