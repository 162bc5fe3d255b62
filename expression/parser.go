package expression

import (
	"errors"
	"math"
	"strings"
	"time"
)

var errUnexpectedEnd = errors.New("unexpected end of expression")

// parser is a recursive-descent parser that evaluates while it parses.
//
//	comparison := expr (cmpop expr)?
//	expr       := term (('+'|'-') term)*
//	term       := unary (('*'|'/') unary)*
//	unary      := ('-'|'+')? primary
//	primary    := NUMBER | STRING | IDENT '(' args ')' | IDENT | '(' comparison ')'
type parser struct {
	tokens []Token
	pos    int
	now    func() time.Time
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

// accept consumes the next token if it has the given kind
func (p *parser) accept(kind Kind) bool {
	tok, ok := p.peek()
	if !ok || tok.Kind != kind {
		return false
	}
	p.pos++
	return true
}

func (p *parser) comparison() (float64, error) {
	left, err := p.expr()
	if err != nil {
		return 0, err
	}

	tok, ok := p.peek()
	if !ok || tok.Kind != Compare {
		return left, nil
	}
	p.pos++

	right, err := p.expr()
	if err != nil {
		return 0, err
	}
	return compare(tok.Text, left, right), nil
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}

	for {
		tok, ok := p.peek()
		if !ok || (tok.Kind != Plus && tok.Kind != Minus) {
			return left, nil
		}
		p.pos++

		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if tok.Kind == Plus {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}

	for {
		tok, ok := p.peek()
		if !ok || (tok.Kind != Star && tok.Kind != Slash) {
			return left, nil
		}
		p.pos++

		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if tok.Kind == Star {
			left *= right
			continue
		}
		if right == 0 {
			left = 0
			continue
		}
		left /= right
	}
}

func (p *parser) unary() (float64, error) {
	if p.accept(Minus) {
		v, err := p.primary()
		return -v, err
	}
	p.accept(Plus)
	return p.primary()
}

func (p *parser) primary() (float64, error) {
	for {
		tok, ok := p.peek()
		if !ok {
			return 0, errUnexpectedEnd
		}
		p.pos++

		switch tok.Kind {
		case Number:
			return tok.Value, nil

		case String:
			return stringValue(tok.Text), nil

		case Ident:
			if p.accept(LParen) {
				args, err := p.args()
				if err != nil {
					return 0, err
				}
				return p.call(tok.Text, args), nil
			}
			return identValue(tok.Text), nil

		case LParen:
			v, err := p.comparison()
			if err != nil {
				return 0, err
			}
			p.accept(RParen)
			return v, nil

		default:
			// skip the token and try the next one
		}
	}
}

// args parses a call's argument list; the opening paren is already consumed.
// A missing closing paren at the end of input is tolerated.
func (p *parser) args() ([]float64, error) {
	var args []float64
	if p.accept(RParen) {
		return args, nil
	}

	for {
		v, err := p.comparison()
		if err != nil {
			return nil, err
		}
		args = append(args, v)

		tok, ok := p.peek()
		if !ok {
			return args, nil
		}
		switch tok.Kind {
		case RParen:
			p.pos++
			return args, nil
		case Comma:
			p.pos++
			if p.accept(RParen) {
				return args, nil
			}
		}
	}
}

func compare(op string, left, right float64) float64 {
	var result bool
	switch op {
	case ">":
		result = left > right
	case "<":
		result = left < right
	case ">=":
		result = left >= right
	case "<=":
		result = left <= right
	case "=", "==":
		result = left == right
	case "!=", "<>":
		result = left != right
	}
	if result {
		return 1
	}
	return 0
}

// identValue gives bare identifiers a numeric meaning; unknown names are 0
func identValue(name string) float64 {
	switch strings.ToUpper(name) {
	case "TRUE":
		return 1
	default:
		return 0
	}
}

// stringValue converts a quoted literal: numbers keep their value,
// ISO dates become days since the epoch, anything else is 0.
func stringValue(s string) float64 {
	if v, ok := ToNumber(s); ok {
		return v
	}
	if days, ok := DaysSinceEpoch(s); ok {
		return days
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
