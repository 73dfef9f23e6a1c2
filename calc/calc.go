// Package calc evaluates basic arithmetic expressions: decimal numbers, the
// four binary operators, unary signs, and parentheses. Nothing else is
// accepted, so untrusted input can be evaluated safely.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/viant/parsly"
)

var (
	ErrEmpty          = errors.New("empty expression")
	ErrDivisionByZero = errors.New("division by zero")
)

// MaxDepth bounds how deeply parentheses and unary signs may nest.
const MaxDepth = 256

// SyntaxError reports input that is not a valid expression.
type SyntaxError struct {
	Pos    int
	Detail string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Detail)
}

// Evaluate parses and evaluates expression with the usual precedence:
// unary signs bind tightest, then * and /, then + and -.
func Evaluate(expression string) (float64, error) {
	if strings.TrimSpace(expression) == "" {
		return 0, ErrEmpty
	}

	p := &parser{cursor: parsly.NewCursor("", []byte(expression), 0)}
	value, err := p.expr()
	if err != nil {
		return 0, err
	}

	p.cursor.MatchOne(whitespaceToken)
	if p.cursor.Pos < p.cursor.InputSize {
		return 0, p.unexpected("end of expression")
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("result out of range")
	}
	return value, nil
}

// Format renders a result the way a person would write it: integers without
// a fractional part, other values in the shortest exact form.
func Format(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

type parser struct {
	cursor *parsly.Cursor
	depth  int
}

// descend enters one nesting level; callers undo it with p.depth--.
func (p *parser) descend() error {
	p.depth++
	if p.depth > MaxDepth {
		return &SyntaxError{Pos: p.cursor.Pos, Detail: fmt.Sprintf("expression nested deeper than %d levels", MaxDepth)}
	}
	return nil
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}

	for {
		matched := p.cursor.MatchAfterOptional(whitespaceToken, plusToken, minusToken)
		switch matched.Code {
		case plusCode:
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left += right
		case minusCode:
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}

	for {
		matched := p.cursor.MatchAfterOptional(whitespaceToken, starToken, slashToken)
		switch matched.Code {
		case starCode:
			right, err := p.unary()
			if err != nil {
				return 0, err
			}
			left *= right
		case slashCode:
			right, err := p.unary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) unary() (float64, error) {
	matched := p.cursor.MatchAfterOptional(whitespaceToken, minusToken, plusToken)
	if matched.Code != minusCode && matched.Code != plusCode {
		return p.primary()
	}

	if err := p.descend(); err != nil {
		return 0, err
	}
	value, err := p.unary()
	p.depth--
	if matched.Code == minusCode {
		value = -value
	}
	return value, err
}

func (p *parser) primary() (float64, error) {
	matched := p.cursor.MatchAfterOptional(whitespaceToken, numberToken, openParenToken)
	switch matched.Code {
	case numberCode:
		text := matched.Text(p.cursor)
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, &SyntaxError{Pos: p.cursor.Pos, Detail: fmt.Sprintf("invalid number %q", text)}
		}
		return value, nil
	case openParenCode:
		if err := p.descend(); err != nil {
			return 0, err
		}
		value, err := p.expr()
		p.depth--
		if err != nil {
			return 0, err
		}
		if p.cursor.MatchAfterOptional(whitespaceToken, closeParenToken).Code != closeParenCode {
			return 0, p.unexpected("')'")
		}
		return value, nil
	}
	return 0, p.unexpected("number or '('")
}

func (p *parser) unexpected(want string) error {
	pos := p.cursor.Pos
	if pos >= p.cursor.InputSize {
		return &SyntaxError{Pos: pos, Detail: "unexpected end of input, expected " + want}
	}
	return &SyntaxError{Pos: pos, Detail: fmt.Sprintf("unexpected %q, expected %s", p.cursor.Input[pos], want)}
}
