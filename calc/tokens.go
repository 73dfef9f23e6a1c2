package calc

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceCode = iota + 1
	numberCode
	plusCode
	minusCode
	starCode
	slashCode
	openParenCode
	closeParenCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	numberToken     = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	plusToken       = parsly.NewToken(plusCode, "+", matcher.NewByte('+'))
	minusToken      = parsly.NewToken(minusCode, "-", matcher.NewByte('-'))
	starToken       = parsly.NewToken(starCode, "*", matcher.NewByte('*'))
	slashToken      = parsly.NewToken(slashCode, "/", matcher.NewByte('/'))
	openParenToken  = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
)

// numberMatcher matches an unsigned decimal literal: digits with at most one
// fractional part ("12", "3.5", ".5").
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	size := cursor.InputSize

	matched := 0
	digits := 0
	dot := false
	for i := cursor.Pos; i < size; i++ {
		c := input[i]
		switch {
		case isDigit(c):
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return accept(matched, digits)
		}
		matched++
	}
	return accept(matched, digits)
}

func accept(matched, digits int) int {
	if digits == 0 {
		return 0
	}
	return matched
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
