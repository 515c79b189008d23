// Package receipt turns ledger snapshots into device-agnostic print commands.
//
// Composers are pure: they take the records to print plus the current time and
// return Command lists. Encoding to a printer dialect happens in escpos.go.
package receipt

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type CommandKind string

const (
	CommandText CommandKind = "text"
	CommandFeed CommandKind = "feed"
	CommandCut  CommandKind = "cut"
)

// Command is one printer instruction. Text commands carry one line without
// the trailing newline; Feed advances Lines blank lines.
type Command struct {
	Kind  CommandKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Lines int         `json:"lines,omitempty"`
}

func text(s string) Command { return Command{Kind: CommandText, Text: s} }
func feed(n int) Command { return Command{Kind: CommandFeed, Lines: n} }
func cut() Command { return Command{Kind: CommandCut} }
func blank() Command { return text("") }
func divider(w int) Command { return text(strings.Repeat("-", w)) }
func starDivider(w int) Command { return text(strings.Repeat("*", w)) }

// Lines returns the text of every Text command, for previews and tests.
func Lines(cmds []Command) []string {
	var out []string
	for _, c := range cmds {
		if c.Kind == CommandText {
			out = append(out, c.Text)
		}
	}
	return out
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}

func alignCenter(s string, width int) string {
	s = truncate(s, width)
	pad := (width - utf8.RuneCountInString(s)) / 2
	return strings.Repeat(" ", pad) + s
}

// alignLeftRight places left and right on one line, shortening left so that
// right always fits.
func alignLeftRight(left, right string, width int) string {
	rw := utf8.RuneCountInString(right)
	if rw >= width {
		return truncate(right, width)
	}
	left = truncate(left, width-rw-1)
	gap := width - utf8.RuneCountInString(left) - rw
	return left + strings.Repeat(" ", gap) + right
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Money formats an amount in major units with the currency symbol, e.g. "£12.50".
func Money(amount decimal.Decimal, symbol string) string {
	if amount.IsNegative() {
		return "-" + symbol + amount.Abs().StringFixed(2)
	}
	return symbol + amount.StringFixed(2)
}
