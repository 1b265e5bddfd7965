// Package pairlist parses the bracketed pair-list literals carried by
// legacy ingestion flags, e.g. [('order_id', 'id'), ('ts', 'loaded_at')].
//
// The grammar is deliberately narrow: a bracketed sequence of two-element
// tuples of quoted strings, nothing else. It replaces an eval-style
// conversion that would execute arbitrary expressions in the input.
package pairlist

import (
	"fmt"
	"strings"
)

// Pair is one (first, second) element of a parsed list.
type Pair struct {
	First  string
	Second string
}

// ParseError describes why and where parsing failed. Offset is a byte
// offset into the input.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pair list: %s at offset %d", e.Msg, e.Offset)
}

// Parse reads a pair-list literal.
//
// Accepted syntax: optional whitespace around tokens; '['; zero or more
// ('str', 'str') tuples separated by commas, optionally with a trailing
// comma; ']'. Strings are single- or double-quoted and support only the
// \\, \' and \" escapes. Anything else is rejected with a *ParseError.
func Parse(s string) ([]Pair, error) {
	p := &parser{in: s}

	p.ws()
	if err := p.expect('['); err != nil {
		return nil, err
	}

	var pairs []Pair
	p.ws()
	for !p.eat(']') {
		pair, err := p.pair()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)

		p.ws()
		if p.eat(',') {
			p.ws()
			continue
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		break
	}

	p.ws()
	if p.pos != len(p.in) {
		return nil, p.errf("trailing data after list")
	}
	return pairs, nil
}

type parser struct {
	in  string
	pos int
}

func (p *parser) pair() (Pair, error) {
	if err := p.expect('('); err != nil {
		return Pair{}, err
	}
	p.ws()
	first, err := p.str()
	if err != nil {
		return Pair{}, err
	}
	p.ws()
	if err := p.expect(','); err != nil {
		return Pair{}, err
	}
	p.ws()
	second, err := p.str()
	if err != nil {
		return Pair{}, err
	}
	p.ws()
	if err := p.expect(')'); err != nil {
		return Pair{}, err
	}
	return Pair{First: first, Second: second}, nil
}

func (p *parser) str() (string, error) {
	if p.pos >= len(p.in) {
		return "", p.errf("expected quoted string")
	}
	quote := p.in[p.pos]
	if quote != '\'' && quote != '"' {
		return "", p.errf("expected quoted string")
	}
	p.pos++

	var b strings.Builder
	for p.pos < len(p.in) {
		switch c := p.in[p.pos]; c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.in) {
				return "", p.errf("unterminated escape")
			}
			esc := p.in[p.pos]
			if esc != '\\' && esc != '\'' && esc != '"' {
				return "", p.errf("unsupported escape \\%c", esc)
			}
			b.WriteByte(esc)
			p.pos++
		case '\n', '\r':
			return "", p.errf("newline in string")
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated string")
}

func (p *parser) ws() {
	for p.pos < len(p.in) {
		switch p.in[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) eat(c byte) bool {
	if p.pos < len(p.in) && p.in[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(c byte) error {
	if p.eat(c) {
		return nil
	}
	return p.errf("expected %q", c)
}

func (p *parser) errf(format string, args ...any) *ParseError {
	return &ParseError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}
