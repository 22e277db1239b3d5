package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// Media queries never fail to parse: shapes which are not understood are
// kept as MediaRaw and written back as is.

func (s *state) mediaList(toks []token) MediaList {
	toks = trimWhitespace(toks)
	if len(toks) == 0 {
		return nil
	}
	var list MediaList
	for _, part := range splitComma(toks) {
		list = append(list, s.mediaQuery(trimWhitespace(part)))
	}
	return list
}

func (s *state) mediaQuery(toks []token) MediaQuery {
	var q MediaQuery

	c := &cursor{toks: toks}
	if t := c.peek(); t.tt == css.IdentToken {
		word := strings.ToLower(t.data)
		switch word {
		case "only", "not":
			save := c.pos
			c.pos++
			if n := c.peek(); n.tt == css.IdentToken && !isWord(n, "and") && !isWord(n, "or") {
				q.Qualifier, q.MediaType = word, strings.ToLower(n.data)
				c.pos++
			} else {
				// "not (condition)"
				c.pos = save
			}
		case "and", "or":
		default:
			q.MediaType = word
			c.pos++
		}
	}

	if len(q.MediaType) > 0 {
		if c.done() {
			return q
		}
		if !isWord(c.peek(), "and") {
			return MediaQuery{Condition: &MediaRaw{Value: s.raw(toks)}}
		}
		c.pos++
	}

	cond, ok := s.condition(c, len(q.MediaType) == 0)
	if !ok || !c.done() {
		return MediaQuery{Condition: &MediaRaw{Value: s.raw(toks)}}
	}
	q.Condition = cond
	return q
}

// condition parses "not <in-parens>" or "<in-parens> [and|or <in-parens>]*"
// with a single operator kind.
func (s *state) condition(c *cursor, allowOr bool) (MediaCondition, bool) {
	if isWord(c.peek(), "not") {
		c.pos++
		inner, ok := s.inParens(c)
		if !ok {
			return nil, false
		}
		return &MediaNot{Condition: inner}, true
	}

	first, ok := s.inParens(c)
	if !ok {
		return nil, false
	}
	var (
		op    string
		conds = []MediaCondition{first}
	)
	for !c.done() {
		t := c.peek()
		if t.tt != css.IdentToken {
			return nil, false
		}
		word := strings.ToLower(t.data)
		if (word != "and" && word != "or") || (len(op) > 0 && word != op) || (word == "or" && !allowOr) {
			return nil, false
		}
		op = word
		c.pos++
		next, ok := s.inParens(c)
		if !ok {
			return nil, false
		}
		conds = append(conds, next)
	}
	if len(conds) == 1 {
		return first, true
	}
	return &MediaOperation{Op: op, Conditions: conds}, true
}

func (s *state) inParens(c *cursor) (MediaCondition, bool) {
	t := c.peek()
	if t.tt != css.LeftParenthesisToken && t.tt != css.FunctionToken {
		return nil, false
	}
	start := c.pos
	end := closer(c.toks, start)
	if end < 0 {
		return nil, false
	}
	c.pos = end + 1
	whole := c.toks[start : end+1]

	if t.tt == css.FunctionToken {
		// general enclosed
		return &MediaRaw{Value: s.raw(whole)}, true
	}

	inner := c.toks[start+1 : end]
	ic := &cursor{toks: inner}
	if f := ic.peek(); f.tt == css.LeftParenthesisToken || isWord(f, "not") {
		if cond, ok := s.condition(ic, true); ok && ic.done() {
			return cond, true
		}
		return &MediaRaw{Value: s.raw(whole)}, true
	}
	return s.feature(inner, whole), true
}

func (s *state) feature(inner, whole []token) MediaCondition {
	raw := &MediaRaw{Value: s.raw(whole)}

	c := &cursor{toks: inner}
	n := c.peek()
	if n.tt != css.IdentToken && n.tt != css.CustomPropertyNameToken {
		return raw
	}
	name := n.data
	if n.tt == css.IdentToken {
		name = strings.ToLower(name)
	}
	c.pos++
	if c.done() {
		return &MediaFeature{Name: name, Value: Absent{origin: s.origin}}
	}

	var op string
	switch t := c.peek(); {
	case t.tt == css.ColonToken:
		op = ":"
		c.pos++
	case t.tt == css.DelimToken && (t.data == "<" || t.data == ">" || t.data == "="):
		op = t.data
		c.pos++
		if op != "=" && c.pos < len(c.toks) && c.toks[c.pos].tt == css.DelimToken && c.toks[c.pos].data == "=" {
			op += "="
			c.pos++
		}
	default:
		return raw
	}

	rest := c.rest()
	for _, t := range rest {
		if t.tt == css.DelimToken && (t.data == "<" || t.data == ">" || t.data == "=") {
			return raw
		}
	}
	value, err := s.values(rest)
	if err != nil || len(value) == 0 {
		return raw
	}
	return &MediaFeature{Name: name, Op: op, Value: List(value)}
}
