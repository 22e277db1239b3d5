package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// at-rules which are passed through as token streams without a warning.
var knownAtRules = map[string]bool{
	"namespace":           true,
	"keyframes":           true,
	"-webkit-keyframes":   true,
	"-moz-keyframes":      true,
	"-o-keyframes":        true,
	"font-feature-values": true,
	"layer":               true,
	"viewport":            true,
	"-ms-viewport":        true,
	"supports":            true,
	"container":           true,
	"scope":               true,
	"starting-style":      true,
	"document":            true,
	"-moz-document":       true,
	"nest":                true,
	"view-transition":     true,
	"position-try":        true,
	"font-palette-values": true,
	"counter-style":       true,
	"property":            true,
	"page":                true,
	"font-face":           true,
	"media":               true,
	"custom-media":        true,
	"import":              true,
	"charset":             true,
}

// group rules contain other rules.
var groupAtRules = map[string]bool{
	"supports":       true,
	"layer":          true,
	"container":      true,
	"scope":          true,
	"starting-style": true,
	"document":       true,
	"-moz-document":  true,
	"nest":           true,
}

// declaration rules contain declarations.
var declarationAtRules = map[string]bool{
	"font-face":           true,
	"page":                true,
	"property":            true,
	"counter-style":       true,
	"font-palette-values": true,
	"view-transition":     true,
	"position-try":        true,
	"viewport":            true,
	"-ms-viewport":        true,
}

func isWord(t token, word string) bool {
	return t.tt == css.IdentToken && strings.EqualFold(t.data, word)
}

// atRule parses an at-rule starting at the current at-keyword. top is set
// for stylesheet level, nested for at-rules inside style rules. It returns
// nil rule for at-rules which are consumed without trace (@charset).
func (s *state) atRule(top, nested bool) (Rule, error) {
	at := s.next()
	name := strings.ToLower(at.data[1:])
	line := s.line(at)

	prelude := trimWhitespace(s.collect(css.LeftBraceToken, css.SemicolonToken))
	hasBlock := false
	switch s.peek().tt {
	case css.LeftBraceToken:
		s.next()
		hasBlock = true
	case css.SemicolonToken:
		s.next()
	}

	switch {
	case name == "media":
		if !hasBlock {
			return nil, s.errorf(at, "@media requires a block")
		}
		rules, err := s.groupBody(nested)
		if err != nil {
			return nil, err
		}
		return &MediaRule{Query: s.mediaList(prelude), Rules: rules, Line: line}, nil

	case name == "custom-media":
		if hasBlock {
			return nil, s.errorf(at, "unexpected block after @custom-media")
		}
		c := &cursor{toks: prelude}
		n := c.peek()
		if n.tt != css.CustomPropertyNameToken {
			return nil, s.errorf(at, "expected custom media name after @custom-media, got %s", describe(n))
		}
		c.pos++
		c.skip()
		return &CustomMediaRule{Name: n.data, Query: s.mediaList(c.rest()), Line: line}, nil

	case name == "import":
		if !top || hasBlock {
			return nil, s.errorf(at, "misplaced @import")
		}
		return s.importRule(at, prelude)

	case name == "charset":
		// input is decoded before parsing
		return nil, nil

	case groupAtRules[name] && hasBlock:
		rules, err := s.groupBody(nested)
		if err != nil {
			return nil, err
		}
		return &GroupRule{Name: name, Prelude: s.raw(prelude), Rules: rules, Line: line}, nil

	case declarationAtRules[name] && hasBlock:
		block, rules, err := s.styleBlock()
		if err != nil {
			return nil, err
		}
		return &DeclarationRule{Name: name, Prelude: s.raw(prelude), Declarations: block, Rules: rules, Line: line}, nil
	}

	if g, ok := s.grammars[name]; ok && !hasBlock {
		pc, err := g.parse(prelude)
		if err == nil {
			return &CustomAtRule{Name: name, Prelude: pc, Line: line}, nil
		}
		s.warnf(at, "invalid prelude for @%s: %v", name, err)
	} else if !knownAtRules[name] {
		s.warnf(at, "unknown at rule: @%s", name)
	}

	r := &UnknownAtRule{Name: name, Prelude: s.raw(prelude), Line: line}
	if hasBlock {
		body := s.collect()
		if t := s.peek(); t.tt != css.RightBraceToken {
			return nil, s.errorf(t, "unexpected end of input, expected '}'")
		}
		s.next()
		r.Block = s.raw(body)
		if r.Block == nil {
			r.Block = []ComponentValue{}
		}
	}
	return r, nil
}

// groupBody parses block of a group at-rule. Inside style rules such blocks
// may hold declarations directly, they are kept as NestedDeclarations.
func (s *state) groupBody(nested bool) ([]Rule, error) {
	if !nested {
		return s.ruleList(false)
	}
	block, rules, err := s.styleBlock()
	if err != nil {
		return nil, err
	}
	if block.Len() > 0 {
		rules = append([]Rule{&NestedDeclarations{Declarations: block}}, rules...)
	}
	return rules, nil
}

// importRule handles: @import "url" | url(url) [layer | layer(name)]
// [supports(condition)] [media-query-list];
func (s *state) importRule(at token, prelude []token) (*ImportRule, error) {
	r := &ImportRule{Line: s.line(at)}

	c := &cursor{toks: prelude}
	switch t := c.peek(); t.tt {
	case css.StringToken:
		r.URL = unquote(t.data)
	case css.URLToken:
		r.URL = urlTokenValue(t.data)
	default:
		return nil, s.errorf(at, "expected url after @import, got %s", describe(t))
	}
	c.pos++

	if t := c.peek(); isWord(t, "layer") {
		anonymous := ""
		r.Layer = &anonymous
		c.pos++
	} else if t.tt == css.FunctionToken && strings.EqualFold(t.data, "layer(") {
		end := closer(c.toks, c.pos)
		if end < 0 {
			return nil, s.errorf(t, "unbalanced brackets after %s", describe(t))
		}
		var sb strings.Builder
		for _, n := range c.toks[c.pos+1 : end] {
			sb.WriteString(n.data)
		}
		name := strings.TrimSpace(sb.String())
		r.Layer = &name
		c.pos = end + 1
	}

	if t := c.peek(); t.tt == css.FunctionToken && strings.EqualFold(t.data, "supports(") {
		end := closer(c.toks, c.pos)
		if end < 0 {
			return nil, s.errorf(t, "unbalanced brackets after %s", describe(t))
		}
		vals, err := s.values(c.toks[c.pos+1 : end])
		if err != nil {
			return nil, err
		}
		if vals == nil {
			vals = []ComponentValue{}
		}
		r.Supports = vals
		c.pos = end + 1
	}

	c.skip()
	r.Media = s.mediaList(c.rest())
	return r, nil
}

// cursor walks a token run ignoring whitespace between significant tokens.
type cursor struct {
	toks []token
	pos  int
}

func (c *cursor) skip() {
	for c.pos < len(c.toks) && c.toks[c.pos].tt == css.WhitespaceToken {
		c.pos++
	}
}

func (c *cursor) peek() token {
	c.skip()
	if c.pos < len(c.toks) {
		return c.toks[c.pos]
	}
	return token{tt: css.ErrorToken}
}

func (c *cursor) done() bool {
	return c.peek().tt == css.ErrorToken
}

func (c *cursor) rest() []token {
	return c.toks[c.pos:]
}
