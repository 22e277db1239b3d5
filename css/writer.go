package css

import (
	"io"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// PrintOptions controls stylesheet output.
type PrintOptions struct {
	// Minify drops all optional whitespace and trailing semicolons.
	Minify bool
}

// cssEscapeDoubleQuoted escapes a string for safe inclusion inside a
// double-quoted CSS string literal.
func cssEscapeDoubleQuoted(s string) string {
	// Fast path: nothing to escape.
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	return s.write(w, PrintOptions{})
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	return s.Print(PrintOptions{})
}

// Print returns the CSS text of the stylesheet formatted according to opts.
func (s *Stylesheet) Print(opts PrintOptions) string {
	var sb strings.Builder
	s.write(&sb, opts) //nolint:errcheck
	return sb.String()
}

func (s *Stylesheet) write(w io.Writer, opts PrintOptions) (int64, error) {
	p := &printer{w: w, minify: opts.Minify}
	for i, r := range s.Rules {
		// blank line between items
		if i > 0 && !p.minify {
			p.print("\n")
		}
		p.rule(r)
	}
	if p.semi {
		p.print(";")
	}
	return p.n, p.err
}

// printer accumulates the first write error and the number of bytes written.
type printer struct {
	w      io.Writer
	n      int64
	err    error
	minify bool
	depth  int
	// semi is set when minified statement was written and the next item
	// needs a separator.
	semi bool
}

func (p *printer) print(parts ...string) {
	for _, s := range parts {
		if p.err != nil {
			return
		}
		n, err := io.WriteString(p.w, s)
		p.n += int64(n)
		p.err = err
	}
}

func (p *printer) indent() {
	if !p.minify {
		p.print(strings.Repeat("  ", p.depth))
	}
}

func (p *printer) separate() {
	if p.semi {
		p.print(";")
		p.semi = false
	}
}

// terminate ends a statement or declaration.
func (p *printer) terminate() {
	if p.minify {
		p.semi = true
		return
	}
	p.print(";\n")
}

func (p *printer) open() {
	if p.minify {
		p.print("{")
	} else {
		p.print(" {\n")
	}
	p.depth++
}

func (p *printer) close() {
	p.semi = false
	p.depth--
	p.indent()
	p.print("}")
	if !p.minify {
		p.print("\n")
	}
}

func (p *printer) rule(r Rule) {
	p.separate()
	switch r := r.(type) {
	case *StyleRule:
		p.indent()
		p.selectors(r.Selectors)
		p.open()
		p.declarations(r.Declarations)
		p.rules(r.Rules)
		p.close()

	case *MediaRule:
		p.indent()
		p.print("@media ")
		p.mediaList(r.Query)
		p.open()
		p.rules(r.Rules)
		p.close()

	case *CustomMediaRule:
		p.indent()
		p.print("@custom-media ", r.Name, " ")
		p.mediaList(r.Query)
		p.terminate()

	case *ImportRule:
		p.indent()
		if p.minify {
			p.print(`@import "`, cssEscapeDoubleQuoted(r.URL), `"`)
		} else {
			p.print(`@import url("`, cssEscapeDoubleQuoted(r.URL), `")`)
		}
		if r.Layer != nil {
			if len(*r.Layer) == 0 {
				p.print(" layer")
			} else {
				p.print(" layer(", *r.Layer, ")")
			}
		}
		if r.Supports != nil {
			p.print(" supports(")
			p.values(r.Supports)
			p.print(")")
		}
		if len(r.Media) > 0 {
			p.print(" ")
			p.mediaList(r.Media)
		}
		p.terminate()

	case *CustomAtRule:
		p.indent()
		p.print("@", r.Name)
		if r.Prelude != nil {
			p.print(" ")
			p.component(r.Prelude)
		}
		p.terminate()

	case *UnknownAtRule:
		p.indent()
		p.print("@", r.Name)
		if len(r.Prelude) > 0 {
			p.print(" ")
			p.values(r.Prelude)
		}
		if r.Block == nil {
			p.terminate()
			return
		}
		p.open()
		if len(r.Block) > 0 {
			p.indent()
			p.values(r.Block)
			if !p.minify {
				p.print("\n")
			}
		}
		p.close()

	case *GroupRule:
		p.indent()
		p.print("@", r.Name)
		if len(r.Prelude) > 0 {
			p.print(" ")
			p.values(r.Prelude)
		}
		p.open()
		p.rules(r.Rules)
		p.close()

	case *DeclarationRule:
		p.indent()
		p.print("@", r.Name)
		if len(r.Prelude) > 0 {
			p.print(" ")
			p.values(r.Prelude)
		}
		p.open()
		p.declarations(r.Declarations)
		p.rules(r.Rules)
		p.close()

	case *NestedDeclarations:
		p.declarations(r.Declarations)
	}
}

func (p *printer) rules(rules []Rule) {
	for _, r := range rules {
		p.rule(r)
	}
}

func (p *printer) declarations(block DeclarationBlock) {
	for _, d := range block.Declarations {
		p.declaration(d, false)
	}
	for _, d := range block.ImportantDeclarations {
		p.declaration(d, true)
	}
}

func (p *printer) declaration(d Declaration, important bool) {
	p.separate()
	p.indent()
	p.print(d.Property, ":")
	if !p.minify {
		p.print(" ")
	}
	p.values(d.Value)
	if important {
		if p.minify {
			p.print("!important")
		} else {
			p.print(" !important")
		}
	}
	p.terminate()
}

func (p *printer) selectors(list SelectorList) {
	for i, sel := range list {
		if i > 0 {
			if p.minify {
				p.print(",")
			} else {
				p.print(", ")
			}
		}
		for j, c := range sel {
			switch c.Kind {
			case SelectorClass:
				p.print(".", c.Name)
			case SelectorID:
				p.print("#", c.Name)
			case SelectorAttribute:
				p.print("[", c.Name, "]")
			case SelectorPseudoClass, SelectorPseudoElement:
				if c.Kind == SelectorPseudoElement {
					p.print("::", c.Name)
				} else {
					p.print(":", c.Name)
				}
				if c.Args != nil {
					p.print("(")
					p.values(c.Args)
					p.print(")")
				}
			case SelectorCombinator:
				switch {
				case c.Name == " ":
					p.print(" ")
				case p.minify:
					p.print(c.Name)
				case j == 0:
					p.print(c.Name, " ")
				default:
					p.print(" ", c.Name, " ")
				}
			default:
				p.print(c.Name)
			}
		}
	}
}

// tight reports whether whitespace around v can be dropped when minifying.
func tight(v ComponentValue) bool {
	t, ok := v.(Token)
	return ok && (t.Type == css.CommaToken || t.Type == css.DelimToken && t.Data == "/")
}

func (p *printer) values(vals []ComponentValue) {
	for i, v := range vals {
		switch v := v.(type) {
		case Token:
			if v.Type != css.WhitespaceToken {
				p.print(v.Data)
				continue
			}
			if p.minify && (i == 0 || i == len(vals)-1 || tight(vals[i-1]) || tight(vals[i+1])) {
				continue
			}
			p.print(" ")
		case List:
			p.values(v)
		case *Function:
			p.print(v.Name, "(")
			p.values(v.Args)
			p.print(")")
		case *Block:
			left, right := "(", ")"
			switch v.Open {
			case css.LeftBracketToken:
				left, right = "[", "]"
			case css.LeftBraceToken:
				left, right = "{", "}"
			}
			p.print(left)
			p.values(v.Items)
			p.print(right)
		case *Var:
			p.print("var(", v.Name)
			if fallback, ok := v.Fallback.(List); ok {
				p.print(",")
				if !p.minify && len(fallback) > 0 {
					p.print(" ")
				}
				p.values(fallback)
			}
			p.print(")")
		case Absent:
		}
	}
}

func (p *printer) mediaList(list MediaList) {
	for i, q := range list {
		if i > 0 {
			if p.minify {
				p.print(",")
			} else {
				p.print(", ")
			}
		}
		p.mediaQuery(q)
	}
}

func (p *printer) mediaQuery(q MediaQuery) {
	if len(q.Qualifier) > 0 {
		p.print(q.Qualifier, " ")
	}
	p.print(q.MediaType)
	if q.Condition == nil {
		return
	}
	if len(q.MediaType) == 0 {
		p.condition(q.Condition)
		return
	}
	p.print(" and ")
	// "or" cannot follow media type unparenthesized
	if op, ok := q.Condition.(*MediaOperation); ok && op.Op == "or" {
		p.nestedCondition(op)
		return
	}
	p.condition(q.Condition)
}

func (p *printer) condition(c MediaCondition) {
	switch c := c.(type) {
	case *MediaFeature:
		p.print("(", c.Name)
		switch c.Op {
		case "":
		case ":":
			p.print(":")
			if !p.minify {
				p.print(" ")
			}
		default:
			if p.minify {
				p.print(c.Op)
			} else {
				p.print(" ", c.Op, " ")
			}
		}
		if c.Value != nil {
			p.values([]ComponentValue{c.Value})
		}
		p.print(")")
	case *MediaNot:
		p.print("not ")
		p.nestedCondition(c.Condition)
	case *MediaOperation:
		for i, child := range c.Conditions {
			if i > 0 {
				p.print(" ", c.Op, " ")
			}
			p.nestedCondition(child)
		}
	case *MediaRaw:
		p.values(c.Value)
	}
}

// nestedCondition writes operand of "not", "and" and "or", adding
// parentheses where needed.
func (p *printer) nestedCondition(c MediaCondition) {
	switch c.(type) {
	case *MediaNot, *MediaOperation:
		p.print("(")
		p.condition(c)
		p.print(")")
	default:
		p.condition(c)
	}
}

func (p *printer) component(c ParsedComponent) {
	switch c := c.(type) {
	case *CustomIdent:
		p.print(c.Value)
	case *Repeated:
		sep := " "
		if c.Comma {
			sep = ", "
			if p.minify {
				sep = ","
			}
		}
		for i, item := range c.Components {
			if i > 0 {
				p.print(sep)
			}
			p.component(item)
		}
	}
}

// String returns declarations of the block in minified form, normal ones
// first: "color:red;margin:0!important".
func (b DeclarationBlock) String() string {
	var sb strings.Builder
	p := &printer{w: &sb, minify: true}
	p.declarations(b)
	return sb.String()
}

// String returns the query as it would appear in a pretty printed @media
// prelude.
func (q MediaQuery) String() string {
	var sb strings.Builder
	p := &printer{w: &sb}
	p.mediaQuery(q)
	return sb.String()
}
