package css

import (
	"errors"
	"fmt"
)

// ErrForeignFragment is returned by Transform when a visitor injects nodes
// carrying Absent markers of another parse.
var ErrForeignFragment = errors.New("fragment carries absent markers of another stylesheet")

// Visitor holds callbacks invoked by Transform. Nil callbacks are skipped.
type Visitor struct {
	// StyleRule is called for every style rule, including nested ones,
	// before its children are visited. It returns a replacement and true,
	// or false to keep the rule untouched. Replacements are validated.
	StyleRule func(rule *StyleRule) (*StyleRule, bool)
	// MediaQuery is called for every query of @media, @import and
	// @custom-media rules and must always return a query. Results are
	// validated.
	MediaQuery func(query MediaQuery) MediaQuery
	// URL is called for every url() reference and @import location.
	URL func(url string) string
}

// ComposeVisitors combines visitors into one which runs their callbacks in
// order, each one receiving result of the previous.
func ComposeVisitors(visitors ...Visitor) Visitor {
	var (
		styles  []func(*StyleRule) (*StyleRule, bool)
		queries []func(MediaQuery) MediaQuery
		urls    []func(string) string
	)
	for _, v := range visitors {
		if v.StyleRule != nil {
			styles = append(styles, v.StyleRule)
		}
		if v.MediaQuery != nil {
			queries = append(queries, v.MediaQuery)
		}
		if v.URL != nil {
			urls = append(urls, v.URL)
		}
	}

	var out Visitor
	if len(styles) > 0 {
		out.StyleRule = func(rule *StyleRule) (*StyleRule, bool) {
			changed := false
			for _, fn := range styles {
				next, ok := fn(rule)
				if !ok {
					continue
				}
				if next == nil {
					return nil, true
				}
				rule, changed = next, true
			}
			return rule, changed
		}
	}
	if len(queries) > 0 {
		out.MediaQuery = func(query MediaQuery) MediaQuery {
			for _, fn := range queries {
				query = fn(query)
			}
			return query
		}
	}
	if len(urls) > 0 {
		out.URL = func(url string) string {
			for _, fn := range urls {
				url = fn(url)
			}
			return url
		}
	}
	return out
}

// Transform walks the stylesheet depth first applying visitor callbacks and
// replacing nodes in place.
func Transform(sheet *Stylesheet, v Visitor) error {
	t := &transformer{v: v, origin: sheet.origin}
	return t.rules(sheet.Rules)
}

// RewriteURLs walks all URL references in the stylesheet and applies fn to each.
// This covers @import URLs and url() references in declarations and preludes.
func (s *Stylesheet) RewriteURLs(fn func(originalURL string) string) {
	// URL rewriting never produces foreign markers
	_ = Transform(s, Visitor{URL: fn})
}

type transformer struct {
	v      Visitor
	origin uint64
}

func (t *transformer) rules(rules []Rule) error {
	for i, r := range rules {
		next, err := t.rule(r)
		if err != nil {
			return err
		}
		rules[i] = next
	}
	return nil
}

func (t *transformer) rule(r Rule) (Rule, error) {
	var err error
	switch r := r.(type) {
	case *StyleRule:
		if t.v.StyleRule != nil {
			if next, changed := t.v.StyleRule(r); changed {
				if next == nil {
					return nil, fmt.Errorf("style rule on line %d: visitor returned no rule", r.Line)
				}
				if err := t.checkRule(next); err != nil {
					return nil, fmt.Errorf("style rule on line %d: %w", r.Line, err)
				}
				r = next
			}
		}
		t.block(&r.Declarations)
		return r, t.rules(r.Rules)

	case *MediaRule:
		if r.Query, err = t.queries(r.Query, r.Line); err != nil {
			return nil, err
		}
		return r, t.rules(r.Rules)

	case *CustomMediaRule:
		if r.Query, err = t.queries(r.Query, r.Line); err != nil {
			return nil, err
		}
		return r, nil

	case *ImportRule:
		if t.v.URL != nil {
			r.URL = t.v.URL(r.URL)
		}
		if r.Media, err = t.queries(r.Media, r.Line); err != nil {
			return nil, err
		}
		return r, nil

	case *GroupRule:
		return r, t.rules(r.Rules)

	case *DeclarationRule:
		r.Prelude = t.urls(r.Prelude)
		t.block(&r.Declarations)
		return r, t.rules(r.Rules)

	case *NestedDeclarations:
		t.block(&r.Declarations)
		return r, nil

	case *UnknownAtRule:
		r.Prelude = t.urls(r.Prelude)
		if r.Block != nil {
			r.Block = t.urls(r.Block)
		}
		return r, nil
	}
	return r, nil
}

func (t *transformer) queries(list MediaList, line int) (MediaList, error) {
	if t.v.MediaQuery == nil {
		return list, nil
	}
	for i, q := range list {
		next := t.v.MediaQuery(q)
		if err := t.checkCondition(next.Condition); err != nil {
			return nil, fmt.Errorf("media query on line %d: %w", line, err)
		}
		list[i] = next
	}
	return list, nil
}

func (t *transformer) block(b *DeclarationBlock) {
	if t.v.URL == nil {
		return
	}
	for _, decls := range [][]Declaration{b.Declarations, b.ImportantDeclarations} {
		for i := range decls {
			if vals, changed := rewriteURLs(decls[i].Value, t.v.URL); changed {
				decls[i].Value = vals
			}
		}
	}
}

func (t *transformer) urls(vals []ComponentValue) []ComponentValue {
	if t.v.URL == nil {
		return vals
	}
	vals, _ = rewriteURLs(vals, t.v.URL)
	return vals
}

// validation of replacement nodes

func (t *transformer) foreign(a Absent) error {
	return fmt.Errorf("%w: marker of parse %d found in parse %d", ErrForeignFragment, a.origin, t.origin)
}

func (t *transformer) checkRule(r Rule) error {
	switch r := r.(type) {
	case *StyleRule:
		for _, sel := range r.Selectors {
			for _, c := range sel {
				if err := t.checkValues(c.Args); err != nil {
					return err
				}
			}
		}
		if err := t.checkBlock(r.Declarations); err != nil {
			return err
		}
		return t.checkRules(r.Rules)
	case *MediaRule:
		if err := t.checkQueries(r.Query); err != nil {
			return err
		}
		return t.checkRules(r.Rules)
	case *CustomMediaRule:
		return t.checkQueries(r.Query)
	case *ImportRule:
		if err := t.checkValues(r.Supports); err != nil {
			return err
		}
		return t.checkQueries(r.Media)
	case *UnknownAtRule:
		if err := t.checkValues(r.Prelude); err != nil {
			return err
		}
		return t.checkValues(r.Block)
	case *GroupRule:
		if err := t.checkValues(r.Prelude); err != nil {
			return err
		}
		return t.checkRules(r.Rules)
	case *DeclarationRule:
		if err := t.checkValues(r.Prelude); err != nil {
			return err
		}
		if err := t.checkBlock(r.Declarations); err != nil {
			return err
		}
		return t.checkRules(r.Rules)
	case *NestedDeclarations:
		return t.checkBlock(r.Declarations)
	}
	return nil
}

func (t *transformer) checkRules(rules []Rule) error {
	for _, r := range rules {
		if err := t.checkRule(r); err != nil {
			return err
		}
	}
	return nil
}

func (t *transformer) checkBlock(b DeclarationBlock) error {
	for _, decls := range [][]Declaration{b.Declarations, b.ImportantDeclarations} {
		for _, d := range decls {
			if err := t.checkValues(d.Value); err != nil {
				return fmt.Errorf("declaration %s: %w", d.Property, err)
			}
		}
	}
	return nil
}

func (t *transformer) checkQueries(list MediaList) error {
	for _, q := range list {
		if err := t.checkCondition(q.Condition); err != nil {
			return err
		}
	}
	return nil
}

func (t *transformer) checkValues(vals []ComponentValue) error {
	for _, v := range vals {
		if err := t.checkValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (t *transformer) checkValue(v ComponentValue) error {
	switch v := v.(type) {
	case Absent:
		if v.origin != t.origin {
			return t.foreign(v)
		}
	case List:
		return t.checkValues(v)
	case *Function:
		return t.checkValues(v.Args)
	case *Block:
		return t.checkValues(v.Items)
	case *Var:
		if v.Fallback != nil {
			return t.checkValue(v.Fallback)
		}
	}
	return nil
}

func (t *transformer) checkCondition(c MediaCondition) error {
	switch c := c.(type) {
	case *MediaFeature:
		if c.Value != nil {
			return t.checkValue(c.Value)
		}
	case *MediaNot:
		return t.checkCondition(c.Condition)
	case *MediaOperation:
		for _, child := range c.Conditions {
			if err := t.checkCondition(child); err != nil {
				return err
			}
		}
	case *MediaRaw:
		return t.checkValues(c.Value)
	}
	return nil
}
