package css

import (
	"regexp"
	"slices"

	"github.com/tdewolff/parse/v2/css"
)

// urlRewritePattern matches a single url() token.
// Handles: url("path"), url('path'), url(path)
var urlRewritePattern = regexp.MustCompile(`(?is)^url\(\s*(?:"([^"]*)"|'([^']*)'|([^)"']*?))\s*\)$`)

// urlTokenValue extracts location from url() token.
func urlTokenValue(data string) string {
	idx := urlRewritePattern.FindStringSubmatchIndex(data)
	switch {
	case idx == nil:
		return data
	case idx[2] >= 0:
		return data[idx[2]:idx[3]]
	case idx[4] >= 0:
		return data[idx[4]:idx[5]]
	default:
		return data[idx[6]:idx[7]]
	}
}

// rewriteURLToken applies fn to the location of url() token keeping its
// quoting style where possible.
func rewriteURLToken(data string, fn func(string) string) (string, bool) {
	idx := urlRewritePattern.FindStringSubmatchIndex(data)
	if idx == nil {
		return data, false
	}
	var original string
	quoted := true
	switch {
	case idx[2] >= 0:
		original = data[idx[2]:idx[3]]
	case idx[4] >= 0:
		original = data[idx[4]:idx[5]]
	default:
		original = data[idx[6]:idx[7]]
		quoted = false
	}
	updated := fn(original)
	if updated == original {
		return data, false
	}
	if !quoted && len(updated) > 0 && css.IsURLUnquoted([]byte(updated)) {
		return "url(" + updated + ")", true
	}
	return `url("` + cssEscapeDoubleQuoted(updated) + `")`, true
}

// rewriteURLs returns vals with url() tokens rewritten. Values are never
// modified in place: a new slice is returned when anything changed.
func rewriteURLs(vals []ComponentValue, fn func(string) string) ([]ComponentValue, bool) {
	var out []ComponentValue
	for i, v := range vals {
		next, changed := rewriteURL(v, fn)
		if !changed {
			continue
		}
		if out == nil {
			out = slices.Clone(vals)
		}
		out[i] = next
	}
	if out == nil {
		return vals, false
	}
	return out, true
}

func rewriteURL(v ComponentValue, fn func(string) string) (ComponentValue, bool) {
	switch v := v.(type) {
	case Token:
		if v.Type != css.URLToken {
			return v, false
		}
		if data, ok := rewriteURLToken(v.Data, fn); ok {
			return Token{Type: css.URLToken, Data: data}, true
		}
	case List:
		if vals, ok := rewriteURLs(v, fn); ok {
			return List(vals), true
		}
	case *Function:
		// src() and image-set() may hold plain strings, only url() tokens are touched
		if args, ok := rewriteURLs(v.Args, fn); ok {
			return &Function{Name: v.Name, Args: args}, true
		}
	case *Block:
		if items, ok := rewriteURLs(v.Items, fn); ok {
			return &Block{Open: v.Open, Items: items}, true
		}
	case *Var:
		if v.Fallback == nil {
			return v, false
		}
		if fallback, ok := rewriteURL(v.Fallback, fn); ok {
			return &Var{Name: v.Name, Fallback: fallback}, true
		}
	}
	return v, false
}
