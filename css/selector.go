package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// splitComma splits token run on commas outside of brackets.
func splitComma(toks []token) [][]token {
	var (
		parts [][]token
		start int
		depth int
	)
	for i, t := range toks {
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken, css.LeftBraceToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken, css.RightBraceToken:
			if depth > 0 {
				depth--
			}
		case css.CommaToken:
			if depth == 0 {
				parts = append(parts, toks[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, toks[start:])
}

func (s *state) selectorList(toks []token) (SelectorList, error) {
	var list SelectorList
	for _, part := range splitComma(toks) {
		sel, err := s.selector(trimWhitespace(part), toks[0])
		if err != nil {
			return nil, err
		}
		list = append(list, sel)
	}
	return list, nil
}

// selector parses a complex selector. at is used for error position when
// the selector is empty.
func (s *state) selector(toks []token, at token) (Selector, error) {
	if len(toks) == 0 {
		return nil, s.errorf(at, "empty selector")
	}

	var sel Selector
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.tt {
		case css.WhitespaceToken:
			if n := len(sel); n > 0 && sel[n-1].Kind != SelectorCombinator {
				sel = append(sel, SelectorComponent{Kind: SelectorCombinator, Name: " "})
			}

		case css.DelimToken:
			switch t.data {
			case ">", "+", "~":
				if n := len(sel); n > 0 && sel[n-1].Kind == SelectorCombinator {
					if sel[n-1].Name != " " {
						return nil, s.errorf(t, "unexpected combinator %s", describe(t))
					}
					sel[n-1].Name = t.data
				} else {
					// relative selector is allowed in nested rules
					sel = append(sel, SelectorComponent{Kind: SelectorCombinator, Name: t.data})
				}
			case ".":
				if i+1 >= len(toks) || toks[i+1].tt != css.IdentToken {
					return nil, s.errorf(t, "expected class name after '.'")
				}
				i++
				sel = append(sel, SelectorComponent{Kind: SelectorClass, Name: toks[i].data})
			case "*":
				sel = append(sel, SelectorComponent{Kind: SelectorUniversal, Name: "*"})
			case "&":
				sel = append(sel, SelectorComponent{Kind: SelectorNesting, Name: "&"})
			default:
				return nil, s.errorf(t, "unexpected %s in selector", describe(t))
			}

		case css.HashToken:
			sel = append(sel, SelectorComponent{Kind: SelectorID, Name: t.data[1:]})

		case css.IdentToken:
			sel = append(sel, SelectorComponent{Kind: SelectorType, Name: t.data})

		case css.ColonToken:
			kind := SelectorPseudoClass
			if i+1 < len(toks) && toks[i+1].tt == css.ColonToken {
				kind = SelectorPseudoElement
				i++
			}
			if i+1 >= len(toks) {
				return nil, s.errorf(t, "expected pseudo selector name")
			}
			i++
			switch n := toks[i]; n.tt {
			case css.IdentToken:
				sel = append(sel, SelectorComponent{Kind: kind, Name: n.data})
			case css.FunctionToken:
				end := closer(toks, i)
				if end < 0 {
					return nil, s.errorf(n, "unbalanced brackets after %s", describe(n))
				}
				args, err := s.values(toks[i+1 : end])
				if err != nil {
					return nil, err
				}
				if args == nil {
					args = []ComponentValue{}
				}
				sel = append(sel, SelectorComponent{Kind: kind, Name: n.data[:len(n.data)-1], Args: args})
				i = end
			default:
				return nil, s.errorf(n, "unexpected %s after ':'", describe(n))
			}

		case css.LeftBracketToken:
			end := closer(toks, i)
			if end < 0 {
				return nil, s.errorf(t, "unbalanced brackets in attribute selector")
			}
			var sb strings.Builder
			for _, n := range toks[i+1 : end] {
				sb.WriteString(n.data)
			}
			sel = append(sel, SelectorComponent{Kind: SelectorAttribute, Name: strings.TrimSpace(sb.String())})
			i = end

		default:
			return nil, s.errorf(t, "unexpected %s in selector", describe(t))
		}
	}
	if sel[len(sel)-1].Kind == SelectorCombinator {
		return nil, s.errorf(toks[len(toks)-1], "selector ends with combinator")
	}
	return sel, nil
}
