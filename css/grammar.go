package css

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// AtRuleGrammar describes prelude of a custom at-rule. Supported preludes
// are "<custom-ident>" optionally followed by a multiplier: "+" (one or
// more, space separated), "*" (zero or more) or "#" (one or more, comma
// separated).
type AtRuleGrammar struct {
	Prelude string
}

// AtRuleGrammars maps at-rule names (without "@") to grammars.
type AtRuleGrammars map[string]AtRuleGrammar

type grammar struct {
	multiplier byte
}

// CSS-wide keywords cannot be used as <custom-ident>.
var reservedIdents = map[string]bool{
	"initial":      true,
	"inherit":      true,
	"unset":        true,
	"default":      true,
	"revert":       true,
	"revert-layer": true,
}

func compileGrammars(defs AtRuleGrammars) (map[string]grammar, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make(map[string]grammar, len(defs))
	for name, def := range defs {
		g, err := compileGrammar(def.Prelude)
		if err != nil {
			return nil, fmt.Errorf("custom at rule @%s: %w", name, err)
		}
		out[strings.ToLower(strings.TrimPrefix(name, "@"))] = g
	}
	return out, nil
}

func compileGrammar(prelude string) (grammar, error) {
	var g grammar
	s := strings.TrimSpace(prelude)
	if n := len(s); n > 0 && strings.IndexByte("+*#", s[n-1]) >= 0 {
		g.multiplier = s[n-1]
		s = strings.TrimSpace(s[:n-1])
	}
	if s != "<custom-ident>" {
		return g, fmt.Errorf("unsupported prelude grammar %q", prelude)
	}
	return g, nil
}

func (g grammar) parse(prelude []token) (ParsedComponent, error) {
	var (
		idents      []ParsedComponent
		expectComma bool
	)
	for _, t := range prelude {
		switch t.tt {
		case css.WhitespaceToken:
		case css.CommaToken:
			if g.multiplier != '#' || !expectComma {
				return nil, errors.New("unexpected ','")
			}
			expectComma = false
		case css.IdentToken:
			if g.multiplier == '#' && expectComma {
				return nil, fmt.Errorf("expected ',' before %q", t.data)
			}
			if reservedIdents[strings.ToLower(t.data)] {
				return nil, fmt.Errorf("%q is not a valid identifier", t.data)
			}
			idents = append(idents, &CustomIdent{Value: t.data})
			expectComma = true
		default:
			return nil, fmt.Errorf("unexpected %q, expected identifier", t.data)
		}
	}
	if g.multiplier == '#' && len(idents) > 0 && !expectComma {
		return nil, errors.New("trailing ','")
	}

	switch {
	case g.multiplier == 0:
		if len(idents) != 1 {
			return nil, fmt.Errorf("expected single identifier, got %d", len(idents))
		}
		return idents[0], nil
	case len(idents) == 0 && g.multiplier != '*':
		return nil, errors.New("expected at least one identifier")
	}
	return &Repeated{Components: idents, Comma: g.multiplier == '#'}, nil
}
