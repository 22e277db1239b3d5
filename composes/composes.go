// Package composes implements @composes at-rule: declarations of classes
// defined in a global stylesheet are merged into the rule using it.
//
//	.foo { @composes bar baz; color: blue; }
package composes

import (
	"slices"

	tdcss "github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"gcss/css"
	"gcss/global"
)

// ErrorPrefix starts every error reported when global stylesheet cannot be
// loaded.
const ErrorPrefix = "gcss/composes"

const atRuleName = "composes"

// CustomAtRules registers @composes with the parser, so the rule is
// delivered with parsed prelude and without "unknown at rule" warning.
// Rewriting works either way.
var CustomAtRules = css.AtRuleGrammars{
	atRuleName: {Prelude: "<custom-ident>+"},
}

// Options for the compose plugin.
type Options struct {
	// Source is path to the global stylesheet.
	Source string
	Log    *zap.Logger
}

// Plugin rewrites style rules using @composes. Its index is built once and
// only read afterwards, so one plugin may serve concurrent transforms.
type Plugin struct {
	log   *zap.Logger
	index *ClassIndex
}

// New loads global stylesheet and indexes its classes. Any failure to load
// is returned as *global.LoadError.
func New(opts Options) (*Plugin, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("composes")

	sheet, err := global.Load(opts.Source, ErrorPrefix, global.Options{Log: log, CustomAtRules: CustomAtRules})
	if err != nil {
		return nil, err
	}
	index := BuildClassIndex(sheet)

	log.Debug("Class index built", zap.String("source", opts.Source), zap.Int("classes", index.Len()))
	return &Plugin{log: log, index: index}, nil
}

func (p *Plugin) Index() *ClassIndex {
	return p.index
}

// Visitor returns transform callbacks of the plugin.
func (p *Plugin) Visitor() css.Visitor {
	return css.Visitor{StyleRule: p.Rewrite}
}

// Rewrite removes @composes children of the rule prepending declarations
// of every known composed class to the rule's own ones, normal and
// !important separately. Unknown classes are skipped. When the rule has no
// @composes children it is reported unchanged. The original rule is never
// modified.
func (p *Plugin) Rewrite(rule *css.StyleRule) (*css.StyleRule, bool) {
	if len(rule.Rules) == 0 {
		return rule, false
	}

	var (
		kept      []css.Rule
		removed   bool
		normal    = rule.Declarations.Declarations
		important = rule.Declarations.ImportantDeclarations
	)
	for _, child := range rule.Rules {
		names, ok := markerNames(child)
		if !ok {
			kept = append(kept, child)
			continue
		}
		removed = true
		for _, name := range names {
			block, found := p.index.Lookup(name)
			if !found {
				p.log.Debug("Composed class is not defined", zap.String("class", name), zap.Int("line", rule.Line))
				continue
			}
			// slices.Concat always allocates, index snapshots are never
			// shared as append targets
			if len(block.Declarations) > 0 {
				normal = slices.Concat(block.Declarations, normal)
			}
			if len(block.ImportantDeclarations) > 0 {
				important = slices.Concat(block.ImportantDeclarations, important)
			}
		}
	}
	if !removed {
		return rule, false
	}

	return &css.StyleRule{
		Selectors: rule.Selectors,
		Declarations: css.DeclarationBlock{
			Declarations:          normal,
			ImportantDeclarations: important,
		},
		Rules: kept,
		Line:  rule.Line,
	}, true
}

// markerNames reports whether rule is @composes and returns class names it
// lists. Both unregistered (token stream) and registered (parsed prelude)
// forms are recognized. Prelude of any other shape gives no names.
func markerNames(r css.Rule) ([]string, bool) {
	var names []string
	switch r := r.(type) {
	case *css.UnknownAtRule:
		if r.Name != atRuleName {
			return nil, false
		}
		for _, v := range r.Prelude {
			if t, ok := v.(css.Token); ok && t.Type == tdcss.IdentToken {
				names = append(names, t.Data)
			}
		}
	case *css.CustomAtRule:
		if r.Name != atRuleName {
			return nil, false
		}
		switch pc := r.Prelude.(type) {
		case *css.Repeated:
			for _, c := range pc.Components {
				if id, ok := c.(*css.CustomIdent); ok {
					names = append(names, id.Value)
				}
			}
		case *css.CustomIdent:
			names = append(names, pc.Value)
		}
	default:
		return nil, false
	}
	return names, true
}
