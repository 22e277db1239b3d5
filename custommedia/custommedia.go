// Package custommedia resolves custom media references in media queries
// against @custom-media definitions of a global stylesheet.
//
//	@custom-media --narrow (max-width: 30em);  // global stylesheet
//	@media not (--narrow) { ... }              // stylesheet being compiled
package custommedia

import (
	"strings"

	"go.uber.org/zap"

	"gcss/css"
	"gcss/global"
)

// ErrorPrefix starts every error reported when global stylesheet cannot be
// loaded.
const ErrorPrefix = "gcss/custom-media"

// Options for the custom media plugin.
type Options struct {
	// Source is path to the global stylesheet.
	Source string
	Log    *zap.Logger
}

// Plugin substitutes custom media references in media queries.
type Plugin struct {
	index *MediaIndex
}

// New loads global stylesheet and indexes its @custom-media definitions. Any
// failure to load is returned as *global.LoadError.
func New(opts Options) (*Plugin, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("custom-media")

	sheet, err := global.Load(opts.Source, ErrorPrefix, global.Options{Log: log})
	if err != nil {
		return nil, err
	}
	index := BuildMediaIndex(sheet)

	log.Debug("Custom media index built", zap.String("source", opts.Source), zap.Int("definitions", index.Len()))
	return &Plugin{index: index}, nil
}

func (p *Plugin) Index() *MediaIndex {
	return p.index
}

// Visitor returns transform callbacks of the plugin.
func (p *Plugin) Visitor() css.Visitor {
	return css.Visitor{MediaQuery: p.index.ResolveQuery}
}

// ResolveQuery returns query with custom media references of its condition
// substituted. Qualifier and media type are kept.
func (ix *MediaIndex) ResolveQuery(q css.MediaQuery) css.MediaQuery {
	q.Condition = ix.ResolveCondition(q.Condition)
	return q
}

// ResolveCondition replaces every "(--name)" leaf of the condition tree with
// the indexed condition, leaving unknown names and all surrounding "not",
// "and" and "or" structure in place. Resolved conditions never contain
// indexed references, so resolving again changes nothing. Input is never
// modified, unchanged subtrees are shared with the result.
func (ix *MediaIndex) ResolveCondition(c css.MediaCondition) css.MediaCondition {
	switch c := c.(type) {
	case *css.MediaFeature:
		if !strings.HasPrefix(c.Name, "--") {
			return c
		}
		if resolved, ok := ix.conditions[c.Name]; ok {
			return resolved
		}
		return c
	case *css.MediaNot:
		inner := ix.ResolveCondition(c.Condition)
		if inner == c.Condition {
			return c
		}
		return &css.MediaNot{Condition: inner}
	case *css.MediaOperation:
		var conds []css.MediaCondition
		for i, child := range c.Conditions {
			next := ix.ResolveCondition(child)
			if next != child && conds == nil {
				conds = make([]css.MediaCondition, len(c.Conditions))
				copy(conds, c.Conditions[:i])
			}
			if conds != nil {
				conds[i] = next
			}
		}
		if conds == nil {
			return c
		}
		return &css.MediaOperation{Op: c.Op, Conditions: conds}
	}
	return c
}
