package custommedia

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"gcss/css"
	"gcss/global"
	"gcss/utils/debug"
)

// MediaIndex maps custom media names ("--name") to sanitized conditions.
// Conditions have references to other custom media already substituted. It
// is never modified after BuildMediaIndex returns.
type MediaIndex struct {
	conditions map[string]css.MediaCondition
}

// BuildMediaIndex records condition of the first query of every top level
// @custom-media rule. Definitions without a condition ("print") are skipped,
// when name is defined more than once the last definition wins.
//
// Definitions referring to other custom media are expanded here. A
// definition taking part in a reference cycle is not indexed, so references
// to it are left as written.
func BuildMediaIndex(sheet *css.Stylesheet) *MediaIndex {
	b := &builder{
		defs:     make(map[string]css.MediaCondition),
		resolved: make(map[string]css.MediaCondition),
		state:    make(map[string]expansion),
	}
	for _, r := range sheet.Rules {
		cm, ok := r.(*css.CustomMediaRule)
		if !ok || len(cm.Query) == 0 || cm.Query[0].Condition == nil {
			continue
		}
		b.defs[cm.Name] = cm.Query[0].Condition
	}

	ix := &MediaIndex{conditions: make(map[string]css.MediaCondition, len(b.defs))}
	for name := range b.defs {
		if c, ok := b.expand(name); ok {
			ix.conditions[name] = global.SanitizeCondition(c)
		}
	}
	return ix
}

type expansion int

const (
	unvisited expansion = iota
	visiting
	expanded
	cyclic
)

type builder struct {
	defs     map[string]css.MediaCondition
	resolved map[string]css.MediaCondition
	state    map[string]expansion
}

// expand returns definition of name with all references substituted, false
// when definition depends on a cycle.
func (b *builder) expand(name string) (css.MediaCondition, bool) {
	switch b.state[name] {
	case expanded:
		return b.resolved[name], true
	case visiting, cyclic:
		b.state[name] = cyclic
		return nil, false
	}

	b.state[name] = visiting
	c, ok := b.substitute(b.defs[name])
	if !ok {
		b.state[name] = cyclic
		return nil, false
	}
	b.resolved[name], b.state[name] = c, expanded
	return c, true
}

func (b *builder) substitute(c css.MediaCondition) (css.MediaCondition, bool) {
	switch c := c.(type) {
	case *css.MediaFeature:
		if _, defined := b.defs[c.Name]; !defined || !strings.HasPrefix(c.Name, "--") {
			return c, true
		}
		return b.expand(c.Name)
	case *css.MediaNot:
		inner, ok := b.substitute(c.Condition)
		if !ok {
			return nil, false
		}
		return &css.MediaNot{Condition: inner}, true
	case *css.MediaOperation:
		conds := make([]css.MediaCondition, len(c.Conditions))
		for i, child := range c.Conditions {
			next, ok := b.substitute(child)
			if !ok {
				return nil, false
			}
			conds[i] = next
		}
		return &css.MediaOperation{Op: c.Op, Conditions: conds}, true
	}
	return c, true
}

// Lookup returns condition recorded for custom media name (with leading
// "--"). Returned condition is shared and must not be modified.
func (ix *MediaIndex) Lookup(name string) (css.MediaCondition, bool) {
	c, ok := ix.conditions[name]
	return c, ok
}

func (ix *MediaIndex) Len() int {
	return len(ix.conditions)
}

// Names returns indexed custom media names in natural order.
func (ix *MediaIndex) Names() []string {
	names := slices.Collect(maps.Keys(ix.conditions))
	sort.Sort(natural.StringSlice(names))
	return names
}

// String returns readable dump of the index for debugging.
func (ix *MediaIndex) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Custom media index: %d", ix.Len())
	for _, name := range ix.Names() {
		tw.Entry(1, name, css.MediaQuery{Condition: ix.conditions[name]}.String())
	}
	return tw.String()
}
