package composes

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"gcss/css"
	"gcss/global"
	"gcss/utils/debug"
)

// ClassIndex maps class names to sanitized declaration blocks of the global
// stylesheet. It is never modified after BuildClassIndex returns.
type ClassIndex struct {
	classes map[string]css.DeclarationBlock
}

// BuildClassIndex walks style rules of the sheet in a single pass: top level
// rules, rules nested in style rules and rules inside @layer blocks.
// Conditional groups (@media, @supports, @container) are not indexed. Every
// class of a rule's selectors maps to the same sanitized block, when class
// is repeated the later rule wins.
func BuildClassIndex(sheet *css.Stylesheet) *ClassIndex {
	ix := &ClassIndex{classes: make(map[string]css.DeclarationBlock)}
	ix.add(sheet.Rules)
	return ix
}

func (ix *ClassIndex) add(rules []css.Rule) {
	for _, r := range rules {
		switch r := r.(type) {
		case *css.StyleRule:
			if names := r.Selectors.Classes(); len(names) > 0 {
				block := global.SanitizeBlock(r.Declarations)
				for _, name := range names {
					ix.classes[name] = block
				}
			}
			ix.add(r.Rules)
		case *css.GroupRule:
			if r.Name == "layer" {
				ix.add(r.Rules)
			}
		}
	}
}

// Lookup returns declaration block recorded for class name. Returned block
// is shared and must not be modified.
func (ix *ClassIndex) Lookup(name string) (css.DeclarationBlock, bool) {
	b, ok := ix.classes[name]
	return b, ok
}

func (ix *ClassIndex) Len() int {
	return len(ix.classes)
}

// Names returns indexed class names in natural order.
func (ix *ClassIndex) Names() []string {
	names := slices.Collect(maps.Keys(ix.classes))
	sort.Sort(natural.StringSlice(names))
	return names
}

// String returns readable dump of the index for debugging.
func (ix *ClassIndex) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Class index: %d", ix.Len())
	for _, name := range ix.Names() {
		tw.Entry(1, "."+name, ix.classes[name].String())
	}
	return tw.String()
}
