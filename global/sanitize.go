package global

import (
	"gcss/css"
)

// Fragments captured from a global stylesheet are injected into trees
// produced by other parses. Absent markers are bound to the parse which
// created them, so captured fragments are deep copied with every Absent
// optional slot left empty (nil) and Absent sequence elements dropped.
// Sanitizing never modifies its input.

// SanitizeBlock returns a deep copy of declaration block suitable for
// injection into another stylesheet.
func SanitizeBlock(b css.DeclarationBlock) css.DeclarationBlock {
	return css.DeclarationBlock{
		Declarations:          sanitizeDeclarations(b.Declarations),
		ImportantDeclarations: sanitizeDeclarations(b.ImportantDeclarations),
	}
}

// SanitizeCondition returns a deep copy of media condition suitable for
// injection into another stylesheet.
func SanitizeCondition(c css.MediaCondition) css.MediaCondition {
	switch c := c.(type) {
	case *css.MediaFeature:
		return &css.MediaFeature{Name: c.Name, Op: c.Op, Value: sanitizeValue(c.Value)}
	case *css.MediaNot:
		return &css.MediaNot{Condition: SanitizeCondition(c.Condition)}
	case *css.MediaOperation:
		conds := make([]css.MediaCondition, 0, len(c.Conditions))
		for _, child := range c.Conditions {
			if child = SanitizeCondition(child); child != nil {
				conds = append(conds, child)
			}
		}
		return &css.MediaOperation{Op: c.Op, Conditions: conds}
	case *css.MediaRaw:
		return &css.MediaRaw{Value: css.List(SanitizeValues(c.Value))}
	}
	return nil
}

// SanitizeValues returns a deep copy of component values with Absent
// markers removed. Nil input stays nil, empty input stays empty.
func SanitizeValues(vals []css.ComponentValue) []css.ComponentValue {
	if vals == nil {
		return nil
	}
	out := make([]css.ComponentValue, 0, len(vals))
	for _, v := range vals {
		if v = sanitizeValue(v); v != nil {
			out = append(out, v)
		}
	}
	return out
}

func sanitizeDeclarations(decls []css.Declaration) []css.Declaration {
	if decls == nil {
		return nil
	}
	out := make([]css.Declaration, len(decls))
	for i, d := range decls {
		out[i] = css.Declaration{Property: d.Property, Value: SanitizeValues(d.Value)}
	}
	return out
}

// sanitizeValue returns nil for Absent.
func sanitizeValue(v css.ComponentValue) css.ComponentValue {
	switch v := v.(type) {
	case css.Absent:
		return nil
	case css.List:
		return css.List(SanitizeValues(v))
	case *css.Function:
		return &css.Function{Name: v.Name, Args: SanitizeValues(v.Args)}
	case *css.Block:
		return &css.Block{Open: v.Open, Items: SanitizeValues(v.Items)}
	case *css.Var:
		return &css.Var{Name: v.Name, Fallback: sanitizeValue(v.Fallback)}
	}
	// tokens are plain values
	return v
}
