package global_test

import (
	"testing"

	"gcss/css"
	"gcss/global"
)

func parseSheet(t *testing.T, src string) *css.Stylesheet {
	t.Helper()
	sheet, err := css.NewParser(nil).Parse([]byte(src), css.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return sheet
}

func hasAbsent(vals []css.ComponentValue) bool {
	for _, v := range vals {
		switch v := v.(type) {
		case css.Absent:
			return true
		case css.List:
			if hasAbsent(v) {
				return true
			}
		case *css.Function:
			if hasAbsent(v.Args) {
				return true
			}
		case *css.Block:
			if hasAbsent(v.Items) {
				return true
			}
		case *css.Var:
			if v.Fallback != nil && hasAbsent([]css.ComponentValue{v.Fallback}) {
				return true
			}
		}
	}
	return false
}

func TestSanitizeBlock(t *testing.T) {
	sheet := parseSheet(t, ".g { color: var(--x); margin: var(--y, 1px); width: calc(var(--w) * 2); padding: var(--p,); top: 0 !important }")
	original := sheet.Rules[0].(*css.StyleRule).Declarations

	clean := global.SanitizeBlock(original)

	if len(clean.Declarations) != 4 || len(clean.ImportantDeclarations) != 1 {
		t.Fatalf("unexpected block shape %+v", clean)
	}
	for _, d := range clean.Declarations {
		if hasAbsent(d.Value) {
			t.Errorf("declaration %s still carries absent marker", d.Property)
		}
	}

	v := clean.Declarations[0].Value[0].(*css.Var)
	if v.Fallback != nil {
		t.Errorf("missing fallback should be nil, got %#v", v.Fallback)
	}
	v = clean.Declarations[1].Value[0].(*css.Var)
	if fb, ok := v.Fallback.(css.List); !ok || len(fb) != 1 {
		t.Errorf("fallback should be kept, got %#v", v.Fallback)
	}
	v = clean.Declarations[3].Value[0].(*css.Var)
	if fb, ok := v.Fallback.(css.List); !ok || fb == nil || len(fb) != 0 {
		t.Errorf("empty fallback should stay empty, got %#v", v.Fallback)
	}

	// input is untouched
	if _, ok := original.Declarations[0].Value[0].(*css.Var).Fallback.(css.Absent); !ok {
		t.Error("SanitizeBlock modified its input")
	}
	if clean.Declarations[0].Value[0] == original.Declarations[0].Value[0] {
		t.Error("SanitizeBlock should copy nodes")
	}
}

func TestSanitizeBlock_Reinjection(t *testing.T) {
	g := parseSheet(t, ".g { color: var(--x); border: var(--b, 1px solid) }")
	clean := global.SanitizeBlock(g.Rules[0].(*css.StyleRule).Declarations)

	host := parseSheet(t, ".h { margin: 0 }")
	err := css.Transform(host, css.Visitor{
		StyleRule: func(r *css.StyleRule) (*css.StyleRule, bool) {
			decls := append(append([]css.Declaration{}, clean.Declarations...), r.Declarations.Declarations...)
			return &css.StyleRule{Selectors: r.Selectors, Declarations: css.DeclarationBlock{Declarations: decls}, Line: r.Line}, true
		},
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := host.Print(css.PrintOptions{Minify: true}); got != ".h{color:var(--x);border:var(--b,1px solid);margin:0}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestSanitizeCondition(t *testing.T) {
	sheet := parseSheet(t, "@media not (--a), (--b) and (min-width: 1px), (color) or (100px < width < 200px) { .a { color: red } }")
	queries := sheet.Rules[0].(*css.MediaRule).Query

	tests := []struct {
		name  string
		query int
		check func(t *testing.T, c css.MediaCondition)
	}{
		{"negation", 0, func(t *testing.T, c css.MediaCondition) {
			f := c.(*css.MediaNot).Condition.(*css.MediaFeature)
			if f.Name != "--a" || f.Value != nil {
				t.Errorf("unexpected feature %#v", f)
			}
		}},
		{"conjunction", 1, func(t *testing.T, c css.MediaCondition) {
			op := c.(*css.MediaOperation)
			if op.Op != "and" || len(op.Conditions) != 2 {
				t.Fatalf("unexpected operation %#v", op)
			}
			if f := op.Conditions[0].(*css.MediaFeature); f.Value != nil {
				t.Errorf("boolean feature value should be nil, got %#v", f.Value)
			}
			if f := op.Conditions[1].(*css.MediaFeature); f.Value == nil {
				t.Error("feature value should be kept")
			}
		}},
		{"raw", 2, func(t *testing.T, c css.MediaCondition) {
			op := c.(*css.MediaOperation)
			if _, ok := op.Conditions[1].(*css.MediaRaw); !ok {
				t.Errorf("expected raw condition, got %T", op.Conditions[1])
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := queries[tt.query].Condition
			clean := global.SanitizeCondition(original)
			if clean == original {
				t.Error("SanitizeCondition should copy nodes")
			}
			tt.check(t, clean)
		})
	}

	f := queries[0].Condition.(*css.MediaNot).Condition.(*css.MediaFeature)
	if _, ok := f.Value.(css.Absent); !ok {
		t.Error("SanitizeCondition modified its input")
	}
	if global.SanitizeCondition(nil) != nil {
		t.Error("nil condition should stay nil")
	}
}

func TestSanitizeValues(t *testing.T) {
	if global.SanitizeValues(nil) != nil {
		t.Error("nil should stay nil")
	}
	if got := global.SanitizeValues([]css.ComponentValue{}); got == nil || len(got) != 0 {
		t.Errorf("empty should stay empty, got %#v", got)
	}

	sheet := parseSheet(t, ".a { color: var(--x) }")
	vals := []css.ComponentValue{
		sheet.Rules[0].(*css.StyleRule).Declarations.Declarations[0].Value[0].(*css.Var).Fallback,
		css.Token{Data: "x"},
	}
	got := global.SanitizeValues(vals)
	if len(got) != 1 || got[0] != (css.Token{Data: "x"}) {
		t.Errorf("absent element should be dropped, got %#v", got)
	}
}
