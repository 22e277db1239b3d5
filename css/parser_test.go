package css_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/tdewolff/parse/v2"
	tdcss "github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"gcss/css"
)

func mustParse(t *testing.T, src string, opts css.ParseOptions) *css.Stylesheet {
	t.Helper()
	sheet, err := css.NewParser(zap.NewNop()).Parse([]byte(src), opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return sheet
}

func minified(sheet *css.Stylesheet) string {
	return sheet.Print(css.PrintOptions{Minify: true})
}

func styleRule(t *testing.T, r css.Rule) *css.StyleRule {
	t.Helper()
	sr, ok := r.(*css.StyleRule)
	if !ok {
		t.Fatalf("expected *css.StyleRule, got %T", r)
	}
	return sr
}

func TestParser_ClassSelector(t *testing.T) {
	sheet := mustParse(t, ".foo { color: red; }", css.ParseOptions{})

	if len(sheet.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(sheet.Rules))
	}
	rule := styleRule(t, sheet.Rules[0])
	if got := rule.Selectors.Classes(); len(got) != 1 || got[0] != "foo" {
		t.Errorf("Classes() = %v, want [foo]", got)
	}
	d, important, ok := rule.Declarations.Lookup("color")
	if !ok || important {
		t.Fatalf("Lookup(color) = %v, important %v, found %v", d, important, ok)
	}
	if len(d.Value) != 1 || d.Value[0] != (css.Token{Type: tdcss.IdentToken, Data: "red"}) {
		t.Errorf("unexpected value %#v", d.Value)
	}
	if rule.Line != 1 {
		t.Errorf("Line = %d, want 1", rule.Line)
	}
}

func TestParser_CompoundAndGroupedSelectors(t *testing.T) {
	sheet := mustParse(t, "p.a.b > span, .c:hover::before, #main [data-x=\"1\"] { margin: 0 }", css.ParseOptions{})

	rule := styleRule(t, sheet.Rules[0])
	if len(rule.Selectors) != 3 {
		t.Fatalf("expected 3 selectors, got %d", len(rule.Selectors))
	}
	got := rule.Selectors.Classes()
	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Classes() = %v, want %v", got, want)
	}

	first := rule.Selectors[0]
	kinds := []css.SelectorKind{css.SelectorType, css.SelectorClass, css.SelectorClass, css.SelectorCombinator, css.SelectorType}
	if len(first) != len(kinds) {
		t.Fatalf("first selector has %d components, want %d", len(first), len(kinds))
	}
	for i, k := range kinds {
		if first[i].Kind != k {
			t.Errorf("component %d kind = %v, want %v", i, first[i].Kind, k)
		}
	}
	if first[3].Name != ">" {
		t.Errorf("combinator = %q, want '>'", first[3].Name)
	}

	if got := minified(sheet); got != `p.a.b>span,.c:hover::before,#main [data-x="1"]{margin:0}` {
		t.Errorf("unexpected output %q", got)
	}
}

func TestParser_Important(t *testing.T) {
	sheet := mustParse(t, ".a { color: red ! important; margin: 0 }", css.ParseOptions{})

	rule := styleRule(t, sheet.Rules[0])
	if len(rule.Declarations.ImportantDeclarations) != 1 || len(rule.Declarations.Declarations) != 1 {
		t.Fatalf("unexpected block %+v", rule.Declarations)
	}
	if _, important, _ := rule.Declarations.Lookup("color"); !important {
		t.Error("color should be important")
	}
	if got := minified(sheet); got != ".a{margin:0;color:red!important}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestParser_Nesting(t *testing.T) {
	src := `.foo {
  color: red;
  .bar { color: blue }
  &:hover { color: green; }
  @media (max-width: 10px) { color: black; }
}`
	sheet := mustParse(t, src, css.ParseOptions{})

	rule := styleRule(t, sheet.Rules[0])
	if len(rule.Rules) != 3 {
		t.Fatalf("expected 3 nested rules, got %d", len(rule.Rules))
	}
	media, ok := rule.Rules[2].(*css.MediaRule)
	if !ok {
		t.Fatalf("expected *css.MediaRule, got %T", rule.Rules[2])
	}
	if _, ok := media.Rules[0].(*css.NestedDeclarations); !ok {
		t.Errorf("expected nested declarations, got %T", media.Rules[0])
	}

	want := ".foo{color:red;.bar{color:blue}&:hover{color:green}@media (max-width:10px){color:black}}"
	if got := minified(sheet); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestParser_UnknownAtRule(t *testing.T) {
	sheet := mustParse(t, ".foo { @composes bar baz; color: blue; }", css.ParseOptions{})

	rule := styleRule(t, sheet.Rules[0])
	if len(rule.Rules) != 1 {
		t.Fatalf("expected 1 nested rule, got %d", len(rule.Rules))
	}
	at, ok := rule.Rules[0].(*css.UnknownAtRule)
	if !ok {
		t.Fatalf("expected *css.UnknownAtRule, got %T", rule.Rules[0])
	}
	if at.Name != "composes" || at.Block != nil {
		t.Errorf("unexpected at-rule %+v", at)
	}
	var idents []string
	for _, v := range at.Prelude {
		if tok, ok := v.(css.Token); ok && tok.Type == tdcss.IdentToken {
			idents = append(idents, tok.Data)
		}
	}
	if strings.Join(idents, " ") != "bar baz" {
		t.Errorf("prelude idents = %v", idents)
	}

	if len(sheet.Warnings) != 1 || !strings.Contains(sheet.Warnings[0], "unknown at rule: @composes") {
		t.Errorf("unexpected warnings %v", sheet.Warnings)
	}
	if got := minified(sheet); got != ".foo{color:blue;@composes bar baz}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestParser_CustomAtRule(t *testing.T) {
	opts := css.ParseOptions{CustomAtRules: css.AtRuleGrammars{
		"composes": {Prelude: "<custom-ident>+"},
		"single":   {Prelude: "<custom-ident>"},
		"list":     {Prelude: "<custom-ident>#"},
	}}
	sheet := mustParse(t, ".foo { @composes bar baz; @single one; @list a, b; }", opts)

	if len(sheet.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", sheet.Warnings)
	}
	rule := styleRule(t, sheet.Rules[0])
	if len(rule.Rules) != 3 {
		t.Fatalf("expected 3 nested rules, got %d", len(rule.Rules))
	}

	composes, ok := rule.Rules[0].(*css.CustomAtRule)
	if !ok {
		t.Fatalf("expected *css.CustomAtRule, got %T", rule.Rules[0])
	}
	rep, ok := composes.Prelude.(*css.Repeated)
	if !ok || len(rep.Components) != 2 || rep.Comma {
		t.Fatalf("unexpected prelude %#v", composes.Prelude)
	}
	if id, ok := rep.Components[1].(*css.CustomIdent); !ok || id.Value != "baz" {
		t.Errorf("unexpected second component %#v", rep.Components[1])
	}

	single := rule.Rules[1].(*css.CustomAtRule)
	if id, ok := single.Prelude.(*css.CustomIdent); !ok || id.Value != "one" {
		t.Errorf("unexpected single prelude %#v", single.Prelude)
	}

	if got := minified(sheet); got != ".foo{@composes bar baz;@single one;@list a,b}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestParser_CustomAtRuleInvalidPrelude(t *testing.T) {
	opts := css.ParseOptions{CustomAtRules: css.AtRuleGrammars{"composes": {Prelude: "<custom-ident>+"}}}
	sheet := mustParse(t, ".foo { @composes 12px; }", opts)

	rule := styleRule(t, sheet.Rules[0])
	if _, ok := rule.Rules[0].(*css.UnknownAtRule); !ok {
		t.Errorf("expected fallback to *css.UnknownAtRule, got %T", rule.Rules[0])
	}
	if len(sheet.Warnings) != 1 || !strings.Contains(sheet.Warnings[0], "invalid prelude for @composes") {
		t.Errorf("unexpected warnings %v", sheet.Warnings)
	}
}

func TestParser_UnsupportedGrammar(t *testing.T) {
	opts := css.ParseOptions{CustomAtRules: css.AtRuleGrammars{"size": {Prelude: "<length>+"}}}
	if _, err := css.NewParser(nil).Parse([]byte(".a{}"), opts); err == nil {
		t.Error("expected error for unsupported grammar")
	}
}

func TestParser_MediaQueries(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
		test func(t *testing.T, q css.MediaQuery)
	}{
		{
			name: "type and feature",
			src:  "@media screen and (max-width: 100em) { .a { color: red } }",
			want: "@media screen and (max-width:100em){.a{color:red}}",
			test: func(t *testing.T, q css.MediaQuery) {
				f, ok := q.Condition.(*css.MediaFeature)
				if q.MediaType != "screen" || !ok || f.Name != "max-width" || f.Op != ":" {
					t.Errorf("unexpected query %+v", q)
				}
			},
		},
		{
			name: "negated custom media",
			src:  "@media not (--bp) { .a { color: red } }",
			want: "@media not (--bp){.a{color:red}}",
			test: func(t *testing.T, q css.MediaQuery) {
				n, ok := q.Condition.(*css.MediaNot)
				if !ok {
					t.Fatalf("expected *css.MediaNot, got %T", q.Condition)
				}
				f, ok := n.Condition.(*css.MediaFeature)
				if !ok || f.Name != "--bp" {
					t.Fatalf("unexpected feature %#v", n.Condition)
				}
				if _, ok := f.Value.(css.Absent); !ok {
					t.Errorf("boolean feature value should be absent, got %#v", f.Value)
				}
			},
		},
		{
			name: "range",
			src:  "@media (width <= 600px) { .a { color: red } }",
			want: "@media (width<=600px){.a{color:red}}",
			test: func(t *testing.T, q css.MediaQuery) {
				if f, ok := q.Condition.(*css.MediaFeature); !ok || f.Op != "<=" {
					t.Errorf("unexpected condition %#v", q.Condition)
				}
			},
		},
		{
			name: "conjunction",
			src:  "@media (min-width: 1px) and (--bp) { .a { color: red } }",
			want: "@media (min-width:1px) and (--bp){.a{color:red}}",
			test: func(t *testing.T, q css.MediaQuery) {
				op, ok := q.Condition.(*css.MediaOperation)
				if !ok || op.Op != "and" || len(op.Conditions) != 2 {
					t.Errorf("unexpected condition %#v", q.Condition)
				}
			},
		},
		{
			name: "nested operations",
			src:  "@media ((a) or (b)) and (not (c)) { .a { color: red } }",
			want: "@media ((a) or (b)) and (not (c)){.a{color:red}}",
			test: func(t *testing.T, q css.MediaQuery) {
				op, ok := q.Condition.(*css.MediaOperation)
				if !ok || len(op.Conditions) != 2 {
					t.Fatalf("unexpected condition %#v", q.Condition)
				}
				if _, ok := op.Conditions[1].(*css.MediaNot); !ok {
					t.Errorf("expected negation, got %T", op.Conditions[1])
				}
			},
		},
		{
			name: "print",
			src:  "@media print { .a { color: red } }",
			want: "@media print{.a{color:red}}",
			test: func(t *testing.T, q css.MediaQuery) {
				if q.MediaType != "print" || q.Condition != nil {
					t.Errorf("unexpected query %+v", q)
				}
			},
		},
		{
			name: "raw",
			src:  "@media (100px < width < 200px) { .a { color: red } }",
			want: "@media (100px < width < 200px){.a{color:red}}",
			test: func(t *testing.T, q css.MediaQuery) {
				if _, ok := q.Condition.(*css.MediaRaw); !ok {
					t.Errorf("expected *css.MediaRaw, got %T", q.Condition)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := mustParse(t, tt.src, css.ParseOptions{})
			media, ok := sheet.Rules[0].(*css.MediaRule)
			if !ok {
				t.Fatalf("expected *css.MediaRule, got %T", sheet.Rules[0])
			}
			if len(media.Query) != 1 {
				t.Fatalf("expected 1 query, got %d", len(media.Query))
			}
			tt.test(t, media.Query[0])
			if got := minified(sheet); got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestParser_CustomMedia(t *testing.T) {
	sheet := mustParse(t, "@custom-media --breakpoint (max-width: 100em);", css.ParseOptions{})

	cm, ok := sheet.Rules[0].(*css.CustomMediaRule)
	if !ok {
		t.Fatalf("expected *css.CustomMediaRule, got %T", sheet.Rules[0])
	}
	if cm.Name != "--breakpoint" || len(cm.Query) != 1 {
		t.Errorf("unexpected rule %+v", cm)
	}
	if got := minified(sheet); got != "@custom-media --breakpoint (max-width:100em);" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestParser_Var(t *testing.T) {
	sheet := mustParse(t, ".a { color: var(--x); margin: var(--y, 1px 2px); padding: var(--z,) }", css.ParseOptions{})

	rule := styleRule(t, sheet.Rules[0])
	decls := rule.Declarations.Declarations
	if len(decls) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(decls))
	}

	v, ok := decls[0].Value[0].(*css.Var)
	if !ok || v.Name != "--x" {
		t.Fatalf("unexpected value %#v", decls[0].Value[0])
	}
	absent, ok := v.Fallback.(css.Absent)
	if !ok {
		t.Fatalf("expected absent fallback, got %#v", v.Fallback)
	}
	if absent.Origin() != sheet.Origin() {
		t.Errorf("absent origin %d differs from sheet origin %d", absent.Origin(), sheet.Origin())
	}

	v = decls[1].Value[0].(*css.Var)
	if fb, ok := v.Fallback.(css.List); !ok || len(fb) != 3 {
		t.Errorf("unexpected fallback %#v", v.Fallback)
	}
	v = decls[2].Value[0].(*css.Var)
	if fb, ok := v.Fallback.(css.List); !ok || len(fb) != 0 {
		t.Errorf("unexpected empty fallback %#v", v.Fallback)
	}

	if got := minified(sheet); got != ".a{color:var(--x);margin:var(--y,1px 2px);padding:var(--z,)}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestParser_Import(t *testing.T) {
	sheet := mustParse(t, `@import url("base.css") layer(theme) supports(display: grid) screen;`, css.ParseOptions{})

	imp, ok := sheet.Rules[0].(*css.ImportRule)
	if !ok {
		t.Fatalf("expected *css.ImportRule, got %T", sheet.Rules[0])
	}
	if imp.URL != "base.css" {
		t.Errorf("URL = %q", imp.URL)
	}
	if imp.Layer == nil || *imp.Layer != "theme" {
		t.Errorf("Layer = %v", imp.Layer)
	}
	if imp.Supports == nil || len(imp.Media) != 1 || imp.Media[0].MediaType != "screen" {
		t.Errorf("unexpected import %+v", imp)
	}
	want := "@import url(\"base.css\") layer(theme) supports(display: grid) screen;\n"
	if got := sheet.String(); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestParser_OtherAtRules(t *testing.T) {
	src := `@charset "utf-8";
@font-face { font-family: X; src: url(x.woff2) format("woff2"); }
@supports (display: grid) { .a { display: grid } }
@layer base, theme;
@keyframes spin { from { opacity: 0 } to { opacity: 1 } }`
	sheet := mustParse(t, src, css.ParseOptions{})

	if len(sheet.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", sheet.Warnings)
	}
	if len(sheet.Rules) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(sheet.Rules))
	}
	if _, ok := sheet.Rules[0].(*css.DeclarationRule); !ok {
		t.Errorf("expected *css.DeclarationRule, got %T", sheet.Rules[0])
	}
	if g, ok := sheet.Rules[1].(*css.GroupRule); !ok || g.Name != "supports" || len(g.Rules) != 1 {
		t.Errorf("unexpected group rule %#v", sheet.Rules[1])
	}
	if u, ok := sheet.Rules[2].(*css.UnknownAtRule); !ok || u.Name != "layer" || u.Block != nil {
		t.Errorf("unexpected layer statement %#v", sheet.Rules[2])
	}

	want := `@font-face{font-family:X;src:url(x.woff2) format("woff2")}` +
		`@supports (display: grid){.a{display:grid}}` +
		`@layer base,theme;` +
		`@keyframes spin{from {opacity: 0} to {opacity: 1}}`
	if got := minified(sheet); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unclosed block", ".a { color: red", 1},
		{"missing colon", ".a {\n  color red;\n}", 2},
		{"stray brace", ".a { color: red } }", 1},
		{"bad selector", ".a, { color: red }", 1},
		{"unbalanced function", ".a { width: calc(1px + 2px; }", 1},
		{"missing value", ".a { color: ; }", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := css.NewParser(zap.NewNop()).Parse([]byte(tt.src), css.ParseOptions{Source: "test.css"})
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *parse.Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *parse.Error, got %T: %v", err, err)
			}
			if pe.Line != tt.line {
				t.Errorf("error line = %d, want %d (%v)", pe.Line, tt.line, pe.Message)
			}
			if !strings.HasPrefix(err.Error(), "test.css: ") {
				t.Errorf("error should mention source: %v", err)
			}
		})
	}
}

func TestParser_ErrorRecovery(t *testing.T) {
	src := ".a { color; margin: 0 }\n.b, { color: red }\n.c { color: blue }"
	sheet := mustParse(t, src, css.ParseOptions{ErrorRecovery: true})

	if got := minified(sheet); got != ".a{margin:0}.c{color:blue}" {
		t.Errorf("unexpected output %q", got)
	}
	if len(sheet.Warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", sheet.Warnings)
	}
}

func TestParser_Comments(t *testing.T) {
	sheet := mustParse(t, "/* header */ .a { /* inside */ color: /* value */ red; }", css.ParseOptions{})
	if got := minified(sheet); got != ".a{color:red}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestStylesheet_String_Pretty(t *testing.T) {
	src := ".foo { color: red; margin: 0 !important; .bar { color: blue } }\n@media (max-width: 100em) { .foo { color: red } }"
	sheet := mustParse(t, src, css.ParseOptions{})

	want := `.foo {
  color: red;
  margin: 0 !important;
  .bar {
    color: blue;
  }
}

@media (max-width: 100em) {
  .foo {
    color: red;
  }
}
`
	if got := sheet.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestStylesheet_WriteTo(t *testing.T) {
	sheet := mustParse(t, ".a { color: red }", css.ParseOptions{})

	var sb strings.Builder
	n, err := sheet.WriteTo(&sb)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if int(n) != sb.Len() {
		t.Errorf("WriteTo() returned %d, wrote %d", n, sb.Len())
	}
}

func TestStylesheet_RoundTrip(t *testing.T) {
	src := `.a:not(.b, .c) > p + span ~ em { font: 12px/1.5 "Open Sans", serif; background: url(x.png) no-repeat }
@media screen and (min-width: 1px), print { .d { transform: translate(1px, 2px) } }`
	first := mustParse(t, src, css.ParseOptions{})
	printed := first.String()
	second := mustParse(t, printed, css.ParseOptions{})
	if second.String() != printed {
		t.Errorf("round trip changed output:\n%s\n---\n%s", printed, second.String())
	}
	if got := minified(first); got != minified(second) {
		t.Errorf("minified output differs: %q vs %q", got, minified(second))
	}
}
