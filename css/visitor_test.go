package css_test

import (
	"errors"
	"strings"
	"testing"

	"gcss/css"
)

func TestTransform_ForeignDeclarations(t *testing.T) {
	global := mustParse(t, ".g { color: var(--x) }", css.ParseOptions{})
	host := mustParse(t, ".h { color: red }", css.ParseOptions{})

	injected := styleRule(t, global.Rules[0]).Declarations
	err := css.Transform(host, css.Visitor{
		StyleRule: func(r *css.StyleRule) (*css.StyleRule, bool) {
			return &css.StyleRule{Selectors: r.Selectors, Declarations: injected, Line: r.Line}, true
		},
	})
	if !errors.Is(err, css.ErrForeignFragment) {
		t.Fatalf("expected ErrForeignFragment, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error should mention line: %v", err)
	}
}

func TestTransform_OwnDeclarations(t *testing.T) {
	host := mustParse(t, ".h { color: var(--x) }\n.i { margin: 0 }", css.ParseOptions{})

	own := styleRule(t, host.Rules[0]).Declarations
	err := css.Transform(host, css.Visitor{
		StyleRule: func(r *css.StyleRule) (*css.StyleRule, bool) {
			if r.Selectors.Classes()[0] != "i" {
				return r, false
			}
			decls := append(append([]css.Declaration{}, own.Declarations...), r.Declarations.Declarations...)
			return &css.StyleRule{Selectors: r.Selectors, Declarations: css.DeclarationBlock{Declarations: decls}, Line: r.Line}, true
		},
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := minified(host); got != ".h{color:var(--x)}.i{color:var(--x);margin:0}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestTransform_ForeignMediaQuery(t *testing.T) {
	global := mustParse(t, "@media (color) { .g { color: red } }", css.ParseOptions{})
	host := mustParse(t, "@media print { .a { color: red } }", css.ParseOptions{})

	foreign := global.Rules[0].(*css.MediaRule).Query[0]
	err := css.Transform(host, css.Visitor{
		MediaQuery: func(css.MediaQuery) css.MediaQuery { return foreign },
	})
	if !errors.Is(err, css.ErrForeignFragment) {
		t.Fatalf("expected ErrForeignFragment, got %v", err)
	}
}

func TestTransform_NilReplacement(t *testing.T) {
	host := mustParse(t, ".a { color: red }", css.ParseOptions{})
	err := css.Transform(host, css.Visitor{
		StyleRule: func(*css.StyleRule) (*css.StyleRule, bool) { return nil, true },
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestTransform_VisitsNestedRules(t *testing.T) {
	src := `.a { .b { color: red } }
@media print { .c { color: red } }
@supports (display: grid) { .d { color: red } }
@layer x { .e { color: red } }`
	host := mustParse(t, src, css.ParseOptions{})

	var seen []string
	err := css.Transform(host, css.Visitor{
		StyleRule: func(r *css.StyleRule) (*css.StyleRule, bool) {
			seen = append(seen, r.Selectors.Classes()...)
			return r, false
		},
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := strings.Join(seen, ","); got != "a,b,c,d,e" {
		t.Errorf("visited %s", got)
	}
}

func TestComposeVisitors(t *testing.T) {
	host := mustParse(t, ".a { background: url(a.png) }\n@media print { .b { color: red } }", css.ParseOptions{})

	var queries int
	v := css.ComposeVisitors(
		css.Visitor{URL: func(u string) string { return "img/" + u }},
		css.Visitor{
			URL: strings.ToUpper,
			MediaQuery: func(q css.MediaQuery) css.MediaQuery {
				queries++
				q.MediaType = "screen"
				return q
			},
		},
	)
	if err := css.Transform(host, v); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if queries != 1 {
		t.Errorf("media query callback called %d times", queries)
	}
	if got := minified(host); got != ".a{background:url(IMG/A.PNG)}@media screen{.b{color:red}}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestComposeVisitors_StyleRuleChain(t *testing.T) {
	host := mustParse(t, ".a { color: red }", css.ParseOptions{})

	addMargin := func(r *css.StyleRule) (*css.StyleRule, bool) {
		decls := append(append([]css.Declaration{}, r.Declarations.Declarations...), r.Declarations.Declarations[0])
		decls[len(decls)-1].Property = "border-color"
		return &css.StyleRule{Selectors: r.Selectors, Declarations: css.DeclarationBlock{Declarations: decls}, Line: r.Line}, true
	}
	keep := func(r *css.StyleRule) (*css.StyleRule, bool) { return r, false }

	v := css.ComposeVisitors(css.Visitor{StyleRule: addMargin}, css.Visitor{StyleRule: keep})
	if err := css.Transform(host, v); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := minified(host); got != ".a{color:red;border-color:red}" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestStylesheet_RewriteURLs(t *testing.T) {
	src := `@import "assets/base.css";
body { background: url(assets/logo.svg) }
.b { background: url("assets/a b.png"), url('assets/c.png') }
@font-face { src: url(assets/f.woff) }
.c { background: var(--bg, url(assets/bg.png)) }
.d { background: url(other/x.png) }`
	sheet := mustParse(t, src, css.ParseOptions{})
	d := styleRule(t, sheet.Rules[5])
	untouched := d.Declarations.Declarations[0].Value

	sheet.RewriteURLs(func(u string) string {
		return strings.ReplaceAll(u, "assets/", "https://cdn/")
	})

	want := `@import "https://cdn/base.css";` +
		`body{background:url(https://cdn/logo.svg)}` +
		`.b{background:url("https://cdn/a b.png"),url("https://cdn/c.png")}` +
		`@font-face{src:url(https://cdn/f.woff)}` +
		`.c{background:var(--bg,url(https://cdn/bg.png))}` +
		`.d{background:url(other/x.png)}`
	if got := minified(sheet); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
	if &untouched[0] != &d.Declarations.Declarations[0].Value[0] {
		t.Error("unchanged value should not be copied")
	}
}

func TestStylesheet_RewriteURLs_CopyOnWrite(t *testing.T) {
	sheet := mustParse(t, ".a { background: url(a.png) }", css.ParseOptions{})
	before := styleRule(t, sheet.Rules[0]).Declarations.Declarations[0].Value

	sheet.RewriteURLs(func(string) string { return "b.png" })

	if tok := before[0].(css.Token); tok.Data != "url(a.png)" {
		t.Errorf("original value modified: %q", tok.Data)
	}
	if got := minified(sheet); got != ".a{background:url(b.png)}" {
		t.Errorf("unexpected output %q", got)
	}
}
