package css

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Bundle reads and parses stylesheet at path replacing local @import rules
// with the rules of imported files. Import conditions (media, supports,
// layer) wrap the imported rules. Every file is included at most once,
// remote imports stay as @import rules. All files of the bundle share a
// single origin.
func (p *Parser) Bundle(path string, opts ParseOptions) (*Stylesheet, error) {
	b := &bundler{
		parser: p,
		opts:   opts,
		origin: newOrigin(),
		seen:   make(map[string]bool),
	}
	rules, err := b.load(path)
	if err != nil {
		return nil, err
	}

	p.log.Debug("Stylesheet bundled", zap.String("source", path), zap.Int("files", len(b.seen)), zap.Int("rules", len(rules)))

	return &Stylesheet{
		Source:   path,
		Rules:    rules,
		Warnings: b.warnings,
		origin:   b.origin,
	}, nil
}

type bundler struct {
	parser   *Parser
	opts     ParseOptions
	origin   uint64
	seen     map[string]bool
	warnings []string
}

func (b *bundler) load(path string) ([]Rule, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if b.seen[abs] {
		return nil, nil
	}
	b.seen[abs] = true

	data, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read stylesheet: %w", err)
	}

	opts := b.opts
	opts.Source = path
	sheet, err := b.parser.parse(data, opts, b.origin)
	if err != nil {
		return nil, err
	}
	for _, w := range sheet.Warnings {
		b.warnings = append(b.warnings, path+": "+w)
	}

	rules := make([]Rule, 0, len(sheet.Rules))
	for _, r := range sheet.Rules {
		imp, ok := r.(*ImportRule)
		if !ok || isRemote(imp.URL) {
			rules = append(rules, r)
			continue
		}
		target := filepath.Join(filepath.Dir(path), filepath.FromSlash(imp.URL))
		imported, err := b.load(target)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve @import %q in %s: %w", imp.URL, path, err)
		}
		rules = append(rules, wrapImported(imp, imported)...)
	}
	return rules, nil
}

func isRemote(url string) bool {
	return strings.Contains(url, "://") || strings.HasPrefix(url, "//") || strings.HasPrefix(url, "data:")
}

func wrapImported(imp *ImportRule, rules []Rule) []Rule {
	if len(rules) == 0 {
		return nil
	}
	if len(imp.Media) > 0 {
		rules = []Rule{&MediaRule{Query: imp.Media, Rules: rules, Line: imp.Line}}
	}
	if imp.Supports != nil {
		prelude := []ComponentValue{&Block{Open: css.LeftParenthesisToken, Items: imp.Supports}}
		rules = []Rule{&GroupRule{Name: "supports", Prelude: prelude, Rules: rules, Line: imp.Line}}
	}
	if imp.Layer != nil {
		var prelude []ComponentValue
		if len(*imp.Layer) > 0 {
			prelude = []ComponentValue{Token{Type: css.IdentToken, Data: *imp.Layer}}
		}
		rules = []Rule{&GroupRule{Name: "layer", Prelude: prelude, Rules: rules, Line: imp.Line}}
	}
	return rules
}
