// Package global loads external "global" stylesheets and prepares fragments
// captured from them for reuse in other stylesheets.
package global

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gcss/css"
)

// LoadError is returned by Load for any failure to produce a tree from
// global stylesheet. Error text starts with the bracketed prefix supplied by
// the caller.
type LoadError struct {
	Prefix string
	Path   string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("[%s]: unable to load global stylesheet %q: %v", e.Prefix, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Options controls global stylesheet loading.
type Options struct {
	Log *zap.Logger
	// CustomAtRules are registered with the parser, so their preludes are
	// delivered pre-parsed.
	CustomAtRules css.AtRuleGrammars
}

// Load reads stylesheet at path resolving local @import rules into a single
// tree. Parse errors are fatal, there is no error recovery for global
// stylesheets.
func Load(path, prefix string, opts Options) (*css.Stylesheet, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if len(path) == 0 {
		return nil, &LoadError{Prefix: prefix, Path: path, Err: errors.New("no stylesheet path specified")}
	}

	sheet, err := css.NewParser(log).Bundle(path, css.ParseOptions{CustomAtRules: opts.CustomAtRules})
	if err != nil {
		return nil, &LoadError{Prefix: prefix, Path: path, Err: err}
	}
	for _, w := range sheet.Warnings {
		log.Warn("Global stylesheet", zap.String("path", path), zap.String("warning", w))
	}
	log.Debug("Global stylesheet loaded", zap.String("path", path), zap.Int("rules", len(sheet.Rules)))
	return sheet, nil
}
