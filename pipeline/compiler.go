// Package pipeline compiles stylesheets with configured plugins and drives
// transformation of files and directory trees.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"gcss/composes"
	"gcss/config"
	"gcss/css"
	"gcss/custommedia"
	"gcss/urlcomposer"
)

// Compiler parses stylesheets, applies plugin visitors and prints results.
// It is built once, all plugin indexes are frozen by then, so a single
// compiler serves any number of goroutines.
type Compiler struct {
	log     *zap.Logger
	parser  *css.Parser
	parse   css.ParseOptions
	print   css.PrintOptions
	visitor css.Visitor

	composes *composes.Plugin
	media    *custommedia.Plugin
}

// NewCompiler loads global stylesheets of enabled plugins. Plugin with empty
// source is disabled.
func NewCompiler(cfg *config.TransformConfig, log *zap.Logger) (*Compiler, error) {
	if log == nil {
		log = zap.NewNop()
	}

	c := &Compiler{
		log:    log,
		parser: css.NewParser(log),
		parse:  css.ParseOptions{ErrorRecovery: cfg.ErrorRecovery},
		print:  css.PrintOptions{Minify: cfg.Minify},
	}

	var (
		visitors []css.Visitor
		err      error
	)
	if len(cfg.Composes.Source) > 0 {
		if c.composes, err = composes.New(composes.Options{Source: cfg.Composes.Source, Log: log}); err != nil {
			return nil, err
		}
		if cfg.Composes.RegisterAtRule {
			c.parse.CustomAtRules = composes.CustomAtRules
		}
		visitors = append(visitors, c.composes.Visitor())
	}
	if len(cfg.CustomMedia.Source) > 0 {
		if c.media, err = custommedia.New(custommedia.Options{Source: cfg.CustomMedia.Source, Log: log}); err != nil {
			return nil, err
		}
		visitors = append(visitors, c.media.Visitor())
	}
	if len(cfg.URLs) > 0 {
		visitors = append(visitors, urlcomposer.New(cfg.URLs))
	}
	c.visitor = css.ComposeVisitors(visitors...)

	log.Debug("Compiler ready",
		zap.Bool("composes", c.composes != nil),
		zap.Bool("custom-media", c.media != nil),
		zap.Int("urls", len(cfg.URLs)))
	return c, nil
}

// Composes returns compose plugin, nil when disabled.
func (c *Compiler) Composes() *composes.Plugin {
	return c.composes
}

// CustomMedia returns custom media plugin, nil when disabled.
func (c *Compiler) CustomMedia() *custommedia.Plugin {
	return c.media
}

// Compile parses stylesheet text, runs plugins over it and prints the
// result. Source names stylesheet in errors and logs.
func (c *Compiler) Compile(data []byte, source string) ([]byte, error) {
	opts := c.parse
	opts.Source = source

	sheet, err := c.parser.Parse(data, opts)
	if err != nil {
		return nil, err
	}
	for _, w := range sheet.Warnings {
		c.log.Warn("Stylesheet", zap.String("source", source), zap.String("warning", w))
	}
	if err := css.Transform(sheet, c.visitor); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return []byte(sheet.Print(c.print)), nil
}

// CompileFile reads stylesheet honoring its byte order mark or @charset
// and compiles it.
func (c *Compiler) CompileFile(path string) ([]byte, error) {
	data, err := css.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.Compile(data, path)
}
