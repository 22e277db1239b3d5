package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses CSS stylesheets into rule trees.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log}
}

// ParseOptions controls a single parse.
type ParseOptions struct {
	// Source identifies what is being parsed, used in errors and debug logging.
	Source string
	// CustomAtRules maps at-rule names (without "@") to their prelude grammar.
	CustomAtRules AtRuleGrammars
	// ErrorRecovery turns invalid declarations and rules into warnings,
	// dropping them from the tree.
	ErrorRecovery bool
}

// Parse parses CSS text into a Stylesheet. Syntax errors are returned as
// *parse.Error carrying line and column of the offending token.
func (p *Parser) Parse(data []byte, opts ParseOptions) (*Stylesheet, error) {
	return p.parse(data, opts, newOrigin())
}

func (p *Parser) parse(data []byte, opts ParseOptions, origin uint64) (*Stylesheet, error) {
	grammars, err := compileGrammars(opts.CustomAtRules)
	if err != nil {
		return nil, err
	}

	toks, err := tokenize(data)
	if err != nil {
		return nil, wrapSource(opts.Source, err)
	}

	s := &state{
		src:      data,
		toks:     toks,
		lines:    lineStarts(data),
		opts:     opts,
		grammars: grammars,
		origin:   origin,
		log:      p.log,
	}
	rules, err := s.ruleList(true)
	if err != nil {
		return nil, wrapSource(opts.Source, err)
	}

	p.log.Debug("Stylesheet parsed",
		zap.String("source", opts.Source),
		zap.Int("rules", len(rules)),
		zap.Int("warnings", len(s.warnings)))

	return &Stylesheet{
		Source:   opts.Source,
		Rules:    rules,
		Warnings: s.warnings,
		origin:   origin,
	}, nil
}

func wrapSource(source string, err error) error {
	if len(source) == 0 {
		return err
	}
	return fmt.Errorf("%s: %w", source, err)
}

type token struct {
	tt     css.TokenType
	data   string
	offset int
}

// tokenize runs the lexer over the whole input. Comments are dropped,
// whitespace is kept since it is significant in selectors.
func tokenize(data []byte) ([]token, error) {
	l := css.NewLexer(parse.NewInput(bytes.NewReader(data)))
	toks := make([]token, 0, len(data)/4)
	offset := 0
	for {
		tt, b := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, err
			}
			return toks, nil
		}
		if tt != css.CommentToken {
			toks = append(toks, token{tt: tt, data: string(b), offset: offset})
		}
		offset += len(b)
	}
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

type state struct {
	src      []byte
	toks     []token
	pos      int
	lines    []int
	opts     ParseOptions
	grammars map[string]grammar
	origin   uint64
	warnings []string
	log      *zap.Logger
}

func (s *state) peek() token {
	if s.pos < len(s.toks) {
		return s.toks[s.pos]
	}
	return token{tt: css.ErrorToken, offset: len(s.src)}
}

func (s *state) next() token {
	t := s.peek()
	if s.pos < len(s.toks) {
		s.pos++
	}
	return t
}

func (s *state) skipWhitespace() {
	for s.pos < len(s.toks) && s.toks[s.pos].tt == css.WhitespaceToken {
		s.pos++
	}
}

func (s *state) line(t token) int {
	return sort.SearchInts(s.lines, t.offset+1)
}

func (s *state) errorf(t token, format string, args ...any) error {
	return parse.NewError(bytes.NewReader(s.src), t.offset, format, args...)
}

func (s *state) warnf(t token, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.warnings = append(s.warnings, fmt.Sprintf("%s (line %d)", msg, s.line(t)))
	s.log.Debug("Stylesheet warning", zap.String("source", s.opts.Source), zap.Int("line", s.line(t)), zap.String("warning", msg))
}

// recover returns err unchanged unless error recovery is requested. Otherwise
// it records err as a warning, rewinds to start and drops the broken
// construct with skip.
func (s *state) recover(err error, start int, skip func()) error {
	if !s.opts.ErrorRecovery {
		return err
	}
	var pe *parse.Error
	if errors.As(err, &pe) {
		s.warnings = append(s.warnings, fmt.Sprintf("%s (line %d)", pe.Message, pe.Line))
	} else {
		s.warnings = append(s.warnings, err.Error())
	}
	s.log.Debug("Dropping invalid CSS", zap.String("source", s.opts.Source), zap.Error(err))
	s.pos = start
	skip()
	return nil
}

func describe(t token) string {
	if t.tt == css.ErrorToken {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.data)
}

// collect consumes tokens up to the first stop token found outside of any
// brackets. A closing brace outside of brackets always stops.
func (s *state) collect(stops ...css.TokenType) []token {
	start, depth := s.pos, 0
	for ; s.pos < len(s.toks); s.pos++ {
		tt := s.toks[s.pos].tt
		if depth == 0 && (tt == css.RightBraceToken || slices.Contains(stops, tt)) {
			break
		}
		switch tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken, css.LeftBraceToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken, css.RightBraceToken:
			if depth > 0 {
				depth--
			}
		}
	}
	return s.toks[start:s.pos]
}

// skipRule drops the rest of a statement or a block rule. A closing brace
// belonging to the enclosing block is left in place.
func (s *state) skipRule() {
	depth := 0
	for {
		t := s.next()
		switch t.tt {
		case css.ErrorToken:
			return
		case css.SemicolonToken:
			if depth == 0 {
				return
			}
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			if depth == 0 {
				s.pos--
				return
			}
			if depth--; depth == 0 {
				return
			}
		}
	}
}

func (s *state) skipDeclaration() {
	s.collect(css.SemicolonToken)
	if s.peek().tt == css.SemicolonToken {
		s.next()
	}
}

// ruleList parses rules until the end of input (top level) or the closing
// brace of the enclosing block, which is consumed.
func (s *state) ruleList(top bool) ([]Rule, error) {
	var rules []Rule
	for {
		s.skipWhitespace()
		t := s.peek()
		switch t.tt {
		case css.ErrorToken:
			if !top {
				return nil, s.errorf(t, "unexpected end of input, expected '}'")
			}
			return rules, nil
		case css.RightBraceToken:
			s.next()
			if !top {
				return rules, nil
			}
			if err := s.recover(s.errorf(t, "unexpected '}'"), s.pos, func() {}); err != nil {
				return nil, err
			}
			continue
		case css.CDOToken, css.CDCToken, css.SemicolonToken:
			s.next()
			continue
		}

		var (
			start = s.pos
			r     Rule
			err   error
		)
		if t.tt == css.AtKeywordToken {
			r, err = s.atRule(top, false)
		} else {
			r, err = s.styleRule()
		}
		if err != nil {
			if err = s.recover(err, start, s.skipRule); err != nil {
				return nil, err
			}
			continue
		}
		if r != nil {
			rules = append(rules, r)
		}
	}
}

func (s *state) styleRule() (*StyleRule, error) {
	first := s.peek()
	prelude := trimWhitespace(s.collect(css.LeftBraceToken, css.SemicolonToken))
	if t := s.peek(); t.tt != css.LeftBraceToken {
		return nil, s.errorf(t, "unexpected %s, expected '{'", describe(t))
	}
	if len(prelude) == 0 {
		return nil, s.errorf(first, "missing selector")
	}
	sels, err := s.selectorList(prelude)
	if err != nil {
		return nil, err
	}
	s.next()

	block, rules, err := s.styleBlock()
	if err != nil {
		return nil, err
	}
	return &StyleRule{Selectors: sels, Declarations: block, Rules: rules, Line: s.line(first)}, nil
}

// styleBlock parses contents of a style rule block (after '{') up to and
// including the closing brace: declarations and nested rules.
func (s *state) styleBlock() (DeclarationBlock, []Rule, error) {
	var (
		block DeclarationBlock
		rules []Rule
	)
	for {
		s.skipWhitespace()
		t := s.peek()
		switch t.tt {
		case css.ErrorToken:
			return block, nil, s.errorf(t, "unexpected end of input, expected '}'")
		case css.RightBraceToken:
			s.next()
			return block, rules, nil
		case css.SemicolonToken:
			s.next()
			continue
		}

		start := s.pos
		switch {
		case t.tt == css.AtKeywordToken:
			r, err := s.atRule(false, true)
			if err != nil {
				if err = s.recover(err, start, s.skipRule); err != nil {
					return block, nil, err
				}
				continue
			}
			if r != nil {
				rules = append(rules, r)
			}
		case s.nestedRuleAhead():
			r, err := s.styleRule()
			if err != nil {
				if err = s.recover(err, start, s.skipRule); err != nil {
					return block, nil, err
				}
				continue
			}
			rules = append(rules, r)
		default:
			d, important, err := s.declaration()
			if err != nil {
				if err = s.recover(err, start, s.skipDeclaration); err != nil {
					return block, nil, err
				}
				continue
			}
			if important {
				block.ImportantDeclarations = append(block.ImportantDeclarations, d)
			} else {
				block.Declarations = append(block.Declarations, d)
			}
		}
	}
}

// nestedRuleAhead reports whether the next construct in a style block is a
// nested style rule rather than a declaration.
func (s *state) nestedRuleAhead() bool {
	if s.peek().tt == css.CustomPropertyNameToken {
		return false
	}
	depth := 0
	for _, t := range s.toks[s.pos:] {
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.LeftBraceToken:
			if depth == 0 {
				return true
			}
		case css.SemicolonToken, css.RightBraceToken:
			if depth == 0 {
				return false
			}
		}
	}
	return false
}

func (s *state) declaration() (Declaration, bool, error) {
	t := s.next()
	if t.tt != css.IdentToken && t.tt != css.CustomPropertyNameToken {
		return Declaration{}, false, s.errorf(t, "unexpected %s in declaration", describe(t))
	}
	custom := t.tt == css.CustomPropertyNameToken
	name := t.data
	if !custom {
		name = strings.ToLower(name)
	}

	s.skipWhitespace()
	if c := s.peek(); c.tt != css.ColonToken {
		return Declaration{}, false, s.errorf(c, "unexpected %s, expected ':' after %s", describe(c), name)
	}
	s.next()

	raw := s.collect(css.SemicolonToken)
	if s.peek().tt == css.SemicolonToken {
		s.next()
	}
	raw, important := splitImportant(raw)

	value, err := s.values(raw)
	if err != nil {
		return Declaration{}, false, err
	}
	if len(value) == 0 && !custom {
		return Declaration{}, false, s.errorf(t, "missing value for %s", name)
	}
	return Declaration{Property: name, Value: value}, important, nil
}

// splitImportant removes trailing "!important" from declaration value.
func splitImportant(toks []token) ([]token, bool) {
	toks = trimWhitespace(toks)
	n := len(toks)
	if n == 0 || toks[n-1].tt != css.IdentToken || !strings.EqualFold(toks[n-1].data, "important") {
		return toks, false
	}
	rest := trimWhitespace(toks[:n-1])
	if m := len(rest); m > 0 && rest[m-1].tt == css.DelimToken && rest[m-1].data == "!" {
		return rest[:m-1], true
	}
	return toks, false
}

func trimWhitespace(toks []token) []token {
	for len(toks) > 0 && toks[0].tt == css.WhitespaceToken {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].tt == css.WhitespaceToken {
		toks = toks[:len(toks)-1]
	}
	return toks
}

func isWhitespace(v ComponentValue) bool {
	t, ok := v.(Token)
	return ok && t.Type == css.WhitespaceToken
}

func trimValues(vals []ComponentValue) []ComponentValue {
	for len(vals) > 0 && isWhitespace(vals[0]) {
		vals = vals[1:]
	}
	for len(vals) > 0 && isWhitespace(vals[len(vals)-1]) {
		vals = vals[:len(vals)-1]
	}
	return vals
}

// closer returns index of the token closing the bracket opened at toks[i],
// or -1 when brackets do not match.
func closer(toks []token, i int) int {
	var want []css.TokenType
	for j := i; j < len(toks); j++ {
		switch toks[j].tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			want = append(want, css.RightParenthesisToken)
		case css.LeftBracketToken:
			want = append(want, css.RightBracketToken)
		case css.LeftBraceToken:
			want = append(want, css.RightBraceToken)
		case css.RightParenthesisToken, css.RightBracketToken, css.RightBraceToken:
			if len(want) == 0 || want[len(want)-1] != toks[j].tt {
				return -1
			}
			if want = want[:len(want)-1]; len(want) == 0 {
				return j
			}
		}
	}
	return -1
}

// values turns a token run into component values: functions and blocks
// become subtrees, whitespace runs become a single space.
func (s *state) values(toks []token) ([]ComponentValue, error) {
	toks = trimWhitespace(toks)
	var out []ComponentValue
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.tt {
		case css.WhitespaceToken:
			if len(out) > 0 && isWhitespace(out[len(out)-1]) {
				continue
			}
			out = append(out, Token{Type: css.WhitespaceToken, Data: " "})
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken, css.LeftBraceToken:
			end := closer(toks, i)
			if end < 0 {
				return nil, s.errorf(t, "unbalanced brackets after %s", describe(t))
			}
			inner, err := s.values(toks[i+1 : end])
			if err != nil {
				return nil, err
			}
			if t.tt == css.FunctionToken {
				out = append(out, s.function(t.data[:len(t.data)-1], inner))
			} else {
				out = append(out, &Block{Open: t.tt, Items: inner})
			}
			i = end
		case css.RightParenthesisToken, css.RightBracketToken, css.RightBraceToken:
			return nil, s.errorf(t, "unexpected %s", describe(t))
		case css.BadStringToken, css.BadURLToken:
			return nil, s.errorf(t, "malformed %s", describe(t))
		default:
			out = append(out, Token{Type: t.tt, Data: t.data})
		}
	}
	return out, nil
}

// raw is values for places where anything goes: on error the tokens are
// kept flat.
func (s *state) raw(toks []token) []ComponentValue {
	if vals, err := s.values(toks); err == nil {
		return vals
	}
	toks = trimWhitespace(toks)
	out := make([]ComponentValue, 0, len(toks))
	for _, t := range toks {
		out = append(out, Token{Type: t.tt, Data: t.data})
	}
	return out
}

func (s *state) function(name string, args []ComponentValue) ComponentValue {
	if !strings.EqualFold(name, "var") || len(args) == 0 {
		return &Function{Name: name, Args: args}
	}
	ref, ok := args[0].(Token)
	if !ok || ref.Type != css.CustomPropertyNameToken {
		return &Function{Name: name, Args: args}
	}
	v := &Var{Name: ref.Data, Fallback: Absent{origin: s.origin}}
	rest := trimValues(args[1:])
	if len(rest) == 0 {
		return v
	}
	if c, ok := rest[0].(Token); !ok || c.Type != css.CommaToken {
		return &Function{Name: name, Args: args}
	}
	fallback := List(trimValues(rest[1:]))
	if fallback == nil {
		fallback = List{}
	}
	v.Fallback = fallback
	return v
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
