package css

import (
	"strings"
	"sync/atomic"

	"github.com/tdewolff/parse/v2/css"
)

// Stylesheet represents a parsed CSS stylesheet.
type Stylesheet struct {
	Source   string   // where the stylesheet came from, used in messages only
	Rules    []Rule   // top-level rules in source order
	Warnings []string // non-fatal problems found while parsing

	// origin identifies the parse (or bundle) which produced the tree, see Absent.
	origin uint64
}

// Origin returns identifier of the parse which produced the stylesheet.
func (s *Stylesheet) Origin() uint64 {
	return s.origin
}

var origins atomic.Uint64

func newOrigin() uint64 {
	return origins.Add(1)
}

// Rule is a node of the stylesheet tree. Implemented by *StyleRule,
// *MediaRule, *CustomMediaRule, *ImportRule, *UnknownAtRule, *CustomAtRule,
// *GroupRule, *DeclarationRule and *NestedDeclarations.
type Rule interface {
	isRule()
}

// StyleRule is a qualified rule: selectors followed by a declaration block.
// Rules holds nested rules (CSS nesting), nil when there are none.
type StyleRule struct {
	Selectors    SelectorList
	Declarations DeclarationBlock
	Rules        []Rule
	Line         int
}

// MediaRule is @media with its query list and nested rules.
type MediaRule struct {
	Query MediaList
	Rules []Rule
	Line  int
}

// CustomMediaRule is "@custom-media --name <media-query-list>;".
type CustomMediaRule struct {
	Name  string // with leading "--"
	Query MediaList
	Line  int
}

// ImportRule is @import which was not (or could not be) inlined.
type ImportRule struct {
	URL      string
	Layer    *string          // nil - no layer, "" - anonymous layer
	Supports []ComponentValue // condition inside supports(), nil when absent
	Media    MediaList
	Line     int
}

// UnknownAtRule keeps at-rule nobody claimed as a token stream. Block is nil
// for statement at-rules.
type UnknownAtRule struct {
	Name    string // without "@"
	Prelude []ComponentValue
	Block   []ComponentValue
	Line    int
}

// CustomAtRule is an at-rule registered with ParseOptions.CustomAtRules, its
// prelude parsed according to the registered grammar.
type CustomAtRule struct {
	Name    string
	Prelude ParsedComponent
	Line    int
}

// GroupRule is a block at-rule containing other rules: @supports, @layer,
// @container, @scope, @starting-style, @document.
type GroupRule struct {
	Name    string
	Prelude []ComponentValue
	Rules   []Rule
	Line    int
}

// DeclarationRule is a block at-rule containing declarations: @font-face,
// @page, @property, @counter-style and the like.
type DeclarationRule struct {
	Name         string
	Prelude      []ComponentValue
	Declarations DeclarationBlock
	Rules        []Rule
	Line         int
}

// NestedDeclarations holds declarations placed directly inside an at-rule
// which itself is nested in a style rule.
type NestedDeclarations struct {
	Declarations DeclarationBlock
}

func (*StyleRule) isRule()          {}
func (*MediaRule) isRule()          {}
func (*CustomMediaRule) isRule()    {}
func (*ImportRule) isRule()         {}
func (*UnknownAtRule) isRule()      {}
func (*CustomAtRule) isRule()       {}
func (*GroupRule) isRule()          {}
func (*DeclarationRule) isRule()    {}
func (*NestedDeclarations) isRule() {}

// Selectors

type SelectorKind int

const (
	SelectorType          SelectorKind = iota // p
	SelectorUniversal                         // *
	SelectorClass                             // .name
	SelectorID                                // #name
	SelectorAttribute                         // [name=value], Name holds bracket contents
	SelectorPseudoClass                       // :hover, :not(...)
	SelectorPseudoElement                     // ::before
	SelectorNesting                           // &
	SelectorCombinator                        // " ", ">", "+", "~"
)

// SelectorComponent is a single simple selector or combinator.
type SelectorComponent struct {
	Kind SelectorKind
	Name string
	Args []ComponentValue // arguments of functional pseudo-classes, nil otherwise
}

type Selector []SelectorComponent

type SelectorList []Selector

// Classes returns class names used by the compound selectors of the list in
// order of appearance. Classes inside functional pseudo-classes are not
// included.
func (l SelectorList) Classes() []string {
	var names []string
	for _, sel := range l {
		for _, c := range sel {
			if c.Kind == SelectorClass {
				names = append(names, c.Name)
			}
		}
	}
	return names
}

// Declarations

type Declaration struct {
	Property string
	Value    []ComponentValue
}

// DeclarationBlock keeps normal and !important declarations apart, each in
// source order.
type DeclarationBlock struct {
	Declarations          []Declaration
	ImportantDeclarations []Declaration
}

func (b DeclarationBlock) Len() int {
	return len(b.Declarations) + len(b.ImportantDeclarations)
}

// Lookup returns the last declaration for property and whether it was marked
// !important. Important declarations take precedence.
func (b DeclarationBlock) Lookup(property string) (Declaration, bool, bool) {
	for i := len(b.ImportantDeclarations) - 1; i >= 0; i-- {
		if strings.EqualFold(b.ImportantDeclarations[i].Property, property) {
			return b.ImportantDeclarations[i], true, true
		}
	}
	for i := len(b.Declarations) - 1; i >= 0; i-- {
		if strings.EqualFold(b.Declarations[i].Property, property) {
			return b.Declarations[i], false, true
		}
	}
	return Declaration{}, false, false
}

// Component values. Trees of component values are treated as immutable once
// built: rewrites produce new nodes and share the untouched ones.

type ComponentValue interface {
	isComponentValue()
}

// Token is a preserved lexer token.
type Token struct {
	Type css.TokenType
	Data string
}

// List is a sequence of component values occupying a single slot.
type List []ComponentValue

// Function is "name(args)" other than var().
type Function struct {
	Name string // without "("
	Args []ComponentValue
}

// Block is a (), [] or {} block.
type Block struct {
	Open  css.TokenType // LeftParenthesisToken, LeftBracketToken or LeftBraceToken
	Items []ComponentValue
}

// Var is "var(--name[, fallback])". Fallback is a List when a comma was
// present (possibly empty), Absent or nil otherwise.
type Var struct {
	Name     string
	Fallback ComponentValue
}

// Absent fills an optional slot the parser found empty. It is bound to the
// parse which produced it and must not travel into a tree produced by
// another parse: fragments moving between trees should have such slots
// cleared (nil) instead.
type Absent struct {
	origin uint64
}

// Origin returns identifier of the parse which produced the marker.
func (a Absent) Origin() uint64 {
	return a.origin
}

func (Token) isComponentValue()     {}
func (List) isComponentValue()      {}
func (*Function) isComponentValue() {}
func (*Block) isComponentValue()    {}
func (*Var) isComponentValue()      {}
func (Absent) isComponentValue()    {}

// Media queries

type MediaList []MediaQuery

// MediaQuery is a single query of a media query list.
type MediaQuery struct {
	Qualifier string         // "not", "only" or empty
	MediaType string         // empty when query has only condition
	Condition MediaCondition // nil when absent
}

// MediaCondition is implemented by *MediaFeature, *MediaNot,
// *MediaOperation and *MediaRaw.
type MediaCondition interface {
	isMediaCondition()
}

// MediaFeature is a single parenthesized feature test: "(name)",
// "(name: value)" or "(name <op> value)". Name may be a custom media
// reference ("--name"). Value is Absent for boolean features.
type MediaFeature struct {
	Name  string
	Op    string // "", ":", "<", "<=", ">", ">=", "="
	Value ComponentValue
}

type MediaNot struct {
	Condition MediaCondition
}

// MediaOperation joins conditions with a single operator, "and" or "or".
type MediaOperation struct {
	Op         string
	Conditions []MediaCondition
}

// MediaRaw is any parenthesized condition this package does not interpret,
// kept as written.
type MediaRaw struct {
	Value List
}

func (*MediaFeature) isMediaCondition()   {}
func (*MediaNot) isMediaCondition()       {}
func (*MediaOperation) isMediaCondition() {}
func (*MediaRaw) isMediaCondition()       {}

// Custom at-rule preludes

// ParsedComponent is a prelude parsed by AtRuleGrammar: *CustomIdent or
// *Repeated.
type ParsedComponent interface {
	isParsedComponent()
}

type CustomIdent struct {
	Value string
}

// Repeated is a multiplied component, Comma is set for "#" multipliers.
type Repeated struct {
	Components []ParsedComponent
	Comma      bool
}

func (*CustomIdent) isParsedComponent() {}
func (*Repeated) isParsedComponent()    {}
