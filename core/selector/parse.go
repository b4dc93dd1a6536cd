package selector

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/Hookline/core/cache"
	"github.com/FocuswithJustin/Hookline/core/errors"
)

// exprGrammar is the participle grammar for selector expressions.
// Examples: `?foo`, `"cat"`, `?foo's 2nd`, `?foo's (2nd, 1st)`,
// `?foo + "cat"`, `(?a + ?b)'s last`.
//
//nolint:govet // participle grammar tags are not standard struct tags
type exprGrammar struct {
	Terms []*termGrammar `@@ ( "+" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type termGrammar struct {
	Atom    *atomGrammar    `@@`
	Indices []*indexGrammar `( "'s" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type atomGrammar struct {
	Hook  *string      `  @HookRef`
	Text  *string      `| @String`
	Group *exprGrammar `| "(" @@ ")"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type indexGrammar struct {
	Single *string  `  @Ordinal`
	List   []string `| "(" @Ordinal ( "," @Ordinal )* ")"`
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "HookRef", Pattern: `\?[\p{L}\p{N}_-]+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Possessive", Pattern: `'s\b`},
	{Name: "Ordinal", Pattern: `[0-9]+(st|nd|rd|th)(last)?|last`},
	{Name: "Punct", Pattern: `[+(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var exprParser = participle.MustBuild[exprGrammar](
	participle.Lexer(exprLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse parses a selector expression.
func Parse(expr string) (Selector, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return nil, errors.NewParse("selector", "", "empty expression")
	}
	parsed, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, errors.NewParse("selector", src, err.Error())
	}
	return parsed.build()
}

func (g *exprGrammar) build() (Selector, error) {
	var out Selector
	for _, term := range g.Terms {
		s, err := term.build()
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = s
		} else {
			out = Join(out, s)
		}
	}
	return out, nil
}

func (g *termGrammar) build() (Selector, error) {
	var s Selector
	switch {
	case g.Atom.Hook != nil:
		s = NewLeaf(*g.Atom.Hook)
	case g.Atom.Text != nil:
		s = NewLeaf(*g.Atom.Text)
	default:
		inner, err := g.Atom.Group.build()
		if err != nil {
			return nil, err
		}
		s = inner
	}

	for _, idx := range g.Indices {
		words := idx.List
		if idx.Single != nil {
			words = []string{*idx.Single}
		}
		ords := make([]int, 0, len(words))
		for _, w := range words {
			n, err := ParseOrdinal(w)
			if err != nil {
				return nil, err
			}
			ords = append(ords, n)
		}
		s = Index(s, ords...)
	}
	return s, nil
}

// ParseOrdinal converts "3rd", "last" or "2ndlast" to a signed ordinal.
func ParseOrdinal(word string) (int, error) {
	if word == "last" {
		return -1, nil
	}
	fromEnd := strings.HasSuffix(word, "last")
	word = strings.TrimSuffix(word, "last")
	if len(word) < 3 {
		return 0, errors.NewParse("ordinal", word, "missing number")
	}
	n, err := strconv.Atoi(word[:len(word)-2])
	if err != nil {
		return 0, errors.NewParse("ordinal", word, err.Error())
	}
	if fromEnd {
		n = -n
	}
	return n, nil
}

// Parser parses selector expressions, memoizing results. Selectors are
// immutable, so cached values are shared freely.
type Parser struct {
	cache cache.Cache[string, Selector]
}

// NewParser returns a parser whose cache is configured by cfg.
func NewParser(cfg cache.Config) *Parser {
	return &Parser{cache: cache.NewLRUCache[string, Selector](cfg)}
}

// Parse parses expr, consulting the cache first.
func (p *Parser) Parse(expr string) (Selector, error) {
	key := strings.TrimSpace(expr)
	if s, ok := p.cache.Get(key); ok {
		return s, nil
	}
	s, err := Parse(key)
	if err != nil {
		return nil, err
	}
	p.cache.Put(key, s)
	return s, nil
}

// Stats returns the parser's cache statistics.
func (p *Parser) Stats() cache.Stats {
	return p.cache.Stats()
}
