// Package selector implements region selectors: declarative, lazily resolved
// queries that pick hooks out of a document tree.
//
// A Selector is an immutable tree of three shapes. A Leaf is either a name
// reference ("?name") that matches hook elements and chrome aliases, or a
// literal string matched against the document's text. An Indexed narrows its
// base to ordinal positions. A Concat is the union of two selectors.
// Selectors hold no element references, so one value can be resolved against
// any scope, any number of times.
package selector

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/net/html"

	"github.com/FocuswithJustin/Hookline/core/dom"
)

// nameRef is the grammar that makes a query a name reference rather than a
// literal search string.
var nameRef = regexp.MustCompile(`^\?[\p{L}\p{N}_-]+$`)

// Selector is a region selector.
type Selector interface {
	// String returns the selector in expression syntax, preserving the
	// order in which it resolves.
	String() string

	canonical() string
	resolve(r *Resolution, scope *html.Node) []*html.Node
}

// Leaf matches a hook name or a literal string.
type Leaf struct {
	Query string
}

// Indexed narrows Base to ordinal positions. Ordinals count from 1; negative
// ordinals count from the end, so -1 is the last match. Output follows the
// order of Ordinals, not document order.
type Indexed struct {
	Base     Selector
	Ordinals []int
}

// Concat is the union of Left and Right, Left resolved first.
type Concat struct {
	Left, Right Selector
}

// NewLeaf returns a leaf selector for query.
func NewLeaf(query string) *Leaf {
	return &Leaf{Query: query}
}

// Index returns base narrowed to the given ordinals.
func Index(base Selector, ordinals ...int) *Indexed {
	ords := make([]int, len(ordinals))
	copy(ords, ordinals)
	return &Indexed{Base: base, Ordinals: ords}
}

// Join combines two selectors. It never modifies its operands.
func Join(left, right Selector) *Concat {
	return &Concat{Left: left, Right: right}
}

// IsName reports whether the leaf is a name reference.
func (l *Leaf) IsName() bool {
	return nameRef.MatchString(l.Query)
}

// Name returns the referenced hook name without its sigil, or "" for a
// literal leaf.
func (l *Leaf) Name() string {
	if !l.IsName() {
		return ""
	}
	return l.Query[1:]
}

func (l *Leaf) String() string {
	if l.IsName() {
		return l.Query
	}
	return strconv.Quote(l.Query)
}

func (l *Leaf) canonical() string {
	if l.IsName() {
		return "?" + dom.Canonical(l.Name())
	}
	return strconv.Quote(l.Query)
}

func (x *Indexed) String() string {
	return possessive(x.Base, x.Base.String()) + formatOrdinals(x.Ordinals)
}

func (x *Indexed) canonical() string {
	return possessive(x.Base, x.Base.canonical()) + formatOrdinals(x.Ordinals)
}

func possessive(base Selector, s string) string {
	if _, ok := base.(*Concat); ok {
		s = "(" + s + ")"
	}
	return s + "'s "
}

func formatOrdinals(ords []int) string {
	if len(ords) == 1 {
		return Ordinal(ords[0])
	}
	parts := make([]string, len(ords))
	for i, o := range ords {
		parts[i] = Ordinal(o)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (c *Concat) String() string {
	right := c.Right.String()
	if _, ok := c.Right.(*Concat); ok {
		right = "(" + right + ")"
	}
	return c.Left.String() + " + " + right
}

// canonical sorts the two halves so that a + b and b + a compare equal.
// Ordinal lists inside either half keep their order.
func (c *Concat) canonical() string {
	l, r := wrapConcat(c.Left), wrapConcat(c.Right)
	if r < l {
		l, r = r, l
	}
	return l + " + " + r
}

func wrapConcat(s Selector) string {
	if _, ok := s.(*Concat); ok {
		return "(" + s.canonical() + ")"
	}
	return s.canonical()
}

// Equal reports whether two selectors are structurally equal after name
// canonicalization.
func Equal(a, b Selector) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.canonical() == b.canonical()
}

// Hash returns a stable hex digest of the selector's canonical form. Equal
// selectors hash alike.
func Hash(s Selector) string {
	sum := blake3.Sum256([]byte(s.canonical()))
	return hex.EncodeToString(sum[:])
}

// Ordinal formats an ordinal position the way expressions write it:
// 1st, 2nd, 3rd, 11th, last, 2ndlast.
func Ordinal(n int) string {
	switch {
	case n == -1:
		return "last"
	case n < -1:
		return Ordinal(-n) + "last"
	}
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
