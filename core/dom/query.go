package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// textExpr selects every text node at or below the context node.
const textExpr = "descendant-or-self::text()"

// queries memoizes compiled XPath expressions by source text.
type queries struct {
	compiled map[string]*xpath.Expr
}

func newQueries() *queries {
	return &queries{compiled: make(map[string]*xpath.Expr)}
}

func (q *queries) compile(expr string) *xpath.Expr {
	if e, ok := q.compiled[expr]; ok {
		return e
	}
	// Expressions are built from the vocabulary, never from author input.
	e := xpath.MustCompile(expr)
	q.compiled[expr] = e
	return e
}

func (d *Document) selectNodes(scope *html.Node, expr string) []*html.Node {
	if scope == nil {
		scope = d.root
	}
	nav := newNavigator(d.doc, scope)
	iter := d.xp.compile(expr).Select(nav)

	var out []*html.Node
	for iter.MoveNext() {
		if n, ok := iter.Current().(*navigator); ok && n.attr == -1 {
			out = append(out, n.curr)
		}
	}
	return out
}

// TextNodes returns the text nodes in scope in document order.
func (d *Document) TextNodes(scope *html.Node) []*html.Node {
	return d.selectNodes(scope, textExpr)
}

// Elements returns the elements in scope tagged with name, plus any chrome
// elements name aliases, in document order.
func (d *Document) Elements(scope *html.Node, name string) []*html.Node {
	want := Canonical(name)
	alias, hasAlias := d.vocab.Aliases[want]

	var out []*html.Node
	for _, n := range d.selectNodes(scope, d.elementsExpr(alias, hasAlias)) {
		if hasAlias && matchesAlias(d, n, alias) {
			out = append(out, n)
			continue
		}
		if n.Data != d.vocab.HookTag {
			continue
		}
		if v, ok := d.Attr(n, d.vocab.NameAttr); ok && Canonical(v) == want {
			out = append(out, n)
		}
	}
	return out
}

// elementsExpr narrows the candidate set to hook elements with a name plus
// the alias's chrome; exact name comparison happens in Go because XPath 1.0
// cannot fold case outside ASCII.
func (d *Document) elementsExpr(alias Alias, hasAlias bool) string {
	preds := []string{fmt.Sprintf("self::%s[@%s]", d.vocab.HookTag, d.vocab.NameAttr)}
	if hasAlias {
		for _, tag := range alias.Tags {
			preds = append(preds, "self::"+tag)
		}
		for _, class := range alias.Classes {
			preds = append(preds, fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", class))
		}
	}
	return fmt.Sprintf("descendant-or-self::*[%s]", strings.Join(preds, " or "))
}

func matchesAlias(d *Document, n *html.Node, alias Alias) bool {
	for _, tag := range alias.Tags {
		if n.Data == tag {
			return true
		}
	}
	if len(alias.Classes) == 0 {
		return false
	}
	classes, _ := d.Attr(n, "class")
	for _, have := range strings.Fields(classes) {
		for _, want := range alias.Classes {
			if have == want {
				return true
			}
		}
	}
	return false
}

// navigator implements xpath.NodeNavigator over html nodes.
type navigator struct {
	root, curr *html.Node
	attr       int
}

func newNavigator(root, curr *html.Node) *navigator {
	return &navigator{root: root, curr: curr, attr: -1}
}

func (n *navigator) NodeType() xpath.NodeType {
	switch n.curr.Type {
	case html.DocumentNode:
		return xpath.RootNode
	case html.TextNode:
		return xpath.TextNode
	case html.ElementNode:
		if n.attr != -1 {
			return xpath.AttributeNode
		}
		return xpath.ElementNode
	default:
		return xpath.CommentNode
	}
}

func (n *navigator) LocalName() string {
	if n.attr != -1 {
		return n.curr.Attr[n.attr].Key
	}
	return n.curr.Data
}

func (n *navigator) Prefix() string { return "" }

func (n *navigator) Value() string {
	switch n.curr.Type {
	case html.ElementNode:
		if n.attr != -1 {
			return n.curr.Attr[n.attr].Val
		}
		var sb strings.Builder
		collectText(&sb, n.curr)
		return sb.String()
	case html.TextNode, html.CommentNode:
		return n.curr.Data
	}
	return ""
}

func collectText(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		} else {
			collectText(sb, c)
		}
	}
}

func (n *navigator) Copy() xpath.NodeNavigator {
	c := *n
	return &c
}

func (n *navigator) MoveToRoot() {
	n.curr = n.root
	n.attr = -1
}

func (n *navigator) MoveToParent() bool {
	if n.attr != -1 {
		n.attr = -1
		return true
	}
	if n.curr == n.root || n.curr.Parent == nil {
		return false
	}
	n.curr = n.curr.Parent
	return true
}

func (n *navigator) MoveToNextAttribute() bool {
	if n.attr >= len(n.curr.Attr)-1 {
		return false
	}
	n.attr++
	return true
}

func (n *navigator) MoveToChild() bool {
	if n.attr != -1 || n.curr.FirstChild == nil {
		return false
	}
	n.curr = n.curr.FirstChild
	return true
}

func (n *navigator) MoveToFirst() bool {
	if n.attr != -1 || n.curr.PrevSibling == nil {
		return false
	}
	for n.curr.PrevSibling != nil {
		n.curr = n.curr.PrevSibling
	}
	return true
}

func (n *navigator) MoveToNext() bool {
	if n.attr != -1 || n.curr.NextSibling == nil {
		return false
	}
	n.curr = n.curr.NextSibling
	return true
}

func (n *navigator) MoveToPrevious() bool {
	if n.attr != -1 || n.curr.PrevSibling == nil {
		return false
	}
	n.curr = n.curr.PrevSibling
	return true
}

func (n *navigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*navigator)
	if !ok || o.root != n.root {
		return false
	}
	n.curr = o.curr
	n.attr = o.attr
	return true
}

func (n *navigator) String() string { return n.Value() }
