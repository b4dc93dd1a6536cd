// Package dom provides the document tree that selectors resolve against and
// changers write into.
//
// The engine packages only see the Tree interface. Document is the concrete
// implementation over golang.org/x/net/html nodes, with element enumeration
// done by XPath queries (antchfx/xpath) and a side-channel data store that
// plays the role of jQuery's .data(): values attached to nodes that are never
// serialized.
package dom

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/FocuswithJustin/Hookline/core/errors"
)

// Tree is the document interface the selection and change engine works
// against. Node handles are *html.Node values; every structural mutation goes
// through the Tree so the implementation can keep its side tables current.
type Tree interface {
	// Root returns the root-of-everything element.
	Root() *html.Node
	// Vocabulary returns the reserved tag and attribute names.
	Vocabulary() Vocabulary

	// Elements returns the elements in scope (inclusive) tagged with the
	// hook name, unioned with the chrome elements the name aliases, in
	// document order.
	Elements(scope *html.Node, name string) []*html.Node
	// TextNodes returns the text nodes in scope in document order.
	TextNodes(scope *html.Node) []*html.Node
	// Text returns the concatenated text content of n.
	Text(n *html.Node) string

	NewElement(tag string) *html.Node
	SplitText(n *html.Node, offset int) *html.Node
	Wrap(nodes []*html.Node, tag string) *html.Node
	Unwrap(el *html.Node)
	JoinText(left, right *html.Node) bool
	Contains(n *html.Node) bool
	IsMarker(n *html.Node) bool

	Append(parent *html.Node, nodes []*html.Node)
	Prepend(parent *html.Node, nodes []*html.Node)
	InsertBefore(ref *html.Node, nodes []*html.Node)
	InsertAfter(ref *html.Node, nodes []*html.Node)
	Empty(el *html.Node)

	Attr(n *html.Node, key string) (string, bool)
	SetAttr(n *html.Node, key, value string)
	RemoveAttr(n *html.Node, key string)

	Style(n *html.Node, prop string) string
	Styles(n *html.Node) []Declaration
	SetStyle(n *html.Node, prop, value string)
	RemoveStyle(n *html.Node, prop string)

	Data(n *html.Node, key string) (any, bool)
	SetData(n *html.Node, key string, value any)
	PopData(n *html.Node, key string) (any, bool)
}

// Alias maps a built-in chrome name to the elements it stands for.
type Alias struct {
	Tags    []string
	Classes []string
}

// Vocabulary holds the reserved element and attribute names of the tree.
type Vocabulary struct {
	RootTag       string
	HookTag       string
	NameAttr      string
	MarkerTag     string
	WrapperTag    string
	TransitionTag string
	ErrorTag      string
	// Aliases is keyed by canonical name.
	Aliases map[string]Alias
}

// DefaultVocabulary returns the standard story vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		RootTag:       "tw-story",
		HookTag:       "tw-hook",
		NameAttr:      "name",
		MarkerTag:     "tw-pseudo-hook",
		WrapperTag:    "tw-enchantment",
		TransitionTag: "tw-transition-container",
		ErrorTag:      "tw-error",
		Aliases: map[string]Alias{
			"page":    {Tags: []string{"tw-story"}},
			"passage": {Tags: []string{"tw-passage"}},
			"sidebar": {Tags: []string{"tw-sidebar"}},
			"link":    {Tags: []string{"tw-link"}, Classes: []string{"enchantment-link"}},
		},
	}
}

// Canonical folds a hook name for comparison: lower case, with '-' and '_'
// removed.
func Canonical(name string) string {
	name = strings.ToLower(name)
	return strings.NewReplacer("-", "", "_", "").Replace(name)
}

// Document is a Tree over golang.org/x/net/html nodes.
type Document struct {
	doc   *html.Node
	root  *html.Node
	vocab Vocabulary
	data  map[*html.Node]map[string]any
	xp    *queries
}

var _ Tree = (*Document)(nil)

// New returns a document holding an empty root element.
func New(vocab Vocabulary) *Document {
	d := &Document{
		doc:   &html.Node{Type: html.DocumentNode},
		vocab: vocab,
		data:  make(map[*html.Node]map[string]any),
		xp:    newQueries(),
	}
	d.root = d.NewElement(vocab.RootTag)
	d.doc.AppendChild(d.root)
	return d
}

// Parse builds a document from an HTML fragment. A fragment that consists of
// a single root element becomes the root; anything else is wrapped in one.
func Parse(src string, vocab Vocabulary) (*Document, error) {
	nodes, err := ParseFragment(src)
	if err != nil {
		return nil, err
	}

	d := New(vocab)
	if single := soleElement(nodes); single != nil && single.Data == vocab.RootTag {
		d.doc.RemoveChild(d.root)
		d.root = single
		d.doc.AppendChild(single)
		return d, nil
	}
	d.Append(d.root, nodes)
	return d, nil
}

// ParseFragment parses src as body content and returns the detached
// top-level nodes.
func ParseFragment(src string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), context)
	if err != nil {
		return nil, &errors.ParseError{Format: "HTML fragment", Message: err.Error(), Err: err}
	}
	return nodes, nil
}

func soleElement(nodes []*html.Node) *html.Node {
	var found *html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			if found != nil {
				return nil
			}
			found = n
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil
			}
		}
	}
	return found
}

// Root returns the root element.
func (d *Document) Root() *html.Node { return d.root }

// Vocabulary returns the reserved names in use.
func (d *Document) Vocabulary() Vocabulary { return d.vocab }

// Render writes the document as HTML. Normally that is just the root
// element; an enchantment wrapping the root is rendered around it.
func (d *Document) Render(w io.Writer) error {
	for c := d.doc.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return err
		}
	}
	return nil
}

// String returns the document as HTML.
func (d *Document) String() string {
	return Inner(d.doc)
}

// Outer renders a single node as HTML.
func Outer(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// Inner renders the children of n as HTML.
func Inner(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// Text returns the concatenated text content of n.
func (d *Document) Text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for _, t := range d.TextNodes(n) {
		sb.WriteString(t.Data)
	}
	return sb.String()
}

// NewElement creates a detached element.
func (d *Document) NewElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// IsMarker reports whether n is a selector marker element.
func (d *Document) IsMarker(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == d.vocab.MarkerTag
}

// Contains reports whether n is connected to this document.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.doc {
			return true
		}
	}
	return false
}

// SplitText splits a text node at a byte offset and returns the new right
// half, inserted as the next sibling.
func (d *Document) SplitText(n *html.Node, offset int) *html.Node {
	right := &html.Node{Type: html.TextNode, Data: n.Data[offset:]}
	n.Data = n.Data[:offset]
	if n.Parent != nil {
		n.Parent.InsertBefore(right, n.NextSibling)
	}
	return right
}

// Wrap moves consecutive siblings into a new element placed where the first
// of them was.
func (d *Document) Wrap(nodes []*html.Node, tag string) *html.Node {
	el := d.NewElement(tag)
	if len(nodes) == 0 {
		return el
	}
	parent := nodes[0].Parent
	if parent != nil {
		parent.InsertBefore(el, nodes[0])
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		el.AppendChild(n)
	}
	return el
}

// Unwrap replaces el with its children.
func (d *Document) Unwrap(el *html.Node) {
	parent := el.Parent
	if parent == nil {
		return
	}
	for c := el.FirstChild; c != nil; c = el.FirstChild {
		el.RemoveChild(c)
		parent.InsertBefore(c, el)
	}
	parent.RemoveChild(el)
	delete(d.data, el)
}

// JoinText appends right's text to left and removes right, undoing a
// SplitText. It does nothing unless both are text nodes and right directly
// follows left.
func (d *Document) JoinText(left, right *html.Node) bool {
	if left == nil || right == nil || left.Type != html.TextNode || right.Type != html.TextNode {
		return false
	}
	if right.Parent == nil || left.NextSibling != right {
		return false
	}
	left.Data += right.Data
	right.Parent.RemoveChild(right)
	return true
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Append adds nodes as the last children of parent.
func (d *Document) Append(parent *html.Node, nodes []*html.Node) {
	for _, n := range nodes {
		detach(n)
		parent.AppendChild(n)
	}
}

// Prepend adds nodes, in order, before the first child of parent.
func (d *Document) Prepend(parent *html.Node, nodes []*html.Node) {
	first := parent.FirstChild
	for _, n := range nodes {
		detach(n)
		parent.InsertBefore(n, first)
	}
}

// InsertBefore adds nodes, in order, as previous siblings of ref.
func (d *Document) InsertBefore(ref *html.Node, nodes []*html.Node) {
	for _, n := range nodes {
		detach(n)
		ref.Parent.InsertBefore(n, ref)
	}
}

// InsertAfter adds nodes, in order, as next siblings of ref.
func (d *Document) InsertAfter(ref *html.Node, nodes []*html.Node) {
	next := ref.NextSibling
	for _, n := range nodes {
		detach(n)
		ref.Parent.InsertBefore(n, next)
	}
}

// Empty removes every child of el.
func (d *Document) Empty(el *html.Node) {
	for c := el.FirstChild; c != nil; c = el.FirstChild {
		el.RemoveChild(c)
	}
}

// Attr returns an attribute value.
func (d *Document) Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (d *Document) SetAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr deletes an attribute if present.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Data returns a side-channel value.
func (d *Document) Data(n *html.Node, key string) (any, bool) {
	v, ok := d.data[n][key]
	return v, ok
}

// SetData stores a side-channel value.
func (d *Document) SetData(n *html.Node, key string, value any) {
	m := d.data[n]
	if m == nil {
		m = make(map[string]any)
		d.data[n] = m
	}
	m[key] = value
}

// PopData returns and removes a side-channel value.
func (d *Document) PopData(n *html.Node, key string) (any, bool) {
	v, ok := d.data[n][key]
	if ok {
		delete(d.data[n], key)
		if len(d.data[n]) == 0 {
			delete(d.data, n)
		}
	}
	return v, ok
}
