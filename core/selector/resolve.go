package selector

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/FocuswithJustin/Hookline/core/dom"
	"github.com/FocuswithJustin/Hookline/internal/logging"
)

// Resolution is the result of resolving a selector. Literal matches are
// marker elements spliced into the tree; Close removes them again and must
// run before anything else looks at the tree.
type Resolution struct {
	// Nodes are the matched elements in resolution order.
	Nodes []*html.Node

	tree    dom.Tree
	markers []*html.Node
	splits  []split
	closed  bool
}

// split is one SplitText made to isolate a match.
type split struct {
	left, right *html.Node
}

// Resolve matches s against the tree below scope (the root when scope is
// nil). The caller owns the returned Resolution and must Close it.
// An empty result is not an error.
func Resolve(s Selector, t dom.Tree, scope *html.Node) *Resolution {
	if scope == nil {
		scope = t.Root()
	}
	r := &Resolution{tree: t}
	r.Nodes = s.resolve(r, scope)
	logging.SelectorResolved(s.String(), len(r.Nodes), len(r.markers))
	return r
}

// Each resolves s, calls fn for every match in order, then closes the
// resolution. Markers are gone by the time Each returns.
func Each(s Selector, t dom.Tree, scope *html.Node, fn func(i int, n *html.Node)) {
	r := Resolve(s, t, scope)
	defer r.Close()
	for i, n := range r.Nodes {
		fn(i, n)
	}
}

// Count returns the number of regions s matches.
func Count(s Selector, t dom.Tree, scope *html.Node) int {
	r := Resolve(s, t, scope)
	defer r.Close()
	return len(r.Nodes)
}

// Markers reports how many marker elements the resolution created.
func (r *Resolution) Markers() int {
	return len(r.markers)
}

// Close unwraps every marker, newest first, then re-joins the text nodes
// that were split to make them, newest split first. Text nodes the
// resolution did not split are left alone. A split whose halves are no
// longer adjacent (the right half was moved) stays split. Close is
// idempotent.
func (r *Resolution) Close() {
	if r.closed {
		return
	}
	r.closed = true
	for i := len(r.markers) - 1; i >= 0; i-- {
		if m := r.markers[i]; m.Parent != nil {
			r.tree.Unwrap(m)
		}
	}
	for i := len(r.splits) - 1; i >= 0; i-- {
		r.tree.JoinText(r.splits[i].left, r.splits[i].right)
	}
	r.markers = nil
	r.splits = nil
}

func (l *Leaf) resolve(r *Resolution, scope *html.Node) []*html.Node {
	if l.IsName() {
		return r.tree.Elements(scope, l.Name())
	}
	return r.findLiteral(scope, l.Query)
}

func (x *Indexed) resolve(r *Resolution, scope *html.Node) []*html.Node {
	base := x.Base.resolve(r, scope)
	var out []*html.Node
	for _, ord := range x.Ordinals {
		switch {
		case ord > 0 && ord <= len(base):
			out = append(out, base[ord-1])
		case ord < 0 && -ord <= len(base):
			out = append(out, base[len(base)+ord])
		}
	}
	return out
}

func (c *Concat) resolve(r *Resolution, scope *html.Node) []*html.Node {
	left := c.Left.resolve(r, scope)
	right := c.Right.resolve(r, scope)
	out := make([]*html.Node, 0, len(left)+len(right))
	out = append(out, left...)
	return append(out, right...)
}

// findLiteral wraps every non-overlapping occurrence of q in the scope's
// text in a marker. Occurrences are found one at a time from left to right;
// the text is re-read after each one because wrapping splits nodes.
func (r *Resolution) findLiteral(scope *html.Node, q string) []*html.Node {
	if q == "" {
		return nil
	}
	tag := r.tree.Vocabulary().MarkerTag

	var out []*html.Node
	pos := 0
	for {
		texts := r.tree.TextNodes(scope)
		starts := make([]int, len(texts))
		var sb strings.Builder
		for i, n := range texts {
			starts[i] = sb.Len()
			sb.WriteString(n.Data)
		}
		full := sb.String()
		if pos >= len(full) {
			break
		}
		idx := strings.Index(full[pos:], q)
		if idx < 0 {
			break
		}
		start := pos + idx
		end := start + len(q)

		run := r.isolate(texts, starts, start, end)
		for _, group := range siblingGroups(run) {
			m := r.tree.Wrap(group, tag)
			r.markers = append(r.markers, m)
			out = append(out, m)
		}
		pos = end
	}
	return out
}

// isolate splits the text nodes overlapping [start, end) so that the range
// is covered exactly by whole nodes, and returns those nodes.
func (r *Resolution) isolate(texts []*html.Node, starts []int, start, end int) []*html.Node {
	var run []*html.Node
	for i, n := range texts {
		a := starts[i]
		b := a + len(n.Data)
		if b <= start || a >= end || a == b {
			continue
		}
		if start > a {
			right := r.tree.SplitText(n, start-a)
			r.splits = append(r.splits, split{n, right})
			n, a = right, start
		}
		if end < b {
			right := r.tree.SplitText(n, end-a)
			r.splits = append(r.splits, split{n, right})
		}
		run = append(run, n)
	}
	return run
}

// siblingGroups partitions a run of text nodes into groups of adjacent
// siblings. A match that crosses an element boundary yields several groups.
func siblingGroups(run []*html.Node) [][]*html.Node {
	var groups [][]*html.Node
	for _, n := range run {
		if k := len(groups); k > 0 {
			last := groups[k-1][len(groups[k-1])-1]
			if last.NextSibling == n {
				groups[k-1] = append(groups[k-1], n)
				continue
			}
		}
		groups = append(groups, []*html.Node{n})
	}
	return groups
}
