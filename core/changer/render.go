package changer

import (
	"context"
	"strconv"

	"golang.org/x/net/html"

	"github.com/FocuswithJustin/Hookline/core/errors"
	"github.com/FocuswithJustin/Hookline/core/selector"
	"github.com/FocuswithJustin/Hookline/internal/logging"
)

// Transition attributes set on entering content.
const (
	TransitionAttr         = "data-t8n"
	TransitionDurationAttr = "data-t8n-duration"
)

// fault logs an internal fault against the current invocation, then
// escalates it.
func (d *Descriptor) fault(op, format string, args ...any) error {
	err := errors.NewFault(op, format, args...)
	logging.Fault(d.logContext(), op, err)
	return errors.Escalate(err)
}

// logContext carries the invocation id when the invocation context has one.
func (d *Descriptor) logContext() context.Context {
	ctx := context.Background()
	if inv, ok := d.env.Context.(interface{ InvocationID() string }); ok {
		ctx = logging.WithInvocationID(ctx, inv.InvocationID())
	}
	return ctx
}

// Render applies the descriptor. A target that resolves to several regions
// is rendered once per region, in resolution order, each through its own
// derived descriptor; the returned nodes are the concatenation. Render
// returns nil when rendering is suppressed.
func (d *Descriptor) Render() ([]*html.Node, error) {
	if d.env.Tree == nil {
		return nil, d.fault("changer.render", "descriptor has no tree")
	}
	target := d.Target()
	source := d.Source()

	if !d.Enabled() || d.suppressed(target) {
		d.stash(target, source)
		return nil, nil
	}

	if nt := d.NewTargets(); len(nt) > 0 {
		target = PlacementsTarget(nt)
	}

	switch t := target.(type) {
	case nil:
		if source != "" {
			return nil, d.fault("changer.render", "source %q has no target", source)
		}
		return nil, nil
	case ElementTarget:
		if t.Node == nil {
			return nil, d.fault("changer.render", "element target is nil")
		}
		return d.renderElement(t.Node)
	case CollectionTarget:
		if len(t) == 1 {
			return d.renderElement(t[0])
		}
		return d.fanOut(t, d.Append())
	case SelectorTarget:
		r := selector.Resolve(t.Selector, d.env.Tree, nil)
		defer r.Close()
		return d.fanOut(r.Nodes, d.Append())
	case PlacementsTarget:
		var out []*html.Node
		for _, p := range t {
			mode := p.Mode
			child := d.Derive(Overrides{Target: p.Target, Append: &mode, NewTargets: []Placement{}}, nil)
			nodes, err := child.Render()
			if err != nil {
				return out, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	default:
		return nil, d.fault("changer.render", "unknown target type %T", target)
	}
}

// fanOut renders into each element through a derived descriptor.
func (d *Descriptor) fanOut(elems []*html.Node, mode InsertMode) ([]*html.Node, error) {
	var out []*html.Node
	for _, el := range elems {
		m := mode
		child := d.Derive(Overrides{Target: ElementTarget{Node: el}, Append: &m, NewTargets: []Placement{}}, nil)
		nodes, err := child.Render()
		if err != nil {
			return out, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

func (d *Descriptor) renderElement(el *html.Node) ([]*html.Node, error) {
	tree := d.env.Tree
	mode := d.Append()
	switch mode {
	case Append, Prepend, Replace:
	case Before, After:
		if el.Parent == nil {
			return nil, d.fault("changer.render", "cannot insert %s a detached element", mode)
		}
	default:
		return nil, d.fault("changer.render", "unknown insert mode %q", mode)
	}

	var nodes []*html.Node
	if d.env.Renderer != nil {
		nodes = d.env.Renderer.Render(d.Source())
	}

	switch mode {
	case Append:
		tree.Append(el, nodes)
	case Prepend:
		tree.Prepend(el, nodes)
	case Before:
		tree.InsertBefore(el, nodes)
	case After:
		tree.InsertAfter(el, nodes)
	case Replace:
		tree.Empty(el)
		tree.Append(el, nodes)
	}

	d.applyTo(el)

	if tr := d.Transition(); tr != nil {
		if mode == Replace {
			d.markTransition(el, tr)
		} else {
			nodes = d.transitionNodes(nodes, tr)
		}
	}
	return nodes, nil
}

// suppressed pops the hidden flag from a concrete target.
func (d *Descriptor) suppressed(target Target) bool {
	var el *html.Node
	switch t := target.(type) {
	case ElementTarget:
		el = t.Node
	case CollectionTarget:
		if len(t) > 0 {
			el = t[0]
		}
	}
	if el == nil {
		return false
	}
	v, ok := d.env.Tree.PopData(el, HiddenKey)
	if !ok {
		return false
	}
	hidden, _ := v.(bool)
	return hidden
}

// stash keeps the unrendered source on the target's elements so it can be
// revealed later. Literal matches have nowhere to keep it.
func (d *Descriptor) stash(target Target, source string) {
	if source == "" {
		return
	}
	tree := d.env.Tree
	d.eachElement(target, func(el *html.Node) {
		if el.Type == html.ElementNode && !tree.IsMarker(el) {
			tree.SetData(el, OriginalSourceKey, source)
		}
	})
}

// ApplyStaticEffects pushes the descriptor's styles, attributes and data
// onto every element the target currently resolves to. Computed styles are
// applied on the next scheduler tick, and only if the element is still in
// the tree by then.
func (d *Descriptor) ApplyStaticEffects() {
	if d.env.Tree == nil {
		return
	}
	target := d.Target()
	if nt := d.NewTargets(); len(nt) > 0 {
		target = PlacementsTarget(nt)
	}
	d.eachElement(target, d.applyTo)
}

func (d *Descriptor) eachElement(target Target, fn func(*html.Node)) {
	switch t := target.(type) {
	case ElementTarget:
		if t.Node != nil {
			fn(t.Node)
		}
	case CollectionTarget:
		for _, el := range t {
			fn(el)
		}
	case SelectorTarget:
		selector.Each(t.Selector, d.env.Tree, nil, func(_ int, el *html.Node) { fn(el) })
	case PlacementsTarget:
		for _, p := range t {
			d.eachElement(p.Target, fn)
		}
	}
}

func (d *Descriptor) applyTo(el *html.Node) {
	if el == nil || el.Type != html.ElementNode {
		return
	}
	tree := d.env.Tree
	for _, a := range d.attrs {
		tree.SetAttr(el, a.Name, a.Value)
	}
	for k, v := range d.data {
		tree.SetData(el, k, v)
	}
	for _, s := range d.styles {
		if s.Compute == nil {
			tree.SetStyle(el, s.Property, s.Value)
			continue
		}
		s := s
		apply := func() {
			if !tree.Contains(el) {
				return
			}
			tree.SetStyle(el, s.Property, s.Compute(tree, el))
		}
		if d.env.Scheduler == nil {
			apply()
		} else {
			d.env.Scheduler.Defer(apply)
		}
	}
}

func (d *Descriptor) markTransition(el *html.Node, tr *Transition) {
	tree := d.env.Tree
	tree.SetAttr(el, TransitionAttr, tr.Name)
	if tr.Duration > 0 {
		tree.SetAttr(el, TransitionDurationAttr, strconv.FormatInt(tr.Duration.Milliseconds(), 10))
	}
}

// transitionNodes marks entering elements and wraps entering text nodes in
// transition containers. It returns the nodes now in the tree.
func (d *Descriptor) transitionNodes(nodes []*html.Node, tr *Transition) []*html.Node {
	tree := d.env.Tree
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			d.markTransition(n, tr)
			out = append(out, n)
		case html.TextNode:
			if n.Parent == nil {
				out = append(out, n)
				continue
			}
			c := tree.Wrap([]*html.Node{n}, tree.Vocabulary().TransitionTag)
			d.markTransition(c, tr)
			out = append(out, c)
		default:
			out = append(out, n)
		}
	}
	return out
}
