// Package enchant implements enchantments: decorations that wrap every
// region a scope currently matches and survive tree mutation by being torn
// down and rebuilt around it.
//
// The owning runtime must call Disenchant before mutating the tree and
// Enchant afterwards, or use Resync for both. There is no incremental
// patching.
package enchant

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/Hookline/core/changer"
	"github.com/FocuswithJustin/Hookline/core/dom"
	"github.com/FocuswithJustin/Hookline/core/selector"
	"github.com/FocuswithJustin/Hookline/internal/logging"
)

// MirroredKey is the wrapper data key holding the root properties that were
// overridden with inherit.
const MirroredKey = "enchantedProperties"

// Mirrored records the root style overrides made by an enchantment.
type Mirrored struct {
	// Properties are the overridden property names.
	Properties []string
	// Previous maps each property to its value before the override, "" if
	// it was unset.
	Previous map[string]string
	// Style is the root's style attribute text before the override;
	// HadStyle reports whether the attribute was present at all.
	Style    string
	HadStyle bool
}

// Options describe what to enchant and how.
type Options struct {
	// Selector is resolved on every Enchant. If nil, Nodes is used as is.
	Selector selector.Selector
	Nodes    []*html.Node

	Attrs []changer.Attr
	Data  map[string]any
	// Changer is run against a descriptor targeting each wrapper. Only its
	// static effects are applied; it never renders content.
	Changer changer.Changer
	// PostWrap hooks run for each new wrapper, after attrs and data.
	PostWrap []func(wrapper *html.Node)
}

// Enchantment is one registered enchantment.
type Enchantment struct {
	ID string

	env      changer.Env
	opts     Options
	wrappers []*html.Node
}

// New returns an enchantment over env's tree. Nothing is wrapped until
// Enchant is called.
func New(env changer.Env, opts Options) *Enchantment {
	return &Enchantment{
		ID:   uuid.New().String(),
		env:  env,
		opts: opts,
	}
}

// Wrappers returns the wrappers created by the last Enchant.
func (e *Enchantment) Wrappers() []*html.Node {
	return e.wrappers
}

// Enchant wraps every matched region in a fresh wrapper element and
// decorates it. The wrapper list is rebuilt from scratch; wrappers left by
// an earlier Enchant are removed first.
func (e *Enchantment) Enchant() {
	if len(e.wrappers) > 0 {
		e.Disenchant()
	}
	if e.opts.Selector != nil {
		r := selector.Resolve(e.opts.Selector, e.env.Tree, nil)
		for _, el := range r.Nodes {
			e.wrap(el)
		}
		r.Close()
	} else {
		for _, el := range e.opts.Nodes {
			e.wrap(el)
		}
	}
	logging.EnchantmentRefresh(e.ID, "enchant", len(e.wrappers))
}

func (e *Enchantment) wrap(el *html.Node) {
	tree := e.env.Tree
	if el == nil || el.Parent == nil {
		return
	}
	w := tree.Wrap([]*html.Node{el}, tree.Vocabulary().WrapperTag)

	for _, a := range e.opts.Attrs {
		tree.SetAttr(w, a.Name, a.Value)
	}
	for k, v := range e.opts.Data {
		tree.SetData(w, k, v)
	}
	for _, hook := range e.opts.PostWrap {
		hook(w)
	}

	var props []string
	if e.opts.Changer != nil {
		d := changer.New(e.env, changer.Overrides{Target: changer.ElementTarget{Node: w}})
		e.opts.Changer(d)
		d.ApplyStaticEffects()
		for _, s := range d.Styles() {
			props = append(props, s.Property)
		}
	}

	if el == tree.Root() {
		e.mirror(w, props)
	}
	e.wrappers = append(e.wrappers, w)
}

// mirror overrides the root's own styling for every property the wrapper
// sets, so the root inherits the wrapper's value.
func (e *Enchantment) mirror(w *html.Node, props []string) {
	tree := e.env.Tree
	root := tree.Root()

	for _, decl := range tree.Styles(w) {
		props = append(props, decl.Property)
	}
	m := Mirrored{Previous: make(map[string]string)}
	m.Style, m.HadStyle = tree.Attr(root, "style")
	for _, p := range props {
		if _, seen := m.Previous[p]; seen {
			continue
		}
		m.Properties = append(m.Properties, p)
		m.Previous[p] = tree.Style(root, p)
		tree.SetStyle(root, p, "inherit")
	}
	tree.SetData(w, MirroredKey, m)
}

// restore reverts exactly the recorded root overrides. When that leaves
// the root's styling as it was, the original attribute text is put back
// verbatim.
func (e *Enchantment) restore(m Mirrored) {
	tree := e.env.Tree
	root := tree.Root()
	for _, p := range m.Properties {
		if prev := m.Previous[p]; prev == "" {
			tree.RemoveStyle(root, p)
		} else {
			tree.SetStyle(root, p, prev)
		}
	}

	current, _ := tree.Attr(root, "style")
	if !sameStyle(current, m.Style) {
		return
	}
	if m.HadStyle {
		tree.SetAttr(root, "style", m.Style)
	} else {
		tree.RemoveAttr(root, "style")
	}
}

// sameStyle reports whether two style attribute texts declare the same
// properties with the same values.
func sameStyle(a, b string) bool {
	return slices.Equal(dom.ParseStyle(a), dom.ParseStyle(b))
}

// Disenchant removes every wrapper, returning its children to the wrapper's
// parent, and reverts root overrides.
func (e *Enchantment) Disenchant() {
	tree := e.env.Tree
	n := len(e.wrappers)
	for i := n - 1; i >= 0; i-- {
		w := e.wrappers[i]
		if v, ok := tree.Data(w, MirroredKey); ok {
			e.restore(v.(Mirrored))
		}
		if w.Parent == nil {
			continue
		}
		first, last := w.FirstChild, w.LastChild
		tree.Unwrap(w)
		if first != nil {
			tree.JoinText(last, last.NextSibling)
			tree.JoinText(first.PrevSibling, first)
		}
	}
	e.wrappers = nil
	logging.EnchantmentRefresh(e.ID, "disenchant", n)
}

// Resync disenchants, then enchants.
func (e *Enchantment) Resync() {
	e.Disenchant()
	e.Enchant()
}
