// Package changer implements change descriptors: the record of a pending
// transformation of one or more regions, and the algorithm that applies it.
//
// Changers are functions that mutate a Descriptor. A runtime creates a
// descriptor for a target, runs the changers against it, and calls Render.
// Render fans out over every region the target resolves to, giving each
// region its own derived descriptor and its own evaluation of the source.
package changer

import (
	"sort"
	"time"

	"golang.org/x/net/html"

	"github.com/FocuswithJustin/Hookline/core/dom"
	"github.com/FocuswithJustin/Hookline/core/markup"
	"github.com/FocuswithJustin/Hookline/core/selector"
)

// Reserved side-channel keys.
const (
	// HiddenKey flags a target whose content must not be rendered. It is
	// popped by the first render that sees it.
	HiddenKey = "hidden"
	// OriginalSourceKey holds source stashed by a suppressed render.
	OriginalSourceKey = "originalSource"
)

// InsertMode says where rendered content goes relative to the target.
type InsertMode string

const (
	Append  InsertMode = "append"
	Prepend InsertMode = "prepend"
	Before  InsertMode = "before"
	After   InsertMode = "after"
	// Replace clears the target's contents, then appends. The target
	// element itself is kept.
	Replace InsertMode = "replace"
)

// Target is what a descriptor renders into.
type Target interface {
	isTarget()
}

// ElementTarget is a single element.
type ElementTarget struct {
	Node *html.Node
}

// CollectionTarget is a fixed set of elements.
type CollectionTarget []*html.Node

// SelectorTarget is resolved each time it is rendered.
type SelectorTarget struct {
	Selector selector.Selector
}

// PlacementsTarget is a list of targets, each with its own insert mode.
type PlacementsTarget []Placement

// Placement pairs a target with an insert mode.
type Placement struct {
	Target Target
	Mode   InsertMode
}

func (ElementTarget) isTarget()    {}
func (CollectionTarget) isTarget() {}
func (SelectorTarget) isTarget()   {}
func (PlacementsTarget) isTarget() {}

// Transition is an enter transition for rendered content.
type Transition struct {
	Name     string
	Duration time.Duration
}

// Style is one style property to push onto targets. When Compute is set the
// value depends on styling already in the tree, and the entry is applied one
// scheduler tick later.
type Style struct {
	Property string
	Value    string
	Compute  func(t dom.Tree, el *html.Node) string
}

// Attr is one attribute to push onto targets.
type Attr struct {
	Name  string
	Value string
}

// Runtime is the owner of a descriptor: the reentrant entry point used when
// rendered content must itself be evaluated.
type Runtime interface {
	RenderInto(source string, target *html.Node, d *Descriptor) ([]*html.Node, error)
}

// Env is the environment a descriptor renders in. Derived descriptors share
// their parent's Env.
type Env struct {
	Tree      dom.Tree
	Renderer  markup.Renderer
	Scheduler Scheduler
	// Context is opaque per-invocation data passed through untouched.
	Context any
}

// Category names a group of descriptor fields, as reported by Summary.
type Category string

const (
	CatSource     Category = "source"
	CatEnabled    Category = "enabled"
	CatTarget     Category = "target"
	CatAppend     Category = "append"
	CatNewTargets Category = "newTargets"
	CatTransition Category = "transition"
	CatLoopVars   Category = "loopVars"
	CatStyles     Category = "styles"
	CatAttrs      Category = "attrs"
	CatData       Category = "data"
)

// Changer mutates a descriptor.
type Changer func(d *Descriptor)

// Compose returns a changer that runs each changer in order. Later changers
// see the fields earlier ones set.
func Compose(changers ...Changer) Changer {
	return func(d *Descriptor) {
		for _, c := range changers {
			if c != nil {
				c(d)
			}
		}
	}
}

// Descriptor is a change descriptor. Scalar fields that are unset fall back
// to the parent; styles, attrs, loop variables and data are always owned.
type Descriptor struct {
	parent *Descriptor
	env    *Env

	source      *string
	innerSource *string
	enabled     *bool
	target      Target
	mode        *InsertMode
	newTargets  []Placement
	newSet      bool
	transition  *Transition
	owner       Runtime

	loopVars map[string][]any
	styles   []Style
	attrs    []Attr
	data     map[string]any

	touched map[Category]bool
}

// Overrides are the fields a derived descriptor sets on creation. Nil means
// inherit. NewTargets set to a non-nil empty slice clears inherited targets.
type Overrides struct {
	Source      *string
	InnerSource *string
	Enabled     *bool
	Target      Target
	Append      *InsertMode
	NewTargets  []Placement
	Transition  *Transition
	Owner       Runtime
}

// New returns a root descriptor.
func New(env Env, o Overrides) *Descriptor {
	d := &Descriptor{
		env:      &env,
		loopVars: make(map[string][]any),
		data:     make(map[string]any),
		touched:  make(map[Category]bool),
	}
	d.override(o)
	return d
}

// Derive returns a child descriptor. The child's unset fields delegate to d;
// its list and map fields are copies, so changes to the child never reach d.
// The changer, if any, runs against the child before Derive returns.
func (d *Descriptor) Derive(o Overrides, c Changer) *Descriptor {
	child := &Descriptor{
		parent:   d,
		env:      d.env,
		loopVars: make(map[string][]any, len(d.loopVars)),
		styles:   append([]Style(nil), d.styles...),
		attrs:    append([]Attr(nil), d.attrs...),
		data:     make(map[string]any, len(d.data)),
		touched:  make(map[Category]bool),
	}
	for k, v := range d.loopVars {
		child.loopVars[k] = append([]any(nil), v...)
	}
	for k, v := range d.data {
		child.data[k] = v
	}
	child.override(o)
	if c != nil {
		c(child)
	}
	return child
}

func (d *Descriptor) override(o Overrides) {
	if o.Source != nil {
		d.source = o.Source
	}
	if o.InnerSource != nil {
		d.innerSource = o.InnerSource
	}
	if o.Enabled != nil {
		d.enabled = o.Enabled
	}
	if o.Target != nil {
		d.target = o.Target
	}
	if o.Append != nil {
		d.mode = o.Append
	}
	if o.NewTargets != nil {
		d.newTargets = append([]Placement(nil), o.NewTargets...)
		d.newSet = true
	}
	if o.Transition != nil {
		d.transition = o.Transition
	}
	if o.Owner != nil {
		d.owner = o.Owner
	}
}

// Parent returns the descriptor d was derived from, or nil.
func (d *Descriptor) Parent() *Descriptor { return d.parent }

// Env returns the rendering environment.
func (d *Descriptor) Env() Env { return *d.env }

// Source returns the markup source to render.
func (d *Descriptor) Source() string {
	for c := d; c != nil; c = c.parent {
		if c.source != nil {
			return *c.source
		}
	}
	return ""
}

// InnerSource returns the source of the hook the descriptor came from.
func (d *Descriptor) InnerSource() string {
	for c := d; c != nil; c = c.parent {
		if c.innerSource != nil {
			return *c.innerSource
		}
	}
	return ""
}

// Enabled reports whether content should be rendered. Default true.
func (d *Descriptor) Enabled() bool {
	for c := d; c != nil; c = c.parent {
		if c.enabled != nil {
			return *c.enabled
		}
	}
	return true
}

// Target returns the render target.
func (d *Descriptor) Target() Target {
	for c := d; c != nil; c = c.parent {
		if c.target != nil {
			return c.target
		}
	}
	return nil
}

// Append returns the insert mode. Default Append.
func (d *Descriptor) Append() InsertMode {
	for c := d; c != nil; c = c.parent {
		if c.mode != nil {
			return *c.mode
		}
	}
	return Append
}

// NewTargets returns the replacement targets, if any.
func (d *Descriptor) NewTargets() []Placement {
	for c := d; c != nil; c = c.parent {
		if c.newSet {
			return c.newTargets
		}
	}
	return nil
}

// Transition returns the enter transition, or nil.
func (d *Descriptor) Transition() *Transition {
	for c := d; c != nil; c = c.parent {
		if c.transition != nil {
			return c.transition
		}
	}
	return nil
}

// Owner returns the runtime that owns the descriptor.
func (d *Descriptor) Owner() Runtime {
	for c := d; c != nil; c = c.parent {
		if c.owner != nil {
			return c.owner
		}
	}
	return nil
}

// Styles returns the descriptor's style entries. The slice is owned by d.
func (d *Descriptor) Styles() []Style { return d.styles }

// Attrs returns the descriptor's attribute entries. The slice is owned by d.
func (d *Descriptor) Attrs() []Attr { return d.attrs }

// LoopVars returns the loop bindings. The map is owned by d.
func (d *Descriptor) LoopVars() map[string][]any { return d.loopVars }

// Data returns the data bindings. The map is owned by d.
func (d *Descriptor) Data() map[string]any { return d.data }

// SetSource sets the source to render.
func (d *Descriptor) SetSource(s string) {
	d.source = &s
	d.touched[CatSource] = true
}

// SetInnerSource records the hook's own source.
func (d *Descriptor) SetInnerSource(s string) {
	d.innerSource = &s
	d.touched[CatSource] = true
}

// SetEnabled enables or suppresses content rendering.
func (d *Descriptor) SetEnabled(on bool) {
	d.enabled = &on
	d.touched[CatEnabled] = true
}

// SetTarget sets the render target.
func (d *Descriptor) SetTarget(t Target) {
	d.target = t
	d.touched[CatTarget] = true
}

// SetAppend sets the insert mode.
func (d *Descriptor) SetAppend(m InsertMode) {
	d.mode = &m
	d.touched[CatAppend] = true
}

// AddNewTarget adds a replacement target. Once any are set they take the
// place of Target entirely.
func (d *Descriptor) AddNewTarget(t Target, m InsertMode) {
	if !d.newSet {
		d.newTargets = append([]Placement(nil), d.NewTargets()...)
		d.newSet = true
	}
	d.newTargets = append(d.newTargets, Placement{Target: t, Mode: m})
	d.touched[CatNewTargets] = true
}

// SetTransition sets the enter transition.
func (d *Descriptor) SetTransition(name string, duration time.Duration) {
	d.transition = &Transition{Name: name, Duration: duration}
	d.touched[CatTransition] = true
}

// SetLoopVar binds a loop variable.
func (d *Descriptor) SetLoopVar(name string, values []any) {
	d.loopVars[name] = append([]any(nil), values...)
	d.touched[CatLoopVars] = true
}

// AddStyle appends a style entry.
func (d *Descriptor) AddStyle(s Style) {
	d.styles = append(d.styles, s)
	d.touched[CatStyles] = true
}

// AddAttr appends an attribute entry.
func (d *Descriptor) AddAttr(a Attr) {
	d.attrs = append(d.attrs, a)
	d.touched[CatAttrs] = true
}

// SetData binds a data value.
func (d *Descriptor) SetData(key string, value any) {
	d.data[key] = value
	d.touched[CatData] = true
}

// Summary returns the field categories touched by changers on d and its
// ancestors, sorted.
func (d *Descriptor) Summary() []Category {
	seen := make(map[Category]bool)
	for c := d; c != nil; c = c.parent {
		for cat := range c.touched {
			seen[cat] = true
		}
	}
	out := make([]Category, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// StylesOnly reports whether every changer applied so far only affected
// styling.
func (d *Descriptor) StylesOnly() bool {
	summary := d.Summary()
	for _, cat := range summary {
		if cat != CatStyles {
			return false
		}
	}
	return len(summary) > 0
}
