// Package section is the owning runtime for the change engine: it holds the
// live document, the markup renderer, the deferred-work queue and the
// registered enchantments, and keeps enchantments in step with every
// mutation it performs.
package section

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"golang.org/x/net/html"

	"github.com/FocuswithJustin/Hookline/core/cache"
	"github.com/FocuswithJustin/Hookline/core/changer"
	"github.com/FocuswithJustin/Hookline/core/dom"
	"github.com/FocuswithJustin/Hookline/core/enchant"
	"github.com/FocuswithJustin/Hookline/core/errors"
	"github.com/FocuswithJustin/Hookline/core/markup"
	"github.com/FocuswithJustin/Hookline/core/selector"
	"github.com/FocuswithJustin/Hookline/internal/logging"
)

// Invocation is the opaque per-invocation context handed to descriptors.
type Invocation struct {
	ID   string
	Time time.Time
}

// Section is a rendering session over one document.
type Section struct {
	tree     dom.Tree
	renderer markup.Renderer
	queue    *changer.Queue
	clock    clockz.Clock
	parser   *selector.Parser

	enchantments []*enchant.Enchantment
	depth        int
}

// Option configures a Section.
type Option func(*Section)

// WithRenderer sets the markup renderer. The default renders HTML.
func WithRenderer(r markup.Renderer) Option {
	return func(s *Section) { s.renderer = r }
}

// WithClock sets the clock used for invocation timestamps.
func WithClock(c clockz.Clock) Option {
	return func(s *Section) { s.clock = c }
}

// WithParser sets the selector parser.
func WithParser(p *selector.Parser) Option {
	return func(s *Section) { s.parser = p }
}

// New returns a section over tree.
func New(tree dom.Tree, opts ...Option) *Section {
	s := &Section{
		tree:  tree,
		queue: changer.NewQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = markup.NewHTML(tree.Vocabulary())
	}
	if s.clock == nil {
		s.clock = clockz.RealClock
	}
	if s.parser == nil {
		s.parser = selector.NewParser(cache.DefaultConfig())
	}
	return s
}

// Tree returns the section's document.
func (s *Section) Tree() dom.Tree { return s.tree }

// InvocationID returns the invocation's id.
func (i Invocation) InvocationID() string { return i.ID }

// Invocation returns a fresh invocation context.
func (s *Section) Invocation() Invocation {
	return Invocation{ID: uuid.New().String(), Time: s.clock.Now()}
}

// Env returns a descriptor environment carrying a fresh invocation.
func (s *Section) Env() changer.Env {
	return changer.Env{
		Tree:      s.tree,
		Renderer:  s.renderer,
		Scheduler: s.queue,
		Context:   s.Invocation(),
	}
}

// Target parses a selector expression into a render target.
func (s *Section) Target(expr string) (changer.Target, error) {
	sel, err := s.parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return changer.SelectorTarget{Selector: sel}, nil
}

// Select parses expr and calls fn for each region it matches. Literal
// markers are removed before Select returns.
func (s *Section) Select(expr string, fn func(i int, n *html.Node)) error {
	sel, err := s.parser.Parse(expr)
	if err != nil {
		return err
	}
	selector.Each(sel, s.tree, nil, fn)
	return nil
}

// NewDescriptor returns a root descriptor owned by the section.
func (s *Section) NewDescriptor(target changer.Target, source string) *changer.Descriptor {
	return changer.New(s.Env(), changer.Overrides{
		Source: &source,
		Target: target,
		Owner:  s,
	})
}

// Apply builds a descriptor for target, runs the changers against it and
// renders it. Enchantments are refreshed around the render and deferred
// styling is flushed before Apply returns.
func (s *Section) Apply(target changer.Target, source string, changers ...changer.Changer) ([]*html.Node, error) {
	var nodes []*html.Node
	err := s.Mutate(func() error {
		d := s.NewDescriptor(target, source)
		changer.Compose(changers...)(d)
		inv, _ := d.Env().Context.(Invocation)
		ctx := logging.WithInvocationID(context.Background(), inv.InvocationID())
		logging.LoggerFromContext(ctx).Debug("section_apply", "summary", d.Summary())
		var err error
		nodes, err = d.Render()
		return err
	})
	return nodes, err
}

// RenderInto renders source into target. When d is given the render
// inherits its styling and bindings; it is always enabled and always aims
// at target alone.
func (s *Section) RenderInto(source string, target *html.Node, d *changer.Descriptor) ([]*html.Node, error) {
	on := true
	o := changer.Overrides{
		Source:     &source,
		Enabled:    &on,
		Target:     changer.ElementTarget{Node: target},
		NewTargets: []changer.Placement{},
		Owner:      s,
	}
	var child *changer.Descriptor
	if d == nil {
		child = changer.New(s.Env(), o)
	} else {
		child = d.Derive(o, nil)
	}

	var nodes []*html.Node
	err := s.Mutate(func() error {
		var err error
		nodes, err = child.Render()
		return err
	})
	return nodes, err
}

// Reveal renders the source a suppressed render stashed on el.
func (s *Section) Reveal(el *html.Node) ([]*html.Node, error) {
	v, ok := s.tree.PopData(el, changer.OriginalSourceKey)
	if !ok {
		return nil, errors.NewNotFound("stashed source", el.Data)
	}
	source, _ := v.(string)
	return s.RenderInto(source, el, nil)
}

// Enchant registers an enchantment and applies it.
func (s *Section) Enchant(opts enchant.Options) *enchant.Enchantment {
	e := enchant.New(s.Env(), opts)
	s.enchantments = append(s.enchantments, e)
	if s.depth == 0 {
		e.Enchant()
		s.queue.Flush()
	}
	return e
}

// Unenchant removes an enchantment by id.
func (s *Section) Unenchant(id string) error {
	for i, e := range s.enchantments {
		if e.ID != id {
			continue
		}
		if s.depth == 0 {
			e.Disenchant()
		}
		s.enchantments = append(s.enchantments[:i], s.enchantments[i+1:]...)
		return nil
	}
	return errors.NewNotFound("enchantment", id)
}

// Enchantments returns the registered enchantments in registration order.
func (s *Section) Enchantments() []*enchant.Enchantment {
	return append([]*enchant.Enchantment(nil), s.enchantments...)
}

// Mutate runs fn with every enchantment torn down, then rebuilds them and
// flushes deferred work. Nested calls only refresh at the outermost level.
func (s *Section) Mutate(fn func() error) error {
	s.depth++
	if s.depth == 1 {
		for i := len(s.enchantments) - 1; i >= 0; i-- {
			s.enchantments[i].Disenchant()
		}
	}
	defer func() {
		s.depth--
		if s.depth == 0 {
			for _, e := range s.enchantments {
				e.Enchant()
			}
			s.queue.Flush()
		}
	}()
	return fn()
}

// Flush runs deferred work now and reports how much ran.
func (s *Section) Flush() int {
	return s.queue.Flush()
}
