package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/FocuswithJustin/Hookline/core/changer"
	"github.com/FocuswithJustin/Hookline/core/dom"
	"github.com/FocuswithJustin/Hookline/core/enchant"
	"github.com/FocuswithJustin/Hookline/core/errors"
	"github.com/FocuswithJustin/Hookline/core/markup"
	"github.com/FocuswithJustin/Hookline/core/section"
	"github.com/FocuswithJustin/Hookline/core/selector"
	"github.com/FocuswithJustin/Hookline/core/story"
	"github.com/FocuswithJustin/Hookline/internal/config"
	"github.com/FocuswithJustin/Hookline/internal/logging"
)

// Input names the document a command works on: an HTML file, or a passage
// of a story archive.
type Input struct {
	Path    string `arg:"" help:"HTML file or story archive (.xz allowed)" type:"existingfile"`
	Passage string `short:"p" help:"Passage to load from a story archive (default: the start passage)"`
}

// Load builds the document for the input.
func (in Input) Load(cfg config.Config) (*dom.Document, error) {
	vocab := cfg.Vocabulary()

	if !story.Compressed(in.Path) && in.Passage == "" {
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return nil, errors.NewIO("read", in.Path, err)
		}
		if !bytes.Contains(data, []byte("<tw-storydata")) {
			return dom.Parse(string(data), vocab)
		}
	}

	s, err := story.Open(in.Path)
	if err != nil {
		return nil, err
	}
	name := in.Passage
	if name == "" {
		name = s.Start
	}
	p, err := s.Passage(name)
	if err != nil {
		return nil, err
	}
	return passageDocument(p, vocab), nil
}

// passageDocument renders a passage into a fresh document.
func passageDocument(p *story.Passage, vocab dom.Vocabulary) *dom.Document {
	doc := dom.New(vocab)
	tag := "tw-passage"
	if a, ok := vocab.Aliases["passage"]; ok && len(a.Tags) > 0 {
		tag = a.Tags[0]
	}
	el := doc.NewElement(tag)
	doc.SetAttr(el, vocab.NameAttr, p.Name)
	if len(p.Tags) > 0 {
		doc.SetAttr(el, "tags", strings.Join(p.Tags, " "))
	}
	doc.Append(doc.Root(), []*html.Node{el})
	doc.Append(el, markup.NewHTML(vocab).Render(p.Text))
	return doc
}

func newSection(cfg config.Config, doc *dom.Document) *section.Section {
	return section.New(doc, section.WithParser(selector.NewParser(cfg.CacheConfig())))
}

// splitPair splits "key=value" or "key: value".
func splitPair(kind, s string) (string, string, error) {
	i := strings.IndexAny(s, "=:")
	if i <= 0 {
		return "", "", errors.NewValidation(kind, fmt.Sprintf("%q is not key=value", s))
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), nil
}

// decorations turns --style and --attr flags into changers.
func decorations(styles, attrs []string) ([]changer.Changer, error) {
	var out []changer.Changer
	for _, s := range styles {
		prop, val, err := splitPair("style", s)
		if err != nil {
			return nil, err
		}
		out = append(out, func(d *changer.Descriptor) {
			d.AddStyle(changer.Style{Property: prop, Value: val})
		})
	}
	for _, a := range attrs {
		name, val, err := splitPair("attr", a)
		if err != nil {
			return nil, err
		}
		out = append(out, func(d *changer.Descriptor) {
			d.AddAttr(changer.Attr{Name: name, Value: val})
		})
	}
	return out, nil
}

// SelectCmd prints the regions a selector matches.
type SelectCmd struct {
	Input `embed:""`
	Expr string `arg:"" help:"Selector expression, e.g. '?foo's 2nd + \"cat\"'"`
	HTML bool   `help:"Print matches as HTML instead of text"`
}

// Run executes the select command.
func (c *SelectCmd) Run(g *Globals) error {
	cfg, err := g.Setup()
	if err != nil {
		return err
	}
	doc, err := c.Load(cfg)
	if err != nil {
		return err
	}
	s := newSection(cfg, doc)

	var lines []string
	err = s.Select(c.Expr, func(i int, n *html.Node) {
		text := doc.Text(n)
		if c.HTML {
			text = dom.Outer(n)
		}
		lines = append(lines, fmt.Sprintf("%d\t%s", i+1, text))
	})
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}

// ChangeCmd applies changers to a selector's regions.
type ChangeCmd struct {
	Input `embed:""`
	Expr       string        `arg:"" help:"Selector expression for the target"`
	Source     string        `short:"s" help:"Markup to render into each region"`
	Mode       string        `short:"m" help:"Insert mode" enum:"append,prepend,before,after,replace" default:"append"`
	Style      []string      `help:"Style property to apply, as prop=value"`
	Attr       []string      `help:"Attribute to apply, as name=value"`
	Transition string        `short:"t" help:"Enter transition name"`
	Duration   time.Duration `help:"Enter transition duration"`
	Hide       bool          `help:"Suppress rendering and stash the source on the target"`
}

func (c *ChangeCmd) changers() ([]changer.Changer, error) {
	cs, err := decorations(c.Style, c.Attr)
	if err != nil {
		return nil, err
	}
	mode := changer.InsertMode(c.Mode)
	cs = append(cs, func(d *changer.Descriptor) { d.SetAppend(mode) })
	if c.Transition != "" {
		cs = append(cs, func(d *changer.Descriptor) { d.SetTransition(c.Transition, c.Duration) })
	}
	if c.Hide {
		cs = append(cs, func(d *changer.Descriptor) { d.SetEnabled(false) })
	}
	return cs, nil
}

// apply loads the input, applies the change and returns the document.
func (c *ChangeCmd) apply(cfg config.Config) (*dom.Document, error) {
	doc, err := c.Load(cfg)
	if err != nil {
		return nil, err
	}
	s := newSection(cfg, doc)
	target, err := s.Target(c.Expr)
	if err != nil {
		return nil, err
	}
	cs, err := c.changers()
	if err != nil {
		return nil, err
	}
	if _, err := s.Apply(target, c.Source, cs...); err != nil {
		return nil, err
	}
	return doc, nil
}

// Run executes the change command.
func (c *ChangeCmd) Run(g *Globals) error {
	cfg, err := g.Setup()
	if err != nil {
		return err
	}
	doc, err := c.apply(cfg)
	if err != nil {
		return err
	}
	if err := doc.Render(out); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

// EnchantCmd decorates a selector's regions with enchantment wrappers.
type EnchantCmd struct {
	Input `embed:""`
	Expr  string   `arg:"" help:"Selector expression for the scope"`
	Style []string `help:"Style property for each wrapper, as prop=value"`
	Attr  []string `help:"Attribute for each wrapper, as name=value"`
	Class string   `help:"Class for each wrapper"`
}

// Run executes the enchant command.
func (c *EnchantCmd) Run(g *Globals) error {
	cfg, err := g.Setup()
	if err != nil {
		return err
	}
	doc, err := c.Load(cfg)
	if err != nil {
		return err
	}
	s := newSection(cfg, doc)

	sel, err := selector.Parse(c.Expr)
	if err != nil {
		return err
	}
	cs, err := decorations(c.Style, nil)
	if err != nil {
		return err
	}
	opts := enchant.Options{Selector: sel, Changer: changer.Compose(cs...)}
	for _, a := range c.Attr {
		name, val, err := splitPair("attr", a)
		if err != nil {
			return err
		}
		opts.Attrs = append(opts.Attrs, changer.Attr{Name: name, Value: val})
	}
	if c.Class != "" {
		opts.Attrs = append(opts.Attrs, changer.Attr{Name: "class", Value: c.Class})
	}

	e := s.Enchant(opts)
	if err := doc.Render(out); err != nil {
		return err
	}
	fmt.Fprintln(out)
	logging.Info("enchanted", "enchantment_id", e.ID, "wrappers", len(e.Wrappers()))
	return nil
}

// PassagesCmd lists the passages of a story archive.
type PassagesCmd struct {
	Path string `arg:"" help:"Story archive (.xz allowed)" type:"existingfile"`
	Tag  string `help:"Only list passages with this tag"`
}

// Run executes the passages command.
func (c *PassagesCmd) Run(g *Globals) error {
	if _, err := g.Setup(); err != nil {
		return err
	}
	s, err := story.Open(c.Path)
	if err != nil {
		return err
	}
	passages := s.Passages
	if c.Tag != "" {
		passages = s.Tagged(c.Tag)
	}
	for _, p := range passages {
		start := " "
		if p.Name == s.Start {
			start = "*"
		}
		fmt.Fprintf(out, "%s %d\t%s\t%s\n", start, p.PID, p.Name, strings.Join(p.Tags, ","))
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

// Run executes the version command.
func (c *VersionCmd) Run() error {
	fmt.Fprintf(out, "hookline version %s\n", version)
	return nil
}
