package enchant

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/FocuswithJustin/Hookline/core/changer"
	"github.com/FocuswithJustin/Hookline/core/dom"
	"github.com/FocuswithJustin/Hookline/core/selector"
)

func mustParse(t *testing.T, src string) *dom.Document {
	t.Helper()
	d, err := dom.Parse(src, dom.DefaultVocabulary())
	if err != nil {
		t.Fatalf("dom.Parse failed: %v", err)
	}
	return d
}

func red(d *changer.Descriptor) {
	d.AddStyle(changer.Style{Property: "color", Value: "red"})
}

func TestEnchantWrapsEachMatch(t *testing.T) {
	doc := mustParse(t, `<tw-hook name="a">1</tw-hook> <tw-hook name="a">2</tw-hook>`)
	var hooked []*html.Node
	e := New(changer.Env{Tree: doc}, Options{
		Selector: selector.NewLeaf("?a"),
		Attrs:    []changer.Attr{{Name: "class", Value: "glow"}},
		Data:     map[string]any{"owner": "test"},
		Changer:  red,
		PostWrap: []func(*html.Node){func(w *html.Node) { hooked = append(hooked, w) }},
	})
	if e.ID == "" {
		t.Error("enchantment has no id")
	}

	e.Enchant()
	ws := e.Wrappers()
	if len(ws) != 2 || len(hooked) != 2 {
		t.Fatalf("got %d wrappers, %d hook calls; want 2, 2", len(ws), len(hooked))
	}
	for _, w := range ws {
		if w.Data != "tw-enchantment" || w.FirstChild.Data != "tw-hook" {
			t.Errorf("wrapper shape wrong: %s", dom.Outer(w))
		}
		if v, _ := doc.Attr(w, "class"); v != "glow" {
			t.Error("attrs not applied")
		}
		if v, _ := doc.Data(w, "owner"); v != "test" {
			t.Error("data not applied")
		}
		if doc.Style(w, "color") != "red" {
			t.Error("changer styles not applied")
		}
	}
	if got := doc.Text(doc.Root()); got != "1 2" {
		t.Errorf("text = %q; enchanting must not render content", got)
	}
}

func whiteText(*dom.Document) Options {
	return Options{Selector: selector.NewLeaf("?page"), Changer: func(d *changer.Descriptor) {
		d.AddStyle(changer.Style{Property: "color", Value: "white"})
	}}
}

func TestEnchantRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts func(doc *dom.Document) Options
	}{
		{
			name: "hooks",
			src:  `<p><tw-hook name="a" title="t">x</tw-hook></p><tw-hook name="a">y</tw-hook>`,
			opts: func(*dom.Document) Options {
				return Options{Selector: selector.NewLeaf("?a"), Changer: red}
			},
		},
		{
			name: "literal text",
			src:  `<p>the cat and the hat</p>`,
			opts: func(*dom.Document) Options {
				return Options{Selector: selector.Join(selector.NewLeaf("cat"), selector.NewLeaf("hat")), Changer: red}
			},
		},
		{
			name: "root",
			src:  `<tw-story style="color: black; margin: 0">body</tw-story>`,
			opts: func(*dom.Document) Options {
				return Options{Selector: selector.NewLeaf("?page"), Changer: func(d *changer.Descriptor) {
					d.AddStyle(changer.Style{Property: "color", Value: "white"})
					d.AddStyle(changer.Style{Property: "background-color", Value: "navy"})
				}}
			},
		},
		{
			name: "root style without spaces",
			src:  `<tw-story style="color:black">body</tw-story>`,
			opts: whiteText,
		},
		{
			name: "root empty style",
			src:  `<tw-story style="">body</tw-story>`,
			opts: whiteText,
		},
		{
			name: "root style case and trailing semicolon",
			src:  `<tw-story style="COLOR: Black;">body</tw-story>`,
			opts: whiteText,
		},
		{
			name: "root without style",
			src:  `<tw-story>body</tw-story>`,
			opts: whiteText,
		},
		{
			name: "nodes",
			src:  `<tw-passage><i>one</i></tw-passage>`,
			opts: func(doc *dom.Document) Options {
				return Options{Nodes: doc.Elements(doc.Root(), "passage"), Attrs: []changer.Attr{{Name: "id", Value: "x"}}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.src)
			before := doc.String()

			e := New(changer.Env{Tree: doc}, tt.opts(doc))
			e.Enchant()
			if len(e.Wrappers()) == 0 {
				t.Fatal("nothing enchanted")
			}
			if !strings.Contains(doc.String(), "tw-enchantment") {
				t.Fatalf("no wrapper in %s", doc.String())
			}
			e.Disenchant()

			if got := doc.String(); got != before {
				t.Errorf("after round trip:\n got  %s\n want %s", got, before)
			}
			if len(e.Wrappers()) != 0 {
				t.Error("wrappers not cleared")
			}
		})
	}
}

func TestEnchantRootMirrorsStyles(t *testing.T) {
	doc := mustParse(t, `<tw-story style="color: black">x</tw-story>`)
	root := doc.Root()
	e := New(changer.Env{Tree: doc}, Options{
		Selector: selector.NewLeaf("?page"),
		Changer: func(d *changer.Descriptor) {
			d.AddStyle(changer.Style{Property: "color", Value: "white"})
			d.AddStyle(changer.Style{Property: "font-size", Value: "2em"})
		},
	})
	e.Enchant()

	if doc.Style(root, "color") != "inherit" || doc.Style(root, "font-size") != "inherit" {
		t.Errorf("root styles = %v, want inherit overrides", doc.Styles(root))
	}
	w := e.Wrappers()[0]
	v, ok := doc.Data(w, MirroredKey)
	if !ok {
		t.Fatal("mirrored properties not recorded on the wrapper")
	}
	m := v.(Mirrored)
	if strings.Join(m.Properties, ",") != "color,font-size" {
		t.Errorf("mirrored properties = %q, want color,font-size", m.Properties)
	}
	if m.Previous["color"] != "black" || m.Previous["font-size"] != "" {
		t.Errorf("previous values = %v", m.Previous)
	}
	if !m.HadStyle || m.Style != "color: black" {
		t.Errorf("recorded style = %q (present %v)", m.Style, m.HadStyle)
	}

	e.Disenchant()
	if got, _ := doc.Attr(root, "style"); got != "color: black" {
		t.Errorf("root style = %q, want color: black", got)
	}
}

func TestResyncTracksMutation(t *testing.T) {
	doc := mustParse(t, `<tw-hook name="a">1</tw-hook>`)
	e := New(changer.Env{Tree: doc}, Options{Selector: selector.NewLeaf("?a"), Changer: red})
	e.Enchant()

	e.Disenchant()
	extra := doc.NewElement("tw-hook")
	doc.SetAttr(extra, "name", "a")
	doc.Append(doc.Root(), []*html.Node{extra})
	e.Enchant()
	if got := len(e.Wrappers()); got != 2 {
		t.Errorf("after mutation got %d wrappers, want 2", got)
	}

	e.Resync()
	if got := strings.Count(doc.String(), "<tw-enchantment"); got != 2 {
		t.Errorf("Resync left %d wrappers in the tree, want 2", got)
	}
}

func TestEnchantTwiceReplacesWrappers(t *testing.T) {
	doc := mustParse(t, `<tw-hook name="a">x</tw-hook>`)
	before := doc.String()
	e := New(changer.Env{Tree: doc}, Options{Selector: selector.NewLeaf("?a")})

	e.Enchant()
	e.Enchant()
	if got := strings.Count(doc.String(), "<tw-enchantment"); got != 1 {
		t.Errorf("second Enchant left %d wrappers in the tree, want 1", got)
	}
	e.Disenchant()
	if got := doc.String(); got != before {
		t.Errorf("tree = %s, want %s", got, before)
	}
}

// Styling changed on another property while enchanted is kept.
func TestDisenchantKeepsLaterRootStyles(t *testing.T) {
	doc := mustParse(t, `<tw-story style="color:black">x</tw-story>`)
	root := doc.Root()
	e := New(changer.Env{Tree: doc}, whiteText(doc))
	e.Enchant()
	doc.SetStyle(root, "margin", "0")
	e.Disenchant()

	if got, _ := doc.Attr(root, "style"); got != "color: black; margin: 0" {
		t.Errorf("root style = %q, want color: black; margin: 0", got)
	}
}

func TestDisenchantIdempotent(t *testing.T) {
	doc := mustParse(t, `<tw-hook name="a">1</tw-hook>`)
	before := doc.String()
	e := New(changer.Env{Tree: doc}, Options{Selector: selector.NewLeaf("?a")})
	e.Disenchant()
	e.Enchant()
	e.Disenchant()
	e.Disenchant()
	if doc.String() != before {
		t.Errorf("tree = %s, want %s", doc.String(), before)
	}
}

func TestDeferredStyleSkippedAfterDisenchant(t *testing.T) {
	doc := mustParse(t, `<tw-hook name="a">1</tw-hook>`)
	q := changer.NewQueue()
	e := New(changer.Env{Tree: doc, Scheduler: q}, Options{
		Selector: selector.NewLeaf("?a"),
		Changer: func(d *changer.Descriptor) {
			d.AddStyle(changer.Style{Property: "color", Compute: func(dom.Tree, *html.Node) string { return "blue" }})
		},
	})
	e.Enchant()
	w := e.Wrappers()[0]
	e.Disenchant()
	q.Flush()
	if doc.Style(w, "color") != "" {
		t.Error("deferred style ran against a removed wrapper")
	}
}
