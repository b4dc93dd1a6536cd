// Package markup turns passage source into tree nodes.
//
// The engine treats rendering as an external collaborator: it calls a
// Renderer exactly once per concrete target, immediately before inserting the
// result. HTML is the stand-in used by the CLI and tests; it reads source as
// an HTML fragment.
package markup

import (
	"golang.org/x/net/html"

	"github.com/FocuswithJustin/Hookline/core/dom"
)

// Renderer converts source to detached nodes. Renderers never fail: errors
// are reported as error-marker content.
type Renderer interface {
	Render(source string) []*html.Node
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(source string) []*html.Node

// Render calls f(source).
func (f RenderFunc) Render(source string) []*html.Node {
	return f(source)
}

// HTML renders source as an HTML fragment.
type HTML struct {
	// ErrorTag names the element that carries a render error message.
	ErrorTag string
}

// NewHTML returns an HTML renderer using the vocabulary's error tag.
func NewHTML(vocab dom.Vocabulary) *HTML {
	return &HTML{ErrorTag: vocab.ErrorTag}
}

// Render parses source. A parse failure yields a single error element whose
// text is the failure message.
func (h *HTML) Render(source string) []*html.Node {
	if source == "" {
		return nil
	}
	nodes, err := dom.ParseFragment(source)
	if err != nil {
		tag := h.ErrorTag
		if tag == "" {
			tag = "tw-error"
		}
		el := &html.Node{Type: html.ElementNode, Data: tag}
		el.AppendChild(&html.Node{Type: html.TextNode, Data: err.Error()})
		return []*html.Node{el}
	}
	return nodes
}
