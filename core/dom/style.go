package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Declaration is one inline style property.
type Declaration struct {
	Property string
	Value    string
}

// ParseStyle splits an inline style attribute into declarations, keeping
// source order. Later duplicates replace earlier ones in place.
func ParseStyle(s string) []Declaration {
	var decls []Declaration
	for _, part := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.TrimSpace(val)
		if prop == "" {
			continue
		}
		decls = setDecl(decls, prop, val)
	}
	return decls
}

func setDecl(decls []Declaration, prop, val string) []Declaration {
	for i := range decls {
		if decls[i].Property == prop {
			decls[i].Value = val
			return decls
		}
	}
	return append(decls, Declaration{Property: prop, Value: val})
}

func formatStyle(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.Property+": "+d.Value)
	}
	return strings.Join(parts, "; ")
}

// Styles returns the inline style declarations of n.
func (d *Document) Styles(n *html.Node) []Declaration {
	s, _ := d.Attr(n, "style")
	return ParseStyle(s)
}

// Style returns one inline style property, or "" if unset.
func (d *Document) Style(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	for _, decl := range d.Styles(n) {
		if decl.Property == prop {
			return decl.Value
		}
	}
	return ""
}

// SetStyle sets one inline style property. An empty value removes it.
func (d *Document) SetStyle(n *html.Node, prop, value string) {
	if n.Type != html.ElementNode {
		return
	}
	if value == "" {
		d.RemoveStyle(n, prop)
		return
	}
	decls := setDecl(d.Styles(n), strings.ToLower(prop), value)
	d.SetAttr(n, "style", formatStyle(decls))
}

// RemoveStyle deletes one inline style property, dropping the style
// attribute once it is empty.
func (d *Document) RemoveStyle(n *html.Node, prop string) {
	prop = strings.ToLower(prop)
	decls := d.Styles(n)
	kept := decls[:0]
	for _, decl := range decls {
		if decl.Property != prop {
			kept = append(kept, decl)
		}
	}
	if len(kept) == 0 {
		d.RemoveAttr(n, "style")
		return
	}
	d.SetAttr(n, "style", formatStyle(kept))
}
