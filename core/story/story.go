// Package story reads story archives: the tw-storydata element that holds a
// story's passages, either on its own or inside a published HTML page.
//
// Archives are parsed with xmlquery in non-strict mode with HTML entities and
// auto-closing, which copes with the HTML that story editors write. Files
// ending in .xz are decompressed first.
package story

import (
	"encoding/hex"
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/Hookline/core/errors"
	"github.com/FocuswithJustin/Hookline/internal/logging"
)

// Story is a parsed story archive.
type Story struct {
	Name          string
	IFID          string
	Format        string
	FormatVersion string
	// Start is the name of the starting passage.
	Start      string
	Stylesheet string
	Script     string
	Passages   []Passage
}

// Passage is one passage of a story.
type Passage struct {
	PID  int
	Name string
	Tags []string
	// Text is the passage source, unescaped.
	Text string
	// Digest is the BLAKE3 digest of Text.
	Digest string
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var parseOptions = xmlquery.ParserOptions{
	Decoder: &xmlquery.DecoderOptions{
		Strict:    false,
		AutoClose: xml.HTMLAutoClose,
		Entity:    xml.HTMLEntity,
	},
}

// Load parses the first story archive found in r.
func Load(r io.Reader) (*Story, error) {
	root, err := xmlquery.ParseWithOptions(r, parseOptions)
	if err != nil {
		return nil, &errors.ParseError{Format: "story archive", Message: err.Error(), Err: err}
	}

	data := xmlquery.FindOne(root, "//tw-storydata")
	if data == nil {
		return nil, errors.NewParse("story archive", "", "no tw-storydata element")
	}

	s := &Story{
		Name:          data.SelectAttr("name"),
		IFID:          data.SelectAttr("ifid"),
		Format:        data.SelectAttr("format"),
		FormatVersion: data.SelectAttr("format-version"),
	}
	if n := xmlquery.FindOne(data, "./style[@type='text/twine-css']"); n != nil {
		s.Stylesheet = n.InnerText()
	}
	if n := xmlquery.FindOne(data, "./script[@type='text/twine-javascript']"); n != nil {
		s.Script = n.InnerText()
	}

	startPID := data.SelectAttr("startnode")
	for _, n := range xmlquery.Find(data, "./tw-passagedata") {
		p := Passage{
			Name: n.SelectAttr("name"),
			Tags: strings.Fields(n.SelectAttr("tags")),
			Text: n.InnerText(),
		}
		p.Digest = Digest([]byte(p.Text))
		pid := n.SelectAttr("pid")
		if pid != "" {
			p.PID, err = strconv.Atoi(pid)
			if err != nil {
				return nil, errors.NewParse("story archive", "", "passage "+p.Name+" has invalid pid "+pid)
			}
		}
		if pid != "" && pid == startPID {
			s.Start = p.Name
		}
		s.Passages = append(s.Passages, p)
	}
	return s, nil
}

// unsupportedCompression lists archive suffixes that are recognised but not
// read. Only xz is decompressed.
var unsupportedCompression = []string{".gz", ".bz2", ".zst", ".lz4", ".zip"}

// Compressed reports whether path names a compressed archive, whether or
// not Open can read it.
func Compressed(path string) bool {
	if strings.HasSuffix(path, ".xz") {
		return true
	}
	for _, ext := range unsupportedCompression {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Open loads the story archive at path.
func Open(path string) (*Story, error) {
	for _, ext := range unsupportedCompression {
		if strings.HasSuffix(path, ext) {
			return nil, errors.NewUnsupported("archive compression", ext+" (recompress as .xz)")
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.NewIO("decompress", path, err)
		}
		r = xzr
	}

	s, err := Load(r)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	logging.StoryLoaded(path, len(s.Passages), "story", s.Name)
	return s, nil
}

// Passage returns the passage with the given name.
func (s *Story) Passage(name string) (*Passage, error) {
	for i := range s.Passages {
		if s.Passages[i].Name == name {
			return &s.Passages[i], nil
		}
	}
	return nil, errors.NewNotFound("passage", name)
}

// Tagged returns the passages carrying tag, in archive order.
func (s *Story) Tagged(tag string) []Passage {
	var out []Passage
	for _, p := range s.Passages {
		if p.HasTag(tag) {
			out = append(out, p)
		}
	}
	return out
}

// HasTag reports whether the passage carries tag.
func (p *Passage) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
