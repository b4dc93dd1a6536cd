package story

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/Hookline/core/errors"
)

const archive = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Cats</title></head><body>
<tw-storydata name="Cats" startnode="2" creator="Twine" ifid="D6A1-42" format="Harlowe" format-version="3.3.7" hidden>
<style role="stylesheet" id="twine-user-stylesheet" type="text/twine-css">tw-story { color: black }</style>
<script role="script" id="twine-user-script" type="text/twine-javascript">var x = 1;</script>
<tw-passagedata pid="1" name="Intro" tags="" position="100,100" size="100,100">The cat sat.</tw-passagedata>
<tw-passagedata pid="2" name="Start" tags="header  intro" position="200,100" size="100,100">&lt;tw-hook name="box"&gt;concatenate&lt;/tw-hook&gt; &amp; more&nbsp;</tw-passagedata>
</tw-storydata>
</body></html>`

func TestLoad(t *testing.T) {
	s, err := Load(strings.NewReader(archive))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Name != "Cats" || s.IFID != "D6A1-42" || s.Format != "Harlowe" || s.FormatVersion != "3.3.7" {
		t.Errorf("story header = %+v", s)
	}
	if s.Start != "Start" {
		t.Errorf("Start = %q, want Start", s.Start)
	}
	if s.Stylesheet != "tw-story { color: black }" || s.Script != "var x = 1;" {
		t.Errorf("stylesheet/script = %q / %q", s.Stylesheet, s.Script)
	}
	if len(s.Passages) != 2 {
		t.Fatalf("got %d passages, want 2", len(s.Passages))
	}

	p, err := s.Passage("Start")
	if err != nil {
		t.Fatalf("Passage failed: %v", err)
	}
	if p.PID != 2 {
		t.Errorf("PID = %d, want 2", p.PID)
	}
	want := "<tw-hook name=\"box\">concatenate</tw-hook> & more\u00a0"
	if p.Text != want {
		t.Errorf("Text = %q, want %q", p.Text, want)
	}
	if len(p.Tags) != 2 || !p.HasTag("intro") || p.HasTag("outro") {
		t.Errorf("Tags = %q", p.Tags)
	}
	if got := s.Tagged("header"); len(got) != 1 || got[0].Name != "Start" {
		t.Errorf("Tagged(header) = %v", got)
	}
}

func TestDigest(t *testing.T) {
	s, err := Load(strings.NewReader(archive))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	intro, _ := s.Passage("Intro")
	start, _ := s.Passage("Start")
	if len(intro.Digest) != 64 {
		t.Errorf("digest %q is not 32 hex bytes", intro.Digest)
	}
	if intro.Digest != Digest([]byte("The cat sat.")) {
		t.Error("digest does not match passage text")
	}
	if intro.Digest == start.Digest {
		t.Error("different passages share a digest")
	}
}

func TestPassageNotFound(t *testing.T) {
	s, err := Load(strings.NewReader(archive))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := s.Passage("Nowhere"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"no story":   `<html><body><p>nothing</p></body></html>`,
		"bad pid":    `<tw-storydata name="x"><tw-passagedata pid="one" name="a">a</tw-passagedata></tw-storydata>`,
		"not markup": ``,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(src)); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestOpenCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cats.html.xz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w, err := xz.NewWriter(f)
	if err != nil {
		t.Fatalf("xz.NewWriter: %v", err)
	}
	if _, err := w.Write([]byte(archive)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close xz: %v", err)
	}
	f.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(s.Passages) != 2 {
		t.Errorf("got %d passages, want 2", len(s.Passages))
	}
}

func TestOpenUnsupportedCompression(t *testing.T) {
	for _, name := range []string{"story.html.gz", "story.zip"} {
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, []byte(archive), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Open(path); !errors.Is(err, errors.ErrUnsupported) {
			t.Errorf("Open(%s) err = %v, want unsupported", name, err)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.html"))
	var ioErr *errors.IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("err = %v, want IOError", err)
	}
}
