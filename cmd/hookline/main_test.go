package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FocuswithJustin/Hookline/core/errors"
)

// Test helper functions

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := out
	out = &buf
	t.Cleanup(func() { out = old })
	return &buf
}

const page = `<tw-story><tw-passage name="Start"><tw-hook name="a">first</tw-hook> the cat <tw-hook name="a">second</tw-hook></tw-passage></tw-story>`

const storyArchive = `<tw-storydata name="Demo" startnode="1">
<tw-passagedata pid="1" name="Start" tags="intro">&lt;tw-hook name="box"&gt;hi&lt;/tw-hook&gt;</tw-passagedata>
<tw-passagedata pid="2" name="Next" tags="">a cat</tw-passagedata>
</tw-storydata>`

func TestSelectCmd(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "page.html", page)
	buf := captureOutput(t)

	cmd := &SelectCmd{Input: Input{Path: path}, Expr: `?a's last + "cat" + ?a's 1st`}
	if err := cmd.Run(&Globals{}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	want := "1\tsecond\n2\tcat\n3\tfirst\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestSelectCmdHTML(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "page.html", page)
	buf := captureOutput(t)

	cmd := &SelectCmd{Input: Input{Path: path}, Expr: `?a's 1st`, HTML: true}
	if err := cmd.Run(&Globals{}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if got := buf.String(); got != "1\t<tw-hook name=\"a\">first</tw-hook>\n" {
		t.Errorf("output = %q", got)
	}
}

func TestSelectCmdBadExpression(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "page.html", page)
	captureOutput(t)

	cmd := &SelectCmd{Input: Input{Path: path}, Expr: `?a +`}
	if err := cmd.Run(&Globals{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
}

func TestChangeCmd(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "page.html", page)
	buf := captureOutput(t)

	cmd := &ChangeCmd{
		Input:  Input{Path: path},
		Expr:   `?a`,
		Source: "<b>!</b>",
		Mode:   "replace",
		Style:  []string{"color=red"},
		Attr:   []string{"data-x: 1"},
	}
	if err := cmd.Run(&Globals{}); err != nil {
		t.Fatalf("change failed: %v", err)
	}
	got := buf.String()
	want := `<tw-hook name="a" data-x="1" style="color: red"><b>!</b></tw-hook>`
	if strings.Count(got, want) != 2 {
		t.Errorf("output = %s, want two of %s", got, want)
	}
}

func TestChangeCmdBadPair(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "page.html", page)
	captureOutput(t)

	cmd := &ChangeCmd{Input: Input{Path: path}, Expr: `?a`, Mode: "append", Style: []string{"color"}}
	if err := cmd.Run(&Globals{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
}

func TestEnchantCmd(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "page.html", page)
	buf := captureOutput(t)

	cmd := &EnchantCmd{Input: Input{Path: path}, Expr: `"cat"`, Class: "glow", Style: []string{"color=blue"}}
	if err := cmd.Run(&Globals{}); err != nil {
		t.Fatalf("enchant failed: %v", err)
	}
	want := `the <tw-enchantment class="glow" style="color: blue">cat</tw-enchantment> `
	if got := buf.String(); !strings.Contains(got, want) {
		t.Errorf("output = %s, want %s", got, want)
	}
	if strings.Contains(buf.String(), "tw-pseudo-hook") {
		t.Error("marker left in output")
	}
}

func TestStoryInput(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "story.html", storyArchive)
	buf := captureOutput(t)

	cmd := &SelectCmd{Input: Input{Path: path}, Expr: `?box`}
	if err := cmd.Run(&Globals{}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if got := buf.String(); got != "1\thi\n" {
		t.Errorf("start passage output = %q", got)
	}

	buf.Reset()
	cmd = &SelectCmd{Input: Input{Path: path, Passage: "Next"}, Expr: `"cat"`}
	if err := cmd.Run(&Globals{}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if got := buf.String(); got != "1\tcat\n" {
		t.Errorf("Next passage output = %q", got)
	}

	cmd = &SelectCmd{Input: Input{Path: path, Passage: "Missing"}, Expr: `"cat"`}
	if err := cmd.Run(&Globals{}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestCompressedInputUnsupported(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "story.html.gz", storyArchive)
	captureOutput(t)

	cmd := &SelectCmd{Input: Input{Path: path}, Expr: `?box`}
	if err := cmd.Run(&Globals{}); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("err = %v, want unsupported", err)
	}
}

func TestPassagesCmd(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "story.html", storyArchive)
	buf := captureOutput(t)

	if err := (&PassagesCmd{Path: path}).Run(&Globals{}); err != nil {
		t.Fatalf("passages failed: %v", err)
	}
	want := "* 1\tStart\tintro\n  2\tNext\t\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	buf.Reset()
	if err := (&PassagesCmd{Path: path, Tag: "intro"}).Run(&Globals{}); err != nil {
		t.Fatalf("passages failed: %v", err)
	}
	if got := buf.String(); got != "* 1\tStart\tintro\n" {
		t.Errorf("tagged output = %q", got)
	}
}

func TestGlobalsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := createTestFile(t, dir, "hookline.toml", "[tree]\nhook = \"x-hook\"\n")
	path := createTestFile(t, dir, "page.html", `<x-hook name="n">custom</x-hook><tw-hook name="n">default</tw-hook>`)
	buf := captureOutput(t)

	cmd := &SelectCmd{Input: Input{Path: path}, Expr: `?n`}
	if err := cmd.Run(&Globals{Config: cfgPath, LogLevel: "error"}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if got := buf.String(); got != "1\tcustom\n" {
		t.Errorf("output = %q, want only the configured hook tag", got)
	}
}

func TestWatchFile(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "page.html", page)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var runs atomic.Int32
	done := make(chan error, 1)
	started := make(chan struct{}, 4)
	go func() {
		done <- watchFile(ctx, path, func() error {
			if runs.Add(1) >= 2 {
				cancel()
			}
			select {
			case started <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	<-started
	if err := os.WriteFile(path, []byte(page+" "), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("watchFile failed: %v", err)
	}
	if runs.Load() < 2 {
		t.Errorf("fn ran %d times, want at least 2", runs.Load())
	}
}

func TestVersionCmd(t *testing.T) {
	buf := captureOutput(t)
	if err := (&VersionCmd{}).Run(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(buf.String(), version) {
		t.Errorf("output = %q", buf.String())
	}
}
