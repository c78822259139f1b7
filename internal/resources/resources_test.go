// ABOUTME: Tests for the resource registry: embedded docs, directory overrides, HTML rendering.

package resources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDocs(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	docs := r.List()
	if len(docs) == 0 {
		t.Fatal("expected embedded docs")
	}
	for _, d := range docs {
		if !strings.HasPrefix(d.URI, Scheme) {
			t.Errorf("uri %s missing scheme", d.URI)
		}
		if d.MimeType != "text/markdown" {
			t.Errorf("mime = %s", d.MimeType)
		}
	}
}

func TestReadByURI(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, text, err := r.Read(Scheme + "overview")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if res.Name != "overview" {
		t.Errorf("name = %s", res.Name)
	}
	if !strings.Contains(text, "Agora Gateway") {
		t.Error("overview content missing")
	}

	if _, _, err := r.Read(Scheme + "missing"); err == nil {
		t.Error("expected error for unknown doc")
	}
	if _, _, err := r.Read("http://wrong/scheme"); err == nil {
		t.Error("expected error for foreign URI")
	}
}

func TestLoadDirOverridesEmbedded(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "overview.md"), []byte("# Custom\n\noverride"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.md"), []byte("# Extra"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	_, text, err := r.Read(Scheme + "overview")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(text, "override") {
		t.Error("directory doc did not override embedded doc")
	}
	if _, _, err := r.Read(Scheme + "extra"); err != nil {
		t.Errorf("extra doc not loaded: %v", err)
	}

	// A missing directory is fine.
	if err := r.LoadDir(filepath.Join(dir, "nope")); err != nil {
		t.Errorf("missing dir should not error: %v", err)
	}
}

func TestHTML(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	html, err := r.HTML("overview")
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(string(html), "<h1") {
		t.Error("expected rendered heading")
	}
}
