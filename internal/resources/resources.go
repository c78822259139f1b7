// ABOUTME: Markdown documentation registry served as MCP resources and HTML docs.
// ABOUTME: Embedded defaults, optionally overridden by a watched directory on disk.

package resources

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/yuin/goldmark"
)

//go:embed docs
var defaultDocs embed.FS

// Scheme prefixes every resource URI.
const Scheme = "agora://docs/"

// Resource describes one readable document.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType"`
}

type entry struct {
	name     string
	markdown string
	embedded bool
}

// Registry holds the document set. Reads are concurrent; directory
// reloads swap entries under the write lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry // keyed by name, without extension
	logger  *slog.Logger
	md      goldmark.Markdown
}

// New loads the embedded default documents.
func New(logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
		md:      goldmark.New(),
	}

	files, err := fs.ReadDir(defaultDocs, "docs")
	if err != nil {
		return nil, fmt.Errorf("read embedded docs: %w", err)
	}
	for _, f := range files {
		data, err := fs.ReadFile(defaultDocs, "docs/"+f.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded doc %s: %w", f.Name(), err)
		}
		name := strings.TrimSuffix(f.Name(), ".md")
		r.entries[name] = &entry{name: name, markdown: string(data), embedded: true}
	}
	return r, nil
}

// LoadDir loads every *.md file from dir, overriding embedded documents
// with the same name. Missing dir is not an error; the embedded set stays.
func (r *Registry) LoadDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read docs dir %s: %w", dir, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return fmt.Errorf("read doc %s: %w", f.Name(), err)
		}
		name := strings.TrimSuffix(f.Name(), ".md")
		r.entries[name] = &entry{name: name, markdown: string(data)}
	}
	r.logger.Info("docs directory loaded", "dir", dir, "docs", len(r.entries))
	return nil
}

// Watch reloads the directory whenever a markdown file changes. Blocks
// until the watcher fails or done is closed.
func (r *Registry) Watch(done <-chan struct{}, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	r.logger.Info("watching docs directory", "dir", dir)

	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.LoadDir(dir); err != nil {
				r.logger.Warn("docs reload failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("docs watcher error", "error", err)
		}
	}
}

// List returns the documents sorted by name.
func (r *Registry) List() []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Resource, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, Resource{
			URI:         Scheme + e.name,
			Name:        e.name,
			Description: firstHeading(e.markdown),
			MimeType:    "text/markdown",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Read returns a document by URI.
func (r *Registry) Read(uri string) (Resource, string, error) {
	name := strings.TrimPrefix(uri, Scheme)
	if name == uri || name == "" {
		return Resource{}, "", fmt.Errorf("unknown resource URI %q", uri)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Resource{}, "", fmt.Errorf("resource %q not found", name)
	}
	return Resource{
		URI:         uri,
		Name:        e.name,
		Description: firstHeading(e.markdown),
		MimeType:    "text/markdown",
	}, e.markdown, nil
}

// HTML renders a document to HTML for the /docs endpoint.
func (r *Registry) HTML(name string) ([]byte, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("doc %q not found", name)
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(e.markdown), &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Names returns the document names sorted, for the docs index page.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// firstHeading pulls the first markdown heading as a description.
func firstHeading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return ""
}
