package lsp

import (
	"path/filepath"
	"sync"

	"github.com/mitchellh/hashstructure"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// URI turns a path into a file URI.
func URI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}

// Document is a source file known to the server. Version starts at 1 and
// grows with every update.
type Document struct {
	Path string
	URI  string

	fs      afero.Fs
	mu      sync.Mutex
	version int
	content string
	hash    uint64
}

func (d *Document) Version() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

func (d *Document) Content() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content
}

// Snapshot returns the version and content together.
func (d *Document) Snapshot() (int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version, d.content
}

// Update replaces the content and bumps the version.
func (d *Document) Update(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(content)
	d.version++
}

// Reload reads the file again. The version only changes when the content
// did, which is reported.
func (d *Document) Reload() (bool, error) {
	data, err := afero.ReadFile(d.fs, d.Path)
	if err != nil {
		return false, errors.Wrapf(err, "reload %s", d.Path)
	}
	h, err := contentHash(string(data))
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if h == d.hash {
		return false, nil
	}
	d.content = string(data)
	d.hash = h
	d.version++
	return true, nil
}

func (d *Document) set(content string) {
	d.content = content
	d.hash, _ = contentHash(content)
}

func contentHash(content string) (uint64, error) {
	return hashstructure.Hash(content, nil)
}

// Store caches documents by absolute path.
type Store struct {
	fs   afero.Fs
	mu   sync.Mutex
	docs map[string]*Document
}

func NewStore(fs afero.Fs) *Store {
	return &Store{
		fs:   fs,
		docs: make(map[string]*Document),
	}
}

// Get returns the cached document for path, reading it on first use.
func (s *Store) Get(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[abs]; ok {
		return doc, nil
	}

	data, err := afero.ReadFile(s.fs, abs)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", abs)
	}
	doc := &Document{
		Path:    abs,
		URI:     URI(abs),
		fs:      s.fs,
		version: 1,
	}
	doc.set(string(data))
	s.docs[abs] = doc
	return doc, nil
}

// Lookup returns the cached document without reading anything.
func (s *Store) Lookup(path string) (*Document, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[abs]
	return doc, ok
}

// Forget drops a document from the cache.
func (s *Store) Forget(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.docs, abs)
	s.mu.Unlock()
}
