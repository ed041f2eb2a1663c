// Package skin provides the pluggable resource-theming accessor the client
// queries for drawables, samples and textures. It is a plain strategy over a
// resource store and carries none of the updater's concurrency concerns.
package skin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by lookups on a closed skin.
var ErrClosed = errors.New("skin is closed")

// Resources is the store a skin reads its assets from. The store is acquired
// when the skin is constructed and released by the skin's Close.
type Resources interface {
	Open(name string) (io.ReadCloser, error)
	Close() error
}

// Skin resolves themed assets by name. Lookups are plain pass-throughs to the
// underlying store; the only lifecycle concern is the deterministic,
// idempotent release of that store.
type Skin struct {
	name string
	res  Resources

	mu       sync.Mutex
	closed   bool
	closeErr error
}

func New(name string, res Resources) *Skin {
	return &Skin{name: name, res: res}
}

func (s *Skin) Name() string {
	return s.name
}

func (s *Skin) Drawable(name string) (io.ReadCloser, error) {
	return s.open(filepath.Join("drawables", name))
}

func (s *Skin) Sample(name string) (io.ReadCloser, error) {
	return s.open(filepath.Join("samples", name))
}

func (s *Skin) Texture(name string) (io.ReadCloser, error) {
	return s.open(filepath.Join("textures", name))
}

func (s *Skin) open(name string) (io.ReadCloser, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	rc, err := s.res.Open(name)
	if err != nil {
		return nil, fmt.Errorf("skin %s: open %s: %w", s.name, name, err)
	}
	return rc, nil
}

// Close releases the underlying resource store. Safe to call more than once;
// only the first call reaches the store.
func (s *Skin) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	s.closeErr = s.res.Close()
	return s.closeErr
}

// DirResources serves skin assets from a directory tree.
type DirResources struct {
	root string
}

func NewDirResources(root string) *DirResources {
	return &DirResources{root: root}
}

func (d *DirResources) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(d.root, filepath.Clean(name)))
}

func (d *DirResources) Close() error {
	return nil
}
