package weights

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/openfluke/digitscope/nn"
)

// LoadFunc produces a bundle, typically by reading and parsing a file.
type LoadFunc func() (*nn.Bundle, error)

// Store loads a model at most once and hands the same bundle to every caller.
//
// Callers that arrive while a load is running wait for it instead of starting their
// own. A failed load is not cached: the next call tries again.
type Store struct {
	load  LoadFunc
	group singleflight.Group

	mu     sync.RWMutex
	bundle *nn.Bundle
}

const loadKey = "model"

// NewStore returns a store that reads the model file at path on first use.
func NewStore(path string) *Store {
	return NewStoreFunc(func() (*nn.Bundle, error) { return LoadFile(path) })
}

// NewStoreFunc returns a store backed by an arbitrary loader.
func NewStoreFunc(load LoadFunc) *Store {
	return &Store{load: load}
}

// NewStaticStore returns a store that already holds b.
func NewStaticStore(b *nn.Bundle) *Store {
	return &Store{bundle: b}
}

// Load returns the cached bundle, loading it if needed. ctx only bounds how long
// this caller waits; an abandoned load still completes for later callers.
func (s *Store) Load(ctx context.Context) (*nn.Bundle, error) {
	if b := s.cached(); b != nil {
		return b, nil
	}

	ch := s.group.DoChan(loadKey, func() (interface{}, error) {
		if b := s.cached(); b != nil {
			return b, nil
		}
		b, err := s.load()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.bundle = b
		s.mu.Unlock()
		return b, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*nn.Bundle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) cached() *nn.Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle
}

// Loaded reports whether a bundle is cached.
func (s *Store) Loaded() bool {
	return s.cached() != nil
}
