package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/infrastructure/provider"
)

// fakeEmbedder maps image bytes to raw vectors and normalizes them.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int32
}

func (f *fakeEmbedder) GetOrCompute(_ context.Context, data []byte) (embedding.Vector, error) {
	f.calls.Add(1)
	raw, ok := f.vectors[string(data)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", embedding.ErrInvalidImage, data)
	}
	return embedding.Normalize(raw)
}

// fakeFetcher serves bytes per URL.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	hits   map[string]int
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	f := &fakeFetcher{bodies: make(map[string][]byte), hits: make(map[string]int)}
	for url, body := range bodies {
		f.bodies[url] = []byte(body)
	}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[url]++
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: status 404", provider.ErrFetch, url)
	}
	return body, nil
}

// memoryIndexStore keeps one index in memory.
type memoryIndexStore struct {
	index *catalog.Index
	loads int
	err   error
	saves int
}

func (s *memoryIndexStore) Exists() bool { return s.index != nil }

func (s *memoryIndexStore) Save(index catalog.Index) error {
	s.saves++
	s.index = &index
	return nil
}

func (s *memoryIndexStore) Load() (catalog.Index, error) {
	s.loads++
	if s.err != nil {
		return catalog.Index{}, s.err
	}
	if s.index == nil {
		return catalog.Index{}, catalog.ErrIndexNotFound
	}
	return *s.index, nil
}

// memoryCardStore keeps cards in a map.
type memoryCardStore struct {
	cards map[string]catalog.Card
}

func (s *memoryCardStore) Get(_ context.Context, id string) (catalog.Card, error) {
	c, ok := s.cards[id]
	if !ok {
		return catalog.Card{}, fmt.Errorf("%w: %s", catalog.ErrCardNotFound, id)
	}
	return c, nil
}

func (s *memoryCardStore) GetMany(_ context.Context, ids []string) (map[string]catalog.Card, error) {
	out := make(map[string]catalog.Card)
	for _, id := range ids {
		if c, ok := s.cards[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *memoryCardStore) SaveAll(_ context.Context, cards []catalog.Card) error {
	for _, c := range cards {
		s.cards[c.ID] = c
	}
	return nil
}
