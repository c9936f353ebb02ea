package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yksoni-monk/poke/domain/catalog"
)

type fakeStamper struct {
	mu    sync.Mutex
	stamp time.Time
	ok    bool
}

func (f *fakeStamper) Stamp() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stamp, f.ok
}

func (f *fakeStamper) set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamp, f.ok = t, true
}

func newLoadedMatcher(t *testing.T) *Matcher {
	t.Helper()
	index, err := catalog.NewIndex(2, []string{"a"}, []int{0}, []float32{1, 0})
	require.NoError(t, err)
	m := NewMatcher(nil, &memoryIndexStore{index: &index})
	_, err = m.Engine()
	require.NoError(t, err)
	return m
}

func TestIndexReloader_Check(t *testing.T) {
	stamper := &fakeStamper{}
	m := newLoadedMatcher(t)
	r := NewIndexReloader(time.Minute, stamper, m, nil)

	assert.False(t, r.Check(), "no index yet")

	stamper.set(time.Unix(100, 0))
	assert.True(t, r.Check(), "index appeared")
	assert.Nil(t, m.engine)

	_, err := m.Engine()
	require.NoError(t, err)
	assert.False(t, r.Check(), "unchanged")
	assert.NotNil(t, m.engine)

	stamper.set(time.Unix(200, 0))
	assert.True(t, r.Check(), "rebuilt")
	assert.Nil(t, m.engine)
}

func TestIndexReloader_StartupStampIsBaseline(t *testing.T) {
	stamper := &fakeStamper{stamp: time.Unix(100, 0), ok: true}
	r := NewIndexReloader(time.Minute, stamper, newLoadedMatcher(t), nil)

	assert.False(t, r.Check())
}

func TestIndexReloader_StartStop(t *testing.T) {
	stamper := &fakeStamper{}
	m := newLoadedMatcher(t)
	r := NewIndexReloader(5*time.Millisecond, stamper, m, nil)

	r.Start(context.Background())
	stamper.set(time.Unix(100, 0))

	assert.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.engine == nil
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
}

func TestIndexReloader_Disabled(t *testing.T) {
	r := NewIndexReloader(0, &fakeStamper{}, newLoadedMatcher(t), nil)

	r.Start(context.Background())
	assert.Nil(t, r.cancel)
	r.Stop()
}
