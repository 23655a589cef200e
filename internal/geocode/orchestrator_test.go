package geocode

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m25mathews/rainger-poc/internal/metrics"
	"github.com/m25mathews/rainger-poc/internal/resilience"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeAPI) Geocode(_ context.Context, addresses []string) ([]Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, addresses)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Result, len(addresses))
	for i, a := range addresses {
		if strings.HasPrefix(a, "nowhere") {
			continue
		}
		out[i] = Result{Latitude: 40, Longitude: -80, Accuracy: 1, Level: "rooftop", FormattedAddress: a, Found: true}
	}
	return out, nil
}

type memoryCache struct {
	entries   map[string]Result
	saved     []Entry
	lookupErr error
}

func newMemoryCache() *memoryCache { return &memoryCache{entries: make(map[string]Result)} }

func (m *memoryCache) Lookup(_ context.Context, reqs []Request) (map[string]Result, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := make(map[string]Result)
	for _, r := range reqs {
		if res, ok := m.entries[r.Key()]; ok {
			out[r.Key()] = res
		}
	}
	return out, nil
}

func (m *memoryCache) Save(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		m.entries[e.Request.Key()] = e.Result
	}
	m.saved = append(m.saved, entries...)
	return nil
}

func req(street string) Request {
	return Request{Street: street, City: "Olympia", State: "WA", Zip: "98501", Organization: "ACME"}
}

func TestOrchestratorResolve(t *testing.T) {
	api := &fakeAPI{}
	cache := newMemoryCache()
	cache.entries[req("9 Elm Street").Key()] = Result{Latitude: 47, Longitude: -122, Found: true, Level: "rooftop"}

	o := NewOrchestrator(api, cache, Config{}, metrics.New(nil))
	reqs := []Request{req("1 Main Street"), req("9 Elm Street"), req("1 Main Street"), req("nowhere 5")}

	res, err := o.Resolve(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, res, 4)

	require.Len(t, api.calls, 1)
	assert.Equal(t, []string{"1 Main Street Olympia, WA 98501", "nowhere 5 Olympia, WA 98501"}, api.calls[0])

	assert.True(t, res[0].Found)
	assert.Equal(t, res[0], res[2])
	assert.Equal(t, 47.0, res[1].Latitude)
	assert.False(t, res[3].Found)
	assert.Len(t, cache.saved, 2)

	// a second run is answered from the cache
	_, err = o.Resolve(context.Background(), reqs)
	require.NoError(t, err)
	assert.Len(t, api.calls, 1)
}

func TestOrchestratorChunks(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrchestrator(api, nil, Config{ChunkSize: 2}, nil)

	var reqs []Request
	for _, s := range []string{"1 A Street", "2 A Street", "3 A Street", "4 A Street", "5 A Street"} {
		reqs = append(reqs, req(s))
	}
	res, err := o.Resolve(context.Background(), reqs)
	require.NoError(t, err)
	assert.Len(t, res, 5)

	var sizes []int
	for _, c := range api.calls {
		sizes = append(sizes, len(c))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestOrchestratorChunkSizeIsCapped(t *testing.T) {
	o := NewOrchestrator(&fakeAPI{}, nil, Config{ChunkSize: 50000}, nil)
	assert.Equal(t, DefaultChunkSize, o.cfg.ChunkSize)
}

func TestOrchestratorFailures(t *testing.T) {
	t.Run("vendor failure", func(t *testing.T) {
		api := &fakeAPI{err: errors.New("boom")}
		o := NewOrchestrator(api, nil, Config{Retry: resilience.RetryConfig{MaxAttempts: 1}}, metrics.New(nil))
		_, err := o.Resolve(context.Background(), []Request{req("1 Main Street")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("cache failure falls back to vendor", func(t *testing.T) {
		api := &fakeAPI{}
		cache := newMemoryCache()
		cache.lookupErr = errors.New("cache down")
		o := NewOrchestrator(api, cache, Config{}, nil)
		res, err := o.Resolve(context.Background(), []Request{req("1 Main Street")})
		require.NoError(t, err)
		assert.True(t, res[0].Found)
		assert.Len(t, api.calls, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		o := NewOrchestrator(&fakeAPI{}, nil, Config{}, nil)
		res, err := o.Resolve(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}
