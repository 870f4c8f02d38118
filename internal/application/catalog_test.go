package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ground-booking/internal/persistence"
)

type countingCatalog struct {
	mu        sync.Mutex
	resources map[string]Resource
	gets      atomic.Int32
	lists     atomic.Int32
	release   chan struct{}
}

func (c *countingCatalog) GetResource(ctx context.Context, id string) (Resource, error) {
	c.gets.Add(1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return Resource{}, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	resource, ok := c.resources[id]
	if !ok {
		return Resource{}, persistence.ErrNotFound
	}
	return resource, nil
}

func (c *countingCatalog) ListResources(ctx context.Context) ([]Resource, error) {
	c.lists.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Resource, 0, len(c.resources))
	for _, resource := range c.resources {
		out = append(out, resource)
	}
	return out, nil
}

func (c *countingCatalog) set(resource Resource) {
	c.mu.Lock()
	c.resources[resource.ID] = resource
	c.mu.Unlock()
}

func TestCachedCatalogServesRepeatedReadsFromCache(t *testing.T) {
	t.Parallel()

	source := &countingCatalog{resources: map[string]Resource{"G1": {ID: "G1", Name: "Main Oval", SlotCount: 3}}}
	catalog := NewCachedCatalog(source, time.Minute)

	for i := 0; i < 3; i++ {
		resource, err := catalog.GetResource(context.Background(), "G1")
		require.NoError(t, err)
		assert.Equal(t, "Main Oval", resource.Name)
	}
	assert.Equal(t, int32(1), source.gets.Load())

	list, err := catalog.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	list[0].Name = "mutated"

	again, err := catalog.ListResources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Main Oval", again[0].Name)
	assert.Equal(t, int32(1), source.lists.Load())
}

func TestCachedCatalogDoesNotCacheMisses(t *testing.T) {
	t.Parallel()

	source := &countingCatalog{resources: map[string]Resource{}}
	catalog := NewCachedCatalog(source, time.Minute)

	_, err := catalog.GetResource(context.Background(), "G9")
	require.True(t, errors.Is(err, persistence.ErrNotFound))

	source.set(Resource{ID: "G9", Name: "Nets", SlotCount: 6})
	resource, err := catalog.GetResource(context.Background(), "G9")
	require.NoError(t, err)
	assert.Equal(t, 6, resource.SlotCount)
	assert.Equal(t, int32(2), source.gets.Load())
}

func TestCachedCatalogInvalidate(t *testing.T) {
	t.Parallel()

	source := &countingCatalog{resources: map[string]Resource{"G1": {ID: "G1", SlotCount: 2}}}
	catalog := NewCachedCatalog(source, time.Minute)

	_, err := catalog.GetResource(context.Background(), "G1")
	require.NoError(t, err)

	source.set(Resource{ID: "G1", SlotCount: 4})
	catalog.Invalidate()

	resource, err := catalog.GetResource(context.Background(), "G1")
	require.NoError(t, err)
	assert.Equal(t, 4, resource.SlotCount)
}

func TestCachedCatalogSharesConcurrentLoads(t *testing.T) {
	t.Parallel()

	source := &countingCatalog{
		resources: map[string]Resource{"G1": {ID: "G1", SlotCount: 2}},
		release:   make(chan struct{}),
	}
	catalog := NewCachedCatalog(source, time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, err := catalog.GetResource(context.Background(), "G1")
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return source.gets.Load() >= 1 }, time.Second, time.Millisecond)
	close(source.release)
	wg.Wait()

	// Callers arriving after the first load completed hit the cache.
	assert.LessOrEqual(t, source.gets.Load(), int32(callers))
	resource, err := catalog.GetResource(context.Background(), "G1")
	require.NoError(t, err)
	assert.Equal(t, "G1", resource.ID)
}

func TestCachedCatalogLoadSurvivesLeaderCancellation(t *testing.T) {
	t.Parallel()

	source := &countingCatalog{
		resources: map[string]Resource{"G1": {ID: "G1", SlotCount: 2}},
		release:   make(chan struct{}),
	}
	catalog := NewCachedCatalog(source, time.Minute)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := catalog.GetResource(leaderCtx, "G1")
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return source.gets.Load() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		resource Resource
		err      error
	}
	follower := make(chan outcome, 1)
	go func() {
		resource, err := catalog.GetResource(context.Background(), "G1")
		follower <- outcome{resource, err}
	}()

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared load")
	}

	close(source.release)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, "G1", got.resource.ID)
	assert.Equal(t, int32(1), source.gets.Load())

	// The detached load still populated the cache.
	_, err := catalog.GetResource(context.Background(), "G1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.gets.Load())
}
