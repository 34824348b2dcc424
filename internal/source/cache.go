package source

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Faultbox/bimscene/pkg/scene"
)

// CachedRepository keeps fetched model trees in memory. Concurrent fetches
// of the same model share a single upstream call. Failed fetches are not
// cached.
//
// The shared upstream call is detached from any single caller: it keeps the
// first caller's context values but not its cancellation, and is bounded by
// the repository timeout instead. Each caller still stops waiting when its
// own context is done.
type CachedRepository struct {
	repo    Repository
	timeout time.Duration
	group   singleflight.Group

	mu    sync.RWMutex
	trees map[string]*scene.Node
}

// NewCachedRepository wraps repo with a cache. A positive timeout bounds
// each upstream fetch.
func NewCachedRepository(repo Repository, timeout time.Duration) *CachedRepository {
	return &CachedRepository{
		repo:    repo,
		timeout: timeout,
		trees:   make(map[string]*scene.Node),
	}
}

// Fetch returns the cached tree or fetches it from the wrapped repository.
func (c *CachedRepository) Fetch(ctx context.Context, modelID string) (*scene.Node, error) {
	c.mu.RLock()
	root, ok := c.trees[modelID]
	c.mu.RUnlock()
	if ok {
		return root, nil
	}

	ch := c.group.DoChan(modelID, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.timeout)
			defer cancel()
		}

		root, err := c.repo.Fetch(fetchCtx, modelID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.trees[modelID] = root
		c.mu.Unlock()
		return root, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*scene.Node), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops a model so the next Fetch reloads it.
func (c *CachedRepository) Invalidate(modelID string) {
	c.mu.Lock()
	delete(c.trees, modelID)
	c.mu.Unlock()
	c.group.Forget(modelID)
}

// Len returns the number of cached models.
func (c *CachedRepository) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.trees)
}
