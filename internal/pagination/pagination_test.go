package pagination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/resume-vault/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	scopeA = types.Scope{Role: types.RoleDeveloper, SubjectID: "bidder-a"}
	scopeB = types.Scope{Role: types.RoleDeveloper, SubjectID: "bidder-b"}
)

func pageFor(t Tuple, totalPages int) *types.Page {
	return &types.Page{
		Items:      []types.Artifact{{Name: t.Scope.SubjectID + "-resume", Date: "2024-01-05"}},
		Page:       t.Page,
		PageSize:   t.PageSize,
		TotalPages: totalPages,
		DateCounts: map[string]int{"2024-01-05": 1},
	}
}

// instantFetcher answers immediately and records every tuple it was asked for.
type instantFetcher struct {
	mu         sync.Mutex
	calls      []Tuple
	totalPages int
	err        error
}

func (f *instantFetcher) List(_ context.Context, s types.Scope, page, pageSize int) (*types.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := Tuple{Scope: s, Page: page, PageSize: pageSize}
	f.calls = append(f.calls, t)
	if f.err != nil {
		return nil, f.err
	}
	return pageFor(t, f.totalPages), nil
}

func (f *instantFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *instantFetcher) last() Tuple {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// gatedFetcher holds every request until the test answers it.
type gatedFetcher struct {
	honorCtx bool
	calls    chan *gatedCall
}

type gatedCall struct {
	tuple Tuple
	ctx   context.Context
	reply chan *types.Page
}

func newGatedFetcher(honorCtx bool) *gatedFetcher {
	return &gatedFetcher{honorCtx: honorCtx, calls: make(chan *gatedCall, 8)}
}

func (g *gatedFetcher) List(ctx context.Context, s types.Scope, page, pageSize int) (*types.Page, error) {
	call := &gatedCall{tuple: Tuple{Scope: s, Page: page, PageSize: pageSize}, ctx: ctx, reply: make(chan *types.Page, 1)}
	g.calls <- call
	if g.honorCtx {
		select {
		case p := <-call.reply:
			return p, nil
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}
	return <-call.reply, nil
}

func (g *gatedFetcher) next(t *testing.T) *gatedCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(time.Second):
		t.Fatal("expected a fetch")
		return nil
	}
}

func TestController_StartsIdleWithoutFetching(t *testing.T) {
	f := &instantFetcher{totalPages: 1}
	c := New(f)
	defer c.Close()

	snap := c.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.False(t, snap.HasScope)
	assert.False(t, c.SetPage(1))
	assert.False(t, c.Refresh())
	require.NoError(t, c.SetPageSize(20))
	c.Wait()
	assert.Equal(t, 0, f.callCount())
}

func TestController_LoadsOnScope(t *testing.T) {
	f := &instantFetcher{totalPages: 3}
	c := New(f, WithPageSize(20))
	defer c.Close()

	var loaded atomic.Int32
	c.OnLoaded(func(Snapshot) { loaded.Add(1) })

	require.NoError(t, c.SetScope(scopeA))
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.Equal(t, Tuple{Scope: scopeA, Page: 1, PageSize: 20}, snap.Tuple)
	assert.Equal(t, 3, snap.TotalPages)
	assert.Equal(t, "bidder-a-resume", snap.Data.Items[0].Name)
	assert.Equal(t, int32(1), loaded.Load())
}

func TestController_SetPageBounds(t *testing.T) {
	f := &instantFetcher{totalPages: 3}
	c := New(f)
	defer c.Close()
	require.NoError(t, c.SetScope(scopeA))
	c.Wait()
	before := c.Snapshot()

	assert.False(t, c.SetPage(0))
	assert.False(t, c.SetPage(4))
	c.Wait()
	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, before, c.Snapshot(), "out-of-range pages leave state unchanged")

	assert.True(t, c.SetPage(3))
	c.Wait()
	assert.Equal(t, Tuple{Scope: scopeA, Page: 3, PageSize: 10}, f.last())
	snap := c.Snapshot()
	assert.Equal(t, 3, snap.Data.Page)
	assert.NotSame(t, before.Data, snap.Data, "items are replaced wholesale")
}

func TestController_SetPageSizeResetsToFirstPage(t *testing.T) {
	f := &instantFetcher{totalPages: 5}
	c := New(f)
	defer c.Close()
	require.NoError(t, c.SetScope(scopeA))
	c.Wait()
	require.True(t, c.SetPage(4))
	c.Wait()

	require.NoError(t, c.SetPageSize(50))
	c.Wait()
	assert.Equal(t, Tuple{Scope: scopeA, Page: 1, PageSize: 50}, f.last())

	assert.Error(t, c.SetPageSize(15))
	assert.Equal(t, 3, f.callCount())
}

func TestController_SubjectChangeResetsToFirstPage(t *testing.T) {
	f := &instantFetcher{totalPages: 5}
	c := New(f)
	defer c.Close()
	require.NoError(t, c.SetScope(scopeA))
	c.Wait()
	require.True(t, c.SetPage(3))
	c.Wait()

	require.NoError(t, c.SetScope(scopeB))
	c.Wait()
	assert.Equal(t, Tuple{Scope: scopeB, Page: 1, PageSize: 10}, f.last())
}

func TestController_StaleResponseIsDiscarded(t *testing.T) {
	for _, order := range []string{"stale-last", "stale-first"} {
		t.Run(order, func(t *testing.T) {
			g := newGatedFetcher(false)
			c := New(g)

			require.NoError(t, c.SetScope(scopeA))
			first := g.next(t)
			require.NoError(t, c.SetScope(scopeB))
			second := g.next(t)

			assert.Equal(t, scopeA, first.tuple.Scope)
			assert.Equal(t, scopeB, second.tuple.Scope)
			assert.ErrorIs(t, context.Cause(first.ctx), ErrSuperseded)

			if order == "stale-first" {
				first.reply <- pageFor(first.tuple, 1)
				second.reply <- pageFor(second.tuple, 1)
			} else {
				second.reply <- pageFor(second.tuple, 1)
				first.reply <- pageFor(first.tuple, 1)
			}
			c.Wait()

			snap := c.Snapshot()
			assert.Equal(t, Loaded, snap.State)
			assert.Equal(t, scopeB, snap.Tuple.Scope)
			assert.Equal(t, "bidder-b-resume", snap.Data.Items[0].Name)
			c.Close()
		})
	}
}

func TestController_FetchError(t *testing.T) {
	boom := errors.New("store unavailable")
	f := &instantFetcher{err: boom}
	c := New(f)
	defer c.Close()

	require.NoError(t, c.SetScope(scopeA))
	c.Wait()
	snap := c.Snapshot()
	assert.Equal(t, Failed, snap.State)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Equal(t, "error", snap.State.String())

	f.mu.Lock()
	f.err = nil
	f.totalPages = 1
	f.mu.Unlock()
	require.True(t, c.Refresh())
	c.Wait()
	assert.Equal(t, Loaded, c.Snapshot().State)
	assert.NoError(t, c.Snapshot().Err)
}

func TestController_EmptyPageIsLoaded(t *testing.T) {
	c := New(fetcherFunc(func(_ context.Context, s types.Scope, page, size int) (*types.Page, error) {
		return &types.Page{Items: []types.Artifact{}, Page: page, PageSize: size, TotalPages: 0}, nil
	}))
	defer c.Close()

	require.NoError(t, c.SetScope(scopeA))
	c.Wait()
	snap := c.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.Empty(t, snap.Data.Items)
	assert.Equal(t, 1, snap.TotalPages)
}

func TestController_ClearScopeAbandonsInFlight(t *testing.T) {
	g := newGatedFetcher(true)
	c := New(g)
	defer c.Close()

	require.NoError(t, c.SetScope(scopeA))
	call := g.next(t)
	c.ClearScope()
	c.Wait()

	assert.ErrorIs(t, context.Cause(call.ctx), ErrSuperseded)
	snap := c.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Nil(t, snap.Data)
	assert.NoError(t, snap.Err, "an abandoned request is not an error")
}

func TestController_CloseDropsLateResults(t *testing.T) {
	g := newGatedFetcher(true)
	c := New(g)
	var loaded atomic.Int32
	c.OnLoaded(func(Snapshot) { loaded.Add(1) })

	require.NoError(t, c.SetScope(scopeA))
	g.next(t)
	c.Close()

	assert.Equal(t, int32(0), loaded.Load())
	assert.ErrorIs(t, c.SetScope(scopeB), ErrClosed)
	assert.False(t, c.SetPage(1))
}

type fetcherFunc func(ctx context.Context, s types.Scope, page, pageSize int) (*types.Page, error)

func (f fetcherFunc) List(ctx context.Context, s types.Scope, page, pageSize int) (*types.Page, error) {
	return f(ctx, s, page, pageSize)
}
