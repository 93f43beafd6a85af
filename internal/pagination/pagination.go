// Package pagination owns the page/pageSize/totalPages state of a server-backed
// artifact listing and decides when a refetch is needed.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonathan/resume-vault/internal/types"
	"go.uber.org/zap"
)

// State is the controller's fetch state.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrSuperseded is passed to the fetcher's context when a newer request replaces it.
var ErrSuperseded = errors.New("request superseded")

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("pagination controller closed")

// Fetcher lists one page for a scope. *store.Client implements it.
type Fetcher interface {
	List(ctx context.Context, s types.Scope, page, pageSize int) (*types.Page, error)
}

// Tuple identifies what a request was issued for.
type Tuple struct {
	Scope    types.Scope
	Page     int
	PageSize int
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State      State
	Tuple      Tuple
	HasScope   bool
	TotalPages int
	Data       *types.Page
	Err        error
}

// Controller holds the paging state for one view. Every fetch is tagged with a
// sequence number; a result whose tag is no longer current is discarded, so the
// last issued tuple always wins.
type Controller struct {
	mu         sync.Mutex
	fetcher    Fetcher
	logger     *zap.Logger
	ctx        context.Context
	cancelAll  context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	hasScope   bool
	tuple      Tuple
	totalPages int
	state      State
	data       *types.Page
	err        error
	seq        uint64
	cancelPrev context.CancelCauseFunc
	onLoaded   []func(Snapshot)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithPageSize sets the initial page size. Invalid sizes are ignored.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if types.ValidPageSize(n) {
			c.tuple.PageSize = n
		}
	}
}

// New creates an idle Controller. Nothing is fetched until a scope is set.
func New(fetcher Fetcher, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		fetcher:    fetcher,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancelAll:  cancel,
		tuple:      Tuple{Page: 1, PageSize: types.DefaultPageSize},
		totalPages: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnLoaded registers fn to run after every successful load. It stands in for
// resetting the scroll position to the top.
func (c *Controller) OnLoaded(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLoaded = append(c.onLoaded, fn)
}

// SetScope switches to scope s at page 1 and fetches. Used on mount and on
// subject change.
func (c *Controller) SetScope(s types.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.hasScope = true
	c.tuple.Scope = s
	c.tuple.Page = 1
	c.totalPages = 1
	c.fetchLocked()
	return nil
}

// ClearScope suppresses all fetching, abandons any in-flight request and
// returns to idle.
func (c *Controller) ClearScope() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasScope = false
	c.tuple.Scope = types.Scope{}
	c.tuple.Page = 1
	c.totalPages = 1
	c.state = Idle
	c.data = nil
	c.err = nil
	c.supersedeLocked()
}

// SetPage moves to page n. Outside [1, totalPages] it is a no-op and reports false.
func (c *Controller) SetPage(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.hasScope || n < 1 || n > c.totalPages {
		return false
	}
	c.tuple.Page = n
	c.fetchLocked()
	return true
}

// SetPageSize changes the page size, resets to page 1 and refetches.
func (c *Controller) SetPageSize(n int) error {
	if !types.ValidPageSize(n) {
		return fmt.Errorf("page size %d not in %v", n, types.PageSizes)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.tuple.PageSize = n
	c.tuple.Page = 1
	if c.hasScope {
		c.fetchLocked()
	}
	return nil
}

// Refresh refetches the current tuple.
func (c *Controller) Refresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.hasScope {
		return false
	}
	c.fetchLocked()
	return true
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:      c.state,
		Tuple:      c.tuple,
		HasScope:   c.hasScope,
		TotalPages: c.totalPages,
		Data:       c.data,
		Err:        c.err,
	}
}

// Wait blocks until every issued fetch has finished and been applied or discarded.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close abandons all in-flight requests. Results that arrive later are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.supersedeLocked()
	c.mu.Unlock()
	c.cancelAll()
	c.wg.Wait()
}

// supersedeLocked invalidates the current tag and cancels its request.
func (c *Controller) supersedeLocked() {
	c.seq++
	if c.cancelPrev != nil {
		c.cancelPrev(ErrSuperseded)
		c.cancelPrev = nil
	}
}

func (c *Controller) fetchLocked() {
	c.supersedeLocked()
	tag := c.seq
	tuple := c.tuple
	ctx, cancel := context.WithCancelCause(c.ctx)
	c.cancelPrev = cancel
	c.state = Loading
	c.err = nil

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel(nil)
		page, err := c.fetcher.List(ctx, tuple.Scope, tuple.Page, tuple.PageSize)
		c.apply(tag, tuple, page, err)
	}()
}

func (c *Controller) apply(tag uint64, tuple Tuple, page *types.Page, err error) {
	c.mu.Lock()
	if c.closed || tag != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding stale page",
			zap.String("scope", tuple.Scope.String()),
			zap.Int("page", tuple.Page),
			zap.Int("page_size", tuple.PageSize))
		return
	}
	c.cancelPrev = nil

	if err != nil {
		c.state = Failed
		c.err = err
		c.mu.Unlock()
		c.logger.Warn("page fetch failed", zap.String("scope", tuple.Scope.String()), zap.Error(err))
		return
	}

	c.state = Loaded
	c.data = page
	c.totalPages = max(page.TotalPages, 1)
	snap := c.snapshotLocked()
	listeners := append([]func(Snapshot){}, c.onLoaded...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
