// Package dashboard composes scope, paging, filtering and retrieval into the
// artifact view a bidder or developer works with.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonathan/resume-vault/internal/filter"
	"github.com/jonathan/resume-vault/internal/pagination"
	"github.com/jonathan/resume-vault/internal/retrieval"
	"github.com/jonathan/resume-vault/internal/scope"
	"github.com/jonathan/resume-vault/internal/types"
	"go.uber.org/zap"
)

// Store is the subset of the artifact store client a dashboard uses.
type Store interface {
	pagination.Fetcher
	retrieval.Source
	Remove(ctx context.Context, s types.Scope, name string) error
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Dashboard is one open artifact view. It owns its pagination controller and
// filter criteria; two dashboards never share mutable state.
type Dashboard struct {
	store   Store
	ctrl    *pagination.Controller
	orch    *retrieval.Orchestrator
	confirm Confirmer
	logger  *zap.Logger

	mu         sync.Mutex
	criteria   types.FilterCriteria
	suppressed bool
}

// Options configures a Dashboard.
type Options struct {
	PageSize       int
	Logger         *zap.Logger
	RetrievalOpts  []retrieval.Option
	PaginationOpts []pagination.Option
}

// New creates a Dashboard with no scope. Call Mount or Open to start loading.
func New(store Store, saver retrieval.Saver, confirm Confirmer, opts *Options) *Dashboard {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := opts.PageSize
	if !types.ValidPageSize(pageSize) {
		pageSize = types.DefaultPageSize
	}

	pagOpts := append([]pagination.Option{pagination.WithLogger(logger), pagination.WithPageSize(pageSize)}, opts.PaginationOpts...)
	retOpts := append([]retrieval.Option{retrieval.WithLogger(logger)}, opts.RetrievalOpts...)

	return &Dashboard{
		store:   store,
		ctrl:    pagination.New(store, pagOpts...),
		orch:    retrieval.New(store, saver, retOpts...),
		confirm: confirm,
		logger:  logger,
	}
}

// Mount resolves the principal's scope and starts loading it. A developer
// without a selected subject leaves the dashboard suppressed, which is not an
// error: nothing is fetched until a subject is chosen.
func (d *Dashboard) Mount(p types.Principal, selectedSubjectID string) error {
	s, err := scope.Resolve(p, selectedSubjectID)
	if errors.Is(err, scope.ErrSuppressed) {
		d.suppress()
		return nil
	}
	if err != nil {
		return err
	}
	return d.Open(s)
}

// Open loads scope s from page 1.
func (d *Dashboard) Open(s types.Scope) error {
	d.mu.Lock()
	d.suppressed = false
	d.mu.Unlock()
	return d.ctrl.SetScope(s)
}

func (d *Dashboard) suppress() {
	d.mu.Lock()
	d.suppressed = true
	d.mu.Unlock()
	d.ctrl.ClearScope()
}

// Suppressed reports whether the view is waiting for a subject selection.
func (d *Dashboard) Suppressed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

// Close abandons the view and every request it has in flight.
func (d *Dashboard) Close() {
	d.ctrl.Close()
}

// OnLoaded registers fn to run whenever a new page is shown.
func (d *Dashboard) OnLoaded(fn func(pagination.Snapshot)) {
	d.ctrl.OnLoaded(fn)
}

// SetPage moves to page n; out of range is a no-op.
func (d *Dashboard) SetPage(n int) bool { return d.ctrl.SetPage(n) }

// SetPageSize changes the page size and returns to page 1.
func (d *Dashboard) SetPageSize(n int) error { return d.ctrl.SetPageSize(n) }

// Refresh refetches the current page.
func (d *Dashboard) Refresh() bool { return d.ctrl.Refresh() }

// Wait blocks until in-flight fetches have been applied or discarded.
func (d *Dashboard) Wait() { d.ctrl.Wait() }

// Snapshot returns the paging state.
func (d *Dashboard) Snapshot() pagination.Snapshot { return d.ctrl.Snapshot() }

// SetCriteria replaces the filter criteria. Filtering never refetches.
func (d *Dashboard) SetCriteria(c types.FilterCriteria) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("filter: %s", types.ValidationMessage(err))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.criteria = c
	return nil
}

// ResetCriteria clears every filter.
func (d *Dashboard) ResetCriteria() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.criteria = types.FilterCriteria{}
}

// Criteria returns the current filter criteria.
func (d *Dashboard) Criteria() types.FilterCriteria {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.criteria
}

// Filtered returns the current page's artifacts that match the criteria.
func (d *Dashboard) Filtered() []types.Artifact {
	snap := d.ctrl.Snapshot()
	if snap.Data == nil {
		return []types.Artifact{}
	}
	return filter.Apply(snap.Data.Items, d.Criteria())
}

// FilteredCounts counts the filtered rows per date. It is informational; the
// archive labels use the store's page-level counts.
func (d *Dashboard) FilteredCounts() map[string]int {
	return filter.CountByDate(d.Filtered())
}

// Rows returns the filtered rows with the last row of each same-date run
// carrying the archive label.
func (d *Dashboard) Rows() []types.ArtifactRow {
	snap := d.ctrl.Snapshot()
	if snap.Data == nil {
		return []types.ArtifactRow{}
	}
	return BuildRows(filter.Apply(snap.Data.Items, d.Criteria()), snap.Data.DateCounts)
}

// BuildRows marks date-run boundaries in filtered and labels them with the
// page-level count for that date.
func BuildRows(filtered []types.Artifact, dateCounts map[string]int) []types.ArtifactRow {
	rows := make([]types.ArtifactRow, len(filtered))
	for i, a := range filtered {
		rows[i].Artifact = a
		if i == len(filtered)-1 || filtered[i+1].Date != a.Date {
			rows[i].LastOfDate = true
			rows[i].ArchiveLabel = ArchiveLabel(a.Date, dateCounts[a.Date])
		}
	}
	return rows
}

// ArchiveLabel is the caption of a whole-day download action.
func ArchiveLabel(date string, total int) string {
	return fmt.Sprintf("Download All for %s (Total %d)", date, total)
}

func (d *Dashboard) activeScope() (types.Scope, error) {
	snap := d.ctrl.Snapshot()
	if !snap.HasScope {
		return types.Scope{}, scope.ErrSuppressed
	}
	return snap.Tuple.Scope, nil
}

// Delete removes name after the user confirms. Declining is a silent no-op that
// sends nothing. After a successful delete the current page is refetched once
// rather than spliced locally.
func (d *Dashboard) Delete(ctx context.Context, name string) (bool, error) {
	s, err := d.activeScope()
	if err != nil {
		return false, err
	}
	ok, err := d.confirm.Confirm(ctx, fmt.Sprintf("Are you sure you want to delete %q?", name))
	if err != nil {
		return false, fmt.Errorf("confirm delete: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := d.store.Remove(ctx, s, name); err != nil {
		return false, err
	}
	d.logger.Info("artifact deleted", zap.String("scope", s.String()), zap.String("name", name))
	d.ctrl.Refresh()
	return true, nil
}

// Download saves one file of an artifact as name+ext.
func (d *Dashboard) Download(ctx context.Context, name string, ext types.Extension) (*retrieval.Result, error) {
	s, err := d.activeScope()
	if err != nil {
		return nil, err
	}
	return d.orch.DownloadOne(ctx, s, name, ext)
}

// DownloadArchive saves every artifact of date as {date}-resumes.zip. It does
// not depend on the current filter or page.
func (d *Dashboard) DownloadArchive(ctx context.Context, date string) (*retrieval.Result, error) {
	s, err := d.activeScope()
	if err != nil {
		return nil, err
	}
	return d.orch.DownloadArchive(ctx, s, date)
}

// DownloadArchives saves several dates, one request at a time.
func (d *Dashboard) DownloadArchives(ctx context.Context, dates []string) ([]retrieval.DateResult, error) {
	s, err := d.activeScope()
	if err != nil {
		return nil, err
	}
	return d.orch.DownloadArchives(ctx, s, dates), nil
}
