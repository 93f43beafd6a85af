package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonathan/resume-vault/internal/scope"
	"github.com/jonathan/resume-vault/internal/types"
)

// BidderLister lists the bidders assigned to the signed-in developer.
// admin.Client implements it.
type BidderLister interface {
	AssignedBidders(ctx context.Context) ([]types.User, error)
}

// Developer is a developer's view: a subject selector that owns one Dashboard
// and re-parameterizes it whenever the selected bidder changes.
type Developer struct {
	principal types.Developer
	lister    BidderLister
	dash      *Dashboard

	mu       sync.Mutex
	selected string
	bidders  []types.User
}

// NewDeveloper creates a developer view over dash. The dashboard starts
// suppressed until a bidder is selected.
func NewDeveloper(p types.Developer, lister BidderLister, dash *Dashboard) (*Developer, error) {
	v := &Developer{principal: p, lister: lister, dash: dash}
	if err := dash.Mount(p, ""); err != nil {
		return nil, err
	}
	return v, nil
}

// Dashboard returns the embedded artifact view.
func (v *Developer) Dashboard() *Dashboard {
	return v.dash
}

// LoadBidders fetches the assignment list offered in the selector.
func (v *Developer) LoadBidders(ctx context.Context) ([]types.User, error) {
	bidders, err := v.lister.AssignedBidders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load assigned bidders: %w", err)
	}
	v.mu.Lock()
	v.bidders = bidders
	v.mu.Unlock()
	return bidders, nil
}

// Bidders returns the last loaded assignment list.
func (v *Developer) Bidders() []types.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]types.User(nil), v.bidders...)
}

// SelectSubject switches the dashboard to bidderID at page 1. An empty id
// suppresses the dashboard again. The store remains the authority on whether
// the developer may see that bidder.
func (v *Developer) SelectSubject(bidderID string) error {
	v.mu.Lock()
	v.selected = bidderID
	v.mu.Unlock()

	s, err := scope.Resolve(v.principal, bidderID)
	if err != nil {
		v.dash.suppress()
		if errors.Is(err, scope.ErrSuppressed) {
			return nil
		}
		return err
	}
	return v.dash.Open(s)
}

// Selected returns the selected bidder id, or "" when none is selected.
func (v *Developer) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Close closes the embedded dashboard.
func (v *Developer) Close() {
	v.dash.Close()
}
