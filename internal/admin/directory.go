package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/resume-vault/internal/debounce"
	"github.com/jonathan/resume-vault/internal/types"
	"go.uber.org/zap"
)

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Directory is the administrator's user table. Every mutation is followed by a
// refresh of the whole list; when refreshes overlap the last one issued wins.
type Directory struct {
	client  *Client
	confirm Confirmer
	logger  *zap.Logger

	mu    sync.Mutex
	users []types.User
	seq   uint64
}

// NewDirectory creates an empty Directory. Call Refresh to load it.
func NewDirectory(client *Client, confirm Confirmer, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{client: client, confirm: confirm, logger: logger, users: []types.User{}}
}

// Refresh reloads the user list. A result that was overtaken by a later
// Refresh is dropped.
func (d *Directory) Refresh(ctx context.Context) error {
	d.mu.Lock()
	d.seq++
	tag := d.seq
	d.mu.Unlock()

	users, err := d.client.ListUsers(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if tag != d.seq {
		d.logger.Debug("discarding stale user list")
		return nil
	}
	if err != nil {
		return err
	}
	d.users = users
	return nil
}

// Users returns the last loaded user list.
func (d *Directory) Users() []types.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]types.User(nil), d.users...)
}

// Developers returns the developers in the last loaded list, the choices
// offered when assigning a bidder.
func (d *Directory) Developers() []types.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	var devs []types.User
	for _, u := range d.users {
		if u.Role == types.RoleDeveloper {
			devs = append(devs, u)
		}
	}
	return devs
}

// Create adds an account and refreshes.
func (d *Directory) Create(ctx context.Context, req types.CreateUserRequest) error {
	if err := d.client.CreateUser(ctx, req); err != nil {
		return err
	}
	return d.Refresh(ctx)
}

// Delete removes an account after confirmation. Declining sends nothing.
func (d *Directory) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := d.confirm.Confirm(ctx, "Are you sure you want to delete this user?")
	if err != nil {
		return false, fmt.Errorf("confirm delete: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := d.client.DeleteUser(ctx, id); err != nil {
		return false, err
	}
	return true, d.Refresh(ctx)
}

// ChangeRole switches an account's role and refreshes.
func (d *Directory) ChangeRole(ctx context.Context, id string, role types.Role) error {
	if err := d.client.ChangeRole(ctx, id, role); err != nil {
		return err
	}
	return d.Refresh(ctx)
}

// Assign assigns a bidder to a developer and refreshes.
func (d *Directory) Assign(ctx context.Context, bidderID, developerID string) error {
	if err := d.client.AssignBidder(ctx, bidderID, developerID); err != nil {
		return err
	}
	return d.Refresh(ctx)
}

// PasswordEditor turns a stream of keystroke-level password edits into one
// write per user: each edit restarts that user's delay, and only the value
// present when the delay expires is sent. The directory is refreshed after the
// write completes.
type PasswordEditor struct {
	dir     *Directory
	sched   *debounce.Scheduler
	delay   time.Duration
	timeout time.Duration
	onError func(userID string, err error)
	logger  *zap.Logger

	mu     sync.Mutex
	drafts map[string]string
}

// EditorOption configures a PasswordEditor.
type EditorOption func(*PasswordEditor)

// WithDelay overrides the debounce window.
func WithDelay(d time.Duration) EditorOption {
	return func(e *PasswordEditor) { e.delay = d }
}

// WithWriteTimeout bounds each password write and its refresh.
func WithWriteTimeout(d time.Duration) EditorOption {
	return func(e *PasswordEditor) { e.timeout = d }
}

// WithErrorHandler receives failed writes. Without one they are only logged.
func WithErrorHandler(fn func(userID string, err error)) EditorOption {
	return func(e *PasswordEditor) { e.onError = fn }
}

// NewPasswordEditor creates an editor writing through dir.
func NewPasswordEditor(dir *Directory, opts ...EditorOption) *PasswordEditor {
	e := &PasswordEditor{
		dir:     dir,
		sched:   debounce.New(),
		delay:   debounce.DefaultDelay,
		timeout: 30 * time.Second,
		logger:  dir.logger,
		drafts:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Edit records the current text of userID's password field.
func (e *PasswordEditor) Edit(userID, password string) bool {
	e.mu.Lock()
	e.drafts[userID] = password
	e.mu.Unlock()
	return e.sched.Schedule(userID, func() { e.write(userID, password) }, e.delay)
}

// Draft returns the unsaved value for userID, if an edit is pending.
func (e *PasswordEditor) Draft(userID string) (string, bool) {
	if !e.sched.Pending(userID) {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pw, ok := e.drafts[userID]
	return pw, ok
}

// Flush writes userID's pending edit now instead of waiting for the delay.
func (e *PasswordEditor) Flush(userID string) bool {
	return e.sched.Flush(userID)
}

// Close drops pending edits and waits for writes already in progress.
func (e *PasswordEditor) Close() {
	e.sched.Stop()
}

func (e *PasswordEditor) write(userID, password string) {
	e.mu.Lock()
	if e.drafts[userID] == password {
		delete(e.drafts, userID)
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := e.dir.client.UpdatePassword(ctx, userID, password); err != nil {
		e.fail(userID, err)
		return
	}
	e.logger.Info("password updated", zap.String("user_id", userID))
	if err := e.dir.Refresh(ctx); err != nil {
		e.fail(userID, err)
	}
}

func (e *PasswordEditor) fail(userID string, err error) {
	e.logger.Warn("password update failed", zap.String("user_id", userID), zap.Error(err))
	if e.onError != nil {
		e.onError(userID, err)
	}
}
