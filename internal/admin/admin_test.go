package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/resume-vault/internal/store"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{}

func (staticTokens) Token() (string, error) { return "admin-token", nil }
func (staticTokens) Invalidate(_, _ string) {}

type call struct {
	Method string
	Path   string
	Body   map[string]string
}

// fakeAuthority records every request and serves a mutable user table.
type fakeAuthority struct {
	mu    sync.Mutex
	calls []call
	users []types.User
}

func (f *fakeAuthority) record(r *http.Request) call {
	c := call{Method: r.Method, Path: r.URL.Path}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&c.Body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return c
}

func (f *fakeAuthority) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeAuthority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := f.record(r)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case c.Method == http.MethodGet && (c.Path == "/admin/users" || c.Path == "/delegated/bidders"):
		f.mu.Lock()
		users := append([]types.User{}, f.users...)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(users)
	case c.Method == http.MethodPut && strings.HasSuffix(c.Path, "/password"):
		_, _ = w.Write([]byte(`{"message":"Password updated"}`))
	case c.Method == http.MethodDelete:
		id := strings.TrimPrefix(c.Path, "/admin/users/")
		f.mu.Lock()
		for i, u := range f.users {
			if u.ID == id {
				f.users = append(f.users[:i], f.users[i+1:]...)
				break
			}
		}
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"message":"User deleted"}`))
	default:
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}
}

func newAuthority(t *testing.T, users ...types.User) (*fakeAuthority, *Client) {
	t.Helper()
	fake := &fakeAuthority{users: users}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	sc, err := store.New(srv.URL, staticTokens{}, &store.Options{ValidateResponses: true})
	require.NoError(t, err)
	return fake, New(sc, nil)
}

var (
	bob  = types.User{ID: "u1", Username: "bob", Role: types.RoleBidder}
	dana = types.User{ID: "u2", Username: "dana", Role: types.RoleDeveloper}
)

type confirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f confirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

func alwaysConfirm() Confirmer {
	return confirmFunc(func(context.Context, string) (bool, error) { return true, nil })
}

func TestClient_ListUsers(t *testing.T) {
	_, c := newAuthority(t, bob, dana)
	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.User{bob, dana}, users)
}

func TestClient_ListUsersRejectsUnknownRole(t *testing.T) {
	_, c := newAuthority(t, types.User{ID: "u9", Username: "x", Role: "superuser"})
	_, err := c.ListUsers(context.Background())
	assert.ErrorContains(t, err, "malformed response")
}

func TestClient_AssignedBidders(t *testing.T) {
	fake, c := newAuthority(t, bob)
	users, err := c.AssignedBidders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.User{bob}, users)
	assert.Equal(t, "/delegated/bidders", fake.snapshot()[0].Path)
}

func TestClient_RequestShapes(t *testing.T) {
	tests := []struct {
		name string
		run  func(c *Client) error
		want call
	}{
		{
			name: "create",
			run: func(c *Client) error {
				return c.CreateUser(context.Background(), types.CreateUserRequest{Username: "eve", Password: "pw", Role: types.RoleBidder})
			},
			want: call{Method: http.MethodPost, Path: "/admin/create-user", Body: map[string]string{"username": "eve", "password": "pw", "role": "bidder"}},
		},
		{
			name: "role",
			run:  func(c *Client) error { return c.ChangeRole(context.Background(), "u1", types.RoleDeveloper) },
			want: call{Method: http.MethodPut, Path: "/admin/users/u1/role", Body: map[string]string{"role": "developer"}},
		},
		{
			name: "assign",
			run:  func(c *Client) error { return c.AssignBidder(context.Background(), "u1", "u2") },
			want: call{Method: http.MethodPost, Path: "/admin/assign-bidder", Body: map[string]string{"bidderId": "u1", "developerId": "u2"}},
		},
		{
			name: "password",
			run:  func(c *Client) error { return c.UpdatePassword(context.Background(), "u1", "s3cret") },
			want: call{Method: http.MethodPut, Path: "/admin/users/u1/password", Body: map[string]string{"password": "s3cret"}},
		},
		{
			name: "delete",
			run:  func(c *Client) error { return c.DeleteUser(context.Background(), "u1") },
			want: call{Method: http.MethodDelete, Path: "/admin/users/u1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, c := newAuthority(t)
			require.NoError(t, tt.run(c))
			calls := fake.snapshot()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0])
		})
	}
}

func TestClient_LocalValidation(t *testing.T) {
	fake, c := newAuthority(t)
	ctx := context.Background()

	assert.Error(t, c.CreateUser(ctx, types.CreateUserRequest{Username: "eve", Password: "pw", Role: types.RoleAdmin}))
	assert.Error(t, c.ChangeRole(ctx, "u1", types.RoleAdmin))
	assert.Error(t, c.UpdatePassword(ctx, "u1", ""))
	assert.Error(t, c.AssignBidder(ctx, "u1", ""))
	assert.ErrorIs(t, c.DeleteUser(ctx, ""), ErrEmptyUserID)
	assert.Empty(t, fake.snapshot(), "invalid input never reaches the authority")
}

func TestDirectory_DeleteConfirmation(t *testing.T) {
	fake, c := newAuthority(t, bob, dana)
	ctx := context.Background()

	declined := NewDirectory(c, confirmFunc(func(context.Context, string) (bool, error) { return false, nil }), nil)
	ok, err := declined.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, fake.snapshot())

	failing := NewDirectory(c, confirmFunc(func(context.Context, string) (bool, error) { return false, errors.New("closed") }), nil)
	_, err = failing.Delete(ctx, "u1")
	assert.Error(t, err)
	assert.Empty(t, fake.snapshot())

	dir := NewDirectory(c, alwaysConfirm(), nil)
	ok, err = dir.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []types.User{dana}, dir.Users())

	calls := fake.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodDelete, calls[0].Method)
	assert.Equal(t, "/admin/users", calls[1].Path)
}

func TestDirectory_Developers(t *testing.T) {
	_, c := newAuthority(t, bob, dana)
	dir := NewDirectory(c, alwaysConfirm(), nil)
	require.NoError(t, dir.Refresh(context.Background()))
	assert.Equal(t, []types.User{dana}, dir.Developers())
}

func TestPasswordEditor_OneWritePerBurst(t *testing.T) {
	fake, c := newAuthority(t, bob, dana)
	dir := NewDirectory(c, alwaysConfirm(), nil)
	editor := NewPasswordEditor(dir, WithDelay(50*time.Millisecond))
	defer editor.Close()

	for _, pw := range []string{"a", "ab", "abc"} {
		require.True(t, editor.Edit("u1", pw))
		time.Sleep(5 * time.Millisecond)
	}
	draft, ok := editor.Draft("u1")
	assert.True(t, ok)
	assert.Equal(t, "abc", draft)

	require.Eventually(t, func() bool { return len(fake.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	calls := fake.snapshot()
	require.Len(t, calls, 2, "one write then one refresh")
	assert.Equal(t, call{Method: http.MethodPut, Path: "/admin/users/u1/password", Body: map[string]string{"password": "abc"}}, calls[0])
	assert.Equal(t, call{Method: http.MethodGet, Path: "/admin/users"}, calls[1])

	_, ok = editor.Draft("u1")
	assert.False(t, ok)
	assert.Len(t, dir.Users(), 2)
}

func TestPasswordEditor_UsersAreIndependent(t *testing.T) {
	fake, c := newAuthority(t, bob, dana)
	editor := NewPasswordEditor(NewDirectory(c, alwaysConfirm(), nil), WithDelay(20*time.Millisecond))
	defer editor.Close()

	editor.Edit("u1", "one")
	editor.Edit("u2", "two")

	require.Eventually(t, func() bool { return len(fake.snapshot()) == 4 }, 2*time.Second, 10*time.Millisecond)
	writes := map[string]string{}
	for _, c := range fake.snapshot() {
		if c.Method == http.MethodPut {
			writes[c.Path] = c.Body["password"]
		}
	}
	assert.Equal(t, map[string]string{
		"/admin/users/u1/password": "one",
		"/admin/users/u2/password": "two",
	}, writes)
}

func TestPasswordEditor_CloseDropsPending(t *testing.T) {
	fake, c := newAuthority(t, bob)
	editor := NewPasswordEditor(NewDirectory(c, alwaysConfirm(), nil), WithDelay(time.Hour))

	editor.Edit("u1", "never-sent")
	editor.Close()
	assert.False(t, editor.Edit("u1", "late"))
	assert.Empty(t, fake.snapshot())
}

func TestPasswordEditor_FlushAndErrors(t *testing.T) {
	_, c := newAuthority(t, bob)
	var (
		mu     sync.Mutex
		failed []string
	)
	editor := NewPasswordEditor(NewDirectory(c, alwaysConfirm(), nil),
		WithDelay(time.Hour),
		WithErrorHandler(func(id string, err error) {
			mu.Lock()
			failed = append(failed, id)
			mu.Unlock()
		}))

	defer editor.Close()

	editor.Edit("", "pw")
	require.True(t, editor.Flush(""))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, editor.Flush(""), "nothing left to flush")
}
