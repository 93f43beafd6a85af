package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-vault/internal/types"
)

// User is an account row.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // Never serialize to JSON
	Role         types.Role `json:"role"`
	DeveloperID  string     `json:"developerId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Public strips the password hash.
func (u *User) Public() types.User {
	return types.User{ID: u.ID, Username: u.Username, Role: u.Role, DeveloperID: u.DeveloperID}
}

// Users is the account and assignment repository.
type Users interface {
	CreateUser(ctx context.Context, username, passwordHash string, role types.Role) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListAssignedBidders(ctx context.Context, developerID string) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
	SetRole(ctx context.Context, id string, role types.Role) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	Assign(ctx context.Context, bidderID, developerID string) error
}

// ErrUserNotFound indicates user was not found
type ErrUserNotFound struct {
	ID string
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.ID)
}

// ErrUsernameTaken indicates the username is already registered
type ErrUsernameTaken struct {
	Username string
}

func (e *ErrUsernameTaken) Error() string {
	return fmt.Sprintf("username already taken: %s", e.Username)
}

// ErrInvalidAssignment indicates an assignment between the wrong roles
type ErrInvalidAssignment struct {
	Reason string
}

func (e *ErrInvalidAssignment) Error() string {
	return "invalid assignment: " + e.Reason
}

func checkAssignment(bidder, developer *User) error {
	if bidder.Role != types.RoleBidder {
		return &ErrInvalidAssignment{Reason: bidder.Username + " is not a bidder"}
	}
	if developer.Role != types.RoleDeveloper {
		return &ErrInvalidAssignment{Reason: developer.Username + " is not a developer"}
	}
	return nil
}

// Memory is an in-process Users implementation.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*User
	now   func() time.Time
}

var _ Users = (*Memory)(nil)

// NewMemory creates an empty repository.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]*User), now: time.Now}
}

func (m *Memory) CreateUser(_ context.Context, username, passwordHash string, role types.Role) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return nil, &ErrUsernameTaken{Username: username}
		}
	}
	u := &User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash, Role: role, CreatedAt: m.now()}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, &ErrUserNotFound{ID: id}
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, &ErrUserNotFound{ID: username}
}

func (m *Memory) list(keep func(*User) bool) []User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []User{}
	for _, u := range m.users {
		if keep(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (m *Memory) ListUsers(context.Context) ([]User, error) {
	return m.list(func(*User) bool { return true }), nil
}

func (m *Memory) ListAssignedBidders(_ context.Context, developerID string) ([]User, error) {
	return m.list(func(u *User) bool {
		return u.Role == types.RoleBidder && u.DeveloperID != "" && u.DeveloperID == developerID
	}), nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return &ErrUserNotFound{ID: id}
	}
	delete(m.users, id)
	m.releaseLocked(id)
	return nil
}

func (m *Memory) releaseLocked(developerID string) {
	for _, u := range m.users {
		if u.DeveloperID == developerID {
			u.DeveloperID = ""
		}
	}
}

func (m *Memory) SetRole(_ context.Context, id string, role types.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return &ErrUserNotFound{ID: id}
	}
	u.Role = role
	if role != types.RoleBidder {
		u.DeveloperID = ""
	}
	if role != types.RoleDeveloper {
		m.releaseLocked(id)
	}
	return nil
}

func (m *Memory) SetPassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return &ErrUserNotFound{ID: id}
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *Memory) Assign(_ context.Context, bidderID, developerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bidder, ok := m.users[bidderID]
	if !ok {
		return &ErrUserNotFound{ID: bidderID}
	}
	developer, ok := m.users[developerID]
	if !ok {
		return &ErrUserNotFound{ID: developerID}
	}
	if err := checkAssignment(bidder, developer); err != nil {
		return err
	}
	bidder.DeveloperID = developerID
	return nil
}
