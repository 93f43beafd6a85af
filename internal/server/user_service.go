package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/resume-vault/internal/config"
	"github.com/jonathan/resume-vault/internal/db"
	"github.com/jonathan/resume-vault/internal/types"
)

// UserService provides business logic for accounts and bidder assignments
type UserService struct {
	users          db.Users
	passwordConfig *config.PasswordConfig
}

// NewUserService creates a new UserService with the given dependencies
func NewUserService(users db.Users, passwordConfig *config.PasswordConfig) *UserService {
	return &UserService{
		users:          users,
		passwordConfig: passwordConfig,
	}
}

func publicUsers(in []db.User) []types.User {
	out := make([]types.User, 0, len(in))
	for i := range in {
		out = append(out, in[i].Public())
	}
	return out
}

// SignIn authenticates a user and returns the principal to issue a token for
func (s *UserService) SignIn(ctx context.Context, req *types.SignInRequest) (types.Principal, *types.User, error) {
	u, err := s.users.GetUserByUsername(ctx, req.Username)
	var missing *db.ErrUserNotFound
	if errors.As(err, &missing) {
		// Security: same answer for unknown user and wrong password
		return nil, nil, &ErrInvalidCredentials{}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	if !s.passwordConfig.VerifyPassword(req.Password, u.PasswordHash) {
		return nil, nil, &ErrInvalidCredentials{}
	}

	p, err := types.NewPrincipal(u.Role, u.ID, u.Username)
	if err != nil {
		return nil, nil, err
	}
	pub := u.Public()
	return p, &pub, nil
}

// Resolve reloads the account behind a token so that deleted accounts and
// role changes take effect before the token expires.
func (s *UserService) Resolve(ctx context.Context, p types.Principal) (types.Principal, error) {
	u, err := s.users.GetUser(ctx, p.ID())
	var missing *db.ErrUserNotFound
	if errors.As(err, &missing) {
		return nil, &ErrInvalidCredentials{}
	}
	if err != nil {
		return nil, err
	}
	return types.NewPrincipal(u.Role, u.ID, u.Username)
}

// CreateUser hashes the password and stores a new account
func (s *UserService) CreateUser(ctx context.Context, req *types.CreateUserRequest) (*types.User, error) {
	hash, err := s.passwordConfig.HashPassword(req.Password)
	if err != nil {
		return nil, &ErrValidation{Message: err.Error()}
	}
	u, err := s.users.CreateUser(ctx, req.Username, hash, req.Role)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// SetPassword replaces a user's password
func (s *UserService) SetPassword(ctx context.Context, id, password string) error {
	hash, err := s.passwordConfig.HashPassword(password)
	if err != nil {
		return &ErrValidation{Message: err.Error()}
	}
	return s.users.SetPassword(ctx, id, hash)
}

// SetRole switches a non-admin account between bidder and developer
func (s *UserService) SetRole(ctx context.Context, id string, role types.Role) error {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == types.RoleAdmin {
		return &ErrValidation{Message: "administrator roles cannot be changed"}
	}
	return s.users.SetRole(ctx, id, role)
}

// DeleteUser removes an account. Administrators cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actor types.Principal, id string) error {
	if actor.ID() == id {
		return &ErrValidation{Message: "administrators cannot delete their own account"}
	}
	return s.users.DeleteUser(ctx, id)
}

// ListUsers returns every account
func (s *UserService) ListUsers(ctx context.Context) ([]types.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return publicUsers(users), nil
}

// AssignedBidders returns the bidders assigned to developerID
func (s *UserService) AssignedBidders(ctx context.Context, developerID string) ([]types.User, error) {
	users, err := s.users.ListAssignedBidders(ctx, developerID)
	if err != nil {
		return nil, err
	}
	return publicUsers(users), nil
}

// Assign assigns a bidder to a developer
func (s *UserService) Assign(ctx context.Context, req *types.AssignRequest) error {
	return s.users.Assign(ctx, req.BidderID, req.DeveloperID)
}

// CanView reports whether p may read and manage subject's artifacts.
func (s *UserService) CanView(ctx context.Context, p types.Principal, subject string) error {
	switch p.(type) {
	case types.Bidder:
		if p.ID() == subject {
			return nil
		}
	case types.Developer:
		u, err := s.users.GetUser(ctx, subject)
		var missing *db.ErrUserNotFound
		if errors.As(err, &missing) {
			break
		}
		if err != nil {
			return err
		}
		if u.Role == types.RoleBidder && u.DeveloperID == p.ID() {
			return nil
		}
	}
	return &ErrForbidden{Reason: "bidder is not assigned to you"}
}
