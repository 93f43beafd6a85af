// Package admin is the client side of the assignment authority: account
// management for administrators and the assigned-bidder lookup developers use.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jonathan/resume-vault/internal/schemas"
	"github.com/jonathan/resume-vault/internal/types"
	schemafiles "github.com/jonathan/resume-vault/schemas"
	"go.uber.org/zap"
)

// Caller sends one authenticated JSON request. *store.Client implements it, so
// admin calls share the session, breaker and 401 handling of artifact calls.
type Caller interface {
	Call(ctx context.Context, op, method, path string, query url.Values, in, out any) error
}

// ErrEmptyUserID is returned when an operation is given no user id.
var ErrEmptyUserID = errors.New("user id is empty")

// Options configures a Client.
type Options struct {
	// ValidateResponses checks user lists against the user list schema.
	ValidateResponses bool
	Logger            *zap.Logger
}

// Client issues assignment authority requests.
type Client struct {
	caller   Caller
	validate bool
	logger   *zap.Logger
}

// New creates a Client on top of caller.
func New(caller Caller, opts *Options) *Client {
	if opts == nil {
		opts = &Options{ValidateResponses: true}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{caller: caller, validate: opts.ValidateResponses, logger: logger}
}

func userPath(id string, suffix string) (string, error) {
	if id == "" {
		return "", ErrEmptyUserID
	}
	return "/admin/users/" + url.PathEscape(id) + suffix, nil
}

// ListUsers returns every account.
func (c *Client) ListUsers(ctx context.Context) ([]types.User, error) {
	return c.users(ctx, "list users", "/admin/users")
}

// AssignedBidders returns the bidders assigned to the signed-in developer.
func (c *Client) AssignedBidders(ctx context.Context) ([]types.User, error) {
	return c.users(ctx, "assigned bidders", "/delegated/bidders")
}

func (c *Client) users(ctx context.Context, op, path string) ([]types.User, error) {
	var raw json.RawMessage
	if err := c.caller.Call(ctx, op, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	if c.validate {
		if err := schemas.ValidateEmbedded(schemafiles.UserList, raw); err != nil {
			return nil, fmt.Errorf("%s: malformed response: %w", op, err)
		}
	}
	var users []types.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if users == nil {
		users = []types.User{}
	}
	return users, nil
}

// CreateUser creates a bidder or developer account.
func (c *Client) CreateUser(ctx context.Context, req types.CreateUserRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("create user: %s", types.ValidationMessage(err))
	}
	if err := c.caller.Call(ctx, "create user", http.MethodPost, "/admin/create-user", nil, req, nil); err != nil {
		return err
	}
	c.logger.Info("user created", zap.String("username", req.Username), zap.String("role", string(req.Role)))
	return nil
}

// DeleteUser removes an account. Callers confirm first.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	path, err := userPath(id, "")
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := c.caller.Call(ctx, "delete user", http.MethodDelete, path, nil, nil, nil); err != nil {
		return err
	}
	c.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

// ChangeRole switches an account between bidder and developer.
func (c *Client) ChangeRole(ctx context.Context, id string, role types.Role) error {
	req := types.RoleChangeRequest{Role: role}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("change role: %s", types.ValidationMessage(err))
	}
	path, err := userPath(id, "/role")
	if err != nil {
		return fmt.Errorf("change role: %w", err)
	}
	return c.caller.Call(ctx, "change role", http.MethodPut, path, nil, req, nil)
}

// UpdatePassword sets an account's password.
func (c *Client) UpdatePassword(ctx context.Context, id, password string) error {
	req := types.PasswordUpdateRequest{Password: password}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("update password: %s", types.ValidationMessage(err))
	}
	path, err := userPath(id, "/password")
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return c.caller.Call(ctx, "update password", http.MethodPut, path, nil, req, nil)
}

// AssignBidder assigns bidderID to developerID, replacing any earlier assignment.
func (c *Client) AssignBidder(ctx context.Context, bidderID, developerID string) error {
	req := types.AssignRequest{BidderID: bidderID, DeveloperID: developerID}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("assign bidder: %s", types.ValidationMessage(err))
	}
	if err := c.caller.Call(ctx, "assign bidder", http.MethodPost, "/admin/assign-bidder", nil, req, nil); err != nil {
		return err
	}
	c.logger.Info("bidder assigned", zap.String("bidder_id", bidderID), zap.String("developer_id", developerID))
	return nil
}
