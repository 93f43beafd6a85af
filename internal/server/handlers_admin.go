package server

import (
	"net/http"

	"github.com/jonathan/resume-vault/internal/server/middleware"
	"github.com/jonathan/resume-vault/internal/types"
	"go.uber.org/zap"
)

// handleListUsers returns every account.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userService.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, users)
}

// handleAssignedBidders returns the bidders assigned to the signed-in developer.
func (s *Server) handleAssignedBidders(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.GetPrincipal(r)
	if err != nil {
		s.fail(w, r, &ErrInvalidCredentials{})
		return
	}
	users, err := s.userService.AssignedBidders(r.Context(), p.ID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, users)
}

// handleCreateUser creates a bidder or developer account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: types.ValidationMessage(err)})
		return
	}

	user, err := s.userService.CreateUser(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	s.jsonResponse(w, http.StatusCreated, user)
}

// handleDeleteUser removes an account.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetPrincipal(r)
	if err != nil {
		s.fail(w, r, &ErrInvalidCredentials{})
		return
	}
	id := r.PathValue("id")
	if err := s.userService.DeleteUser(r.Context(), actor, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

// handleChangeRole switches an account between bidder and developer.
func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req types.RoleChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: types.ValidationMessage(err)})
		return
	}

	id := r.PathValue("id")
	if err := s.userService.SetRole(r.Context(), id, req.Role); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("role changed", zap.String("user_id", id), zap.String("role", string(req.Role)))
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Role updated"})
}

// handleUpdatePassword sets a user's password.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req types.PasswordUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: types.ValidationMessage(err)})
		return
	}

	if err := s.userService.SetPassword(r.Context(), r.PathValue("id"), req.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// handleAssignBidder assigns a bidder to a developer.
func (s *Server) handleAssignBidder(w http.ResponseWriter, r *http.Request) {
	var req types.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: types.ValidationMessage(err)})
		return
	}

	if err := s.userService.Assign(r.Context(), &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("bidder assigned", zap.String("bidder_id", req.BidderID), zap.String("developer_id", req.DeveloperID))
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Bidder assigned"})
}
