package server

import (
	"net/http"

	"github.com/jonathan/resume-vault/internal/server/middleware"
	"github.com/jonathan/resume-vault/internal/types"
	"go.uber.org/zap"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userService *UserService
	jwtService  *JWTService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(userService *UserService, jwtService *JWTService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// SignIn exchanges a username and password for a bearer token.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req types.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, &ErrValidation{Message: types.ValidationMessage(err)})
		return
	}

	p, user, err := h.userService.SignIn(r.Context(), &req)
	if err != nil {
		h.logger.Info("sign-in rejected", zap.String("username", req.Username), zap.Error(err))
		writeError(w, err)
		return
	}

	token, err := h.jwtService.GenerateToken(p)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		middleware.WriteMessage(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, types.SignInResponse{Token: token, User: *user})
}

// Authenticate validates the bearer token and reloads the account behind it,
// so deleted accounts and role changes apply to tokens already issued.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	reload := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := middleware.GetPrincipal(r)
		if err != nil {
			middleware.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		current, err := h.userService.Resolve(r.Context(), p)
		if err != nil {
			if HTTPStatus(err) == http.StatusUnauthorized {
				middleware.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), current)))
	})
	return middleware.AuthMiddleware(h.jwtService.AsTokenValidator())(reload)
}
