package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/resume-vault/internal/config"
	"github.com/jonathan/resume-vault/internal/db"
	"github.com/jonathan/resume-vault/internal/observability"
	"github.com/jonathan/resume-vault/internal/server/middleware"
	"github.com/jonathan/resume-vault/internal/server/ratelimit"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/jonathan/resume-vault/internal/vault"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	users       db.Users
	closeUsers  func()
	vault       *vault.Vault
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	userService *UserService
	authHandler *AuthHandler
	metrics     *observability.HTTPServerMetrics
	logger      *zap.Logger
}

// Config holds server configuration
type Config struct {
	Port int
	Root string // Vault directory

	// DatabaseURL selects the PostgreSQL account repository; empty keeps
	// accounts in memory. Users, when set, wins over both.
	DatabaseURL string
	Users       db.Users

	// Nil values are read from the environment.
	JWT       *config.JWTConfig
	Password  *config.PasswordConfig
	RateLimit *ratelimit.Config

	// AdminUsername and AdminPassword create the first administrator when no
	// account with that name exists.
	AdminUsername string
	AdminPassword string

	Logger *zap.Logger
}

// New creates a new server instance
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger, closeUsers: func() {}}

	v, err := vault.New(cfg.Root)
	if err != nil {
		return nil, err
	}
	s.vault = v

	switch {
	case cfg.Users != nil:
		s.users = cfg.Users
	case cfg.DatabaseURL != "":
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
		s.users = database
		s.closeUsers = database.Close
	default:
		s.users = db.NewMemory()
	}

	passwordConfig := cfg.Password
	if passwordConfig == nil {
		if passwordConfig, err = config.NewPasswordConfig(); err != nil {
			s.closeUsers()
			return nil, fmt.Errorf("failed to create password config: %w", err)
		}
	}
	s.userService = NewUserService(s.users, passwordConfig)

	jwtConfig := cfg.JWT
	if jwtConfig == nil {
		if jwtConfig, err = config.NewJWTConfig(); err != nil {
			s.closeUsers()
			return nil, fmt.Errorf("failed to create JWT config: %w", err)
		}
	}
	s.jwtService = NewJWTService(jwtConfig)
	s.authHandler = NewAuthHandler(s.userService, s.jwtService, logger)

	if cfg.AdminUsername != "" {
		if err := s.ensureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			s.closeUsers()
			return nil, err
		}
	}

	rlConfig := cfg.RateLimit
	if rlConfig == nil {
		rlConfig = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rlConfig)
	s.metrics = observability.NewHTTPServerMetrics()

	s.handler = s.metrics.Middleware(s.withRateLimit(s.withLogging(s.withCORS(s.routes()))))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Archives of busy days are large
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /auth/signin", s.authHandler.SignIn)

	bidder := s.protect(types.RoleBidder)
	developer := s.protect(types.RoleDeveloper)
	admin := s.protect(types.RoleAdmin)

	// Self-service family: the bidder's own collection
	mux.Handle("GET /artifacts", bidder(s.handleListArtifacts))
	mux.Handle("POST /artifacts/delete", bidder(s.handleDeleteArtifact))
	mux.Handle("GET /artifacts/download", bidder(s.handleDownloadArtifact))
	mux.Handle("GET /artifacts/archive", bidder(s.handleDownloadArchive))
	mux.Handle("POST /generate/resume-draft", bidder(s.handleDraft))

	// Delegated family: an assigned bidder's collection
	mux.Handle("GET /delegated/bidders", developer(s.handleAssignedBidders))
	mux.Handle("GET /delegated/{bidderId}/artifacts", developer(s.handleListArtifacts))
	mux.Handle("POST /delegated/{bidderId}/artifacts/delete", developer(s.handleDeleteArtifact))
	mux.Handle("GET /delegated/{bidderId}/artifacts/download", developer(s.handleDownloadArtifact))
	mux.Handle("GET /delegated/{bidderId}/artifacts/archive", developer(s.handleDownloadArchive))

	// Assignment authority
	mux.Handle("GET /admin/users", admin(s.handleListUsers))
	mux.Handle("POST /admin/create-user", admin(s.handleCreateUser))
	mux.Handle("DELETE /admin/users/{id}", admin(s.handleDeleteUser))
	mux.Handle("PUT /admin/users/{id}/role", admin(s.handleChangeRole))
	mux.Handle("PUT /admin/users/{id}/password", admin(s.handleUpdatePassword))
	mux.Handle("POST /admin/assign-bidder", admin(s.handleAssignBidder))

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		s.errorResponse(w, http.StatusNotFound, "Not found")
	})
	return mux
}

// protect wraps handlers in authentication plus a role check.
func (s *Server) protect(roles ...types.Role) func(http.HandlerFunc) http.Handler {
	requireRole := middleware.RequireRole(roles...)
	return func(h http.HandlerFunc) http.Handler {
		return s.authHandler.Authenticate(requireRole(h))
	}
}

func (s *Server) ensureAdmin(ctx context.Context, username, password string) error {
	_, err := s.users.GetUserByUsername(ctx, username)
	var missing *db.ErrUserNotFound
	if !errors.As(err, &missing) {
		return err
	}
	if password == "" {
		return fmt.Errorf("administrator %q does not exist and no password was given", username)
	}
	hash, err := s.userService.passwordConfig.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash administrator password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, username, hash, types.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to create administrator: %w", err)
	}
	s.logger.Info("administrator created", zap.String("user_id", u.ID), zap.String("username", username))
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// JWT returns the token service, for minting development tokens.
func (s *Server) JWT() *JWTService {
	return s.jwtService
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr), zap.String("root", s.vault.Root()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.Close()
	s.logger.Info("server stopped")
	return err
}

// Close releases the rate limiter and the account repository.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.closeUsers()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &observability.StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.StatusCode),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		s.logger.Warn("error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	middleware.WriteMessage(w, status, message)
}

// fail maps err onto a status and JSON message. Internal errors are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if HTTPStatus(err) == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	middleware.WriteMessage(w, HTTPStatus(err), PublicMessage(err))
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(dst); err != nil {
		return &ErrValidation{Message: "Invalid request body"}
	}
	return nil
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
