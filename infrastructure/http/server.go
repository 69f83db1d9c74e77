package http

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	sessioncontext "stockoverflow/frontend/shared/context"
	"stockoverflow/frontend/shared/respond"
	"stockoverflow/frontend/thresholds"
	"stockoverflow/frontend/users"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/auth"
	"stockoverflow/infrastructure/cache"
	"stockoverflow/infrastructure/config"
	"stockoverflow/infrastructure/rbac"
	"stockoverflow/infrastructure/sqlite"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var ShutdownTimeout = 2 * time.Second

// Server bundles dependencies and route wiring.
type Server struct {
	Addr   string
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	Config    config.Config
	DB        *sqlite.DB
	RbacCache *cache.RbacRolesCache
	Rbac      *rbac.Rbac
	Audit     *audit.Service
	Issuer    *auth.Issuer
	Monitor   *thresholds.Monitor
}

// NewServer creates a new http server.
func NewServer(cfg config.Config, db *sqlite.DB, r *rbac.Rbac, rbacCache *cache.RbacRolesCache, auditSvc *audit.Service, issuer *auth.Issuer, monitor *thresholds.Monitor) *Server {
	s := &Server{
		Addr:      cfg.Addr,
		router:    chi.NewRouter(),
		Config:    cfg,
		DB:        db,
		RbacCache: rbacCache,
		Rbac:      r,
		Audit:     auditSvc,
		Issuer:    issuer,
		Monitor:   monitor,
		server: &http.Server{
			MaxHeaderBytes:    1 << 20,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	// Secure headers first.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.StripSlashes)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(s.ActorMiddleware)
	s.router.Use(s.AuthorizeMiddleware)

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.RegisterRbac()
	// The web client calls both the bare resource paths and the /api prefix.
	s.RegisterRoutes(s.router)
	s.router.Route("/api", func(r chi.Router) {
		s.RegisterRoutes(r)
	})

	s.server.Handler = s.router
	return s
}

// ActorMiddleware resolves an optional bearer token into the request actor.
// A missing or invalid token leaves the request anonymous.
func (s *Server) ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || s.Issuer == nil {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := s.Issuer.Validate(strings.TrimSpace(token))
		if err != nil {
			slog.Warn("ignoring invalid bearer token", slog.String("path", r.URL.Path), slog.Any("err", err))
			next.ServeHTTP(w, r)
			return
		}
		actor, ok := s.currentActor(r.Context(), claims)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(sessioncontext.NewContextWithActor(r.Context(), actor)))
	})
}

// currentActor checks token claims against the user row, so deactivation, expiry and role
// changes take effect before the token runs out.
func (s *Server) currentActor(ctx context.Context, claims *auth.Claims) (sessioncontext.Actor, bool) {
	user, err := users.FindByID(ctx, s.DB, claims.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Warn("token for unknown user", slog.Int64("user_id", claims.UserID))
		return sessioncontext.Actor{}, false
	}
	if err != nil {
		slog.Error("load token user", slog.Int64("user_id", claims.UserID), slog.Any("err", err))
		return sessioncontext.Actor{}, false
	}
	if !user.IsActive || user.TempExpired(time.Now()) {
		slog.Info("token user can no longer sign in", slog.String("username", user.Username))
		return sessioncontext.Actor{}, false
	}
	role := user.Role
	if claims.Badge {
		role = rbac.BadgeRole(user.Role)
	}
	if claims.Role != role {
		slog.Info("token role is stale", slog.String("username", user.Username),
			slog.String("token_role", claims.Role), slog.String("role", role))
		return sessioncontext.Actor{}, false
	}
	return sessioncontext.Actor{UserID: user.ID, Username: user.Username, Role: role}, true
}

// AuthorizeMiddleware applies RBAC to registered routes only.
func (s *Server) AuthorizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		if path == "" {
			path = "/"
		}
		if r.Method == http.MethodOptions || !s.Rbac.Protected(path, r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		actor, ok := sessioncontext.GetActorFromContext(r.Context())
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		if !s.Rbac.Allowed(actor.Role, path, r.Method) {
			slog.Warn("rbac refused",
				slog.String("user", actor.Username),
				slog.String("role", actor.Role),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			respond.Error(w, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	var err error
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", slog.Any("err", err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.ln == nil {
		return fmt.Errorf("HTTP server has not been started or is already stopped")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	s.ln = nil
	return nil
}
