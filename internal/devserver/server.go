// Package devserver is a local implementation of the task API for development
// and end-to-end tests. It is not meant to face the internet.
package devserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fentz26/taskdeck/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// DevOTPCode is the one-time code every phone login accepts.
const DevOTPCode = "1111"

// Config controls the devserver.
type Config struct {
	Addr               string
	Secret             string
	TokenLifetime      time.Duration
	ResetTokenLifetime time.Duration
	OTPCode            string
	BcryptCost         int
}

// DefaultConfig returns the settings `taskdeck devserver` starts with.
func DefaultConfig() Config {
	return Config{
		Addr:               "127.0.0.1:8080",
		TokenLifetime:      24 * time.Hour,
		ResetTokenLifetime: time.Hour,
		OTPCode:            DevOTPCode,
		BcryptCost:         bcrypt.DefaultCost,
	}
}

// Server provides the HTTP API.
type Server struct {
	store    *store.Store
	cfg      Config
	tokens   *tokenIssuer
	mailer   Mailer
	logger   *slog.Logger
	validate *validator.Validate
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMailer replaces the LogMailer.
func WithMailer(m Mailer) Option {
	return func(s *Server) { s.mailer = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.tokens.now = now }
}

// New creates a Server backed by st. An empty secret is replaced by a random
// one, which invalidates every token on restart.
func New(st *store.Store, cfg Config, opts ...Option) (*Server, error) {
	if cfg.Secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		cfg.Secret = hex.EncodeToString(buf)
	}
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	if cfg.OTPCode == "" {
		cfg.OTPCode = DevOTPCode
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	s := &Server{
		store:    st,
		cfg:      cfg,
		tokens:   &tokenIssuer{key: []byte(cfg.Secret), lifetime: cfg.TokenLifetime, now: time.Now},
		logger:   slog.Default(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mailer == nil {
		s.mailer = LogMailer{Logger: s.logger}
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", s.createAccount)
		r.Patch("/accounts/{accountID}", s.resetPassword)
		r.Post("/access-tokens", s.createAccessToken)
		r.Post("/password-reset-tokens", s.createPasswordResetToken)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/accounts/{accountID}", s.getAccount)
			r.Get("/accounts/{accountID}/tasks", s.listTasks)
			r.Post("/accounts/{accountID}/tasks", s.createTask)
			r.Get("/accounts/{accountID}/tasks/{taskID}", s.getTask)
			r.Patch("/accounts/{accountID}/tasks/{taskID}", s.updateTask)
			r.Delete("/accounts/{accountID}/tasks/{taskID}", s.deleteTask)
		})
	})

	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting taskdeck devserver", "addr", s.cfg.Addr, "otp_code", s.cfg.OTPCode)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	OK bool   `json:"ok"`
	DB string `json:"db"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{OK: true, DB: "ok"}
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		resp = healthResponse{OK: false, DB: err.Error()}
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
