// Package httpapi exposes the account and game services over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gamevault/internal/server/apperr"
	"gamevault/internal/server/service"
	"gamevault/internal/shared/logging"
	"gamevault/internal/shared/models"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// MaxRequestBytes caps request bodies; zero disables the cap.
	MaxRequestBytes int64
	// AuthRateLimit is the per client IP rate for /api/auth, in requests
	// per second. Zero disables throttling.
	AuthRateLimit float64
	AuthRateBurst int
	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the
	// peer address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

type Router struct {
	services        *service.Services
	store           Pinger
	logger          *log.Logger
	maxRequestBytes int64
	authLimiter     *ipLimiter
}

func NewRouter(services *service.Services, store Pinger, logger *log.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Router{
		services:        services,
		store:           store,
		logger:          logger,
		maxRequestBytes: opts.MaxRequestBytes,
	}
	if opts.AuthRateLimit > 0 {
		r.authLimiter = newIPLimiter(opts.AuthRateLimit, opts.AuthRateBurst)
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		mux.Use(middleware.RealIP)
	}
	mux.Use(r.requestLogger, middleware.Recoverer)

	mux.Get("/", r.handleRoot)
	mux.Get("/health", r.handleHealth)
	mux.Get("/openapi.yaml", r.handleOpenAPI)

	mux.Route("/api/auth", func(ar chi.Router) {
		ar.Use(r.throttle)
		ar.Post("/register", r.handleRegister)
		ar.Post("/login", r.handleLogin)
	})

	mux.Group(func(pr chi.Router) {
		pr.Use(r.authMiddleware)
		pr.Get("/api/games", r.handleListGames)
		pr.Post("/api/games", r.handleCreateGame)
		pr.Put("/api/games/{id}", r.handleUpdateGame)
		pr.Patch("/api/games/{id}", r.handleUpdateGame)
		pr.Delete("/api/games/{id}", r.handleDeleteGame)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// writeError maps err onto its status. Internal failures are logged and
// answered with a generic message.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		r.logger.Error("request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"request_id", middleware.GetReqID(req.Context()),
			"err", err)
	}
	writeMessage(w, kind.HTTPStatus(), apperr.PublicMessage(err))
}

// decodeJSON reads the request body into v. On failure it writes the
// response itself and returns false.
func (r *Router) decodeJSON(w http.ResponseWriter, req *http.Request, v any) bool {
	if r.maxRequestBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxRequestBytes)
	}
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		// An empty body decodes as an empty object.
		if errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request entity too large")
			return false
		}
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
