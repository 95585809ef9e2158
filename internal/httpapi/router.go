// Package httpapi is the long-running server adapter: a chi router around
// the shared chat relay, plus health and static site routes.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const defaultMaxBodyBytes = 1 << 20

var (
	healthBody      = []byte(`{"status":"ok"}`)
	apiNotFoundBody = []byte(`{"error":"Not found"}`)
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Chat         ChatHandler
	Logger       *slog.Logger
	StaticDir    string
	CORSOrigins  []string
	MaxBodyBytes int64
	NewID        func() string
	// TrustProxyHeaders takes the client address from forwarding headers.
	// Off, the socket peer is the rate-limit key.
	TrustProxyHeaders bool
}

// NewRouter creates the server's HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	if deps.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(Correlation(deps.Logger, deps.NewID))
	r.Use(RequestLogger)
	r.Use(Recoverer)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", correlationHeader},
		ExposedHeaders: []string{correlationHeader},
		MaxAge:         3600,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthBody)
	})

	// All methods reach the chat handler so non-POST gets the JSON 405.
	r.Handle("/api/chat", newChatHandler(deps.Chat, deps.MaxBodyBytes))
	r.Handle("/api", http.HandlerFunc(apiNotFound))
	r.Handle("/api/*", http.HandlerFunc(apiNotFound))

	if spa, ok := newSPAHandler(deps.StaticDir); ok {
		r.Handle("/*", spa)
	}

	return r
}

func apiNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, apiNotFoundBody)
}
