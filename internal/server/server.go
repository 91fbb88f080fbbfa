package server

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"community/internal/auth"
	"community/internal/db"
	"community/internal/ratelimit"
)

type Options struct {
	Verifier auth.Verifier
	// Issuer signs tokens at signup and login. Nil means token issuance is
	// unavailable and those routes answer 503.
	Issuer auth.Issuer
	// Limiter throttles writes. Nil disables rate limiting.
	Limiter     ratelimit.Limiter
	Logger      *zap.Logger
	CORSOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Without it those headers are ignored.
	TrustProxyHeaders bool
	// Development adds internal error detail to 500 responses.
	Development bool
}

type Server struct {
	DB *db.DB

	verifier auth.Verifier
	issuer   auth.Issuer
	limiter  ratelimit.Limiter
	log      *zap.Logger
	dev      bool

	handler http.Handler
}

func New(database *db.DB, opts Options) *Server {
	s := &Server{
		DB:       database,
		verifier: opts.Verifier,
		issuer:   opts.Issuer,
		limiter:  opts.Limiter,
		log:      opts.Logger,
		dev:      opts.Development,
	}
	if s.verifier == nil {
		s.verifier = auth.Unavailable{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:         300,
	})
	h := c.Handler(s.logRequests(s.recoverPanic(s.routes())))
	if opts.TrustProxyHeaders {
		h = handlers.ProxyHeaders(h)
	}
	s.handler = h
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /auth/signup", s.limitByIP(s.handleSignup))
	mux.HandleFunc("POST /auth/login", s.limitByIP(s.handleLogin))

	mux.HandleFunc("GET /posts", s.optionalAuth(s.handleListPosts))
	mux.HandleFunc("GET /posts/{id}", s.optionalAuth(s.handleGetPost))
	mux.HandleFunc("POST /posts", s.requireAuth(s.limitByUser(s.handleCreatePost)))
	mux.HandleFunc("PUT /posts/{id}", s.requireAuth(s.limitByUser(s.handleUpdatePost)))
	mux.HandleFunc("DELETE /posts/{id}", s.requireAuth(s.limitByUser(s.handleDeletePost)))
	mux.HandleFunc("POST /posts/{id}/like", s.requireAuth(s.limitByUser(s.handleToggleLike)))
	mux.HandleFunc("GET /posts/{id}/comments", s.handleListComments)
	mux.HandleFunc("POST /posts/{id}/comments", s.requireAuth(s.limitByUser(s.handleAddComment)))

	mux.HandleFunc("GET /users/{uid}", s.handleGetUser)
	mux.HandleFunc("PUT /users/{uid}", s.requireAuth(s.limitByUser(s.handleUpdateUser)))
	mux.HandleFunc("GET /users/{uid}/posts", s.handleUserPosts)

	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "the requested resource was not found"})
}
