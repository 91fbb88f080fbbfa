package server

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"community/internal/auth"
	"community/internal/models"
)

type authedHandler func(http.ResponseWriter, *http.Request, auth.Identity)

// requireAuth rejects requests without a valid bearer token. Identities from
// an external provider get a local account on first use.
func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		id, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if id.External {
			if _, err := models.EnsureUser(r.Context(), s.DB, id.UserID, id.Name, id.Email); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)), id)
	}
}

// optionalAuth attaches the caller's identity to the request context when a
// valid token is present and carries on anonymously otherwise.
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
		if err == nil {
			if id, err := s.verifier.Verify(r.Context(), token); err == nil {
				r = r.WithContext(auth.WithIdentity(r.Context(), id))
			}
		}
		next(w, r)
	}
}

func (s *Server) limitByUser(next authedHandler) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		if !s.allow(w, r, "user:"+id.UserID) {
			return
		}
		next(w, r, id)
	}
}

func (s *Server) limitByIP(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allow(w, r, "ip:"+clientIP(r)) {
			return
		}
		next(w, r)
	}
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, key string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(r.Context(), key)
	if err != nil {
		s.log.Warn("rate limiter error", zap.String("key", key), zap.Error(err))
	}
	if !ok {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	return rec.ResponseWriter.Write(b)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", clientIP(r)))
	})
}

// recoverPanic turns a handler panic into a 500. When the handler already
// started its response the status line is gone, so nothing more is written.
func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.log.Error("panic", zap.Any("value", v), zap.ByteString("stack", debug.Stack()))
				if rec.wroteHeader {
					return
				}
				s.writeError(rec, r, fmt.Errorf("panic: %v", v))
			}
		}()
		next.ServeHTTP(rec, r)
	})
}
