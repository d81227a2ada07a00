package server

import (
	"net/http"
	"strings"

	"github.com/hyperjump/genomesearch/internal/auth"
	"go.uber.org/zap"
)

// tokenFromHeader returns the Authorization header without an OAuth or
// Bearer prefix.
func tokenFromHeader(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	for _, prefix := range []string{"OAuth ", "Bearer "} {
		if len(h) >= len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	return h
}

// authenticate places the caller's token and user on the request context.
// Requests without a token proceed anonymously.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromHeader(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.WithToken(r.Context(), token)
		if s.users != nil {
			user, err := s.users.GetUser(ctx, token)
			if err != nil {
				s.logger.Debug("token rejected", zap.Error(err))
				s.fail(w, r, err)
				return
			}
			ctx = auth.WithUser(ctx, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// fail writes err in the envelope the request path expects.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if isRPCPath(r.URL.Path) {
		s.respondRPCError(w, "", err)
		return
	}
	s.respondError(w, httpStatus(err), err.Error())
}

func isRPCPath(path string) bool {
	return path == "/" || path == "/rpc"
}

