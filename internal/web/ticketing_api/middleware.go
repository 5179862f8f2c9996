package ticketing_api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errForbidden       = errors.New("forbidden")
	errInvalidSession  = errors.New("invalid or expired session")
)

type sessionKey struct{}

// instrument records request latency labelled by the matched route pattern
// so that IDs in paths do not explode label cardinality.
func (server *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		server.metrics.HttpRequestsInFlight.Inc()
		defer server.metrics.HttpRequestsInFlight.Dec()

		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)
		next.ServeHTTP(wrapped, request)

		route := "unmatched"
		if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
			if pattern := routeContext.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}
		server.metrics.HttpRequestSeconds.
			WithLabelValues(route, request.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

func bearerToken(request *http.Request) string {
	header := request.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate resolves a bearer session token to a principal. Requests
// without a token continue anonymously; a stale or unknown token is
// rejected outright.
func (server *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		token := bearerToken(request)
		if token == "" {
			next.ServeHTTP(writer, request)
			return
		}

		tokenHash := authz.HashToken(token)
		user, err := server.store.SessionUser(request.Context(), tokenHash)
		if errors.Is(err, store.ErrNotFound) {
			server.writeError(writer, request, errInvalidSession)
			return
		}
		if err != nil {
			server.writeError(writer, request, err)
			return
		}

		ctx := authz.WithPrincipal(request.Context(), authz.PrincipalFromUser(user))
		ctx = context.WithValue(ctx, sessionKey{}, tokenHash)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

func sessionHash(ctx context.Context) string {
	hash, _ := ctx.Value(sessionKey{}).(string)
	return hash
}

func (server *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal := authz.PrincipalFrom(request.Context())
		decision, err := server.authorizer.Authorize(request.Context(), authz.NewRequest(request.Method, request.URL.Path, principal))
		if err != nil {
			server.writeError(writer, request, err)
			return
		}
		if !decision.Allowed {
			server.logger.Debug("request denied",
				"method", request.Method,
				"path", request.URL.Path,
				"role", principal.Role,
				"reason", decision.Reason,
				"request_id", middleware.GetReqID(request.Context()),
			)
			if principal.Authenticated() {
				server.writeError(writer, request, errForbidden)
			} else {
				server.writeError(writer, request, errUnauthenticated)
			}
			return
		}
		next.ServeHTTP(writer, request)
	})
}
