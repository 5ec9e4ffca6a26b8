package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"

	"github.com/Olami1998/connectnow-suite/pkg/metrics"
	"github.com/Olami1998/connectnow-suite/pkg/models"
)

type ctxClaimsType string

const ctxClaimsStr ctxClaimsType = "claims"

const allowHeaders = "authorization, x-client-info, apikey, content-type"

// jwtAuth refuses every request when no signing secret is configured; an empty HMAC key
// would verify tokens anyone can forge.
func (s *Server) jwtAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			s.log.Error("JWT_SECRET is not configured")
			s.writeError(w, models.ErrServerMisconfigured)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeError(w, models.ErrUnauthenticated)
			return
		}
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			s.writeError(w, models.ErrUnauthenticated)
			return
		}
		claims, err := parseToken(headerParts[1], s.jwtSecret)
		if err != nil {
			s.log.Debugf("rejected token: %v", err)
			s.writeError(w, models.ErrUnauthenticated)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), ctxClaimsStr, claims))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getClaims(ctx context.Context) *models.Claims {
	claims, ok := ctx.Value(ctxClaimsStr).(*models.Claims)
	if !ok {
		return nil
	}
	return claims
}

func parseToken(accessToken string, key []byte) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(accessToken, &models.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("err parsing token: %w", err)
	}
	claims, ok := token.Claims.(*models.Claims)
	if !ok || claims.UserID() == "" {
		return nil, fmt.Errorf("invalid claims")
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("token has no expiry")
	}
	return claims, nil
}

// rateLimit must run after jwtAuth; callers are keyed by user id. Limiter errors let the
// request through.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := s.getClaims(r.Context())
		if claims == nil {
			s.writeError(w, models.ErrUnauthenticated)
			return
		}
		allowed, err := s.limiter.Allow(r.Context(), claims.UserID())
		if err != nil {
			s.log.Errorf("rate limiter unavailable: %v", err)
			allowed = true
		}
		if !allowed {
			s.log.Warnf("rate limit exceeded for user: %s", claims.UserID())
			metrics.RateLimited.Inc()
			s.writeError(w, models.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cors echoes the request origin when it is allow-listed and the first allow-listed origin
// otherwise. Preflight requests are answered here, before authentication.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := "*"
		if origins := s.origins.Origins(); len(origins) > 0 {
			allowed = origins[0]
		}
		if origin := r.Header.Get("Origin"); origin != "" && s.origins.Allows(origin) {
			allowed = origin
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(started).Seconds())
	})
}
