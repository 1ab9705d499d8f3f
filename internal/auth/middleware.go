package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const seatKey contextKey = "seat"

// Middleware validates the bearer token and stores its Seat in the request context.
func Middleware(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearer(r)
			if err != nil {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}
			claims, err := jwtMgr.ValidateToken(token)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSeat(r.Context(), claims.Seat())))
		})
	}
}

func bearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		// Browsers cannot set headers on a WebSocket handshake.
		if q := r.URL.Query().Get("token"); q != "" {
			return q, nil
		}
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

// WithSeat stores a seat in ctx.
func WithSeat(ctx context.Context, s Seat) context.Context {
	return context.WithValue(ctx, seatKey, s)
}

// SeatFromContext returns the authenticated seat, if any.
func SeatFromContext(ctx context.Context) (Seat, bool) {
	s, ok := ctx.Value(seatKey).(Seat)
	return s, ok
}
