package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSeatTokenRoundTrip(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-123")
	token, err := mgr.IssueSeat("room-9", 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.RoomID != "room-9" || claims.PlayerID != 42 || claims.Admin {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Subject != "room-9/42" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestValidateRejectsForeignSecretAndExpiry(t *testing.T) {
	mgr := NewJWTManager("secret-a")
	token, err := NewJWTManager("secret-b").IssueSeat("room-1", 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("foreign secret: %v", err)
	}

	mgr.seatExpiry = -time.Minute
	expired, err := mgr.IssueSeat("room-1", 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.ValidateToken(expired); err != ErrInvalidToken {
		t.Errorf("expired token: %v", err)
	}
}

func TestValidateRejectsSeatlessToken(t *testing.T) {
	mgr := NewJWTManager("secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(mgr.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

// --- Middleware ---

func TestMiddlewareStoresSeat(t *testing.T) {
	mgr := NewJWTManager("secret")
	token, _ := mgr.IssueSeat("room-3", 7)

	var got Seat
	h := Middleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SeatFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got != (Seat{RoomID: "room-3", PlayerID: 7}) {
		t.Errorf("seat = %+v", got)
	}
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	mgr := NewJWTManager("secret")
	token, _ := mgr.IssueAdmin("ops")
	called := false
	h := Middleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SeatFromContext(r.Context())
		called = ok && s.Admin
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	if !called {
		t.Error("query token should authenticate the handshake")
	}
}

func TestMiddlewareRejects(t *testing.T) {
	mgr := NewJWTManager("secret")
	h := Middleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))
	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: status %d, want 401", header, rec.Code)
		}
	}
}
