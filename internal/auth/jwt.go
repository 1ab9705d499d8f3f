package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
)

// Claims is a seat token: the bearer plays PlayerID in RoomID.
// Admin tokens carry no seat and may manage rooms.
type Claims struct {
	RoomID   string `json:"room_id,omitempty"`
	PlayerID int64  `json:"player_id,omitempty"`
	Admin    bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Seat is the authenticated principal of a request.
type Seat struct {
	RoomID   string
	PlayerID int64
	Admin    bool
}

// JWTManager issues and validates seat tokens.
type JWTManager struct {
	secret     []byte
	seatExpiry time.Duration
}

// NewJWTManager creates a JWTManager with the given secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{secret: []byte(secret), seatExpiry: 48 * time.Hour}
}

// IssueSeat signs a token for one player of one room.
func (m *JWTManager) IssueSeat(roomID string, playerID int64) (string, error) {
	return m.sign(&Claims{
		RoomID:   roomID,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: roomID + "/" + strconv.FormatInt(playerID, 10),
		},
	})
}

// IssueAdmin signs a room-management token.
func (m *JWTManager) IssueAdmin(name string) (string, error) {
	return m.sign(&Claims{Admin: true, RegisteredClaims: jwt.RegisteredClaims{Subject: name}})
}

func (m *JWTManager) sign(c *Claims) (string, error) {
	now := time.Now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(m.seatExpiry))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// ValidateToken parses and validates a JWT string, returning the claims.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Admin && (claims.RoomID == "" || claims.PlayerID == 0) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Seat returns the principal the claims describe.
func (c *Claims) Seat() Seat {
	return Seat{RoomID: c.RoomID, PlayerID: c.PlayerID, Admin: c.Admin}
}
