package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenExpiry matches a warehouse shift.
const TokenExpiry = 12 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the acting user on API requests.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	// Badge marks tokens from a badge scan rather than a password.
	Badge bool `json:"badge,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and validates HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for the given user. expiresAt caps the lifetime (e.g. temp access).
func (i *Issuer) Issue(userID int64, username, role string, expiresAt *time.Time) (string, time.Time, error) {
	return i.sign(Claims{UserID: userID, Username: username, Role: role}, expiresAt)
}

// IssueBadge signs a badge-scan token. role should already be reduced with rbac.BadgeRole.
func (i *Issuer) IssueBadge(userID int64, username, role string, expiresAt *time.Time) (string, time.Time, error) {
	return i.sign(Claims{UserID: userID, Username: username, Role: role, Badge: true}, expiresAt)
}

func (i *Issuer) sign(claims Claims, expiresAt *time.Time) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(TokenExpiry)
	if expiresAt != nil && expiresAt.Before(exp) {
		exp = *expiresAt
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, exp, nil
}

// Validate parses tokenStr and returns its claims.
func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
