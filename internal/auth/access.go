package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed HS256 JWT plus its expiry. Access tokens are
// short-lived and sent in the Authorization header; session continuity
// comes from the rotating cookie credential, never from the JWT.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an access token for a user. The admin claim is the
// configured admin identity marker, not a general role system.
func NewAccessToken(secret string, userID uint64, admin bool, ttl time.Duration) (AccessToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub":   userID,
		"admin": admin,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
