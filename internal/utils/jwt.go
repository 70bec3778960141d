package utils // package utils provides helpers for issuing identity tokens

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/partner-portal/internal/model"
)

// IdentityToken is a signed HS256 token together with its expiry.
type IdentityToken struct {
	Token string
	Exp   time.Time
}

// NewIdentityToken signs a token carrying the claims the portal reads from
// the identity provider: sub, email and name.  It is used by the devtoken
// command and by tests; production tokens come from the provider itself.
// An empty issuer omits the "iss" claim.
func NewIdentityToken(secret, issuer string, id model.Identity, ttl time.Duration) (IdentityToken, error) {
	if secret == "" {
		return IdentityToken{}, errors.New("empty signing secret")
	}
	email := strings.TrimSpace(id.Email)
	if email == "" {
		return IdentityToken{}, errors.New("identity has no email")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"email": email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	if id.Subject != "" {
		claims["sub"] = id.Subject
	}
	if id.Name != "" {
		claims["name"] = id.Name
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return IdentityToken{}, err
	}
	return IdentityToken{Token: signed, Exp: exp}, nil
}
