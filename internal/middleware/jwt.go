package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/partner-portal/internal/model"
)

// JWTAuth validates the identity provider's HS256 bearer token and stores
// the caller (email, name, sub) on the context.  A token without an email
// claim is rejected: the email is what links a user to an agency.  When
// issuer is non-empty the "iss" claim must match it.
func JWTAuth(secret, issuer string) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			id := model.Identity{
				Subject: claimString(claims, "sub"),
				Email:   strings.TrimSpace(claimString(claims, "email")),
				Name:    claimString(claims, "name"),
			}
			if id.Email == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no email"})
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}

func claimString(cl jwt.MapClaims, key string) string {
	s, _ := cl[key].(string)
	return s
}
