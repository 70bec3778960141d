package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/partner-portal/internal/model"
)

func TestNewIdentityToken(t *testing.T) {
	tok, err := NewIdentityToken("k", "idp", model.Identity{Subject: "u1", Email: "ana@sol.com", Name: "Ana"}, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	claims := jwt.MapClaims{}
	_, err = jwt.NewParser(jwt.WithIssuer("idp")).ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("k"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@sol.com", claims["email"])
	assert.Equal(t, "Ana", claims["name"])
	assert.Equal(t, "u1", claims["sub"])
}

func TestNewIdentityTokenRejectsBadInput(t *testing.T) {
	_, err := NewIdentityToken("", "", model.Identity{Email: "a@b.c"}, time.Hour)
	assert.Error(t, err)
	_, err = NewIdentityToken("k", "", model.Identity{Name: "Ana"}, time.Hour)
	assert.Error(t, err)
}
