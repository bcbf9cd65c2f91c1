package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	req := require.New(t)

	// Given a freshly issued token
	tokenString, err := GenerateToken("alice", time.Minute)
	req.NoError(err)
	req.NotEmpty(tokenString)

	// When validating it
	claims, err := ValidateToken(tokenString)

	// Then the embedded identity is recovered
	req.NoError(err)
	req.Equal("alice", claims.UserID)
	req.Equal("chat-relay", claims.Issuer)
}

func TestValidateToken_Garbage(t *testing.T) {
	req := require.New(t)

	claims, err := ValidateToken("not.a.token")

	req.Error(err)
	req.Nil(claims)
}

func TestValidateToken_Expired(t *testing.T) {
	req := require.New(t)

	tokenString, err := GenerateToken("alice", -time.Minute)
	req.NoError(err)

	claims, err := ValidateToken(tokenString)

	req.Error(err)
	req.Nil(claims)
}

func TestValidateToken_TamperedSignature(t *testing.T) {
	req := require.New(t)

	tokenString, err := GenerateToken("alice", time.Minute)
	req.NoError(err)

	claims, err := ValidateToken(tokenString + "x")

	req.Error(err)
	req.Nil(claims)
}
