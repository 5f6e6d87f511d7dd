package utils

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// TokenTTL is how long minted tokens stay valid.
const TokenTTL = 72 * time.Hour

// GenerateToken signs an HS256 token carrying the user_id claim. Tokens are
// normally issued by the identity provider; this is for bootstrap and tests.
func GenerateToken(secret, userID string) (string, error) {
	if secret == "" {
		return "", errors.New("JWT_SECRET environment variable is not set")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(TokenTTL).Unix(),
	})
	return token.SignedString([]byte(secret))
}
