package auth

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/platinummonkey/adlbuilder/pkg/users"
)

// TokenType distinguishes access tokens from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Valid reports whether t is a known token type
func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// BearerTokenType is the fixed token_type label of every TokenPair
const BearerTokenType = "bearer"

// Claims is the signed claim set carried by every token.
// Subject holds the user id and ID holds the jti.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user id
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// TokenPair is the response of login and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Identity is an authenticated user together with the token that proved it
type Identity struct {
	User   *users.User
	Claims *Claims
}
