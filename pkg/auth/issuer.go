package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer mints access/refresh token pairs. Nothing is persisted at issue time.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	newID      func() (string, error)
}

// NewIssuer creates an issuer with independent lifetimes per token type
func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if accessTTL < time.Second || refreshTTL < time.Second {
		return nil, fmt.Errorf("%w: token lifetimes must be at least one second", ErrConfiguration)
	}
	return &Issuer{
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		newID:      NewTokenID,
	}, nil
}

// AccessTTL returns the access token lifetime
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// RefreshTTL returns the refresh token lifetime
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// IssuePair mints a fresh access and refresh token for subject
func (i *Issuer) IssuePair(subject int64) (*TokenPair, error) {
	now := i.codec.Now()

	access, err := i.issue(subject, TokenTypeAccess, now, i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := i.issue(subject, TokenTypeRefresh, now, i.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    BearerTokenType,
		ExpiresIn:    int64(i.accessTTL / time.Second),
	}, nil
}

func (i *Issuer) issue(subject int64, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	id, err := i.newID()
	if err != nil {
		return "", err
	}

	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subject, 10),
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := i.codec.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to issue %s token: %w", typ, err)
	}
	return token, nil
}
