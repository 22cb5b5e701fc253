package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CodecConfig configures token signing
type CodecConfig struct {
	Secret    string
	Algorithm string
	Issuer    string

	// Now overrides the clock, mainly for tests. Defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies claim sets as HMAC JWTs
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	issuer string
	now    func() time.Time
}

// NewCodec validates cfg and returns a codec. Any problem wraps ErrConfiguration.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrConfiguration)
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("%w: token issuer is required", ErrConfiguration)
	}

	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Codec{
		secret: []byte(cfg.Secret),
		method: method,
		issuer: cfg.Issuer,
		now:    now,
	}, nil
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", ErrConfiguration, alg)
	}
}

// Issuer returns the configured iss claim
func (c *Codec) Issuer() string {
	return c.issuer
}

// Now returns the codec's current time
func (c *Codec) Now() time.Time {
	return c.now()
}

// Encode signs claims, filling in the issuer
func (c *Codec) Encode(claims *Claims) (string, error) {
	claims.Issuer = c.issuer
	token := jwt.NewWithClaims(c.method, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature, then every claim. Expiry is checked against
// the codec clock even though the parser checks it too. Any failure returns
// ErrInvalidToken.
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != c.method.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	if !c.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" || !claims.Type.Valid() {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
