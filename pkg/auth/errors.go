package auth

import "errors"

var (
	// ErrInvalidCredentials covers bad passwords and every token that fails
	// decoding, type, revocation or owner checks. Clients cannot tell them apart.
	ErrInvalidCredentials = errors.New("could not validate credentials")

	// ErrInactiveAccount is returned for a valid token or password whose
	// account has been disabled.
	ErrInactiveAccount = errors.New("inactive user")

	// ErrInvalidToken is the single decode failure returned by Codec.
	ErrInvalidToken = errors.New("invalid token")

	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

	// ErrConfiguration marks unusable signing configuration. Fatal at startup.
	ErrConfiguration = errors.New("invalid auth configuration")
)
