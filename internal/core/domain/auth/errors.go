package auth

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNoSigningKey       = errors.New("this service does not have the private key, isn't allowed to sign an authentication token")
	ErrSessionDeactivated = errors.New("session deactivated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
