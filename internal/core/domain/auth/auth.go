package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest represents the login request. Login is an email or a phone.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Claims are the signed session token claims.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`

	jwt.RegisteredClaims
}

// TokenNamespace holds verified claims keyed by the raw token.
const TokenNamespace = "token"

// SigningAlgorithm is the only algorithm accepted for session tokens.
const SigningAlgorithm = "ES256"
