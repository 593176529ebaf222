package tokens

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/golang-jwt/jwt/v5"
)

// ES256Signer signs session tokens with an ECDSA P-256 key. Without a private
// key it only verifies.
type ES256Signer struct {
	keyID      string
	publicKey  *ecdsa.PublicKey
	privateKey *ecdsa.PrivateKey
	parser     *jwt.Parser
}

var _ ports.TokenSigner = (*ES256Signer)(nil)

// NewES256Signer builds a signer from key material.
func NewES256Signer(keyID string, public *ecdsa.PublicKey, private *ecdsa.PrivateKey) (*ES256Signer, error) {
	if public == nil {
		return nil, errors.New("tokens: public key is required")
	}
	if private != nil && !private.PublicKey.Equal(public) {
		return nil, errors.New("tokens: private key does not match public key")
	}
	return &ES256Signer{
		keyID:      keyID,
		publicKey:  public,
		privateKey: private,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{auth.SigningAlgorithm})),
	}, nil
}

// NewES256SignerFromPEM parses PEM encoded keys. privatePEM may be empty.
func NewES256SignerFromPEM(keyID, publicPEM, privatePEM string) (*ES256Signer, error) {
	public, err := jwt.ParseECPublicKeyFromPEM([]byte(publicPEM))
	if err != nil {
		return nil, fmt.Errorf("tokens: invalid public key: %w", err)
	}
	var private *ecdsa.PrivateKey
	if privatePEM != "" {
		if private, err = jwt.ParseECPrivateKeyFromPEM([]byte(privatePEM)); err != nil {
			return nil, fmt.Errorf("tokens: invalid private key: %w", err)
		}
	}
	return NewES256Signer(keyID, public, private)
}

func (s *ES256Signer) CanSign() bool { return s.privateKey != nil }

// Sign fails with auth.ErrNoSigningKey on verification-only instances.
func (s *ES256Signer) Sign(claims *auth.Claims) (string, error) {
	if s.privateKey == nil {
		return "", auth.ErrNoSigningKey
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and standard time claims. Every failure is
// reported as auth.ErrInvalidToken.
func (s *ES256Signer) Verify(tokenString string) (*auth.Claims, error) {
	claims := &auth.Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if kid, ok := token.Header["kid"].(string); ok && s.keyID != "" && kid != s.keyID {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return s.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidToken, err)
	}
	if !token.Valid || claims.SessionID == "" || claims.UserID == "" {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}
