package tokens_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func claims() *auth.Claims {
	return &auth.Claims{
		SessionID: "s-1",
		UserID:    "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestES256Signer_SignAndVerify(t *testing.T) {
	key := newKey(t)
	s, err := tokens.NewES256Signer("k1", &key.PublicKey, key)
	require.NoError(t, err)
	require.True(t, s.CanSign())

	token, err := s.Sign(claims())
	require.NoError(t, err)

	got, err := s.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "s-1", got.SessionID)
	require.Equal(t, "u-1", got.UserID)
}

func TestES256Signer_VerifyOnlyCannotSign(t *testing.T) {
	key := newKey(t)
	signer, err := tokens.NewES256Signer("k1", &key.PublicKey, key)
	require.NoError(t, err)
	verifier, err := tokens.NewES256Signer("k1", &key.PublicKey, nil)
	require.NoError(t, err)
	require.False(t, verifier.CanSign())

	_, err = verifier.Sign(claims())
	require.ErrorIs(t, err, auth.ErrNoSigningKey)

	token, err := signer.Sign(claims())
	require.NoError(t, err)
	_, err = verifier.Verify(token)
	require.NoError(t, err)
}

func TestES256Signer_RejectsForeignAndTamperedTokens(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	s, err := tokens.NewES256Signer("k1", &key.PublicKey, key)
	require.NoError(t, err)
	foreign, err := tokens.NewES256Signer("k1", &other.PublicKey, other)
	require.NoError(t, err)

	token, err := foreign.Sign(claims())
	require.NoError(t, err)
	_, err = s.Verify(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = s.Verify("not-a-token")
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, claims())
	hsToken, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Verify(hsToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestES256Signer_RejectsExpired(t *testing.T) {
	key := newKey(t)
	s, err := tokens.NewES256Signer("k1", &key.PublicKey, key)
	require.NoError(t, err)

	c := claims()
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token, err := s.Sign(c)
	require.NoError(t, err)
	_, err = s.Verify(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestES256Signer_RejectsUnknownKeyID(t *testing.T) {
	key := newKey(t)
	a, err := tokens.NewES256Signer("k1", &key.PublicKey, key)
	require.NoError(t, err)
	b, err := tokens.NewES256Signer("k2", &key.PublicKey, key)
	require.NoError(t, err)

	token, err := a.Sign(claims())
	require.NoError(t, err)
	_, err = b.Verify(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestNewES256SignerFromPEM(t *testing.T) {
	key := newKey(t)
	privDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	privPEM := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}))
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	s, err := tokens.NewES256SignerFromPEM("k1", pubPEM, privPEM)
	require.NoError(t, err)
	require.True(t, s.CanSign())

	v, err := tokens.NewES256SignerFromPEM("k1", pubPEM, "")
	require.NoError(t, err)
	require.False(t, v.CanSign())

	_, err = tokens.NewES256SignerFromPEM("k1", "garbage", "")
	require.Error(t, err)

	other := newKey(t)
	_, err = tokens.NewES256Signer("k1", &other.PublicKey, key)
	require.Error(t, err)
}
