package ports

import (
	"context"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/google/uuid"
)

// TokenSigner signs and verifies session tokens.
type TokenSigner interface {
	// Sign fails with auth.ErrNoSigningKey when no private key is held.
	Sign(claims *auth.Claims) (string, error)
	// Verify checks the signature and decodes the claims.
	Verify(token string) (*auth.Claims, error)
	CanSign() bool
}

// SessionService issues and verifies sessions
type SessionService interface {
	Create(ctx context.Context, userID uuid.UUID, info session.ClientInfo) (*session.Issued, error)
	Verify(ctx context.Context, token, ip string) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	Update(ctx context.Context, id uuid.UUID, patch Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}
