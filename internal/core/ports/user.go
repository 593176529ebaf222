package ports

import (
	"context"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/google/uuid"
)

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, req *user.CreateUserRequest) (*user.User, error)
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
	Authenticate(ctx context.Context, req *auth.LoginRequest, info session.ClientInfo) (*session.Issued, error)
}
