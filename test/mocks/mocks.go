package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/google/uuid"
)

// TokenSignerMock is a lightweight mock for TokenSigner
type TokenSignerMock struct {
	SignFn    func(claims *auth.Claims) (string, error)
	VerifyFn  func(token string) (*auth.Claims, error)
	CanSignFn func() bool

	signCalls   atomic.Int64
	verifyCalls atomic.Int64
}

func (m *TokenSignerMock) Sign(claims *auth.Claims) (string, error) {
	m.signCalls.Add(1)
	if m.SignFn != nil {
		return m.SignFn(claims)
	}
	return "token-" + claims.SessionID, nil
}
func (m *TokenSignerMock) Verify(token string) (*auth.Claims, error) {
	m.verifyCalls.Add(1)
	if m.VerifyFn != nil {
		return m.VerifyFn(token)
	}
	return nil, auth.ErrInvalidToken
}
func (m *TokenSignerMock) CanSign() bool {
	if m.CanSignFn != nil {
		return m.CanSignFn()
	}
	return true
}
func (m *TokenSignerMock) SignCalls() int64   { return m.signCalls.Load() }
func (m *TokenSignerMock) VerifyCalls() int64 { return m.verifyCalls.Load() }

// InlineRunner runs tasks synchronously and records their outcome.
type InlineRunner struct {
	mu     sync.Mutex
	Names  []string
	Errors []error
}

func (r *InlineRunner) Go(name string, task func(ctx context.Context) error) {
	err := task(context.Background())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Names = append(r.Names, name)
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// SessionServiceMock is a lightweight mock for SessionService
type SessionServiceMock struct {
	CreateFn func(ctx context.Context, userID uuid.UUID, info session.ClientInfo) (*session.Issued, error)
	VerifyFn func(ctx context.Context, token, ip string) (*session.Session, error)
	GetFn    func(ctx context.Context, id uuid.UUID) (*session.Session, error)
	UpdateFn func(ctx context.Context, id uuid.UUID, patch ports.Document) error
	DeleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *SessionServiceMock) Create(ctx context.Context, userID uuid.UUID, info session.ClientInfo) (*session.Issued, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, userID, info)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *SessionServiceMock) Verify(ctx context.Context, token, ip string) (*session.Session, error) {
	if m.VerifyFn != nil {
		return m.VerifyFn(ctx, token, ip)
	}
	return nil, auth.ErrInvalidToken
}
func (m *SessionServiceMock) Get(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	return nil, nil
}
func (m *SessionServiceMock) Update(ctx context.Context, id uuid.UUID, patch ports.Document) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, patch)
	}
	return nil
}
func (m *SessionServiceMock) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}

// UserServiceMock is a lightweight mock for UserService
type UserServiceMock struct {
	RegisterFn     func(ctx context.Context, req *user.CreateUserRequest) (*user.User, error)
	GetFn          func(ctx context.Context, id uuid.UUID) (*user.User, error)
	AuthenticateFn func(ctx context.Context, req *auth.LoginRequest, info session.ClientInfo) (*session.Issued, error)
}

func (m *UserServiceMock) Register(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if m.RegisterFn != nil {
		return m.RegisterFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *UserServiceMock) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	return nil, nil
}
func (m *UserServiceMock) Authenticate(ctx context.Context, req *auth.LoginRequest, info session.ClientInfo) (*session.Issued, error) {
	if m.AuthenticateFn != nil {
		return m.AuthenticateFn(ctx, req, info)
	}
	return nil, auth.ErrInvalidCredentials
}

// HealthCheckerMock is a lightweight mock for HealthChecker
type HealthCheckerMock struct {
	NameValue string
	CheckFn   func(ctx context.Context) error
}

func (m *HealthCheckerMock) Name() string { return m.NameValue }
func (m *HealthCheckerMock) Check(ctx context.Context) error {
	if m.CheckFn != nil {
		return m.CheckFn(ctx)
	}
	return nil
}

// RateLimiterMock is a lightweight mock for RateLimiterService. Without
// AllowFn every request is allowed.
type RateLimiterMock struct {
	AllowFn func(ctx context.Context, key string) (bool, int, int, time.Time, error)

	mu   sync.Mutex
	Keys []string
}

func (m *RateLimiterMock) Allow(ctx context.Context, key string) (bool, int, int, time.Time, error) {
	m.mu.Lock()
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()
	if m.AllowFn != nil {
		return m.AllowFn(ctx, key)
	}
	return true, 1, 1, time.Time{}, nil
}

var (
	_ ports.RateLimiterService = (*RateLimiterMock)(nil)
	_ ports.TokenSigner        = (*TokenSignerMock)(nil)
	_ ports.TaskRunner         = (*InlineRunner)(nil)
	_ ports.SessionService     = (*SessionServiceMock)(nil)
	_ ports.UserService        = (*UserServiceMock)(nil)
	_ ports.HealthChecker      = (*HealthCheckerMock)(nil)
)
