package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	users      ports.Records[user.User]
	sessions   ports.SessionService
	validator  *Validator
	bcryptCost int
	// compared against when the login is unknown so both paths cost the same
	dummyHash []byte
	logger    *logrus.Logger
	now       func() time.Time
}

func NewUserService(users ports.Records[user.User], sessions ports.SessionService, validator *Validator, bcryptCost int, logger *logrus.Logger) (*UserService, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if validator == nil {
		validator = NewValidator()
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare credential hashing: %w", err)
	}
	return &UserService{
		users:      users,
		sessions:   sessions,
		validator:  validator,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

var _ ports.UserService = (*UserService)(nil)

func (s *UserService) Register(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if err := s.validator.Check(req).Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	created, err := s.users.Create(ctx, &user.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CPF:          req.CPF,
		PrimaryEmail: strings.ToLower(req.PrimaryEmail),
		PrimaryPhone: req.PrimaryPhone,
		Birth:        req.Birth.UTC(),
		Groups:       []int{user.DefaultGroup},
		Credential:   string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil)
	switch {
	case errors.Is(err, ports.ErrDuplicate):
		return nil, user.ErrAlreadyRegistered
	case created != nil && errors.Is(err, ports.ErrCacheWrite):
		s.warn(err, logrus.Fields{"user_id": created.ID}, "user registered but not cached")
	case err != nil:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.users.Get(ctx, ports.Filter{user.FieldID: id.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

// Authenticate resolves the login as an email or phone, checks the password
// and opens a session for the client.
func (s *UserService) Authenticate(ctx context.Context, req *auth.LoginRequest, info session.ClientInfo) (*session.Issued, error) {
	if err := s.validator.Check(req).Err(); err != nil {
		return nil, err
	}

	filter := ports.Filter{user.FieldPrimaryPhone: req.Login}
	if strings.Contains(req.Login, "@") {
		filter = ports.Filter{user.FieldPrimaryEmail: strings.ToLower(req.Login)}
	}
	u, err := s.users.Get(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	hash := s.dummyHash
	if u != nil {
		hash = []byte(u.Credential)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(req.Password)); err != nil || u == nil {
		return nil, auth.ErrInvalidCredentials
	}

	return s.sessions.Create(ctx, u.ID, info)
}

func (s *UserService) warn(err error, fields logrus.Fields, msg string) {
	if s.logger != nil {
		s.logger.WithFields(fields).WithError(err).Warn(msg)
	}
}
