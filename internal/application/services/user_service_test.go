package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GX-mob/gx-service-template/internal/application/services"
	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/GX-mob/gx-service-template/test/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T, f *fixture, sessions ports.SessionService) *services.UserService {
	t.Helper()
	svc, err := services.NewUserService(f.users, sessions, services.NewValidator(), bcrypt.MinCost, nil)
	require.NoError(t, err)
	return svc
}

func registration() *user.CreateUserRequest {
	return &user.CreateUserRequest{
		FirstName:    "Ana",
		LastName:     "Souza",
		CPF:          "12345678901",
		PrimaryEmail: "Ana@Example.com",
		PrimaryPhone: "+5511999990000",
		Birth:        time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Password:     "Str0ng!pass",
	}
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, services.SessionConfig{})
	svc := newUserService(t, f, f.svc)

	u, err := svc.Register(ctx, registration())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, u.ID)
	require.Equal(t, "ana@example.com", u.PrimaryEmail)
	require.Equal(t, []int{user.DefaultGroup}, u.Groups)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Credential), []byte("Str0ng!pass")))

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, 0, f.userDocs.Finds)
}

func TestUserService_RegisterRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t, services.SessionConfig{})
	svc := newUserService(t, f, f.svc)

	req := registration()
	req.Password = "weak"
	req.PrimaryEmail = "not-an-email"

	_, err := svc.Register(context.Background(), req)
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	require.False(t, verr.Result.Valid)
	fields := map[string]string{}
	for _, fe := range verr.Result.Errors {
		fields[fe.Field] = fe.Rule
	}
	require.Equal(t, map[string]string{"primary_email": "email", "password": "strongpassword"}, fields)
	require.Zero(t, f.userDocs.Creates)
}

func TestUserService_RegisterDuplicate(t *testing.T) {
	f := newFixture(t, services.SessionConfig{})
	svc := newUserService(t, f, f.svc)
	f.userDocs.CreateErr = ports.ErrDuplicate

	_, err := svc.Register(context.Background(), registration())
	require.ErrorIs(t, err, user.ErrAlreadyRegistered)
}

func TestUserService_GetUnknown(t *testing.T) {
	f := newFixture(t, services.SessionConfig{})
	svc := newUserService(t, f, f.svc)

	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserService_AuthenticateByEmailOrPhone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, services.SessionConfig{})
	svc := newUserService(t, f, f.svc)
	u, err := svc.Register(ctx, registration())
	require.NoError(t, err)

	for _, login := range []string{"ANA@example.com", "+5511999990000"} {
		issued, err := svc.Authenticate(ctx, &auth.LoginRequest{Login: login, Password: "Str0ng!pass"}, client)
		require.NoError(t, err, login)
		require.Equal(t, u.ID, issued.Session.UserID)
		require.NotEmpty(t, issued.Token)
	}
	require.Equal(t, 2, f.sessDocs.Len())
}

func TestUserService_AuthenticateFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, services.SessionConfig{})
	sessions := &mocks.SessionServiceMock{
		CreateFn: func(ctx context.Context, userID uuid.UUID, info session.ClientInfo) (*session.Issued, error) {
			return nil, errors.New("must not be called")
		},
	}
	svc := newUserService(t, f, sessions)
	_, err := svc.Register(ctx, registration())
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, &auth.LoginRequest{Login: "ana@example.com", Password: "Wr0ng!password"}, client)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, &auth.LoginRequest{Login: "nobody@example.com", Password: "Str0ng!pass"}, client)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestUserService_AuthenticateRequiresCredentials(t *testing.T) {
	f := newFixture(t, services.SessionConfig{})
	svc := newUserService(t, f, f.svc)

	_, err := svc.Authenticate(context.Background(), &auth.LoginRequest{Login: "ana@example.com"}, client)
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
}
