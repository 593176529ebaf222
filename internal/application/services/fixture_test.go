package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/GX-mob/gx-service-template/internal/application/services"
	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/cache"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/repositories"
	"github.com/GX-mob/gx-service-template/test/mocks"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	kv       *mocks.MemoryKV
	userDocs *mocks.MemoryDocuments
	sessDocs *mocks.MemoryDocuments
	cache    *cache.Store
	users    *repositories.RecordHandler[user.User]
	sessions *repositories.RecordHandler[session.Session]
	signer   *mocks.TokenSignerMock
	runner   *mocks.InlineRunner
	svc      *services.SessionService
}

// newFixture wires the session service over in-memory backends. Tokens are
// "token-<session id>" and verify back to their session.
func newFixture(t *testing.T, cfg services.SessionConfig) *fixture {
	t.Helper()
	reg := cache.NewSchemaRegistry()
	require.NoError(t, repositories.RegisterSchemas(reg))

	f := &fixture{
		kv:       mocks.NewMemoryKV(),
		userDocs: mocks.NewMemoryDocuments(user.Namespace),
		sessDocs: mocks.NewMemoryDocuments(session.Namespace),
		runner:   &mocks.InlineRunner{},
	}
	f.cache = cache.NewStore(f.kv, reg)
	f.users = repositories.NewRecordHandler[user.User](f.cache, f.userDocs, user.Namespace, user.LinkingKeys, nil)
	f.sessions = repositories.NewRecordHandler[session.Session](f.cache, f.sessDocs, session.Namespace, nil, nil)
	f.signer = &mocks.TokenSignerMock{
		VerifyFn: func(token string) (*auth.Claims, error) {
			sid, ok := strings.CutPrefix(token, "token-")
			if !ok {
				return nil, auth.ErrInvalidToken
			}
			return &auth.Claims{SessionID: sid}, nil
		},
	}
	f.svc = services.NewSessionService(f.sessions, f.users, f.cache, f.signer, f.runner, cfg, nil)
	return f
}

func (f *fixture) addUser(t *testing.T, email, password string) *user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := f.users.Create(context.Background(), &user.User{
		FirstName:    "Ana",
		LastName:     "Souza",
		CPF:          "12345678901",
		PrimaryEmail: email,
		PrimaryPhone: "+5511999990000",
		Groups:       []int{user.DefaultGroup, 3},
		Credential:   string(hash),
		CreatedAt:    time.Now().UTC(),
	}, nil)
	require.NoError(t, err)
	return u
}
