package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionConfig tunes token issuing and verification.
type SessionConfig struct {
	// TokenTTL sets the exp claim. Zero issues tokens without expiry.
	TokenTTL time.Duration
	// VerifyCacheTTL bounds how long verified claims skip the signature check.
	VerifyCacheTTL time.Duration
	// MaxIPs is the size of the per-session IP window.
	MaxIPs int
}

type SessionService struct {
	sessions ports.Records[session.Session]
	users    ports.Records[user.User]
	claims   ports.Cache
	signer   ports.TokenSigner
	tasks    ports.TaskRunner
	config   SessionConfig
	logger   *logrus.Logger
	now      func() time.Time
}

func NewSessionService(sessions ports.Records[session.Session], users ports.Records[user.User], claims ports.Cache, signer ports.TokenSigner, tasks ports.TaskRunner, cfg SessionConfig, logger *logrus.Logger) *SessionService {
	if cfg.VerifyCacheTTL <= 0 {
		cfg.VerifyCacheTTL = 5 * time.Minute
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		claims:   claims,
		signer:   signer,
		tasks:    tasks,
		config:   cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ ports.SessionService = (*SessionService)(nil)

// Create opens a session for userID and signs its token. Nothing is written
// when the service cannot sign.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, info session.ClientInfo) (*session.Issued, error) {
	u, err := s.users.Get(ctx, ports.Filter{user.FieldID: userID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, auth.ErrUserNotFound
	}
	if !s.signer.CanSign() {
		return nil, auth.ErrNoSigningKey
	}

	now := s.now()
	ips := []string{}
	if info.IP != "" {
		ips = append(ips, info.IP)
	}
	sess, err := s.sessions.Create(ctx, &session.Session{
		UserID:    u.ID,
		Groups:    append([]int(nil), u.Groups...),
		UserAgent: info.UserAgent,
		IPs:       ips,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil)
	switch {
	case sess != nil && errors.Is(err, ports.ErrCacheWrite):
		s.warn(err, logrus.Fields{"session_id": sess.ID}, "session created but not cached")
	case err != nil:
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	claims := &auth.Claims{
		SessionID: sess.ID.String(),
		UserID:    u.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.config.TokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.config.TokenTTL))
	}
	token, err := s.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &session.Issued{Token: token, Session: sess}, nil
}

// Verify authenticates token and returns its active session. A missing and
// a deactivated session are reported the same way. A new client ip is
// recorded in the background.
func (s *SessionService) Verify(ctx context.Context, token, ip string) (*session.Session, error) {
	sid, err := s.claimedSession(ctx, token)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, ports.Filter{session.FieldID: sid.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil || !sess.Active {
		return nil, auth.ErrSessionDeactivated
	}

	if sess.ObserveIP(ip, s.config.MaxIPs) {
		patch := ports.Document{
			session.FieldIPs:       append([]string(nil), sess.IPs...),
			session.FieldUpdatedAt: s.now(),
		}
		id := sess.ID
		s.tasks.Go("session.observe_ip", func(ctx context.Context) error {
			return s.sessions.Update(ctx, ports.Filter{session.FieldID: id.String()}, patch)
		})
	}
	return sess, nil
}

// claimedSession returns the session id token was issued for. Claims cached
// by an earlier verification skip the signature check.
func (s *SessionService) claimedSession(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, auth.ErrInvalidToken
	}

	doc, err := s.claims.Get(ctx, auth.TokenNamespace, token)
	if err != nil {
		s.debug(err, "token cache unusable, verifying signature")
	}
	if doc != nil {
		if raw, ok := doc["sid"].(string); ok {
			if sid, err := uuid.Parse(raw); err == nil {
				return sid, nil
			}
		}
	}

	claims, err := s.signer.Verify(token)
	if err != nil {
		return uuid.Nil, err
	}
	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: session id: %w", auth.ErrInvalidToken, err)
	}

	if ttl := s.claimsTTL(claims); ttl > 0 {
		entry := ports.Document{"sid": claims.SessionID, "uid": claims.UserID}
		if claims.IssuedAt != nil {
			entry["iat"] = claims.IssuedAt.Unix()
		}
		s.tasks.Go("session.cache_claims", func(ctx context.Context) error {
			return s.claims.Put(ctx, auth.TokenNamespace, token, entry, ttl)
		})
	}
	return sid, nil
}

// claimsTTL never lets a cached verification outlive the token.
func (s *SessionService) claimsTTL(claims *auth.Claims) time.Duration {
	ttl := s.config.VerifyCacheTTL
	if claims.ExpiresAt != nil {
		if left := claims.ExpiresAt.Sub(s.now()); left < ttl {
			ttl = left
		}
	}
	return ttl
}

func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	sess, err := s.sessions.Get(ctx, ports.Filter{session.FieldID: id.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// Update applies patch and stamps updated_at. A stale cache entry is only
// logged; it expires with its TTL.
func (s *SessionService) Update(ctx context.Context, id uuid.UUID, patch ports.Document) error {
	p := make(ports.Document, len(patch)+1)
	for k, v := range patch {
		if k == session.FieldID {
			continue
		}
		p[k] = v
	}
	p[session.FieldUpdatedAt] = s.now()

	err := s.sessions.Update(ctx, ports.Filter{session.FieldID: id.String()}, p)
	if errors.Is(err, ports.ErrCacheWrite) {
		s.warn(err, logrus.Fields{"session_id": id}, "session updated but cache is stale")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Delete deactivates the session. The record is kept.
func (s *SessionService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.sessions.Update(ctx, ports.Filter{session.FieldID: id.String()}, ports.Document{
		session.FieldActive:    false,
		session.FieldUpdatedAt: s.now(),
	})
	if err != nil {
		// a cache write failure here leaves the session usable until its entry expires
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}

func (s *SessionService) warn(err error, fields logrus.Fields, msg string) {
	if s.logger != nil {
		s.logger.WithFields(fields).WithError(err).Warn(msg)
	}
}

func (s *SessionService) debug(err error, msg string) {
	if s.logger != nil {
		s.logger.WithError(err).Debug(msg)
	}
}
