package session

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Namespace is the cache namespace and collection name of sessions.
const Namespace = "sessions"

// Document field names touched by partial updates.
const (
	FieldID        = "id"
	FieldActive    = "active"
	FieldIPs       = "ips"
	FieldUserAgent = "user_agent"
	FieldUpdatedAt = "updated_at"
)

// Session is the persisted authentication session. Groups are a snapshot of
// the user's permission groups taken at creation time.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Groups    []int     `json:"groups"`
	UserAgent string    `json:"user_agent"`
	IPs       []string  `json:"ips"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientInfo describes the client a session is opened for.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// Issued is the result of opening a session.
type Issued struct {
	Token   string   `json:"token"`
	Session *Session `json:"session"`
}

func (s *Session) HasIP(ip string) bool {
	return slices.Contains(s.IPs, ip)
}

// ObserveIP records ip in the audit window, keeping at most max distinct
// addresses (oldest dropped first). It reports whether the list changed.
func (s *Session) ObserveIP(ip string, max int) bool {
	if ip == "" || s.HasIP(ip) {
		return false
	}
	s.IPs = append(s.IPs, ip)
	if max > 0 && len(s.IPs) > max {
		s.IPs = slices.Clone(s.IPs[len(s.IPs)-max:])
	}
	return true
}

// InAnyGroup reports whether the session holds at least one of groups.
// An empty groups list always matches.
func (s *Session) InAnyGroup(groups ...int) bool {
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		if slices.Contains(s.Groups, g) {
			return true
		}
	}
	return false
}

// UpdateSessionRequest represents the mutable fields of the current session
type UpdateSessionRequest struct {
	UserAgent *string `json:"user_agent,omitempty" validate:"omitempty,max=512"`
}
