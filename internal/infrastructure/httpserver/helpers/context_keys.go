package helpers

import (
	"github.com/labstack/echo/v4"

	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
)

type ctxKey string

const (
	keySession ctxKey = "session"
	keyToken   ctxKey = "session_token"
)

func SetSession(c echo.Context, s *session.Session) { c.Set(string(keySession), s) }
func GetSessionRaw(c echo.Context) (*session.Session, bool) {
	v := c.Get(string(keySession))
	s, ok := v.(*session.Session)
	return s, ok
}

func SetToken(c echo.Context, token string) { c.Set(string(keyToken), token) }
func GetTokenRaw(c echo.Context) (string, bool) {
	v := c.Get(string(keyToken))
	s, ok := v.(string)
	return s, ok
}
