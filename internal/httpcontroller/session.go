package httpcontroller

import (
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/conf"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
	"github.com/skybound/skybound/internal/session"
)

const (
	ctxKeyCookies = "skybound-cookies"
	ctxKeySession = "skybound-session"
)

// Flash kinds, stored as separate flash keys in the session cookie.
const (
	flashSuccess = "success"
	flashError   = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

func sessionCookieStore(settings *conf.Settings) sessions.Store {
	return session.NewCookieStore(
		settings.WebServer.SessionSecret,
		settings.WebServer.SessionMaxAge,
		settings.Security.AutoTLS,
	)
}

// SessionMiddleware opens the session cookie and puts a session store over
// it into the request context.
func (s *Server) SessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			kv := session.NewCookieKV(s.cookies, c.Request(), c.Response())
			c.Set(ctxKeyCookies, kv)
			c.Set(ctxKeySession, session.NewStore(kv, s.requestLogger(c)))
			return next(c)
		}
	}
}

// sessionFrom returns the session of the request. Outside SessionMiddleware
// it is an empty, anonymous session.
func sessionFrom(c echo.Context) *session.Store {
	if st, ok := c.Get(ctxKeySession).(*session.Store); ok {
		return st
	}
	return session.NewStore(session.NewMemoryKV(), nil)
}

func cookiesFrom(c echo.Context) (*session.CookieKV, bool) {
	kv, ok := c.Get(ctxKeyCookies).(*session.CookieKV)
	return kv, ok
}

// currentUser returns the logged-in user, or nil.
func currentUser(c echo.Context) *model.User {
	sess, ok := sessionFrom(c).Load()
	if !ok {
		return nil
	}
	return &sess.User
}

// backendFor returns the catalog authenticated with the request's token.
func (s *Server) backendFor(c echo.Context) *catalog.Backend {
	return s.Backend.WithTokens(sessionFrom(c))
}

// addFlash queues a message for the next page.
func (s *Server) addFlash(c echo.Context, kind, message string) {
	kv, ok := cookiesFrom(c)
	if !ok {
		return
	}
	kv.Session().AddFlash(message, kind)
	if err := kv.Save(); err != nil {
		s.requestLogger(c).Warn("failed to save flash message", logger.Error(err))
	}
}

// popFlashes returns and clears the queued messages.
func (s *Server) popFlashes(c echo.Context) []Flash {
	kv, ok := cookiesFrom(c)
	if !ok {
		return nil
	}

	var flashes []Flash
	for _, kind := range []string{flashSuccess, flashError} {
		for _, v := range kv.Session().Flashes(kind) {
			if msg, ok := v.(string); ok {
				flashes = append(flashes, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(flashes) > 0 {
		if err := kv.Save(); err != nil {
			s.requestLogger(c).Warn("failed to clear flash messages", logger.Error(err))
		}
	}
	return flashes
}
