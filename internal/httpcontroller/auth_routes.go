package httpcontroller

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/form"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/logger"
)

// Login page messages.
const (
	msgBadCredentials = "Correo o contraseña incorrectos"
	msgLoginUnknown   = "Error inesperado."
	msgLoginThrottled = "Demasiados intentos. Intenta de nuevo más tarde."
)

// loginView is the data of the login page.
type loginView struct {
	Email string
	Error string
}

// initAuthRoutes initializes all authentication related routes
func (s *Server) initAuthRoutes() {
	s.Echo.GET("/login", s.handleLoginPage)
	s.Echo.POST("/login", s.handleLogin)
	s.Echo.POST("/logout", s.handleLogout)
}

func (s *Server) handleLoginPage(c echo.Context) error {
	if sessionFrom(c).IsAuthenticated() {
		return c.Redirect(http.StatusSeeOther, "/aves")
	}
	return s.render(c, http.StatusOK, "login", "Iniciar sesión", loginView{})
}

// handleLogin hashes the password, exchanges the credentials for a token
// and stores the session.
func (s *Server) handleLogin(c echo.Context) error {
	reqLog := s.requestLogger(c)
	email := strings.TrimSpace(c.FormValue("correo"))
	password := c.FormValue("clave")

	if !s.limiter.Allow(s.RealIP(c)) {
		s.httpMetrics().RecordAuthOperation("login", "throttled")
		reqLog.Warn("login throttled")
		return s.render(c, http.StatusTooManyRequests, "login", "Iniciar sesión",
			loginView{Email: email, Error: msgLoginThrottled})
	}

	if email == "" || password == "" {
		s.httpMetrics().RecordAuthOperation("login", "failure")
		return s.render(c, http.StatusBadRequest, "login", "Iniciar sesión",
			loginView{Email: email, Error: msgBadCredentials})
	}

	resp, err := s.Backend.Login(c.Request().Context(), email, form.HashPassword(password))
	if err != nil {
		s.httpMetrics().RecordAuthOperation("login", "failure")
		reqLog.Warn("login failed", logger.Error(err))

		msg, status := msgLoginUnknown, http.StatusBadGateway
		var reqErr *httpclient.RequestError
		if errors.As(err, &reqErr) {
			msg, status = msgBadCredentials, http.StatusUnauthorized
		}
		return s.render(c, status, "login", "Iniciar sesión", loginView{Email: email, Error: msg})
	}

	if err := sessionFrom(c).Login(resp.User, resp.Token); err != nil {
		s.httpMetrics().RecordAuthOperation("login", "failure")
		reqLog.Error("failed to store session", logger.Error(err))
		return s.render(c, http.StatusInternalServerError, "login", "Iniciar sesión",
			loginView{Email: email, Error: msgLoginUnknown})
	}

	s.httpMetrics().RecordAuthOperation("login", "success")
	return c.Redirect(http.StatusSeeOther, "/aves")
}

func (s *Server) handleLogout(c echo.Context) error {
	if err := sessionFrom(c).Logout(); err != nil {
		s.requestLogger(c).Error("failed to clear session", logger.Error(err))
		s.addFlash(c, flashError, msgOperationFailed)
		return c.Redirect(http.StatusSeeOther, "/aves")
	}
	s.httpMetrics().RecordAuthOperation("logout", "success")
	return c.Redirect(http.StatusSeeOther, "/login")
}
