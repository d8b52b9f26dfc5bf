package httpcontroller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/form"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

const usersPath = "/register"

var userLabels = entityLabels{Title: "Usuarios", Singular: "usuario"}

// usersView is the data of the user administration screen.
type usersView struct {
	Users      []model.User
	LoadFailed bool

	Draft      form.UserDraft
	Editing    bool
	FormAction string
}

func (s *Server) initUserRoutes() {
	s.Echo.GET(usersPath, s.handleUsers)
	s.Echo.POST(usersPath, s.handleUserSave)
	s.Echo.POST(usersPath+"/:id", s.handleUserSave)
	s.Echo.POST(usersPath+"/:id/delete", s.handleUserDelete)
}

func (s *Server) usersController(c echo.Context) *listing.Controller[model.User] {
	return listing.New[model.User](s.backendFor(c).Users, s.listingOptions())
}

func (s *Server) handleUsers(c echo.Context) error {
	if ok, err := s.gate(c); !ok {
		return err
	}

	users := s.usersController(c)
	loadErr := users.LoadAll(c.Request().Context())
	if loadErr != nil {
		s.requestLogger(c).Warn("failed to load users", logger.Error(loadErr))
	}

	view := usersView{
		Users:      users.Items(),
		LoadFailed: loadErr != nil,
		FormAction: usersPath,
	}

	f := form.OpenUser(nil)
	if id := queryID(c, "editar"); id > 0 {
		if u, ok := users.Find(id); ok {
			f = form.OpenUser(&u)
			view.Editing = true
			view.FormAction = usersPath + "/" + strconv.Itoa(id)
		}
	}
	view.Draft = f.Draft

	return s.render(c, http.StatusOK, "users", userLabels.Title, view)
}

// handleUserSave creates a user, or updates the listed user when the
// route has an id. A blank password on edit keeps the stored one.
func (s *Server) handleUserSave(c echo.Context) error {
	if ok, err := s.gate(c); !ok {
		return err
	}
	ctx := c.Request().Context()
	users := s.usersController(c)
	verb := "agregad"

	f := form.OpenUser(nil)
	var err error
	if c.Param("id") != "" {
		verb = "actualizad"
		f, err = s.openUser(c, users)
	}
	if err == nil {
		values, parseErr := c.FormParams()
		if parseErr != nil {
			s.requestLogger(c).Debug("failed to parse form", logger.Error(parseErr))
		}
		f.Draft = form.UserDraftFromValues(values)
		err = f.Submit(ctx, users)
	}
	if err != nil {
		s.requestLogger(c).Warn("failed to save user", logger.Error(err))
	}
	s.flashResult(c, err, userLabels, verb)
	return c.Redirect(http.StatusSeeOther, usersPath)
}

func (s *Server) handleUserDelete(c echo.Context) error {
	if ok, err := s.gate(c); !ok {
		return err
	}

	id, err := paramID(c)
	if err == nil {
		err = s.usersController(c).Delete(c.Request().Context(), id)
	}
	if err != nil {
		s.requestLogger(c).Warn("failed to delete user", logger.Error(err))
	}
	s.flashResult(c, err, userLabels, "eliminad")
	return c.Redirect(http.StatusSeeOther, usersPath)
}

func (s *Server) openUser(c echo.Context, users *listing.Controller[model.User]) (*form.UserForm, error) {
	id, err := paramID(c)
	if err != nil {
		return nil, err
	}
	if err := users.LoadAll(c.Request().Context()); err != nil {
		return nil, err
	}
	u, ok := users.Find(id)
	if !ok {
		return nil, errors.Newf("user %d not found", id).
			Component("httpcontroller").
			Category(errors.CategoryNotFound).
			Build()
	}
	return form.OpenUser(&u), nil
}
