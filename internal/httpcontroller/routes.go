// httpcontroller/routes.go
package httpcontroller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

// msgOperationFailed is the generic message shown for any failed action.
const msgOperationFailed = "Ocurrió un error al procesar la operación"

// entityLabels are the words used in titles and flash messages of a screen.
type entityLabels struct {
	Title    string // page title, plural
	Singular string // lower case
	Feminine bool
}

// done returns e.g. "Familia agregada correctamente" for verb "agregad".
func (l entityLabels) done(verb string) string {
	ending := "o"
	if l.Feminine {
		ending = "a"
	}
	return titleCase(l.Singular) + " " + verb + ending + " correctamente"
}

// saveFailed returns e.g. "Error al guardar familia.".
func (l entityLabels) saveFailed() string {
	return "Error al guardar " + l.Singular + "."
}

// deniedView is the data of the access-denied page.
type deniedView struct {
	Heading string
	Message string
}

// initRoutes initializes the routes for the server.
func (s *Server) initRoutes() {
	s.Echo.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/aves")
	})
	s.Echo.GET("/healthz", s.handleHealth)
	if s.Settings.WebServer.Metrics && s.Metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	s.initAuthRoutes()
	s.initBirdRoutes()
	s.initUserRoutes()

	registerReferenceScreen(s, "/familias", entityLabels{Title: "Familias", Singular: "familia", Feminine: true},
		func(b *catalog.Backend) listing.Resource[model.Family] { return b.Families })
	registerReferenceScreen(s, "/categorias", entityLabels{Title: "Categorías estacionales", Singular: "categoría", Feminine: true},
		func(b *catalog.Backend) listing.Resource[model.SeasonalCategory] { return b.Categories })
	registerReferenceScreen(s, "/estatus", entityLabels{Title: "Estatus de protección", Singular: "estatus"},
		func(b *catalog.Backend) listing.Resource[model.ProtectionStatus] { return b.Statuses })
	registerReferenceScreen(s, "/habitats", entityLabels{Title: "Hábitats", Singular: "habitat"},
		func(b *catalog.Backend) listing.Resource[model.Habitat] { return b.Habitats })
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// gate renders the access-denied page when the request has no session.
// It reports whether the handler may continue.
func (s *Server) gate(c echo.Context) (bool, error) {
	if err := listing.Gate(sessionFrom(c)); err != nil {
		s.requestLogger(c).Debug("access denied", logger.String("path", c.Path()))
		return false, s.render(c, http.StatusForbidden, "denied", listing.AccessDeniedTitle, deniedView{
			Heading: listing.AccessDeniedTitle,
			Message: listing.AccessDeniedMessage,
		})
	}
	return true, nil
}

// paramID parses the :id route parameter.
func paramID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, errors.Newf("invalid id %q", c.Param("id")).
			Component("httpcontroller").
			Category(errors.CategoryValidation).
			Build()
	}
	return id, nil
}

// queryID parses an optional numeric query parameter, zero when absent or invalid.
func queryID(c echo.Context, name string) int {
	id, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// flashResult queues the outcome of a mutation.
func (s *Server) flashResult(c echo.Context, err error, labels entityLabels, verb string) {
	switch {
	case err == nil:
		s.addFlash(c, flashSuccess, labels.done(verb))
	case errors.IsCategory(err, errors.CategoryValidation):
		s.addFlash(c, flashError, labels.saveFailed())
	default:
		s.addFlash(c, flashError, msgOperationFailed)
	}
}
