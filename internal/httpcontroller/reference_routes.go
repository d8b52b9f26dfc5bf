package httpcontroller

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/form"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

// referenceRow is one table row of a reference screen.
type referenceRow struct {
	ID   int
	Data model.ReferenceData
}

// referenceView is the data of a reference screen.
type referenceView struct {
	Path       string
	Labels     entityLabels
	Rows       []referenceRow
	LoadFailed bool

	Draft      form.ReferenceDraft
	Editing    bool
	FormAction string
}

// referenceScreen serves the list and mutations of one lookup table.
type referenceScreen[T model.ReferenceEntity[T]] struct {
	s        *Server
	path     string
	labels   entityLabels
	resource func(*catalog.Backend) listing.Resource[T]
}

// registerReferenceScreen mounts GET path, POST path, POST path/:id and
// POST path/:id/delete, all gated.
func registerReferenceScreen[T model.ReferenceEntity[T]](s *Server, path string, labels entityLabels, resource func(*catalog.Backend) listing.Resource[T]) {
	rs := &referenceScreen[T]{s: s, path: path, labels: labels, resource: resource}
	s.Echo.GET(path, rs.handleList)
	s.Echo.POST(path, rs.handleSave)
	s.Echo.POST(path+"/:id", rs.handleSave)
	s.Echo.POST(path+"/:id/delete", rs.handleDelete)
}

func (rs *referenceScreen[T]) controller(c echo.Context) *listing.Controller[T] {
	return listing.New[T](rs.resource(rs.s.backendFor(c)), rs.s.referenceOptions())
}

func (rs *referenceScreen[T]) handleList(c echo.Context) error {
	if ok, err := rs.s.gate(c); !ok {
		return err
	}

	ctrl := rs.controller(c)
	loadErr := ctrl.LoadAll(c.Request().Context())
	if loadErr != nil {
		rs.s.requestLogger(c).Warn("failed to load list",
			logger.String("entity", ctrl.Entity()), logger.Error(loadErr))
	}

	view := referenceView{
		Path:       rs.path,
		Labels:     rs.labels,
		LoadFailed: loadErr != nil,
		FormAction: rs.path,
	}
	for _, item := range ctrl.Items() {
		view.Rows = append(view.Rows, referenceRow{ID: item.EntityID(), Data: item.Data()})
	}

	f := form.OpenReference[T](nil)
	if id := queryID(c, "editar"); id > 0 {
		if item, ok := ctrl.Find(id); ok {
			f = form.OpenReference(&item)
			view.Editing = true
			view.FormAction = rs.path + "/" + strconv.Itoa(id)
		}
	}
	view.Draft = f.Draft

	return rs.s.render(c, http.StatusOK, "reference", rs.labels.Title, view)
}

// handleSave creates a row, or updates the listed row when the route has
// an id. Updates send the whole listed record with the edits applied.
func (rs *referenceScreen[T]) handleSave(c echo.Context) error {
	if ok, err := rs.s.gate(c); !ok {
		return err
	}
	ctx := c.Request().Context()
	ctrl := rs.controller(c)
	verb := "agregad"

	f := form.OpenReference[T](nil)
	var err error
	if c.Param("id") != "" {
		verb = "actualizad"
		f, err = rs.openExisting(c, ctrl)
	}
	if err == nil {
		f.Draft = form.ReferenceDraftFromValues(rs.values(c))
		err = f.Submit(ctx, ctrl)
	}
	if err != nil {
		rs.s.requestLogger(c).Warn("failed to save",
			logger.String("entity", ctrl.Entity()), logger.Error(err))
	}
	rs.s.flashResult(c, err, rs.labels, verb)
	return c.Redirect(http.StatusSeeOther, rs.path)
}

func (rs *referenceScreen[T]) handleDelete(c echo.Context) error {
	if ok, err := rs.s.gate(c); !ok {
		return err
	}
	ctrl := rs.controller(c)

	id, err := paramID(c)
	if err == nil {
		err = ctrl.Delete(c.Request().Context(), id)
	}
	if err != nil {
		rs.s.requestLogger(c).Warn("failed to delete",
			logger.String("entity", ctrl.Entity()), logger.Error(err))
	}
	rs.s.flashResult(c, err, rs.labels, "eliminad")
	return c.Redirect(http.StatusSeeOther, rs.path)
}

// openExisting loads the list and opens the row named by :id.
func (rs *referenceScreen[T]) openExisting(c echo.Context, ctrl *listing.Controller[T]) (*form.ReferenceForm[T], error) {
	id, err := paramID(c)
	if err != nil {
		return nil, err
	}
	if err := ctrl.LoadAll(c.Request().Context()); err != nil {
		return nil, err
	}
	item, ok := ctrl.Find(id)
	if !ok {
		return nil, errors.Newf("%s %d not found", ctrl.Entity(), id).
			Component("httpcontroller").
			Category(errors.CategoryNotFound).
			Build()
	}
	return form.OpenReference(&item), nil
}

func (rs *referenceScreen[T]) values(c echo.Context) url.Values {
	values, err := c.FormParams()
	if err != nil {
		rs.s.requestLogger(c).Debug("failed to parse form", logger.Error(err))
	}
	return values
}
