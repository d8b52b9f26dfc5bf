package httpcontroller

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/filter"
	"github.com/skybound/skybound/internal/form"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

// maxImageBytes caps an uploaded bird picture.
const maxImageBytes = 5 << 20

var birdLabels = entityLabels{Title: "Aves", Singular: "ave", Feminine: true}

// option is one entry of a select or filter list.
type option struct {
	ID    int
	Label string
}

// filterOption is one toggleable filter link.
type filterOption struct {
	option
	Selected bool
	URL      string
}

// filterGroup is the filter list of one dimension.
type filterGroup struct {
	Name    string
	Label   string
	Options []filterOption
}

// birdCard is one tile of the gallery.
type birdCard struct {
	Bird     model.Bird
	ImageURL string
}

// galleryView is the data of the gallery page.
type galleryView struct {
	Cards        []birdCard
	Total        int
	Filters      []filterGroup
	FilterActive bool
	LoadFailed   bool
	CanEdit      bool

	Form       *form.BirdForm
	FormAction string
	Families   []option
	Categories []option
	Statuses   []option
	Habitats   []option
}

// birdDetailView is the data of the detail page.
type birdDetailView struct {
	Bird     model.Bird
	ImageURL string
	Family   string
	Category string
	Status   string
	Habitat  string
}

func (s *Server) initBirdRoutes() {
	s.Echo.GET("/aves", s.handleGallery)
	s.Echo.GET("/aves/:id", s.handleBirdDetail)
	s.Echo.POST("/aves", s.handleBirdSave)
	s.Echo.POST("/aves/:id", s.handleBirdSave)
	s.Echo.POST("/aves/:id/delete", s.handleBirdDelete)
}

// handleGallery renders the public gallery. Filters come from the query
// string; ?editar=ID opens the edit form for an authenticated user.
func (s *Server) handleGallery(c echo.Context) error {
	screen := listing.NewBirdScreen(s.backendFor(c), s.referenceOptions())
	loadErr := screen.Load(c.Request().Context())

	engine := filter.ParseQuery(c.QueryParams())
	screen.RetainKnown(engine)
	view := galleryView{
		FilterActive: engine.Active(),
		LoadFailed:   loadErr != nil,
		CanEdit:      sessionFrom(c).IsAuthenticated(),
		Families:     selectOptions(screen.Families.Items()),
		Categories:   selectOptions(screen.Categories.Items()),
		Statuses:     selectOptions(screen.Statuses.Items()),
		Habitats:     selectOptions(screen.Habitats.Items()),
	}

	birds := engine.Apply(screen.Birds.Items())
	view.Total = len(birds)
	for _, b := range birds {
		view.Cards = append(view.Cards, birdCard{Bird: b, ImageURL: s.imageURL(b)})
	}

	view.Filters = []filterGroup{
		filterLinks(engine, filter.Family, "Familia", view.Families),
		filterLinks(engine, filter.Category, "Categoría", view.Categories),
		filterLinks(engine, filter.Status, "Estatus", view.Statuses),
		filterLinks(engine, filter.Habitat, "Hábitat", view.Habitats),
	}

	if view.CanEdit {
		view.Form, view.FormAction = form.OpenBird(nil), "/aves"
		if id := queryID(c, "editar"); id > 0 {
			if b, ok := screen.Birds.Find(id); ok {
				view.Form, view.FormAction = form.OpenBird(&b), "/aves/"+strconv.Itoa(id)
			}
		}
	}

	return s.render(c, http.StatusOK, "gallery", birdLabels.Title, view)
}

// handleBirdDetail renders one bird. Any failure sends the user back to
// the gallery.
func (s *Server) handleBirdDetail(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/aves")
	}

	b, err := s.backendFor(c).Birds.Get(c.Request().Context(), id)
	if err != nil {
		s.requestLogger(c).Warn("failed to load bird", logger.Int("id", id), logger.Error(err))
		s.addFlash(c, flashError, msgOperationFailed)
		return c.Redirect(http.StatusSeeOther, "/aves")
	}

	return s.render(c, http.StatusOK, "birdDetail", b.Name, birdDetailView{
		Bird:     b,
		ImageURL: s.imageURL(b),
		Family:   navDescription(b.Family),
		Category: navDescription(b.Category),
		Status:   navDescription(b.Status),
		Habitat:  navDescription(b.Habitat),
	})
}

// handleBirdSave creates a bird, or updates it when the route has an id.
func (s *Server) handleBirdSave(c echo.Context) error {
	if ok, err := s.gate(c); !ok {
		return err
	}
	reqLog := s.requestLogger(c)
	verb := "agregad"

	f := form.OpenBird(nil)
	if c.Param("id") != "" {
		id, err := paramID(c)
		if err != nil {
			s.flashResult(c, err, birdLabels, verb)
			return c.Redirect(http.StatusSeeOther, "/aves")
		}
		f, verb = form.OpenBird(&model.Bird{ID: id}), "actualizad"
	}

	err := s.fillBirdDraft(c, f)
	if err == nil {
		birds := listing.New[model.Bird](s.backendFor(c).Birds, s.listingOptions())
		err = f.Submit(c.Request().Context(), birds)
	}
	if err != nil {
		reqLog.Warn("failed to save bird", logger.Int("id", f.ID()), logger.Error(err))
	}
	s.flashResult(c, err, birdLabels, verb)
	return c.Redirect(http.StatusSeeOther, "/aves")
}

func (s *Server) handleBirdDelete(c echo.Context) error {
	if ok, err := s.gate(c); !ok {
		return err
	}

	id, err := paramID(c)
	if err == nil {
		birds := listing.New[model.Bird](s.backendFor(c).Birds, s.listingOptions())
		err = birds.Delete(c.Request().Context(), id)
	}
	if err != nil {
		s.requestLogger(c).Warn("failed to delete bird", logger.Error(err))
	}
	s.flashResult(c, err, birdLabels, "eliminad")
	return c.Redirect(http.StatusSeeOther, "/aves")
}

// fillBirdDraft decodes the posted fields and the optional image into f.
func (s *Server) fillBirdDraft(c echo.Context, f *form.BirdForm) error {
	values, err := c.FormParams()
	if err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryValidation).
			Context("operation", "parse-bird-form").
			Build()
	}

	draft, err := form.BirdDraftFromValues(values)
	if err != nil {
		return err
	}
	if draft.Image, err = readImage(c); err != nil {
		return err
	}
	f.Draft = draft
	return nil
}

// readImage loads the uploaded picture into memory, nil when none was sent.
func readImage(c echo.Context) (*httpclient.FilePart, error) {
	header, err := c.FormFile(form.ImageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryValidation).
			Context("field", form.ImageField).
			Build()
	}
	if header.Size == 0 {
		return nil, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryFileIO).
			Context("field", form.ImageField).
			Build()
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryFileIO).
			Context("field", form.ImageField).
			Build()
	}
	if len(data) > maxImageBytes {
		return nil, errors.Newf("image larger than %d bytes", maxImageBytes).
			Component("httpcontroller").
			Category(errors.CategoryValidation).
			Context("field", form.ImageField).
			Build()
	}

	return &httpclient.FilePart{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     bytes.NewReader(data),
	}, nil
}

// selectOptions lists the rows of a lookup table as select options.
func selectOptions[T model.ReferenceEntity[T]](items []T) []option {
	opts := make([]option, 0, len(items))
	for _, item := range items {
		opts = append(opts, option{ID: item.EntityID(), Label: item.Data().Description})
	}
	return opts
}

// filterLinks builds the toggle links of one dimension.
func filterLinks(e *filter.Engine, d filter.Dimension, label string, opts []option) filterGroup {
	g := filterGroup{Name: d.String(), Label: label}
	for _, o := range opts {
		g.Options = append(g.Options, filterOption{
			option:   o,
			Selected: e.IsSelected(d, o.ID),
			URL:      "/aves?" + e.ToggleQuery(d, o.ID),
		})
	}
	return g
}

// navDescription returns the description of an embedded lookup row.
func navDescription[T model.ReferenceEntity[T]](ref *T) string {
	if ref == nil {
		return notAvailable
	}
	return orNotAvailable((*ref).Data().Description)
}
