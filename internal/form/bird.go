package form

import (
	"context"
	"net/url"
	"strings"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/model"
)

// ImageField is the multipart part carrying the uploaded picture.
const ImageField = "imagen"

// BirdDraft holds the editable fields of a bird.
type BirdDraft struct {
	Name        string
	Description string
	Feeding     *string
	EcoRole     *string
	FamilyID    *int
	CategoryID  *int
	StatusID    *int
	HabitatID   *int
	Active      bool
	RedList     bool

	// Image is an optional new picture.
	Image *httpclient.FilePart
}

// BirdForm is an open create or edit dialog for a bird.
type BirdForm struct {
	id    int
	Draft BirdDraft
}

// OpenBird seeds a draft from existing, or from create defaults when nil.
func OpenBird(existing *model.Bird) *BirdForm {
	if existing == nil {
		return &BirdForm{Draft: BirdDraft{Active: true}}
	}
	return &BirdForm{
		id: existing.ID,
		Draft: BirdDraft{
			Name:        existing.Name,
			Description: existing.Description,
			Feeding:     copyString(existing.Feeding),
			EcoRole:     copyString(existing.EcoRole),
			FamilyID:    copyInt(existing.FamilyID),
			CategoryID:  copyInt(existing.CategoryID),
			StatusID:    copyInt(existing.StatusID),
			HabitatID:   copyInt(existing.HabitatID),
			Active:      existing.Active,
			RedList:     existing.RedList,
		},
	}
}

// Editing reports whether the form edits an existing bird.
func (f *BirdForm) Editing() bool { return f.id != 0 }

// ID returns the id of the edited bird, zero on create.
func (f *BirdForm) ID() int { return f.id }

// Validate checks the required fields.
func (f *BirdForm) Validate() error {
	return required("nombre", f.Draft.Name)
}

// Payload builds the multipart body. Create sends every set field; update
// always sends the text fields, empty when unset, and only the set keys.
func (f *BirdForm) Payload() *httpclient.MultipartForm {
	d := f.Draft
	form := httpclient.NewMultipartForm()
	form.Add("nombre", d.Name)
	form.Add("descripcion", d.Description)

	if f.Editing() {
		form.Add("alimentacion", derefString(d.Feeding))
		form.Add("funcionEcos", derefString(d.EcoRole))
	} else {
		if d.Feeding != nil {
			form.Add("alimentacion", *d.Feeding)
		}
		if d.EcoRole != nil {
			form.Add("funcionEcos", *d.EcoRole)
		}
	}

	for _, fk := range []struct {
		name string
		id   *int
	}{
		{"idFamilia", d.FamilyID},
		{"idCategoria", d.CategoryID},
		{"idEstatus", d.StatusID},
		{"idHabitat", d.HabitatID},
	} {
		if fk.id != nil {
			form.AddInt(fk.name, *fk.id)
		}
	}

	form.AddBool("activa", d.Active)
	form.AddBool("listaRoja", d.RedList)

	if d.Image != nil {
		part := *d.Image
		part.FieldName = ImageField
		form.SetFile(part)
	}
	return form
}

// Submit validates the draft and creates or updates the bird through c.
func (f *BirdForm) Submit(ctx context.Context, c Mutator[model.Bird]) error {
	if err := f.Validate(); err != nil {
		return err
	}
	p := listing.Payload{Form: f.Payload()}
	if f.Editing() {
		return c.Update(ctx, f.id, p)
	}
	_, err := c.Create(ctx, p)
	return err
}

// BirdDraftFromValues decodes a posted bird form. The image, if any, is
// attached by the caller.
func BirdDraftFromValues(values url.Values) (BirdDraft, error) {
	d := BirdDraft{
		Name:        strings.TrimSpace(values.Get("nombre")),
		Description: strings.TrimSpace(values.Get("descripcion")),
		Feeding:     optionalString(values, "alimentacion"),
		EcoRole:     optionalString(values, "funcionEcos"),
		Active:      checkbox(values, "activa"),
		RedList:     checkbox(values, "listaRoja"),
	}

	var errs []error
	var err error
	if d.FamilyID, err = optionalInt(values, "idFamilia"); err != nil {
		errs = append(errs, err)
	}
	if d.CategoryID, err = optionalInt(values, "idCategoria"); err != nil {
		errs = append(errs, err)
	}
	if d.StatusID, err = optionalInt(values, "idEstatus"); err != nil {
		errs = append(errs, err)
	}
	if d.HabitatID, err = optionalInt(values, "idHabitat"); err != nil {
		errs = append(errs, err)
	}
	return d, errors.Join(errs...)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
