package form

import (
	"context"
	"net/url"
	"strings"

	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/model"
)

// ReferenceDraft holds the editable fields of a lookup table row.
type ReferenceDraft struct {
	Description string
	Active      bool
}

// referenceCreate is the body posted when adding a row.
type referenceCreate struct {
	Description string `json:"descripcion"`
	Active      bool   `json:"activo"`
}

// ReferenceForm is an open create or edit dialog for a family, seasonal
// category, protection status or habitat.
type ReferenceForm[T model.ReferenceEntity[T]] struct {
	existing *T
	Draft    ReferenceDraft
}

// OpenReference seeds a draft from existing, or from create defaults when nil.
func OpenReference[T model.ReferenceEntity[T]](existing *T) *ReferenceForm[T] {
	if existing == nil {
		return &ReferenceForm[T]{Draft: ReferenceDraft{Active: true}}
	}
	data := (*existing).Data()
	item := *existing
	return &ReferenceForm[T]{
		existing: &item,
		Draft:    ReferenceDraft{Description: data.Description, Active: data.Active},
	}
}

// Editing reports whether the form edits an existing row.
func (f *ReferenceForm[T]) Editing() bool { return f.existing != nil }

// Validate checks the required fields.
func (f *ReferenceForm[T]) Validate() error {
	return required("descripcion", f.Draft.Description)
}

// Body returns the JSON body to send. An update carries the whole record
// with the draft applied; nested birds are never sent back.
func (f *ReferenceForm[T]) Body() any {
	if !f.Editing() {
		return referenceCreate{Description: strings.TrimSpace(f.Draft.Description), Active: f.Draft.Active}
	}
	data := (*f.existing).Data()
	data.Description = strings.TrimSpace(f.Draft.Description)
	data.Active = f.Draft.Active
	data.Birds = nil
	return (*f.existing).WithData(data)
}

// Submit validates the draft and creates or updates the row through c.
func (f *ReferenceForm[T]) Submit(ctx context.Context, c Mutator[T]) error {
	if err := f.Validate(); err != nil {
		return err
	}
	p := listing.Payload{JSON: f.Body()}
	if f.Editing() {
		return c.Update(ctx, (*f.existing).EntityID(), p)
	}
	_, err := c.Create(ctx, p)
	return err
}

// ReferenceDraftFromValues decodes a posted reference form.
func ReferenceDraftFromValues(values url.Values) ReferenceDraft {
	return ReferenceDraft{
		Description: strings.TrimSpace(values.Get("descripcion")),
		Active:      checkbox(values, "activo"),
	}
}
