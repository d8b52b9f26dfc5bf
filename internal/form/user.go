package form

import (
	"context"
	"net/url"
	"strings"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/model"
)

// UserDraft holds the editable fields of a user. Password is plain text
// and only hashed when the payload is built.
type UserDraft struct {
	FirstNames   string
	LastNames    string
	Email        string
	Password     string
	Active       bool
	ResetPending bool
}

// userCreate is the body posted when adding a user.
type userCreate struct {
	FirstNames string `json:"nombres"`
	LastNames  string `json:"apellidos"`
	Email      string `json:"correo"`
	Password   string `json:"clave"`
	Active     bool   `json:"activo"`
}

// UserForm is an open create or edit dialog for a user.
type UserForm struct {
	existing *model.User
	Draft    UserDraft
}

// OpenUser seeds a draft from existing, or from create defaults when nil.
// The stored hash is never copied into the draft.
func OpenUser(existing *model.User) *UserForm {
	if existing == nil {
		return &UserForm{Draft: UserDraft{Active: true}}
	}
	u := *existing
	return &UserForm{
		existing: &u,
		Draft: UserDraft{
			FirstNames:   u.FirstNames,
			LastNames:    u.LastNames,
			Email:        u.Email,
			Active:       u.Active,
			ResetPending: u.ResetPending,
		},
	}
}

// Editing reports whether the form edits an existing user.
func (f *UserForm) Editing() bool { return f.existing != nil }

// Validate checks the required fields. The password is only required
// when creating.
func (f *UserForm) Validate() error {
	errs := []error{
		required("nombres", f.Draft.FirstNames),
		required("apellidos", f.Draft.LastNames),
		required("correo", f.Draft.Email),
	}
	if !f.Editing() {
		errs = append(errs, required("clave", f.Draft.Password))
	}
	return errors.Join(errs...)
}

// Body returns the JSON body to send. On edit a blank password keeps the
// stored hash.
func (f *UserForm) Body() any {
	d := f.Draft
	if !f.Editing() {
		return userCreate{
			FirstNames: strings.TrimSpace(d.FirstNames),
			LastNames:  strings.TrimSpace(d.LastNames),
			Email:      strings.TrimSpace(d.Email),
			Password:   HashPassword(d.Password),
			Active:     d.Active,
		}
	}

	u := *f.existing
	u.FirstNames = strings.TrimSpace(d.FirstNames)
	u.LastNames = strings.TrimSpace(d.LastNames)
	u.Email = strings.TrimSpace(d.Email)
	u.Active = d.Active
	u.ResetPending = d.ResetPending
	if !isBlank(d.Password) {
		u.Password = HashPassword(d.Password)
	}
	return u
}

// Submit validates the draft and creates or updates the user through c.
func (f *UserForm) Submit(ctx context.Context, c Mutator[model.User]) error {
	if err := f.Validate(); err != nil {
		return err
	}
	p := listing.Payload{JSON: f.Body()}
	if f.Editing() {
		return c.Update(ctx, f.existing.ID, p)
	}
	_, err := c.Create(ctx, p)
	return err
}

// UserDraftFromValues decodes a posted user form.
func UserDraftFromValues(values url.Values) UserDraft {
	return UserDraft{
		FirstNames:   strings.TrimSpace(values.Get("nombres")),
		LastNames:    strings.TrimSpace(values.Get("apellidos")),
		Email:        strings.TrimSpace(values.Get("correo")),
		Password:     values.Get("clave"),
		Active:       checkbox(values, "activo"),
		ResetPending: checkbox(values, "reestablecer"),
	}
}
