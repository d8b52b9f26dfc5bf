// Package model defines the catalog records exchanged with the backend.
// JSON field names follow the backend's wire format.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Entity is any backend record addressed by a numeric identifier.
type Entity interface {
	EntityID() int
}

// Bird is a catalog entry ("Ave").
type Bird struct {
	ID           int        `json:"idAve"`
	Name         string     `json:"nombre"`
	Description  string     `json:"descripcion"`
	FamilyID     *int       `json:"idFamilia"`
	CategoryID   *int       `json:"idCategoria"`
	StatusID     *int       `json:"idEstatus"`
	HabitatID    *int       `json:"idHabitat"`
	Feeding      *string    `json:"alimentacion"`
	EcoRole      *string    `json:"funcionEcos"`
	Active       bool       `json:"activa"`
	RedList      bool       `json:"listaRoja"`
	RegisteredAt *Timestamp `json:"fechaRegistro,omitempty"`
	ImagePath    *string    `json:"rutaImagen,omitempty"`
	ImageName    *string    `json:"nombreImagen,omitempty"`

	Family   *Family           `json:"idFamiliaNavigation,omitempty"`
	Category *SeasonalCategory `json:"idCategoriaNavigation,omitempty"`
	Status   *ProtectionStatus `json:"idEstatusNavigation,omitempty"`
	Habitat  *Habitat          `json:"idHabitatNavigation,omitempty"`
}

func (b Bird) EntityID() int { return b.ID }

// HasImage reports whether the backend stored an image for the bird.
func (b Bird) HasImage() bool {
	return b.ImagePath != nil && *b.ImagePath != "" && b.ImageName != nil && *b.ImageName != ""
}

// ReferenceData is the shape shared by every lookup table.
type ReferenceData struct {
	Description  string     `json:"descripcion"`
	Active       bool       `json:"activo"`
	RegisteredAt *Timestamp `json:"fechaRegistro,omitempty"`
	Birds        []Bird     `json:"aves,omitempty"`
}

// ReferenceEntity is implemented by the four lookup tables referenced by Bird.
// T is the implementing type itself so WithData can return a modified copy.
type ReferenceEntity[T any] interface {
	Entity
	Data() ReferenceData
	WithData(ReferenceData) T
}

// Family is a taxonomic family ("Familium").
type Family struct {
	ID int `json:"idFamilia"`
	ReferenceData
}

func (f Family) EntityID() int       { return f.ID }
func (f Family) Data() ReferenceData { return f.ReferenceData }
func (f Family) WithData(d ReferenceData) Family {
	f.ReferenceData = d
	return f
}

// SeasonalCategory is a seasonal presence category ("CategoriaEstacional").
type SeasonalCategory struct {
	ID int `json:"idCategoria"`
	ReferenceData
}

func (c SeasonalCategory) EntityID() int       { return c.ID }
func (c SeasonalCategory) Data() ReferenceData { return c.ReferenceData }
func (c SeasonalCategory) WithData(d ReferenceData) SeasonalCategory {
	c.ReferenceData = d
	return c
}

// ProtectionStatus is a conservation status ("EstatusProteccion").
type ProtectionStatus struct {
	ID int `json:"idEstatus"`
	ReferenceData
}

func (s ProtectionStatus) EntityID() int       { return s.ID }
func (s ProtectionStatus) Data() ReferenceData { return s.ReferenceData }
func (s ProtectionStatus) WithData(d ReferenceData) ProtectionStatus {
	s.ReferenceData = d
	return s
}

// Habitat is a habitat type.
type Habitat struct {
	ID int `json:"idHabitat"`
	ReferenceData
}

func (h Habitat) EntityID() int       { return h.ID }
func (h Habitat) Data() ReferenceData { return h.ReferenceData }
func (h Habitat) WithData(d ReferenceData) Habitat {
	h.ReferenceData = d
	return h
}

// User is an administrative account ("Usuario"). Password always holds the
// transmitted hash, never plaintext.
type User struct {
	ID           int        `json:"idUsuario"`
	FirstNames   string     `json:"nombres"`
	LastNames    string     `json:"apellidos"`
	Email        string     `json:"correo"`
	Password     string     `json:"clave"`
	Active       bool       `json:"activo"`
	RegisteredAt *Timestamp `json:"fechaRegistro,omitempty"`
	ResetPending bool       `json:"reestablecer"`
}

func (u User) EntityID() int { return u.ID }

// LoginRequest is the body of POST /usuarios/login.
type LoginRequest struct {
	Email    string `json:"correo"`
	Password string `json:"clave"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"usuario"`
}

// Session is the logged-in user plus the opaque bearer token.
type Session struct {
	User  User
	Token string
}

// Timestamp accepts the backend's date formats, with or without a zone.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// IntPtr returns a pointer to v, for optional foreign keys.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// IDOrZero dereferences an optional foreign key; nil becomes 0, which never
// matches a backend identifier.
func IDOrZero(id *int) int {
	if id == nil {
		return 0
	}
	return *id
}
