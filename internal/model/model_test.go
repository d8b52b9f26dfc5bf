package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const birdJSON = `{
	"idAve": 7,
	"nombre": "Quetzal",
	"descripcion": "Ave de plumaje verde",
	"idFamilia": 3,
	"idCategoria": null,
	"idEstatus": 2,
	"idHabitat": null,
	"alimentacion": null,
	"funcionEcos": "Dispersor de semillas",
	"activa": true,
	"listaRoja": true,
	"fechaRegistro": "2024-05-01T10:30:00",
	"rutaImagen": "imagenes/quetzal.jpg",
	"nombreImagen": "quetzal.jpg",
	"idFamiliaNavigation": {"idFamilia": 3, "descripcion": "Trogonidae", "activo": true, "fechaRegistro": null},
	"idEstatusNavigation": {"idEstatus": 2, "descripcion": "Amenazada", "activo": true}
}`

func TestBirdDecodesBackendPayload(t *testing.T) {
	t.Parallel()

	var b Bird
	require.NoError(t, json.Unmarshal([]byte(birdJSON), &b))

	assert.Equal(t, 7, b.EntityID())
	assert.Equal(t, "Quetzal", b.Name)
	require.NotNil(t, b.FamilyID)
	assert.Equal(t, 3, *b.FamilyID)
	assert.Nil(t, b.CategoryID)
	assert.Nil(t, b.Feeding)
	assert.Equal(t, 0, IDOrZero(b.HabitatID))
	assert.Equal(t, 2, IDOrZero(b.StatusID))
	require.NotNil(t, b.RegisteredAt)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), b.RegisteredAt.Time)
	require.NotNil(t, b.Family)
	assert.Equal(t, "Trogonidae", b.Family.Description)
	assert.Nil(t, b.Family.RegisteredAt)
	assert.Nil(t, b.Category)
	assert.True(t, b.HasImage())
}

func TestReferenceWithDataKeepsIdentifier(t *testing.T) {
	t.Parallel()

	h := Habitat{ID: 4, ReferenceData: ReferenceData{Description: "Bosque", Active: true}}
	updated := h.WithData(ReferenceData{Description: "Bosque nuboso", Active: false})

	assert.Equal(t, 4, updated.EntityID())
	assert.Equal(t, "Bosque nuboso", updated.Data().Description)
	assert.Equal(t, "Bosque", h.Description, "original must be untouched")

	data, err := json.Marshal(updated)
	require.NoError(t, err)
	assert.JSONEq(t, `{"idHabitat":4,"descripcion":"Bosque nuboso","activo":false}`, string(data))
}

func TestTimestampFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: `"2024-05-01T10:30:00Z"`, want: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{in: `"2024-05-01T10:30:00.1234567"`, want: time.Date(2024, 5, 1, 10, 30, 0, 123456700, time.UTC)},
		{in: `"2024-05-01"`, want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{in: `null`},
		{in: `""`},
		{in: `"yesterday"`, wantErr: true},
		{in: `12`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts Timestamp
			err := ts.UnmarshalJSON([]byte(tt.in))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}
}

func TestUserRoundTripUsesWireNames(t *testing.T) {
	t.Parallel()

	u := User{ID: 1, FirstNames: "Ana", LastNames: "Pérez", Email: "ana@example.org", Password: "hash", Active: true}
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"idUsuario":1,"nombres":"Ana","apellidos":"Pérez","correo":"ana@example.org","clave":"hash","activo":true,"reestablecer":false}`, string(data))
}
