package birds

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/filter"
	"github.com/skybound/skybound/internal/httpclient"
)

const baseURL = "https://backend.test/api"

const birdsJSON = `[
	{"idAve":1,"nombre":"Colibrí","idFamilia":1,"idCategoria":1,"idEstatus":null,"idHabitat":2,"activa":true},
	{"idAve":2,"nombre":"Guacamaya","idFamilia":2,"idCategoria":1,"idEstatus":1,"idHabitat":2,"activa":false},
	{"idAve":3,"nombre":"Quetzal","idFamilia":3,"idCategoria":2,"idEstatus":1,"idHabitat":1,"activa":true}
]`

func newTestBackend(t *testing.T) (*catalog.Backend, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{BaseURL: baseURL, Transport: mock})
	t.Cleanup(client.Close)

	mock.RegisterResponder(http.MethodGet, baseURL+"/Familiums",
		httpmock.NewStringResponder(http.StatusOK, `[{"idFamilia":1,"descripcion":"Trochilidae"},{"idFamilia":2,"descripcion":"Psittacidae"}]`))
	mock.RegisterResponder(http.MethodGet, baseURL+"/CategoriaEstacionals",
		httpmock.NewStringResponder(http.StatusOK, `[{"idCategoria":1,"descripcion":"Residente"}]`))
	mock.RegisterResponder(http.MethodGet, baseURL+"/EstatusProteccions",
		httpmock.NewStringResponder(http.StatusOK, `[{"idEstatus":1,"descripcion":"Amenazada"}]`))
	mock.RegisterResponder(http.MethodGet, baseURL+"/Habitats",
		httpmock.NewStringResponder(http.StatusOK, `[{"idHabitat":2,"descripcion":"Bosque"}]`))
	return catalog.New(client, nil), mock
}

func TestRunPrintsFilteredTable(t *testing.T) {
	t.Parallel()
	backend, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Aves", httpmock.NewStringResponder(http.StatusOK, birdsJSON))

	flags := listFlags{families: []int{1, 3}, categories: []int{1}}
	var out, errOut bytes.Buffer
	require.NoError(t, run(t.Context(), &out, &errOut, backend, flags.engine()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "NOMBRE")
	assert.Contains(t, lines[1], "Colibrí")
	assert.Contains(t, lines[1], "Trochilidae")
	assert.Contains(t, lines[1], "Residente")
	assert.Contains(t, lines[1], notAvailable, "null status")
	assert.Contains(t, lines[1], "Bosque")
	assert.Equal(t, "1 de 3 aves", lines[3])
	assert.Empty(t, errOut.String())
}

func TestRunWithoutFiltersListsEverything(t *testing.T) {
	t.Parallel()
	backend, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Aves", httpmock.NewStringResponder(http.StatusOK, birdsJSON))

	var out bytes.Buffer
	require.NoError(t, run(t.Context(), &out, &bytes.Buffer{}, backend, listFlags{}.engine()))
	assert.Contains(t, out.String(), "3 de 3 aves")
	assert.Contains(t, out.String(), "Quetzal")
}

func TestRunIgnoresUnknownFilterIDs(t *testing.T) {
	t.Parallel()
	backend, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Aves", httpmock.NewStringResponder(http.StatusOK, birdsJSON))

	var out bytes.Buffer
	flags := listFlags{families: []int{99}}
	require.NoError(t, run(t.Context(), &out, &bytes.Buffer{}, backend, flags.engine()))
	assert.Contains(t, out.String(), "3 de 3 aves")

	out.Reset()
	flags = listFlags{families: []int{2, 99}}
	require.NoError(t, run(t.Context(), &out, &bytes.Buffer{}, backend, flags.engine()))
	assert.Contains(t, out.String(), "Guacamaya")
	assert.Contains(t, out.String(), "1 de 3 aves")
}

func TestRunReferenceFailureFallsBackToIDs(t *testing.T) {
	t.Parallel()
	backend, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Aves", httpmock.NewStringResponder(http.StatusOK, birdsJSON))
	mock.RegisterResponder(http.MethodGet, baseURL+"/Familiums", httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	var out, errOut bytes.Buffer
	require.NoError(t, run(t.Context(), &out, &errOut, backend, listFlags{}.engine()))
	assert.Contains(t, errOut.String(), "warning")
	assert.NotContains(t, out.String(), "Trochilidae")
	assert.Contains(t, out.String(), "Residente", "other lists still load")
}

func TestRunFailsWhenBirdsCannotLoad(t *testing.T) {
	t.Parallel()
	backend, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Aves", httpmock.NewStringResponder(http.StatusBadGateway, ""))

	var out bytes.Buffer
	err := run(t.Context(), &out, &bytes.Buffer{}, backend, listFlags{}.engine())
	var reqErr *httpclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadGateway, reqErr.Status)
	assert.Empty(t, out.String())
}

func TestListFlagsEngine(t *testing.T) {
	t.Parallel()
	e := listFlags{families: []int{2, 2}, habitats: []int{5}}.engine()
	assert.True(t, e.IsSelected(filter.Family, 2), "repeated ids stay selected")
	assert.True(t, e.IsSelected(filter.Habitat, 5))
	assert.False(t, e.IsSelected(filter.Status, 5))
	assert.Equal(t, "familia=2&habitat=5", e.Query().Encode())
}

func TestListCommandFlags(t *testing.T) {
	t.Parallel()
	cmd := listCommand(nil, nil)
	require.NoError(t, cmd.ParseFlags([]string{"--familia", "1,3", "--habitat", "2", "--habitat", "4"}))

	families, err := cmd.Flags().GetIntSlice("familia")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, families)

	habitats, err := cmd.Flags().GetIntSlice("habitat")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, habitats)
}
