package listing

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/events"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/model"
	"github.com/skybound/skybound/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const baseURL = "https://backend.test/api"

func newTestBackend(t *testing.T) (*catalog.Backend, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{BaseURL: baseURL, Transport: mock})
	t.Cleanup(client.Close)
	return catalog.New(client, nil), mock
}

// recordingSink collects published changes.
type recordingSink struct {
	mu      sync.Mutex
	changes []events.Change
}

func (r *recordingSink) TryPublish(change events.Change) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return true
}

func (r *recordingSink) Changes() []events.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Change(nil), r.changes...)
}

func calls(mock *httpmock.MockTransport, key string) int {
	return mock.GetCallCountInfo()[key]
}

func TestLoadAll(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Habitats",
		httpmock.NewStringResponder(http.StatusOK, `[{"idHabitat":1,"descripcion":"Bosque","activo":true},{"idHabitat":2,"descripcion":"Páramo","activo":true}]`))

	c := New[model.Habitat](b.Habitats, Options{})
	assert.False(t, c.Loaded())
	require.NoError(t, c.LoadAll(t.Context()))
	assert.True(t, c.Loaded())

	items := c.Items()
	require.Len(t, items, 2)
	items[0].Description = "changed"
	assert.Equal(t, "Bosque", c.Items()[0].Description, "Items returns a copy")

	h, ok := c.Find(2)
	require.True(t, ok)
	assert.Equal(t, "Páramo", h.Description)
	_, ok = c.Find(9)
	assert.False(t, ok)
}

func TestLoadAllEmptyCollection(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Habitats", httpmock.NewStringResponder(http.StatusOK, `[]`))

	c := New[model.Habitat](b.Habitats, Options{})
	require.NoError(t, c.LoadAll(t.Context()))
	assert.NotNil(t, c.Items())
	assert.Empty(t, c.Items())
}

func TestFailedLoadKeepsPreviousItems(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Familiums",
		httpmock.NewStringResponder(http.StatusOK, `[{"idFamilia":1,"descripcion":"Trochilidae","activo":true}]`))

	c := New[model.Family](b.Families, Options{})
	require.NoError(t, c.LoadAll(t.Context()))

	mock.RegisterResponder(http.MethodGet, baseURL+"/Familiums", httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))
	err := c.LoadAll(t.Context())
	require.Error(t, err)

	var reqErr *httpclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.Status)
	assert.Len(t, c.Items(), 1)
	assert.Equal(t, err, c.LoadErr())
}

func TestCreateReloadsAndPublishes(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)

	listed := `[]`
	mock.RegisterResponder(http.MethodGet, baseURL+"/Familiums", func(*http.Request) (*http.Response, error) {
		return httpmock.NewStringResponse(http.StatusOK, listed), nil
	})
	mock.RegisterResponder(http.MethodPost, baseURL+"/Familiums", func(req *http.Request) (*http.Response, error) {
		listed = `[{"idFamilia":42,"descripcion":"Psittacidae","activo":true}]`
		return httpmock.NewStringResponse(http.StatusCreated, `{"idFamilia":42,"descripcion":"Psittacidae","activo":true}`), nil
	})

	sink := &recordingSink{}
	c := New[model.Family](b.Families, Options{Events: sink})
	require.NoError(t, c.LoadAll(t.Context()))
	assert.Empty(t, c.Items())

	created, err := c.Create(t.Context(), Payload{JSON: map[string]any{"descripcion": "Psittacidae", "activo": true}})
	require.NoError(t, err)
	assert.Equal(t, 42, created.ID)

	require.Len(t, c.Items(), 1)
	assert.Equal(t, 42, c.Items()[0].ID, "reload shows the server-assigned id")
	assert.Equal(t, 1, calls(mock, "POST "+baseURL+"/Familiums"))
	assert.Equal(t, 2, calls(mock, "GET "+baseURL+"/Familiums"))

	changes := sink.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, events.Change{Entity: catalog.EntityFamilies, Action: events.ActionCreated, ID: 42}, changes[0])
}

func TestFailedUpdateLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Habitats",
		httpmock.NewStringResponder(http.StatusOK, `[{"idHabitat":1,"descripcion":"Bosque","activo":true}]`))
	mock.RegisterResponder(http.MethodPut, baseURL+"/Habitats/1",
		httpmock.NewStringResponder(http.StatusBadRequest, `{"title":"One or more validation errors occurred."}`))

	sink := &recordingSink{}
	c := New[model.Habitat](b.Habitats, Options{Events: sink})
	require.NoError(t, c.LoadAll(t.Context()))

	patch := model.Habitat{ID: 1, ReferenceData: model.ReferenceData{Description: "Selva"}}
	err := c.Update(t.Context(), 1, Payload{JSON: patch})
	require.Error(t, err)
	assert.True(t, httpclient.IsStatus(err, http.StatusBadRequest))

	assert.Equal(t, "Bosque", c.Items()[0].Description)
	assert.Equal(t, 1, calls(mock, "GET "+baseURL+"/Habitats"), "no reload after a failure")
	assert.Empty(t, sink.Changes())
}

func TestMultipartUpdateAndDelete(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Aves",
		httpmock.NewStringResponder(http.StatusOK, `[{"idAve":3,"nombre":"Colibrí","activa":true,"listaRoja":false}]`))

	var contentType, nombre string
	mock.RegisterResponder(http.MethodPut, baseURL+"/Aves/3", func(req *http.Request) (*http.Response, error) {
		contentType = req.Header.Get("Content-Type")
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			return nil, err
		}
		nombre = req.FormValue("nombre")
		return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
	})
	mock.RegisterResponder(http.MethodDelete, baseURL+"/Aves/3", httpmock.NewStringResponder(http.StatusNoContent, ""))

	sink := &recordingSink{}
	c := New[model.Bird](b.Birds, Options{Events: sink})

	form := httpclient.NewMultipartForm().Add("nombre", "Colibrí rutilante")
	require.NoError(t, c.Update(t.Context(), 3, Payload{JSON: "ignored", Form: form}))
	assert.Contains(t, contentType, "multipart/form-data")
	assert.Equal(t, "Colibrí rutilante", nombre)

	require.NoError(t, c.Delete(t.Context(), 3))
	assert.Equal(t, 2, calls(mock, "GET "+baseURL+"/Aves"))

	changes := sink.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, events.ActionUpdated, changes[0].Action)
	assert.Equal(t, events.ActionDeleted, changes[1].Action)
	assert.Equal(t, 3, changes[1].ID)
}

func TestFailedReloadAfterMutationIsKept(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodDelete, baseURL+"/Habitats/1", httpmock.NewStringResponder(http.StatusNoContent, ""))
	mock.RegisterResponder(http.MethodGet, baseURL+"/Habitats", httpmock.NewErrorResponder(errors.NewStd("connection reset")))

	c := New[model.Habitat](b.Habitats, Options{})
	require.NoError(t, c.Delete(t.Context(), 1), "the delete itself succeeded")

	var netErr *httpclient.NetworkError
	assert.ErrorAs(t, c.LoadErr(), &netErr)
}

func TestMutationInvalidatesListCache(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/EstatusProteccions",
		httpmock.NewStringResponder(http.StatusOK, `[{"idEstatus":1,"descripcion":"Vulnerable","activo":true}]`))
	mock.RegisterResponder(http.MethodDelete, baseURL+"/EstatusProteccions/1", httpmock.NewStringResponder(http.StatusNoContent, ""))

	cache := catalog.NewListCache(time.Minute)
	c := New[model.ProtectionStatus](b.Statuses, Options{Cache: cache})
	require.NoError(t, c.LoadAll(t.Context()))
	require.NoError(t, New[model.ProtectionStatus](b.Statuses, Options{Cache: cache}).LoadAll(t.Context()))
	assert.Equal(t, 1, calls(mock, "GET "+baseURL+"/EstatusProteccions"), "second screen is served from cache")

	require.NoError(t, c.Delete(t.Context(), 1))
	assert.Equal(t, 2, calls(mock, "GET "+baseURL+"/EstatusProteccions"), "reload after a mutation bypasses the stale entry")
}

func TestGate(t *testing.T) {
	t.Parallel()
	store := session.NewStore(session.NewMemoryKV(), nil)

	err := Gate(store)
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.True(t, errors.IsCategory(err, errors.CategorySession))
	assert.ErrorIs(t, Gate(nil), ErrAccessDenied)

	require.NoError(t, store.Login(model.User{ID: 1, FirstNames: "Ana"}, "tok"))
	assert.NoError(t, Gate(store))

	require.NoError(t, store.Logout())
	assert.ErrorIs(t, Gate(store), ErrAccessDenied)
}
