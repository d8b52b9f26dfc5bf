package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/model"
)

const baseURL = "https://backend.test/api"

func newTestBackend(t *testing.T) (*Backend, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{BaseURL: baseURL, Transport: mock})
	t.Cleanup(client.Close)
	return New(client, nil), mock
}

func TestResourceCRUD(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)

	mock.RegisterResponder(http.MethodGet, baseURL+"/Familiums",
		httpmock.NewStringResponder(http.StatusOK, `[{"idFamilia":1,"descripcion":"Trochilidae","activo":true}]`))
	mock.RegisterResponder(http.MethodGet, baseURL+"/Familiums/1",
		httpmock.NewStringResponder(http.StatusOK, `{"idFamilia":1,"descripcion":"Trochilidae","activo":true}`))
	mock.RegisterResponder(http.MethodPost, baseURL+"/Familiums",
		httpmock.NewStringResponder(http.StatusCreated, `{"idFamilia":2,"descripcion":"Psittacidae","activo":true}`))
	mock.RegisterResponder(http.MethodPut, baseURL+"/Familiums/2", httpmock.NewStringResponder(http.StatusNoContent, ""))
	mock.RegisterResponder(http.MethodDelete, baseURL+"/Familiums/2", httpmock.NewStringResponder(http.StatusNoContent, ""))

	ctx := t.Context()

	list, err := b.Families.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Trochilidae", list[0].Description)

	one, err := b.Families.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, one.ID)

	created, err := b.Families.CreateJSON(ctx, map[string]any{"descripcion": "Psittacidae", "activo": true})
	require.NoError(t, err)
	assert.Equal(t, 2, created.EntityID())

	require.NoError(t, b.Families.UpdateJSON(ctx, 2, created))
	require.NoError(t, b.Families.Delete(ctx, 2))

	calls := mock.GetCallCountInfo()
	assert.Equal(t, 1, calls["PUT "+baseURL+"/Familiums/2"])
	assert.Equal(t, 1, calls["DELETE "+baseURL+"/Familiums/2"])
}

func TestResourcePaths(t *testing.T) {
	t.Parallel()
	b, _ := newTestBackend(t)

	assert.Equal(t, "/Aves", b.Birds.Path())
	assert.Equal(t, "/Familiums", b.Families.Path())
	assert.Equal(t, "/CategoriaEstacionals", b.Categories.Path())
	assert.Equal(t, "/EstatusProteccions", b.Statuses.Path())
	assert.Equal(t, "/Habitats", b.Habitats.Path())
	assert.Equal(t, "/Usuarios", b.Users.Path())
	assert.Equal(t, EntityStatuses, b.Statuses.Entity())
}

func TestResourceErrorCarriesEntity(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodDelete, baseURL+"/Habitats/3", httpmock.NewStringResponder(http.StatusConflict, `{"title":"En uso"}`))

	err := b.Habitats.Delete(t.Context(), 3)
	require.Error(t, err)

	var reqErr *httpclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusConflict, reqErr.Status)

	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, componentName, ee.GetComponent())
	assert.Equal(t, errors.CategoryHTTP, ee.Category)
	assert.Equal(t, EntityHabitats, ee.GetContext()["entity"])
	assert.Equal(t, 3, ee.GetContext()["id"])
}

func TestBirdMultipart(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodPut, baseURL+"/Aves/5",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseMultipartForm(1<<20))
			assert.Equal(t, "Quetzal", req.FormValue("nombre"))
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	form := httpclient.NewMultipartForm().Add("nombre", "Quetzal")
	require.NoError(t, b.Birds.UpdateMultipart(t.Context(), 5, form))
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		b, mock := newTestBackend(t)
		mock.RegisterResponder(http.MethodPost, baseURL+"/usuarios/login",
			func(req *http.Request) (*http.Response, error) {
				var body model.LoginRequest
				require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
				assert.Equal(t, "ana@example.org", body.Email)
				assert.Equal(t, "hash", body.Password)
				return httpmock.NewStringResponse(http.StatusOK,
					`{"token":"tok","usuario":{"idUsuario":1,"nombres":"Ana","correo":"ana@example.org","activo":true}}`), nil
			})

		resp, err := b.Login(t.Context(), "ana@example.org", "hash")
		require.NoError(t, err)
		assert.Equal(t, "tok", resp.Token)
		assert.Equal(t, "Ana", resp.User.FirstNames)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()
		b, mock := newTestBackend(t)
		mock.RegisterResponder(http.MethodPost, baseURL+"/usuarios/login", httpmock.NewStringResponder(http.StatusUnauthorized, ""))

		_, err := b.Login(t.Context(), "ana@example.org", "bad")
		assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	})

	t.Run("no token", func(t *testing.T) {
		t.Parallel()
		b, mock := newTestBackend(t)
		mock.RegisterResponder(http.MethodPost, baseURL+"/usuarios/login", httpmock.NewStringResponder(http.StatusOK, `{"usuario":{}}`))

		_, err := b.Login(t.Context(), "ana@example.org", "hash")
		require.Error(t, err)
	})
}

func TestWithTokensAddsBearer(t *testing.T) {
	t.Parallel()
	b, mock := newTestBackend(t)
	mock.RegisterResponder(http.MethodGet, baseURL+"/Usuarios",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusOK, `[]`), nil
		})

	authed := b.WithTokens(httpclient.TokenFunc(func() (string, bool) { return "tok", true }))
	_, err := authed.Users.List(t.Context())
	require.NoError(t, err)
}

func TestImageURL(t *testing.T) {
	t.Parallel()

	withImage := model.Bird{ImagePath: model.StringPtr("imagenes/a b.jpg"), ImageName: model.StringPtr("a b.jpg")}
	assert.Equal(t, "https://img.test/api/imagenes/a%20b.jpg", ImageURL("https://img.test/api", withImage))
	assert.Empty(t, ImageURL("https://img.test/api", model.Bird{}))
	assert.Empty(t, ImageURL("https://img.test/api", model.Bird{ImageName: model.StringPtr("x.jpg")}))
}

type countingLister struct {
	calls atomic.Int32
	err   error
}

func (c *countingLister) List(context.Context) ([]model.Habitat, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []model.Habitat{{ID: 1}}, nil
}

// gatedLister holds its first List call until release is closed, then
// returns the list as it was before any change. Later calls return the
// changed list.
type gatedLister struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newGatedLister() *gatedLister {
	return &gatedLister{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedLister) List(context.Context) ([]model.Habitat, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
		<-g.release
		return []model.Habitat{{ID: 1}}, nil
	}
	return []model.Habitat{{ID: 1}, {ID: 2}}, nil
}

func TestCachedListDropsFetchOverlappingInvalidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		invalidate func(*ListCache)
	}{
		{name: "invalidate", invalidate: func(lc *ListCache) { lc.Invalidate(EntityHabitats) }},
		{name: "flush", invalidate: func(lc *ListCache) { lc.Flush() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inner := newGatedLister()
			lc := NewListCache(time.Minute)
			cached := NewCached[model.Habitat](inner, EntityHabitats, lc)

			done := make(chan []model.Habitat, 1)
			go func() {
				items, _ := cached.List(context.Background())
				done <- items
			}()

			<-inner.started
			tt.invalidate(lc)
			close(inner.release)
			assert.Len(t, <-done, 1, "the slow caller still gets its own result")

			items, err := cached.List(t.Context())
			require.NoError(t, err)
			assert.Len(t, items, 2, "the stale list was not cached")
			assert.Equal(t, int32(2), inner.calls.Load())

			items, err = cached.List(t.Context())
			require.NoError(t, err)
			assert.Len(t, items, 2)
			assert.Equal(t, int32(2), inner.calls.Load(), "the fresh list is cached")
		})
	}
}

func TestCachedList(t *testing.T) {
	t.Parallel()

	t.Run("hits until invalidated", func(t *testing.T) {
		inner := &countingLister{}
		cached := NewCached[model.Habitat](inner, EntityHabitats, NewListCache(time.Minute))

		for range 3 {
			items, err := cached.List(t.Context())
			require.NoError(t, err)
			assert.Len(t, items, 1)
		}
		assert.Equal(t, int32(1), inner.calls.Load())

		cached.Invalidate()
		_, err := cached.List(t.Context())
		require.NoError(t, err)
		assert.Equal(t, int32(2), inner.calls.Load())
	})

	t.Run("disabled", func(t *testing.T) {
		inner := &countingLister{}
		cached := NewCached[model.Habitat](inner, EntityHabitats, NewListCache(0))
		_, _ = cached.List(t.Context())
		_, _ = cached.List(t.Context())
		assert.Equal(t, int32(2), inner.calls.Load())

		nilCache := NewCached[model.Habitat](inner, EntityHabitats, nil)
		_, _ = nilCache.List(t.Context())
		assert.Equal(t, int32(3), inner.calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		inner := &countingLister{err: errors.NewStd("boom")}
		cached := NewCached[model.Habitat](inner, EntityHabitats, NewListCache(time.Minute))
		_, err := cached.List(t.Context())
		require.Error(t, err)
		_, err = cached.List(t.Context())
		require.Error(t, err)
		assert.Equal(t, int32(2), inner.calls.Load())
	})

	t.Run("lookups are observed", func(t *testing.T) {
		inner := &countingLister{}
		lc := NewListCache(time.Minute)
		var hits, misses int
		lc.OnLookup(func(entity string, hit bool) {
			assert.Equal(t, EntityHabitats, entity)
			if hit {
				hits++
			} else {
				misses++
			}
		})
		cached := NewCached[model.Habitat](inner, EntityHabitats, lc)
		_, _ = cached.List(t.Context())
		_, _ = cached.List(t.Context())
		assert.Equal(t, 1, hits)
		assert.Equal(t, 1, misses)
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		inner := &countingLister{}
		cached := NewCached[model.Habitat](inner, EntityHabitats, NewListCache(time.Minute))
		first, _ := cached.List(t.Context())
		first[0].ID = 99
		second, _ := cached.List(t.Context())
		assert.Equal(t, 1, second[0].ID)
	})
}
