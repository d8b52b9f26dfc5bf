// Package catalog provides typed access to the backend's REST collections.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

// Entity names, used in routes, log fields and event topics.
const (
	EntityBirds      = "aves"
	EntityFamilies   = "familias"
	EntityCategories = "categorias"
	EntityStatuses   = "estatus"
	EntityHabitats   = "habitats"
	EntityUsers      = "usuarios"
)

// Backend collection paths.
const (
	pathBirds      = "/Aves"
	pathFamilies   = "/Familiums"
	pathCategories = "/CategoriaEstacionals"
	pathStatuses   = "/EstatusProteccions"
	pathHabitats   = "/Habitats"
	pathUsers      = "/Usuarios"
	pathLogin      = "/usuarios/login"
)

const componentName = "catalog"

// Resource is one backend collection of T.
type Resource[T any] struct {
	client *httpclient.Client
	path   string
	entity string
	log    logger.Logger
}

// NewResource binds a collection path to a client.
func NewResource[T any](client *httpclient.Client, path, entity string, log logger.Logger) *Resource[T] {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Resource[T]{client: client, path: path, entity: entity, log: log}
}

// Entity returns the entity name of the collection.
func (r *Resource[T]) Entity() string { return r.entity }

// Path returns the backend collection path.
func (r *Resource[T]) Path() string { return r.path }

func (r *Resource[T]) itemPath(id int) string {
	return r.path + "/" + strconv.Itoa(id)
}

// List fetches the whole collection.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	if err := r.client.DoJSON(ctx, http.MethodGet, r.path, nil, &items); err != nil {
		return nil, r.wrap(err, "list", 0)
	}
	r.log.Trace("collection fetched", logger.String("entity", r.entity), logger.Int("count", len(items)))
	return items, nil
}

// Get fetches one item.
func (r *Resource[T]) Get(ctx context.Context, id int) (T, error) {
	var item T
	if err := r.client.DoJSON(ctx, http.MethodGet, r.itemPath(id), nil, &item); err != nil {
		return item, r.wrap(err, "get", id)
	}
	return item, nil
}

// CreateJSON posts body and returns the created item as echoed by the backend.
func (r *Resource[T]) CreateJSON(ctx context.Context, body any) (T, error) {
	var created T
	if err := r.client.DoJSON(ctx, http.MethodPost, r.path, body, &created); err != nil {
		return created, r.wrap(err, "create", 0)
	}
	return created, nil
}

// UpdateJSON puts body to the item. The backend usually answers 204.
func (r *Resource[T]) UpdateJSON(ctx context.Context, id int, body any) error {
	if err := r.client.DoJSON(ctx, http.MethodPut, r.itemPath(id), body, nil); err != nil {
		return r.wrap(err, "update", id)
	}
	return nil
}

// CreateMultipart posts form and returns the created item.
func (r *Resource[T]) CreateMultipart(ctx context.Context, form *httpclient.MultipartForm) (T, error) {
	var created T
	if err := r.client.DoMultipart(ctx, http.MethodPost, r.path, form, &created); err != nil {
		return created, r.wrap(err, "create", 0)
	}
	return created, nil
}

// UpdateMultipart puts form to the item.
func (r *Resource[T]) UpdateMultipart(ctx context.Context, id int, form *httpclient.MultipartForm) error {
	if err := r.client.DoMultipart(ctx, http.MethodPut, r.itemPath(id), form, nil); err != nil {
		return r.wrap(err, "update", id)
	}
	return nil
}

// Delete removes the item.
func (r *Resource[T]) Delete(ctx context.Context, id int) error {
	if err := r.client.DoJSON(ctx, http.MethodDelete, r.itemPath(id), nil, nil); err != nil {
		return r.wrap(err, "delete", id)
	}
	return nil
}

// wrap adds the entity and operation to an already categorized client error.
func (r *Resource[T]) wrap(err error, operation string, id int) error {
	b := errors.New(err).
		Component(componentName).
		Context("entity", r.entity).
		Context("operation", operation)
	if id != 0 {
		b = b.Context("id", id)
	}
	return b.Build()
}

// Backend groups every collection exposed by the catalog API.
type Backend struct {
	client *httpclient.Client
	log    logger.Logger

	Birds      *Resource[model.Bird]
	Families   *Resource[model.Family]
	Categories *Resource[model.SeasonalCategory]
	Statuses   *Resource[model.ProtectionStatus]
	Habitats   *Resource[model.Habitat]
	Users      *Resource[model.User]
}

// New builds the catalog resources on top of client.
func New(client *httpclient.Client, log logger.Logger) *Backend {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Backend{
		client:     client,
		log:        log,
		Birds:      NewResource[model.Bird](client, pathBirds, EntityBirds, log),
		Families:   NewResource[model.Family](client, pathFamilies, EntityFamilies, log),
		Categories: NewResource[model.SeasonalCategory](client, pathCategories, EntityCategories, log),
		Statuses:   NewResource[model.ProtectionStatus](client, pathStatuses, EntityStatuses, log),
		Habitats:   NewResource[model.Habitat](client, pathHabitats, EntityHabitats, log),
		Users:      NewResource[model.User](client, pathUsers, EntityUsers, log),
	}
}

// WithTokens returns the same collections authenticated by ts.
func (b *Backend) WithTokens(ts httpclient.TokenSource) *Backend {
	return New(b.client.WithTokens(ts), b.log)
}

// Login exchanges credentials for a token. passwordHash is the already
// hashed password, as the backend compares hashes.
func (b *Backend) Login(ctx context.Context, email, passwordHash string) (model.LoginResponse, error) {
	var resp model.LoginResponse
	req := model.LoginRequest{Email: email, Password: passwordHash}
	if err := b.client.DoJSON(ctx, http.MethodPost, pathLogin, req, &resp); err != nil {
		return resp, errors.New(err).
			Component(componentName).
			Context("operation", "login").
			Build()
	}
	if resp.Token == "" {
		return resp, errors.Newf("login response carries no token").
			Component(componentName).
			Category(errors.CategoryHTTP).
			Context("operation", "login").
			Build()
	}
	return resp, nil
}

// ImageURL returns where the bird's image is served, or "" when it has none.
func ImageURL(imageBase string, b model.Bird) string {
	if !b.HasImage() {
		return ""
	}
	return fmt.Sprintf("%s/imagenes/%s", imageBase, url.PathEscape(*b.ImageName))
}
