// Package listing keeps an in-memory copy of a backend collection for one
// screen and re-fetches it after every mutation.
package listing

import (
	"context"
	"sync"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/events"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

// Resource is the backend collection a controller works on.
// *catalog.Resource satisfies it.
type Resource[T any] interface {
	Entity() string
	List(ctx context.Context) ([]T, error)
	CreateJSON(ctx context.Context, body any) (T, error)
	UpdateJSON(ctx context.Context, id int, body any) error
	CreateMultipart(ctx context.Context, form *httpclient.MultipartForm) (T, error)
	UpdateMultipart(ctx context.Context, id int, form *httpclient.MultipartForm) error
	Delete(ctx context.Context, id int) error
}

// EventSink receives a change after every successful mutation.
// *events.EventBus satisfies it.
type EventSink interface {
	TryPublish(change events.Change) bool
}

// Options are shared by every controller of a request.
type Options struct {
	Log    logger.Logger
	Events EventSink
	// Cache, when set, serves LoadAll from recently fetched lists.
	Cache *catalog.ListCache
}

// Payload is what a mutation sends. Form wins over JSON when both are set.
type Payload struct {
	JSON any
	Form *httpclient.MultipartForm
}

// Controller holds the current items of one collection.
type Controller[T model.Entity] struct {
	res    Resource[T]
	lister catalog.Lister[T]
	opts   Options
	log    logger.Logger

	mu      sync.RWMutex
	items   []T
	loaded  bool
	loadErr error
}

// New creates a controller over res. Nothing is fetched until LoadAll.
func New[T model.Entity](res Resource[T], opts Options) *Controller[T] {
	if opts.Log == nil {
		opts.Log = logger.NewNopLogger()
	}
	c := &Controller[T]{
		res:  res,
		opts: opts,
		log:  opts.Log.With(logger.String("entity", res.Entity())),
	}
	c.lister = res
	if opts.Cache != nil {
		c.lister = catalog.NewCached[T](res, res.Entity(), opts.Cache)
	}
	return c
}

// Entity returns the entity name of the underlying collection.
func (c *Controller[T]) Entity() string { return c.res.Entity() }

// LoadAll fetches the whole collection and replaces the items. On failure
// the previous items are kept and the error is returned.
func (c *Controller[T]) LoadAll(ctx context.Context) error {
	items, err := c.lister.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadErr = err
	if err != nil {
		c.log.Error("failed to load collection", logger.Error(err))
		return err
	}
	if items == nil {
		items = []T{}
	}
	c.items = items
	c.loaded = true
	c.log.Debug("collection loaded", logger.Int("count", len(items)))
	return nil
}

// Items returns a copy of the current items.
func (c *Controller[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

// Loaded reports whether a LoadAll has succeeded at least once.
func (c *Controller[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// LoadErr returns the error of the most recent LoadAll, if any.
func (c *Controller[T]) LoadErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

// Find returns the loaded item with id.
func (c *Controller[T]) Find(id int) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.EntityID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Create sends p to the backend and reloads. It returns what the backend
// echoed back, which may be the zero value when the response is empty.
func (c *Controller[T]) Create(ctx context.Context, p Payload) (T, error) {
	var (
		created T
		err     error
	)
	if p.Form != nil {
		created, err = c.res.CreateMultipart(ctx, p.Form)
	} else {
		created, err = c.res.CreateJSON(ctx, p.JSON)
	}
	if err != nil {
		c.log.Error("create failed", logger.Error(err))
		return created, err
	}
	c.afterMutation(ctx, events.ActionCreated, created.EntityID())
	return created, nil
}

// Update sends p for the record id and reloads.
func (c *Controller[T]) Update(ctx context.Context, id int, p Payload) error {
	var err error
	if p.Form != nil {
		err = c.res.UpdateMultipart(ctx, id, p.Form)
	} else {
		err = c.res.UpdateJSON(ctx, id, p.JSON)
	}
	if err != nil {
		c.log.Error("update failed", logger.Int("id", id), logger.Error(err))
		return err
	}
	c.afterMutation(ctx, events.ActionUpdated, id)
	return nil
}

// Delete removes the record id and reloads.
func (c *Controller[T]) Delete(ctx context.Context, id int) error {
	if err := c.res.Delete(ctx, id); err != nil {
		c.log.Error("delete failed", logger.Int("id", id), logger.Error(err))
		return err
	}
	c.afterMutation(ctx, events.ActionDeleted, id)
	return nil
}

// afterMutation runs once the backend accepted a change. A failed reload
// is kept in LoadErr; the mutation itself still succeeded.
func (c *Controller[T]) afterMutation(ctx context.Context, action events.Action, id int) {
	c.log.Info("record changed", logger.String("action", string(action)), logger.Int("id", id))
	c.opts.Cache.Invalidate(c.res.Entity())
	if c.opts.Events != nil {
		c.opts.Events.TryPublish(events.Change{Entity: c.res.Entity(), Action: action, ID: id})
	}
	_ = c.LoadAll(ctx)
}

// Authenticator is the part of a session needed to open a gated screen.
type Authenticator interface {
	IsAuthenticated() bool
}

// Texts shown in place of a gated screen.
const (
	AccessDeniedTitle   = "Acceso denegado"
	AccessDeniedMessage = "Debes iniciar sesión para ver esta sección."
)

// ErrAccessDenied is returned by Gate for anonymous sessions.
var ErrAccessDenied = errors.New(errors.NewStd("access denied")).
	Component("listing").
	Category(errors.CategorySession).
	Build()

// Gate allows gated screens only for authenticated sessions. A denied
// screen must not call the backend.
func Gate(auth Authenticator) error {
	if auth == nil || !auth.IsAuthenticated() {
		return ErrAccessDenied
	}
	return nil
}
