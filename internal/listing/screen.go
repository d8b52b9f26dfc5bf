package listing

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/filter"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

// BirdScreen is everything the gallery needs: the birds plus the four
// reference lists used by the filters and the edit form.
type BirdScreen struct {
	Birds      *Controller[model.Bird]
	Families   *Controller[model.Family]
	Categories *Controller[model.SeasonalCategory]
	Statuses   *Controller[model.ProtectionStatus]
	Habitats   *Controller[model.Habitat]

	log logger.Logger
}

// NewBirdScreen builds the gallery controllers. The list cache in opts
// only applies to the reference lists; birds are always fetched fresh.
func NewBirdScreen(b *catalog.Backend, opts Options) *BirdScreen {
	birdOpts := opts
	birdOpts.Cache = nil
	if opts.Log == nil {
		opts.Log = logger.NewNopLogger()
	}
	return &BirdScreen{
		Birds:      New[model.Bird](b.Birds, birdOpts),
		Families:   New[model.Family](b.Families, opts),
		Categories: New[model.SeasonalCategory](b.Categories, opts),
		Statuses:   New[model.ProtectionStatus](b.Statuses, opts),
		Habitats:   New[model.Habitat](b.Habitats, opts),
		log:        opts.Log,
	}
}

// Load fetches the five lists concurrently. Each list is replaced as soon
// as its own fetch succeeds, so one failure never holds back the others.
// All failures are returned joined.
func (s *BirdScreen) Load(ctx context.Context) error {
	loaders := []func(context.Context) error{
		s.Birds.LoadAll,
		s.Families.LoadAll,
		s.Categories.LoadAll,
		s.Statuses.LoadAll,
		s.Habitats.LoadAll,
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	// A plain group: one failed fetch must not cancel the rest
	var g errgroup.Group
	for _, load := range loaders {
		g.Go(func() error {
			if err := load(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		s.log.Warn("gallery loaded with failures", logger.Int("failed", len(errs)))
		return errors.Join(errs...)
	}
	return nil
}

// RetainKnown drops filter ids that are not rows of the loaded lookup
// lists. A list that failed to load leaves its dimension as it is.
func (s *BirdScreen) RetainKnown(e *filter.Engine) {
	retain(e, filter.Family, s.Families)
	retain(e, filter.Category, s.Categories)
	retain(e, filter.Status, s.Statuses)
	retain(e, filter.Habitat, s.Habitats)
}

func retain[T model.Entity](e *filter.Engine, d filter.Dimension, c *Controller[T]) {
	if !c.Loaded() {
		return
	}
	items := c.Items()
	known := make([]int, 0, len(items))
	for _, item := range items {
		known = append(known, item.EntityID())
	}
	e.Retain(d, known)
}
