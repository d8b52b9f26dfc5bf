// Package filter narrows the bird gallery by family, seasonal category,
// protection status and habitat. Within a dimension any selected value
// matches; across dimensions every non-empty selection must match.
package filter

import (
	"net/url"
	"slices"
	"strconv"

	"github.com/skybound/skybound/internal/model"
)

// Dimension is one of the four foreign keys a bird can be filtered on.
type Dimension int

const (
	Family Dimension = iota
	Category
	Status
	Habitat
)

// Dimensions lists every dimension in display order.
var Dimensions = []Dimension{Family, Category, Status, Habitat}

// String returns the query parameter name of the dimension.
func (d Dimension) String() string {
	switch d {
	case Family:
		return "familia"
	case Category:
		return "categoria"
	case Status:
		return "estatus"
	case Habitat:
		return "habitat"
	default:
		return "dimension(" + strconv.Itoa(int(d)) + ")"
	}
}

// ParseDimension maps a query parameter name back to its dimension.
func ParseDimension(name string) (Dimension, bool) {
	for _, d := range Dimensions {
		if d.String() == name {
			return d, true
		}
	}
	return 0, false
}

func (d Dimension) valid() bool {
	return d >= Family && d <= Habitat
}

// valueOf returns the bird's key for d. A null key is reported as absent
// and never matches a selection.
func (d Dimension) valueOf(b *model.Bird) (int, bool) {
	var id *int
	switch d {
	case Family:
		id = b.FamilyID
	case Category:
		id = b.CategoryID
	case Status:
		id = b.StatusID
	case Habitat:
		id = b.HabitatID
	}
	if id == nil {
		return 0, false
	}
	return *id, true
}

// Engine holds the current selection. The zero value is not usable, call New.
type Engine struct {
	sets [4]map[int]struct{}
}

// New returns an engine with nothing selected.
func New() *Engine {
	e := &Engine{}
	for i := range e.sets {
		e.sets[i] = make(map[int]struct{})
	}
	return e
}

// Toggle adds id to the selection of d, or removes it when already present.
func (e *Engine) Toggle(d Dimension, id int) {
	if !d.valid() {
		return
	}
	set := e.sets[d]
	if _, ok := set[id]; ok {
		delete(set, id)
		return
	}
	set[id] = struct{}{}
}

// Clear empties every selection.
func (e *Engine) Clear() {
	for i := range e.sets {
		clear(e.sets[i])
	}
}

// Selected returns the selected ids of d in ascending order.
func (e *Engine) Selected(d Dimension) []int {
	if !d.valid() {
		return nil
	}
	ids := make([]int, 0, len(e.sets[d]))
	for id := range e.sets[d] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsSelected reports whether id is selected in d.
func (e *Engine) IsSelected(d Dimension, id int) bool {
	if !d.valid() {
		return false
	}
	_, ok := e.sets[d][id]
	return ok
}

// Retain drops every selected id of d that is not in known. Ids left
// over from a bookmark or a deleted lookup row would otherwise hide
// every bird.
func (e *Engine) Retain(d Dimension, known []int) {
	if !d.valid() {
		return
	}
	keep := make(map[int]struct{}, len(known))
	for _, id := range known {
		keep[id] = struct{}{}
	}
	for id := range e.sets[d] {
		if _, ok := keep[id]; !ok {
			delete(e.sets[d], id)
		}
	}
}

// Active reports whether any dimension has a selection.
func (e *Engine) Active() bool {
	for i := range e.sets {
		if len(e.sets[i]) > 0 {
			return true
		}
	}
	return false
}

// Apply returns the birds matching the selection, in their original order.
// With nothing selected every bird is returned.
func (e *Engine) Apply(birds []model.Bird) []model.Bird {
	out := make([]model.Bird, 0, len(birds))
	for i := range birds {
		if e.matches(&birds[i]) {
			out = append(out, birds[i])
		}
	}
	return out
}

func (e *Engine) matches(b *model.Bird) bool {
	for _, d := range Dimensions {
		set := e.sets[d]
		if len(set) == 0 {
			continue
		}
		id, ok := d.valueOf(b)
		if !ok {
			return false
		}
		if _, selected := set[id]; !selected {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the selection.
func (e *Engine) Clone() *Engine {
	c := New()
	for i := range e.sets {
		for id := range e.sets[i] {
			c.sets[i][id] = struct{}{}
		}
	}
	return c
}

// ParseQuery builds an engine from repeated query parameters such as
// ?familia=1&familia=3&habitat=2. Values that are not integers are ignored.
func ParseQuery(values url.Values) *Engine {
	e := New()
	for _, d := range Dimensions {
		for _, raw := range values[d.String()] {
			id, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			e.sets[d][id] = struct{}{}
		}
	}
	return e
}

// Query encodes the selection as query parameters, ids ascending.
func (e *Engine) Query() url.Values {
	values := url.Values{}
	for _, d := range Dimensions {
		for _, id := range e.Selected(d) {
			values.Add(d.String(), strconv.Itoa(id))
		}
	}
	return values
}

// ToggleQuery returns the query string of the selection with id toggled
// in d, leaving e untouched. Used to render filter links.
func (e *Engine) ToggleQuery(d Dimension, id int) string {
	c := e.Clone()
	c.Toggle(d, id)
	return c.Query().Encode()
}
