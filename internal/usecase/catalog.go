package usecase

import (
	"fmt"
	"sort"

	"github.com/teknolab/repute/internal/domain"
)

// Catalog is the static registry of recognized action kinds. It is built
// once at startup and read-only afterwards, so lookups need no locking.
type Catalog struct {
	kinds map[string]domain.ActionKind
}

// NewCatalog builds a catalog from configuration. Duplicate ids are a
// configuration mistake and rejected outright.
func NewCatalog(kinds []domain.ActionKind) (*Catalog, error) {
	c := &Catalog{kinds: make(map[string]domain.ActionKind, len(kinds))}
	for _, kind := range kinds {
		if kind.ID == "" {
			return nil, fmt.Errorf("action kind with empty id")
		}
		if _, ok := c.kinds[kind.ID]; ok {
			return nil, fmt.Errorf("action kind %q registered twice", kind.ID)
		}
		c.kinds[kind.ID] = kind
	}
	return c, nil
}

// Resolve returns the kind registered under id, or domain.ErrUnknownAction.
func (c *Catalog) Resolve(id string) (domain.ActionKind, error) {
	kind, ok := c.kinds[id]
	if !ok {
		return domain.ActionKind{}, domain.UnknownActionError{Kind: id}
	}
	return kind, nil
}

// Kinds lists the registered kinds in id order.
func (c *Catalog) Kinds() []domain.ActionKind {
	out := make([]domain.ActionKind, 0, len(c.kinds))
	for _, kind := range c.kinds {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
