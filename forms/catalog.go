package forms

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/database"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

var ErrNotFound = errors.New("form not found")

// Source is where form definitions are read from.
type Source interface {
	GetFormByID(ctx context.Context, id string) (model.FormConfig, error)
	GetFormBySlug(ctx context.Context, slug string) (model.FormConfig, error)
}

type CatalogConfig struct {
	Size int
	TTL  time.Duration
}

// Catalog resolves form references through a bounded, expiring cache.
// Returned forms are shared with the cache and must not be modified.
type Catalog struct {
	src   Source
	cache *expirable.LRU[string, model.FormConfig]
}

func NewCatalog(src Source, cfg CatalogConfig) *Catalog {
	size := cfg.Size
	if size <= 0 {
		size = 128
	}
	return &Catalog{
		src:   src,
		cache: expirable.NewLRU[string, model.FormConfig](size, nil, cfg.TTL),
	}
}

// Resolve looks ref up by ID first, then by slug.
func (c *Catalog) Resolve(ctx context.Context, ref model.FormReference) (model.FormConfig, error) {
	if ref.ID != "" {
		f, err := c.lookup(ctx, idKey(ref.ID), func() (model.FormConfig, error) {
			return c.src.GetFormByID(ctx, ref.ID)
		})
		if !errors.Is(err, ErrNotFound) || ref.Slug == "" {
			return f, err
		}
	}
	if ref.Slug != "" {
		return c.lookup(ctx, slugKey(ref.Slug), func() (model.FormConfig, error) {
			return c.src.GetFormBySlug(ctx, ref.Slug)
		})
	}
	return model.FormConfig{}, ErrNotFound
}

// Invalidate drops the cached entries of a form.
func (c *Catalog) Invalidate(id, slug string) {
	if id != "" {
		c.cache.Remove(idKey(id))
	}
	if slug != "" {
		c.cache.Remove(slugKey(slug))
	}
}

func (c *Catalog) lookup(ctx context.Context, key string, load func() (model.FormConfig, error)) (model.FormConfig, error) {
	if f, ok := c.cache.Get(key); ok {
		return f, nil
	}
	if err := ctx.Err(); err != nil {
		return model.FormConfig{}, err
	}

	f, err := load()
	if errors.Is(err, database.ErrNotFound) {
		return f, ErrNotFound
	}
	if err != nil {
		return f, err
	}
	c.cache.Add(idKey(f.ID), f)
	c.cache.Add(slugKey(f.Slug), f)
	return f, nil
}

func idKey(id string) string     { return "id:" + id }
func slugKey(slug string) string { return "slug:" + slug }
