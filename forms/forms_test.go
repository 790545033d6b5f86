package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/database"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/schema"
)

type fakeSource struct {
	forms map[string]model.FormConfig
	err   error
	calls int
}

func (s *fakeSource) GetFormByID(ctx context.Context, id string) (model.FormConfig, error) {
	s.calls++
	if s.err != nil {
		return model.FormConfig{}, s.err
	}
	for _, f := range s.forms {
		if f.ID == id {
			return f, nil
		}
	}
	return model.FormConfig{}, database.ErrNotFound
}

func (s *fakeSource) GetFormBySlug(ctx context.Context, slug string) (model.FormConfig, error) {
	s.calls++
	if s.err != nil {
		return model.FormConfig{}, s.err
	}
	if f, ok := s.forms[slug]; ok {
		return f, nil
	}
	return model.FormConfig{}, database.ErrNotFound
}

func newSource() *fakeSource {
	return &fakeSource{forms: map[string]model.FormConfig{
		"contact": {ID: "f-1", Slug: "contact", Name: "Contact"},
	}}
}

func TestResolveCaches(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	c := NewCatalog(src, CatalogConfig{Size: 10, TTL: time.Minute})

	f, err := c.Resolve(ctx, model.FormReference{ID: "f-1"})
	require.NoError(t, err)
	assert.Equal(t, "contact", f.Slug)
	assert.Equal(t, 1, src.calls)

	_, err = c.Resolve(ctx, model.FormReference{ID: "f-1"})
	require.NoError(t, err)
	// loading by id also caches the slug
	_, err = c.Resolve(ctx, model.FormReference{Slug: "contact"})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	c.Invalidate("f-1", "contact")
	_, err = c.Resolve(ctx, model.FormReference{Slug: "contact"})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestResolveFallsBackToSlug(t *testing.T) {
	c := NewCatalog(newSource(), CatalogConfig{})

	f, err := c.Resolve(context.Background(), model.FormReference{ID: "contact", Slug: "contact"})
	require.NoError(t, err)
	assert.Equal(t, "f-1", f.ID)
}

func TestResolveNotFound(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(newSource(), CatalogConfig{})

	_, err := c.Resolve(ctx, model.FormReference{ID: "nope", Slug: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Resolve(ctx, model.FormReference{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveSourceError(t *testing.T) {
	src := newSource()
	src.err = errors.New("database is locked")
	c := NewCatalog(src, CatalogConfig{})

	_, err := c.Resolve(context.Background(), model.FormReference{ID: "f-1", Slug: "contact"})
	assert.EqualError(t, err, "database is locked")
	assert.NotErrorIs(t, err, ErrNotFound)
	// no slug fallback on a real failure
	assert.Equal(t, 1, src.calls)
}

func TestLoadFile(t *testing.T) {
	forms, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)
	require.Len(t, forms, 2)

	contact := forms[0]
	assert.Equal(t, "contact", contact.Slug)
	assert.True(t, contact.Settings.SpamProtectionEnabled)
	require.Len(t, contact.Fields, 5)
	assert.Equal(t, model.FieldType(""), contact.Fields[0].Type)
	assert.Len(t, contact.Fields[2].Options, 2)
	require.NotNil(t, contact.Fields[4].Validation)
	assert.Equal(t, 2000, *contact.Fields[4].Validation.MaxLength)
	require.Len(t, contact.Actions, 2)
	assert.Equal(t, model.ActionStorage, contact.Actions[0].Kind)
	assert.Equal(t, "https://hooks.example.com/contact", contact.Actions[1].Webhook.URL)
}

func TestLoadFileInvalid(t *testing.T) {
	_, err := LoadFile("testdata/duplicate.yaml")
	assert.ErrorContains(t, err, `name "email" already used`)

	_, err = LoadFile("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestNewDefinition(t *testing.T) {
	forms, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	def, err := NewDefinition(forms[0])
	require.NoError(t, err)
	assert.Equal(t, model.FieldText, def.Fields[0].Type)
	assert.Equal(t, model.WidthFull, def.Fields[1].Width)
	assert.Equal(t, map[string]any{
		"name":       "",
		"email":      "",
		"topic":      "sales",
		"newsletter": true,
		"message":    "",
	}, def.Defaults)
	// the source form is left untouched
	assert.Equal(t, model.FieldType(""), forms[0].Fields[0].Type)
}

func TestNewDefinitionInvalid(t *testing.T) {
	f := model.FormConfig{Slug: "x", Name: "X", Fields: []model.FormFieldConfig{
		{Name: "color", Type: model.FieldRadio},
	}}
	_, err := NewDefinition(f)
	var cfgErr *schema.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
