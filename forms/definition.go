package forms

import (
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/schema"
)

// Definition is what a client needs to render a form. Actions are left out
// since they carry delivery targets and secrets.
type Definition struct {
	ID       string                  `json:"id"`
	Slug     string                  `json:"slug"`
	Name     string                  `json:"name"`
	Version  int                     `json:"version"`
	Fields   []model.FormFieldConfig `json:"fields"`
	Settings model.FormSettings      `json:"settings"`
	Defaults map[string]any          `json:"defaults"`
}

func NewDefinition(f model.FormConfig) (Definition, error) {
	compiled, err := schema.Compile(f.Fields)
	if err != nil {
		return Definition{}, err
	}

	fields := make([]model.FormFieldConfig, len(f.Fields))
	for i, field := range f.Fields {
		field.Type = field.Type.Normalize()
		if field.Label == "" {
			field.Label = field.DisplayLabel()
		}
		if field.Width == "" {
			field.Width = model.WidthFull
		}
		fields[i] = field
	}

	return Definition{
		ID:       f.ID,
		Slug:     f.Slug,
		Name:     f.Name,
		Version:  f.Version,
		Fields:   fields,
		Settings: f.Settings,
		Defaults: compiled.Defaults,
	}, nil
}
