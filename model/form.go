package model

import (
	"fmt"
	"time"
)

type FormSettings struct {
	SubmitText            string `json:"submitText,omitempty" yaml:"submitText"`
	SuccessMessage        string `json:"successMessage,omitempty" yaml:"successMessage"`
	ErrorMessage          string `json:"errorMessage,omitempty" yaml:"errorMessage"`
	SpamProtectionEnabled bool   `json:"spamProtectionEnabled" yaml:"spamProtectionEnabled"`
}

type FormConfig struct {
	ID        string            `json:"id,omitempty" yaml:"id"`
	Slug      string            `json:"slug" yaml:"slug" validate:"required"`
	Name      string            `json:"name" yaml:"name" validate:"required"`
	Version   int               `json:"version,omitempty" yaml:"-"`
	Fields    []FormFieldConfig `json:"fields" yaml:"fields"`
	Actions   []Action          `json:"actions" yaml:"actions" validate:"dive"`
	Settings  FormSettings      `json:"settings" yaml:"settings"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty" yaml:"-"`
}

// Field returns the field stored under name.
func (f FormConfig) Field(name string) (FormFieldConfig, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FormFieldConfig{}, false
}

// FormReference identifies a form by ID, with the slug as fallback key.
type FormReference struct {
	ID   string `json:"formId,omitempty"`
	Slug string `json:"formSlug,omitempty"`
}

func (ref FormReference) IsZero() bool {
	return ref.ID == "" && ref.Slug == ""
}

func (ref FormReference) String() string {
	if ref.ID != "" {
		return ref.ID
	}
	return fmt.Sprintf("slug:%s", ref.Slug)
}
