package model

// FieldType is the closed set of input kinds a form field can take.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldFile     FieldType = "file"
)

// Normalize maps the empty type to text.
func (t FieldType) Normalize() FieldType {
	if t == "" {
		return FieldText
	}
	return t
}

func (t FieldType) Valid() bool {
	switch t.Normalize() {
	case FieldText, FieldEmail, FieldPhone, FieldTextarea, FieldNumber,
		FieldDate, FieldSelect, FieldRadio, FieldCheckbox, FieldFile:
		return true
	}
	return false
}

// TextLike reports whether length and pattern rules apply to the type.
func (t FieldType) TextLike() bool {
	switch t.Normalize() {
	case FieldText, FieldTextarea, FieldEmail, FieldPhone, FieldDate:
		return true
	}
	return false
}

// Enumerated reports whether values are restricted to the field options.
func (t FieldType) Enumerated() bool {
	switch t.Normalize() {
	case FieldSelect, FieldRadio:
		return true
	}
	return false
}

type FieldWidth string

const (
	WidthFull FieldWidth = "full"
	WidthHalf FieldWidth = "half"
)

type FieldOption struct {
	Label string `json:"label" yaml:"label" validate:"required"`
	Value string `json:"value" yaml:"value" validate:"required"`
}

// FieldValidation holds optional refinements. Length and pattern rules only
// apply to text-like types, Min and Max only to numbers.
type FieldValidation struct {
	Pattern        string   `json:"pattern,omitempty" yaml:"pattern"`
	PatternMessage string   `json:"patternMessage,omitempty" yaml:"patternMessage"`
	MinLength      *int     `json:"minLength,omitempty" yaml:"minLength" validate:"omitempty,min=0"`
	MaxLength      *int     `json:"maxLength,omitempty" yaml:"maxLength" validate:"omitempty,min=0"`
	Min            *float64 `json:"min,omitempty" yaml:"min"`
	Max            *float64 `json:"max,omitempty" yaml:"max"`
}

type FormFieldConfig struct {
	Key          string           `json:"key" yaml:"key"`
	Name         string           `json:"name" yaml:"name" validate:"required"`
	Label        string           `json:"label" yaml:"label"`
	Type         FieldType        `json:"type" yaml:"type" validate:"omitempty,oneof=text email phone textarea number date select radio checkbox file"`
	Required     bool             `json:"required" yaml:"required"`
	Placeholder  string           `json:"placeholder,omitempty" yaml:"placeholder"`
	HelpText     string           `json:"helpText,omitempty" yaml:"helpText"`
	DefaultValue string           `json:"defaultValue,omitempty" yaml:"defaultValue"`
	Width        FieldWidth       `json:"width,omitempty" yaml:"width" validate:"omitempty,oneof=full half"`
	Options      []FieldOption    `json:"options,omitempty" yaml:"options" validate:"dive"`
	Validation   *FieldValidation `json:"validation,omitempty" yaml:"validation"`
}

// DisplayLabel falls back to the field name when no label was authored.
func (f FormFieldConfig) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}
