package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

const (
	msgInvalidEmail  = "Please enter a valid email address"
	msgInvalidPhone  = "Please enter a valid phone number"
	msgInvalidNumber = "Please enter a valid number"
	msgInvalidOption = "Please select a valid option"
	msgInvalidValue  = "Invalid value"
	msgInvalidFormat = "Invalid format"
)

var (
	phoneSeparators = regexp.MustCompile(`[\s\-().+]`)
	phoneDigits     = regexp.MustCompile(`^\d{7,15}$`)
)

// Compiled is the result of compiling a form's field list.
type Compiled struct {
	Schema   *Schema
	Defaults map[string]any
}

// Schema validates submitted data against a compiled field list. It holds
// no mutable state and is safe for concurrent use.
type Schema struct {
	rules []rule
}

type rule struct {
	name           string
	label          string
	typ            model.FieldType
	required       bool
	minLength      *int
	maxLength      *int
	pattern        *regexp.Regexp
	patternMessage string
	min            *float64
	max            *float64
	options        map[string]bool
}

// Compile builds the validation schema and default values for fields.
// An invalid field list (duplicate names, enumerated fields without options)
// is reported as a *ConfigError.
func Compile(fields []model.FormFieldConfig) (*Compiled, error) {
	if err := model.ValidateFields(fields); err != nil {
		return nil, &ConfigError{Err: err}
	}

	c := &Compiled{
		Schema:   &Schema{rules: make([]rule, 0, len(fields))},
		Defaults: make(map[string]any, len(fields)),
	}
	for _, f := range fields {
		c.Schema.rules = append(c.Schema.rules, newRule(f))
		c.Defaults[f.Name] = defaultValue(f)
	}
	return c, nil
}

func newRule(f model.FormFieldConfig) rule {
	r := rule{
		name:     f.Name,
		label:    f.DisplayLabel(),
		typ:      f.Type.Normalize(),
		required: f.Required,
	}

	if r.typ.Enumerated() {
		r.options = make(map[string]bool, len(f.Options))
		for _, o := range f.Options {
			r.options[o.Value] = true
		}
	}

	v := f.Validation
	if v == nil {
		return r
	}
	if r.typ.TextLike() {
		r.minLength = v.MinLength
		r.maxLength = v.MaxLength
		if v.Pattern != "" {
			// an unparsable pattern is skipped
			if re, err := regexp.Compile(v.Pattern); err == nil {
				r.pattern = re
				r.patternMessage = v.PatternMessage
			}
		}
	}
	if r.typ == model.FieldNumber {
		r.min = v.Min
		r.max = v.Max
	}
	return r
}

func defaultValue(f model.FormFieldConfig) any {
	if f.Type.Normalize() == model.FieldCheckbox {
		return f.DefaultValue == "true"
	}
	return f.DefaultValue
}

// Fields returns the field names covered by the schema, in form order.
func (s *Schema) Fields() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.name
	}
	return names
}

// Validate checks raw against every field and returns the typed values,
// one entry per field. Keys of raw that name no field are ignored. The
// returned errors hold at most one message per field.
func (s *Schema) Validate(raw map[string]any) (map[string]any, FieldErrors) {
	data := make(map[string]any, len(s.rules))
	var errs FieldErrors
	for _, r := range s.rules {
		value, msg := r.check(raw[r.name])
		if msg != "" {
			errs = append(errs, FieldError{Field: r.name, Message: msg})
			continue
		}
		data[r.name] = value
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return data, nil
}

func (r *rule) check(raw any) (any, string) {
	value, err := Coerce(r.typ, raw)
	if err != nil {
		if r.typ == model.FieldNumber {
			return nil, msgInvalidNumber
		}
		return nil, msgInvalidValue
	}

	if checked, ok := value.(bool); ok {
		if r.required && !checked {
			return nil, r.requiredMessage()
		}
		return checked, ""
	}

	// HTML forms submit empty strings for untouched inputs
	if value == "" {
		if r.required {
			return nil, r.requiredMessage()
		}
		return "", ""
	}

	switch r.typ {
	case model.FieldNumber:
		return r.checkNumber(value.(float64))
	case model.FieldSelect, model.FieldRadio:
		s := value.(string)
		if !r.options[s] {
			return nil, msgInvalidOption
		}
		return s, ""
	}
	return r.checkText(value.(string))
}

func (r *rule) checkNumber(n float64) (any, string) {
	if r.min != nil && n < *r.min {
		return nil, "Must be at least " + formatNumber(*r.min)
	}
	if r.max != nil && n > *r.max {
		return nil, "Must be at most " + formatNumber(*r.max)
	}
	return n, ""
}

func (r *rule) checkText(s string) (any, string) {
	switch r.typ {
	case model.FieldEmail:
		if !model.IsEmail(s) {
			return nil, msgInvalidEmail
		}
	case model.FieldPhone:
		if !phoneDigits.MatchString(phoneSeparators.ReplaceAllString(s, "")) {
			return nil, msgInvalidPhone
		}
	}

	n := utf8.RuneCountInString(s)
	if r.minLength != nil && n < *r.minLength {
		return nil, fmt.Sprintf("Must be at least %d characters", *r.minLength)
	}
	if r.maxLength != nil && n > *r.maxLength {
		return nil, fmt.Sprintf("Must be at most %d characters", *r.maxLength)
	}
	if r.pattern != nil && !r.pattern.MatchString(s) {
		if r.patternMessage != "" {
			return nil, r.patternMessage
		}
		return nil, msgInvalidFormat
	}
	return s, ""
}

func (r *rule) requiredMessage() string {
	return r.label + " is required"
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
