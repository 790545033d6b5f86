package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the whole form configuration and reports every problem found.
func (f FormConfig) Validate() error {
	var result *multierror.Error
	result = multierror.Append(result, structErrors(f)...)
	if err := ValidateFields(f.Fields); err != nil {
		result = multierror.Append(result, err)
	}
	for i, a := range f.Actions {
		if err := a.validatePayload(); err != nil {
			result = multierror.Append(result, fmt.Errorf("actions[%d]: %w", i, err))
		}
	}
	return result.ErrorOrNil()
}

// ValidateFields checks a field list on its own: per-field shape,
// unique names, and options for enumerated types.
func ValidateFields(fields []FormFieldConfig) error {
	var result *multierror.Error
	seen := make(map[string]int, len(fields))
	for i, f := range fields {
		for _, err := range structErrors(f) {
			result = multierror.Append(result, fmt.Errorf("fields[%d]: %w", i, err))
		}
		if f.Name != "" {
			if prev, dup := seen[f.Name]; dup {
				result = multierror.Append(result, fmt.Errorf("fields[%d]: name %q already used by fields[%d]", i, f.Name, prev))
			} else {
				seen[f.Name] = i
			}
		}
		if f.Type.Enumerated() {
			if len(f.Options) == 0 {
				result = multierror.Append(result, fmt.Errorf("fields[%d]: %s field %q has no options", i, f.Type, f.Name))
			}
			values := make(map[string]bool, len(f.Options))
			for _, o := range f.Options {
				if values[o.Value] {
					result = multierror.Append(result, fmt.Errorf("fields[%d]: duplicate option value %q", i, o.Value))
				}
				values[o.Value] = true
			}
		}
	}
	return result.ErrorOrNil()
}

func (a Action) validatePayload() error {
	switch a.Kind {
	case ActionWebhook:
		if a.Webhook == nil {
			return errors.New("webhook action without webhook settings")
		}
	case ActionEmail:
		if a.Email == nil {
			return errors.New("email action without email settings")
		}
	}
	return nil
}

func structErrors(s any) (errs []error) {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
	}
	return errs
}

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	return validate.Var(s, "email") == nil
}
