package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

var (
	ErrNotANumber  = errors.New("not a number")
	ErrNotABoolean = errors.New("not a boolean")
)

// Coerce turns a raw submitted value into the representation the field
// rules work on: float64 (or "" when empty) for numbers, bool for
// checkboxes, and string for everything else. File inputs carry the list of
// selected file names, stored joined.
func Coerce(t model.FieldType, raw any) (any, error) {
	switch t.Normalize() {
	case model.FieldNumber:
		return coerceNumber(raw)
	case model.FieldCheckbox:
		return coerceBool(raw)
	case model.FieldFile:
		return joinFileNames(raw), nil
	case model.FieldText, model.FieldTextarea, model.FieldEmail, model.FieldPhone,
		model.FieldDate, model.FieldSelect, model.FieldRadio:
		return coerceString(raw), nil
	}
	return nil, fmt.Errorf("unknown field type %q", t)
}

func coerceString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		if len(v) == 0 {
			return ""
		}
		return v[0]
	case []any:
		if len(v) == 0 {
			return ""
		}
		return coerceString(v[0])
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return fmt.Sprint(raw)
}

func coerceNumber(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrNotANumber
		}
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return coerceNumber(v.String())
	case bool:
		return nil, ErrNotANumber
	case []string, []any:
		return coerceNumber(coerceString(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, ErrNotANumber
		}
		return n, nil
	}
	return nil, ErrNotANumber
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case []string:
		// a hidden "false" input usually precedes the checkbox itself
		if len(v) == 0 {
			return false, nil
		}
		return coerceBool(v[len(v)-1])
	case []any:
		if len(v) == 0 {
			return false, nil
		}
		return coerceBool(v[len(v)-1])
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "checked", "1", "yes":
			return true, nil
		case "", "false", "off", "0", "no":
			return false, nil
		}
	}
	return false, ErrNotABoolean
}

func joinFileNames(raw any) string {
	var names []string
	switch v := raw.(type) {
	case []string:
		names = v
	case []any:
		for _, n := range v {
			names = append(names, coerceString(n))
		}
	default:
		return coerceString(raw)
	}

	var kept []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, n)
		}
	}
	return strings.Join(kept, ", ")
}
