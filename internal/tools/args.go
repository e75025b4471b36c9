package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// errInvalidID is rendered as "Invalid ID format."
var errInvalidID = domain.NewValidationError("invalid id format")

// args are the decoded JSON arguments of one call. Numbers arrive as float64.
type args map[string]any

// str returns the trimmed string at key, or false when absent or blank.
func (a args) str(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func (a args) requireStr(key string) (string, error) {
	s, ok := a.str(key)
	if !ok {
		return "", domain.NewValidationError(key + " is required")
	}
	return s, nil
}

func (a args) strOr(key, def string) string {
	if s, ok := a.str(key); ok {
		return s
	}
	return def
}

// amount returns the decimal at key; ok is false when the key is absent.
func (a args) amount(key string) (d decimal.Decimal, ok bool, err error) {
	v, present := a[key]
	if !present || v == nil {
		return decimal.Zero, false, nil
	}

	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true, nil
	case float32:
		return decimal.NewFromFloat32(n), true, nil
	case int:
		return decimal.NewFromInt(int64(n)), true, nil
	case int64:
		return decimal.NewFromInt(n), true, nil
	case json.Number:
		d, err = decimal.NewFromString(n.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(n), "$"))
	default:
		err = fmt.Errorf("unexpected type %T", v)
	}
	if err != nil {
		return decimal.Zero, false, domain.NewValidationError(key + " must be a number")
	}
	return d, true, nil
}

func (a args) requireAmount(key string) (decimal.Decimal, error) {
	d, ok, err := a.amount(key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, domain.NewValidationError(key + " is required")
	}
	return d, nil
}

// integer returns the whole number at key, or def when absent.
func (a args) integer(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}

	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, domain.NewValidationError(key + " must be a whole number")
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, domain.NewValidationError(key + " must be a whole number")
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, domain.NewValidationError(key + " must be a whole number")
		}
		return i, nil
	}
	return 0, domain.NewValidationError(key + " must be a whole number")
}

func (a args) boolean(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}

	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, domain.NewValidationError(key + " must be true or false")
		}
		return parsed, nil
	}
	return false, domain.NewValidationError(key + " must be true or false")
}

// id parses the UUID at key. A present but malformed value is errInvalidID.
func (a args) id(key string) (uuid.UUID, error) {
	s, ok := a.str(key)
	if !ok {
		return uuid.Nil, domain.NewValidationError(key + " is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}
