package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Validator checks a configuration value.
type Validator interface {
	Validate(config interface{}) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(config interface{}) error

func (f ValidatorFunc) Validate(config interface{}) error {
	return f(config)
}

// Validate runs every validator and reports all failures together.
func Validate(config interface{}, validators ...Validator) error {
	var errs []error
	for _, v := range validators {
		if err := v.Validate(config); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// RequiredFields fails when any of the dotted field paths holds its zero value.
func RequiredFields(paths ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		var missing []string
		for _, path := range paths {
			v, err := lookup(config, path)
			if err != nil {
				return err
			}
			if v.IsZero() {
				missing = append(missing, path)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("required fields are missing: %s", strings.Join(missing, ", "))
		}
		return nil
	})
}

// RangeValidator fails when the integer field at path lies outside [lo, hi].
func RangeValidator(path string, lo, hi int64) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := lookup(config, path)
		if err != nil {
			return err
		}
		var n int64
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = v.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			n = int64(v.Uint())
		default:
			return fmt.Errorf("field %s is %s, not an integer", path, v.Kind())
		}
		if n < lo || n > hi {
			return fmt.Errorf("%s = %d, want %d..%d", path, n, lo, hi)
		}
		return nil
	})
}

// lookup walks a dotted path of exported field names such as "IO.Workers".
func lookup(config interface{}, path string) (reflect.Value, error) {
	v := reflect.ValueOf(config)
	for _, name := range strings.Split(path, ".") {
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("field %s: nil before %s", path, name)
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field %s: %s is not in a struct", path, name)
		}
		if v = v.FieldByName(name); !v.IsValid() {
			return reflect.Value{}, fmt.Errorf("field %s not found", path)
		}
	}
	return v, nil
}
