// Package config loads filerepo settings from YAML or JSON files and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "FILEREPO"

var durationType = reflect.TypeOf(time.Duration(0))

// ApplyEnvOverrides sets fields of the struct target points to from
// environment variables named PREFIX_SECTION_FIELD, where each part is the
// upper-cased yaml name of the field (e.g. FILEREPO_STORE_RECORD_SIZE).
// Nil struct pointers are only allocated when a variable below them is set.
func ApplyEnvOverrides(prefix string, target interface{}) error {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct")
	}
	_, err := applyEnvToStruct(prefix, val.Elem())
	return err
}

func envName(field reflect.StructField) string {
	name := field.Name
	if tag := field.Tag.Get("yaml"); tag != "" {
		if n, _, _ := strings.Cut(tag, ","); n != "" && n != "-" {
			name = n
		}
	}
	return strings.ReplaceAll(strings.ToUpper(name), "-", "_")
}

func applyEnvToStruct(prefix string, val reflect.Value) (bool, error) {
	typ := val.Type()
	changed := false

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !field.CanSet() {
			continue
		}
		envKey := prefix + "_" + envName(fieldType)

		switch {
		case field.Kind() == reflect.Struct:
			c, err := applyEnvToStruct(envKey, field)
			if err != nil {
				return false, err
			}
			changed = changed || c
			continue
		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
			fresh := reflect.New(field.Type().Elem())
			if !field.IsNil() {
				fresh.Elem().Set(field.Elem())
			}
			c, err := applyEnvToStruct(envKey, fresh.Elem())
			if err != nil {
				return false, err
			}
			if c {
				field.Set(fresh)
				changed = true
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}
		if err := setFieldFromEnv(field, envValue); err != nil {
			return false, fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envKey, err)
		}
		changed = true
	}
	return changed, nil
}

func setFieldFromEnv(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	var err error
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = strconv.ParseInt(raw, 10, field.Type().Bits()); err == nil {
			field.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = strconv.ParseUint(raw, 10, field.Type().Bits()); err == nil {
			field.SetUint(n)
		}
	case reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	default:
		err = fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return err
}
