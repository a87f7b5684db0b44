package storage

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// column maps one struct field to a table column via its `db` tag
type column struct {
	name     string
	readonly bool
	index    []int
}

var columnCache sync.Map // reflect.Type -> []column

// columnsOf lists the mapped columns of a struct type, promoted fields included
func columnsOf(t reflect.Type) []column {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}

	var cols []column
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		cols = append(cols, column{
			name:     name,
			readonly: opts == "readonly",
			index:    f.Index,
		})
	}

	columnCache.Store(t, cols)
	return cols
}

// selectList renders the column list for a SELECT or RETURNING clause
func selectList(v any) string {
	cols := columnsOf(reflect.TypeOf(v))
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

// insertValues returns the populated, writable columns of v and their values.
// Nil pointers and nil slices are omitted so optional fields fall back to
// the column default.
func insertValues(v any) ([]string, []any) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	var names []string
	var values []any

	for _, c := range columnsOf(rv.Type()) {
		if c.readonly {
			continue
		}
		fv := rv.FieldByIndex(c.index)
		switch fv.Kind() {
		case reflect.Pointer:
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		case reflect.Slice:
			if fv.IsNil() {
				continue
			}
		}
		names = append(names, c.name)
		values = append(values, fv.Interface())
	}

	return names, values
}

var timeType = reflect.TypeOf(time.Time{})

// decodeRow copies row values into the mapped fields of dst (a struct pointer).
// Columns missing from the row leave their field untouched.
func decodeRow(row Row, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", dst)
	}
	rv = rv.Elem()

	for _, c := range columnsOf(rv.Type()) {
		raw, ok := row[c.name]
		if !ok {
			continue
		}
		if err := setField(rv.FieldByIndex(c.index), raw); err != nil {
			return fmt.Errorf("column %s: %w", c.name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, raw any) error {
	if fv.Kind() == reflect.Pointer {
		if raw == nil {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		elem := reflect.New(fv.Type().Elem())
		if err := setField(elem.Elem(), raw); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	if fv.Type() == timeType {
		t, err := asTime(raw)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(asString(raw))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt64(raw)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(raw)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := asBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", fv.Type())
		}
		items, err := asStrings(raw)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}
