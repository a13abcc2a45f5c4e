package store

import (
	"fmt"
	"reflect"
	"strconv"

	"gorm.io/gorm/schema"
)

// Policy logic is table-driven by column name while records stay typed
// structs, so the store resolves columns to struct fields through
// reflection using GORM's own naming strategy.
var naming = schema.NamingStrategy{}

type fieldRef struct {
	column string
	value  reflect.Value // addressable field, possibly a pointer type
}

func (f fieldRef) get() string {
	v := f.value
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return v.String()
}

func (f fieldRef) set(s string) {
	v := f.value
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	v.SetString(s)
}

// stringFields returns a ref for every exported string-kinded field of a
// record. The embedded base record carries only store bookkeeping and is
// skipped; so are nil optional fields.
func stringFields(rv reflect.Value) []fieldRef {
	t := rv.Type()
	out := make([]fieldRef, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" || sf.Anonymous {
			continue
		}
		fv := rv.Field(i)
		switch fv.Kind() {
		case reflect.String:
		case reflect.Pointer:
			if fv.Type().Elem().Kind() != reflect.String || fv.IsNil() {
				continue
			}
		default:
			continue
		}
		out = append(out, fieldRef{column: naming.ColumnName("", sf.Name), value: fv})
	}
	return out
}

// columnString resolves one column of a record to its normalized string
// form. Reports false when no field maps to the column or the field is a
// nil optional.
func columnString(rv reflect.Value, column string) (string, bool) {
	fv, ok := columnField(rv, column)
	if !ok {
		return "", false
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(fv.Bool()), true
	default:
		return fmt.Sprint(fv.Interface()), true
	}
}

func setColumnString(rv reflect.Value, column, value string) bool {
	fv, ok := columnField(rv, column)
	if !ok || fv.Kind() != reflect.String {
		return false
	}
	fv.SetString(value)
	return true
}

func columnField(rv reflect.Value, column string) (reflect.Value, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" || sf.Anonymous {
			continue
		}
		if naming.ColumnName("", sf.Name) != column {
			continue
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				return reflect.Value{}, false
			}
			fv = fv.Elem()
		}
		return fv, true
	}
	return reflect.Value{}, false
}
