package postgres

import (
	"reflect"
	"sync"
)

// columnIndex maps db tags of a struct type to field indexes, in declaration order.
type columnIndex struct {
	names []string
	index map[string][]int
}

var columnCache sync.Map // reflect.Type -> *columnIndex

func columnsOf(t reflect.Type) *columnIndex {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.(*columnIndex)
	}

	ci := &columnIndex{index: make(map[string][]int)}
	if t.Kind() == reflect.Struct {
		collectColumns(t, nil, ci)
	}
	actual, _ := columnCache.LoadOrStore(t, ci)
	return actual.(*columnIndex)
}

func collectColumns(t reflect.Type, prefix []int, ci *columnIndex) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		path := append(append([]int(nil), prefix...), i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectColumns(field.Type, path, ci)
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		ci.names = append(ci.names, tag)
		ci.index[tag] = path
	}
}

// DBColumns lists the "db" tags of T (embedded structs flattened) in field order.
func DBColumns[T any]() []string {
	var zero T
	ci := columnsOf(reflect.TypeOf(zero))
	return append([]string(nil), ci.names...)
}

// RowValues returns the values of v's fields for cols, in that order.
// Unknown columns yield nil.
func RowValues(v any, cols []string) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	ci := columnsOf(rv.Type())
	out := make([]any, len(cols))
	for i, col := range cols {
		if path, ok := ci.index[col]; ok {
			out[i] = rv.FieldByIndex(path).Interface()
		}
	}
	return out
}
