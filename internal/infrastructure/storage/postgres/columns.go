package postgres

import (
	"errors"
	"reflect"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Builder is squirrel with $n placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// dbField is one "db"-tagged field, flattened across embedded structs.
type dbField struct {
	column string
	index  []int
}

func dbFields(t reflect.Type) []dbField {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var fields []dbField
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		col := f.Tag.Get("db")
		if col == "" || col == "-" {
			continue
		}
		fields = append(fields, dbField{column: col, index: f.Index})
	}
	return fields
}

// ExtractDBColumns lists the "db" tags of T in declaration order, embedded
// structs included. Untagged fields and "-" are skipped.
func ExtractDBColumns[T any]() []string {
	fields := dbFields(reflect.TypeFor[T]())
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

// StructToMap maps "db" tags to field values for squirrel SetMap.
// Fields behind a nil embedded pointer are left out.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fields := dbFields(rv.Type())
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		fv, err := rv.FieldByIndexErr(f.index)
		if err != nil {
			continue
		}
		out[f.column] = fv.Interface()
	}
	return out
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
