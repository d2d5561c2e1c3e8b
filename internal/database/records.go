package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Row is one result row keyed by column name. Values are the plain driver
// types: int64, float64, string, []byte, time.Time or nil.
type Row = map[string]any

// StoreError wraps any failure of the underlying record store. Callers must
// not assume partial success when they receive one.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Query runs a parameterized statement and returns its rows. Statements with
// a RETURNING clause go through here as well. There are no retries.
func (d *Database) Query(ctx context.Context, statement string, params ...any) ([]Row, error) {
	rows, err := d.DB.WithContext(ctx).Raw(statement, params...).Rows()
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}

		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = plain(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	return result, nil
}

// plain dereferences pointers and unwraps driver.Valuer types such as
// sql.NullString, so untyped expression columns read like declared ones.
func plain(v any) any {
	for {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() {
			return nil
		}
		if rv.Kind() != reflect.Pointer {
			break
		}
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
	if _, isTime := v.(time.Time); !isTime {
		if valuer, ok := v.(driver.Valuer); ok {
			value, err := valuer.Value()
			if err != nil {
				return nil
			}
			return plain(value)
		}
	}
	return v
}

// Exec runs a statement that returns no rows and reports the affected count.
func (d *Database) Exec(ctx context.Context, statement string, params ...any) (int64, error) {
	res := d.DB.WithContext(ctx).Exec(statement, params...)
	if res.Error != nil {
		return 0, &StoreError{Op: "exec", Err: res.Error}
	}
	return res.RowsAffected, nil
}

// IsUniqueViolation reports whether err was caused by a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// String reads a text column; missing or NULL yields "".
func String(row Row, key string) string {
	switch v := plain(row[key]).(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bytes reads a BLOB column; missing, NULL or empty yields nil.
func Bytes(row Row, key string) []byte {
	switch v := plain(row[key]).(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return v
	case string:
		if v == "" {
			return nil
		}
		return []byte(v)
	default:
		return nil
	}
}

// Int64 reads an integer column.
func Int64(row Row, key string) (int64, bool) {
	switch v := plain(row[key]).(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time reads a DATETIME column. The sqlite driver hands back time.Time for
// declared datetime columns, but expressions in a UNION arrive as text.
func Time(row Row, key string) time.Time {
	switch v := plain(row[key]).(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
