// Package store is the harness's direct view of the inventory/billing database.
// It is used to seed fixtures and to verify what the service under test actually persisted.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	TableProducts  = "products"
	TableCustomers = "customers"
	TableBilling   = "billing"
)

// Tables lists every table the harness is allowed to touch, in truncation order.
var Tables = []string{TableProducts, TableCustomers, TableBilling}

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrNoColumn     = errors.New("column index out of range")
)

type Product struct {
	Name     string
	Price    int
	Quantity int
}

type Customer struct {
	Name  string
	Email string
}

// Dialer opens a fresh connection. Every case and every reset step dials its own
// connection and closes it before returning.
type Dialer interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is a single open connection to the store.
type Conn interface {
	// TruncateAll empties every table in Tables, cascading to dependent tables.
	TruncateAll(ctx context.Context) error
	// Records returns every row of table.
	Records(ctx context.Context, table string) ([]Record, error)
	// RecordByID returns the row of table with the given id, or nil when there is none.
	RecordByID(ctx context.Context, table string, id int64) (*Record, error)
	InsertProduct(ctx context.Context, p Product) (int64, error)
	InsertCustomer(ctx context.Context, c Customer) (int64, error)
	Close(ctx context.Context) error
}

// CheckTable returns ErrUnknownTable for anything outside Tables.
func CheckTable(table string) error {
	if !slices.Contains(Tables, table) {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}

// Record is one row read with SELECT *. Columns are addressed by position, the
// same way the schema documents them (e.g. billing: id, cust_id, prod_id, quantity).
type Record struct {
	Columns []string
	Values  []any
}

func (r Record) Len() int {
	return len(r.Values)
}

func (r Record) value(i int) (any, error) {
	if i < 0 || i >= len(r.Values) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoColumn, i, len(r.Values))
	}
	return r.Values[i], nil
}

// String returns column i as a string.
func (r Record) String(i int) (string, error) {
	v, err := r.value(i)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case nil:
		return "", fmt.Errorf("column %d is null", i)
	default:
		return "", fmt.Errorf("column %d is %T, not a string", i, v)
	}
}

// Int64 returns column i as an integer, accepting any integral numeric encoding.
func (r Record) Int64(i int) (int64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	n, ok := ToInt64(v)
	if !ok {
		return 0, fmt.Errorf("column %d (%T) is not an integer", i, v)
	}
	return n, nil
}

// ToInt64 converts the integral values pgx (or a JSON decoder) may hand back.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case pgtype.Numeric:
		i8, err := n.Int64Value()
		if err != nil || !i8.Valid {
			return 0, false
		}
		return i8.Int64, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
