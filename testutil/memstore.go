// Package testutil provides in-memory stand-ins for the inventory/billing service
// and its database so the harness can be exercised end to end without either.
package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
)

var ErrUnavailable = errors.New("store unavailable")

var columns = map[string][]string{
	store.TableProducts:  {"id", "name", "price", "quantity"},
	store.TableCustomers: {"id", "name", "email"},
	store.TableBilling:   {"id", "cust_id", "prod_id", "quantity"},
}

// MemStore is a goroutine-safe, in-memory implementation of store.Dialer and
// store.Conn. Rows keep insertion order; ids are assigned per table from 1.
type MemStore struct {
	mu     sync.Mutex
	rows   map[string][][]any
	nextID map[string]int64
	down   bool
	dials  int
	open   int
	truncs int
}

var (
	_ store.Dialer = (*MemStore)(nil)
	_ store.Conn   = (*memConn)(nil)
)

func NewMemStore() *MemStore {
	m := &MemStore{}
	m.reset()
	return m
}

func (m *MemStore) reset() {
	m.rows = make(map[string][][]any, len(store.Tables))
	m.nextID = make(map[string]int64, len(store.Tables))
	for _, t := range store.Tables {
		m.nextID[t] = 1
	}
}

// SetDown makes every subsequent Connect fail.
func (m *MemStore) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// Dials returns how many connections were requested.
func (m *MemStore) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials
}

// OpenConns returns how many connections are currently not closed.
func (m *MemStore) OpenConns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Truncations returns how many times TruncateAll ran.
func (m *MemStore) Truncations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.truncs
}

// Count returns the number of rows in table.
func (m *MemStore) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[table])
}

func (m *MemStore) Connect(ctx context.Context) (store.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dials++
	if m.down {
		return nil, ErrUnavailable
	}
	m.open++
	return &memConn{m: m}, nil
}

// Insert appends a row to table and returns its id. values exclude the id column.
func (m *MemStore) Insert(table string, values ...any) (int64, error) {
	if err := store.CheckTable(table); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID[table]
	m.nextID[table]++
	m.rows[table] = append(m.rows[table], append([]any{id}, values...))
	return id, nil
}

// Update applies fn to the row of table with the given id. It reports whether the row exists.
func (m *MemStore) Update(table string, id int64, fn func(row []any)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows[table] {
		if row[0] == id {
			fn(row)
			return true
		}
	}
	return false
}

// Delete removes the row of table with the given id. It reports whether the row existed.
func (m *MemStore) Delete(table string, id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows[table]
	for i, row := range rows {
		if row[0] == id {
			m.rows[table] = slices.Delete(rows, i, i+1)
			return true
		}
	}
	return false
}

// Find returns copies of the rows of table that satisfy match.
func (m *MemStore) Find(table string, match func(row []any) bool) []store.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Record
	for _, row := range m.rows[table] {
		if match == nil || match(row) {
			out = append(out, store.Record{Columns: columns[table], Values: slices.Clone(row)})
		}
	}
	return out
}

type memConn struct {
	m      *MemStore
	closed bool
}

var errClosed = errors.New("connection closed")

func (c *memConn) TruncateAll(ctx context.Context) error {
	if c.closed {
		return errClosed
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.reset()
	c.m.truncs++
	return nil
}

func (c *memConn) Records(ctx context.Context, table string) ([]store.Record, error) {
	if c.closed {
		return nil, errClosed
	}
	if err := store.CheckTable(table); err != nil {
		return nil, err
	}
	return c.m.Find(table, nil), nil
}

func (c *memConn) RecordByID(ctx context.Context, table string, id int64) (*store.Record, error) {
	if c.closed {
		return nil, errClosed
	}
	if err := store.CheckTable(table); err != nil {
		return nil, err
	}
	recs := c.m.Find(table, func(row []any) bool { return row[0] == id })
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (c *memConn) InsertProduct(ctx context.Context, p store.Product) (int64, error) {
	if c.closed {
		return 0, errClosed
	}
	return c.m.Insert(store.TableProducts, p.Name, int64(p.Price), int64(p.Quantity))
}

func (c *memConn) InsertCustomer(ctx context.Context, cu store.Customer) (int64, error) {
	if c.closed {
		return 0, errClosed
	}
	return c.m.Insert(store.TableCustomers, cu.Name, cu.Email)
}

func (c *memConn) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.open--
	return nil
}
