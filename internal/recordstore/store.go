// Package recordstore describes the tabular record store the portal reads
// from and writes to.  A Base groups named tables; every table exposes the
// same four operations regardless of which backend serves it (the hosted
// tabular API, MySQL JSON rows, or the in-process store used for tests and
// local runs).
package recordstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Find and Update when the record id does not
	// exist in the table.
	ErrNotFound = errors.New("record not found")
	// ErrTableNotFound is returned when the table name (or id) is unknown to
	// the base.
	ErrTableNotFound = errors.New("table not found")
	// ErrUnknownField is returned when a query filters or sorts on a field
	// the table does not define.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnauthorized is returned when the store rejects the credentials.
	ErrUnauthorized = errors.New("record store unauthorized")
)

// Record is one row of a table.
type Record struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"createdTime"`
	Fields      Fields    `json:"fields"`
}

// Table is a named table inside a Base.
type Table interface {
	// Select returns every record matching q, following pagination.
	Select(ctx context.Context, q Query) ([]Record, error)
	// Find returns a single record by id.
	Find(ctx context.Context, id string) (Record, error)
	// Create inserts one record per fields value and returns them in order.
	Create(ctx context.Context, rows ...Fields) ([]Record, error)
	// Update merges fields into the record and returns the updated record.
	Update(ctx context.Context, id string, fields Fields) (Record, error)
}

// Base is a group of tables sharing one connection/credential scope.
type Base interface {
	Table(name string) Table
}
