// Package mysqlstore serves the recordstore contract from MySQL.  Every
// record lives in one JSON column so that tables keep the schemaless shape
// of the hosted store.  Expected schema:
//
//	CREATE TABLE record_tables (
//	    base_id VARCHAR(64)  NOT NULL,
//	    name    VARCHAR(255) NOT NULL,
//	    PRIMARY KEY (base_id, name)
//	);
//	CREATE TABLE records (
//	    id         VARCHAR(32)  NOT NULL PRIMARY KEY,
//	    base_id    VARCHAR(64)  NOT NULL,
//	    table_name VARCHAR(255) NOT NULL,
//	    fields     JSON         NOT NULL,
//	    created_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
//	    KEY idx_records_table (base_id, table_name)
//	);
package mysqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Store is one base backed by a shared *sql.DB.
type Store struct {
	db     *sql.DB
	baseID string
	now    func() time.Time
}

// New returns the base baseID.
func New(db *sql.DB, baseID string) *Store {
	return &Store{db: db, baseID: baseID, now: time.Now}
}

// Factory returns a recordstore.Factory sharing db across all bases.
func Factory(db *sql.DB) recordstore.Factory {
	return func(baseID string) (recordstore.Base, error) {
		if db == nil {
			return nil, errors.New("mysqlstore: nil database")
		}
		return New(db, baseID), nil
	}
}

// Table implements recordstore.Base.
func (s *Store) Table(name string) recordstore.Table { return &table{s: s, name: name} }

type table struct {
	s    *Store
	name string
}

func (t *table) ensure(ctx context.Context) error {
	const q = `SELECT COUNT(*) FROM record_tables WHERE base_id = ? AND name = ?`
	var n int
	if err := t.s.db.QueryRowContext(ctx, q, t.s.baseID, t.name).Scan(&n); err != nil {
		return fmt.Errorf("mysqlstore %s: %w", t.name, err)
	}
	if n == 0 {
		return fmt.Errorf("mysqlstore %s: %w", t.name, recordstore.ErrTableNotFound)
	}
	return nil
}

func (t *table) Select(ctx context.Context, q recordstore.Query) ([]recordstore.Record, error) {
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}
	where, args := whereClause(q.Filter)
	var b strings.Builder
	b.WriteString(`SELECT id, fields, created_at FROM records WHERE base_id = ? AND table_name = ?`)
	allArgs := []any{t.s.baseID, t.name}
	if where != "" {
		b.WriteString(" AND ")
		b.WriteString(where)
		allArgs = append(allArgs, args...)
	}
	b.WriteString(" ORDER BY ")
	for _, srt := range q.Sort {
		b.WriteString("JSON_EXTRACT(fields, ?)")
		if srt.Desc {
			b.WriteString(" DESC")
		}
		b.WriteString(", ")
		allArgs = append(allArgs, jsonPath(srt.Field))
	}
	b.WriteString("created_at, id")
	if q.MaxRecords > 0 {
		b.WriteString(" LIMIT ?")
		allArgs = append(allArgs, q.MaxRecords)
	}

	rows, err := t.s.db.QueryContext(ctx, b.String(), allArgs...)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore select %s: %w", t.name, err)
	}
	defer rows.Close()
	var out []recordstore.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("mysqlstore select %s: %w", t.name, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *table) Find(ctx context.Context, id string) (recordstore.Record, error) {
	if err := t.ensure(ctx); err != nil {
		return recordstore.Record{}, err
	}
	const q = `SELECT id, fields, created_at FROM records WHERE base_id = ? AND table_name = ? AND id = ?`
	rec, err := scanRecord(t.s.db.QueryRowContext(ctx, q, t.s.baseID, t.name, id))
	if errors.Is(err, sql.ErrNoRows) {
		return recordstore.Record{}, fmt.Errorf("mysqlstore %s/%s: %w", t.name, id, recordstore.ErrNotFound)
	}
	if err != nil {
		return recordstore.Record{}, fmt.Errorf("mysqlstore find %s/%s: %w", t.name, id, err)
	}
	return rec, nil
}

// Create inserts all rows inside one transaction.
func (t *table) Create(ctx context.Context, rows ...recordstore.Fields) ([]recordstore.Record, error) {
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}
	tx, err := t.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore create %s: begin: %w", t.name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const ins = `INSERT INTO records (id, base_id, table_name, fields, created_at) VALUES (?, ?, ?, ?, ?)`
	out := make([]recordstore.Record, 0, len(rows))
	for _, f := range rows {
		if f == nil {
			f = recordstore.Fields{}
		}
		raw, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("mysqlstore create %s: encode: %w", t.name, err)
		}
		rec := recordstore.Record{ID: newID(), CreatedTime: t.s.now().UTC().Truncate(time.Millisecond)}
		if _, err := tx.ExecContext(ctx, ins, rec.ID, t.s.baseID, t.name, raw, rec.CreatedTime); err != nil {
			return nil, fmt.Errorf("mysqlstore create %s: %w", t.name, err)
		}
		// reread through JSON so values have the same shapes as selected rows
		if err := json.Unmarshal(raw, &rec.Fields); err != nil {
			return nil, fmt.Errorf("mysqlstore create %s: decode: %w", t.name, err)
		}
		out = append(out, rec)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mysqlstore create %s: commit: %w", t.name, err)
	}
	committed = true
	return out, nil
}

// Update merges fields with JSON_MERGE_PATCH; arrays are replaced whole.
func (t *table) Update(ctx context.Context, id string, fields recordstore.Fields) (recordstore.Record, error) {
	if err := t.ensure(ctx); err != nil {
		return recordstore.Record{}, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return recordstore.Record{}, fmt.Errorf("mysqlstore update %s: encode: %w", t.name, err)
	}
	const upd = `UPDATE records SET fields = JSON_MERGE_PATCH(fields, ?) WHERE base_id = ? AND table_name = ? AND id = ?`
	if _, err := t.s.db.ExecContext(ctx, upd, raw, t.s.baseID, t.name, id); err != nil {
		return recordstore.Record{}, fmt.Errorf("mysqlstore update %s/%s: %w", t.name, id, err)
	}
	// RowsAffected is 0 for a no-op merge, so existence is checked by reading back.
	return t.Find(ctx, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (recordstore.Record, error) {
	var (
		rec recordstore.Record
		raw []byte
	)
	if err := sc.Scan(&rec.ID, &raw, &rec.CreatedTime); err != nil {
		return recordstore.Record{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.Fields); err != nil {
			return recordstore.Record{}, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
		}
	}
	if rec.Fields == nil {
		rec.Fields = recordstore.Fields{}
	}
	return rec, nil
}

// whereClause renders a filter to SQL over the JSON column.
func whereClause(f recordstore.Filter) (string, []any) {
	switch t := f.(type) {
	case recordstore.Eq:
		return "JSON_UNQUOTE(JSON_EXTRACT(fields, ?)) = ?", []any{jsonPath(t.Field), sqlValue(t.Value)}
	case recordstore.EqFold:
		return "LOWER(JSON_UNQUOTE(JSON_EXTRACT(fields, ?))) = LOWER(?)", []any{jsonPath(t.Field), t.Value}
	case recordstore.And:
		var (
			parts []string
			args  []any
		)
		for _, c := range t {
			s, a := whereClause(c)
			if s == "" {
				continue
			}
			parts = append(parts, s)
			args = append(args, a...)
		}
		if len(parts) == 0 {
			return "", nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", args
	}
	return "", nil
}

func sqlValue(v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return t
	}
	return fmt.Sprint(v)
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func jsonPath(field string) string { return `$."` + pathEscaper.Replace(field) + `"` }

func newID() string {
	return "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
