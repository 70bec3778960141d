// Package memstore is an in-process record store.  It backs local runs
// (RECORD_STORE_DRIVER=memory, optionally seeded from a JSON fixture) and
// the package tests of the repositories, tracker and handlers.  Tables can
// declare a schema; queries that reference undeclared fields then fail with
// recordstore.ErrUnknownField just as the hosted store does.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Store holds any number of bases.
type Store struct {
	mu    sync.RWMutex
	bases map[string]*Base
	now   func() time.Time
}

// Base is a named group of tables.
type Base struct {
	store  *Store
	id     string
	tables map[string]*table
}

type table struct {
	name    string
	schema  map[string]bool // nil means schemaless
	records []recordstore.Record
	fail    error
}

// New returns an empty store.
func New() *Store {
	return &Store{bases: make(map[string]*Base), now: time.Now}
}

// Factory adapts the store to recordstore.Factory.  Unknown base ids get an
// empty base.
func (s *Store) Factory() recordstore.Factory {
	return func(baseID string) (recordstore.Base, error) { return s.Base(baseID), nil }
}

// Base returns (creating if needed) the base with id.
func (s *Store) Base(id string) *Base {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bases[id]
	if !ok {
		b = &Base{store: s, id: id, tables: make(map[string]*table)}
		s.bases[id] = b
	}
	return b
}

// CreateTable declares a table.  When fields is non-empty the table rejects
// queries that filter or sort on other fields.
func (b *Base) CreateTable(name string, fields ...string) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	t := &table{name: name}
	if len(fields) > 0 {
		t.schema = make(map[string]bool, len(fields))
		for _, f := range fields {
			t.schema[f] = true
		}
	}
	b.tables[name] = t
}

// Insert adds records with fixed ids, bypassing Create.  The table is created
// schemaless when missing.
func (b *Base) Insert(name string, recs ...recordstore.Record) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	t, ok := b.tables[name]
	if !ok {
		t = &table{name: name}
		b.tables[name] = t
	}
	for _, r := range recs {
		if r.ID == "" {
			r.ID = newID()
		}
		if r.CreatedTime.IsZero() {
			r.CreatedTime = b.store.now().UTC()
		}
		r.Fields = cloneFields(r.Fields)
		t.records = append(t.records, r)
	}
}

// Fail makes every operation on the table return err until cleared with nil.
func (b *Base) Fail(name string, err error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if t, ok := b.tables[name]; ok {
		t.fail = err
	}
}

// Rows returns a copy of the table's records, for assertions.
func (b *Base) Rows(name string) []recordstore.Record {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	t, ok := b.tables[name]
	if !ok {
		return nil
	}
	out := make([]recordstore.Record, len(t.records))
	for i, r := range t.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// Table implements recordstore.Base.
func (b *Base) Table(name string) recordstore.Table { return &tableRef{base: b, name: name} }

type tableRef struct {
	base *Base
	name string
}

func (r *tableRef) lookup() (*table, error) {
	t, ok := r.base.tables[r.name]
	if !ok {
		return nil, fmt.Errorf("memstore %s/%s: %w", r.base.id, r.name, recordstore.ErrTableNotFound)
	}
	if t.fail != nil {
		return nil, t.fail
	}
	return t, nil
}

func (r *tableRef) Select(ctx context.Context, q recordstore.Query) ([]recordstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.base.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := r.lookup()
	if err != nil {
		return nil, err
	}
	if t.schema != nil {
		for _, f := range recordstore.FilterFields(q.Filter) {
			if !t.schema[f] {
				return nil, fmt.Errorf("memstore %s: filter on %q: %w", r.name, f, recordstore.ErrUnknownField)
			}
		}
		for _, srt := range q.Sort {
			if !t.schema[srt.Field] {
				return nil, fmt.Errorf("memstore %s: sort on %q: %w", r.name, srt.Field, recordstore.ErrUnknownField)
			}
		}
	}
	out := make([]recordstore.Record, 0, len(t.records))
	for _, rec := range t.records {
		if q.Filter == nil || q.Filter.Match(rec.Fields) {
			out = append(out, cloneRecord(rec))
		}
	}
	if len(q.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, srt := range q.Sort {
				c := compare(out[i].Fields[srt.Field], out[j].Fields[srt.Field])
				if c == 0 {
					continue
				}
				if srt.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.MaxRecords > 0 && len(out) > q.MaxRecords {
		out = out[:q.MaxRecords]
	}
	return out, nil
}

func (r *tableRef) Find(ctx context.Context, id string) (recordstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return recordstore.Record{}, err
	}
	s := r.base.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := r.lookup()
	if err != nil {
		return recordstore.Record{}, err
	}
	for _, rec := range t.records {
		if rec.ID == id {
			return cloneRecord(rec), nil
		}
	}
	return recordstore.Record{}, fmt.Errorf("memstore %s/%s: %w", r.name, id, recordstore.ErrNotFound)
}

func (r *tableRef) Create(ctx context.Context, rows ...recordstore.Fields) ([]recordstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.base.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := r.lookup()
	if err != nil {
		return nil, err
	}
	out := make([]recordstore.Record, 0, len(rows))
	for _, f := range rows {
		rec := recordstore.Record{ID: newID(), CreatedTime: s.now().UTC(), Fields: cloneFields(f)}
		t.records = append(t.records, rec)
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (r *tableRef) Update(ctx context.Context, id string, fields recordstore.Fields) (recordstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return recordstore.Record{}, err
	}
	s := r.base.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := r.lookup()
	if err != nil {
		return recordstore.Record{}, err
	}
	for i := range t.records {
		if t.records[i].ID != id {
			continue
		}
		if t.records[i].Fields == nil {
			t.records[i].Fields = recordstore.Fields{}
		}
		for k, v := range cloneFields(fields) {
			t.records[i].Fields[k] = v
		}
		return cloneRecord(t.records[i]), nil
	}
	return recordstore.Record{}, fmt.Errorf("memstore %s/%s: %w", r.name, id, recordstore.ErrNotFound)
}

// fixture is the on-disk seed format:
//
//	{"<baseID>": {"<table>": {"fields": [...], "records": [{"id": "...", "fields": {...}}]}}}
type fixture map[string]map[string]struct {
	Fields  []string             `json:"fields"`
	Records []recordstore.Record `json:"records"`
}

// LoadFile seeds the store from a JSON fixture file.
func (s *Store) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("decode fixture %s: %w", path, err)
	}
	for baseID, tables := range fx {
		b := s.Base(baseID)
		for name, t := range tables {
			b.CreateTable(name, t.Fields...)
			b.Insert(name, t.Records...)
		}
	}
	return nil
}

func newID() string {
	return "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func compare(a, b any) int {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as := recordstore.Fields{"v": a}.String("v")
	bs := recordstore.Fields{"v": b}.String("v")
	return strings.Compare(as, bs)
}

func cloneRecord(r recordstore.Record) recordstore.Record {
	r.Fields = cloneFields(r.Fields)
	return r
}

func cloneFields(f recordstore.Fields) recordstore.Fields {
	if f == nil {
		return recordstore.Fields{}
	}
	out := make(recordstore.Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case int:
		return float64(t)
	}
	return v
}
