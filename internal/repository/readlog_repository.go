package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Read log columns.
const (
	colLogNotice    = "notice_id"
	colLogEmail     = "user_email"
	colLogName      = "user_name"
	colLogAgency    = "agency_id"
	colLogTimestamp = "timestamp"
)

// ReadLogRepo appends to and queries the read receipt log.  The log is a
// history: it never deduplicates.
type ReadLogRepo struct {
	src   source
	table string
}

// NewReadLogRepo returns a ReadLogRepo over table.
func NewReadLogRepo(reg *recordstore.Registry, baseID, table string) *ReadLogRepo {
	return &ReadLogRepo{src: source{reg: reg, baseID: baseID}, table: table}
}

// Append writes one receipt row.
func (r *ReadLogRepo) Append(ctx context.Context, rc model.ReadReceipt) error {
	base, err := r.src.base()
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = base.Table(r.table).Create(ctx, recordstore.Fields{
		colLogNotice:    rc.NoticeID,
		colLogEmail:     rc.UserEmail,
		colLogName:      rc.UserName,
		colLogAgency:    rc.AgencyID,
		colLogTimestamp: rc.Timestamp.UTC().Format(time.RFC3339),
	})
	observe(r.table, "create", start, err)
	if err != nil {
		return fmt.Errorf("append read receipt: %w", err)
	}
	return nil
}

// ListByNotice returns receipts for a notice, newest first.  An empty
// agencyID returns every agency's receipts.
func (r *ReadLogRepo) ListByNotice(ctx context.Context, noticeID, agencyID string) ([]model.ReadReceipt, error) {
	base, err := r.src.base()
	if err != nil {
		return nil, err
	}
	filter := recordstore.And{recordstore.Eq{Field: colLogNotice, Value: noticeID}}
	if agencyID != "" {
		filter = append(filter, recordstore.Eq{Field: colLogAgency, Value: agencyID})
	}
	start := time.Now()
	recs, err := base.Table(r.table).Select(ctx, recordstore.Query{
		Filter: filter,
		Sort:   recordstore.SortDesc(colLogTimestamp),
	})
	observe(r.table, "select", start, err)
	if err != nil {
		return nil, fmt.Errorf("list read receipts: %w", err)
	}
	out := make([]model.ReadReceipt, 0, len(recs))
	for _, rec := range recs {
		out = append(out, receiptFromRecord(rec))
	}
	// text timestamps with mixed offsets do not sort lexically
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func receiptFromRecord(rec recordstore.Record) model.ReadReceipt {
	f := rec.Fields
	rc := model.ReadReceipt{
		ID:        rec.ID,
		NoticeID:  f.String(colLogNotice),
		UserEmail: f.String(colLogEmail),
		UserName:  f.String(colLogName),
		AgencyID:  f.String(colLogAgency),
	}
	if t, ok := parseTime(f.String(colLogTimestamp)); ok {
		rc.Timestamp = t
	} else {
		rc.Timestamp = rec.CreatedTime
	}
	return rc
}
