package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/metrics"
	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Bulletin table columns.
const (
	colNoticeTitle    = "Título"
	colNoticeTitleAlt = "Title"
	colNoticeCategory = "Categoria"
	colNoticeContent  = "Conteúdo"
	colNoticeDetails  = "Detalhes"
	colNoticeDate     = "Data"
	colNoticeNew      = "Novo"
	colNoticeFiles    = "Anexos"
	colNoticeConfirm  = "Requer Confirmação"
	// ColReadBy is the denormalized read-by column.
	ColReadBy = "Lido por"
)

// NoticeRecord is a notice together with the table it was read from and
// the raw read-by column, which callers decode themselves.
type NoticeRecord struct {
	model.Notice
	Table  string
	ReadBy any
}

// NoticeRepo reads the bulletin board, which lives under a current and a
// legacy table name.
type NoticeRepo struct {
	src     source
	primary string
	legacy  string
	log     logger.Logger
}

// NewNoticeRepo returns a NoticeRepo over the current and legacy tables.
func NewNoticeRepo(reg *recordstore.Registry, baseID, primary, legacy string, log logger.Logger) *NoticeRepo {
	return &NoticeRepo{src: source{reg: reg, baseID: baseID}, primary: primary, legacy: legacy, log: log}
}

// BaseID is the base holding the bulletin tables.
func (r *NoticeRepo) BaseID() string { return r.src.baseID }

// List probes [current sorted, legacy sorted, legacy unsorted] and returns
// the rows of the first that succeeds.  Rows are never merged across
// tables.  When all three fail the error wraps ErrBulletinTableNotFound.
func (r *NoticeRepo) List(ctx context.Context) ([]NoticeRecord, error) {
	base, err := r.src.base()
	if err != nil {
		return nil, err
	}
	sorted := recordstore.Query{Sort: recordstore.SortDesc(colNoticeDate)}
	candidates := []recordstore.Candidate{
		{Table: r.primary, Query: sorted},
		{Table: r.legacy, Query: sorted},
		{Table: r.legacy},
	}
	start := time.Now()
	recs, idx, err := recordstore.SelectFirst(ctx, base, candidates...)
	observe("mural", "select", start, err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrBulletinTableNotFound, err)
	}
	table := candidates[idx].Table
	if idx > 0 {
		metrics.TableFallbacks.WithLabelValues("mural", fmt.Sprintf("%s#%d", table, idx)).Inc()
		r.log.Warn("mural served from fallback candidate", map[string]interface{}{
			"table":     table,
			"candidate": idx,
		})
	}
	out := make([]NoticeRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, noticeFromRecord(table, rec))
	}
	return out, nil
}

// Locate finds a notice by id, trying the current table before the legacy
// one and stopping at the first hit.  It returns ErrNoticeNotFound when
// neither table holds the row.
func (r *NoticeRepo) Locate(ctx context.Context, id string) (NoticeRecord, error) {
	base, err := r.src.base()
	if err != nil {
		return NoticeRecord{}, err
	}
	var attempts []error
	for _, table := range []string{r.primary, r.legacy} {
		start := time.Now()
		rec, err := base.Table(table).Find(ctx, id)
		observe(table, "find", start, err)
		if err == nil {
			return noticeFromRecord(table, rec), nil
		}
		if ctx.Err() != nil {
			return NoticeRecord{}, ctx.Err()
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", table, err))
	}
	return NoticeRecord{}, fmt.Errorf("%w: %s: %w", ErrNoticeNotFound, id, errors.Join(attempts...))
}

// SetReadBy overwrites the read-by column of one notice.
func (r *NoticeRepo) SetReadBy(ctx context.Context, table, id string, value any) error {
	base, err := r.src.base()
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = base.Table(table).Update(ctx, id, recordstore.Fields{ColReadBy: value})
	observe(table, "update", start, err)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	return nil
}

func noticeFromRecord(table string, rec recordstore.Record) NoticeRecord {
	f := rec.Fields
	n := model.Notice{
		ID:                   rec.ID,
		Title:                f.FirstString(colNoticeTitle, colNoticeTitleAlt),
		Category:             f.String(colNoticeCategory),
		Content:              f.FirstString(colNoticeContent, colNoticeDetails),
		IsNew:                f.Bool(colNoticeNew),
		RequiresConfirmation: f.Bool(colNoticeConfirm),
	}
	if t, ok := parseTime(f.String(colNoticeDate)); ok {
		n.PublishedAt = &t
	}
	for _, a := range f.Attachments(colNoticeFiles) {
		n.Attachments = append(n.Attachments, model.Attachment{URL: a.URL, Filename: a.Filename})
	}
	return NoticeRecord{Notice: n, Table: table, ReadBy: f[ColReadBy]}
}
