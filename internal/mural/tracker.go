// Package mural implements the bulletin board read-receipt protocol: it
// tells a viewer which notices they have read, records confirmations in
// both the read log and the notice's own read-by column, and lists who has
// read a notice within an agency.
package mural

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/metrics"
	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/repository"
)

// ErrInvalidReceipt is returned by ConfirmRead when the notice id or the
// user email is missing.  Nothing is written in that case.
var ErrInvalidReceipt = errors.New("read receipt requires notice id and user email")

// NoticeStore is the bulletin board as seen by the tracker.
type NoticeStore interface {
	List(ctx context.Context) ([]repository.NoticeRecord, error)
	Locate(ctx context.Context, id string) (repository.NoticeRecord, error)
	SetReadBy(ctx context.Context, table, id string, value any) error
}

// ReceiptLog is the append-only read log.
type ReceiptLog interface {
	Append(ctx context.Context, rc model.ReadReceipt) error
	ListByNotice(ctx context.Context, noticeID, agencyID string) ([]model.ReadReceipt, error)
}

// Tracker reconciles read receipts across the log and the notice rows.
type Tracker struct {
	notices NoticeStore
	log     ReceiptLog
	logger  logger.Logger
	now     func() time.Time
}

// NewTracker returns a Tracker.
func NewTracker(notices NoticeStore, log ReceiptLog, l logger.Logger) *Tracker {
	return &Tracker{notices: notices, log: log, logger: l, now: time.Now}
}

// ListNotices returns the bulletin board with IsRead computed for the
// viewer.  It fails only when no bulletin table could be read.
func (t *Tracker) ListNotices(ctx context.Context, viewerEmail, viewerName string) ([]model.Notice, error) {
	rows, err := t.notices.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Notice, 0, len(rows))
	for _, r := range rows {
		n := r.Notice
		n.IsRead = DecodeReadBy(r.ReadBy).Contains(viewerEmail, viewerName)
		out = append(out, n)
	}
	return out, nil
}

// HasUnread reports whether any notice that requires confirmation is still
// unread.
func HasUnread(notices []model.Notice) bool {
	for _, n := range notices {
		if n.RequiresConfirmation && !n.IsRead {
			return true
		}
	}
	return false
}

// ConfirmResult describes what ConfirmRead managed to do.  The two writes
// are independent and either may fail without affecting the other.
type ConfirmResult struct {
	LogAppended   bool   `json:"logAppended"`
	NoticeFound   bool   `json:"noticeFound"`
	AlreadyListed bool   `json:"alreadyListed"`
	ColumnUpdated bool   `json:"columnUpdated"`
	Table         string `json:"table,omitempty"`
}

// ConfirmRead records that the user read the notice.  It appends a log row
// and, concurrently, adds the user to the notice's read-by column unless
// already listed.  Write failures are logged and reported in the result,
// never returned.  Calling it again for the same user leaves the column
// unchanged and appends another log row.
func (t *Tracker) ConfirmRead(ctx context.Context, rc model.ReadReceipt) (ConfirmResult, error) {
	rc.NoticeID = strings.TrimSpace(rc.NoticeID)
	rc.UserEmail = strings.TrimSpace(rc.UserEmail)
	if rc.NoticeID == "" || rc.UserEmail == "" {
		return ConfirmResult{}, ErrInvalidReceipt
	}
	if rc.Timestamp.IsZero() {
		rc.Timestamp = t.now().UTC()
	}
	lg := t.logger.With(map[string]interface{}{
		"notice_id":  rc.NoticeID,
		"user_email": rc.UserEmail,
		"agency_id":  rc.AgencyID,
	})

	var res ConfirmResult
	var col ConfirmResult
	var g errgroup.Group
	g.Go(func() error {
		if err := t.log.Append(ctx, rc); err != nil {
			metrics.ReadConfirmations.WithLabelValues("log", "error").Inc()
			lg.WithError(err).Warn("read log append failed", nil)
			return nil
		}
		metrics.ReadConfirmations.WithLabelValues("log", "ok").Inc()
		res.LogAppended = true
		return nil
	})
	g.Go(func() error {
		col = t.updateColumn(ctx, rc, lg)
		return nil
	})
	_ = g.Wait()

	res.NoticeFound = col.NoticeFound
	res.AlreadyListed = col.AlreadyListed
	res.ColumnUpdated = col.ColumnUpdated
	res.Table = col.Table
	return res, nil
}

func (t *Tracker) updateColumn(ctx context.Context, rc model.ReadReceipt, lg logger.Logger) ConfirmResult {
	var res ConfirmResult
	row, err := t.notices.Locate(ctx, rc.NoticeID)
	if err != nil {
		metrics.ReadConfirmations.WithLabelValues("column", "missing").Inc()
		lg.WithError(err).Info("notice row not found, read-by column left as is", nil)
		return res
	}
	res.NoticeFound = true
	res.Table = row.Table

	current := DecodeReadBy(row.ReadBy)
	next, changed := current.With(rc.UserEmail, rc.UserName)
	if !changed {
		metrics.ReadConfirmations.WithLabelValues("column", "unchanged").Inc()
		res.AlreadyListed = true
		return res
	}
	if err := t.notices.SetReadBy(ctx, row.Table, row.ID, next.Encode()); err != nil {
		metrics.ReadConfirmations.WithLabelValues("column", "error").Inc()
		lg.WithError(err).Warn("read-by column update failed", map[string]interface{}{
			"table": row.Table,
			"shape": current.Shape().String(),
		})
		return res
	}
	metrics.ReadConfirmations.WithLabelValues("column", "ok").Inc()
	res.ColumnUpdated = true
	return res
}

// ListReaders returns who read a notice, newest first.  Admins see every
// agency; everyone else only their own agency, and nothing without one.
// An unreadable log yields an empty list.
func (t *Tracker) ListReaders(ctx context.Context, noticeID, agencyID string, isAdmin bool) []model.ReadReceipt {
	if !isAdmin && agencyID == "" {
		return []model.ReadReceipt{}
	}
	scope := agencyID
	if isAdmin {
		scope = ""
	}
	out, err := t.log.ListByNotice(ctx, noticeID, scope)
	if err != nil {
		t.logger.WithError(err).Warn("read log unavailable", map[string]interface{}{
			"notice_id": noticeID,
			"agency_id": agencyID,
		})
		return []model.ReadReceipt{}
	}
	if !isAdmin {
		// scope again in case the backend ignored the agency filter
		kept := out[:0]
		for _, r := range out {
			if r.AgencyID == agencyID {
				kept = append(kept, r)
			}
		}
		out = kept
	}
	return out
}
