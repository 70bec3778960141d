package mural

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/recordstore"
	"github.com/iliyamo/partner-portal/internal/recordstore/memstore"
	"github.com/iliyamo/partner-portal/internal/repository"
)

const (
	primary = "Mural"
	legacy  = "Avisos"
	logTbl  = "Notice_read_log"
)

type fixture struct {
	base    *memstore.Base
	tracker *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := memstore.New()
	reg := recordstore.NewRegistry(ms.Factory())
	l := logger.NewTestLogger(t)
	b := ms.Base("appMain")
	b.CreateTable(logTbl)
	tr := NewTracker(
		repository.NewNoticeRepo(reg, "appMain", primary, legacy, l),
		repository.NewReadLogRepo(reg, "appMain", logTbl),
		l,
	)
	tr.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{base: b, tracker: tr}
}

func notice(id string, f recordstore.Fields) recordstore.Record {
	return recordstore.Record{ID: id, Fields: f}
}

func TestListNotices_ComputesIsRead(t *testing.T) {
	fx := newFixture(t)
	fx.base.Insert(primary,
		notice("n1", recordstore.Fields{"Título": "A", "Data": "2026-01-02", "Lido por": []any{"Maria Souza"}}),
		notice("n2", recordstore.Fields{"Título": "B", "Data": "2026-01-01", "Lido por": []any{map[string]any{"email": "MARIA@x.com"}}}),
		notice("n3", recordstore.Fields{"Título": "C", "Data": "2026-01-03", "Requer Confirmação": true}),
	)

	got, err := fx.tracker.ListNotices(context.Background(), "maria@x.com", "Maria Souza")
	require.NoError(t, err)
	require.Len(t, got, 3)
	byID := map[string]model.Notice{}
	for _, n := range got {
		byID[n.ID] = n
	}
	assert.True(t, byID["n1"].IsRead)
	assert.True(t, byID["n2"].IsRead)
	assert.False(t, byID["n3"].IsRead)
	assert.Equal(t, "n3", got[0].ID, "sorted by date descending")
	assert.True(t, HasUnread(got))
}

func TestListNotices_LegacyOnlyNeverMerged(t *testing.T) {
	fx := newFixture(t)
	fx.base.Insert(primary, notice("p1", recordstore.Fields{"Título": "Primary"}))
	fx.base.Fail(primary, errors.New("permission denied"))
	fx.base.Insert(legacy,
		notice("l1", recordstore.Fields{"Título": "Legacy 1", "Data": "2026-01-01"}),
		notice("l2", recordstore.Fields{"Título": "Legacy 2", "Data": "2026-01-02"}),
	)

	got, err := fx.tracker.ListNotices(context.Background(), "a@x.com", "A")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "l2", got[0].ID)
	assert.Equal(t, "l1", got[1].ID)
}

func TestListNotices_NoBulletinTable(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.tracker.ListNotices(context.Background(), "a@x.com", "A")
	assert.ErrorIs(t, err, repository.ErrBulletinTableNotFound)
}

func TestConfirmRead_NameMatchLeavesColumnButAppendsLog(t *testing.T) {
	fx := newFixture(t)
	fx.base.Insert(primary, notice("n1", recordstore.Fields{"Lido por": []any{"Maria Souza"}}))

	res, err := fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{
		NoticeID: "n1", UserEmail: "maria@x.com", UserName: "Maria Souza", AgencyID: "ag1",
	})
	require.NoError(t, err)
	assert.Equal(t, ConfirmResult{LogAppended: true, NoticeFound: true, AlreadyListed: true, Table: primary}, res)

	assert.Equal(t, []any{"Maria Souza"}, fx.base.Rows(primary)[0].Fields["Lido por"])
	logRows := fx.base.Rows(logTbl)
	require.Len(t, logRows, 1)
	f := logRows[0].Fields
	assert.Equal(t, "n1", f.String("notice_id"))
	assert.Equal(t, "maria@x.com", f.String("user_email"))
	assert.Equal(t, "Maria Souza", f.String("user_name"))
	assert.Equal(t, "ag1", f.String("agency_id"))
	assert.Equal(t, "2026-04-01T12:00:00Z", f.String("timestamp"))
}

func TestConfirmRead_ContactShapePreserved(t *testing.T) {
	fx := newFixture(t)
	fx.base.Insert(primary, notice("n1", recordstore.Fields{"Lido por": []any{map[string]any{"email": "a@x.com"}}}))

	res, err := fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{NoticeID: "n1", UserEmail: "b@x.com", UserName: "B", AgencyID: "ag1"})
	require.NoError(t, err)
	assert.True(t, res.ColumnUpdated)
	assert.Equal(t, []any{
		map[string]any{"email": "a@x.com"},
		map[string]any{"email": "b@x.com"},
	}, fx.base.Rows(primary)[0].Fields["Lido por"])
}

func TestConfirmRead_RepeatIsIdempotentOnColumn(t *testing.T) {
	fx := newFixture(t)
	fx.base.Insert(primary, notice("n1", recordstore.Fields{}))
	rc := model.ReadReceipt{NoticeID: "n1", UserEmail: "ana@x.com", UserName: "Ana", AgencyID: "ag1"}

	first, err := fx.tracker.ConfirmRead(context.Background(), rc)
	require.NoError(t, err)
	assert.True(t, first.ColumnUpdated)
	second, err := fx.tracker.ConfirmRead(context.Background(), rc)
	require.NoError(t, err)
	assert.False(t, second.ColumnUpdated)
	assert.True(t, second.AlreadyListed)

	assert.Equal(t, []any{"Ana"}, fx.base.Rows(primary)[0].Fields["Lido por"])
	assert.Len(t, fx.base.Rows(logTbl), 2, "log is a history, not a set")
}

func TestConfirmRead_StopsAtFirstTableWithRow(t *testing.T) {
	fx := newFixture(t)
	fx.base.Insert(primary, notice("n1", recordstore.Fields{}))
	fx.base.Insert(legacy, notice("n1", recordstore.Fields{}))

	res, err := fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{NoticeID: "n1", UserEmail: "a@x.com", UserName: "A"})
	require.NoError(t, err)
	assert.Equal(t, primary, res.Table)
	assert.NotNil(t, fx.base.Rows(primary)[0].Fields["Lido por"])
	assert.Nil(t, fx.base.Rows(legacy)[0].Fields["Lido por"])
}

func TestConfirmRead_LegacyRowAndMissingRow(t *testing.T) {
	fx := newFixture(t)
	fx.base.Insert(legacy, notice("old", recordstore.Fields{}))

	res, err := fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{NoticeID: "old", UserEmail: "a@x.com", UserName: "A"})
	require.NoError(t, err)
	assert.Equal(t, legacy, res.Table)
	assert.True(t, res.ColumnUpdated)

	res, err = fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{NoticeID: "ghost", UserEmail: "a@x.com", UserName: "A"})
	require.NoError(t, err)
	assert.False(t, res.NoticeFound)
	assert.True(t, res.LogAppended)
	assert.Len(t, fx.base.Rows(logTbl), 2)
}

func TestConfirmRead_WritesAreIndependent(t *testing.T) {
	fx := newFixture(t)
	fx.base.Insert(primary, notice("n1", recordstore.Fields{}))
	fx.base.Fail(logTbl, errors.New("log offline"))

	res, err := fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{NoticeID: "n1", UserEmail: "a@x.com", UserName: "A"})
	require.NoError(t, err)
	assert.False(t, res.LogAppended)
	assert.True(t, res.ColumnUpdated)

	fx.base.Fail(logTbl, nil)
	fx.base.Insert(primary, notice("n2", recordstore.Fields{}))
	fx.base.Fail(primary, errors.New("read only"))
	res, err = fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{NoticeID: "n2", UserEmail: "a@x.com", UserName: "A"})
	require.NoError(t, err)
	assert.True(t, res.LogAppended)
	assert.False(t, res.ColumnUpdated)
}

func TestConfirmRead_RequiresNoticeAndEmail(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{NoticeID: "n1"})
	assert.ErrorIs(t, err, ErrInvalidReceipt)
	_, err = fx.tracker.ConfirmRead(context.Background(), model.ReadReceipt{UserEmail: "a@x.com"})
	assert.ErrorIs(t, err, ErrInvalidReceipt)
	assert.Empty(t, fx.base.Rows(logTbl))
}

func TestListReaders_Scoping(t *testing.T) {
	fx := newFixture(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, rc := range []model.ReadReceipt{
		{NoticeID: "n1", UserEmail: "a@x.com", AgencyID: "ag1", Timestamp: ts},
		{NoticeID: "n1", UserEmail: "b@x.com", AgencyID: "ag2", Timestamp: ts.Add(time.Minute)},
		{NoticeID: "n1", UserEmail: "c@x.com", AgencyID: "ag1", Timestamp: ts.Add(2 * time.Minute)},
		{NoticeID: "n2", UserEmail: "d@x.com", AgencyID: "ag1", Timestamp: ts},
	} {
		_, err := fx.tracker.ConfirmRead(context.Background(), rc)
		require.NoError(t, err, "confirm %d", i)
	}
	ctx := context.Background()

	scoped := fx.tracker.ListReaders(ctx, "n1", "ag1", false)
	require.Len(t, scoped, 2)
	for _, r := range scoped {
		assert.Equal(t, "ag1", r.AgencyID)
	}
	assert.Equal(t, "c@x.com", scoped[0].UserEmail)

	all := fx.tracker.ListReaders(ctx, "n1", "ag1", true)
	assert.Len(t, all, 3)
	assert.Len(t, fx.tracker.ListReaders(ctx, "n1", "", true), 3)

	assert.Empty(t, fx.tracker.ListReaders(ctx, "n1", "", false))
}

func TestListReaders_LogUnavailable(t *testing.T) {
	fx := newFixture(t)
	fx.base.Fail(logTbl, errors.New("offline"))
	got := fx.tracker.ListReaders(context.Background(), "n1", "ag1", false)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
