package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessage_AppendsPerQueueLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	res, err := json.Marshal(ReservationCreatedEvent{
		EventID: NewEventID(), ReservationID: "rec1", AgencyName: "Sol", RequesterEmail: "a@x.com",
		ProductName: "Buggy", Destination: "Natal", Date: "2026-05-10", Adults: 2, Children: 1,
		TotalAmount: 275, Commission: 27.5, CreatedAt: "2026-04-01T12:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, HandleMessage(dir, ReservationCreatedQueue, res))
	require.NoError(t, HandleMessage(dir, ReservationCreatedQueue, res))

	raw, err := os.ReadFile(filepath.Join(dir, "reservation.created.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `[2026-04-01T12:00:00Z] Pre-reservation created | reservation_id=rec1 | agency="Sol" | by=a@x.com | product="Buggy" | destination="Natal" | date=2026-05-10 | pax=2/1/0 | total=275.00 | commission=27.50`, lines[0])

	read, err := json.Marshal(NoticeReadEvent{NoticeID: "n1", UserEmail: "a@x.com", UserName: "Ana", AgencyID: "ag1", LogAppended: true, ReadAt: "2026-04-01T12:00:00Z"})
	require.NoError(t, err)
	require.NoError(t, HandleMessage(dir, NoticeReadQueue, read))
	raw, err = os.ReadFile(filepath.Join(dir, "notice.read.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "notice_id=n1 | user=a@x.com | name=\"Ana\" | agency_id=ag1 | log=true | column=false")
}

func TestHandleMessage_Rejects(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorContains(t, HandleMessage(dir, ReservationCreatedQueue, []byte("{")), "unmarshal")
	assert.Error(t, HandleMessage(dir, ReservationCreatedQueue, []byte(`{}`)))
	assert.Error(t, HandleMessage(dir, NoticeReadQueue, []byte(`{"user_email":"a@x.com"}`)))
	assert.ErrorContains(t, HandleMessage(dir, "other", []byte(`{}`)), "unknown queue")

	_, err := os.Stat(filepath.Join(dir, "reservation.created.log"))
	assert.True(t, os.IsNotExist(err))
}
