// Package queue defines message payloads exchanged over the message broker
// and the background consumer that writes them to the audit log.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Queue names.  Routing keys equal queue names on the default exchange.
const (
	ReservationCreatedQueue = "reservation.created"
	NoticeReadQueue         = "notice.read"
)

// ReservationCreatedEvent is published after a pre-reservation is stored.
// It carries enough for the operations team to act without opening the
// reservation table.
type ReservationCreatedEvent struct {
	EventID        string  `json:"event_id"`
	ReservationID  string  `json:"reservation_id"`
	AgencyID       string  `json:"agency_id"`
	AgencyName     string  `json:"agency_name"`
	RequesterEmail string  `json:"requester_email"`
	ProductName    string  `json:"product_name"`
	Destination    string  `json:"destination"`
	Date           string  `json:"date"`
	Adults         int     `json:"adults"`
	Children       int     `json:"children"`
	Infants        int     `json:"infants"`
	TotalAmount    float64 `json:"total_amount"`
	Commission     float64 `json:"commission"`
	CreatedAt      string  `json:"created_at"`
}

// NoticeReadEvent is published after a read confirmation.
type NoticeReadEvent struct {
	EventID       string `json:"event_id"`
	NoticeID      string `json:"notice_id"`
	UserEmail     string `json:"user_email"`
	UserName      string `json:"user_name"`
	AgencyID      string `json:"agency_id"`
	LogAppended   bool   `json:"log_appended"`
	ColumnUpdated bool   `json:"column_updated"`
	ReadAt        string `json:"read_at"`
}

// NewEventID returns a random event id.
func NewEventID() string { return uuid.NewString() }

// Timestamp formats t the way events carry times.
func Timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
