package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/partner-portal/internal/logger"
)

// Consumer drains the event queues into one append-only log file per queue
// under Dir (logs/reservation.created.log, logs/notice.read.log).
type Consumer struct {
	URL    string
	Queues []string
	Dir    string
	Log    logger.Logger
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  Malformed messages are rejected without requeue so a bad
// payload cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).Warn("event consumer: dial failed", map[string]interface{}{"retry_in": backoff.String()})
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.WithError(err).Warn("event consumer: loop ended, reconnecting", nil)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("event consumer: set QoS failed", nil)
	}

	// stops the forwarders when this loop returns
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type delivery struct {
		queue string
		d     amqp.Delivery
	}
	merged := make(chan delivery)
	closed := make(chan string, len(c.Queues))
	for _, q := range c.Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		go func(q string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case merged <- delivery{queue: q, d: d}:
				case <-ctx.Done():
					return
				}
			}
			closed <- q
		}(q, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q := <-closed:
			return fmt.Errorf("deliveries channel for %s closed", q)
		case m := <-merged:
			if err := HandleMessage(c.Dir, m.queue, m.d.Body); err != nil {
				c.Log.WithError(err).Warn("event consumer: handle message failed", map[string]interface{}{"queue": m.queue})
				_ = m.d.Nack(false, false)
				continue
			}
			_ = m.d.Ack(false)
		}
	}
}

// HandleMessage validates body against the queue's event type and appends
// one line to dir/<queue>.log.
func HandleMessage(dir, queue string, body []byte) error {
	line, err := formatLine(queue, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, queue+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(queue string, body []byte) (string, error) {
	switch queue {
	case ReservationCreatedQueue:
		var ev ReservationCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		if ev.ReservationID == "" {
			return "", errors.New("reservation event without reservation_id")
		}
		return fmt.Sprintf("[%s] Pre-reservation created | reservation_id=%s | agency=%q | by=%s | product=%q | destination=%q | date=%s | pax=%d/%d/%d | total=%.2f | commission=%.2f\n",
			ev.CreatedAt, ev.ReservationID, ev.AgencyName, ev.RequesterEmail, ev.ProductName, ev.Destination,
			ev.Date, ev.Adults, ev.Children, ev.Infants, ev.TotalAmount, ev.Commission), nil
	case NoticeReadQueue:
		var ev NoticeReadEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		if ev.NoticeID == "" {
			return "", errors.New("notice event without notice_id")
		}
		return fmt.Sprintf("[%s] Notice read | notice_id=%s | user=%s | name=%q | agency_id=%s | log=%t | column=%t\n",
			ev.ReadAt, ev.NoticeID, ev.UserEmail, ev.UserName, ev.AgencyID, ev.LogAppended, ev.ColumnUpdated), nil
	}
	return "", fmt.Errorf("unknown queue %q", queue)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
