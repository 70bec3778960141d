package repository

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/partner-portal/internal/metrics"
	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// source resolves a base through the shared registry on every call.  The
// registry connects lazily, so a misconfigured base only fails the requests
// that need it.
type source struct {
	reg    *recordstore.Registry
	baseID string
}

func (s source) base() (recordstore.Base, error) {
	return s.reg.Base(s.baseID)
}

// observe records one store call.  A missing table is its own outcome so
// fallback probes do not read as errors on dashboards.
func observe(table, op string, start time.Time, err error) {
	outcome := metrics.Outcome(err)
	switch {
	case errors.Is(err, recordstore.ErrTableNotFound):
		outcome = "table_not_found"
	case errors.Is(err, recordstore.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	}
	metrics.StoreCalls.WithLabelValues(table, op, outcome).Inc()
	metrics.StoreCallDuration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}

// parseTime accepts the date and date-time layouts the hosted store emits.
func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
