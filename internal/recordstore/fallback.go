package recordstore

import (
	"context"
	"errors"
	"fmt"
)

// Candidate is one (table, query) attempt of a fallback chain.
type Candidate struct {
	Table string
	Query Query
}

// FallbackError is returned by SelectFirst when every candidate failed.  It
// keeps the per-candidate causes in order.
type FallbackError struct {
	Attempts []error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("all %d table candidates failed: %v", len(e.Attempts), errors.Join(e.Attempts...))
}

// Unwrap exposes the individual causes to errors.Is / errors.As.
func (e *FallbackError) Unwrap() []error { return e.Attempts }

// SelectFirst tries candidates in order and returns the records of the first
// one that succeeds, together with its index.  Results are never merged
// across candidates.  Context cancellation stops the chain immediately.
func SelectFirst(ctx context.Context, base Base, candidates ...Candidate) ([]Record, int, error) {
	if len(candidates) == 0 {
		return nil, -1, errors.New("no table candidates")
	}
	attempts := make([]error, 0, len(candidates))
	for i, c := range candidates {
		recs, err := base.Table(c.Table).Select(ctx, c.Query)
		if err == nil {
			return recs, i, nil
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", c.Table, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, -1, &FallbackError{Attempts: attempts}
}
