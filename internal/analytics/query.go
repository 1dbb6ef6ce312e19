package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMonths = 6
	DefaultTopN   = 5
	MaxTopN       = 50
	MaxMonths     = 120
)

// Query selects the sales to aggregate. The range is [From, To), both at
// UTC month starts. A nil VendorID means the whole store.
type Query struct {
	VendorID *uuid.UUID
	From     time.Time
	To       time.Time
	TopN     int
}

type Option func(q *Query) error

// WithRange widens from and to to whole months: from is truncated to its month
// start, to is rounded up to the next month start unless it already is one.
func WithRange(from, to time.Time) Option {
	return func(q *Query) error {
		if from.IsZero() || to.IsZero() {
			return errors.New("range needs both from and to")
		}
		start := MonthStart(from)
		end := MonthStart(to)
		if !end.Equal(to.UTC()) {
			end = end.AddDate(0, 1, 0)
		}
		if !end.After(start) {
			return fmt.Errorf("invalid range: to (%s) is not after from (%s)", to.Format(time.RFC3339), from.Format(time.RFC3339))
		}
		if monthsBetween(start, end) > MaxMonths {
			return fmt.Errorf("range exceeds maximum (%d months)", MaxMonths)
		}
		q.From, q.To = start, end
		return nil
	}
}

func WithTopN(n int) Option {
	return func(q *Query) error {
		if n <= 0 {
			return errors.New("top must be positive")
		}
		if n > MaxTopN {
			return fmt.Errorf("top exceeds maximum (%d)", MaxTopN)
		}
		q.TopN = n
		return nil
	}
}

func ForVendor(vendorID uuid.UUID) Option {
	return func(q *Query) error {
		if vendorID == uuid.Nil {
			return errors.New("vendor id is required")
		}
		q.VendorID = &vendorID
		return nil
	}
}

// NewQuery defaults to the trailing six calendar months including the one
// containing now, and the top five products.
func NewQuery(now time.Time, opts ...Option) (Query, error) {
	current := MonthStart(now)
	q := Query{
		From: current.AddDate(0, -(DefaultMonths - 1), 0),
		To:   current.AddDate(0, 1, 0),
		TopN: DefaultTopN,
	}

	for _, opt := range opts {
		if err := opt(&q); err != nil {
			return Query{}, err
		}
	}
	return q, nil
}

func (q Query) scope() string {
	if q.VendorID == nil {
		return "store"
	}
	return "vendor-" + q.VendorID.String()
}

func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
