package dto

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/Additional-Code/servio/internal/entity"
	orderrepo "github.com/Additional-Code/servio/internal/repository/order"
)

// Paging bounds of order listings.
const (
	DefaultOrderLimit = 50
	MaxOrderLimit     = 200
)

// OrderListQuery filters order listings. From and To accept RFC 3339
// timestamps or plain dates interpreted in the restaurant time zone.
type OrderListQuery struct {
	Statuses []string `query:"status"`
	TableID  *int64   `query:"table_id"`
	WaiterID *int64   `query:"waiter_id"`
	Type     string   `query:"order_type"`
	From     string   `query:"from"`
	To       string   `query:"to"`
	Limit    int      `query:"limit"`
	Offset   int      `query:"offset"`
}

// Validate checks the filter literals.
func (q *OrderListQuery) Validate() error {
	q.Statuses = splitList(q.Statuses)
	return validation.ValidateStruct(q,
		validation.Field(&q.Statuses, validation.By(func(any) error {
			for _, s := range q.Statuses {
				if _, ok := entity.ParseOrderStatus(s); !ok {
					return errors.New("must contain valid order statuses")
				}
			}
			return nil
		})),
		validation.Field(&q.Type, validation.By(func(any) error {
			if q.Type == "" {
				return nil
			}
			if _, ok := entity.ParseOrderType(q.Type); !ok {
				return errors.New("must be a valid order type")
			}
			return nil
		})),
		validation.Field(&q.From, validation.By(timeRule)),
		validation.Field(&q.To, validation.By(timeRule)),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(MaxOrderLimit)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}

// Filter converts the query into a repository filter.
func (q *OrderListQuery) Filter(loc *time.Location) orderrepo.Filter {
	f := orderrepo.Filter{
		TableID:  q.TableID,
		WaiterID: q.WaiterID,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if f.Limit == 0 {
		f.Limit = DefaultOrderLimit
	}
	for _, s := range q.Statuses {
		status, _ := entity.ParseOrderStatus(s)
		f.Statuses = append(f.Statuses, status)
	}
	if q.Type != "" {
		f.Type, _ = entity.ParseOrderType(q.Type)
	}
	if t, ok := parseTime(q.From, loc); ok {
		f.From = &t
	}
	if t, ok := parseTime(q.To, loc); ok {
		f.To = &t
	}
	return f
}

func timeRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, ok := parseTime(s, time.UTC); !ok {
		return errors.New("must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	}
	return nil
}

func parseTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func splitList(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
