package dto

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/Additional-Code/servio/internal/entity"
)

// Bounds of the kitchen statistics window.
const (
	MinStatsHours     = 1
	MaxStatsHours     = 168
	DefaultStatsHours = 24
)

// KitchenQuery filters kitchen projections.
type KitchenQuery struct {
	Department string   `query:"department"`
	Statuses   []string `query:"status"`
}

// Validate checks the department and status literals.
func (q *KitchenQuery) Validate() error {
	q.Statuses = splitList(q.Statuses)
	return validation.ValidateStruct(q,
		validation.Field(&q.Department, validation.By(func(any) error {
			if q.Department == "" {
				return nil
			}
			return departmentRule(q.Department)
		})),
		validation.Field(&q.Statuses, validation.By(func(any) error {
			for _, s := range q.Statuses {
				if _, ok := entity.ParseItemStatus(s); !ok {
					return errors.New("must contain valid item statuses")
				}
			}
			return nil
		})),
	)
}

// DepartmentFilter returns the parsed department, or nil for all.
func (q *KitchenQuery) DepartmentFilter() *entity.Department {
	d, ok := entity.ParseDepartment(q.Department)
	if !ok {
		return nil
	}
	return &d
}

// ItemStatuses returns the parsed statuses, defaulting to IN_PREPARATION.
func (q *KitchenQuery) ItemStatuses() []entity.ItemStatus {
	if len(q.Statuses) == 0 {
		return []entity.ItemStatus{entity.ItemInPreparation}
	}
	out := make([]entity.ItemStatus, 0, len(q.Statuses))
	for _, raw := range q.Statuses {
		if s, ok := entity.ParseItemStatus(raw); ok {
			out = append(out, s)
		}
	}
	return out
}

// KitchenStatsQuery selects the trailing statistics window.
type KitchenStatsQuery struct {
	Department string `query:"department"`
	Hours      int    `query:"hours"`
}

// Validate checks the window bounds. Zero hours means the default window.
func (q *KitchenStatsQuery) Validate() error {
	if q.Hours == 0 {
		q.Hours = DefaultStatsHours
	}
	return validation.ValidateStruct(q,
		validation.Field(&q.Department, validation.By(func(any) error {
			if q.Department == "" {
				return nil
			}
			return departmentRule(q.Department)
		})),
		validation.Field(&q.Hours, validation.Min(MinStatsHours), validation.Max(MaxStatsHours)),
	)
}

// Window returns the configured window length.
func (q *KitchenStatsQuery) Window() time.Duration {
	return time.Duration(q.Hours) * time.Hour
}
