package order

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/Additional-Code/servio/internal/entity"
)

var (
	errVariationForeign      = errors.New("variation does not belong to the dish")
	errVariationUnavailable  = errors.New("variation is not available")
	errNoAvailableVariations = errors.New("dish has no available variations")
)

// DeriveStatus computes the order status implied by its line items. The
// boolean is false when the items do not imply a change.
func DeriveStatus(current entity.OrderStatus, items []*entity.OrderItem) (entity.OrderStatus, bool) {
	switch current {
	case entity.OrderServed, entity.OrderDining, entity.OrderCompleted, entity.OrderCancelled:
		return current, false
	}

	var live, ready, served int
	for _, item := range items {
		switch item.Status {
		case entity.ItemCancelled:
			continue
		case entity.ItemReady:
			ready++
		case entity.ItemServed:
			served++
		}
		live++
	}
	if live == 0 {
		return current, false
	}

	switch {
	case served == live:
		return entity.OrderServed, true
	case ready+served == live && ready > 0:
		return entity.OrderReady, true
	case ready > 0 && current == entity.OrderPending:
		return entity.OrderReady, true
	}
	return current, false
}

// SelectVariation picks the variation an order line is priced from: the
// requested one, else the dish default, else the first available by
// (sort_order, id).
func SelectVariation(variations []*entity.DishVariation, requested *int64) (*entity.DishVariation, error) {
	if requested != nil {
		for _, v := range variations {
			if v.ID != *requested {
				continue
			}
			if !v.IsAvailable {
				return nil, errVariationUnavailable
			}
			return v, nil
		}
		return nil, errVariationForeign
	}

	ordered := append([]*entity.DishVariation(nil), variations...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SortOrder != ordered[j].SortOrder {
			return ordered[i].SortOrder < ordered[j].SortOrder
		}
		return ordered[i].ID < ordered[j].ID
	})
	for _, v := range ordered {
		if v.IsDefault && v.IsAvailable {
			return v, nil
		}
	}
	for _, v := range ordered {
		if v.IsAvailable {
			return v, nil
		}
	}
	return nil, errNoAvailableVariations
}

// wholeMinutes returns the floored number of minutes from start to end, never negative.
func wholeMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Minutes()))
}

// AppendStatus returns the status an order moves to when items are appended.
func AppendStatus(current entity.OrderStatus) (entity.OrderStatus, bool) {
	switch current {
	case entity.OrderServed:
		return entity.OrderDining, true
	case entity.OrderReady, entity.OrderPending:
		return entity.OrderInProgress, true
	}
	return current, false
}
