package integrity

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Additional-Code/servio/internal/entity"
)

// IssueType names one class of table/location/order inconsistency.
type IssueType string

const (
	ActiveTableInactiveLocation IssueType = "active_table_inactive_location"
	ActiveTableNoLocation       IssueType = "active_table_no_location"
	OccupiedInactiveTable       IssueType = "occupied_inactive_table"
	OrderAtInactiveTable        IssueType = "order_at_inactive_table"
	OccupiedWithoutOrder        IssueType = "occupied_without_order"
	StaleCurrentOrder           IssueType = "stale_current_order"
	UnreferencedSeatOrder       IssueType = "unreferenced_seat_order"
)

// IssueTypes lists every detectable type in report order.
func IssueTypes() []IssueType {
	return []IssueType{
		ActiveTableInactiveLocation,
		ActiveTableNoLocation,
		OccupiedInactiveTable,
		OrderAtInactiveTable,
		OccupiedWithoutOrder,
		StaleCurrentOrder,
		UnreferencedSeatOrder,
	}
}

// ParseIssueType validates an issue type name.
func ParseIssueType(raw string) (IssueType, bool) {
	t := IssueType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range IssueTypes() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Issue is one detected violation.
type Issue struct {
	IssueType    IssueType `json:"issue_type"`
	TableID      int64     `json:"table_id"`
	TableNumber  int       `json:"table_number"`
	LocationName *string   `json:"location_name,omitempty"`
	OrderID      *int64    `json:"order_id,omitempty"`
	Description  string    `json:"description"`
}

// Change describes a repair applied, or to be applied on a dry run.
type Change struct {
	IssueType   IssueType `json:"issue_type"`
	TableID     int64     `json:"table_id"`
	TableNumber int       `json:"table_number"`
	Action      string    `json:"action"`
}

// detect evaluates every table against the occupancy and location rules.
// orders holds the orders referenced by table pointers; a missing key means
// the referenced order does not exist. holding lists the seat-holding orders
// of each table, oldest first.
func detect(tables []*entity.Table, orders map[int64]*entity.Order, holding map[int64][]*entity.Order) []Issue {
	var issues []Issue
	for _, t := range tables {
		add := func(kind IssueType, description string) {
			issue := Issue{IssueType: kind, TableID: t.ID, TableNumber: t.Number, Description: description}
			if t.Location != nil {
				name := t.Location.Name
				issue.LocationName = &name
			}
			if t.CurrentOrderID != nil {
				id := *t.CurrentOrderID
				issue.OrderID = &id
			}
			issues = append(issues, issue)
		}
		holder := unreferencedHolder(t, orders, holding[t.ID])

		if t.IsActive {
			switch {
			case t.LocationID == nil:
				add(ActiveTableNoLocation, "active table has no location")
			case t.Location != nil && !t.Location.IsActive:
				add(ActiveTableInactiveLocation, "active table belongs to an inactive location")
			}
			if t.IsOccupied && t.CurrentOrderID == nil && holder == nil {
				add(OccupiedWithoutOrder, "table is marked occupied without a current order")
			}
			if t.CurrentOrderID != nil {
				if reason := staleReason(t, orders[*t.CurrentOrderID]); reason != "" {
					add(StaleCurrentOrder, reason)
				}
			}
			if holder != nil {
				add(UnreferencedSeatOrder, "order "+strconv.FormatInt(holder.ID, 10)+" holds the table but the table does not point at it")
				id := holder.ID
				issues[len(issues)-1].OrderID = &id
			}
			continue
		}

		if t.IsOccupied {
			add(OccupiedInactiveTable, "inactive table is marked occupied")
		}
		if t.CurrentOrderID != nil {
			add(OrderAtInactiveTable, "inactive table still points at an order")
		}
	}
	return issues
}

// unreferencedHolder returns the oldest seat-holding order of an active table
// whose pointer is empty or stale. A valid pointer already names the holder.
func unreferencedHolder(t *entity.Table, orders map[int64]*entity.Order, holding []*entity.Order) *entity.Order {
	if !t.IsActive || len(holding) == 0 {
		return nil
	}
	if t.CurrentOrderID != nil && staleReason(t, orders[*t.CurrentOrderID]) == "" {
		return nil
	}
	return holding[0]
}

func staleReason(t *entity.Table, o *entity.Order) string {
	switch {
	case o == nil:
		return "current order does not exist"
	case o.TableID == nil || *o.TableID != t.ID:
		return "current order belongs to another table"
	case !o.Status.HoldsSeat():
		return "current order is " + string(o.Status) + " and no longer holds the table"
	}
	return ""
}

// repair mutates t to resolve one issue and returns the action taken with the columns it touched.
func repair(t *entity.Table, issue Issue) (string, []string) {
	switch issue.IssueType {
	case ActiveTableInactiveLocation, ActiveTableNoLocation:
		t.Deactivate()
		return "deactivate table and release it", []string{"is_active", "is_occupied", "current_order_id"}
	case OccupiedInactiveTable, OccupiedWithoutOrder:
		t.IsOccupied = false
		return "clear occupancy", []string{"is_occupied"}
	case OrderAtInactiveTable:
		t.CurrentOrderID = nil
		return "clear current order", []string{"current_order_id"}
	case StaleCurrentOrder:
		t.Release()
		return "clear current order and occupancy", []string{"is_occupied", "current_order_id"}
	case UnreferencedSeatOrder:
		if !t.IsActive || issue.OrderID == nil {
			return "skip: table was deactivated", nil
		}
		id := *issue.OrderID
		t.IsOccupied = true
		t.CurrentOrderID = &id
		return "point table at order " + strconv.FormatInt(id, 10), []string{"is_occupied", "current_order_id"}
	}
	return "", nil
}

// summarize counts issues per type; every known type is present.
func summarize(issues []Issue) map[IssueType]int {
	out := make(map[IssueType]int, len(IssueTypes()))
	for _, kind := range IssueTypes() {
		out[kind] = 0
	}
	for _, issue := range issues {
		out[issue.IssueType]++
	}
	return out
}

func mergeColumns(into []string, add []string) []string {
	seen := make(map[string]bool, len(into))
	for _, c := range into {
		seen[c] = true
	}
	for _, c := range add {
		if !seen[c] {
			seen[c] = true
			into = append(into, c)
		}
	}
	sort.Strings(into)
	return into
}
