package dto

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// CreateLocationRequest creates a floor area.
type CreateLocationRequest struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	IsActive *bool  `json:"is_active"`
}

// Validate checks field shapes.
func (r *CreateLocationRequest) Validate() error {
	if r.Color == "" {
		r.Color = "#6B7280"
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Color, is.HexColor),
	)
}

// UpdateLocationRequest patches a location. ForceSync activates every table
// of the location when it is being activated.
type UpdateLocationRequest struct {
	Name      *string `json:"name"`
	Color     *string `json:"color"`
	IsActive  *bool   `json:"is_active"`
	ForceSync bool    `json:"force_sync"`
}

// Validate checks field shapes.
func (r *UpdateLocationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Color, validation.NilOrNotEmpty, is.HexColor),
	)
}

// CreateTableRequest creates a table.
type CreateTableRequest struct {
	Number     int    `json:"number"`
	Seats      int    `json:"seats"`
	LocationID *int64 `json:"location_id"`
	IsActive   *bool  `json:"is_active"`
}

// Validate checks field shapes.
func (r *CreateTableRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Number, validation.Required, validation.Min(1), validation.Max(9999)),
		validation.Field(&r.Seats, validation.Required, validation.Min(1), validation.Max(50)),
		validation.Field(&r.LocationID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

// UpdateTableRequest patches a table. The QR token is immutable.
type UpdateTableRequest struct {
	Number        *int   `json:"number"`
	Seats         *int   `json:"seats"`
	LocationID    *int64 `json:"location_id"`
	ClearLocation bool   `json:"clear_location"`
	IsActive      *bool  `json:"is_active"`
}

// Validate checks field shapes.
func (r *UpdateTableRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Number, validation.NilOrNotEmpty, validation.Min(1), validation.Max(9999)),
		validation.Field(&r.Seats, validation.NilOrNotEmpty, validation.Min(1), validation.Max(50)),
		validation.Field(&r.LocationID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

// IntegrityFixRequest selects issue types to repair.
type IntegrityFixRequest struct {
	IssueTypes []string `json:"issue_types"`
	DryRun     bool     `json:"dry_run"`
}

// Validate checks that at least one type is named; names are checked by the engine.
func (r *IntegrityFixRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.IssueTypes, validation.Required),
	)
}
