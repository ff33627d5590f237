package dto

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/servio/internal/entity"
)

// CategoryRequest creates a category.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

// Validate checks field shapes.
func (r *CategoryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
		validation.Field(&r.SortOrder, validation.Min(0)),
	)
}

// UpdateCategoryRequest patches a category.
type UpdateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	SortOrder   *int    `json:"sort_order"`
	IsActive    *bool   `json:"is_active"`
}

// Validate checks field shapes.
func (r *UpdateCategoryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
		validation.Field(&r.SortOrder, validation.Min(0)),
	)
}

// VariationRequest creates a priced dish variation.
type VariationRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable *bool           `json:"is_available"`
	IsDefault   bool            `json:"is_default"`
	SKU         *string         `json:"sku"`
	SortOrder   int             `json:"sort_order"`
}

// Validate checks field shapes.
func (r VariationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Price, positiveDecimal),
		validation.Field(&r.SKU, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&r.SortOrder, validation.Min(0)),
	)
}

// UpdateVariationRequest patches a variation.
type UpdateVariationRequest struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	IsAvailable *bool            `json:"is_available"`
	IsDefault   *bool            `json:"is_default"`
	SKU         *string          `json:"sku"`
	SortOrder   *int             `json:"sort_order"`
}

// Validate checks field shapes.
func (r *UpdateVariationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Price, validation.By(func(any) error {
			if r.Price == nil {
				return nil
			}
			return positiveDecimal.Validate(*r.Price)
		})),
		validation.Field(&r.SKU, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&r.SortOrder, validation.Min(0)),
	)
}

// DishRequest creates a dish, optionally with its variations.
type DishRequest struct {
	CategoryID  int64              `json:"category_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Department  string             `json:"department"`
	CookingTime *int               `json:"cooking_time"`
	Weight      *int               `json:"weight"`
	Calories    *int               `json:"calories"`
	SortOrder   int                `json:"sort_order"`
	IsPopular   bool               `json:"is_popular"`
	IsAvailable *bool              `json:"is_available"`
	Variations  []VariationRequest `json:"variations"`
}

// Validate checks field shapes and that at most one variation is the default.
func (r *DishRequest) Validate() error {
	if r.Department == "" {
		r.Department = string(entity.DepartmentHot)
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.CategoryID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 150)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Department, validation.By(departmentRule)),
		validation.Field(&r.CookingTime, validation.NilOrNotEmpty, validation.Min(1), validation.Max(600)),
		validation.Field(&r.Weight, validation.Min(0)),
		validation.Field(&r.Calories, validation.Min(0)),
		validation.Field(&r.SortOrder, validation.Min(0)),
		validation.Field(&r.Variations, validation.By(func(any) error {
			defaults := 0
			for _, v := range r.Variations {
				if v.IsDefault {
					defaults++
				}
			}
			if defaults > 1 {
				return errors.New("at most one variation can be the default")
			}
			return nil
		})),
	)
}

// UpdateDishRequest patches a dish.
type UpdateDishRequest struct {
	CategoryID  *int64  `json:"category_id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Department  *string `json:"department"`
	CookingTime *int    `json:"cooking_time"`
	Weight      *int    `json:"weight"`
	Calories    *int    `json:"calories"`
	SortOrder   *int    `json:"sort_order"`
	IsPopular   *bool   `json:"is_popular"`
	IsAvailable *bool   `json:"is_available"`
}

// Validate checks field shapes.
func (r *UpdateDishRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CategoryID, validation.NilOrNotEmpty, validation.Min(int64(1))),
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 150)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Department, validation.By(func(any) error {
			if r.Department == nil {
				return nil
			}
			return departmentRule(*r.Department)
		})),
		validation.Field(&r.CookingTime, validation.NilOrNotEmpty, validation.Min(1), validation.Max(600)),
		validation.Field(&r.Weight, validation.Min(0)),
		validation.Field(&r.Calories, validation.Min(0)),
		validation.Field(&r.SortOrder, validation.Min(0)),
	)
}

func departmentRule(value any) error {
	s, _ := value.(string)
	if _, ok := entity.ParseDepartment(s); !ok {
		return errors.New("must be one of BAR, COLD, HOT, DESSERT, GRILL, BAKERY")
	}
	return nil
}

// IngredientRequest creates or renames an ingredient.
type IngredientRequest struct {
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	IsActive *bool  `json:"is_active"`
}

// Validate checks field shapes.
func (r *IngredientRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Unit, validation.Required, validation.Length(1, 20)),
	)
}

// RecipeLine links one ingredient to a dish.
type RecipeLine struct {
	IngredientID int64           `json:"ingredient_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// Validate checks a single link.
func (r RecipeLine) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IngredientID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Amount, validation.By(func(any) error {
			if !r.Amount.IsPositive() {
				return errors.New("must be greater than zero")
			}
			return nil
		})),
	)
}

// RecipeRequest replaces a dish's ingredient list.
type RecipeRequest struct {
	Ingredients []RecipeLine `json:"ingredients"`
}

// Validate checks every line and rejects duplicates.
func (r *RecipeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Ingredients, validation.By(func(any) error {
			seen := make(map[int64]bool, len(r.Ingredients))
			for _, line := range r.Ingredients {
				if seen[line.IngredientID] {
					return errors.New("ingredients must be unique")
				}
				seen[line.IngredientID] = true
			}
			return nil
		})),
	)
}

// PaymentMethodRequest creates a payment method.
type PaymentMethodRequest struct {
	Name      string `json:"name"`
	IsActive  *bool  `json:"is_active"`
	SortOrder int    `json:"sort_order"`
}

// Validate checks field shapes.
func (r *PaymentMethodRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.SortOrder, validation.Min(0)),
	)
}

// UpdatePaymentMethodRequest patches a payment method.
type UpdatePaymentMethodRequest struct {
	Name      *string `json:"name"`
	IsActive  *bool   `json:"is_active"`
	SortOrder *int    `json:"sort_order"`
}

// Validate checks field shapes.
func (r *UpdatePaymentMethodRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.SortOrder, validation.Min(0)),
	)
}
