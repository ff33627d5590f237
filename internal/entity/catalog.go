package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Category groups dishes on the menu.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull,unique" json:"name"`
	Description string    `bun:"description,notnull" json:"description"`
	SortOrder   int       `bun:"sort_order,notnull" json:"sort_order"`
	IsActive    bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updated_at"`

	Dishes []*Dish `bun:"rel:has-many,join:id=category_id" json:"dishes,omitempty"`
}

// Dish is a menu entry routed to a kitchen department.
type Dish struct {
	bun.BaseModel `bun:"table:dishes,alias:d"`

	ID          int64      `bun:",pk,autoincrement" json:"id"`
	CategoryID  int64      `bun:"category_id,notnull,unique:dishes_category_name" json:"category_id"`
	Name        string     `bun:"name,notnull,unique:dishes_category_name" json:"name"`
	Description string     `bun:"description,notnull" json:"description"`
	ImageURL    string     `bun:"image_url,notnull" json:"image_url"`
	IsAvailable bool       `bun:"is_available,notnull" json:"is_available"`
	Department  Department `bun:"department,notnull" json:"department"`
	CookingTime *int       `bun:"cooking_time" json:"cooking_time"`
	Weight      *int       `bun:"weight" json:"weight"`
	Calories    *int       `bun:"calories" json:"calories"`
	SortOrder   int        `bun:"sort_order,notnull" json:"sort_order"`
	IsPopular   bool       `bun:"is_popular,notnull" json:"is_popular"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero" json:"updated_at"`

	Category   *Category         `bun:"rel:belongs-to,join:category_id=id" json:"-"`
	Variations []*DishVariation  `bun:"rel:has-many,join:id=dish_id" json:"variations,omitempty"`
	Recipe     []*DishIngredient `bun:"rel:has-many,join:id=dish_id" json:"ingredients,omitempty"`
}

// DishVariation is a priced offering of a dish (size, portion).
type DishVariation struct {
	bun.BaseModel `bun:"table:dish_variations,alias:dv"`

	ID          int64           `bun:",pk,autoincrement" json:"id"`
	DishID      int64           `bun:"dish_id,notnull" json:"dish_id"`
	Name        string          `bun:"name,notnull" json:"name"`
	Price       decimal.Decimal `bun:"price,type:decimal(10,2),notnull" json:"price"`
	IsAvailable bool            `bun:"is_available,notnull" json:"is_available"`
	IsDefault   bool            `bun:"is_default,notnull" json:"is_default"`
	SKU         *string         `bun:"sku,unique" json:"sku"`
	SortOrder   int             `bun:"sort_order,notnull" json:"sort_order"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
}

// Ingredient is a recipe component. Stock is not tracked.
type Ingredient struct {
	bun.BaseModel `bun:"table:ingredients,alias:i"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	Unit      string    `bun:"unit,notnull" json:"unit"`
	IsActive  bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// DishIngredient links an ingredient to a dish with an amount.
type DishIngredient struct {
	bun.BaseModel `bun:"table:dish_ingredients,alias:di"`

	DishID       int64           `bun:"dish_id,pk" json:"dish_id"`
	IngredientID int64           `bun:"ingredient_id,pk" json:"ingredient_id"`
	Amount       decimal.Decimal `bun:"amount,type:decimal(10,3),notnull" json:"amount"`

	Ingredient *Ingredient `bun:"rel:belongs-to,join:ingredient_id=id" json:"ingredient,omitempty"`
}

// PaymentMethod is a descriptive record; no gateway is involved.
type PaymentMethod struct {
	bun.BaseModel `bun:"table:payment_methods,alias:pm"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	IsActive  bool      `bun:"is_active,notnull" json:"is_active"`
	SortOrder int       `bun:"sort_order,notnull" json:"sort_order"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
