package seeder

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Additional-Code/servio/internal/auth"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/entity"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Module registers the seeder with Fx.
var Module = fx.Provide(New)

// Fixtures is the demo data set loaded by the seed command.
type Fixtures struct {
	Users          []UserFixture          `yaml:"users"`
	Locations      []LocationFixture      `yaml:"locations"`
	Categories     []CategoryFixture      `yaml:"categories"`
	PaymentMethods []PaymentMethodFixture `yaml:"payment_methods"`
}

type UserFixture struct {
	Username string `yaml:"username"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
	Pin      string `yaml:"pin"`
}

type LocationFixture struct {
	Name   string         `yaml:"name"`
	Color  string         `yaml:"color"`
	Tables []TableFixture `yaml:"tables"`
}

type TableFixture struct {
	Number int `yaml:"number"`
	Seats  int `yaml:"seats"`
}

type CategoryFixture struct {
	Name      string        `yaml:"name"`
	SortOrder int           `yaml:"sort_order"`
	Dishes    []DishFixture `yaml:"dishes"`
}

type DishFixture struct {
	Name        string             `yaml:"name"`
	Department  string             `yaml:"department"`
	CookingTime *int               `yaml:"cooking_time"`
	Weight      *int               `yaml:"weight"`
	Popular     bool               `yaml:"popular"`
	Variations  []VariationFixture `yaml:"variations"`
}

type VariationFixture struct {
	Name    string `yaml:"name"`
	Price   string `yaml:"price"`
	Default bool   `yaml:"default"`
	SKU     string `yaml:"sku"`
}

type PaymentMethodFixture struct {
	Name      string `yaml:"name"`
	SortOrder int    `yaml:"sort_order"`
}

// Parse decodes a fixture document.
func Parse(raw []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// Seeder performs database seeding for local/dev setups. Rows whose unique
// key already exists are skipped, so seeding can run repeatedly.
type Seeder struct {
	db     *bun.DB
	pins   *auth.PinHasher
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, pins *auth.PinHasher, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, pins: pins, logger: logger, now: time.Now}
}

// Run seeds the embedded fixtures.
func (s *Seeder) Run(ctx context.Context) error {
	f, err := Parse(defaultFixtures)
	if err != nil {
		return err
	}
	return s.Load(ctx, f)
}

// Load inserts the given fixtures in one transaction.
func (s *Seeder) Load(ctx context.Context, f *Fixtures) error {
	var counts struct{ users, tables, dishes, methods int }

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if counts.users, err = s.users(ctx, tx, f.Users); err != nil {
			return err
		}
		if counts.tables, err = s.floor(ctx, tx, f.Locations); err != nil {
			return err
		}
		if counts.dishes, err = s.catalog(ctx, tx, f.Categories); err != nil {
			return err
		}
		counts.methods, err = s.paymentMethods(ctx, tx, f.PaymentMethods)
		return err
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded fixtures",
			zap.Int("users", counts.users),
			zap.Int("tables", counts.tables),
			zap.Int("dishes", counts.dishes),
			zap.Int("payment_methods", counts.methods),
		)
	}
	return nil
}

func (s *Seeder) users(ctx context.Context, tx bun.Tx, fixtures []UserFixture) (int, error) {
	now := s.now().UTC()
	inserted := 0
	for _, uf := range fixtures {
		found, err := exists(ctx, tx, (*entity.User)(nil), "username", uf.Username)
		if err != nil || found {
			if err != nil {
				return inserted, err
			}
			continue
		}
		role, ok := entity.ParseRole(uf.Role)
		if !ok {
			return inserted, fmt.Errorf("user %s: unknown role %q", uf.Username, uf.Role)
		}
		hash, err := auth.HashPassword(uf.Password)
		if err != nil {
			return inserted, err
		}
		u := &entity.User{
			Username:     uf.Username,
			FullName:     uf.FullName,
			Role:         role,
			IsActive:     true,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if uf.Pin != "" {
			if err := auth.ValidatePin(uf.Pin); err != nil {
				return inserted, fmt.Errorf("user %s: %w", uf.Username, err)
			}
			digest := s.pins.Digest(uf.Pin)
			u.PinHash = &digest
		}
		if _, err := tx.NewInsert().Model(u).Exec(ctx); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (s *Seeder) floor(ctx context.Context, tx bun.Tx, fixtures []LocationFixture) (int, error) {
	now := s.now().UTC()
	inserted := 0
	for _, lf := range fixtures {
		loc := new(entity.Location)
		err := tx.NewSelect().Model(loc).Where("name = ?", lf.Name).Limit(1).Scan(ctx)
		if err != nil && !database.IsNoRows(err) {
			return inserted, err
		}
		if loc.ID == 0 {
			loc = &entity.Location{Name: lf.Name, Color: lf.Color, IsActive: true, CreatedAt: now, UpdatedAt: now}
			if loc.Color == "" {
				loc.Color = "#6B7280"
			}
			if _, err := tx.NewInsert().Model(loc).Exec(ctx); err != nil {
				return inserted, err
			}
		}

		for _, tf := range lf.Tables {
			found, err := exists(ctx, tx, (*entity.Table)(nil), "number", tf.Number)
			if err != nil {
				return inserted, err
			}
			if found {
				continue
			}
			locationID := loc.ID
			t := &entity.Table{
				Number:     tf.Number,
				Seats:      tf.Seats,
				QRToken:    uuid.NewString(),
				IsActive:   true,
				LocationID: &locationID,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if _, err := tx.NewInsert().Model(t).Exec(ctx); err != nil {
				return inserted, err
			}
			inserted++
		}
	}
	return inserted, nil
}

func (s *Seeder) catalog(ctx context.Context, tx bun.Tx, fixtures []CategoryFixture) (int, error) {
	now := s.now().UTC()
	inserted := 0
	for _, cf := range fixtures {
		cat := new(entity.Category)
		err := tx.NewSelect().Model(cat).Where("name = ?", cf.Name).Limit(1).Scan(ctx)
		if err != nil && !database.IsNoRows(err) {
			return inserted, err
		}
		if cat.ID == 0 {
			cat = &entity.Category{Name: cf.Name, SortOrder: cf.SortOrder, IsActive: true, CreatedAt: now, UpdatedAt: now}
			if _, err := tx.NewInsert().Model(cat).Exec(ctx); err != nil {
				return inserted, err
			}
		}

		for i, df := range cf.Dishes {
			n, err := tx.NewSelect().Model((*entity.Dish)(nil)).
				Where("category_id = ?", cat.ID).
				Where("name = ?", df.Name).
				Count(ctx)
			if err != nil {
				return inserted, err
			}
			if n > 0 {
				continue
			}
			department, ok := entity.ParseDepartment(df.Department)
			if !ok {
				return inserted, fmt.Errorf("dish %s: unknown department %q", df.Name, df.Department)
			}
			d := &entity.Dish{
				CategoryID:  cat.ID,
				Name:        df.Name,
				IsAvailable: true,
				Department:  department,
				CookingTime: df.CookingTime,
				Weight:      df.Weight,
				SortOrder:   i,
				IsPopular:   df.Popular,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if _, err := tx.NewInsert().Model(d).Exec(ctx); err != nil {
				return inserted, err
			}
			for j, vf := range df.Variations {
				price, err := decimal.NewFromString(vf.Price)
				if err != nil {
					return inserted, fmt.Errorf("dish %s variation %s: %w", df.Name, vf.Name, err)
				}
				v := &entity.DishVariation{
					DishID:      d.ID,
					Name:        vf.Name,
					Price:       price.Round(2),
					IsAvailable: true,
					IsDefault:   vf.Default,
					SortOrder:   j,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if vf.SKU != "" {
					sku := vf.SKU
					v.SKU = &sku
				}
				if _, err := tx.NewInsert().Model(v).Exec(ctx); err != nil {
					return inserted, err
				}
			}
			inserted++
		}
	}
	return inserted, nil
}

func (s *Seeder) paymentMethods(ctx context.Context, tx bun.Tx, fixtures []PaymentMethodFixture) (int, error) {
	now := s.now().UTC()
	inserted := 0
	for _, pf := range fixtures {
		found, err := exists(ctx, tx, (*entity.PaymentMethod)(nil), "name", pf.Name)
		if err != nil {
			return inserted, err
		}
		if found {
			continue
		}
		pm := &entity.PaymentMethod{Name: pf.Name, SortOrder: pf.SortOrder, IsActive: true, CreatedAt: now, UpdatedAt: now}
		if _, err := tx.NewInsert().Model(pm).Exec(ctx); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func exists(ctx context.Context, db bun.IDB, model any, column string, value any) (bool, error) {
	return db.NewSelect().Model(model).Where("? = ?", bun.Ident(column), value).Exists(ctx)
}
