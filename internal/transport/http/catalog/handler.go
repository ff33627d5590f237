// Package catalog exposes categories, dishes, variations, ingredients and
// payment methods over HTTP.
package catalog

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	catalogrepo "github.com/Additional-Code/servio/internal/repository/catalog"
	service "github.com/Additional-Code/servio/internal/service/catalog"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
	"github.com/Additional-Code/servio/internal/transport/http/request"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/servio/transport/http/catalog")

// Handler exposes catalog endpoints.
type Handler struct {
	svc         *service.Service
	uploadLimit int64
}

// NewHandler constructs a catalog Handler.
func NewHandler(svc *service.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, uploadLimit: cfg.HTTP.UploadLimit}
}

// Register mounts catalog routes. Staff may read; admins manage.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	admin := authn.Require(entity.RoleAdmin)

	categories := e.Group("/categories", authn.Require())
	categories.GET("", h.listCategories)
	categories.GET("/:id", h.getCategory)
	categories.POST("", h.createCategory, admin)
	categories.PATCH("/:id", h.updateCategory, admin)
	categories.DELETE("/:id", h.deleteCategory, admin)

	dishes := e.Group("/dishes", authn.Require())
	dishes.GET("", h.listDishes)
	dishes.GET("/:id", h.getDish)
	dishes.POST("", h.createDish, admin)
	dishes.PATCH("/:id", h.updateDish, admin)
	dishes.DELETE("/:id", h.deleteDish, admin)
	dishes.POST("/:id/variations", h.addVariation, admin)
	dishes.POST("/:id/image", h.uploadImage, admin)
	dishes.PUT("/:id/ingredients", h.setRecipe, admin)

	variations := e.Group("/variations", admin)
	variations.PATCH("/:id", h.updateVariation)
	variations.DELETE("/:id", h.deleteVariation)

	ingredients := e.Group("/ingredients", authn.Require())
	ingredients.GET("", h.listIngredients)
	ingredients.POST("", h.createIngredient, admin)
	ingredients.PATCH("/:id", h.updateIngredient, admin)
	ingredients.DELETE("/:id", h.deleteIngredient, admin)

	payments := e.Group("/payment-methods", authn.Require())
	payments.GET("", h.listPaymentMethods)
	payments.GET("/:id", h.getPaymentMethod)
	payments.POST("", h.createPaymentMethod, admin)
	payments.PATCH("/:id", h.updatePaymentMethod, admin)
}

func activeOnly(c echo.Context) (bool, error) {
	active, err := request.Bool(c, "active")
	if err != nil {
		return false, err
	}
	return active != nil && *active, nil
}

func (h *Handler) listCategories(c echo.Context) error {
	active, err := activeOnly(c)
	if err != nil {
		return response.Fail(c, err)
	}
	categories, err := h.svc.ListCategories(c.Request().Context(), active)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, categories)
}

func (h *Handler) getCategory(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	category, err := h.svc.GetCategory(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, category)
}

func (h *Handler) createCategory(c echo.Context) error {
	var payload dto.CategoryRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	category, err := h.svc.CreateCategory(c.Request().Context(), &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(category).Build()
}

func (h *Handler) updateCategory(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateCategoryRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	category, err := h.svc.UpdateCategory(c.Request().Context(), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, category)
}

func (h *Handler) deleteCategory(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	if err := h.svc.DeleteCategory(c.Request().Context(), id); err != nil {
		return response.Fail(c, err)
	}
	return response.NoContent(c)
}

func (h *Handler) listDishes(c echo.Context) error {
	var filter catalogrepo.DishFilter
	var err error
	if filter.CategoryID, err = request.Int64(c, "category_id"); err != nil {
		return response.Fail(c, err)
	}
	if raw := c.QueryParam("department"); raw != "" {
		department, ok := entity.ParseDepartment(raw)
		if !ok {
			return response.Fail(c, errorbank.BadRequest("invalid department", errorbank.WithDetail("department", raw)))
		}
		filter.Department = department
	}
	if filter.AvailableOnly, err = flag(c, "available"); err != nil {
		return response.Fail(c, err)
	}
	if filter.PopularOnly, err = flag(c, "popular"); err != nil {
		return response.Fail(c, err)
	}

	dishes, err := h.svc.ListDishes(c.Request().Context(), filter)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dishes)
}

func flag(c echo.Context, name string) (bool, error) {
	v, err := request.Bool(c, name)
	if err != nil {
		return false, err
	}
	return v != nil && *v, nil
}

func (h *Handler) getDish(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	dish, err := h.svc.GetDish(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dish)
}

func (h *Handler) createDish(c echo.Context) error {
	var payload dto.DishRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "dishes.create")
	defer span.End()

	dish, err := h.svc.CreateDish(ctx, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(dish).Build()
}

func (h *Handler) updateDish(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateDishRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "dishes.update", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	dish, err := h.svc.UpdateDish(ctx, id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dish)
}

func (h *Handler) deleteDish(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	if err := h.svc.DeleteDish(c.Request().Context(), id); err != nil {
		return response.Fail(c, err)
	}
	return response.NoContent(c)
}

func (h *Handler) addVariation(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.VariationRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	variation, err := h.svc.AddVariation(c.Request().Context(), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(variation).Build()
}

func (h *Handler) updateVariation(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateVariationRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	variation, err := h.svc.UpdateVariation(c.Request().Context(), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, variation)
}

func (h *Handler) deleteVariation(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	if err := h.svc.DeleteVariation(c.Request().Context(), id); err != nil {
		return response.Fail(c, err)
	}
	return response.NoContent(c)
}

// uploadImage accepts a multipart "image" field capped at the configured size.
func (h *Handler) uploadImage(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}

	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.uploadLimit)
	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return response.Fail(c, errorbank.ValidationFailed("image too large",
				errorbank.WithDetail("limit_bytes", h.uploadLimit)))
		}
		return response.Fail(c, errorbank.BadRequest("multipart field \"image\" is required", errorbank.WithCause(err)))
	}
	file, err := header.Open()
	if err != nil {
		return response.Fail(c, errorbank.BadRequest("unreadable upload", errorbank.WithCause(err)))
	}
	defer file.Close()

	ctx, span := httpTracer.Start(req.Context(), "dishes.uploadImage", trace.WithAttributes(
		attribute.Int64("dish.id", id),
		attribute.Int64("upload.size", header.Size),
	))
	defer span.End()

	dish, err := h.svc.SaveImage(ctx, id, header.Filename, file)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dish)
}

func (h *Handler) setRecipe(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.RecipeRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	dish, err := h.svc.SetRecipe(c.Request().Context(), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dish)
}

func (h *Handler) listIngredients(c echo.Context) error {
	active, err := activeOnly(c)
	if err != nil {
		return response.Fail(c, err)
	}
	ingredients, err := h.svc.ListIngredients(c.Request().Context(), active)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, ingredients)
}

func (h *Handler) createIngredient(c echo.Context) error {
	var payload dto.IngredientRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	ingredient, err := h.svc.CreateIngredient(c.Request().Context(), &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(ingredient).Build()
}

func (h *Handler) updateIngredient(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.IngredientRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	ingredient, err := h.svc.UpdateIngredient(c.Request().Context(), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, ingredient)
}

func (h *Handler) deleteIngredient(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	if err := h.svc.DeleteIngredient(c.Request().Context(), id); err != nil {
		return response.Fail(c, err)
	}
	return response.NoContent(c)
}

func (h *Handler) listPaymentMethods(c echo.Context) error {
	active, err := activeOnly(c)
	if err != nil {
		return response.Fail(c, err)
	}
	methods, err := h.svc.ListPaymentMethods(c.Request().Context(), active)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, methods)
}

func (h *Handler) getPaymentMethod(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	method, err := h.svc.GetPaymentMethod(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, method)
}

func (h *Handler) createPaymentMethod(c echo.Context) error {
	var payload dto.PaymentMethodRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	method, err := h.svc.CreatePaymentMethod(c.Request().Context(), &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(method).Build()
}

func (h *Handler) updatePaymentMethod(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdatePaymentMethodRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	method, err := h.svc.UpdatePaymentMethod(c.Request().Context(), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, method)
}
