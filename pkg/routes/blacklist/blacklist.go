package blacklist

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/harborpaws/resolve/internal/repositories/blacklist"
	"github.com/harborpaws/resolve/internal/repositories/identifier"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers identifier blacklist routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
}

// List returns all blacklisted identifiers
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "blacklist_handler.List")
	defer span.End()

	ctx, repo, err := ectoinject.GetContext[*blacklist.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Create registers an identifier as shared so it stops driving auto-matches
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "blacklist_handler.Create")
	defer span.End()

	var req models.CreateBlacklistEntryRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	normalized := identifier.Normalize(req.Kind, req.Value)
	if normalized == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "value normalizes to empty")
	}

	ctx, repo, err := ectoinject.GetContext[*blacklist.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	ctx, idRepo, err := ectoinject.GetContext[*identifier.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	owners, err := idRepo.CountDistinctOwners(ctx, req.Kind, normalized)
	if err != nil {
		return err
	}

	result, err := repo.Register(ctx, req.Kind, normalized, owners, req.MinNameSimilarity, req.RequireAddressMatch, req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}
