package matchconfig

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/harborpaws/resolve/internal/repositories/matchconfig"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers match configuration routes
func Register(g *echo.Group) {
	g.GET("/active", GetActive)
	g.GET("", ListVersions)
	g.POST("", Create)
	g.GET("/:version", GetVersion)
}

// GetActive returns the configuration version new decisions are scored with
func GetActive(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchconfig_handler.GetActive")
	defer span.End()

	ctx, repo, err := ectoinject.GetContext[*matchconfig.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetActive(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// GetVersion returns a historical configuration version
func GetVersion(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchconfig_handler.GetVersion")
	defer span.End()

	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "version must be an integer")
	}

	ctx, repo, err := ectoinject.GetContext[*matchconfig.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByVersion(ctx, version)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListVersions returns every configuration version, newest first
func ListVersions(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchconfig_handler.ListVersions")
	defer span.End()

	ctx, repo, err := ectoinject.GetContext[*matchconfig.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.ListVersions(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Create inserts a new configuration version and makes it active
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchconfig_handler.Create")
	defer span.End()

	var req models.CreateMatchConfigRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.UpperThreshold <= req.LowerThreshold {
		return httperror.NewHTTPError(http.StatusBadRequest, "upper_threshold must exceed lower_threshold")
	}

	ctx, repo, err := ectoinject.GetContext[*matchconfig.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Create(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}
