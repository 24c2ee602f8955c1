package job

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/jobs"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers resolution job routes
func Register(g *echo.Group) {
	g.POST("", Enqueue)
	g.GET("/status", StatusCounts)
	g.GET("/:id", Get)
}

// Enqueue queues a resolution job for a source table
func Enqueue(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "job_handler.Enqueue")
	defer span.End()

	var req models.EnqueueJobRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*jobs.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get job service")
	}

	result, err := svc.Enqueue(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a single job with its lease and result state
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "job_handler.Get")
	defer span.End()

	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*jobs.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get job service")
	}

	result, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// StatusCounts returns queue depth per job status
func StatusCounts(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "job_handler.StatusCounts")
	defer span.End()

	ctx, svc, err := ectoinject.GetContext[*jobs.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get job service")
	}

	counts, err := svc.StatusCounts(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"statuses": counts})
}
