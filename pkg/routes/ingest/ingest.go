package ingest

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/ingest"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers ingestion routes
func Register(g *echo.Group) {
	g.POST("", Ingest)
}

// Ingest accepts a raw source record and stores it for resolution
func Ingest(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ingest_handler.Ingest")
	defer span.End()

	var req models.IngestRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*ingest.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ingest service")
	}

	resp, err := svc.Ingest(ctx, req)
	if err != nil {
		return err
	}

	code := http.StatusCreated
	if resp.Duplicate {
		code = http.StatusOK
	}
	return c.JSON(code, resp)
}
