package review

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	appcontext "github.com/harborpaws/resolve/internal/context"
	"github.com/harborpaws/resolve/internal/repositories/matchdecision"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/harborpaws/resolve/pkg/review"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers review queue routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/pending", ListPending)
	g.GET("/:id", Get)
	g.POST("/:id/outcome", ApplyOutcome)
}

func listFilter(c echo.Context) matchdecision.ListFilter {
	filter := matchdecision.ListFilter{}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if src := c.QueryParam("source_system"); src != "" {
		filter.SourceSystem = &src
	}
	if out := c.QueryParam("outcome"); out != "" {
		outcome := models.DecisionOutcome(out)
		filter.Outcome = &outcome
	}
	if st := c.QueryParam("review_status"); st != "" {
		status := models.ReviewStatus(st)
		filter.ReviewStatus = &status
	}
	return filter
}

// List pages through match decisions
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "review_handler.List")
	defer span.End()

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review service")
	}

	result, err := svc.List(ctx, listFilter(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListPending pages through decisions awaiting human review
func ListPending(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "review_handler.ListPending")
	defer span.End()

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review service")
	}

	result, err := svc.ListPending(ctx, listFilter(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Get returns a single decision with its score breakdown
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "review_handler.Get")
	defer span.End()

	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review service")
	}

	result, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ApplyOutcome resolves a pending decision
func ApplyOutcome(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "review_handler.ApplyOutcome")
	defer span.End()

	id := c.Param("id")

	var req models.ApplyReviewRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Actor == "" {
		req.Actor = appcontext.GetActor(ctx)
	}
	if req.Actor == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "actor is required")
	}

	ctx, svc, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review service")
	}

	result, err := svc.ApplyOutcome(ctx, id, req)
	if err != nil {
		if models.IsValidationError(err) {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if models.IsMergeConflict(err) {
			return httperror.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}
