package person

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	appcontext "github.com/harborpaws/resolve/internal/context"
	"github.com/harborpaws/resolve/internal/repositories/identifier"
	"github.com/harborpaws/resolve/internal/repositories/mergehistory"
	"github.com/harborpaws/resolve/internal/repositories/person"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/merging"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers person routes
func Register(g *echo.Group) {
	g.GET("/:id", Get)
	g.GET("/:id/canonical", Canonical)
	g.GET("/:id/identifiers", Identifiers)
	g.GET("/:id/merge-history", MergeHistory)
	g.POST("/:id/merge", Merge)
	g.POST("/:id/undo-merge", UndoMerge)
}

func mergeError(err error) error {
	switch {
	case models.IsValidationError(err):
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	case models.IsMergeConflict(err):
		return httperror.NewHTTPError(http.StatusConflict, err.Error())
	case models.IsInvariantViolation(err):
		return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return err
}

// Get returns a person row as stored, merged or not
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "person_handler.Get")
	defer span.End()

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*person.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Canonical follows merge pointers to the surviving person
func Canonical(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "person_handler.Canonical")
	defer span.End()

	id := c.Param("id")

	ctx, resolver, err := ectoinject.GetContext[*merging.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get resolver")
	}

	result, err := resolver.CanonicalOf(ctx, id)
	if err != nil {
		if models.IsInvariantViolation(err) {
			return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Identifiers lists the identifiers attached to a person
func Identifiers(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "person_handler.Identifiers")
	defer span.End()

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*identifier.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.ListByPerson(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// MergeHistory lists merges this person took part in, newest first
func MergeHistory(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "person_handler.MergeHistory")
	defer span.End()

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*mergehistory.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.ListForPerson(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Merge collapses this person into the target person
func Merge(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "person_handler.Merge")
	defer span.End()

	sourceID := c.Param("id")

	var req models.MergeRequest
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

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge engine")
	}

	result, err := engine.Merge(ctx, sourceID, req.TargetPersonID, req.Reason, req.Actor)
	if err != nil {
		return mergeError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// UndoMerge reverses the latest merge this person was absorbed by
func UndoMerge(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "person_handler.UndoMerge")
	defer span.End()

	sourceID := c.Param("id")

	var req models.UndoRequest
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

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge engine")
	}

	result, err := engine.Undo(ctx, sourceID, req.Actor)
	if err != nil {
		return mergeError(err)
	}

	return c.JSON(http.StatusOK, result)
}
