package household

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	repo "github.com/harborpaws/resolve/internal/repositories/household"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/household"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// AddMemberRequest attaches a person to an existing household
type AddMemberRequest struct {
	PersonID       string `json:"person_id" validate:"required,uuid"`
	EvidenceSource string `json:"evidence_source" validate:"required"`
}

// Register registers household routes
func Register(g *echo.Group) {
	g.GET("/:id", Get)
	g.GET("/:id/members", Members)
	g.POST("/:id/members", AddMember)
	g.DELETE("/:id/members/:personId", RemoveMember)
}

// Get returns a household with its shared identifier
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "household_handler.Get")
	defer span.End()

	id := c.Param("id")

	ctx, r, err := ectoinject.GetContext[*repo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Members lists open memberships for a household
func Members(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "household_handler.Members")
	defer span.End()

	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*household.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get household service")
	}

	items, err := svc.Members(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// AddMember attaches a person to a household
func AddMember(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "household_handler.AddMember")
	defer span.End()

	id := c.Param("id")

	var req AddMemberRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*household.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get household service")
	}

	member, err := svc.AddPerson(ctx, id, req.PersonID, req.EvidenceSource)
	if err != nil {
		if models.IsValidationError(err) {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusCreated, member)
}

// RemoveMember closes a person's membership without erasing its history
func RemoveMember(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "household_handler.RemoveMember")
	defer span.End()

	id := c.Param("id")
	personID := c.Param("personId")

	ctx, svc, err := ectoinject.GetContext[*household.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get household service")
	}

	if err := svc.RemovePerson(ctx, id, personID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
