package identity

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
	"github.com/healthrisk/healthrisk/internal/platform/auth"
	"github.com/healthrisk/healthrisk/pkg/pagination"
)

type Handler struct {
	svc   *Service
	guard *access.Guard
}

func NewHandler(svc *Service, guard *access.Guard) *Handler {
	return &Handler{svc: svc, guard: guard}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.GetMe)
	api.GET("/patients/:id", h.GetPatient)
	api.PATCH("/patients/:id", h.UpdatePatient)
	api.GET("/professionals", h.ListProfessionals)
	api.GET("/professionals/:id", h.GetProfessional)
	api.PATCH("/professionals/:id", h.UpdateProfessional)

	admin := api.Group("", auth.RequireRole(access.RoleAdmin))
	admin.POST("/users", h.Register)
}

func (h *Handler) GetMe(c echo.Context) error {
	ctx := c.Request().Context()
	me, err := h.svc.Me(ctx, access.ActorFromContext(ctx))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, me)
}

func (h *Handler) Register(c echo.Context) error {
	var reg Registration
	if err := c.Bind(&reg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), &reg); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, reg)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.guard.Check(ctx, access.KindPatientProfile, access.OpRead, p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var upd PatientUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	existing, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.guard.Check(ctx, access.KindPatientProfile, access.OpWrite, existing); err != nil {
		return apperr.ToHTTP(err)
	}
	p, err := h.svc.UpdatePatient(ctx, id, upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProfessionals(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ProfessionalFilter{Specialty: c.QueryParam("specialty")}
	if v := c.QueryParam("accepting_patients"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid accepting_patients")
		}
		filter.AcceptingPatients = &b
	}
	items, total, err := h.svc.ListProfessionals(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetProfessional(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetProfessional(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateProfessional is limited to the profile's owner and admins.
func (h *Handler) UpdateProfessional(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var upd ProfessionalUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	actor := access.ActorFromContext(ctx)
	if actor == nil {
		return apperr.ToHTTP(apperr.Authentication("actor not resolved"))
	}
	if _, err := h.svc.GetProfessional(ctx, id); err != nil {
		return apperr.ToHTTP(err)
	}
	own := actor.ProfessionalProfileID != nil && *actor.ProfessionalProfileID == id
	if !actor.IsAdmin() && !own {
		return apperr.ToHTTP(apperr.Forbidden("only the profile owner may update it"))
	}
	p, err := h.svc.UpdateProfessional(ctx, id, upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}
