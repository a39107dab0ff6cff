package emergency

import (
	"net/http"

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
	api.POST("/patients/:id/emergency-alerts", h.RaiseAlert)
	api.GET("/patients/:id/emergency-alerts", h.ListPatientAlerts)
	api.GET("/emergency-alerts/:id", h.GetAlert)
	api.POST("/emergency-alerts/:id/resolve", h.ResolveAlert)

	staff := api.Group("", auth.RequireRole(access.RoleProfessional))
	staff.GET("/emergency-alerts", h.ListAlerts)
	staff.POST("/emergency-alerts/:id/acknowledge", h.AcknowledgeAlert)
}

func (h *Handler) RaiseAlert(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var a Alert
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.PatientID = patientID
	ctx := c.Request().Context()
	if err := h.guard.Check(ctx, access.KindEmergencyAlert, access.OpWrite, access.PatientRef(patientID)); err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.Raise(ctx, access.ActorFromContext(ctx), &a); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListPatientAlerts(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	ctx := c.Request().Context()
	if err := h.guard.Check(ctx, access.KindEmergencyAlert, access.OpRead, access.PatientRef(patientID)); err != nil {
		return apperr.ToHTTP(err)
	}
	return h.list(c, Filter{PatientID: &patientID, Status: Status(c.QueryParam("status"))})
}

// ListAlerts is the staff queue. It defaults to active alerts.
func (h *Handler) ListAlerts(c echo.Context) error {
	status := Status(c.QueryParam("status"))
	if status == "" {
		status = StatusActive
	}
	return h.list(c, Filter{Status: status})
}

func (h *Handler) list(c echo.Context, f Filter) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAlerts(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetAlert(c echo.Context) error {
	a, err := h.load(c, access.OpRead)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AcknowledgeAlert(c echo.Context) error {
	a, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	acked, err := h.svc.Acknowledge(ctx, access.ActorFromContext(ctx), a)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, acked)
}

func (h *Handler) ResolveAlert(c echo.Context) error {
	a, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	var body struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	resolved, err := h.svc.Resolve(ctx, access.ActorFromContext(ctx), a, body.Note)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, resolved)
}

func (h *Handler) load(c echo.Context, op access.Operation) (*Alert, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetAlert(ctx, id)
	if err != nil {
		return nil, apperr.ToHTTP(err)
	}
	if err := h.guard.Check(ctx, access.KindEmergencyAlert, op, a); err != nil {
		return nil, apperr.ToHTTP(err)
	}
	return a, nil
}
