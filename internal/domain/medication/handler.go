package medication

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
	api.GET("/patients/:id/prescriptions", h.ListPrescriptions)
	api.GET("/prescriptions/:id", h.GetPrescription)
	api.POST("/prescriptions/:id/refill", h.RefillPrescription)

	write := api.Group("", auth.RequireRole(access.RoleProfessional))
	write.POST("/prescriptions", h.CreatePrescription)
	write.PATCH("/prescriptions/:id", h.UpdatePrescription)
	write.POST("/prescriptions/:id/cancel", h.CancelPrescription)
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if actor := access.ActorFromContext(ctx); actor != nil && p.ProfessionalID == uuid.Nil && actor.ProfessionalProfileID != nil {
		p.ProfessionalID = *actor.ProfessionalProfileID
	}
	if err := h.guard.Check(ctx, access.KindPrescription, access.OpWrite, &p); err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.CreatePrescription(ctx, &p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	p, err := h.load(c, access.OpRead)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	ctx := c.Request().Context()
	if err := h.guard.Check(ctx, access.KindPrescription, access.OpRead, access.PatientRef(patientID)); err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(ctx, patientID, Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePrescription(c echo.Context) error {
	p, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	var upd PrescriptionUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdatePrescription(c.Request().Context(), p.ID, upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) CancelPrescription(c echo.Context) error {
	p, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cancelled, err := h.svc.CancelPrescription(c.Request().Context(), p.ID, body.Reason)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cancelled)
}

// RefillPrescription is open to the owning patient as well as the
// prescriber.
func (h *Handler) RefillPrescription(c echo.Context) error {
	p, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	refilled, err := h.svc.Refill(c.Request().Context(), p)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, refilled)
}

func (h *Handler) load(c echo.Context, op access.Operation) (*Prescription, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPrescription(ctx, id)
	if err != nil {
		return nil, apperr.ToHTTP(err)
	}
	if err := h.guard.Check(ctx, access.KindPrescription, op, p); err != nil {
		return nil, apperr.ToHTTP(err)
	}
	return p, nil
}
