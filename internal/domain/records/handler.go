package records

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
	api.GET("/patients/:id/medical-records", h.ListRecords)
	api.GET("/medical-records/:id", h.GetRecord)

	write := api.Group("", auth.RequireRole(access.RoleProfessional))
	write.POST("/medical-records", h.CreateRecord)
	write.PATCH("/medical-records/:id", h.UpdateRecord)
	write.DELETE("/medical-records/:id", h.DeleteRecord)
}

func (h *Handler) CreateRecord(c echo.Context) error {
	var r MedicalRecord
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.guard.Check(ctx, access.KindMedicalRecord, access.OpWrite, &r); err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.CreateRecord(ctx, access.ActorFromContext(ctx), &r); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRecord(c echo.Context) error {
	r, err := h.load(c, access.OpRead)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRecords(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	ctx := c.Request().Context()
	if err := h.guard.Check(ctx, access.KindMedicalRecord, access.OpRead, access.PatientRef(patientID)); err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(ctx, patientID, c.QueryParam("record_type"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	r, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	var upd MedicalRecordUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateRecord(c.Request().Context(), r.ID, upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	r, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRecord(c.Request().Context(), r); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) load(c echo.Context, op access.Operation) (*MedicalRecord, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	r, err := h.svc.GetRecord(ctx, id)
	if err != nil {
		return nil, apperr.ToHTTP(err)
	}
	if err := h.guard.Check(ctx, access.KindMedicalRecord, op, r); err != nil {
		return nil, apperr.ToHTTP(err)
	}
	return r, nil
}
