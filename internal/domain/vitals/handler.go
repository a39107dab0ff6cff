package vitals

import (
	"net/http"
	"time"

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
	api.POST("/patients/:id/measurements", h.RecordMeasurement)
	api.GET("/patients/:id/measurements", h.ListMeasurements)
	api.GET("/measurements/:id", h.GetMeasurement)

	review := api.Group("", auth.RequireRole(access.RoleProfessional))
	review.PUT("/measurements/:id/validation", h.SetValidation)
}

func (h *Handler) RecordMeasurement(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var m Measurement
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.PatientID = patientID
	ctx := c.Request().Context()
	if err := h.guard.Check(ctx, access.KindVitalSign, access.OpWrite, access.PatientRef(patientID)); err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.Record(ctx, access.ActorFromContext(ctx), &m); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMeasurements(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	f := Filter{PatientID: patientID, Type: Type(c.QueryParam("type"))}
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid since, expected RFC3339")
		}
		f.Since = &t
	}
	ctx := c.Request().Context()
	if err := h.guard.Check(ctx, access.KindVitalSign, access.OpRead, access.PatientRef(patientID)); err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMeasurements(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetMeasurement(c echo.Context) error {
	m, err := h.load(c, access.OpRead)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) SetValidation(c echo.Context) error {
	m, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	var v Validation
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	updated, err := h.svc.SetValidation(ctx, access.ActorFromContext(ctx), m, v)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) load(c echo.Context, op access.Operation) (*Measurement, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	m, err := h.svc.GetMeasurement(ctx, id)
	if err != nil {
		return nil, apperr.ToHTTP(err)
	}
	if err := h.guard.Check(ctx, access.KindVitalSign, op, m); err != nil {
		return nil, apperr.ToHTTP(err)
	}
	return m, nil
}
