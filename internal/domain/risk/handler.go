package risk

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
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
	api.POST("/patients/:id/predictions", h.CreatePrediction)
	api.GET("/patients/:id/predictions", h.ListPredictions)
	api.GET("/patients/:id/predictions/latest", h.GetLatestPrediction)
	api.GET("/patients/:id/recommendations", h.ListRecommendations)
	api.GET("/recommendations/:id", h.GetRecommendation)
	api.PUT("/recommendations/:id/status", h.UpdateRecommendationStatus)
}

func (h *Handler) patient(c echo.Context, kind access.Kind, op access.Operation) (uuid.UUID, error) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := h.guard.Check(c.Request().Context(), kind, op, access.PatientRef(patientID)); err != nil {
		return uuid.Nil, apperr.ToHTTP(err)
	}
	return patientID, nil
}

func (h *Handler) CreatePrediction(c echo.Context) error {
	patientID, err := h.patient(c, access.KindRiskAssessment, access.OpWrite)
	if err != nil {
		return err
	}
	result, err := h.svc.Assess(c.Request().Context(), patientID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetLatestPrediction(c echo.Context) error {
	patientID, err := h.patient(c, access.KindRiskAssessment, access.OpRead)
	if err != nil {
		return err
	}
	a, err := h.svc.Latest(c.Request().Context(), patientID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListPredictions(c echo.Context) error {
	patientID, err := h.patient(c, access.KindRiskAssessment, access.OpRead)
	if err != nil {
		return err
	}
	days := 0
	if v := c.QueryParam("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be an integer")
		}
	}
	items, err := h.svc.History(c.Request().Context(), patientID, days)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Window(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) ListRecommendations(c echo.Context) error {
	patientID, err := h.patient(c, access.KindRecommendation, access.OpRead)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRecommendations(c.Request().Context(), patientID, Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetRecommendation(c echo.Context) error {
	r, err := h.loadRecommendation(c, access.OpRead)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateRecommendationStatus(c echo.Context) error {
	r, err := h.loadRecommendation(c, access.OpWrite)
	if err != nil {
		return err
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateRecommendationStatus(c.Request().Context(), r, body.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) loadRecommendation(c echo.Context, op access.Operation) (*Recommendation, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	r, err := h.svc.GetRecommendation(ctx, id)
	if err != nil {
		return nil, apperr.ToHTTP(err)
	}
	if err := h.guard.Check(ctx, access.KindRecommendation, op, r); err != nil {
		return nil, apperr.ToHTTP(err)
	}
	return r, nil
}
