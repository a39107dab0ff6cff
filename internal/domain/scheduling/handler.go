package scheduling

import (
	"net/http"
	"time"

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
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments", h.CreateAppointment)
	api.PATCH("/appointments/:id", h.UpdateAppointment)
	api.POST("/appointments/:id/cancel", h.CancelAppointment)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	ref := access.Ref{PatientID: a.PatientID, ProfessionalID: &a.ProfessionalID}
	if err := h.guard.Check(ctx, access.KindAppointment, access.OpWrite, ref); err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.CreateAppointment(ctx, &a); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.load(c, access.OpRead)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// ListAppointments pins patients to their own appointments and
// professionals to the ones they are booked on.
func (h *Handler) ListAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	actor := access.ActorFromContext(ctx)
	if actor == nil {
		return apperr.ToHTTP(apperr.Authentication("actor not resolved"))
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	switch actor.Role {
	case access.RolePatient:
		if actor.PatientProfileID == nil {
			return apperr.ToHTTP(apperr.Forbidden("patient has no profile"))
		}
		f.PatientID = actor.PatientProfileID
	case access.RoleProfessional:
		if actor.ProfessionalProfileID == nil {
			return apperr.ToHTTP(apperr.Forbidden("professional has no profile"))
		}
		f.ProfessionalID = actor.ProfessionalProfileID
	case access.RoleAdmin:
	default:
		return apperr.ToHTTP(apperr.Forbidden("role may not list appointments"))
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	a, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	var upd AppointmentUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateAppointment(c.Request().Context(), a.ID, upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	a, err := h.load(c, access.OpWrite)
	if err != nil {
		return err
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cancelled, err := h.svc.CancelAppointment(c.Request().Context(), a.ID, body.Reason)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cancelled)
}

func (h *Handler) load(c echo.Context, op access.Operation) (*Appointment, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetAppointment(ctx, id)
	if err != nil {
		return nil, apperr.ToHTTP(err)
	}
	if err := h.guard.Check(ctx, access.KindAppointment, op, a); err != nil {
		return nil, apperr.ToHTTP(err)
	}
	return a, nil
}

func parseFilter(c echo.Context) (Filter, error) {
	var f Filter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("professional_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid professional_id")
		}
		f.ProfessionalID = &id
	}
	f.Status = Status(c.QueryParam("status"))
	for param, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.QueryParam(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+param+", expected RFC3339")
		}
		*dst = &t
	}
	return f, nil
}
