package htmlform

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/formentry/internal/domain/encounter"
	"github.com/ehr/formentry/internal/domain/identity"
	"github.com/ehr/formentry/internal/platform/auth"
	"github.com/ehr/formentry/pkg/pagination"
)

type Handler struct {
	svc    *Services
	loader Loader
}

func NewHandler(svc *Services, loader Loader) *Handler {
	return &Handler{svc: svc, loader: loader}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "physician", "nurse")

	read := api.Group("", role)
	read.GET("/forms/:name/patients/:id", h.RenderForm)
	read.GET("/forms/:name/encounters/:id", h.ViewEncounter)
	read.GET("/patients/:id/encounters", h.ListEncounters)

	write := api.Group("", role)
	write.POST("/forms/:name/patients/:id", h.SubmitForm)
}

// SubmitResponse is returned by SubmitForm. Errors is set when validation
// failed and nothing was saved.
type SubmitResponse struct {
	Errors    []FormSubmissionError `json:"errors,omitempty"`
	Encounter *encounter.Encounter  `json:"encounter,omitempty"`
}

func (h *Handler) loadForm(c echo.Context) (*HtmlForm, error) {
	form, err := h.loader.Load(c.Param("name"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "form not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return form, nil
}

func (h *Handler) loadPatient(c echo.Context) (*identity.Patient, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := h.svc.Identity.GetPatient(c.Request().Context(), id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return p, nil
}

func (h *Handler) RenderForm(c echo.Context) error {
	form, err := h.loadForm(c)
	if err != nil {
		return err
	}
	patient, err := h.loadPatient(c)
	if err != nil {
		return err
	}
	s, err := NewSession(c.Request().Context(), h.svc, patient, nil, ModeEnter, form)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.HTML(http.StatusOK, s.HTMLToDisplay())
}

func (h *Handler) SubmitForm(c echo.Context) error {
	form, err := h.loadForm(c)
	if err != nil {
		return err
	}
	patient, err := h.loadPatient(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	s, err := NewSession(ctx, h.svc, patient, nil, ModeEnter, form)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	s.PrepareForSubmit()
	if errs := s.SubmissionController().ValidateSubmission(s.Context(), c.Request()); len(errs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, SubmitResponse{Errors: errs})
	}
	if err := s.SubmissionController().HandleFormSubmission(s, c.Request()); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created := s.SubmissionActions().EncountersToCreate()
	if len(created) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "form does not create an encounter")
	}
	if err := s.ApplyActions(ctx); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, SubmitResponse{Encounter: created[0]})
}

func (h *Handler) ViewEncounter(c echo.Context) error {
	form, err := h.loadForm(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	enc, err := h.svc.Encounters.GetEncounter(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	}
	s, err := NewSession(ctx, h.svc, enc.Patient, enc, ModeView, form)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.HTML(http.StatusOK, s.HTMLToDisplay())
}

func (h *Handler) ListEncounters(c echo.Context) error {
	pg := pagination.FromContext(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	encs, err := h.svc.Encounters.ListEncountersByPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	total := len(encs)
	start, end := pg.Bounds(total)
	resp := pagination.NewResponse(encs[start:end], total, pg)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return c.JSON(http.StatusOK, resp)
}
