package handler

import (
	"net/http"
	"time"

	"tutorbook/internal/availability/service"
	"tutorbook/pkg/calendar"
	apperrors "tutorbook/pkg/errors"
	httputil "tutorbook/pkg/http"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/middleware"
	"tutorbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service  service.AvailabilityService
	maxRange time.Duration
	log      *logger.Logger
}

type EffectiveResponse struct {
	TutorID   string              `json:"tutor_id"`
	From      time.Time           `json:"from"`
	To        time.Time           `json:"to"`
	Intervals []calendar.Interval `json:"intervals"`
}

func NewAvailabilityHandler(service service.AvailabilityService, maxRange time.Duration, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service:  service,
		maxRange: maxRange,
		log:      log,
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/tutors/:tutor_id/availability", h.AddWindow)
	router.GET("/api/v1/tutors/:tutor_id/availability", h.ListEffective)
	router.GET("/api/v1/tutors/:tutor_id/availability/windows", h.ListWindows)
	router.DELETE("/api/v1/tutors/:tutor_id/availability/:id", h.RemoveWindow)
}

func (h *AvailabilityHandler) AddWindow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tutorID := ps.ByName("tutor_id")
	if err := h.authorizeTutor(r, tutorID); err != nil {
		h.writeError(w, "AddWindow", err)
		return
	}

	var window model.AvailabilityWindow
	if err := httputil.DecodeJSON(r, &window); err != nil {
		h.writeError(w, "AddWindow", err)
		return
	}
	window.TutorID = tutorID

	created, err := h.service.AddWindow(r.Context(), &window)
	if err != nil {
		h.writeError(w, "AddWindow", err)
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "AddWindow", "operation", "WriteCreated", "error", err)
	}
}

func (h *AvailabilityHandler) RemoveWindow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tutorID := ps.ByName("tutor_id")
	if err := h.authorizeTutor(r, tutorID); err != nil {
		h.writeError(w, "RemoveWindow", err)
		return
	}

	if err := h.service.RemoveWindow(r.Context(), tutorID, ps.ByName("id")); err != nil {
		h.writeError(w, "RemoveWindow", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AvailabilityHandler) ListWindows(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	windows, err := h.service.ListWindows(r.Context(), ps.ByName("tutor_id"))
	if err != nil {
		h.writeError(w, "ListWindows", err)
		return
	}

	if err := httputil.WriteSuccess(w, windows); err != nil {
		h.log.Error("failed to write success response", "handler", "ListWindows", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) ListEffective(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rng, err := httputil.ExtractTimeRange(r, h.maxRange)
	if err != nil {
		h.writeError(w, "ListEffective", err)
		return
	}

	tutorID := ps.ByName("tutor_id")
	intervals, err := h.service.ListEffectiveWindows(r.Context(), tutorID, rng.Start, rng.End)
	if err != nil {
		h.writeError(w, "ListEffective", err)
		return
	}

	if err := httputil.WriteSuccess(w, EffectiveResponse{
		TutorID:   tutorID,
		From:      rng.Start,
		To:        rng.End,
		Intervals: intervals,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "ListEffective", "operation", "WriteSuccess", "error", err)
	}
}

// Only the tutor may change their own availability.
func (h *AvailabilityHandler) authorizeTutor(r *http.Request, tutorID string) error {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		return err
	}
	if actor.Role != model.RoleTutor || actor.ID != tutorID {
		return apperrors.Forbidden("Only the tutor may manage their availability")
	}
	return nil
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
