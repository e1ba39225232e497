package handler

import (
	"net/http"
	"strings"
	"time"

	"tutorbook/internal/bookings/repository"
	"tutorbook/internal/bookings/service"
	apperrors "tutorbook/pkg/errors"
	httputil "tutorbook/pkg/http"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/middleware"
	"tutorbook/pkg/model"
	"tutorbook/pkg/sanitizer"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service  service.BookingService
	maxRange time.Duration
	log      *logger.Logger
}

func NewBookingHandler(service service.BookingService, maxRange time.Duration, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:  service,
		maxRange: maxRange,
		log:      log,
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Request)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/respond", h.Respond)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/start", h.Start)
	router.POST("/api/v1/bookings/id/:id/complete", h.Complete)

	router.POST("/api/v1/holds", h.Hold)
	router.POST("/api/v1/holds/:token/confirm", h.ConfirmHold)
	router.DELETE("/api/v1/holds/:token", h.ReleaseHold)
}

func (h *BookingHandler) Request(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "Request", err)
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Request", err)
		return
	}

	booking, err := h.service.RequestBooking(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, "Request", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Request", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	booking, err := h.service.GetByID(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// List serves exactly one of tutor_id or student_id, optionally narrowed by
// a from/to range and a comma separated status list.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()
	tutorID := sanitizer.NormalizeIdentifier(query.Get("tutor_id"))
	studentID := sanitizer.NormalizeIdentifier(query.Get("student_id"))
	if (tutorID == "") == (studentID == "") {
		h.writeError(w, "List", apperrors.InvalidInput("exactly one of tutor_id or student_id is required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	filter, err := h.extractFilter(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	var (
		bookings []*model.Booking
		total    int64
	)
	if tutorID != "" {
		bookings, total, err = h.service.ListByTutor(r.Context(), actor, tutorID, filter, limit, offset)
	} else {
		bookings, total, err = h.service.ListByStudent(r.Context(), actor, studentID, filter, limit, offset)
	}
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Respond(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeStatus(w, r, ps, "Respond", func(actor model.Actor, id string, change *model.StatusChange) (*model.Booking, error) {
		if change.Accept == nil {
			return nil, apperrors.InvalidInput("accept is required")
		}
		return h.service.RespondToRequest(r.Context(), actor, id, change.Version, *change.Accept)
	})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeStatus(w, r, ps, "Cancel", func(actor model.Actor, id string, change *model.StatusChange) (*model.Booking, error) {
		return h.service.CancelBooking(r.Context(), actor, id, change.Version)
	})
}

func (h *BookingHandler) Start(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeStatus(w, r, ps, "Start", func(actor model.Actor, id string, change *model.StatusChange) (*model.Booking, error) {
		return h.service.StartSession(r.Context(), actor, id, change.Version)
	})
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeStatus(w, r, ps, "Complete", func(actor model.Actor, id string, change *model.StatusChange) (*model.Booking, error) {
		return h.service.CompleteSession(r.Context(), actor, id, change.Version)
	})
}

func (h *BookingHandler) Hold(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "Hold", err)
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Hold", err)
		return
	}

	hold, err := h.service.HoldSlot(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, "Hold", err)
		return
	}

	if err := httputil.WriteCreated(w, hold); err != nil {
		h.log.Error("failed to write created response", "handler", "Hold", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) ConfirmHold(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "ConfirmHold", err)
		return
	}

	var req model.HoldConfirmation
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(w, "ConfirmHold", err)
			return
		}
	}

	booking, err := h.service.ConfirmHold(r.Context(), actor, ps.ByName("token"), &req)
	if err != nil {
		h.writeError(w, "ConfirmHold", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "ConfirmHold", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) ReleaseHold(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "ReleaseHold", err)
		return
	}

	if err := h.service.ReleaseHold(r.Context(), actor, ps.ByName("token")); err != nil {
		h.writeError(w, "ReleaseHold", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	ps httprouter.Params,
	name string,
	apply func(actor model.Actor, id string, change *model.StatusChange) (*model.Booking, error),
) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	var change model.StatusChange
	if err := httputil.DecodeJSON(r, &change); err != nil {
		h.writeError(w, name, err)
		return
	}

	booking, err := apply(actor, ps.ByName("id"), &change)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) extractFilter(r *http.Request) (repository.Filter, error) {
	var filter repository.Filter

	rng, ok, err := httputil.ExtractOptionalTimeRange(r, h.maxRange)
	if err != nil {
		return filter, err
	}
	if ok {
		filter.From, filter.To = rng.Start, rng.End
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, name := range sanitizer.SanitizeSlice(strings.Split(raw, ","), sanitizer.NormalizeEnum) {
			status, ok := model.ParseBookingStatus(name)
			if !ok {
				return filter, apperrors.InvalidInput("invalid status parameter: " + name)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	return filter, nil
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
