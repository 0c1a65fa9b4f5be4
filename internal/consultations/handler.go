package consultations

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wisebox-backend/internal/httpx"
	"wisebox-backend/internal/middleware"
	"wisebox-backend/internal/models"
	"wisebox-backend/internal/schedule"
	"wisebox-backend/internal/transport"
	"wisebox-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": h.service.Services(),
	})
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("serviceId"))
	if date == "" || serviceID == "" {
		log.Warn("consultations availability: missing query")
		transport.WriteError(w, http.StatusBadRequest, "date and serviceId are required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.service.Availability(ctx, date, serviceID)
	if err != nil {
		if h.writeScheduleError(w, log, "consultations availability", err) {
			return
		}
		log.Error("consultations availability: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("consultations availability: ok", slog.String("date", date), slog.Int("count", len(out.Slots)))
	transport.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req BookRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("consultations create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("consultations create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := h.service.Book(ctx, principal.UserID, req)
	if err != nil {
		if h.writeScheduleError(w, log, "consultations create", err) {
			return
		}
		log.Error("consultations create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if result.Free {
		log.Info("consultations create: free call redirect", slog.String("service_id", req.ServiceID))
		transport.WriteJSON(w, http.StatusOK, result)
		return
	}

	booked := *result.Consultation
	go h.sendConfirmation(log, booked)

	log.Info("consultations create: booked",
		slog.String("consultation_id", booked.ID),
		slog.String("date", booked.Date),
		slog.String("time", booked.Time),
	)

	resp := map[string]interface{}{"consultation": booked}
	if avail, err := h.service.Availability(ctx, booked.Date, booked.ServiceID); err == nil {
		resp["availableSlots"] = avail.Slots
	} else {
		log.Warn("consultations create: availability compute error", slog.String("error", err.Error()))
	}
	transport.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) sendConfirmation(log *slog.Logger, c models.Consultation) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	if err := h.service.NotifyConfirmation(ctx, c); err != nil {
		log.Warn("consultations email: send failed",
			slog.String("consultation_id", c.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("consultations email: sent", slog.String("consultation_id", c.ID))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 20, 100)
	if err != nil {
		log.Warn("consultations list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.service.ListOwn(ctx, principal.UserID, limit, offset)
	if err != nil {
		log.Error("consultations list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("consultations list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.service.Cancel(ctx, principal.UserID, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			log.Warn("consultations cancel: not found", slog.String("consultation_id", id))
			transport.WriteError(w, http.StatusNotFound, "consultation not found", nil)
		case errors.Is(err, ErrNotCancelable):
			log.Warn("consultations cancel: not cancelable", slog.String("consultation_id", id))
			transport.WriteCodedError(w, http.StatusConflict, "not_cancelable", err.Error(), nil)
		default:
			log.Error("consultations cancel: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("consultations cancel: ok", slog.String("consultation_id", id))
	transport.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 20, 100)
	if err != nil {
		log.Warn("admin consultations list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{
		UserID: r.URL.Query().Get("userId"),
		Status: r.URL.Query().Get("status"),
		Date:   r.URL.Query().Get("date"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.ListAdmin(ctx, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		if errors.Is(err, schedule.ErrInvalidDate) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"date": "date"})
			return
		}
		log.Error("admin consultations list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin consultations list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req AdminStatusUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin consultations status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin consultations status: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.service.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin consultations status: not found", slog.String("consultation_id", id))
			transport.WriteError(w, http.StatusNotFound, "consultation not found", nil)
			return
		}
		if h.writeScheduleError(w, log, "admin consultations status", err) {
			return
		}
		log.Error("admin consultations status: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin consultations status: ok", slog.String("consultation_id", id), slog.String("status", c.Status))
	transport.WriteJSON(w, http.StatusOK, c)
}

// writeScheduleError maps catalog and booking rule errors to client errors.
// It reports false when err is none of them.
func (h *Handler) writeScheduleError(w http.ResponseWriter, log *slog.Logger, area string, err error) bool {
	switch {
	case errors.Is(err, ErrUnknownService):
		log.Warn(area + ": service not found")
		transport.WriteError(w, http.StatusBadRequest, "service not found", map[string]string{"serviceId": "exists"})
	case errors.Is(err, schedule.ErrInvalidDate):
		log.Warn(area + ": invalid date")
		transport.WriteError(w, http.StatusBadRequest, "invalid date", map[string]string{"date": "date"})
	case errors.Is(err, schedule.ErrInvalidTime):
		log.Warn(area + ": invalid time")
		transport.WriteError(w, http.StatusBadRequest, "invalid time", map[string]string{"time": "clock"})
	case errors.Is(err, schedule.ErrDatePast):
		log.Warn(area + ": date in the past")
		transport.WriteCodedError(w, http.StatusBadRequest, "date_past", "date in the past", nil)
	case errors.Is(err, schedule.ErrSlotNotOffered):
		log.Warn(area + ": slot not offered")
		transport.WriteCodedError(w, http.StatusBadRequest, "slot_not_offered", "time slot not offered", nil)
	case errors.Is(err, schedule.ErrSlotPast):
		log.Warn(area + ": slot already passed")
		transport.WriteCodedError(w, http.StatusBadRequest, "slot_past", "time slot already passed", nil)
	case errors.Is(err, schedule.ErrSlotTaken):
		log.Warn(area + ": slot overlap")
		transport.WriteCodedError(w, http.StatusConflict, "slot_taken", "slot not available", nil)
	default:
		return false
	}
	return true
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
