package propertyintake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wisebox-backend/internal/drafts"
	"wisebox-backend/internal/geocode"
	"wisebox-backend/internal/httpx"
	"wisebox-backend/internal/middleware"
	"wisebox-backend/internal/properties"
	"wisebox-backend/internal/storage"
	"wisebox-backend/internal/transport"
	"wisebox-backend/internal/validation"
	"wisebox-backend/internal/wizard"

	"github.com/go-chi/chi/v5"
)

const maxFilesPerUpload = 20

// ReceiptSender emails the owner once a record is stored.
type ReceiptSender interface {
	NotifyReceipt(ctx context.Context, rec properties.Record) error
}

type Handler struct {
	service        *Service
	val            *validation.Validator
	log            *slog.Logger
	maxUploadBytes int64
	receipts       ReceiptSender
}

// NewHandler caps multipart bodies at maxFilesPerUpload files of
// maxFileBytes each.
func NewHandler(service *Service, val *validation.Validator, log *slog.Logger, maxFileBytes int64) *Handler {
	if maxFileBytes <= 0 {
		maxFileBytes = storage.DefaultPolicy().MaxBytes
	}
	return &Handler{
		service:        service,
		val:            val,
		log:            log,
		maxUploadBytes: maxFileBytes*maxFilesPerUpload + 1<<20,
	}
}

func (h *Handler) WithReceipts(receipts ReceiptSender) *Handler {
	h.receipts = receipts
	return h
}

// Routes mounts the wizard API. It expects an authenticated principal in
// the request context.
func (h *Handler) Routes(upload func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Discard)
			r.Put("/property-type", h.SetPropertyType)
			r.Put("/ownership-type", h.SetOwnershipType)
			if upload != nil {
				r.With(upload).Post("/documents/{slot}/files", h.Upload)
			} else {
				r.Post("/documents/{slot}/files", h.Upload)
			}
			r.Patch("/documents/{slot}", h.UpdateDocumentMeta)
			r.Put("/possession", h.SetPossession)
			r.Post("/sellers", h.AddSeller)
			r.Patch("/sellers/{index}", h.UpdateSeller)
			r.Patch("/details", h.UpdateDetails)
			r.Post("/next", h.Next)
			r.Post("/previous", h.Previous)
			r.Post("/geocode", h.Geocode)
			r.Put("/pin", h.MovePin)
			r.Post("/draft", h.SaveDraft)
			r.Post("/submit", h.Submit)
		})
	})
	r.Route("/drafts", func(r chi.Router) {
		r.Get("/", h.ListDrafts)
		r.Post("/{id}/resume", h.ResumeDraft)
		r.Delete("/{id}", h.DeleteDraft)
	})
	return r
}

type valueRequest struct {
	Value string `json:"value" validate:"required"`
}

type fieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

type possessionRequest struct {
	HasPossession *bool `json:"hasPossession" validate:"required"`
}

type sizeRequest struct {
	Value string `json:"value"`
	Unit  string `json:"unit" validate:"required"`
}

type detailsRequest struct {
	Size         *sizeRequest `json:"size"`
	Valuation    *string      `json:"valuation"`
	PurchaseDate *string      `json:"purchaseDate"`
	Address      *string      `json:"address"`
}

type pinRequest struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lng *float64 `json:"lng" validate:"required"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	view := h.service.Create(ownerID(r))
	log.Info("wizard create: ok", slog.String("session_id", view.ID))
	transport.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "wizard get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) SetPropertyType(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !h.decode(w, r, "wizard property type", &req) {
		return
	}
	h.apply(w, r, "wizard property type", func(wz *wizard.Wizard) error {
		value, err := wizard.ParsePropertyType(req.Value)
		if err != nil {
			return err
		}
		return wz.SetPropertyType(value)
	})
}

func (h *Handler) SetOwnershipType(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !h.decode(w, r, "wizard ownership type", &req) {
		return
	}
	h.apply(w, r, "wizard ownership type", func(wz *wizard.Wizard) error {
		value, err := wizard.ParseOwnershipType(req.Value)
		if err != nil {
			return err
		}
		return wz.SetOwnershipType(value)
	})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	slot, ok := h.slotParam(w, r, "wizard upload")
	if !ok {
		return
	}

	headers, err := httpx.MultipartFiles(w, r, "files", h.maxUploadBytes)
	if err != nil {
		if errors.Is(err, httpx.ErrNoFiles) {
			transport.WriteError(w, http.StatusBadRequest, "no files in upload", map[string]string{"files": "required"})
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("wizard upload: body too large", slog.Int64("limit", tooLarge.Limit))
			transport.WriteError(w, http.StatusRequestEntityTooLarge, "upload too large", nil)
			return
		}
		log.Warn("wizard upload: invalid multipart body", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid multipart body", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	if len(headers) > maxFilesPerUpload {
		transport.WriteError(w, http.StatusBadRequest, "too many files", map[string]string{"files": "max=" + strconv.Itoa(maxFilesPerUpload)})
		return
	}

	uploads := make([]storage.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, storage.Upload{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return openPart(fh) },
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result, err := h.service.Upload(ctx, ownerID(r), chi.URLParam(r, "id"), slot, uploads)
	if err != nil {
		h.writeError(w, r, "wizard upload", err)
		return
	}

	log.Info("wizard upload: ok",
		slog.String("session_id", result.Session.ID),
		slog.String("slot", slot.String()),
		slog.Int("accepted", len(result.Accepted)),
		slog.Int("rejected", len(result.Rejected)),
	)
	transport.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) UpdateDocumentMeta(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r, "wizard document meta")
	if !ok {
		return
	}
	var req fieldRequest
	if !h.decode(w, r, "wizard document meta", &req) {
		return
	}
	h.apply(w, r, "wizard document meta", func(wz *wizard.Wizard) error {
		return wz.UpdateDocumentMeta(slot, wizard.DocumentField(req.Field), req.Value)
	})
}

func (h *Handler) SetPossession(w http.ResponseWriter, r *http.Request) {
	var req possessionRequest
	if !h.decode(w, r, "wizard possession", &req) {
		return
	}
	h.apply(w, r, "wizard possession", func(wz *wizard.Wizard) error {
		return wz.SetPossessionFlag(*req.HasPossession)
	})
}

func (h *Handler) AddSeller(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "wizard add seller", func(wz *wizard.Wizard) error {
		return wz.AddSeller()
	})
}

func (h *Handler) UpdateSeller(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid seller index", map[string]string{"index": "numeric"})
		return
	}
	var req fieldRequest
	if !h.decode(w, r, "wizard update seller", &req) {
		return
	}
	h.apply(w, r, "wizard update seller", func(wz *wizard.Wizard) error {
		return wz.UpdateSeller(index, wizard.SellerField(req.Field), req.Value)
	})
}

// UpdateDetails applies the given property detail fields. A changed address
// is geocoded right away; lookup failures only show up on the pin.
func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req detailsRequest
	if !h.decode(w, r, "wizard details", &req) {
		return
	}

	owner, id := ownerID(r), chi.URLParam(r, "id")
	view, err := h.service.Apply(owner, id, func(wz *wizard.Wizard) error {
		if req.Size != nil {
			unit, err := wizard.ParseSizeUnit(req.Size.Unit)
			if err != nil {
				return err
			}
			if err := wz.SetSize(req.Size.Value, unit); err != nil {
				return err
			}
		}
		if req.Valuation != nil {
			if err := wz.SetValuation(*req.Valuation); err != nil {
				return err
			}
		}
		if req.PurchaseDate != nil {
			if err := wz.SetPurchaseDate(*req.PurchaseDate); err != nil {
				return err
			}
		}
		if req.Address != nil {
			return wz.SetAddress(*req.Address)
		}
		return nil
	})
	if err != nil {
		h.writeError(w, r, "wizard details", err)
		return
	}

	if req.Address != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if mapView, err := h.service.Geocode(ctx, owner, id); err == nil {
			view.Map = mapView
			if !mapView.Pin.Resolved {
				log.Warn("wizard details: geocode failed", slog.String("error", mapView.Pin.LastError))
			}
		}
	}

	transport.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "wizard next", func(wz *wizard.Wizard) error {
		return wz.GoNext()
	})
}

func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "wizard previous", func(wz *wizard.Wizard) error {
		return wz.GoPrevious()
	})
}

func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	mapView, err := h.service.Geocode(ctx, ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "wizard geocode", err)
		return
	}
	if !mapView.Pin.Resolved {
		log.Warn("wizard geocode: unresolved", slog.String("error", mapView.Pin.LastError))
	}
	transport.WriteJSON(w, http.StatusOK, mapView)
}

func (h *Handler) MovePin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !h.decode(w, r, "wizard pin", &req) {
		return
	}
	mapView, err := h.service.MovePin(ownerID(r), chi.URLParam(r, "id"), geocode.Coordinates{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		h.writeError(w, r, "wizard pin", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, mapView)
}

func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	summary, err := h.service.SaveDraft(ctx, ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "wizard draft save", err)
		return
	}
	log.Info("wizard draft save: ok", slog.String("draft_id", summary.ID))
	transport.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	rec, err := h.service.Submit(ctx, ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "wizard submit", err)
		return
	}

	if h.receipts != nil {
		go h.sendReceipt(log, rec)
	}

	log.Info("wizard submit: ok", slog.String("property_id", rec.ID))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "property submitted",
		"id":      rec.ID,
	})
}

func (h *Handler) sendReceipt(log *slog.Logger, rec properties.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	if err := h.receipts.NotifyReceipt(ctx, rec); err != nil {
		log.Warn("wizard submit email: send failed",
			slog.String("property_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("wizard submit email: sent", slog.String("property_id", rec.ID))
}

func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.service.Discard(ctx, ownerID(r), id); err != nil {
		h.writeError(w, r, "wizard discard", err)
		return
	}
	log.Info("wizard discard: ok", slog.String("session_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListDrafts(ctx, ownerID(r))
	if err != nil {
		log.Error("wizard drafts list: store error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "draft store error", nil)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) ResumeDraft(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.service.ResumeDraft(ctx, ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "wizard draft resume", err)
		return
	}
	log.Info("wizard draft resume: ok", slog.String("session_id", view.ID), slog.String("draft_id", view.DraftID))
	transport.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.DeleteDraft(ctx, ownerID(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "wizard draft delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, area string, op func(*wizard.Wizard) error) {
	view, err := h.service.Apply(ownerID(r), chi.URLParam(r, "id"), op)
	if err != nil {
		h.writeError(w, r, area, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, area string, v interface{}) bool {
	log := h.logWithRequest(r)
	if err := httpx.DecodeJSON(r.Body, v); err != nil {
		log.Warn(area + ": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return false
	}
	if err := h.val.Struct(v); err != nil {
		log.Warn(area + ": validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return false
	}
	return true
}

// slotParam parses the {slot} path segment, e.g. "khatian.cs".
func (h *Handler) slotParam(w http.ResponseWriter, r *http.Request, area string) (wizard.Slot, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "slot"))
	slot, err := wizard.ParseSlot(raw)
	if err != nil {
		h.logWithRequest(r).Warn(area+": unknown slot", slog.String("slot", raw))
		transport.WriteCodedError(w, http.StatusBadRequest, "invalid_slot", "unknown document slot", map[string]string{"slot": raw})
		return wizard.Slot{}, false
	}
	return slot, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, area string, err error) {
	log := h.logWithRequest(r)

	var gate *wizard.GateError
	switch {
	case errors.As(err, &gate):
		details := make(map[string]string, len(gate.Missing))
		for _, field := range gate.Missing {
			details[field] = "required"
		}
		log.Warn(area+": step incomplete", slog.Int("step", gate.Step))
		transport.WriteCodedError(w, http.StatusUnprocessableEntity, "step_incomplete", err.Error(), details)
	case errors.Is(err, ErrNotFound):
		log.Warn(area + ": session not found")
		transport.WriteError(w, http.StatusNotFound, "wizard session not found", nil)
	case errors.Is(err, ErrForbidden):
		log.Warn(area + ": not the session owner")
		transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, drafts.ErrNotFound):
		log.Warn(area + ": draft not found")
		transport.WriteError(w, http.StatusNotFound, "draft not found", nil)
	case errors.Is(err, wizard.ErrSessionClosed):
		transport.WriteCodedError(w, http.StatusConflict, "session_closed", err.Error(), nil)
	case errors.Is(err, wizard.ErrTerminalStep):
		transport.WriteCodedError(w, http.StatusConflict, "terminal_step", err.Error(), nil)
	case errors.Is(err, wizard.ErrNotAtFinalStep):
		transport.WriteCodedError(w, http.StatusConflict, "not_at_final_step", err.Error(), nil)
	case errors.Is(err, wizard.ErrInvalidValue),
		errors.Is(err, wizard.ErrInvalidField),
		errors.Is(err, wizard.ErrInvalidSlot),
		errors.Is(err, wizard.ErrSellerIndex),
		errors.Is(err, ErrNoFiles),
		errors.Is(err, ErrInvalidCoordinates),
		errors.Is(err, properties.ErrIncompleteRecord):
		log.Warn(area+": rejected", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		log.Error(area+": timeout", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusGatewayTimeout, "timeout", nil)
	default:
		log.Error(area+": internal error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
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

func ownerID(r *http.Request) string {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p.UserID
}

func openPart(fh *multipart.FileHeader) (io.ReadCloser, error) {
	return fh.Open()
}
