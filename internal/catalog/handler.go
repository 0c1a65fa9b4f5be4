package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"wisebox-backend/internal/cache"
	"wisebox-backend/internal/middleware"
	"wisebox-backend/internal/transport"
)

const cacheKey = "catalog:v1"

type Handler struct {
	catalog *Catalog
	cache   cache.Cache
	ttl     time.Duration
	log     *slog.Logger
}

func NewHandler(c *Catalog, store cache.Cache, ttl time.Duration, log *slog.Logger) *Handler {
	if store == nil {
		store = cache.Disabled
	}
	return &Handler{catalog: c, cache: store, ttl: ttl, log: log}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.log
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		log = log.With(slog.String("request_id", id))
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if raw, ok, err := h.cache.Get(ctx, cacheKey); err == nil && ok {
		var tables Tables
		if err := json.Unmarshal(raw, &tables); err == nil {
			transport.WriteJSON(w, http.StatusOK, tables)
			return
		}
	} else if err != nil {
		log.Warn("catalog get: cache error", slog.String("error", err.Error()))
	}

	tables := h.catalog.Tables()
	if raw, err := json.Marshal(tables); err == nil {
		if err := h.cache.Set(ctx, cacheKey, raw, h.ttl); err != nil {
			log.Warn("catalog get: cache set failed", slog.String("error", err.Error()))
		}
	}
	transport.WriteJSON(w, http.StatusOK, tables)
}
