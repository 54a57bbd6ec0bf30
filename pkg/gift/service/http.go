package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/alged/giftstream/pkg/app/errors"
	apphttp "github.com/alged/giftstream/pkg/app/http"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers gift inventory endpoints on the given chi router.
// Mutating endpoints are guarded by requireAdmin.
func RegisterRoutes(r chi.Router, service Service, requireAdmin func(http.Handler) http.Handler, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/api/gifts", func(r chi.Router) {
		r.Get("/", apphttp.HandleError(h.list))
		r.Get("/stats", apphttp.HandleError(h.stats))
		r.Get("/{id}", apphttp.HandleError(h.get))

		r.Group(func(r chi.Router) {
			if requireAdmin != nil {
				r.Use(requireAdmin)
			}
			r.Post("/{id}/withdraw", apphttp.HandleError(h.withdraw))
			r.Post("/{id}/restore", apphttp.HandleError(h.restore))
			r.Post("/{id}/process", apphttp.HandleError(h.process))
		})
	})
}

func (h *HTTP) list(w http.ResponseWriter, r *http.Request) error {
	req := &ListRequest{
		FromID: r.URL.Query().Get("from_id"),
	}

	if v := r.URL.Query().Get("withdrawn"); v != "" {
		withdrawn, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid withdrawn filter")
		}
		req.Withdrawn = &withdrawn
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return apperrors.BadRequestError(err, "invalid limit")
		}
		req.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return apperrors.BadRequestError(err, "invalid offset")
		}
		req.Offset = offset
	}

	resp, err := h.service.ListGifts(r.Context(), req)
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) stats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, stats)
	return nil
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	rec, err := h.service.GetGift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, rec)
	return nil
}

func (h *HTTP) withdraw(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		ToID string `json:"to_id"`
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return apperrors.BadRequestError(err, "invalid JSON")
		}
	}

	rec, err := h.service.WithdrawGift(r.Context(), chi.URLParam(r, "id"), req.ToID)
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, rec)
	return nil
}

func (h *HTTP) restore(w http.ResponseWriter, r *http.Request) error {
	rec, err := h.service.RestoreGift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, rec)
	return nil
}

func (h *HTTP) process(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.ProcessGift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}
