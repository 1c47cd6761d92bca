package companies

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/biztime/internal/platform/httpx"
)

// Handler exposes the companies resource over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	errors  httpx.ErrorMapper
}

// NewHandler builds a Handler. strict selects 409/400 for duplicates and
// missing fields instead of 500.
func NewHandler(logger *slog.Logger, service *Service, strict bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:  logger,
		service: service,
		errors:  httpx.ErrorMapper{Strict: strict, Logger: logger},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.List(r.Context())
	if err != nil {
		h.errors.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Companies: summaries})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.errors.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, companyResponse{Company: detail})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CompanyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.errors.RespondError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.errors.RespondError(w, r, err)
		return
	}
	h.logger.Info("company created", slog.String("code", created.Code))
	httpx.JSON(w, http.StatusOK, companyResponse{Company: created})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var in CompanyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.errors.RespondError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), code, in)
	if err != nil {
		h.errors.RespondError(w, r, err)
		return
	}
	h.logger.Info("company updated", slog.String("code", code))
	httpx.JSON(w, http.StatusOK, companyResponse{Company: updated})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.service.Delete(r.Context(), code); err != nil {
		h.errors.RespondError(w, r, err)
		return
	}
	h.logger.Info("company deleted", slog.String("code", code))
	httpx.JSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}
