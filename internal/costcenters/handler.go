package costcenters

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/koreacc/koreacc/internal/platform/httpx"
)

// Handler wires JSON endpoints for the cost-center tree.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the cost-center handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches tree routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/roots", h.roots)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
	r.Get("/{id}/children", h.children)
	r.Get("/{id}/subtree", h.subtree)
	r.Post("/{id}/move", h.move)
}

type createCenterRequest struct {
	Name       string `json:"name" validate:"required"`
	SaleSeries string `json:"sale_series"`
	Street     string `json:"street"`
	ExteriorNo int    `json:"exterior_no"`
	InteriorNo *int   `json:"interior_no"`
	PostalCode string `json:"postal_code"`
	Region     string `json:"region" validate:"required"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email"`
	ParentID   *int64 `json:"parent_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createCenterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	center, err := h.service.Create(r.Context(), CreateInput{
		Name:       req.Name,
		SaleSeries: req.SaleSeries,
		Street:     req.Street,
		ExteriorNo: req.ExteriorNo,
		InteriorNo: req.InteriorNo,
		PostalCode: req.PostalCode,
		Region:     req.Region,
		Phone:      req.Phone,
		Email:      req.Email,
		ParentID:   req.ParentID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, center)
}

func (h *Handler) roots(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListRoots(r.Context())
	if err != nil {
		h.logger.Error("list cost-center roots", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := centerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	center, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, center)
}

func (h *Handler) children(w http.ResponseWriter, r *http.Request) {
	id, err := centerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	out, err := h.service.ListChildren(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) subtree(w http.ResponseWriter, r *http.Request) {
	id, err := centerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	out, err := h.service.GetSubtree(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

type updateCenterRequest struct {
	Name       *string `json:"name"`
	SaleSeries *string `json:"sale_series"`
	Street     *string `json:"street"`
	Region     *string `json:"region"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := centerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req updateCenterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	center, err := h.service.Update(r.Context(), id, UpdateInput{
		Name: req.Name, SaleSeries: req.SaleSeries, Street: req.Street,
		Region: req.Region, Phone: req.Phone, Email: req.Email,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, center)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := centerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.SoftDeactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

type moveRequest struct {
	NewParentID *int64 `json:"new_parent_id"`
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	id, err := centerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	center, err := h.service.Move(r.Context(), id, req.NewParentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, center)
}

func centerID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
