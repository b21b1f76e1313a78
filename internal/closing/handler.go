package closing

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/koreacc/koreacc/internal/platform/httpx"
	"github.com/koreacc/koreacc/internal/shared"
)

// Handler exposes the closing engine over HTTP.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{exerciseID}", h.close)
	r.Post("/{exerciseID}/recompute-opening", h.recomputeOpening)
}

type closeRequest struct {
	ResultAccountID  int64 `json:"resultAccountId" validate:"required"`
	TransferToEquity bool  `json:"transferToEquity"`
	EquityAccountID  int64 `json:"equityAccountId"`
	CostCenterID     int64 `json:"costCenterId" validate:"required"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := strconv.ParseInt(chi.URLParam(r, "exerciseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid exercise id")
		return
	}
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.svc.Close(r.Context(), CloseInput{
		ExerciseID:       exerciseID,
		ResultAccountID:  req.ResultAccountID,
		TransferToEquity: req.TransferToEquity,
		EquityAccountID:  req.EquityAccountID,
		CostCenterID:     req.CostCenterID,
		ActorID:          shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type recomputeRequest struct {
	CostCenterID int64 `json:"costCenterId" validate:"required"`
}

func (h *Handler) recomputeOpening(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := strconv.ParseInt(chi.URLParam(r, "exerciseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid exercise id")
		return
	}
	var req recomputeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cf, err := h.svc.RecomputeOpening(r.Context(), exerciseID, shared.ActorFromContext(r.Context()), req.CostCenterID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cf)
}
