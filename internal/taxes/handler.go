package taxes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/koreacc/koreacc/internal/platform/httpx"
)

// Handler exposes tax rule management over HTTP.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/effective", h.effective)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

const dateLayout = "2006-01-02"

type ruleResponse struct {
	ID        int64   `json:"id"`
	CompanyID int64   `json:"companyId"`
	Name      string  `json:"name"`
	Mode      string  `json:"mode"`
	AppliesTo string  `json:"appliesTo"`
	Rate      string  `json:"rate"`
	FixedFee  string  `json:"fixedFee"`
	AccountID int64   `json:"accountId"`
	ValidFrom string  `json:"validFrom"`
	ValidTo   *string `json:"validTo,omitempty"`
}

func toResponse(t TaxRule) ruleResponse {
	resp := ruleResponse{
		ID:        t.ID,
		CompanyID: t.CompanyID,
		Name:      t.Name,
		Mode:      string(t.Mode),
		AppliesTo: string(t.AppliesTo),
		Rate:      t.Rate.String(),
		FixedFee:  t.FixedFee.String(),
		AccountID: t.AccountID,
		ValidFrom: t.ValidFrom.Format(dateLayout),
	}
	if t.ValidTo != nil {
		v := t.ValidTo.Format(dateLayout)
		resp.ValidTo = &v
	}
	return resp
}

type createRequest struct {
	CompanyID int64   `json:"companyId" validate:"required"`
	Name      string  `json:"name"`
	Mode      string  `json:"mode" validate:"required,oneof=RATE FIXED EXEMPT"`
	AppliesTo string  `json:"appliesTo" validate:"required,oneof=INCOME EXPENSE BOTH"`
	Rate      string  `json:"rate"`
	FixedFee  string  `json:"fixedFee"`
	AccountID int64   `json:"accountId"`
	ValidFrom string  `json:"validFrom" validate:"required"`
	ValidTo   *string `json:"validTo"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateInput{
		CompanyID: req.CompanyID,
		Name:      req.Name,
		Mode:      Mode(req.Mode),
		AppliesTo: AppliesTo(req.AppliesTo),
		AccountID: req.AccountID,
	}
	var err error
	if req.Rate != "" {
		if in.Rate, err = decimal.NewFromString(req.Rate); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid rate")
			return
		}
	}
	if req.FixedFee != "" {
		if in.FixedFee, err = decimal.NewFromString(req.FixedFee); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fixedFee")
			return
		}
	}
	if in.ValidFrom, err = time.Parse(dateLayout, req.ValidFrom); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid validFrom, want YYYY-MM-DD")
		return
	}
	if req.ValidTo != nil {
		to, err := time.Parse(dateLayout, *req.ValidTo)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid validTo, want YYYY-MM-DD")
			return
		}
		in.ValidTo = &to
	}
	t, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	list, err := h.svc.List(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	flowKind := r.URL.Query().Get("flowKind")
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date, want YYYY-MM-DD")
		return
	}
	list, err := h.svc.Effective(r.Context(), companyID, flowKind, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(t))
}

type updateRequest struct {
	Name         *string `json:"name"`
	Mode         *string `json:"mode"`
	AppliesTo    *string `json:"appliesTo"`
	Rate         *string `json:"rate"`
	FixedFee     *string `json:"fixedFee"`
	AccountID    *int64  `json:"accountId"`
	ValidFrom    *string `json:"validFrom"`
	ValidTo      *string `json:"validTo"`
	ClearValidTo bool    `json:"clearValidTo"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in := UpdateInput{Name: req.Name, AccountID: req.AccountID, ClearValidTo: req.ClearValidTo}
	if req.Mode != nil {
		m := Mode(*req.Mode)
		in.Mode = &m
	}
	if req.AppliesTo != nil {
		a := AppliesTo(*req.AppliesTo)
		in.AppliesTo = &a
	}
	if req.Rate != nil {
		rate, err := decimal.NewFromString(*req.Rate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid rate")
			return
		}
		in.Rate = &rate
	}
	if req.FixedFee != nil {
		fee, err := decimal.NewFromString(*req.FixedFee)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fixedFee")
			return
		}
		in.FixedFee = &fee
	}
	if req.ValidFrom != nil {
		from, err := time.Parse(dateLayout, *req.ValidFrom)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid validFrom, want YYYY-MM-DD")
			return
		}
		in.ValidFrom = &from
	}
	if req.ValidTo != nil {
		to, err := time.Parse(dateLayout, *req.ValidTo)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid validTo, want YYYY-MM-DD")
			return
		}
		in.ValidTo = &to
	}
	t, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
