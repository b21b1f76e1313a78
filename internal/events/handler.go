package events

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/koreacc/koreacc/internal/platform/httpx"
	"github.com/koreacc/koreacc/internal/shared"
)

// Handler exposes event expansion over HTTP.
type Handler struct {
	svc      *Service
	mappings *Repository
	validate *validator.Validate
}

func NewHandler(svc *Service, mappings *Repository) *Handler {
	return &Handler{svc: svc, mappings: mappings, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.post)
	r.Post("/preview", h.preview)
	r.Get("/flow-accounts", h.listMappings)
	r.Put("/flow-accounts", h.upsertMapping)
}

const dateLayout = "2006-01-02"

type eventRequest struct {
	CompanyID            int64  `json:"companyId" validate:"required"`
	CostCenterID         int64  `json:"costCenterId" validate:"required"`
	DocTypeID            int64  `json:"docTypeId" validate:"required"`
	PeriodID             int64  `json:"periodId" validate:"required"`
	FlowKind             string `json:"flowKind" validate:"required,oneof=INCOME EXPENSE"`
	BaseAmount           string `json:"baseAmount" validate:"required"`
	Date                 string `json:"date" validate:"required"`
	PaymentChannel       string `json:"paymentChannel" validate:"required,oneof=BANK CASH RECEIVABLE PAYABLE"`
	CounterpartAccountID int64  `json:"counterpartAccountId" validate:"required"`
	Memo                 string `json:"memo" validate:"required"`
}

func (h *Handler) decodeEvent(w http.ResponseWriter, r *http.Request) (Event, bool) {
	var req eventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return Event{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Event{}, false
	}
	base, err := decimal.NewFromString(req.BaseAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid baseAmount")
		return Event{}, false
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date, want YYYY-MM-DD")
		return Event{}, false
	}
	return Event{
		CompanyID:            req.CompanyID,
		CostCenterID:         req.CostCenterID,
		DocTypeID:            req.DocTypeID,
		PeriodID:             req.PeriodID,
		FlowKind:             FlowKind(req.FlowKind),
		BaseAmount:           base,
		Date:                 date,
		PaymentChannel:       PaymentChannel(req.PaymentChannel),
		CounterpartAccountID: req.CounterpartAccountID,
		Memo:                 req.Memo,
	}, true
}

type previewLine struct {
	AccountID int64  `json:"accountId"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	movs, err := h.svc.Preview(r.Context(), ev)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]previewLine, 0, len(movs))
	for _, m := range movs {
		out = append(out, previewLine{AccountID: m.AccountID, Side: string(m.Side), Amount: m.Amount.StringFixed(2)})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Post(r.Context(), ev, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"entryId": e.ID,
		"folio":   e.Folio,
		"state":   e.State,
	})
}

func (h *Handler) listMappings(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	list, err := h.mappings.List(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type mappingRequest struct {
	CompanyID int64  `json:"companyId" validate:"required"`
	Channel   string `json:"channel" validate:"required,oneof=BANK CASH RECEIVABLE PAYABLE"`
	AccountID int64  `json:"accountId" validate:"required"`
}

func (h *Handler) upsertMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.mappings.Upsert(r.Context(), req.CompanyID, PaymentChannel(req.Channel), req.AccountID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
