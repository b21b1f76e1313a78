package ledger

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

// Handler exposes the posting engine over HTTP.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Post("/permissive", h.createPermissive)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/movements", h.addMovements)
	r.Put("/{id}/movements", h.replaceMovements)
	r.Post("/{id}/state", h.changeState)
}

const dateLayout = "2006-01-02"

type movementRequest struct {
	AccountID     int64  `json:"accountId" validate:"required"`
	Date          string `json:"date"`
	Side          string `json:"side" validate:"required,oneof=DEBIT CREDIT"`
	Amount        string `json:"amount" validate:"required"`
	CostCenterID  *int64 `json:"costCenterId"`
	TaxDocumentID string `json:"taxDocumentId"`
	Counterparty  string `json:"counterparty"`
}

func (m movementRequest) toInput() (MovementInput, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return MovementInput{}, err
	}
	in := MovementInput{
		AccountID:     m.AccountID,
		Side:          Side(m.Side),
		Amount:        amount,
		CostCenterID:  m.CostCenterID,
		TaxDocumentID: m.TaxDocumentID,
		Counterparty:  m.Counterparty,
	}
	if m.Date != "" {
		if in.Date, err = time.Parse(dateLayout, m.Date); err != nil {
			return MovementInput{}, err
		}
	}
	return in, nil
}

type movementResponse struct {
	ID            int64   `json:"id"`
	AccountID     int64   `json:"accountId"`
	Date          string  `json:"date"`
	Side          string  `json:"side"`
	Amount        string  `json:"amount"`
	CostCenterID  *int64  `json:"costCenterId,omitempty"`
	TaxDocumentID *string `json:"taxDocumentId,omitempty"`
	Counterparty  string  `json:"counterparty,omitempty"`
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		ID:            m.ID,
		AccountID:     m.AccountID,
		Date:          m.Date.Format(dateLayout),
		Side:          string(m.Side),
		Amount:        m.Amount.StringFixed(2),
		CostCenterID:  m.CostCenterID,
		TaxDocumentID: m.TaxDocumentID,
		Counterparty:  m.Counterparty,
	}
}

type entryResponse struct {
	ID            int64              `json:"id"`
	CompanyID     int64              `json:"companyId"`
	DocTypeID     int64              `json:"docTypeId"`
	PeriodID      int64              `json:"periodId"`
	AuthorID      int64              `json:"authorId"`
	CostCenterID  int64              `json:"costCenterId"`
	Folio         string             `json:"folio"`
	Memo          string             `json:"memo"`
	State         string             `json:"state"`
	EntryDate     string             `json:"entryDate"`
	Consecutive   int                `json:"consecutive"`
	FiscalYear    int                `json:"fiscalYear"`
	FiscalMonth   int                `json:"fiscalMonth"`
	OriginEntryID *int64             `json:"originEntryId,omitempty"`
	Movements     []movementResponse `json:"movements,omitempty"`
}

func toEntryResponse(e Entry, movs []Movement) entryResponse {
	resp := entryResponse{
		ID:            e.ID,
		CompanyID:     e.CompanyID,
		DocTypeID:     e.DocTypeID,
		PeriodID:      e.PeriodID,
		AuthorID:      e.AuthorID,
		CostCenterID:  e.CostCenterID,
		Folio:         e.Folio,
		Memo:          e.Memo,
		State:         string(e.State),
		EntryDate:     e.EntryDate.Format(dateLayout),
		Consecutive:   e.Consecutive,
		FiscalYear:    e.FiscalYear,
		FiscalMonth:   e.FiscalMonth,
		OriginEntryID: e.OriginEntryID,
	}
	for _, m := range movs {
		resp.Movements = append(resp.Movements, toMovementResponse(m))
	}
	return resp
}

type createRequest struct {
	CompanyID    int64             `json:"companyId" validate:"required"`
	DocTypeID    int64             `json:"docTypeId" validate:"required"`
	PeriodID     int64             `json:"periodId" validate:"required"`
	CostCenterID int64             `json:"costCenterId" validate:"required"`
	Memo         string            `json:"memo" validate:"required"`
	EntryDate    string            `json:"entryDate" validate:"required"`
	Movements    []movementRequest `json:"movements" validate:"required,min=2,dive"`
}

func (h *Handler) decodeCreate(w http.ResponseWriter, r *http.Request) (CreateInput, bool) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return CreateInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return CreateInput{}, false
	}
	date, err := time.Parse(dateLayout, req.EntryDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entryDate, want YYYY-MM-DD")
		return CreateInput{}, false
	}
	in := CreateInput{
		CompanyID:    req.CompanyID,
		DocTypeID:    req.DocTypeID,
		PeriodID:     req.PeriodID,
		AuthorID:     shared.ActorFromContext(r.Context()),
		CostCenterID: req.CostCenterID,
		Memo:         req.Memo,
		EntryDate:    date,
	}
	for _, m := range req.Movements {
		mi, err := m.toInput()
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid movement: "+err.Error())
			return CreateInput{}, false
		}
		in.Movements = append(in.Movements, mi)
	}
	return in, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movs, _ := h.svc.repo.ListMovements(r.Context(), e.ID)
	httpx.JSON(w, http.StatusCreated, toEntryResponse(e, movs))
}

func (h *Handler) createPermissive(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	e, err := h.svc.CreatePermissive(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movs, _ := h.svc.repo.ListMovements(r.Context(), e.ID)
	httpx.JSON(w, http.StatusCreated, toEntryResponse(e, movs))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f Filter
	f.CompanyID, _ = strconv.ParseInt(q.Get("companyId"), 10, 64)
	f.PeriodID, _ = strconv.ParseInt(q.Get("periodId"), 10, 64)
	f.DocTypeID, _ = strconv.ParseInt(q.Get("docTypeId"), 10, 64)
	f.CostCenterID, _ = strconv.ParseInt(q.Get("costCenterId"), 10, 64)
	f.State = EntryState(q.Get("state"))
	if v := q.Get("from"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid from, want YYYY-MM-DD")
			return
		}
		f.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid to, want YYYY-MM-DD")
			return
		}
		f.To = &d
	}
	list, err := h.svc.List(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryResponse(e, nil))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	e, movs, err := h.svc.GetWithMovements(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(e, movs))
}

type updateRequest struct {
	Memo         *string `json:"memo"`
	EntryDate    *string `json:"entryDate"`
	CostCenterID *int64  `json:"costCenterId"`
	DocTypeID    *int64  `json:"docTypeId"`
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
	in := UpdateInput{Memo: req.Memo, CostCenterID: req.CostCenterID, DocTypeID: req.DocTypeID}
	if req.EntryDate != nil {
		d, err := time.Parse(dateLayout, *req.EntryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entryDate, want YYYY-MM-DD")
			return
		}
		in.EntryDate = &d
	}
	e, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(e, nil))
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

func (h *Handler) decodeMovements(w http.ResponseWriter, r *http.Request) ([]MovementInput, bool) {
	var req []movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return nil, false
	}
	out := make([]MovementInput, 0, len(req))
	for _, m := range req {
		if err := h.validate.Struct(m); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return nil, false
		}
		mi, err := m.toInput()
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid movement: "+err.Error())
			return nil, false
		}
		out = append(out, mi)
	}
	return out, true
}

func (h *Handler) addMovements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	movs, ok := h.decodeMovements(w, r)
	if !ok {
		return
	}
	if err := h.svc.AddMovements(r.Context(), id, movs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, all, err := h.svc.GetWithMovements(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(e, all))
}

func (h *Handler) replaceMovements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	movs, ok := h.decodeMovements(w, r)
	if !ok {
		return
	}
	if err := h.svc.ReplaceMovements(r.Context(), id, movs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, all, err := h.svc.GetWithMovements(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(e, all))
}

type stateRequest struct {
	State string `json:"state" validate:"required,oneof=DRAFT APPROVED POSTED"`
}

func (h *Handler) changeState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req stateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	e, err := h.svc.ChangeState(r.Context(), id, EntryState(req.State))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(e, nil))
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
