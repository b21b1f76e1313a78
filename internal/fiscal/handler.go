package fiscal

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/koreacc/koreacc/internal/platform/httpx"
)

// Handler exposes the fiscal calendar over HTTP.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/exercises", func(r chi.Router) {
		r.Post("/", h.createExercise)
		r.Get("/", h.listExercises)
		r.Get("/selected", h.selectedExercise)
		r.Get("/{id}", h.getExercise)
		r.Patch("/{id}", h.updateExercise)
		r.Delete("/{id}", h.deleteExercise)
		r.Post("/{id}/open", h.openExercise)
		r.Post("/{id}/select", h.selectExercise)
		r.Post("/{id}/generate-periods", h.generatePeriods)
	})
	r.Route("/periods", func(r chi.Router) {
		r.Post("/", h.createPeriod)
		r.Get("/", h.listPeriods)
		r.Get("/for-date", h.periodForDate)
		r.Get("/{id}", h.getPeriod)
		r.Patch("/{id}", h.updatePeriod)
		r.Delete("/{id}", h.destroyPeriod)
		r.Post("/{id}/close", h.closePeriod)
		r.Post("/{id}/reopen", h.reopenPeriod)
	})
}

const dateLayout = "2006-01-02"

type exerciseResponse struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"companyId"`
	Year      int    `json:"year"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Open      bool   `json:"open"`
	Selected  bool   `json:"selected"`
}

func toExerciseResponse(ex Exercise) exerciseResponse {
	return exerciseResponse{
		ID:        ex.ID,
		CompanyID: ex.CompanyID,
		Year:      ex.Year,
		StartDate: ex.StartDate.Format(dateLayout),
		EndDate:   ex.EndDate.Format(dateLayout),
		Open:      ex.Open,
		Selected:  ex.Selected,
	}
}

type periodResponse struct {
	ID         int64  `json:"id"`
	CompanyID  int64  `json:"companyId"`
	ExerciseID int64  `json:"exerciseId"`
	Kind       string `json:"kind"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	Open       bool   `json:"open"`
}

func toPeriodResponse(p Period) periodResponse {
	return periodResponse{
		ID:         p.ID,
		CompanyID:  p.CompanyID,
		ExerciseID: p.ExerciseID,
		Kind:       string(p.Kind),
		StartDate:  p.StartDate.Format(dateLayout),
		EndDate:    p.EndDate.Format(dateLayout),
		Open:       p.Open,
	}
}

type createExerciseRequest struct {
	CompanyID int64  `json:"companyId" validate:"required"`
	Year      int    `json:"year" validate:"required"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

func (h *Handler) createExercise(w http.ResponseWriter, r *http.Request) {
	var req createExerciseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid startDate, want YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid endDate, want YYYY-MM-DD")
		return
	}
	ex, err := h.svc.CreateExercise(r.Context(), CreateExerciseInput{
		CompanyID: req.CompanyID,
		Year:      req.Year,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toExerciseResponse(ex))
}

func (h *Handler) listExercises(w http.ResponseWriter, r *http.Request) {
	var f ExerciseFilter
	f.CompanyID, _ = strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	f.Year, _ = strconv.Atoi(r.URL.Query().Get("year"))
	if v := r.URL.Query().Get("open"); v != "" {
		open := v == "true"
		f.Open = &open
	}
	list, err := h.svc.ListExercises(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]exerciseResponse, 0, len(list))
	for _, ex := range list {
		out = append(out, toExerciseResponse(ex))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) selectedExercise(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	ex, err := h.svc.SelectedExercise(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExerciseResponse(ex))
}

func (h *Handler) getExercise(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	ex, err := h.svc.GetExercise(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExerciseResponse(ex))
}

type updateExerciseRequest struct {
	Year      *int    `json:"year"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

func (h *Handler) updateExercise(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req updateExerciseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in := UpdateExerciseInput{Year: req.Year}
	if req.StartDate != nil {
		d, err := time.Parse(dateLayout, *req.StartDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid startDate, want YYYY-MM-DD")
			return
		}
		in.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid endDate, want YYYY-MM-DD")
			return
		}
		in.EndDate = &d
	}
	ex, err := h.svc.UpdateExercise(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExerciseResponse(ex))
}

func (h *Handler) deleteExercise(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.svc.DeleteExercise(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type openExerciseRequest struct {
	CloseOthers bool `json:"closeOthers"`
}

func (h *Handler) openExercise(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req openExerciseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	ex, err := h.svc.OpenExercise(r.Context(), id, req.CloseOthers)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExerciseResponse(ex))
}

func (h *Handler) selectExercise(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	ex, err := h.svc.SelectExercise(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExerciseResponse(ex))
}

type generatePeriodsRequest struct {
	Kind string `json:"kind" validate:"required"`
}

func (h *Handler) generatePeriods(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req generatePeriodsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.svc.GenerateFromCurrentMonth(r.Context(), id, PeriodKind(req.Kind))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type createPeriodRequest struct {
	CompanyID  int64  `json:"companyId" validate:"required"`
	ExerciseID int64  `json:"exerciseId" validate:"required"`
	Kind       string `json:"kind" validate:"required"`
	StartDate  string `json:"startDate" validate:"required"`
	EndDate    string `json:"endDate" validate:"required"`
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid startDate, want YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid endDate, want YYYY-MM-DD")
		return
	}
	p, err := h.svc.CreatePeriod(r.Context(), CreatePeriodInput{
		CompanyID:  req.CompanyID,
		ExerciseID: req.ExerciseID,
		Kind:       PeriodKind(req.Kind),
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPeriodResponse(p))
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	var f PeriodFilter
	f.CompanyID, _ = strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	f.ExerciseID, _ = strconv.ParseInt(r.URL.Query().Get("exerciseId"), 10, 64)
	f.Kind = PeriodKind(r.URL.Query().Get("kind"))
	if v := r.URL.Query().Get("open"); v != "" {
		open := v == "true"
		f.Open = &open
	}
	list, err := h.svc.ListPeriods(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]periodResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) periodForDate(w http.ResponseWriter, r *http.Request) {
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	d, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date, want YYYY-MM-DD")
		return
	}
	p, err := h.svc.PeriodForDate(r.Context(), companyID, d)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(p))
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	p, err := h.svc.GetPeriod(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(p))
}

type updatePeriodRequest struct {
	Kind      *string `json:"kind"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

func (h *Handler) updatePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req updatePeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	var in UpdatePeriodInput
	if req.Kind != nil {
		k := PeriodKind(*req.Kind)
		in.Kind = &k
	}
	if req.StartDate != nil {
		d, err := time.Parse(dateLayout, *req.StartDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid startDate, want YYYY-MM-DD")
			return
		}
		in.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid endDate, want YYYY-MM-DD")
			return
		}
		in.EndDate = &d
	}
	p, err := h.svc.UpdatePeriod(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(p))
}

func (h *Handler) destroyPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.svc.DestroyPeriod(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	p, err := h.svc.ClosePeriod(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(p))
}

func (h *Handler) reopenPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	p, err := h.svc.ReopenPeriod(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(p))
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
