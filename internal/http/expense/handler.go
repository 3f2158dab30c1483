package expense

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/http/respond"
	"github.com/MrJamesThe3rd/treevu/internal/importer"
)

const maxUploadSize = 10 << 20

type Handler struct {
	engine *account.Engine
	parser *importer.Parser
}

func NewHandler(engine *account.Engine, parser *importer.Parser) *Handler {
	return &Handler{engine: engine, parser: parser}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Post("/import", h.importCSV)
	r.Post("/skip", h.skip)
	r.Get("/{expenseID}", h.get)
	r.Patch("/{expenseID}", h.update)
	r.Delete("/{expenseID}", h.delete)
}

// createExpenseRequest is the candidate delivered by the capture flow.
// ClassificationFailed turns it into a low-confidence manual entry.
type createExpenseRequest struct {
	Merchant             string           `json:"merchant"`
	Amount               decimal.Decimal  `json:"amount"`
	Category             expense.Category `json:"category"`
	IsFormal             bool             `json:"is_formal"`
	Date                 *time.Time       `json:"date,omitempty"`
	Source               expense.Source   `json:"source,omitempty"`
	Confidence           float64          `json:"confidence,omitempty"`
	ClassificationFailed bool             `json:"classification_failed,omitempty"`
}

func (req createExpenseRequest) candidate() expense.Candidate {
	c := expense.Candidate{
		Merchant:   req.Merchant,
		Amount:     req.Amount,
		Category:   req.Category,
		IsFormal:   req.IsFormal,
		Source:     req.Source,
		Confidence: req.Confidence,
	}

	if req.Date != nil {
		c.Date = *req.Date
	}

	if req.ClassificationFailed {
		c = expense.ManualFallback(c)
	}

	return c
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.RecordExpense(r.Context(), chi.URLParam(r, "accountID"), req.candidate())
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResultResponse(res, true))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.Expenses(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(records))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "expenseID"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	rec, err := h.engine.Expense(r.Context(), chi.URLParam(r, "accountID"), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(&rec))
}

type updateExpenseRequest struct {
	Merchant *string           `json:"merchant,omitempty"`
	Amount   *decimal.Decimal  `json:"amount,omitempty"`
	Category *expense.Category `json:"category,omitempty"`
	IsFormal *bool             `json:"is_formal,omitempty"`
	Date     *time.Time        `json:"date,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "expenseID"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.EditExpense(r.Context(), chi.URLParam(r, "accountID"), id, expense.Patch{
		Merchant: req.Merchant,
		Amount:   req.Amount,
		Category: req.Category,
		IsFormal: req.IsFormal,
		Date:     req.Date,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResultResponse(res, true))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "expenseID"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	p, err := h.engine.RemoveExpense(r.Context(), chi.URLParam(r, "accountID"), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResultResponse(account.ExpenseResult{Profile: p}, false))
}

func (h *Handler) skip(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.SkipExpense(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResultResponse(res, false))
}

// importCSV parses a receipts file and records every candidate in order.
// A failure part-way keeps what was recorded and reports it with 207.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	parsed, err := h.parser.Parse(file)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, importer.ErrUnknownFormat) {
			status = http.StatusUnprocessableEntity
		}

		http.Error(w, err.Error(), status)

		return
	}

	results, err := h.engine.RecordExpenses(r.Context(), chi.URLParam(r, "accountID"), parsed.Candidates)

	resp := importResponse{
		Format:   parsed.Profile,
		Encoding: parsed.Encoding,
		Imported: len(results),
		Skipped:  parsed.Skipped,
		Expenses: make([]expenseResponse, 0, len(results)),
	}

	for i := range results {
		resp.Expenses = append(resp.Expenses, toResponse(&results[i].Record))
	}

	if err != nil {
		if len(results) == 0 {
			respond.Error(w, r, err)
			return
		}

		resp.Error = err.Error()
		respond.JSON(w, http.StatusMultiStatus, resp)

		return
	}

	respond.JSON(w, http.StatusCreated, resp)
}
