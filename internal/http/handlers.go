package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/store"
)

// transactionsResponse is the collection view: the filtered subset plus
// the store lifecycle state, so the frontend renders loading and error
// banners from the same payload.
type transactionsResponse struct {
	State        store.State        `json:"state"`
	Error        string             `json:"error,omitempty"`
	Transactions []core.Transaction `json:"transactions"`
	Filters      core.Filters       `json:"filters"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	filtered := s.memo.Filtered(snap.Rev, snap.Transactions, snap.Filters)

	writeJSON(w, r, http.StatusOK, transactionsResponse{
		State:        snap.State,
		Error:        snap.Err,
		Transactions: filtered,
		Filters:      snap.Filters,
	})
}

// createRequest is the POST body. The ID is optional: a zero ID gets a
// fresh server-assigned one.
type createRequest struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Type        core.Type  `json:"type"`
	Category    string     `json:"category"`
	Date        string     `json:"date"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	t := core.Transaction{
		ID:          req.ID,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Type:        req.Type,
		Category:    strings.TrimSpace(req.Category),
		Date:        parseDate(req.Date),
	}

	created, err := s.store.Add(r.Context(), t)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Transaction create failed",
				log.FieldError, err,
				log.FieldDescription, t.Description,
				log.FieldOperation, log.OpAdd,
				log.FieldRequestID, trace.RequestID(r.Context()))
			writeError(w, r, status, "failed to save transactions")
			return
		}
		writeError(w, r, status, err.Error())
		return
	}

	writeJSON(w, r, http.StatusCreated, created)
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, "DELETE")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid transaction id")
		return
	}

	// Removing an absent ID is still a success: the collection already
	// looks the way the caller asked for.
	if err := s.store.Remove(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Transaction remove failed",
			log.FieldError, err,
			log.FieldTransactionID, id,
			log.FieldOperation, log.OpRemove,
			log.FieldRequestID, trace.RequestID(r.Context()))
		writeError(w, r, http.StatusInternalServerError, "failed to save transactions")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]int64{"removed": id})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}

	snap := s.store.Snapshot()
	cats := s.memo.Categories(snap.Rev, snap.Transactions)
	writeJSON(w, r, http.StatusOK, map[string][]string{"categories": cats})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}

	snap := s.store.Snapshot()
	sum := s.memo.Summary(snap.Rev, snap.Transactions, snap.Filters)
	writeJSON(w, r, http.StatusOK, sum)
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}

	snap := s.store.Snapshot()
	rows := s.memo.CategoryChart(snap.Rev, snap.Transactions, snap.Filters)
	writeJSON(w, r, http.StatusOK, map[string][]core.CategoryTotal{"categories": rows})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}

	bucket := core.Monthly
	if v := strings.TrimSpace(r.URL.Query().Get("bucket")); v != "" {
		bucket = core.Bucket(v)
		if !bucket.Valid() {
			writeError(w, r, http.StatusBadRequest, "invalid bucket: must be 'monthly' or 'yearly'")
			return
		}
	}

	snap := s.store.Snapshot()
	points := s.memo.TimeSeries(snap.Rev, snap.Transactions, snap.Filters, bucket)
	writeJSON(w, r, http.StatusOK, map[string][]core.TrendPoint{"trend": points})
}

// filtersRequest mirrors store.FilterPatch: absent fields leave the
// current filter state alone.
type filtersRequest struct {
	Categories *[]string        `json:"categories"`
	Type       *core.TypeFilter `json:"type"`
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, "PUT")
		return
	}

	var req filtersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	patch := store.FilterPatch{Categories: req.Categories, Type: req.Type}
	if err := s.store.SetFilters(patch); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, s.store.Snapshot().Filters)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	if err := s.store.Reset(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Reset failed",
			log.FieldError, err,
			log.FieldOperation, log.OpReset,
			log.FieldRequestID, trace.RequestID(r.Context()))
		writeError(w, r, http.StatusInternalServerError, "failed to reset transactions")
		return
	}

	s.listTransactions(w, r)
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	s.store.ClearError()
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// parseDate parses a YYYY-MM-DD string into a Date. Malformed input
// yields the zero Date, which validation then rejects.
func parseDate(s string) core.Date {
	var d core.Date
	_ = d.UnmarshalJSON([]byte(`"` + s + `"`))
	return d
}
