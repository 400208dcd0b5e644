package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"salon/internal/domain"
	"salon/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func staffFrom(r *http.Request) string {
	if c := claimsFrom(r.Context()); c != nil {
		return c.Subject
	}
	return ""
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Staff = staffFrom(r)

	txs, err := s.deps.Sales.Checkout(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var total int64
	for _, tx := range txs {
		total += tx.Total
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transactions": txs, "total": total})
}

func (s *HTTPServer) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = s.deps.Sales.DeleteTransaction(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListProducts(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: active must be true or false", domain.ErrInvalidInput))
			return
		}
		activeOnly = v
	}
	products, err := s.deps.Inventory.ListProducts(r.Context(), activeOnly)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *HTTPServer) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Inventory.LowStock(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *HTTPServer) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if err := decodeJSON(r, &p, false); err != nil {
		s.fail(w, r, err)
		return
	}
	p.ID = 0
	if err := s.deps.Inventory.CreateProduct(r.Context(), &p); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type stockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (s *HTTPServer) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req stockRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.deps.Inventory.AdjustStock(r.Context(), id, req.Delta, req.Reason, staffFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// reportRange reads from/to as salon-local dates. to is inclusive, so the
// window ends at the start of the following day. Both default to today.
func (s *HTTPServer) reportRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	parse := func(key string) (time.Time, error) {
		raw := q.Get(key)
		if raw == "" {
			raw = s.today()
		}
		t, err := time.ParseInLocation(models.DateLayout, raw, s.deps.Location)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", domain.ErrInvalidInput, key)
		}
		return t, nil
	}
	from, err := parse("from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parse("to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1), nil
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.reportRange(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sum, err := s.deps.Reports.Summary(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.reportRange(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// buffered so a failed export still gets a JSON error
	var buf bytes.Buffer
	if err := s.deps.Reports.Export(r.Context(), from, to, &buf); err != nil {
		s.fail(w, r, err)
		return
	}
	name := fmt.Sprintf("ventas_%s_%s.xlsx", from.Format(models.DateLayout), to.AddDate(0, 0, -1).Format(models.DateLayout))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
