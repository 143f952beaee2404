package httpadapter

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

// createOrder opens a gateway order. The amount may be a JSON number or a
// numeric string; anything else is rejected by the payment service.
func (rt *Router) createOrder(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	order, err := rt.svc.Payments.CreateOrder(r.Context(), parseAmount(req.Amount))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func parseAmount(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return math.NaN()
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return math.NaN()
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return math.NaN()
	}
	return number
}

// verifyPayment always answers with the verification shape, including on failure.
func (rt *Router) verifyPayment(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var sig domain.PaymentSignature
	if err := decodeJSON(w, r, &sig); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Verification{Message: "invalid json"})
		return
	}

	verification, err := rt.svc.Payments.VerifyPayment(r.Context(), sig)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), verification)
		return
	}
	writeJSON(w, http.StatusOK, verification)
}

func (rt *Router) courses(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	courses, err := rt.svc.Payments.Courses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

type quoteRequest struct {
	ProgramSelection *domain.ProgramSelection `json:"programSelection,omitempty"`
	domain.QuoteRequest
}

// quote prices a selection. Without an explicit programSelection the session's
// current selection is priced.
func (rt *Router) quote(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	selection := rt.session(w, r).Snapshot().Application.ProgramSelection
	if req.ProgramSelection != nil {
		selection = *req.ProgramSelection
	}

	quote, err := rt.svc.Payments.Quote(r.Context(), selection, req.QuoteRequest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (rt *Router) checkout(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req domain.QuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	session := rt.session(w, r)

	checkout, err := rt.svc.Payments.Checkout(r.Context(), session, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

func (rt *Router) completePayment(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req domain.CompletionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	session := rt.session(w, r)

	updated, verification, err := rt.svc.Payments.Complete(r.Context(), session, req)
	if err != nil {
		if verification.Message != "" {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]any{
				"error":        errorMessage(err),
				"verification": verification,
			})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verification": verification,
		"session":      updated,
	})
}
