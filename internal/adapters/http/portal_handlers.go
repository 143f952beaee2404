package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (rt *Router) portalLogin(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeInvalidJSON(w)
		return
	}
	session := rt.session(w, r)

	updated, err := rt.svc.Portal.Login(r.Context(), session, creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// portalAccount returns the student's account; ?refresh=true reloads it from the backend.
func (rt *Router) portalAccount(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	session := rt.session(w, r)

	account, err := rt.svc.Portal.Account(r.Context(), session, refresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (rt *Router) portalCheckout(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req domain.PortalCheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	session := rt.session(w, r)

	checkout, err := rt.svc.Portal.Checkout(r.Context(), session, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

func (rt *Router) portalComplete(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req domain.PortalCompletionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	session := rt.session(w, r)

	updated, verification, err := rt.svc.Portal.Complete(r.Context(), session, req)
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
		"student":      updated.Student,
	})
}

func (rt *Router) portalPayments(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session := rt.session(w, r)

	out, err := rt.svc.Portal.PaymentHistory(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, xlsxContentType, "Payment_History_"+studentID(session)+".xlsx", out)
}

func (rt *Router) portalReceipt(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session := rt.session(w, r)

	out, err := rt.svc.Portal.Receipt(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filename := "Payment_Receipt_" + studentID(session) + "_" + time.Now().Format(time.DateOnly) + ".pdf"
	writeFile(w, "application/pdf", filename, out)
}

func studentID(session ports.SessionHandle) string {
	if student := session.Snapshot().Student; student != nil && student.StudentID != "" {
		return student.StudentID
	}
	return session.ID()
}
