package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/admission-portal/internal/config"
	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

const (
	sessionCookieName = "admission_session_id"
	sessionHeader     = "X-Session-Id"
	sessionCookieTTL  = 30 * 24 * 60 * 60

	maxJSONBody = 1 << 20
)

// Services are the inbound use cases the router dispatches to.
type Services struct {
	Sessions  ports.SessionProvider
	Auth      ports.AuthUseCase
	Admission ports.AdmissionUseCase
	Documents ports.DocumentUseCase
	Export    ports.ExportUseCase
	Payments  ports.PaymentUseCase
	Portal    ports.PortalUseCase
}

// HTTPMetrics instruments the handler chain and serves /metrics.
type HTTPMetrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Router struct {
	cfg       config.Config
	svc       Services
	metrics   HTTPMetrics
	validator *requestValidator
}

func NewRouter(cfg config.Config, svc Services, metrics HTTPMetrics) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:       cfg,
		svc:       svc,
		metrics:   metrics,
		validator: validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("/api/order", rt.createOrder)
	mux.HandleFunc("/api/verify", rt.verifyPayment)

	mux.HandleFunc("/v1/session", rt.sessionRoot)
	mux.HandleFunc("/v1/session/info", rt.sessionInfo)
	mux.HandleFunc("/v1/session/application", rt.sessionApplication)
	mux.HandleFunc("/v1/session/login", rt.sessionLogin)
	mux.HandleFunc("/v1/session/user-type", rt.sessionUserType)
	mux.HandleFunc("/v1/session/step", rt.sessionStep)
	mux.HandleFunc("/v1/session/steps", rt.sessionSteps)
	mux.HandleFunc("/v1/session/progress/{step}", rt.sessionProgress)
	mux.HandleFunc("/v1/session/progress/{step}/flush", rt.flushProgress)
	mux.HandleFunc("/v1/session/steps/{step}/submit", rt.submitStep)
	mux.HandleFunc("/v1/session/review", rt.review)
	mux.HandleFunc("/v1/session/documents/{kind}", rt.uploadDocument)
	mux.HandleFunc("/v1/session/application.pdf", rt.applicationPDF)

	mux.HandleFunc("/v1/auth/signup", rt.signup)
	mux.HandleFunc("/v1/auth/login", rt.login)

	mux.HandleFunc("/v1/courses", rt.courses)
	mux.HandleFunc("/v1/payments/quote", rt.quote)
	mux.HandleFunc("/v1/payments/checkout", rt.checkout)
	mux.HandleFunc("/v1/payments/complete", rt.completePayment)

	mux.HandleFunc("/v1/portal/login", rt.portalLogin)
	mux.HandleFunc("/v1/portal", rt.portalAccount)
	mux.HandleFunc("/v1/portal/checkout", rt.portalCheckout)
	mux.HandleFunc("/v1/portal/complete", rt.portalComplete)
	mux.HandleFunc("/v1/portal/payments.xlsx", rt.portalPayments)
	mux.HandleFunc("/v1/portal/receipt.pdf", rt.portalReceipt)

	var handler http.Handler = rt.validator.middleware(mux)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session resolves the caller's session from the X-Session-Id header or the
// session cookie and echoes the effective id back in both.
func (rt *Router) session(w http.ResponseWriter, r *http.Request) ports.SessionHandle {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id == "" {
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			id = cookie.Value
		}
	}
	session := rt.svc.Sessions.Open(r.Context(), id)

	w.Header().Set(sessionHeader, session.ID())
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID(),
		Path:     "/",
		MaxAge:   sessionCookieTTL,
		HttpOnly: true,
		Secure:   rt.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return session
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	return false
}

var errEmptyBody = errors.New("request body is empty")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeInvalidJSON(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
}

// writeError maps err to a status and JSON body. Validation errors also carry
// their per-field messages.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}

	body := map[string]any{"error": errorMessage(err)}
	var verr *domain.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		body["fields"] = verr.Fields
	}
	writeJSON(w, status, body)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
