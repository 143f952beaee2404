package httpadapter

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/kirillkom/admission-portal/internal/config"
	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/infrastructure/resilience"
)

func TestCreateOrderAcceptsNumericString(t *testing.T) {
	svc := newTestServices()
	payments := svc.Payments.(*paymentsFake)
	handler := newTestHandler(t, config.Config{}, svc)

	res := doJSON(t, handler, http.MethodPost, "/api/order", "", map[string]any{"amount": "2500"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var order domain.Order
	decodeBody(t, res, &order)
	if order.OrderID != "order_abc" || order.Amount != 2500 || order.Currency != "INR" {
		t.Fatalf("order = %+v", order)
	}
	if len(payments.amounts) != 1 || payments.amounts[0] != 2500 {
		t.Fatalf("amounts = %v", payments.amounts)
	}
}

func TestCreateOrderRejectsMissingAmount(t *testing.T) {
	svc := newTestServices()
	payments := svc.Payments.(*paymentsFake)
	handler := newTestHandler(t, config.Config{}, svc)

	for _, body := range []map[string]any{{}, {"amount": "abc"}, {"amount": nil}} {
		res := doJSON(t, handler, http.MethodPost, "/api/order", "", body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %v: expected 400, got %d", body, res.Code)
		}
		var out map[string]string
		decodeBody(t, res, &out)
		if out["error"] != "Invalid amount provided" {
			t.Fatalf("body %v: error = %q", body, out["error"])
		}
	}
	for _, amount := range payments.amounts {
		if !math.IsNaN(amount) {
			t.Fatalf("expected NaN amounts, got %v", payments.amounts)
		}
	}
}

func TestCreateOrderPropagatesGatewayStatus(t *testing.T) {
	svc := newTestServices()
	gatewayErr := domain.WrapError(domain.ErrUpstream, "razorpay.create_order", &resilience.HTTPStatusError{
		Operation:  "razorpay.create_order",
		StatusCode: http.StatusUnauthorized,
		Status:     "401 Unauthorized",
	})
	svc.Payments.(*paymentsFake).orderErr = domain.NewPublicError(domain.ErrUpstream, "Failed to create order with payment provider", gatewayErr)
	handler := newTestHandler(t, config.Config{}, svc)

	res := doJSON(t, handler, http.MethodPost, "/api/order", "", map[string]any{"amount": 2500})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	var out map[string]string
	decodeBody(t, res, &out)
	if out["error"] != "Failed to create order with payment provider" {
		t.Fatalf("error = %q", out["error"])
	}
}

func TestCreateOrderHidesConfigurationCause(t *testing.T) {
	svc := newTestServices()
	svc.Payments.(*paymentsFake).orderErr = domain.NewPublicError(domain.ErrConfiguration, "Payment gateway configuration error", errors.New("RAZORPAY_KEY_ID empty"))
	handler := newTestHandler(t, config.Config{}, svc)

	res := doJSON(t, handler, http.MethodPost, "/api/order", "", map[string]any{"amount": 10})
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "RAZORPAY_KEY_ID") {
		t.Fatalf("response leaked cause: %s", res.Body.String())
	}
}

func TestVerifyPaymentFailureShape(t *testing.T) {
	svc := newTestServices()
	payments := svc.Payments.(*paymentsFake)
	payments.verification = domain.Verification{Message: "Payment verification failed. Please contact support with your order reference."}
	payments.verifyErr = domain.NewPublicError(domain.ErrPaymentVerification, payments.verification.Message, nil)
	handler := newTestHandler(t, config.Config{}, svc)

	res := doJSON(t, handler, http.MethodPost, "/api/verify", "", map[string]any{
		"razorpayOrderId":   "order_abc",
		"razorpayPaymentId": "pay_123",
		"razorpaySignature": "bad",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var out domain.Verification
	decodeBody(t, res, &out)
	if out.IsOK || out.Message != payments.verification.Message {
		t.Fatalf("verification = %+v", out)
	}
}

func TestVerifyPaymentSuccess(t *testing.T) {
	svc := newTestServices()
	svc.Payments.(*paymentsFake).verification = domain.Verification{IsOK: true, Message: "Payment successful", OrderID: "order_abc", PaymentID: "pay_123"}
	handler := newTestHandler(t, config.Config{}, svc)

	res := doJSON(t, handler, http.MethodPost, "/api/verify", "", map[string]any{
		"razorpayOrderId":   "order_abc",
		"razorpayPaymentId": "pay_123",
		"razorpaySignature": "ok",
	})
	var out domain.Verification
	decodeBody(t, res, &out)
	if res.Code != http.StatusOK || !out.IsOK || out.PaymentID != "pay_123" {
		t.Fatalf("status %d verification = %+v", res.Code, out)
	}
}

func TestQuoteDefaultsToSessionSelection(t *testing.T) {
	svc := newTestServices()
	payments := svc.Payments.(*paymentsFake)
	handler := newTestHandler(t, config.Config{}, svc)

	id := doJSON(t, handler, http.MethodPatch, "/v1/session/application", "", map[string]any{
		"programSelection": map[string]any{"programName": "B.Des", "campus": "Jaipur"},
	}).Header().Get(sessionHeader)

	res := doJSON(t, handler, http.MethodPost, "/v1/payments/quote", id, map[string]any{"paymentOption": "application"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var quote domain.FeeQuote
	decodeBody(t, res, &quote)
	if quote.CourseName != "B.Des" || quote.FinalAmount != 2500 {
		t.Fatalf("quote = %+v", quote)
	}

	res = doJSON(t, handler, http.MethodPost, "/v1/payments/quote", id, map[string]any{
		"paymentOption":    "course",
		"programSelection": map[string]any{"programName": "BFA"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(payments.quotes) != 2 || payments.quotes[1].ProgramName != "BFA" {
		t.Fatalf("quotes = %+v", payments.quotes)
	}
}

func TestCoursesEndpoint(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, newTestServices())

	res := doJSON(t, handler, http.MethodGet, "/v1/courses", "", nil)
	var out struct {
		Courses []domain.Course `json:"courses"`
	}
	decodeBody(t, res, &out)
	if res.Code != http.StatusOK || len(out.Courses) != 1 || out.Courses[0].Slug != "bachelors-degree" {
		t.Fatalf("status %d courses = %+v", res.Code, out.Courses)
	}
}

func TestCompletePaymentReportsVerificationFailure(t *testing.T) {
	svc := newTestServices()
	payments := svc.Payments.(*paymentsFake)
	payments.verification = domain.Verification{Message: "Payment verification failed. Please contact support with your order reference."}
	payments.verifyErr = domain.NewPublicError(domain.ErrPaymentVerification, payments.verification.Message, nil)
	handler := newTestHandler(t, config.Config{}, svc)

	res := doJSON(t, handler, http.MethodPost, "/v1/payments/complete", "", map[string]any{
		"razorpayOrderId":   "order_abc",
		"razorpayPaymentId": "pay_123",
		"razorpaySignature": "bad",
		"paymentOption":     "application",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var out struct {
		Error        string              `json:"error"`
		Verification domain.Verification `json:"verification"`
	}
	decodeBody(t, res, &out)
	if out.Verification.IsOK || out.Error != payments.verification.Message {
		t.Fatalf("response = %+v", out)
	}
}

func TestPortalEndpoints(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, newTestServices())

	res := doJSON(t, handler, http.MethodGet, "/v1/portal?refresh=true", "", nil)
	var account domain.StudentAccount
	decodeBody(t, res, &account)
	if res.Code != http.StatusOK || account.StudentID != "STU1" {
		t.Fatalf("status %d account = %+v", res.Code, account)
	}

	res = doJSON(t, handler, http.MethodGet, "/v1/portal/payments.xlsx", "", nil)
	if res.Code != http.StatusOK || res.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("payments.xlsx: %d %q", res.Code, res.Header().Get("Content-Type"))
	}

	res = doJSON(t, handler, http.MethodGet, "/v1/portal/receipt.pdf", "", nil)
	if res.Code != http.StatusOK || !strings.HasPrefix(res.Header().Get("Content-Disposition"), `attachment; filename="Payment_Receipt_session_`) {
		t.Fatalf("receipt.pdf: %d %q", res.Code, res.Header().Get("Content-Disposition"))
	}
}

func TestPortalRequiresLogin(t *testing.T) {
	svc := newTestServices()
	svc.Portal = portalFake{err: domain.NewPublicError(domain.ErrUnauthorized, "Please log in to access the payment portal", nil)}
	handler := newTestHandler(t, config.Config{}, svc)

	res := doJSON(t, handler, http.MethodGet, "/v1/portal", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	var out map[string]string
	decodeBody(t, res, &out)
	if out["error"] != "Please log in to access the payment portal" {
		t.Fatalf("error = %q", out["error"])
	}
}
