package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

const testKeySecret = "test_secret"

func newTestPaymentService(gateway *gatewayFake, catalog *catalogFake, publisher *publisherFake, audit *auditFake) *PaymentService {
	svc := NewPaymentService(gateway, catalog, publisher, audit, nil, PaymentConfig{
		KeyID:     "rzp_test_key",
		KeySecret: testKeySecret,
	})
	svc.now = func() time.Time { return pricingNow }
	return svc
}

func testCatalog() *catalogFake {
	return &catalogFake{courses: []domain.Course{{
		ID:       "c1",
		Slug:     "design",
		Title:    "Design",
		IsActive: true,
		Programs: []domain.Program{{
			ID:           "p1",
			Slug:         "b-des",
			Title:        "B.Des",
			Duration:     "4 years",
			IsActive:     true,
			FeeStructure: testFees(),
		}},
	}}}
}

func signature(orderID, paymentID string) domain.PaymentSignature {
	return domain.PaymentSignature{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: SignPayment(testKeySecret, orderID, paymentID),
	}
}

func TestCreateOrderConvertsToMinorUnits(t *testing.T) {
	gateway := &gatewayFake{order: domain.GatewayOrder{ID: "order_1", Currency: "INR"}}
	svc := newTestPaymentService(gateway, &catalogFake{}, nil, nil)

	order, err := svc.CreateOrder(context.Background(), 1500.5)
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if len(gateway.requests) != 1 {
		t.Fatalf("gateway calls = %d", len(gateway.requests))
	}
	req := gateway.requests[0]
	if req.Amount != 150050 || req.Currency != "INR" || req.PaymentCapture != 1 {
		t.Fatalf("order request = %+v", req)
	}
	if req.Receipt != "receipt_1748772000000" {
		t.Fatalf("Receipt = %q", req.Receipt)
	}
	if order.OrderID != "order_1" || order.Amount != 1500.5 || order.Currency != "INR" {
		t.Fatalf("order = %+v", order)
	}
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		cfg      PaymentConfig
		gateway  *gatewayFake
		wantKind error
		wantMsg  string
	}{
		{
			name:     "non-positive amount",
			amount:   0,
			cfg:      PaymentConfig{KeyID: "k", KeySecret: "s"},
			gateway:  &gatewayFake{},
			wantKind: domain.ErrInvalidInput,
			wantMsg:  msgInvalidAmount,
		},
		{
			name:     "missing credentials",
			amount:   100,
			cfg:      PaymentConfig{KeyID: "k"},
			gateway:  &gatewayFake{},
			wantKind: domain.ErrConfiguration,
			wantMsg:  msgGatewayConfig,
		},
		{
			name:     "provider rejects",
			amount:   100,
			cfg:      PaymentConfig{KeyID: "k", KeySecret: "s"},
			gateway:  &gatewayFake{err: domain.WrapError(domain.ErrUpstream, "razorpay.create_order", errors.New("status 400"))},
			wantKind: domain.ErrUpstream,
			wantMsg:  msgOrderFailed,
		},
		{
			name:     "unexpected failure",
			amount:   100,
			cfg:      PaymentConfig{KeyID: "k", KeySecret: "s"},
			gateway:  &gatewayFake{err: errors.New("boom")},
			wantKind: domain.ErrInternal,
			wantMsg:  msgInternal,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewPaymentService(tc.gateway, &catalogFake{}, nil, nil, nil, tc.cfg)
			_, err := svc.CreateOrder(context.Background(), tc.amount)
			if !domain.IsKind(err, tc.wantKind) {
				t.Fatalf("expected %v, got %v", tc.wantKind, err)
			}
			if got := domain.PublicMessage(err, ""); got != tc.wantMsg {
				t.Fatalf("message = %q, want %q", got, tc.wantMsg)
			}
		})
	}
}

func TestVerifyPayment(t *testing.T) {
	svc := newTestPaymentService(&gatewayFake{}, &catalogFake{}, nil, nil)
	ctx := context.Background()

	verification, err := svc.VerifyPayment(ctx, signature("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if !verification.IsOK || verification.OrderID != "order_1" || verification.PaymentID != "pay_1" {
		t.Fatalf("verification = %+v", verification)
	}

	tampered := signature("order_1", "pay_1")
	tampered.PaymentID = "pay_2"
	verification, err = svc.VerifyPayment(ctx, tampered)
	if !domain.IsKind(err, domain.ErrPaymentVerification) || verification.IsOK {
		t.Fatalf("tampered signature accepted: %+v %v", verification, err)
	}

	_, err = svc.VerifyPayment(ctx, domain.PaymentSignature{OrderID: "order_1"})
	if domain.PublicMessage(err, "") != msgMissingPaymentInfo {
		t.Fatalf("missing fields error = %v", err)
	}
}

func TestSignPaymentKnownVector(t *testing.T) {
	const want = "52115a0d3400de9e86aade1f1b6eba9e8974604f4e267a9e9a16633a4c8dd2cb"
	if got := SignPayment("secret", "order_1", "pay_1"); got != want {
		t.Fatalf("SignPayment() = %s, want %s", got, want)
	}
}

func TestQuoteFallsBackToDefaultsWhenCatalogFails(t *testing.T) {
	svc := newTestPaymentService(&gatewayFake{}, &catalogFake{err: errors.New("backend down")}, nil, nil)
	quote, err := svc.Quote(context.Background(), domain.ProgramSelection{ProgramType: "design", ProgramName: "b-des"},
		domain.QuoteRequest{PaymentOption: domain.PaymentOptionApplication})
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !quote.DefaultedFees || quote.FinalAmount != 1000 {
		t.Fatalf("quote = %+v", quote)
	}
}

func paymentSession(t *testing.T) (*SessionManager, *SessionController) {
	t.Helper()
	manager, _, _, _ := newTestSessions()
	ctx := context.Background()
	session := manager.open(ctx, testSessionID)
	_, err := session.UpdateApplicationData(ctx, domain.ApplicationPatch{
		PersonalInfo: &domain.PersonalInfo{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210"},
		ProgramSelection: &domain.ProgramSelection{
			ProgramType: "design",
			ProgramName: "B.Des",
			CourseSlug:  "design",
			ProgramSlug: "b-des",
			Campus:      "Jodhpur",
		},
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return manager, session
}

func TestCheckoutCreatesOrderForDiscountedAmount(t *testing.T) {
	gateway := &gatewayFake{order: domain.GatewayOrder{ID: "order_9", Currency: "INR"}}
	audit := &auditFake{}
	svc := newTestPaymentService(gateway, testCatalog(), nil, audit)
	_, session := paymentSession(t)

	checkout, err := svc.Checkout(context.Background(), session, domain.QuoteRequest{
		PaymentOption: domain.PaymentOptionApplication,
		CouponCode:    "WELCOME10",
	})
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if gateway.requests[0].Amount != 225000 {
		t.Fatalf("order amount = %d paise, want 225000", gateway.requests[0].Amount)
	}
	if checkout.Options.Key != "rzp_test_key" || checkout.Options.OrderID != "order_9" || checkout.Options.Name != "Admission Portal" {
		t.Fatalf("options = %+v", checkout.Options)
	}
	if checkout.Options.Prefill.Name != "Asha Rao" || checkout.Options.Prefill.Contact != "9876543210" {
		t.Fatalf("prefill = %+v", checkout.Options.Prefill)
	}
	if len(audit.entries) != 1 || audit.entries[0].Status != domain.AuditOrderCreated {
		t.Fatalf("audit = %v", audit.statuses())
	}
}

func TestCheckoutRejectsInvalidCoupon(t *testing.T) {
	gateway := &gatewayFake{}
	svc := newTestPaymentService(gateway, testCatalog(), nil, nil)
	_, session := paymentSession(t)

	_, err := svc.Checkout(context.Background(), session, domain.QuoteRequest{
		PaymentOption: domain.PaymentOptionApplication,
		CouponCode:    "NOPE",
	})
	if domain.PublicMessage(err, "") != msgInvalidCoupon {
		t.Fatalf("expected invalid coupon, got %v", err)
	}
	if len(gateway.requests) != 0 {
		t.Fatalf("order created for rejected coupon")
	}
}

func checkoutOrder(t *testing.T, svc *PaymentService, session ports.SessionHandle, req domain.QuoteRequest) domain.Checkout {
	t.Helper()
	checkout, err := svc.Checkout(context.Background(), session, req)
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	return checkout
}

func TestCompleteMarksApplicationPaid(t *testing.T) {
	publisher := &publisherFake{}
	audit := &auditFake{}
	svc := newTestPaymentService(&gatewayFake{order: domain.GatewayOrder{ID: "order_1"}}, testCatalog(), publisher, audit)
	_, session := paymentSession(t)
	ctx := context.Background()
	_ = session.RememberUserID(ctx, "user_42")
	checkoutOrder(t, svc, session, domain.QuoteRequest{PaymentOption: domain.PaymentOptionApplication})

	updated, verification, err := svc.Complete(ctx, session, domain.CompletionRequest{
		PaymentSignature: signature("order_1", "pay_1"),
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !verification.IsOK {
		t.Fatalf("verification = %+v", verification)
	}

	app := updated.Application
	if !app.PaymentComplete || !app.IsComplete || app.SubmittedAt == nil {
		t.Fatalf("application not completed: %+v", app)
	}
	if updated.CurrentStep != domain.StepSuccess {
		t.Fatalf("CurrentStep = %q", updated.CurrentStep)
	}
	details := app.PaymentDetails
	if details == nil || details.Amount != 2500 || details.FullCourseAmount != 152500 || details.OrderID != "order_1" {
		t.Fatalf("payment details = %+v", details)
	}
	if app.ApplicationID == "" {
		t.Fatalf("application reference not issued")
	}
	if len(updated.PendingOrders) != 0 {
		t.Fatalf("order still pending after completion: %+v", updated.PendingOrders)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("published %d events", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Kind != domain.PaymentKindApplication || event.UserID != "user_42" || event.CourseID != "c1" || event.ProgramID != "p1" {
		t.Fatalf("event = %+v", event)
	}
	if got := audit.statuses(); len(got) != 2 || got[0] != domain.AuditOrderCreated || got[1] != domain.AuditCompleted {
		t.Fatalf("audit = %v", got)
	}
}

func TestCompleteSettlesWhatTheOrderWasOpenedFor(t *testing.T) {
	tests := []struct {
		name       string
		req        domain.QuoteRequest
		wantAmount float64
		wantOption domain.PaymentOption
		wantCoupon string
	}{
		{
			name:       "application fee",
			req:        domain.QuoteRequest{PaymentOption: domain.PaymentOptionApplication},
			wantAmount: 2500,
			wantOption: domain.PaymentOptionApplication,
		},
		{
			name:       "application fee with coupon",
			req:        domain.QuoteRequest{PaymentOption: domain.PaymentOptionApplication, CouponCode: "WELCOME10"},
			wantAmount: 2250,
			wantOption: domain.PaymentOptionApplication,
			wantCoupon: "WELCOME10",
		},
		{
			name:       "full course",
			req:        domain.QuoteRequest{PaymentOption: domain.PaymentOptionCourse},
			wantAmount: 152500,
			wantOption: domain.PaymentOptionCourse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &publisherFake{}
			svc := newTestPaymentService(&gatewayFake{order: domain.GatewayOrder{ID: "order_opt"}}, testCatalog(), publisher, nil)
			_, session := paymentSession(t)
			checkoutOrder(t, svc, session, tt.req)

			updated, _, err := svc.Complete(context.Background(), session, domain.CompletionRequest{
				PaymentSignature: signature("order_opt", "pay_opt"),
			})
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			details := updated.Application.PaymentDetails
			if details.Amount != tt.wantAmount || details.PaymentOption != tt.wantOption || details.CouponCode != tt.wantCoupon {
				t.Fatalf("payment details = %+v", details)
			}
			event := publisher.events[0]
			if event.Amount != tt.wantAmount || event.Option != tt.wantOption || event.CouponCode != tt.wantCoupon {
				t.Fatalf("event = %+v", event)
			}
		})
	}
}

func TestCompleteRejectsOrderNotOpenedForSession(t *testing.T) {
	publisher := &publisherFake{}
	audit := &auditFake{}
	svc := newTestPaymentService(&gatewayFake{order: domain.GatewayOrder{ID: "order_a"}}, testCatalog(), publisher, audit)

	manager, owner := paymentSession(t)
	checkoutOrder(t, svc, owner, domain.QuoteRequest{PaymentOption: domain.PaymentOptionApplication})
	other := manager.open(context.Background(), "session_1700000000000_zzz999yyy")

	for name, tc := range map[string]struct {
		session ports.SessionHandle
		orderID string
	}{
		"unknown order":         {session: owner, orderID: "order_never_opened"},
		"other session's order": {session: other, orderID: "order_a"},
	} {
		t.Run(name, func(t *testing.T) {
			_, verification, err := svc.Complete(context.Background(), tc.session, domain.CompletionRequest{
				PaymentSignature: signature(tc.orderID, "pay_x"),
			})
			if !domain.IsKind(err, domain.ErrPaymentVerification) {
				t.Fatalf("expected verification error, got %v", err)
			}
			if verification.IsOK || verification.Message != msgOrderNotIssued {
				t.Fatalf("verification = %+v", verification)
			}
			if tc.session.Snapshot().Application.PaymentComplete {
				t.Fatalf("session marked paid for a foreign order")
			}
		})
	}
	if len(publisher.events) != 0 {
		t.Fatalf("events published for rejected orders: %+v", publisher.events)
	}
	if _, ok := owner.Snapshot().PendingOrders["order_a"]; !ok {
		t.Fatalf("owner's order consumed by a rejected completion")
	}
}

func TestCompleteSettlesAnOrderOnce(t *testing.T) {
	tests := []struct {
		name     string
		audit    *auditFake
		wantKind error
	}{
		{name: "with audit trail", audit: &auditFake{}, wantKind: domain.ErrConflict},
		{name: "without audit trail", audit: nil, wantKind: domain.ErrPaymentVerification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &publisherFake{}
			var audit ports.PaymentAuditRepository
			if tt.audit != nil {
				audit = tt.audit
			}
			svc := NewPaymentService(&gatewayFake{order: domain.GatewayOrder{ID: "order_once"}}, testCatalog(), publisher, audit, nil, PaymentConfig{
				KeyID:     "rzp_test_key",
				KeySecret: testKeySecret,
			})
			svc.now = func() time.Time { return pricingNow }
			_, session := paymentSession(t)
			checkoutOrder(t, svc, session, domain.QuoteRequest{PaymentOption: domain.PaymentOptionApplication})

			req := domain.CompletionRequest{PaymentSignature: signature("order_once", "pay_once")}
			first, _, err := svc.Complete(context.Background(), session, req)
			if err != nil {
				t.Fatalf("first Complete() error = %v", err)
			}
			for i := 0; i < 3; i++ {
				if _, _, err := svc.Complete(context.Background(), session, req); !domain.IsKind(err, tt.wantKind) {
					t.Fatalf("replay %d: expected %v, got %v", i, tt.wantKind, err)
				}
			}
			if len(publisher.events) != 1 {
				t.Fatalf("published %d events for one payment", len(publisher.events))
			}
			if got := session.Snapshot().Application.PaymentDetails; got.PaymentID != first.Application.PaymentDetails.PaymentID {
				t.Fatalf("payment details changed by replay: %+v", got)
			}
		})
	}
}

func TestPendingOrdersSurviveRehydration(t *testing.T) {
	_, store, _, _ := newTestSessions()
	ctx := context.Background()
	cfg := DefaultSessionConfig()
	svc := newTestPaymentService(&gatewayFake{order: domain.GatewayOrder{ID: "order_r"}}, testCatalog(), nil, nil)

	first := NewSessionManager(store, cfg, nil).open(ctx, testSessionID)
	if _, err := first.UpdateApplicationData(ctx, domain.ApplicationPatch{
		ProgramSelection: &domain.ProgramSelection{ProgramType: "design", ProgramName: "B.Des", CourseSlug: "design", ProgramSlug: "b-des", Campus: "Jodhpur"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	checkoutOrder(t, svc, first, domain.QuoteRequest{PaymentOption: domain.PaymentOptionApplication})

	restored := NewSessionManager(store, cfg, nil).open(ctx, testSessionID)
	if _, ok := restored.Snapshot().PendingOrders["order_r"]; !ok {
		t.Fatalf("pending order lost on rehydration")
	}
	req := domain.CompletionRequest{PaymentSignature: signature("order_r", "pay_r")}
	if _, _, err := svc.Complete(ctx, restored, req); err != nil {
		t.Fatalf("Complete() after rehydration error = %v", err)
	}

	again := NewSessionManager(store, cfg, nil).open(ctx, testSessionID)
	if _, _, err := svc.Complete(ctx, again, req); !domain.IsKind(err, domain.ErrPaymentVerification) {
		t.Fatalf("settled order accepted after rehydration: %v", err)
	}
}

func TestCompleteRejectsBadSignatureWithoutMutation(t *testing.T) {
	publisher := &publisherFake{}
	audit := &auditFake{}
	svc := newTestPaymentService(&gatewayFake{}, testCatalog(), publisher, audit)
	_, session := paymentSession(t)

	sig := signature("order_1", "pay_1")
	sig.Signature = "deadbeef"
	_, verification, err := svc.Complete(context.Background(), session, domain.CompletionRequest{PaymentSignature: sig})
	if !domain.IsKind(err, domain.ErrPaymentVerification) {
		t.Fatalf("expected verification error, got %v", err)
	}
	if verification.Message != msgVerificationFailed {
		t.Fatalf("verification message = %q", verification.Message)
	}
	if session.Snapshot().Application.PaymentComplete {
		t.Fatalf("session mutated after failed verification")
	}
	if len(publisher.events) != 0 {
		t.Fatalf("event published after failed verification")
	}
	if got := audit.statuses(); len(got) != 1 || got[0] != domain.AuditRejected {
		t.Fatalf("audit = %v", got)
	}
}
