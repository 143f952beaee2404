package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

const (
	msgInvalidAmount          = "Invalid amount provided"
	msgGatewayConfig          = "Payment gateway configuration error"
	msgOrderFailed            = "Failed to create order with payment provider"
	msgInternal               = "Internal server error"
	msgMissingPaymentInfo     = "Missing required payment information"
	msgVerificationConfig     = "Payment verification configuration error"
	msgPaymentSuccessful      = "Payment successful"
	msgVerificationFailed     = "Payment verification failed. Please contact support with your order reference."
	msgOrderNotIssued         = "Payment does not match an order issued for this session"
	msgPaymentAlreadyDone     = "This payment has already been processed"
	defaultCheckoutName       = "Admission Portal"
	defaultPortalCheckoutName = "Inframe Institute"
	defaultCurrency           = "INR"

	flowApplication = "application"
	flowPortal      = "portal"
)

type PaymentConfig struct {
	KeyID              string
	KeySecret          string
	Currency           string
	CheckoutName       string
	PortalCheckoutName string
}

func (c PaymentConfig) normalize() PaymentConfig {
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	if c.CheckoutName == "" {
		c.CheckoutName = defaultCheckoutName
	}
	if c.PortalCheckoutName == "" {
		c.PortalCheckoutName = defaultPortalCheckoutName
	}
	return c
}

type PaymentService struct {
	gateway   ports.PaymentGateway
	catalog   ports.CourseCatalog
	publisher ports.PaymentEventPublisher
	audit     ports.PaymentAuditRepository
	observer  ports.PaymentObserver
	cfg       PaymentConfig
	now       func() time.Time
}

func NewPaymentService(
	gateway ports.PaymentGateway,
	catalog ports.CourseCatalog,
	publisher ports.PaymentEventPublisher,
	audit ports.PaymentAuditRepository,
	observer ports.PaymentObserver,
	cfg PaymentConfig,
) *PaymentService {
	if observer == nil {
		observer = ports.NopPaymentObserver{}
	}
	return &PaymentService{
		gateway:   gateway,
		catalog:   catalog,
		publisher: publisher,
		audit:     audit,
		observer:  observer,
		cfg:       cfg.normalize(),
		now:       time.Now,
	}
}

// CreateOrder opens a gateway order for amount rupees.
func (s *PaymentService) CreateOrder(ctx context.Context, amount float64) (domain.Order, error) {
	return s.createOrder(ctx, flowApplication, amount)
}

func (s *PaymentService) createOrder(ctx context.Context, flow string, amount float64) (domain.Order, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return domain.Order{}, domain.NewPublicError(domain.ErrInvalidInput, msgInvalidAmount, nil)
	}
	if s.cfg.KeyID == "" || s.cfg.KeySecret == "" {
		slog.Error("payment_gateway_misconfigured", "flow", flow)
		return domain.Order{}, domain.NewPublicError(domain.ErrConfiguration, msgGatewayConfig, nil)
	}

	order, err := s.gateway.CreateOrder(ctx, domain.OrderRequest{
		Amount:         domain.ToMinorUnits(amount),
		Currency:       s.cfg.Currency,
		Receipt:        fmt.Sprintf("receipt_%d", s.now().UnixMilli()),
		PaymentCapture: 1,
	})
	s.observer.ObserveOrder(flow, err)
	if err != nil {
		slog.Error("payment_order_failed", "flow", flow, "amount", amount, "error", err)
		if domain.IsKind(err, domain.ErrUpstream) || domain.IsKind(err, domain.ErrTemporary) {
			return domain.Order{}, domain.NewPublicError(domain.ErrUpstream, msgOrderFailed, err)
		}
		return domain.Order{}, domain.NewPublicError(domain.ErrInternal, msgInternal, err)
	}

	currency := order.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	slog.Info("payment_order_created", "flow", flow, "order_id", order.ID, "amount_minor", order.Amount)
	return domain.Order{
		OrderID:  order.ID,
		Amount:   domain.FromMinorUnits(order.Amount),
		Currency: currency,
	}, nil
}

// VerifyPayment checks the checkout signature: hex HMAC-SHA256 of "orderId|paymentId".
// The returned Verification is meaningful on failure as well.
func (s *PaymentService) VerifyPayment(_ context.Context, sig domain.PaymentSignature) (domain.Verification, error) {
	return s.verify(flowApplication, sig)
}

func (s *PaymentService) verify(flow string, sig domain.PaymentSignature) (domain.Verification, error) {
	if sig.OrderID == "" || sig.PaymentID == "" || sig.Signature == "" {
		return domain.Verification{Message: msgMissingPaymentInfo},
			domain.NewPublicError(domain.ErrInvalidInput, msgMissingPaymentInfo, nil)
	}
	if s.cfg.KeySecret == "" {
		slog.Error("payment_verification_misconfigured", "flow", flow)
		return domain.Verification{Message: msgVerificationConfig},
			domain.NewPublicError(domain.ErrConfiguration, msgVerificationConfig, nil)
	}

	ok := hmac.Equal([]byte(SignPayment(s.cfg.KeySecret, sig.OrderID, sig.PaymentID)), []byte(sig.Signature))
	s.observer.ObserveVerification(flow, ok)
	if !ok {
		slog.Warn("payment_verification_failed", "flow", flow, "order_id", sig.OrderID, "payment_id", sig.PaymentID)
		return domain.Verification{Message: msgVerificationFailed},
			domain.NewPublicError(domain.ErrPaymentVerification, msgVerificationFailed, nil)
	}

	slog.Info("payment_verified", "flow", flow, "order_id", sig.OrderID, "payment_id", sig.PaymentID)
	return domain.Verification{
		IsOK:      true,
		Message:   msgPaymentSuccessful,
		OrderID:   sig.OrderID,
		PaymentID: sig.PaymentID,
	}, nil
}

// SignPayment computes the signature the gateway issues for a captured payment.
func SignPayment(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *PaymentService) Courses(ctx context.Context) ([]domain.Course, error) {
	courses, err := s.catalog.ListCourses(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "payment.courses", err)
	}
	return courses, nil
}

// Quote prices req for the program selected in the application.
func (s *PaymentService) Quote(ctx context.Context, selection domain.ProgramSelection, req domain.QuoteRequest) (domain.FeeQuote, error) {
	var (
		lookup domain.FeeLookup
		found  bool
	)
	courses, err := s.catalog.ListCourses(ctx)
	if err != nil {
		slog.Warn("fee_structure_lookup_failed", "error", err)
	} else {
		lookup, found = domain.FindFeeStructure(courses, courseSlug(selection), programSlug(selection))
	}
	return QuoteFees(lookup, found, req, s.now())
}

func courseSlug(selection domain.ProgramSelection) string {
	if selection.CourseSlug != "" {
		return selection.CourseSlug
	}
	return selection.ProgramType
}

func programSlug(selection domain.ProgramSelection) string {
	if selection.ProgramSlug != "" {
		return selection.ProgramSlug
	}
	return selection.ProgramName
}

// Checkout prices the session's selection, opens an order for the final
// amount and returns the options for the hosted checkout.
func (s *PaymentService) Checkout(ctx context.Context, session ports.SessionHandle, req domain.QuoteRequest) (domain.Checkout, error) {
	snap := session.Snapshot()
	app := snap.Application

	quote, err := s.Quote(ctx, app.ProgramSelection, req)
	if err != nil {
		return domain.Checkout{}, err
	}
	if quote.Coupon != nil && !quote.Coupon.IsValid {
		return domain.Checkout{}, domain.NewPublicError(domain.ErrInvalidInput, quote.Coupon.Error, nil)
	}

	order, err := s.CreateOrder(ctx, quote.FinalAmount)
	if err != nil {
		return domain.Checkout{}, err
	}
	charged := quote
	if err := s.rememberOrder(ctx, session, domain.PendingOrder{
		OrderID:   order.OrderID,
		Kind:      domain.PaymentKindApplication,
		Amount:    quote.FinalAmount,
		Quote:     &charged,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return domain.Checkout{}, err
	}
	s.record(ctx, domain.PaymentAuditEntry{
		SessionID: snap.ID,
		OrderID:   order.OrderID,
		Kind:      domain.PaymentKindApplication,
		Status:    domain.AuditOrderCreated,
		Amount:    quote.FinalAmount,
	})

	subject := app.ProgramSelection.Specialization
	if subject == "" {
		subject = app.ProgramSelection.ProgramName
	}
	return domain.Checkout{
		Order: order,
		Options: domain.CheckoutOptions{
			Key:         s.cfg.KeyID,
			Amount:      domain.ToMinorUnits(quote.FinalAmount),
			Currency:    order.Currency,
			Name:        s.cfg.CheckoutName,
			Description: "Application fee for " + subject,
			OrderID:     order.OrderID,
			Prefill: domain.CheckoutPrefill{
				Name:    app.PersonalInfo.FullName(),
				Email:   app.PersonalInfo.Email,
				Contact: app.PersonalInfo.Phone,
			},
			Notes: map[string]string{
				"program":       app.ProgramSelection.ProgramName,
				"programType":   app.ProgramSelection.ProgramType,
				"campus":        app.ProgramSelection.Campus,
				"applicationId": app.ApplicationID,
			},
		},
		Quote: &quote,
	}, nil
}

// Complete verifies the checkout callback and marks the application paid and
// submitted. The amount and option settled are those of the order opened by
// Checkout for this session; an unknown or already settled order is rejected
// and leaves the session untouched.
func (s *PaymentService) Complete(ctx context.Context, session ports.SessionHandle, req domain.CompletionRequest) (domain.Session, domain.Verification, error) {
	verification, err := s.VerifyPayment(ctx, req.PaymentSignature)
	if err != nil {
		s.record(ctx, domain.PaymentAuditEntry{
			SessionID: session.ID(),
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
			Kind:      domain.PaymentKindApplication,
			Status:    domain.AuditRejected,
			Detail:    verification.Message,
		})
		return domain.Session{}, verification, err
	}
	if err := s.checkSettlement(ctx, session.ID(), req.OrderID); err != nil {
		return s.reject(ctx, session.ID(), req.PaymentSignature, domain.PaymentKindApplication, err)
	}

	now := s.now().UTC()
	var quote domain.FeeQuote
	updated, err := session.Mutate(ctx, func(state *domain.Session) error {
		pending, err := claimOrder(state, req.OrderID, domain.PaymentKindApplication)
		if err != nil {
			return err
		}
		quote = pendingQuote(pending)

		app := &state.Application
		if app.ApplicationID == "" {
			app.ApplicationID = domain.NewApplicationReference(now)
		}
		app.PaymentComplete = true
		app.IsComplete = true
		app.SubmittedAt = &now
		app.PaymentDetails = &domain.PaymentDetails{
			OrderID:          req.OrderID,
			PaymentID:        req.PaymentID,
			Amount:           quote.FinalAmount,
			ApplicationFee:   quote.ApplicationFee,
			FullCourseAmount: domain.RoundMoney(quote.TotalCourseFee + quote.ApplicationFee),
			RemainingAmount:  quote.RemainingAmount,
			DiscountAmount:   quote.DiscountAmount,
			CouponCode:       couponCodeIfApplied(quote),
			PaymentOption:    quote.PaymentOption,
			Timestamp:        now,
		}
		app.CurrentStep = domain.StepSuccess
		state.CurrentStep = domain.StepSuccess
		return nil
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrPaymentVerification) {
			return s.reject(ctx, session.ID(), req.PaymentSignature, domain.PaymentKindApplication, err)
		}
		return domain.Session{}, verification, err
	}

	s.record(ctx, domain.PaymentAuditEntry{
		SessionID: updated.ID,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Kind:      domain.PaymentKindApplication,
		Status:    domain.AuditCompleted,
		Amount:    quote.FinalAmount,
	})

	userID, _ := session.UserID(ctx)
	s.publish(ctx, domain.PaymentEvent{
		Kind:       domain.PaymentKindApplication,
		SessionID:  updated.ID,
		UserID:     userID,
		OrderID:    req.OrderID,
		PaymentID:  req.PaymentID,
		Amount:     quote.FinalAmount,
		Option:     quote.PaymentOption,
		CouponCode: couponCodeIfApplied(quote),
		CourseID:   quote.CourseID,
		ProgramID:  quote.ProgramID,
		OccurredAt: now,
	})
	return updated, verification, nil
}

// pendingQuote is the quote an application order was opened for.
func pendingQuote(pending domain.PendingOrder) domain.FeeQuote {
	if pending.Quote != nil {
		return *pending.Quote
	}
	return domain.FeeQuote{FinalAmount: pending.Amount, BaseAmount: pending.Amount}
}

// rememberOrder binds a freshly opened gateway order to the session.
func (s *PaymentService) rememberOrder(ctx context.Context, session ports.SessionHandle, pending domain.PendingOrder) error {
	_, err := session.Mutate(ctx, func(state *domain.Session) error {
		if state.PendingOrders == nil {
			state.PendingOrders = domain.PendingOrders{}
		}
		state.PendingOrders[pending.OrderID] = pending
		return nil
	})
	if err != nil {
		slog.Error("payment_order_bind_failed", "session_id", session.ID(), "order_id", pending.OrderID, "error", err)
	}
	return err
}

// claimOrder removes and returns the pending order orderID of kind. It must run
// inside a session mutation so that one order is settled at most once.
func claimOrder(state *domain.Session, orderID string, kind domain.PaymentKind) (domain.PendingOrder, error) {
	pending, ok := state.PendingOrders[orderID]
	if !ok || pending.Kind != kind {
		return domain.PendingOrder{}, domain.NewPublicError(domain.ErrPaymentVerification, msgOrderNotIssued,
			fmt.Errorf("order %s is not pending for session %s", orderID, state.ID))
	}
	delete(state.PendingOrders, orderID)
	return pending, nil
}

// checkSettlement consults the audit trail: an order already completed, or
// opened by another session, cannot be settled here.
func (s *PaymentService) checkSettlement(ctx context.Context, sessionID, orderID string) error {
	if s.audit == nil {
		return nil
	}
	entries, err := s.audit.ListByOrder(ctx, orderID)
	if err != nil {
		slog.Warn("payment_audit_lookup_failed", "order_id", orderID, "error", err)
		return nil
	}
	for _, entry := range entries {
		switch {
		case entry.Status == domain.AuditCompleted:
			return domain.NewPublicError(domain.ErrConflict, msgPaymentAlreadyDone,
				fmt.Errorf("order %s completed at %s", orderID, entry.CreatedAt.Format(time.RFC3339)))
		case entry.Status == domain.AuditOrderCreated && entry.SessionID != sessionID:
			return domain.NewPublicError(domain.ErrPaymentVerification, msgOrderNotIssued,
				fmt.Errorf("order %s belongs to session %s", orderID, entry.SessionID))
		}
	}
	return nil
}

func (s *PaymentService) reject(ctx context.Context, sessionID string, sig domain.PaymentSignature, kind domain.PaymentKind, err error) (domain.Session, domain.Verification, error) {
	message := domain.PublicMessage(err, msgVerificationFailed)
	slog.Warn("payment_completion_rejected",
		"session_id", sessionID,
		"order_id", sig.OrderID,
		"payment_id", sig.PaymentID,
		"kind", string(kind),
		"error", err,
	)
	s.record(ctx, domain.PaymentAuditEntry{
		SessionID: sessionID,
		OrderID:   sig.OrderID,
		PaymentID: sig.PaymentID,
		Kind:      kind,
		Status:    domain.AuditRejected,
		Detail:    message,
	})
	return domain.Session{}, domain.Verification{Message: message, OrderID: sig.OrderID, PaymentID: sig.PaymentID}, err
}

func couponCodeIfApplied(quote domain.FeeQuote) string {
	if quote.Coupon != nil && quote.Coupon.IsValid {
		return quote.CouponCode
	}
	return ""
}

func (s *PaymentService) publish(ctx context.Context, event domain.PaymentEvent) {
	if s.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := s.publisher.PublishPaymentCompleted(ctx, event); err != nil {
		slog.Error("payment_event_publish_failed",
			"event_id", event.ID,
			"kind", string(event.Kind),
			"order_id", event.OrderID,
			"error", err,
		)
	}
}

func (s *PaymentService) record(ctx context.Context, entry domain.PaymentAuditEntry) {
	if s.audit == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		slog.Warn("payment_audit_failed", "order_id", entry.OrderID, "status", string(entry.Status), "error", err)
	}
}
