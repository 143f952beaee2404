package usecase

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

const (
	msgInvalidPaymentAmount = "Invalid payment amount"
	msgPortalLoginRequired  = "Please log in to access the payment portal"
	msgRecordPaymentFailed  = "Payment received but could not be recorded. Please contact support with your order reference."
)

// PortalService serves existing students paying outstanding fees.
type PortalService struct {
	auth      ports.AuthGateway
	profiles  ports.ProfileGateway
	recorder  ports.PaymentRecorder
	payments  *PaymentService
	renderer  ports.ApplicationRenderer
	ledger    ports.LedgerExporter
	validator *Validator
	now       func() time.Time
}

func NewPortalService(
	auth ports.AuthGateway,
	profiles ports.ProfileGateway,
	recorder ports.PaymentRecorder,
	payments *PaymentService,
	renderer ports.ApplicationRenderer,
	ledger ports.LedgerExporter,
	validator *Validator,
) *PortalService {
	return &PortalService{
		auth:      auth,
		profiles:  profiles,
		recorder:  recorder,
		payments:  payments,
		renderer:  renderer,
		ledger:    ledger,
		validator: validator,
		now:       time.Now,
	}
}

// Login signs an existing student in and loads their fee account.
func (s *PortalService) Login(ctx context.Context, session ports.SessionHandle, creds domain.Credentials) (domain.Session, error) {
	if err := s.validator.Struct(creds); err != nil {
		return domain.Session{}, err
	}
	result, err := s.auth.Login(ctx, creds)
	if err != nil {
		return domain.Session{}, err
	}

	account := result.Profile.StudentAccount(s.now())
	updated, err := session.Mutate(ctx, func(state *domain.Session) error {
		state.Login = domain.LoginData{
			Email:           creds.Email,
			UserID:          result.Profile.ID,
			Token:           result.SessionToken,
			IsAuthenticated: true,
		}
		state.UserType = domain.UserTypeExisting
		state.CurrentStep = domain.StepPayment
		state.Student = &account
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	if err := session.RememberUserID(ctx, result.Profile.ID); err != nil {
		slog.Warn("portal_user_id_save_failed", "session_id", session.ID(), "error", err)
	}
	return updated, nil
}

// Account returns the student's fee account, re-read from the backend when refresh is set.
func (s *PortalService) Account(ctx context.Context, session ports.SessionHandle, refresh bool) (domain.StudentAccount, error) {
	snap := session.Snapshot()
	if !refresh {
		if snap.Student == nil {
			return domain.StudentAccount{}, domain.NewPublicError(domain.ErrUnauthorized, msgPortalLoginRequired, nil)
		}
		return *snap.Student, nil
	}

	userID := snap.Login.UserID
	if userID == "" {
		userID, _ = session.UserID(ctx)
	}
	if userID == "" {
		return domain.StudentAccount{}, domain.NewPublicError(domain.ErrUnauthorized, msgPortalLoginRequired, nil)
	}

	profile, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		return domain.StudentAccount{}, err
	}
	account := profile.StudentAccount(s.now())
	if _, err := session.Mutate(ctx, func(state *domain.Session) error {
		state.Student = &account
		return nil
	}); err != nil {
		return domain.StudentAccount{}, err
	}
	return account, nil
}

// PortalPaymentAmount is the outstanding balance for a full payment, or the
// requested amount capped at the balance for a partial one.
func PortalPaymentAmount(account domain.StudentAccount, req domain.PortalCheckoutRequest) (float64, error) {
	var amount float64
	switch req.PaymentType {
	case domain.PortalPaymentFull:
		amount = account.RemainingAmount
	case domain.PortalPaymentPartial:
		amount = math.Min(req.CustomAmount, account.RemainingAmount)
	}
	if math.IsNaN(amount) || amount <= 0 {
		return 0, domain.NewPublicError(domain.ErrInvalidInput, msgInvalidPaymentAmount, nil)
	}
	return domain.RoundMoney(amount), nil
}

func (s *PortalService) Checkout(ctx context.Context, session ports.SessionHandle, req domain.PortalCheckoutRequest) (domain.Checkout, error) {
	account, err := s.Account(ctx, session, false)
	if err != nil {
		return domain.Checkout{}, err
	}
	amount, err := PortalPaymentAmount(account, req)
	if err != nil {
		return domain.Checkout{}, err
	}

	order, err := s.payments.createOrder(ctx, flowPortal, amount)
	if err != nil {
		return domain.Checkout{}, err
	}
	if err := s.payments.rememberOrder(ctx, session, domain.PendingOrder{
		OrderID:    order.OrderID,
		Kind:       domain.PaymentKindPortal,
		Amount:     amount,
		PortalType: req.PaymentType,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		return domain.Checkout{}, err
	}
	s.payments.record(ctx, domain.PaymentAuditEntry{
		SessionID: session.ID(),
		OrderID:   order.OrderID,
		Kind:      domain.PaymentKindPortal,
		Status:    domain.AuditOrderCreated,
		Amount:    amount,
	})

	label := "Partial Payment"
	if req.PaymentType == domain.PortalPaymentFull {
		label = "Full Payment"
	}
	return domain.Checkout{
		Order: order,
		Options: domain.CheckoutOptions{
			Key:         s.payments.cfg.KeyID,
			Amount:      domain.ToMinorUnits(amount),
			Currency:    order.Currency,
			Name:        s.payments.cfg.PortalCheckoutName,
			Description: label + " - " + account.SelectedProgram,
			OrderID:     order.OrderID,
			Prefill: domain.CheckoutPrefill{
				Name:    account.FullName,
				Email:   account.Email,
				Contact: account.Phone,
			},
			Notes: map[string]string{
				"studentId":   account.StudentID,
				"paymentType": string(req.PaymentType),
			},
		},
	}, nil
}

// Complete verifies the portal payment, records it with the backend and
// moves the amount from the balance to the paid total. The amount is the one
// the order was opened for at Checkout; each order settles once.
func (s *PortalService) Complete(ctx context.Context, session ports.SessionHandle, req domain.PortalCompletionRequest) (domain.Session, domain.Verification, error) {
	verification, err := s.payments.verify(flowPortal, req.PaymentSignature)
	if err != nil {
		s.payments.record(ctx, domain.PaymentAuditEntry{
			SessionID: session.ID(),
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
			Kind:      domain.PaymentKindPortal,
			Status:    domain.AuditRejected,
			Detail:    verification.Message,
		})
		return domain.Session{}, verification, err
	}
	if err := s.payments.checkSettlement(ctx, session.ID(), req.OrderID); err != nil {
		return s.payments.reject(ctx, session.ID(), req.PaymentSignature, domain.PaymentKindPortal, err)
	}

	account, err := s.Account(ctx, session, false)
	if err != nil {
		return domain.Session{}, verification, err
	}

	var pending domain.PendingOrder
	if _, err := session.Mutate(ctx, func(state *domain.Session) error {
		claimed, err := claimOrder(state, req.OrderID, domain.PaymentKindPortal)
		pending = claimed
		return err
	}); err != nil {
		if domain.IsKind(err, domain.ErrPaymentVerification) {
			return s.payments.reject(ctx, session.ID(), req.PaymentSignature, domain.PaymentKindPortal, err)
		}
		return domain.Session{}, verification, err
	}
	amount := pending.Amount

	record := domain.NewPaymentRecord(pending.PortalType, amount, req.OrderID, req.PaymentID)
	if err := s.recorder.RecordPayment(ctx, account.StudentID, record); err != nil {
		// The order stays settleable so the student can retry the completion.
		_ = s.payments.rememberOrder(ctx, session, pending)
		s.payments.record(ctx, domain.PaymentAuditEntry{
			SessionID: session.ID(),
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
			Kind:      domain.PaymentKindPortal,
			Status:    domain.AuditSubmitFailed,
			Amount:    amount,
			Detail:    err.Error(),
		})
		return domain.Session{}, verification, domain.NewPublicError(domain.ErrUpstream, msgRecordPaymentFailed, err)
	}

	now := s.now().UTC()
	txn := domain.PaymentTransaction{
		TransactionID:  req.PaymentID,
		Amount:         amount,
		PaymentMethod:  record.PaymentMethod,
		PaymentGateway: record.PaymentGateway,
		Status:         record.Status,
		Description:    record.Description,
		Remarks:        record.Remarks,
		CreatedAt:      now.Format(time.RFC3339),
	}
	updated, err := session.Mutate(ctx, func(state *domain.Session) error {
		if state.Student == nil {
			return domain.NewPublicError(domain.ErrUnauthorized, msgPortalLoginRequired, nil)
		}
		state.Student.ApplyPayment(amount, txn)
		return nil
	})
	if err != nil {
		return domain.Session{}, verification, err
	}

	s.payments.record(ctx, domain.PaymentAuditEntry{
		SessionID: session.ID(),
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Kind:      domain.PaymentKindPortal,
		Status:    domain.AuditCompleted,
		Amount:    amount,
	})
	s.payments.publish(ctx, domain.PaymentEvent{
		Kind:       domain.PaymentKindPortal,
		SessionID:  session.ID(),
		UserID:     account.StudentID,
		OrderID:    req.OrderID,
		PaymentID:  req.PaymentID,
		Amount:     amount,
		OccurredAt: now,
	})
	return updated, verification, nil
}

// PaymentHistory renders the student's transactions as a spreadsheet.
func (s *PortalService) PaymentHistory(ctx context.Context, session ports.SessionHandle) ([]byte, error) {
	account, err := s.Account(ctx, session, false)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.ledger.ExportPayments(&buf, account); err != nil {
		return nil, domain.WrapError(domain.ErrInternal, "portal.payment_history", err)
	}
	return buf.Bytes(), nil
}

func (s *PortalService) Receipt(ctx context.Context, session ports.SessionHandle) ([]byte, error) {
	account, err := s.Account(ctx, session, false)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.renderer.RenderReceipt(&buf, account); err != nil {
		return nil, domain.WrapError(domain.ErrInternal, "portal.receipt", err)
	}
	return buf.Bytes(), nil
}
