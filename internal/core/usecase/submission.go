package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

// SubmissionProcessor handles payment.completed events: it submits paid
// applications to the backend and archives the rendered documents.
type SubmissionProcessor struct {
	store      *StateStore
	admissions ports.AdmissionGateway
	renderer   ports.ApplicationRenderer
	archive    ports.ArchiveStorage
	audit      ports.PaymentAuditRepository
	now        func() time.Time
}

func NewSubmissionProcessor(
	store *StateStore,
	admissions ports.AdmissionGateway,
	renderer ports.ApplicationRenderer,
	archive ports.ArchiveStorage,
	audit ports.PaymentAuditRepository,
) *SubmissionProcessor {
	return &SubmissionProcessor{
		store:      store,
		admissions: admissions,
		renderer:   renderer,
		archive:    archive,
		audit:      audit,
		now:        time.Now,
	}
}

func (p *SubmissionProcessor) Process(ctx context.Context, event domain.PaymentEvent) error {
	switch event.Kind {
	case domain.PaymentKindApplication:
		return p.processApplication(ctx, event)
	case domain.PaymentKindPortal:
		return p.processPortal(ctx, event)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "submission.process", fmt.Errorf("unknown event kind %q", event.Kind))
	}
}

func (p *SubmissionProcessor) processApplication(ctx context.Context, event domain.PaymentEvent) error {
	var (
		app   domain.ApplicationData
		login domain.LoginData
	)
	if !p.store.Get(ctx, event.SessionID, StateApplicationData, &app) {
		return domain.WrapError(domain.ErrNotFound, "submission.load_application",
			fmt.Errorf("no application stored for session %s", event.SessionID))
	}
	p.store.Get(ctx, event.SessionID, StateLoginData, &login)

	submission := BuildSubmission(event, app, login, p.now())
	if err := p.admissions.Submit(ctx, submission); err != nil {
		slog.Warn("admission_submit_failed",
			"session_id", event.SessionID,
			"order_id", event.OrderID,
			"error", err,
		)
		p.record(ctx, event, domain.AuditSubmitFailed, err.Error())
	} else {
		slog.Info("admission_submitted", "session_id", event.SessionID, "order_id", event.OrderID, "user_id", submission.UserID)
		p.record(ctx, event, domain.AuditSubmitted, "")
	}

	reference := app.ApplicationID
	if reference == "" {
		reference = event.OrderID
	}
	var buf bytes.Buffer
	if err := p.renderer.RenderApplication(&buf, app); err != nil {
		return fmt.Errorf("render application: %w", err)
	}
	if err := p.archive.Save(ctx, "applications/"+reference+".pdf", &buf); err != nil {
		return fmt.Errorf("archive application: %w", err)
	}
	return nil
}

func (p *SubmissionProcessor) processPortal(ctx context.Context, event domain.PaymentEvent) error {
	account, ok := p.store.Student(ctx, event.SessionID)
	if !ok {
		slog.Warn("portal_receipt_skipped", "session_id", event.SessionID, "order_id", event.OrderID)
		return nil
	}
	var buf bytes.Buffer
	if err := p.renderer.RenderReceipt(&buf, *account); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	var errs []error
	if err := p.archive.Save(ctx, "receipts/"+event.OrderID+".pdf", &buf); err != nil {
		errs = append(errs, fmt.Errorf("archive receipt: %w", err))
	}
	p.record(ctx, event, domain.AuditSubmitted, "receipt archived")
	return errors.Join(errs...)
}

// BuildSubmission assembles the backend submit body. The user id prefers the
// event, then the login, then the application reference.
func BuildSubmission(event domain.PaymentEvent, app domain.ApplicationData, login domain.LoginData, now time.Time) domain.AdmissionSubmission {
	userID := event.UserID
	if userID == "" {
		userID = login.UserID
	}
	if userID == "" {
		userID = app.ApplicationID
	}
	if userID == "" {
		userID = fmt.Sprintf("user_%d", now.UnixMilli())
	}

	paymentType := "other"
	if event.Option == domain.PaymentOptionCourse {
		paymentType = "full"
	}

	courseID := event.CourseID
	if courseID == "" {
		courseID = app.ProgramSelection.ProgramType
	}
	programID := event.ProgramID
	if programID == "" {
		programID = app.ProgramSelection.ProgramID
	}
	if programID == "" {
		programID = app.ProgramSelection.ProgramName
	}

	info := app.PersonalInfo
	return domain.AdmissionSubmission{
		UserID:         userID,
		CourseID:       courseID,
		ProgramID:      programID,
		PaymentType:    paymentType,
		CouponCode:     event.CouponCode,
		InitialPayment: event.Amount,
		FirstName:      info.FirstName,
		LastName:       info.LastName,
		DateOfBirth:    info.DateOfBirth,
		Gender:         info.Gender,
		Address:        info.PermanentAddress,
		City:           info.City,
		State:          info.State,
		Pincode:        info.Pincode,
		Phone:          info.Phone,
		Email:          info.Email,
		Education:      app.AcademicDetails.HighestEducation(),
		WorkExperience: "Not specified",
		TransactionID:  event.PaymentID,
		OrderID:        event.OrderID,
	}
}

func (p *SubmissionProcessor) record(ctx context.Context, event domain.PaymentEvent, status domain.AuditStatus, detail string) {
	if p.audit == nil {
		return
	}
	entry := domain.PaymentAuditEntry{
		ID:        uuid.NewString(),
		SessionID: event.SessionID,
		OrderID:   event.OrderID,
		PaymentID: event.PaymentID,
		Kind:      event.Kind,
		Status:    status,
		Amount:    event.Amount,
		Detail:    detail,
		CreatedAt: p.now().UTC(),
	}
	if err := p.audit.Append(ctx, entry); err != nil {
		slog.Warn("payment_audit_failed", "order_id", event.OrderID, "status", string(status), "error", err)
	}
}
