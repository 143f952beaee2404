package httpadapter

import (
	"context"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/admission-portal/internal/config"
	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
	"github.com/kirillkom/admission-portal/internal/core/usecase"
	"github.com/kirillkom/admission-portal/internal/infrastructure/kv/memory"
)

type authFake struct {
	err error
}

func (f authFake) Signup(ctx context.Context, session ports.SessionHandle, req domain.SignupRequest) (domain.Session, error) {
	if f.err != nil {
		return domain.Session{}, f.err
	}
	return session.UpdateLoginData(ctx, domain.LoginPatch{Email: &req.Email})
}

func (f authFake) Login(ctx context.Context, session ports.SessionHandle, creds domain.Credentials) (domain.Session, error) {
	if f.err != nil {
		return domain.Session{}, f.err
	}
	authenticated := true
	return session.UpdateLoginData(ctx, domain.LoginPatch{Email: &creds.Email, IsAuthenticated: &authenticated})
}

type admissionFake struct {
	submitted []domain.ApplicationStep
	err       error
}

func (f *admissionFake) SubmitStep(_ context.Context, session ports.SessionHandle, step domain.ApplicationStep) (domain.Session, error) {
	if f.err != nil {
		return domain.Session{}, f.err
	}
	f.submitted = append(f.submitted, step)
	return session.Snapshot(), nil
}

func (f *admissionFake) Review(_ context.Context, session ports.SessionHandle, agreeToTerms bool) (domain.Session, error) {
	if !agreeToTerms {
		return domain.Session{}, domain.NewPublicError(domain.ErrInvalidInput, "Please agree to the terms and conditions", nil)
	}
	return session.Snapshot(), nil
}

type documentsFake struct {
	files []domain.UploadedFile
}

func (f *documentsFake) Upload(ctx context.Context, session ports.SessionHandle, kind domain.DocumentKind, file domain.UploadedFile) (domain.Session, error) {
	f.files = append(f.files, file)
	return session.UpdateApplicationData(ctx, domain.ApplicationPatch{Documents: domain.Documents{
		kind: {URL: "https://cdn.example.com/" + file.Filename, Filename: file.Filename, Size: int64(len(file.Data))},
	}})
}

type exportFake struct{}

func (exportFake) ExportApplication(context.Context, ports.SessionHandle) ([]byte, error) {
	return []byte("%PDF-1.4 application"), nil
}

type paymentsFake struct {
	amounts      []float64
	orderErr     error
	verification domain.Verification
	verifyErr    error
	quotes       []domain.ProgramSelection
}

func (f *paymentsFake) CreateOrder(_ context.Context, amount float64) (domain.Order, error) {
	f.amounts = append(f.amounts, amount)
	if math.IsNaN(amount) || amount <= 0 {
		return domain.Order{}, domain.NewPublicError(domain.ErrInvalidInput, "Invalid amount provided", nil)
	}
	if f.orderErr != nil {
		return domain.Order{}, f.orderErr
	}
	return domain.Order{OrderID: "order_abc", Amount: amount, Currency: "INR"}, nil
}

func (f *paymentsFake) VerifyPayment(context.Context, domain.PaymentSignature) (domain.Verification, error) {
	return f.verification, f.verifyErr
}

func (f *paymentsFake) Courses(context.Context) ([]domain.Course, error) {
	return []domain.Course{{ID: "c1", Slug: "bachelors-degree", Title: "Bachelors Degree", IsActive: true}}, nil
}

func (f *paymentsFake) Quote(_ context.Context, selection domain.ProgramSelection, req domain.QuoteRequest) (domain.FeeQuote, error) {
	f.quotes = append(f.quotes, selection)
	return domain.FeeQuote{PaymentOption: req.PaymentOption, FinalAmount: 2500, CourseName: selection.ProgramName}, nil
}

func (f *paymentsFake) Checkout(context.Context, ports.SessionHandle, domain.QuoteRequest) (domain.Checkout, error) {
	return domain.Checkout{Order: domain.Order{OrderID: "order_abc", Amount: 2500, Currency: "INR"}}, nil
}

func (f *paymentsFake) Complete(_ context.Context, session ports.SessionHandle, _ domain.CompletionRequest) (domain.Session, domain.Verification, error) {
	return session.Snapshot(), f.verification, f.verifyErr
}

type portalFake struct {
	err error
}

func (f portalFake) Login(_ context.Context, session ports.SessionHandle, _ domain.Credentials) (domain.Session, error) {
	return session.Snapshot(), f.err
}

func (f portalFake) Account(context.Context, ports.SessionHandle, bool) (domain.StudentAccount, error) {
	if f.err != nil {
		return domain.StudentAccount{}, f.err
	}
	return domain.StudentAccount{StudentID: "STU1", RemainingAmount: 2500}, nil
}

func (f portalFake) Checkout(context.Context, ports.SessionHandle, domain.PortalCheckoutRequest) (domain.Checkout, error) {
	return domain.Checkout{}, f.err
}

func (f portalFake) Complete(_ context.Context, session ports.SessionHandle, _ domain.PortalCompletionRequest) (domain.Session, domain.Verification, error) {
	return session.Snapshot(), domain.Verification{IsOK: true, Message: "Payment successful"}, f.err
}

func (f portalFake) PaymentHistory(context.Context, ports.SessionHandle) ([]byte, error) {
	return []byte("PK"), f.err
}

func (f portalFake) Receipt(context.Context, ports.SessionHandle) ([]byte, error) {
	return []byte("%PDF-1.4 receipt"), f.err
}

func newTestServices() Services {
	store := usecase.NewStateStore(memory.NewStore(), memory.NewStore(), usecase.StoreConfig{}, nil)
	cfg := usecase.DefaultSessionConfig()
	cfg.AutoSave.Debounce = 10 * time.Millisecond

	return Services{
		Sessions:  usecase.NewSessionManager(store, cfg, nil),
		Auth:      authFake{},
		Admission: &admissionFake{},
		Documents: &documentsFake{},
		Export:    exportFake{},
		Payments:  &paymentsFake{},
		Portal:    portalFake{},
	}
}

func newTestHandler(t *testing.T, cfg config.Config, svc Services) http.Handler {
	t.Helper()
	router, err := NewRouter(cfg, svc, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler()
}
