package ports

import (
	"context"
	"encoding/json"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

// SessionHandle owns the state of one applicant session. Mutations are
// serialized and persisted to both state substrates.
type SessionHandle interface {
	ID() string
	Snapshot() domain.Session
	Mutate(ctx context.Context, fn func(*domain.Session) error) (domain.Session, error)
	UpdateApplicationData(ctx context.Context, patch domain.ApplicationPatch) (domain.Session, error)
	UpdateLoginData(ctx context.Context, patch domain.LoginPatch) (domain.Session, error)
	SetUserType(ctx context.Context, userType domain.UserType) (domain.Session, error)
	SetCurrentStep(ctx context.Context, step domain.ApplicationStep) (domain.Session, error)
	ResetApplication(ctx context.Context) domain.Session
	ClearApplicationData(ctx context.Context) domain.Session
	SessionInfo(ctx context.Context) domain.SessionInfo

	QueueProgress(step domain.ApplicationStep, data any) error
	FlushProgress(ctx context.Context, step domain.ApplicationStep)
	LoadProgress(ctx context.Context, step domain.ApplicationStep) (json.RawMessage, bool)

	RememberUserID(ctx context.Context, userID string) error
	UserID(ctx context.Context) (string, bool)
	RememberAdmissionFormID(ctx context.Context, formID string) error
	AdmissionFormID(ctx context.Context) (string, bool)
}

// SessionProvider resolves a session id (possibly empty or malformed) to a live session.
type SessionProvider interface {
	Open(ctx context.Context, sessionID string) SessionHandle
}

type AuthUseCase interface {
	Signup(ctx context.Context, session SessionHandle, req domain.SignupRequest) (domain.Session, error)
	Login(ctx context.Context, session SessionHandle, creds domain.Credentials) (domain.Session, error)
}

type AdmissionUseCase interface {
	SubmitStep(ctx context.Context, session SessionHandle, step domain.ApplicationStep) (domain.Session, error)
	Review(ctx context.Context, session SessionHandle, agreeToTerms bool) (domain.Session, error)
}

type DocumentUseCase interface {
	Upload(ctx context.Context, session SessionHandle, kind domain.DocumentKind, file domain.UploadedFile) (domain.Session, error)
}

type ExportUseCase interface {
	ExportApplication(ctx context.Context, session SessionHandle) ([]byte, error)
}

type PaymentUseCase interface {
	CreateOrder(ctx context.Context, amount float64) (domain.Order, error)
	VerifyPayment(ctx context.Context, sig domain.PaymentSignature) (domain.Verification, error)
	Courses(ctx context.Context) ([]domain.Course, error)
	Quote(ctx context.Context, selection domain.ProgramSelection, req domain.QuoteRequest) (domain.FeeQuote, error)
	Checkout(ctx context.Context, session SessionHandle, req domain.QuoteRequest) (domain.Checkout, error)
	Complete(ctx context.Context, session SessionHandle, req domain.CompletionRequest) (domain.Session, domain.Verification, error)
}

type PortalUseCase interface {
	Login(ctx context.Context, session SessionHandle, creds domain.Credentials) (domain.Session, error)
	Account(ctx context.Context, session SessionHandle, refresh bool) (domain.StudentAccount, error)
	Checkout(ctx context.Context, session SessionHandle, req domain.PortalCheckoutRequest) (domain.Checkout, error)
	Complete(ctx context.Context, session SessionHandle, req domain.PortalCompletionRequest) (domain.Session, domain.Verification, error)
	PaymentHistory(ctx context.Context, session SessionHandle) ([]byte, error)
	Receipt(ctx context.Context, session SessionHandle) ([]byte, error)
}

// PaymentEventProcessor handles payment.completed events in the worker.
type PaymentEventProcessor interface {
	Process(ctx context.Context, event domain.PaymentEvent) error
}
