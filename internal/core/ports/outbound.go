package ports

import (
	"context"
	"io"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

// AuthGateway signs applicants up and in against the remote backend.
type AuthGateway interface {
	Signup(ctx context.Context, req domain.SignupRequest) (domain.AuthResult, error)
	Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error)
}

// ProfileGateway reads a user's profile with admission and payment records.
type ProfileGateway interface {
	Profile(ctx context.Context, userID string) (domain.Profile, error)
}

// AdmissionGateway pushes admission progress and final submissions.
type AdmissionGateway interface {
	SaveProgress(ctx context.Context, admissionFormID string, payload domain.AdmissionPayload) (domain.SaveProgressResult, error)
	Submit(ctx context.Context, submission domain.AdmissionSubmission) error
}

// PaymentRecorder records a completed portal payment against a user.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, userID string, record domain.PaymentRecord) error
}

// CourseCatalog lists courses with their programs and fee structures.
type CourseCatalog interface {
	ListCourses(ctx context.Context) ([]domain.Course, error)
}

// PaymentGateway creates orders at the payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.GatewayOrder, error)
}

// MediaUploader stores an uploaded document and returns its public URL.
type MediaUploader interface {
	Upload(ctx context.Context, file domain.UploadedFile) (domain.UploadResult, error)
}

// DocumentInspector checks that an upload is a readable image or PDF and
// returns the detected content type.
type DocumentInspector interface {
	Inspect(file domain.UploadedFile) (string, error)
}

type PaymentEventPublisher interface {
	PublishPaymentCompleted(ctx context.Context, event domain.PaymentEvent) error
}

type PaymentEventSubscriber interface {
	SubscribePaymentCompleted(ctx context.Context, handler func(context.Context, domain.PaymentEvent) error) error
}

// PaymentAuditRepository keeps the audit trail of orders and verifications.
type PaymentAuditRepository interface {
	Append(ctx context.Context, entry domain.PaymentAuditEntry) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentAuditEntry, error)
}

// ApplicationRenderer renders printable documents.
type ApplicationRenderer interface {
	RenderApplication(w io.Writer, app domain.ApplicationData) error
	RenderReceipt(w io.Writer, account domain.StudentAccount) error
}

// LedgerExporter renders a student's payment history as a spreadsheet.
type LedgerExporter interface {
	ExportPayments(w io.Writer, account domain.StudentAccount) error
}

// ArchiveStorage keeps rendered documents.
type ArchiveStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
