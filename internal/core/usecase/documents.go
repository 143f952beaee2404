package usecase

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

const MaxUploadBytes = 5 << 20

const (
	msgSelectFile        = "Please select a file to upload"
	msgFileTooLarge      = "File size must be less than 5MB"
	msgImageRequired     = "Please upload an image file"
	msgUnsupportedFile   = "Please upload an image or PDF file"
	msgUploadUnavailable = "Failed to upload file. Please try again."
)

// DocumentService checks and stores uploaded application documents.
type DocumentService struct {
	inspector ports.DocumentInspector
	uploader  ports.MediaUploader
	now       func() time.Time
}

func NewDocumentService(inspector ports.DocumentInspector, uploader ports.MediaUploader) *DocumentService {
	return &DocumentService{
		inspector: inspector,
		uploader:  uploader,
		now:       time.Now,
	}
}

// Upload stores file as the document of kind. Photo and signature accept images
// only; the other kinds accept images or PDFs.
func (s *DocumentService) Upload(ctx context.Context, session ports.SessionHandle, kind domain.DocumentKind, file domain.UploadedFile) (domain.Session, error) {
	if file.Size == 0 {
		file.Size = int64(len(file.Data))
	}
	switch {
	case len(file.Data) == 0:
		return domain.Session{}, domain.NewPublicError(domain.ErrInvalidInput, msgSelectFile, nil)
	case file.Size > MaxUploadBytes || len(file.Data) > MaxUploadBytes:
		return domain.Session{}, domain.NewPublicError(domain.ErrInvalidInput, msgFileTooLarge, nil)
	}

	contentType, err := s.inspector.Inspect(file)
	if err != nil {
		return domain.Session{}, domain.NewPublicError(domain.ErrInvalidInput, msgUnsupportedFile, err)
	}
	if kind.ImageOnly() && !strings.HasPrefix(contentType, "image/") {
		return domain.Session{}, domain.NewPublicError(domain.ErrInvalidInput, msgImageRequired, nil)
	}
	file.ContentType = contentType

	result, err := s.uploader.Upload(ctx, file)
	if err != nil {
		slog.Error("document_upload_failed", "session_id", session.ID(), "kind", string(kind), "error", err)
		return domain.Session{}, domain.NewPublicError(domain.ErrUpstream, msgUploadUnavailable, err)
	}

	ref := domain.DocumentRef{
		URL:         result.SecureURL,
		Filename:    file.Filename,
		ContentType: contentType,
		Size:        file.Size,
		UploadedAt:  s.now().UTC(),
	}
	return session.Mutate(ctx, func(state *domain.Session) error {
		docs := state.Application.Documents.Clone()
		docs[kind] = ref
		state.Application.Documents = docs
		return nil
	})
}

// ExportService renders the session's application as a PDF.
type ExportService struct {
	renderer ports.ApplicationRenderer
}

func NewExportService(renderer ports.ApplicationRenderer) *ExportService {
	return &ExportService{renderer: renderer}
}

func (s *ExportService) ExportApplication(_ context.Context, session ports.SessionHandle) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.renderer.RenderApplication(&buf, session.Snapshot().Application); err != nil {
		return nil, domain.WrapError(domain.ErrInternal, "export.application", err)
	}
	return buf.Bytes(), nil
}
