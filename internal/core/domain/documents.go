package domain

import (
	"fmt"
	"time"
)

type DocumentKind string

const (
	DocumentPhoto               DocumentKind = "photo"
	DocumentSignature           DocumentKind = "signature"
	DocumentAadharCard          DocumentKind = "aadharCard"
	DocumentTenthMarksheet      DocumentKind = "tenthMarksheet"
	DocumentTwelfthMarksheet    DocumentKind = "twelfthMarksheet"
	DocumentDiplomaMarksheet    DocumentKind = "diplomaMarksheet"
	DocumentGraduationMarksheet DocumentKind = "graduationMarksheet"
)

func ParseDocumentKind(raw string) (DocumentKind, error) {
	kind := DocumentKind(raw)
	switch kind {
	case DocumentPhoto, DocumentSignature, DocumentAadharCard, DocumentTenthMarksheet,
		DocumentTwelfthMarksheet, DocumentDiplomaMarksheet, DocumentGraduationMarksheet:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, raw)
	}
}

// ImageOnly reports whether the kind accepts images exclusively.
func (k DocumentKind) ImageOnly() bool {
	return k == DocumentPhoto || k == DocumentSignature
}

type DocumentRef struct {
	URL         string    `json:"url,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt,omitempty"`
}

// Documents is the single record of uploaded files for an application.
type Documents map[DocumentKind]DocumentRef

func (d Documents) URL(kind DocumentKind) string {
	if d == nil {
		return ""
	}
	return d[kind].URL
}

func (d Documents) Clone() Documents {
	out := make(Documents, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// UploadedFile is the raw upload handed to the media service.
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

type UploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
}
