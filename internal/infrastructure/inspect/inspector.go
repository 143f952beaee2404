package inspect

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

const ContentTypePDF = "application/pdf"

var (
	ErrEmpty       = errors.New("empty upload")
	ErrUnsupported = errors.New("unsupported file type")
	ErrUnreadable  = errors.New("file cannot be read")
)

// Inspector decides what an upload really is from its bytes, ignoring the client's claim.
type Inspector struct {
	maxImagePixels int
}

func New() *Inspector {
	return &Inspector{maxImagePixels: 40_000_000}
}

func (i *Inspector) Inspect(file domain.UploadedFile) (string, error) {
	if len(file.Data) == 0 {
		return "", ErrEmpty
	}

	sniffed := http.DetectContentType(file.Data)
	switch {
	case strings.HasPrefix(sniffed, "image/"):
		return i.inspectImage(file.Data)
	case sniffed == ContentTypePDF:
		if err := inspectPDF(file.Data); err != nil {
			return "", err
		}
		return ContentTypePDF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, sniffed)
	}
}

func (i *Inspector) inspectImage(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("%w: empty image", ErrUnreadable)
	}
	if cfg.Width*cfg.Height > i.maxImagePixels {
		return "", fmt.Errorf("%w: image is %dx%d", ErrUnsupported, cfg.Width, cfg.Height)
	}
	return "image/" + format, nil
}

// inspectPDF parses the cross-reference table and requires at least one page.
// The parser panics on some malformed inputs, so panics are reported as unreadable.
func inspectPDF(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if reader.NumPage() < 1 {
		return fmt.Errorf("%w: pdf has no pages", ErrUnreadable)
	}
	return nil
}
