package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/infrastructure/resilience"
)

const (
	DefaultAPIURL = "https://api.cloudinary.com"
	DefaultFolder = "admission-portal"
)

// Uploader sends documents to Cloudinary with an unsigned upload preset.
type Uploader struct {
	apiURL       string
	cloudName    string
	uploadPreset string
	folder       string
	httpClient   *http.Client
	executor     *resilience.Executor
}

type Options struct {
	APIURL             string
	Folder             string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(cloudName, uploadPreset string, options Options) *Uploader {
	apiURL := strings.TrimRight(strings.TrimSpace(options.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	folder := strings.TrimSpace(options.Folder)
	if folder == "" {
		folder = DefaultFolder
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Uploader{
		apiURL:       apiURL,
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		folder:       folder,
		httpClient:   &http.Client{Timeout: timeout},
		executor:     options.ResilienceExecutor,
	}
}

func (u *Uploader) Upload(ctx context.Context, file domain.UploadedFile) (domain.UploadResult, error) {
	if u.cloudName == "" || u.uploadPreset == "" {
		return domain.UploadResult{}, domain.WrapError(domain.ErrConfiguration, "cloudinary upload",
			errors.New("cloud name or upload preset not configured"))
	}
	body, contentType, err := u.encode(file)
	if err != nil {
		return domain.UploadResult{}, err
	}

	result, err := resilience.Call(ctx, u.executor, "cloudinary.upload", func(callCtx context.Context) (domain.UploadResult, error) {
		return u.post(callCtx, body, contentType)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return domain.UploadResult{}, resilience.WrapTemporaryIfNeeded("cloudinary upload", err)
	}
	return result, nil
}

func (u *Uploader) encode(file domain.UploadedFile) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(file.Filename)))
	if file.ContentType != "" {
		header.Set("Content-Type", file.ContentType)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.WriteField("upload_preset", u.uploadPreset); err != nil {
		return nil, "", fmt.Errorf("write upload_preset: %w", err)
	}
	if err := w.WriteField("folder", u.folder); err != nil {
		return nil, "", fmt.Errorf("write folder: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (u *Uploader) post(ctx context.Context, body []byte, contentType string) (domain.UploadResult, error) {
	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", u.apiURL, u.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("cloudinary upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.UploadResult{}, resilience.NewHTTPStatusError("cloudinary upload", resp)
	}

	var result domain.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	if result.SecureURL == "" {
		return domain.UploadResult{}, domain.WrapError(domain.ErrUpstream, "cloudinary upload", errors.New("response has no secure_url"))
	}
	return result, nil
}
