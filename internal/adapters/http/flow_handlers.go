package httpadapter

import (
	"errors"
	"io"
	"net/http"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/usecase"
)

const multipartOverhead = 1 << 20

func (rt *Router) signup(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req domain.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	session := rt.session(w, r)

	updated, err := rt.svc.Auth.Signup(r.Context(), session, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeInvalidJSON(w)
		return
	}
	session := rt.session(w, r)

	updated, err := rt.svc.Auth.Login(r.Context(), session, creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) submitStep(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	step, err := parseStep(r.PathValue("step"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	session := rt.session(w, r)

	updated, err := rt.svc.Admission.SubmitStep(r.Context(), session, step)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) review(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		AgreeToTerms bool `json:"agreeToTerms"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	session := rt.session(w, r)

	updated, err := rt.svc.Admission.Review(r.Context(), session, req.AgreeToTerms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// uploadDocument accepts one multipart "file" for the document kind in the path.
func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	kind, err := domain.ParseDocumentKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, domain.NewPublicError(domain.ErrInvalidInput, "Unknown document type", err))
		return
	}
	session := rt.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, usecase.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File size must be less than 5MB"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Please select a file to upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, usecase.MaxUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read uploaded file"})
		return
	}

	updated, err := rt.svc.Documents.Upload(r.Context(), session, kind, domain.UploadedFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":     kind,
		"document": updated.Application.Documents[kind],
	})
}

func (rt *Router) applicationPDF(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session := rt.session(w, r)

	out, err := rt.svc.Export.ExportApplication(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := session.Snapshot().Application.ApplicationID
	if id == "" {
		id = "Pending"
	}
	writeFile(w, "application/pdf", "Application_"+id+".pdf", out)
}
