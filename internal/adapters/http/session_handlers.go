package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

// applicationPatchRequest is the part of the application a client may edit.
// Payment and submission fields are only written by the payment and submit flows.
type applicationPatchRequest struct {
	PersonalInfo     *domain.PersonalInfo     `json:"personalInfo,omitempty"`
	AcademicDetails  *domain.AcademicDetails  `json:"academicDetails,omitempty"`
	ProgramSelection *domain.ProgramSelection `json:"programSelection,omitempty"`
	CurrentStep      *domain.ApplicationStep  `json:"currentStep,omitempty"`
}

func (req applicationPatchRequest) patch() domain.ApplicationPatch {
	return domain.ApplicationPatch{
		PersonalInfo:     req.PersonalInfo,
		AcademicDetails:  req.AcademicDetails,
		ProgramSelection: req.ProgramSelection,
		CurrentStep:      req.CurrentStep,
	}
}

// loginPatchRequest only carries the remembered email; authentication state
// comes from the login flows.
type loginPatchRequest struct {
	Email *string `json:"email,omitempty"`
}

func (rt *Router) sessionRoot(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPost, http.MethodDelete) {
		return
	}
	session := rt.session(w, r)

	switch r.Method {
	case http.MethodDelete:
		writeJSON(w, http.StatusOK, session.ResetApplication(r.Context()))
	default:
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

func (rt *Router) sessionInfo(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session := rt.session(w, r)
	writeJSON(w, http.StatusOK, session.SessionInfo(r.Context()))
}

func (rt *Router) sessionApplication(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPatch, http.MethodDelete) {
		return
	}
	session := rt.session(w, r)

	if r.Method == http.MethodDelete {
		writeJSON(w, http.StatusOK, session.ClearApplicationData(r.Context()))
		return
	}

	var req applicationPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	updated, err := session.Mutate(r.Context(), func(s *domain.Session) error {
		uploaded := s.Application.PersonalInfo.RandomDocuments
		s.Application = s.Application.Apply(req.patch())
		if req.PersonalInfo != nil {
			s.Application.PersonalInfo.RandomDocuments = uploaded
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) sessionLogin(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPatch) {
		return
	}
	session := rt.session(w, r)

	var req loginPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	updated, err := session.UpdateLoginData(r.Context(), domain.LoginPatch{Email: req.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) sessionUserType(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}
	session := rt.session(w, r)

	var req struct {
		UserType string `json:"userType"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	userType, err := domain.ParseUserType(req.UserType)
	if err != nil {
		writeError(w, r, domain.NewPublicError(domain.ErrInvalidInput, "Unknown user type", err))
		return
	}
	updated, err := session.SetUserType(r.Context(), userType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) sessionStep(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}
	session := rt.session(w, r)

	var req struct {
		Step string `json:"step"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}
	step, err := parseStep(req.Step)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := session.SetCurrentStep(r.Context(), step)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) sessionSteps(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snapshot := rt.session(w, r).Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"userType":    snapshot.UserType,
		"currentStep": snapshot.CurrentStep,
		"steps":       domain.Wizard(snapshot.UserType, snapshot.CurrentStep),
	})
}

// sessionProgress reads or queues the draft of one step. Queued drafts are
// written after the auto-save debounce.
func (rt *Router) sessionProgress(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	step, err := parseStep(r.PathValue("step"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	session := rt.session(w, r)

	if r.Method == http.MethodGet {
		data, ok := session.LoadProgress(r.Context(), step)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no saved progress"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"step": step, "data": data})
		return
	}

	var data json.RawMessage
	if err := decodeJSON(w, r, &data); err != nil {
		writeInvalidJSON(w)
		return
	}
	if err := session.QueueProgress(step, data); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"step": step, "queued": true})
}

func (rt *Router) flushProgress(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	step, err := parseStep(r.PathValue("step"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	session := rt.session(w, r)
	session.FlushProgress(r.Context(), step)
	writeJSON(w, http.StatusOK, map[string]any{"step": step, "flushed": true})
}

func parseStep(raw string) (domain.ApplicationStep, error) {
	step, err := domain.ParseStep(raw)
	if err != nil {
		return "", domain.NewPublicError(domain.ErrInvalidInput, "Unknown application step", err)
	}
	return step, nil
}
