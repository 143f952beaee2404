package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

const (
	msgAdmissionFormMissing = "Admission form ID not found"
	msgAcceptTerms          = "Please accept the terms and conditions"
)

// AdmissionService validates wizard steps and pushes progress to the backend.
type AdmissionService struct {
	admissions ports.AdmissionGateway
	validator  *Validator
	now        func() time.Time
}

func NewAdmissionService(admissions ports.AdmissionGateway, validator *Validator) *AdmissionService {
	return &AdmissionService{
		admissions: admissions,
		validator:  validator,
		now:        time.Now,
	}
}

// SubmitStep validates the section edited on step, saves the application to
// the backend and advances to the next step.
func (s *AdmissionService) SubmitStep(ctx context.Context, session ports.SessionHandle, step domain.ApplicationStep) (domain.Session, error) {
	snap := session.Snapshot()
	app := snap.Application

	var section any
	switch step {
	case domain.StepPersonalInfo:
		section = app.PersonalInfo
	case domain.StepAcademicDetails:
		section = app.AcademicDetails
	case domain.StepProgramSelection:
		section = app.ProgramSelection
	default:
		return domain.Session{}, domain.WrapError(domain.ErrInvalidInput, "admission.submit_step",
			fmt.Errorf("step %q has no form to submit", step))
	}
	if err := s.validator.Struct(section); err != nil {
		return domain.Session{}, err
	}

	if err := s.saveProgress(ctx, session, app); err != nil {
		return domain.Session{}, err
	}
	session.FlushProgress(ctx, step)

	userType := snap.UserType
	if userType != domain.UserTypeExisting {
		userType = domain.UserTypeNew
	}
	next, ok := domain.NextStep(userType, step)
	if !ok {
		return snap, nil
	}
	return session.Mutate(ctx, func(state *domain.Session) error {
		state.CurrentStep = next
		state.Application.CurrentStep = next
		return nil
	})
}

// Review confirms the application, issuing its reference when the backend
// has not, and moves on to payment.
func (s *AdmissionService) Review(ctx context.Context, session ports.SessionHandle, agreeToTerms bool) (domain.Session, error) {
	if !agreeToTerms {
		return domain.Session{}, domain.NewPublicError(domain.ErrInvalidInput, msgAcceptTerms, nil)
	}

	app := session.Snapshot().Application
	if app.ApplicationID == "" {
		app.ApplicationID = domain.NewApplicationReference(s.now())
	}
	if err := s.saveProgress(ctx, session, app); err != nil {
		return domain.Session{}, err
	}

	return session.Mutate(ctx, func(state *domain.Session) error {
		if state.Application.ApplicationID == "" {
			state.Application.ApplicationID = app.ApplicationID
		}
		state.CurrentStep = domain.StepPayment
		state.Application.CurrentStep = domain.StepPayment
		return nil
	})
}

func (s *AdmissionService) saveProgress(ctx context.Context, session ports.SessionHandle, app domain.ApplicationData) error {
	formID, ok := session.AdmissionFormID(ctx)
	if !ok {
		return domain.NewPublicError(domain.ErrSessionState, msgAdmissionFormMissing, nil)
	}
	if _, err := s.admissions.SaveProgress(ctx, formID, domain.NewAdmissionPayload(app)); err != nil {
		return err
	}
	return nil
}
