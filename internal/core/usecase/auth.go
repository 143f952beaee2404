package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

// AuthService registers and signs in new applicants and restores their saved application.
type AuthService struct {
	auth      ports.AuthGateway
	validator *Validator
}

func NewAuthService(auth ports.AuthGateway, validator *Validator) *AuthService {
	return &AuthService{auth: auth, validator: validator}
}

func (s *AuthService) Signup(ctx context.Context, session ports.SessionHandle, req domain.SignupRequest) (domain.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return domain.Session{}, err
	}
	result, err := s.auth.Signup(ctx, req)
	if err != nil {
		return domain.Session{}, err
	}
	return s.establish(ctx, session, req.Email, result)
}

func (s *AuthService) Login(ctx context.Context, session ports.SessionHandle, creds domain.Credentials) (domain.Session, error) {
	if err := s.validator.Struct(creds); err != nil {
		return domain.Session{}, err
	}
	result, err := s.auth.Login(ctx, creds)
	if err != nil {
		return domain.Session{}, err
	}
	return s.establish(ctx, session, creds.Email, result)
}

// establish stores the authenticated identity and, when the backend already
// holds an admission form, resumes the application where it stopped.
func (s *AuthService) establish(ctx context.Context, session ports.SessionHandle, email string, result domain.AuthResult) (domain.Session, error) {
	profile := result.Profile
	if profile.ID != "" {
		if err := session.RememberUserID(ctx, profile.ID); err != nil {
			slog.Warn("auth_user_id_save_failed", "session_id", session.ID(), "error", err)
		}
	}
	if profile.AdmissionForm != nil && profile.AdmissionForm.ID != "" {
		if err := session.RememberAdmissionFormID(ctx, profile.AdmissionForm.ID); err != nil {
			slog.Warn("auth_admission_form_id_save_failed", "session_id", session.ID(), "error", err)
		}
	}

	app, hasApp := profile.ApplicationData()
	updated, err := session.Mutate(ctx, func(state *domain.Session) error {
		if email == "" {
			email = profile.Email
		}
		state.Login = domain.LoginData{
			Email:           email,
			UserID:          profile.ID,
			Token:           result.SessionToken,
			IsAuthenticated: true,
		}
		if hasApp {
			state.Application = app
			state.CurrentStep = app.ResumeStep()
		} else {
			state.CurrentStep = domain.StepPersonalInfo
		}
		state.UserType = domain.UserTypeNew
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	slog.Info("applicant_authenticated",
		"session_id", session.ID(),
		"user_id", profile.ID,
		"resumed", hasApp,
		"step", string(updated.CurrentStep),
	)
	return updated, nil
}
