package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

type authData struct {
	domain.Profile
	SessionToken string `json:"sessionToken"`
}

func (c *Client) Signup(ctx context.Context, req domain.SignupRequest) (domain.AuthResult, error) {
	var data authData
	err := c.call(ctx, request{
		method:    http.MethodPost,
		path:      "/admission-auth/signup",
		payload:   req,
		operation: "backend.signup",
		failure:   "Signup failed",
	}, &data)
	if err != nil {
		return domain.AuthResult{}, err
	}
	return domain.AuthResult{Profile: data.Profile, SessionToken: data.SessionToken}, nil
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	var data authData
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/admission-auth/login",
		payload: map[string]string{
			"email":    creds.Email,
			"password": creds.Password,
		},
		operation: "backend.login",
		failure:   "Login failed",
	}, &data)
	if err != nil {
		return domain.AuthResult{}, err
	}
	return domain.AuthResult{Profile: data.Profile, SessionToken: data.SessionToken}, nil
}

func (c *Client) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	var profile domain.Profile
	err := c.call(ctx, request{
		method:     http.MethodGet,
		path:       "/admission-auth/profile/" + url.PathEscape(strings.TrimSpace(userID)),
		operation:  "backend.profile",
		failure:    "Failed to fetch payment portal data",
		idempotent: true,
	}, &profile)
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

func (c *Client) SaveProgress(ctx context.Context, admissionFormID string, payload domain.AdmissionPayload) (domain.SaveProgressResult, error) {
	var result domain.SaveProgressResult
	err := c.call(ctx, request{
		method:     http.MethodPut,
		path:       "/admission/" + url.PathEscape(admissionFormID),
		payload:    payload,
		operation:  "backend.save_progress",
		failure:    "Failed to save progress",
		idempotent: true,
	}, &result)
	if err != nil {
		return domain.SaveProgressResult{}, err
	}
	return result, nil
}

func (c *Client) Submit(ctx context.Context, submission domain.AdmissionSubmission) error {
	return c.call(ctx, request{
		method:    http.MethodPost,
		path:      "/admission/submit",
		payload:   submission,
		operation: "backend.submit_admission",
		failure:   "Failed to submit payment data",
	}, nil)
}

func (c *Client) RecordPayment(ctx context.Context, userID string, record domain.PaymentRecord) error {
	return c.call(ctx, request{
		method:    http.MethodPost,
		path:      "/admission-auth/user/" + url.PathEscape(userID) + "/payment",
		payload:   record,
		operation: "backend.record_payment",
		failure:   "Failed to update payment information",
	}, nil)
}

func (c *Client) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	err := c.call(ctx, request{
		method:     http.MethodGet,
		path:       "/courses",
		operation:  "backend.courses",
		failure:    "Failed to fetch courses",
		idempotent: true,
	}, &courses)
	if err != nil {
		return nil, err
	}
	return courses, nil
}
