package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

func selectionPatch() domain.ApplicationPatch {
	return domain.ApplicationPatch{ProgramSelection: &domain.ProgramSelection{
		ProgramType: "design",
		ProgramName: "B.Des",
		Campus:      "Jodhpur",
	}}
}

func TestSubmitStepRequiresAdmissionForm(t *testing.T) {
	manager, _, _, _ := newTestSessions()
	ctx := context.Background()
	session := manager.Open(ctx, testSessionID)
	_, _ = session.UpdateApplicationData(ctx, selectionPatch())

	gateway := &admissionGatewayFake{}
	svc := NewAdmissionService(gateway, NewValidator())

	_, err := svc.SubmitStep(ctx, session, domain.StepProgramSelection)
	if !domain.IsKind(err, domain.ErrSessionState) {
		t.Fatalf("expected session state error, got %v", err)
	}
	if domain.PublicMessage(err, "") != "Admission form ID not found" {
		t.Fatalf("message = %q", domain.PublicMessage(err, ""))
	}
	if len(gateway.payloads) != 0 {
		t.Fatalf("progress saved without form id")
	}
}

func TestSubmitStepValidatesSection(t *testing.T) {
	manager, _, _, _ := newTestSessions()
	ctx := context.Background()
	session := manager.Open(ctx, testSessionID)
	_ = session.RememberAdmissionFormID(ctx, "form_1")

	svc := NewAdmissionService(&admissionGatewayFake{}, NewValidator())
	_, err := svc.SubmitStep(ctx, session, domain.StepPersonalInfo)

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["firstName"]; !ok {
		t.Fatalf("fields = %v", verr.Fields)
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("validation error is not invalid input")
	}
}

func TestSubmitStepSavesAndAdvances(t *testing.T) {
	manager, _, _, _ := newTestSessions()
	ctx := context.Background()
	session := manager.Open(ctx, testSessionID)
	_ = session.RememberAdmissionFormID(ctx, "form_1")
	_, _ = session.UpdateApplicationData(ctx, selectionPatch())

	gateway := &admissionGatewayFake{}
	svc := NewAdmissionService(gateway, NewValidator())

	updated, err := svc.SubmitStep(ctx, session, domain.StepProgramSelection)
	if err != nil {
		t.Fatalf("SubmitStep() error = %v", err)
	}
	if gateway.formID != "form_1" || len(gateway.payloads) != 1 {
		t.Fatalf("gateway = %+v", gateway)
	}
	if updated.CurrentStep != domain.StepReview || updated.Application.CurrentStep != domain.StepReview {
		t.Fatalf("CurrentStep = %q / %q", updated.CurrentStep, updated.Application.CurrentStep)
	}
}

func TestSubmitStepRejectsStepsWithoutForm(t *testing.T) {
	manager, _, _, _ := newTestSessions()
	svc := NewAdmissionService(&admissionGatewayFake{}, NewValidator())

	_, err := svc.SubmitStep(context.Background(), manager.Open(context.Background(), testSessionID), domain.StepPayment)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReviewRequiresTerms(t *testing.T) {
	manager, _, _, _ := newTestSessions()
	svc := NewAdmissionService(&admissionGatewayFake{}, NewValidator())

	_, err := svc.Review(context.Background(), manager.Open(context.Background(), testSessionID), false)
	if domain.PublicMessage(err, "") != "Please accept the terms and conditions" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestReviewIssuesReferenceAndMovesToPayment(t *testing.T) {
	manager, _, _, _ := newTestSessions()
	ctx := context.Background()
	session := manager.Open(ctx, testSessionID)
	_ = session.RememberAdmissionFormID(ctx, "form_1")

	gateway := &admissionGatewayFake{}
	svc := NewAdmissionService(gateway, NewValidator())
	svc.now = func() time.Time { return time.UnixMilli(1700000012345678) }

	updated, err := svc.Review(ctx, session, true)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if updated.Application.ApplicationID != "APP12345678" {
		t.Fatalf("ApplicationID = %q", updated.Application.ApplicationID)
	}
	if updated.CurrentStep != domain.StepPayment {
		t.Fatalf("CurrentStep = %q", updated.CurrentStep)
	}
	if len(gateway.payloads) != 1 {
		t.Fatalf("progress not saved")
	}
}
