package domain

import (
	"fmt"
	"time"
)

type personalInfoPayload struct {
	PersonalInfo
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
	SignatureURL    string `json:"signatureUrl,omitempty"`
	AadharCardURL   string `json:"aadharCardUrl,omitempty"`
	ProfilePhoto    string `json:"profilePhoto,omitempty"`
	Signature       string `json:"signature,omitempty"`
	AadharCard      string `json:"aadharCard,omitempty"`
}

type academicDetailsPayload struct {
	AcademicDetails
	TenthMarksheet      string `json:"tenthMarksheet"`
	TwelfthMarksheet    string `json:"twelfthMarksheet"`
	DiplomaMarksheet    string `json:"diplomaMarksheet"`
	GraduationMarksheet string `json:"graduationMarksheet"`
}

type documentsPayload struct {
	TenthMarksheetURL      string `json:"tenthMarksheetUrl,omitempty"`
	TwelfthMarksheetURL    string `json:"twelfthMarksheetUrl,omitempty"`
	DiplomaMarksheetURL    string `json:"diplomaMarksheetUrl,omitempty"`
	GraduationMarksheetURL string `json:"graduationMarksheetUrl,omitempty"`
	PhotoURL               string `json:"photoUrl,omitempty"`
	SignatureURL           string `json:"signatureUrl,omitempty"`
	TenthMarksheet         string `json:"tenthMarksheet,omitempty"`
	TwelfthMarksheet       string `json:"twelfthMarksheet,omitempty"`
	DiplomaMarksheet       string `json:"diplomaMarksheet,omitempty"`
	GraduationMarksheet    string `json:"graduationMarksheet,omitempty"`
	Photo                  string `json:"photo,omitempty"`
	Signature              string `json:"signature,omitempty"`
}

// AdmissionPayload is the body of the backend save-progress call. Document URLs
// are projected from ApplicationData.Documents into every place the backend reads them.
type AdmissionPayload struct {
	PersonalInfo     personalInfoPayload    `json:"personalInfo"`
	AcademicDetails  academicDetailsPayload `json:"academicDetails"`
	Documents        documentsPayload       `json:"documents"`
	ProgramSelection ProgramSelection       `json:"programSelection"`
	PaymentComplete  bool                   `json:"paymentComplete"`
	PaymentDetails   *PaymentDetails        `json:"paymentDetails,omitempty"`
	CurrentStep      ApplicationStep        `json:"currentStep"`
	IsComplete       bool                   `json:"isComplete"`
	SubmittedAt      *time.Time             `json:"submittedAt,omitempty"`
	ApplicationID    string                 `json:"applicationId,omitempty"`
}

func NewAdmissionPayload(app ApplicationData) AdmissionPayload {
	docs := app.Documents
	photo := docs.URL(DocumentPhoto)
	signature := docs.URL(DocumentSignature)
	aadhar := docs.URL(DocumentAadharCard)
	tenth := docs.URL(DocumentTenthMarksheet)
	twelfth := docs.URL(DocumentTwelfthMarksheet)
	diploma := docs.URL(DocumentDiplomaMarksheet)
	graduation := docs.URL(DocumentGraduationMarksheet)

	return AdmissionPayload{
		PersonalInfo: personalInfoPayload{
			PersonalInfo:    app.PersonalInfo,
			ProfilePhotoURL: photo,
			SignatureURL:    signature,
			AadharCardURL:   aadhar,
			ProfilePhoto:    photo,
			Signature:       signature,
			AadharCard:      aadhar,
		},
		AcademicDetails: academicDetailsPayload{
			AcademicDetails:     app.AcademicDetails,
			TenthMarksheet:      tenth,
			TwelfthMarksheet:    twelfth,
			DiplomaMarksheet:    diploma,
			GraduationMarksheet: graduation,
		},
		Documents: documentsPayload{
			TenthMarksheetURL:      tenth,
			TwelfthMarksheetURL:    twelfth,
			DiplomaMarksheetURL:    diploma,
			GraduationMarksheetURL: graduation,
			PhotoURL:               photo,
			SignatureURL:           signature,
			TenthMarksheet:         tenth,
			TwelfthMarksheet:       twelfth,
			DiplomaMarksheet:       diploma,
			GraduationMarksheet:    graduation,
			Photo:                  photo,
			Signature:              signature,
		},
		ProgramSelection: app.ProgramSelection,
		PaymentComplete:  app.PaymentComplete,
		PaymentDetails:   app.PaymentDetails,
		CurrentStep:      app.CurrentStep,
		IsComplete:       app.IsComplete,
		SubmittedAt:      app.SubmittedAt,
		ApplicationID:    app.ApplicationID,
	}
}

type SaveProgressResult struct {
	AdmissionID string    `json:"admissionId"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AdmissionSubmission is the final submit sent once the applicant has paid.
type AdmissionSubmission struct {
	UserID         string  `json:"userId"`
	CourseID       string  `json:"courseId"`
	ProgramID      string  `json:"programId"`
	PaymentType    string  `json:"paymentType"`
	CouponCode     string  `json:"couponCode,omitempty"`
	InitialPayment float64 `json:"initialPayment"`
	FirstName      string  `json:"firstName"`
	LastName       string  `json:"lastName"`
	DateOfBirth    string  `json:"dateOfBirth"`
	Gender         string  `json:"gender"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	Pincode        string  `json:"pincode"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email"`
	Education      string  `json:"education"`
	WorkExperience string  `json:"workExperience"`
	TransactionID  string  `json:"transactionId,omitempty"`
	OrderID        string  `json:"orderId,omitempty"`
}

// NewApplicationReference builds the human-facing "APP" reference used when the
// backend has not issued an application id.
func NewApplicationReference(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "APP" + ms
}

type SignupRequest struct {
	FirstName       string `json:"firstName" validate:"required,notblank"`
	LastName        string `json:"lastName" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,numeric,len=10"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
