package domain

import (
	"fmt"
	"time"
)

type UserType string

const (
	UserTypeNone     UserType = ""
	UserTypeNew      UserType = "new"
	UserTypeExisting UserType = "existing"
)

func ParseUserType(raw string) (UserType, error) {
	switch UserType(raw) {
	case UserTypeNone, UserTypeNew, UserTypeExisting:
		return UserType(raw), nil
	default:
		return UserTypeNone, fmt.Errorf("%w: unknown user type %q", ErrInvalidInput, raw)
	}
}

type ApplicationStep string

const (
	StepPersonalInfo     ApplicationStep = "personal-info"
	StepAcademicDetails  ApplicationStep = "academic-details"
	StepProgramSelection ApplicationStep = "program-selection"
	StepReview           ApplicationStep = "review"
	StepPayment          ApplicationStep = "payment"
	StepSuccess          ApplicationStep = "success"
	StepLogin            ApplicationStep = "login"
	StepViewApplication  ApplicationStep = "view-application"
	StepEditContinue     ApplicationStep = "edit-continue"
)

func (s ApplicationStep) Valid() bool {
	switch s {
	case StepPersonalInfo, StepAcademicDetails, StepProgramSelection, StepReview, StepPayment,
		StepSuccess, StepLogin, StepViewApplication, StepEditContinue:
		return true
	default:
		return false
	}
}

func ParseStep(raw string) (ApplicationStep, error) {
	step := ApplicationStep(raw)
	if !step.Valid() {
		return "", fmt.Errorf("%w: unknown step %q", ErrInvalidInput, raw)
	}
	return step, nil
}

type PersonalInfo struct {
	FirstName        string `json:"firstName" validate:"required,notblank"`
	LastName         string `json:"lastName" validate:"required,notblank"`
	Email            string `json:"email" validate:"required,email"`
	Phone            string `json:"phone" validate:"required,numeric,len=10"`
	DateOfBirth      string `json:"dateOfBirth" validate:"required"`
	Gender           string `json:"gender" validate:"required"`
	Religion         string `json:"religion" validate:"required"`
	AadharNumber     string `json:"aadharNumber" validate:"required,numeric,len=12"`
	PermanentAddress string `json:"permanentAddress" validate:"required,notblank"`
	TemporaryAddress string `json:"temporaryAddress"`
	City             string `json:"city" validate:"required,notblank"`
	State            string `json:"state" validate:"required"`
	Pincode          string `json:"pincode" validate:"required,numeric,len=6"`

	FathersName          string `json:"fathersName" validate:"required,notblank"`
	FathersPhone         string `json:"fathersPhone" validate:"required,numeric,len=10"`
	FathersOccupation    string `json:"fathersOccupation" validate:"required"`
	FathersQualification string `json:"fathersQualification" validate:"required"`
	MothersName          string `json:"mothersName" validate:"required,notblank"`
	MothersPhone         string `json:"mothersPhone" validate:"required,numeric,len=10"`
	MothersOccupation    string `json:"mothersOccupation" validate:"required"`
	MothersQualification string `json:"mothersQualification" validate:"required"`
	ParentsAddress       string `json:"parentsAddress"`

	LocalGuardianName       string `json:"localGuardianName,omitempty"`
	LocalGuardianPhone      string `json:"localGuardianPhone,omitempty" validate:"omitempty,numeric,len=10"`
	LocalGuardianOccupation string `json:"localGuardianOccupation,omitempty"`
	LocalGuardianRelation   string `json:"localGuardianRelation,omitempty"`
	LocalGuardianAddress    string `json:"localGuardianAddress,omitempty"`

	RandomDocuments []AttachedDocument `json:"randomDocuments,omitempty"`
}

func (p PersonalInfo) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

type AttachedDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type AcademicDetails struct {
	TenthBoard       string `json:"tenthBoard" validate:"required"`
	TenthInstitution string `json:"tenthInstitution" validate:"required,notblank"`
	TenthPercentage  string `json:"tenthPercentage" validate:"required"`
	TenthYear        string `json:"tenthYear" validate:"required"`

	TwelfthBoard       string `json:"twelfthBoard" validate:"required"`
	TwelfthInstitution string `json:"twelfthInstitution" validate:"required,notblank"`
	TwelfthStream      string `json:"twelfthStream" validate:"required"`
	TwelfthPercentage  string `json:"twelfthPercentage" validate:"required"`
	TwelfthYear        string `json:"twelfthYear" validate:"required"`

	DiplomaInstitution string `json:"diplomaInstitution,omitempty"`
	DiplomaStream      string `json:"diplomaStream,omitempty"`
	DiplomaPercentage  string `json:"diplomaPercentage,omitempty"`
	DiplomaYear        string `json:"diplomaYear,omitempty"`

	GraduationUniversity string `json:"graduationUniversity,omitempty"`
	GraduationPercentage string `json:"graduationPercentage,omitempty"`
	GraduationYear       string `json:"graduationYear,omitempty"`
}

// HighestEducation names the highest level filled in, as reported to the backend.
func (a AcademicDetails) HighestEducation() string {
	switch {
	case a.GraduationUniversity != "":
		return "Graduation"
	case a.DiplomaInstitution != "":
		return "Diploma"
	default:
		return "12th Standard"
	}
}

type ProgramSelection struct {
	ProgramType     string `json:"programType" validate:"required"`
	ProgramName     string `json:"programName" validate:"required"`
	ProgramCategory string `json:"programCategory"`
	Specialization  string `json:"specialization,omitempty"`
	Campus          string `json:"campus" validate:"required"`

	ProgramID   string `json:"programId,omitempty"`
	ProgramSlug string `json:"programSlug,omitempty"`
	CourseSlug  string `json:"courseSlug,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
}

type PaymentOption string

const (
	PaymentOptionApplication PaymentOption = "application"
	PaymentOptionCourse      PaymentOption = "course"
	PaymentOptionCustom      PaymentOption = "custom"
)

func (o PaymentOption) Label() string {
	switch o {
	case PaymentOptionApplication:
		return "Application Fee (Online)"
	case PaymentOptionCourse:
		return "Full Course Fee (Online)"
	case PaymentOptionCustom:
		return "Custom Payment (Online)"
	default:
		return "Not Selected"
	}
}

type PaymentDetails struct {
	OrderID          string        `json:"orderId"`
	PaymentID        string        `json:"paymentId"`
	Amount           float64       `json:"amount"`
	ApplicationFee   float64       `json:"applicationFee,omitempty"`
	FullCourseAmount float64       `json:"fullCourseAmount,omitempty"`
	RemainingAmount  float64       `json:"remainingAmount,omitempty"`
	DiscountAmount   float64       `json:"discountAmount,omitempty"`
	CouponCode       string        `json:"couponCode,omitempty"`
	PaymentOption    PaymentOption `json:"paymentOption,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
}

type ApplicationData struct {
	PersonalInfo     PersonalInfo     `json:"personalInfo"`
	AcademicDetails  AcademicDetails  `json:"academicDetails"`
	Documents        Documents        `json:"documents"`
	ProgramSelection ProgramSelection `json:"programSelection"`
	PaymentComplete  bool             `json:"paymentComplete"`
	PaymentDetails   *PaymentDetails  `json:"paymentDetails,omitempty"`
	CurrentStep      ApplicationStep  `json:"currentStep"`
	IsComplete       bool             `json:"isComplete"`
	SubmittedAt      *time.Time       `json:"submittedAt,omitempty"`
	ApplicationID    string           `json:"applicationId,omitempty"`
}

func NewApplicationData() ApplicationData {
	return ApplicationData{
		Documents:   Documents{},
		CurrentStep: StepPersonalInfo,
	}
}

func (a ApplicationData) Validate() error {
	if a.PaymentComplete && a.PaymentDetails == nil {
		return fmt.Errorf("%w: payment marked complete without payment details", ErrInvalidInput)
	}
	if a.CurrentStep != "" && !a.CurrentStep.Valid() {
		return fmt.Errorf("%w: unknown step %q", ErrInvalidInput, a.CurrentStep)
	}
	return nil
}

// ApplicationPatch is a top-level partial update. Nil fields are left untouched;
// a non-nil nested section replaces the stored section as a whole.
type ApplicationPatch struct {
	PersonalInfo     *PersonalInfo     `json:"personalInfo,omitempty"`
	AcademicDetails  *AcademicDetails  `json:"academicDetails,omitempty"`
	Documents        Documents         `json:"documents,omitempty"`
	ProgramSelection *ProgramSelection `json:"programSelection,omitempty"`
	PaymentComplete  *bool             `json:"paymentComplete,omitempty"`
	PaymentDetails   *PaymentDetails   `json:"paymentDetails,omitempty"`
	CurrentStep      *ApplicationStep  `json:"currentStep,omitempty"`
	IsComplete       *bool             `json:"isComplete,omitempty"`
	SubmittedAt      *time.Time        `json:"submittedAt,omitempty"`
	ApplicationID    *string           `json:"applicationId,omitempty"`
}

func (a ApplicationData) Apply(p ApplicationPatch) ApplicationData {
	out := a
	if p.PersonalInfo != nil {
		out.PersonalInfo = *p.PersonalInfo
	}
	if p.AcademicDetails != nil {
		out.AcademicDetails = *p.AcademicDetails
	}
	if p.Documents != nil {
		out.Documents = p.Documents.Clone()
	}
	if p.ProgramSelection != nil {
		out.ProgramSelection = *p.ProgramSelection
	}
	if p.PaymentComplete != nil {
		out.PaymentComplete = *p.PaymentComplete
	}
	if p.PaymentDetails != nil {
		details := *p.PaymentDetails
		out.PaymentDetails = &details
	}
	if p.CurrentStep != nil {
		out.CurrentStep = *p.CurrentStep
	}
	if p.IsComplete != nil {
		out.IsComplete = *p.IsComplete
	}
	if p.SubmittedAt != nil {
		at := *p.SubmittedAt
		out.SubmittedAt = &at
	}
	if p.ApplicationID != nil {
		out.ApplicationID = *p.ApplicationID
	}
	return out
}

// Clone returns a copy that shares no mutable state with a.
func (a ApplicationData) Clone() ApplicationData {
	out := a
	out.Documents = a.Documents.Clone()
	if a.PersonalInfo.RandomDocuments != nil {
		out.PersonalInfo.RandomDocuments = append([]AttachedDocument(nil), a.PersonalInfo.RandomDocuments...)
	}
	if a.PaymentDetails != nil {
		details := *a.PaymentDetails
		out.PaymentDetails = &details
	}
	if a.SubmittedAt != nil {
		at := *a.SubmittedAt
		out.SubmittedAt = &at
	}
	return out
}

type LoginData struct {
	Email           string `json:"email"`
	Password        string `json:"-"`
	UserID          string `json:"userId,omitempty"`
	Token           string `json:"token,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

type LoginPatch struct {
	Email           *string `json:"email,omitempty"`
	Password        *string `json:"password,omitempty"`
	UserID          *string `json:"userId,omitempty"`
	Token           *string `json:"token,omitempty"`
	IsAuthenticated *bool   `json:"isAuthenticated,omitempty"`
}

func (l LoginData) Apply(p LoginPatch) LoginData {
	out := l
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Password != nil {
		out.Password = *p.Password
	}
	if p.UserID != nil {
		out.UserID = *p.UserID
	}
	if p.Token != nil {
		out.Token = *p.Token
	}
	if p.IsAuthenticated != nil {
		out.IsAuthenticated = *p.IsAuthenticated
	}
	return out
}

// Session is the complete mutable state of one browser session.
type Session struct {
	ID          string          `json:"sessionId"`
	UserType    UserType        `json:"userType"`
	CurrentStep ApplicationStep `json:"currentStep"`
	Application ApplicationData `json:"applicationData"`
	Login       LoginData       `json:"loginData"`
	Student     *StudentAccount `json:"student,omitempty"`
	// PendingOrders are server-side only.
	PendingOrders PendingOrders `json:"-"`
}

func NewSession(id string) Session {
	return Session{
		ID:          id,
		UserType:    UserTypeNone,
		CurrentStep: StepPersonalInfo,
		Application: NewApplicationData(),
	}
}

func (s Session) Clone() Session {
	out := s
	out.Application = s.Application.Clone()
	if s.Student != nil {
		student := s.Student.Clone()
		out.Student = &student
	}
	out.PendingOrders = s.PendingOrders.Clone()
	return out
}

type SessionInfo struct {
	SessionID   string          `json:"sessionId"`
	HasData     bool            `json:"hasData"`
	CurrentStep ApplicationStep `json:"currentStep,omitempty"`
	IsActive    bool            `json:"isActive"`
}
