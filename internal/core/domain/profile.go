package domain

import (
	"strconv"
	"strings"
	"time"
)

// AdmissionForm is the admission record as the backend returns it inside a profile.
type AdmissionForm struct {
	ID        string `json:"_id"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
	Documents struct {
		RandomDocuments []AttachedDocument `json:"randomDocuments"`
	} `json:"documents"`

	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	DateOfBirth      string `json:"dateOfBirth"`
	Gender           string `json:"gender"`
	Religion         string `json:"religion"`
	AadharNumber     string `json:"aadharNumber"`
	AadharCard       string `json:"aadharCard"`
	PermanentAddress string `json:"permanentAddress"`
	TemporaryAddress string `json:"temporaryAddress"`
	City             string `json:"city"`
	State            string `json:"state"`
	Pincode          string `json:"pincode"`

	FathersName             string `json:"fathersName"`
	FathersPhone            string `json:"fathersPhone"`
	FathersOccupation       string `json:"fathersOccupation"`
	FathersQualification    string `json:"fathersQualification"`
	MothersName             string `json:"mothersName"`
	MothersPhone            string `json:"mothersPhone"`
	MothersOccupation       string `json:"mothersOccupation"`
	MothersQualification    string `json:"mothersQualification"`
	ParentsAddress          string `json:"parentsAddress"`
	LocalGuardianName       string `json:"localGuardianName"`
	LocalGuardianPhone      string `json:"localGuardianPhone"`
	LocalGuardianOccupation string `json:"localGuardianOccupation"`
	LocalGuardianRelation   string `json:"localGuardianRelation"`
	LocalGuardianAddress    string `json:"localGuardianAddress"`

	TenthBoard           string `json:"tenthBoard"`
	TenthInstitution     string `json:"tenthInstitution"`
	TenthPercentage      string `json:"tenthPercentage"`
	TenthYear            string `json:"tenthYear"`
	TenthMarksheet       string `json:"tenthMarksheet"`
	TwelfthBoard         string `json:"twelfthBoard"`
	TwelfthInstitution   string `json:"twelfthInstitution"`
	TwelfthStream        string `json:"twelfthStream"`
	TwelfthPercentage    string `json:"twelfthPercentage"`
	TwelfthYear          string `json:"twelfthYear"`
	TwelfthMarksheet     string `json:"twelfthMarksheet"`
	DiplomaInstitution   string `json:"diplomaInstitution"`
	DiplomaStream        string `json:"diplomaStream"`
	DiplomaPercentage    string `json:"diplomaPercentage"`
	DiplomaYear          string `json:"diplomaYear"`
	DiplomaMarksheet     string `json:"diplomaMarksheet"`
	GraduationUniversity string `json:"graduationUniversity"`
	GraduationPercentage string `json:"graduationPercentage"`
	GraduationYear       string `json:"graduationYear"`
	GraduationMarksheet  string `json:"graduationMarksheet"`

	ProgramType     string `json:"programType"`
	ProgramName     string `json:"programName"`
	ProgramCategory string `json:"programCategory"`
	Specialization  string `json:"specialization"`
	Campus          string `json:"campus"`

	ProfilePhoto string `json:"profilePhoto"`
	Signature    string `json:"signature"`

	SubmittedAt       string `json:"submittedAt"`
	PaymentComplete   bool   `json:"paymentComplete"`
	PaymentStatus     string `json:"paymentStatus"`
	ApplicationStatus string `json:"applicationStatus"`
	CreatedAt         string `json:"createdAt"`
	ApplicationID     string `json:"applicationId"`
}

type PaymentInformation struct {
	ID              string               `json:"_id"`
	UserID          string               `json:"userId"`
	AdmissionID     string               `json:"admissionId"`
	CourseID        string               `json:"courseId"`
	ProgramID       string               `json:"programId"`
	TotalFee        float64              `json:"totalFee"`
	ProcessingFee   float64              `json:"processingFee"`
	RegistrationFee float64              `json:"registrationFee"`
	CourseFee       float64              `json:"courseFee"`
	PaymentStatus   string               `json:"paymentStatus"`
	FeePaid         float64              `json:"feePaid"`
	TotalAmountPaid float64              `json:"totalAmountPaid"`
	TotalAmountDue  float64              `json:"totalAmountDue"`
	TotalDiscount   float64              `json:"totalDiscount"`
	NextPaymentDate *string              `json:"nextPaymentDate"`
	IsActive        bool                 `json:"isActive"`
	AppliedCoupons  []AppliedCoupon      `json:"appliedCoupons"`
	Transactions    []PaymentTransaction `json:"paymentTransactions"`
	LastPaymentDate string               `json:"lastPaymentDate"`
}

// Profile is the authenticated user as returned by the backend auth and profile endpoints.
type Profile struct {
	ID                 string               `json:"_id"`
	Name               string               `json:"name"`
	Email              string               `json:"email"`
	Phone              string               `json:"phone"`
	ApplicationID      string               `json:"applicationId"`
	AdmissionForm      *AdmissionForm       `json:"admissionFormId"`
	PaymentInformation []PaymentInformation `json:"paymentInformation"`
	IsActive           bool                 `json:"isActive"`
	IsVerified         bool                 `json:"isVerified"`
}

type AuthResult struct {
	Profile      Profile
	SessionToken string
}

// LatestPayment is the most recent payment information record, which the backend lists first.
func (p Profile) LatestPayment() *PaymentInformation {
	if len(p.PaymentInformation) == 0 {
		return nil
	}
	info := p.PaymentInformation[0]
	return &info
}

// ApplicationData converts the backend admission record into wizard state.
// It reports false when the profile has no admission form yet.
func (p Profile) ApplicationData() (ApplicationData, bool) {
	form := p.AdmissionForm
	if form == nil {
		return ApplicationData{}, false
	}

	app := NewApplicationData()
	app.PersonalInfo = PersonalInfo{
		FirstName:               form.FirstName,
		LastName:                form.LastName,
		Email:                   form.Email,
		Phone:                   form.Phone,
		DateOfBirth:             dateOnly(form.DateOfBirth),
		Gender:                  form.Gender,
		Religion:                form.Religion,
		AadharNumber:            form.AadharNumber,
		PermanentAddress:        form.PermanentAddress,
		TemporaryAddress:        form.TemporaryAddress,
		City:                    form.City,
		State:                   form.State,
		Pincode:                 form.Pincode,
		FathersName:             form.FathersName,
		FathersPhone:            form.FathersPhone,
		FathersOccupation:       form.FathersOccupation,
		FathersQualification:    form.FathersQualification,
		MothersName:             form.MothersName,
		MothersPhone:            form.MothersPhone,
		MothersOccupation:       form.MothersOccupation,
		MothersQualification:    form.MothersQualification,
		ParentsAddress:          form.ParentsAddress,
		LocalGuardianName:       form.LocalGuardianName,
		LocalGuardianPhone:      form.LocalGuardianPhone,
		LocalGuardianOccupation: form.LocalGuardianOccupation,
		LocalGuardianRelation:   form.LocalGuardianRelation,
		LocalGuardianAddress:    form.LocalGuardianAddress,
		RandomDocuments:         append([]AttachedDocument(nil), form.Documents.RandomDocuments...),
	}
	app.AcademicDetails = AcademicDetails{
		TenthBoard:           form.TenthBoard,
		TenthInstitution:     form.TenthInstitution,
		TenthPercentage:      form.TenthPercentage,
		TenthYear:            form.TenthYear,
		TwelfthBoard:         form.TwelfthBoard,
		TwelfthInstitution:   form.TwelfthInstitution,
		TwelfthStream:        form.TwelfthStream,
		TwelfthPercentage:    form.TwelfthPercentage,
		TwelfthYear:          form.TwelfthYear,
		DiplomaInstitution:   form.DiplomaInstitution,
		DiplomaStream:        form.DiplomaStream,
		DiplomaPercentage:    form.DiplomaPercentage,
		DiplomaYear:          form.DiplomaYear,
		GraduationUniversity: form.GraduationUniversity,
		GraduationPercentage: form.GraduationPercentage,
		GraduationYear:       form.GraduationYear,
	}
	app.ProgramSelection = ProgramSelection{
		ProgramType:     form.ProgramType,
		ProgramName:     form.ProgramName,
		ProgramCategory: form.ProgramCategory,
		Specialization:  form.Specialization,
		Campus:          form.Campus,
		CourseSlug:      form.ProgramType,
		ProgramSlug:     form.ProgramName,
	}

	urls := map[DocumentKind]string{
		DocumentPhoto:               form.ProfilePhoto,
		DocumentSignature:           form.Signature,
		DocumentAadharCard:          form.AadharCard,
		DocumentTenthMarksheet:      form.TenthMarksheet,
		DocumentTwelfthMarksheet:    form.TwelfthMarksheet,
		DocumentDiplomaMarksheet:    form.DiplomaMarksheet,
		DocumentGraduationMarksheet: form.GraduationMarksheet,
	}
	for kind, url := range urls {
		if url != "" {
			app.Documents[kind] = DocumentRef{URL: url}
		}
	}

	app.PaymentComplete = form.PaymentComplete
	if latest := p.LatestPayment(); latest != nil {
		details := &PaymentDetails{
			OrderID:          latest.ID,
			Amount:           latest.TotalAmountPaid,
			ApplicationFee:   latest.RegistrationFee,
			FullCourseAmount: latest.TotalFee,
			RemainingAmount:  latest.TotalAmountDue,
			PaymentOption:    PaymentOptionCustom,
			Timestamp:        parseTimestamp(latest.LastPaymentDate),
		}
		if len(latest.Transactions) > 0 {
			details.PaymentID = latest.Transactions[0].TransactionID
		}
		app.PaymentDetails = details
	}
	if app.PaymentComplete && app.PaymentDetails == nil {
		app.PaymentDetails = &PaymentDetails{}
	}

	app.IsComplete = form.ApplicationStatus == "completed"
	if ts := parseTimestamp(form.SubmittedAt); !ts.IsZero() {
		app.SubmittedAt = &ts
	}
	app.ApplicationID = form.ApplicationID
	if app.ApplicationID == "" {
		app.ApplicationID = p.ApplicationID
	}
	return app, true
}

// ResumeStep picks where a returning applicant lands after signing in.
func (a ApplicationData) ResumeStep() ApplicationStep {
	switch {
	case a.IsComplete:
		return StepSuccess
	case a.PaymentComplete:
		return StepReview
	default:
		return StepPersonalInfo
	}
}

// StudentAccount builds the payment portal view from the profile's latest payment record.
func (p Profile) StudentAccount(now time.Time) StudentAccount {
	form := p.AdmissionForm
	if form == nil {
		form = &AdmissionForm{}
	}
	account := StudentAccount{
		StudentID:         p.ID,
		FullName:          strings.TrimSpace(form.FirstName + " " + form.LastName),
		Email:             firstNonEmpty(form.Email, p.Email),
		Phone:             firstNonEmpty(form.Phone, p.Phone),
		ProgramCategory:   form.ProgramCategory,
		SelectedProgram:   form.ProgramName,
		Specialization:    form.Specialization,
		Campus:            form.Campus,
		AdmissionDate:     form.CreatedAt,
		AcademicYear:      strconv.Itoa(now.Year()),
		PaymentStatus:     "pending",
		ApplicationStatus: firstNonEmpty(form.ApplicationStatus, "pending"),
		IsActive:          p.IsActive,
		AppliedCoupons:    []AppliedCoupon{},
		Transactions:      []PaymentTransaction{},
	}

	if info := p.LatestPayment(); info != nil {
		account.HasInitialPayment = info.TotalAmountPaid > 0
		account.ApplicationFee = info.RegistrationFee
		account.PaidAmount = info.TotalAmountPaid
		account.RemainingAmount = info.TotalAmountDue
		account.PaymentStatus = firstNonEmpty(info.PaymentStatus, "pending")
		account.TotalFee = info.TotalFee
		account.ProcessingFee = info.ProcessingFee
		account.RegistrationFee = info.RegistrationFee
		account.CourseFee = info.CourseFee
		account.TotalAmountPaid = info.TotalAmountPaid
		account.TotalAmountDue = info.TotalAmountDue
		account.TotalDiscount = info.TotalDiscount
		if info.NextPaymentDate != nil {
			account.NextPaymentDate = *info.NextPaymentDate
		}
		if info.AppliedCoupons != nil {
			account.AppliedCoupons = append([]AppliedCoupon(nil), info.AppliedCoupons...)
		}
		if info.Transactions != nil {
			account.Transactions = append([]PaymentTransaction(nil), info.Transactions...)
		}
		account.LastPaymentDate = info.LastPaymentDate
	}
	return account
}

func dateOnly(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if ts := parseTimestamp(raw); !ts.IsZero() {
		return ts.UTC().Format(time.DateOnly)
	}
	if len(raw) >= len(time.DateOnly) {
		return raw[:len(time.DateOnly)]
	}
	return raw
}

func parseTimestamp(raw string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if ts, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
