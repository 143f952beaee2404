package pdf

import (
	"fmt"
	"io"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

var applicationTerms = []string{
	"The applicant must fulfill the eligibility criteria as specified in the admission guidelines.",
	"Admission is subject to verification of all original documents during admission process.",
	"If 12th results awaited and student doesn't qualify, school will not be liable for it.",
	"The applicant must provide accurate, current, and complete information in the form.",
	"Any misinformation or false documents will result in immediate disqualification.",
	"The submission of the admission form does not guarantee admission.",
	"Failure to provide required documents within stipulated time may result in rejection.",
	"Admission is confirmed only after payment of the full admission fee as per fee structure.",
	"The fee is non-refundable in any circumstances.",
	"Failure to make timely payments may result in suspension or termination of enrollment.",
	"Rs. 50 per day penalty will be charged for late fee payments.",
	"The admission will be confirmed after verification of documents and payment of fees.",
	"The institution reserves the right to revoke admission if any discrepancies are found.",
	"Upon admission, the student agrees to abide by the rules and regulations of the institution.",
	"Any violation of the code of conduct or disciplinary guidelines may lead to expulsion.",
	"The information provided will be used solely for admission process and remain confidential.",
	"The institution may use data for internal purposes like communication and announcements.",
	"The institution reserves the right to deny admission without providing specific reasons.",
	"The institution reserves the right to modify terms and conditions at any time.",
	"Regular attendance and participation are mandatory for successful course completion.",
	"Course is non-transferable and fees is not refundable in any case.",
	"Students wishing to withdraw from the course must notify the institution in writing.",
	"Exams would be held in different centre if approved by University & main centre.",
	"School reserves the right to change or cancel any test center/city at its discretion.",
}

var receiptNotes = []string{
	"This is an official payment receipt from INFRAME SCHOOL.",
	"Please keep this document safe for future reference.",
	"The remaining balance must be paid as per the fee structure.",
	"For any payment-related queries, contact the admission office.",
	"Payment receipts are automatically generated and are valid for official purposes.",
	"Late payment penalties may apply as per institutional policy.",
	"All payments are non-refundable as per admission terms.",
	"The institution reserves the right to modify fee structure with prior notice.",
}

const declaration = "I hereby declare that all the information provided above is true and correct to the best " +
	"of my knowledge. I understand that any false information may lead to rejection of my application."

// Renderer draws the printable admission form and the existing-student receipt.
type Renderer struct {
	now func() time.Time
}

func New() *Renderer {
	return &Renderer{now: time.Now}
}

func (r *Renderer) RenderApplication(w io.Writer, app domain.ApplicationData) error {
	now := r.now()
	applicationID := app.ApplicationID
	if applicationID == "" {
		applicationID = "Pending"
	}

	p := newPage("Application " + applicationID)
	p.header("ADMISSION FORM")

	info := app.PersonalInfo
	program := app.ProgramSelection
	course := program.ProgramName
	if course == "" {
		course = program.ProgramType
	}

	p.twoFields("Application Form No", applicationID, "Session", academicSession(now))
	p.field("Course", course)
	p.y += 5

	p.section("PERSONAL INFORMATION")
	p.field("Name of the Applicant", info.FullName())
	p.twoFields("Father's Name", info.FathersName, "Mother's Name", info.MothersName)
	p.twoFields("Date of Birth", info.DateOfBirth, "Gender", info.Gender)
	p.twoFields("Religion", info.Religion, "Aadhar Card No", info.AadharNumber)
	p.twoFields("Mobile No", info.Phone, "Email ID", info.Email)
	p.field("Permanent Address", info.PermanentAddress)
	p.field("Temporary Address", info.TemporaryAddress)
	p.twoFields("City", info.City, "State", info.State)
	p.y += 5

	p.section("GUARDIAN DETAILS")
	p.twoFields("Father's Name", info.FathersName, "Mother's Name", info.MothersName)
	p.twoFields("Father's Occupation", info.FathersOccupation, "Mother's Occupation", info.MothersOccupation)
	parentsAddress := info.ParentsAddress
	if parentsAddress == "" {
		parentsAddress = info.PermanentAddress
	}
	p.field("Parent's Address", parentsAddress)
	p.y += 5

	p.section("LOCAL GUARDIAN DETAILS")
	p.twoFields("Local Guardian Name", info.LocalGuardianName, "Mobile No", info.LocalGuardianPhone)
	p.field("Local Guardian Address", info.LocalGuardianAddress)
	p.y += 5

	p.section("EDUCATIONAL DETAILS")
	educationTable(p, app.AcademicDetails)
	p.y += 10

	p.section("PROGRAM SELECTION")
	p.field("Selected Program", course)
	p.field("Specialization", program.Specialization)
	p.field("Campus", program.Campus)
	p.y += 5

	p.section("PAYMENT INFORMATION")
	paymentSection(p, app.PaymentDetails)
	p.y += 5

	p.ensure(30)
	p.font("B", 11)
	p.text(marginLeft, p.y, "TERMS & CONDITIONS")
	p.y += 10
	p.bullets(applicationTerms)

	p.signature("Signature of Applicant:", now)

	p.ensure(20)
	p.font("B", 8)
	p.text(marginLeft, p.y, "DECLARATION:")
	p.y += 6
	p.font("", 7)
	for _, line := range p.doc.SplitText(declaration, pageWidth-40) {
		p.ensure(5)
		p.doc.Text(marginLeft, p.y, line)
		p.y += 5
	}

	p.footer()
	return output(p, w)
}

func educationTable(p *page, academic domain.AcademicDetails) {
	headers := []string{"Exam", "Board", "Institution", "Stream", "Year", "%"}
	widths := []float64{18, 32, 42, 32, 18, 22}
	rows := [][]string{
		{"10th", academic.TenthBoard, academic.TenthInstitution, "", academic.TenthYear, percent(academic.TenthPercentage)},
		{"12th", academic.TwelfthBoard, academic.TwelfthInstitution, academic.TwelfthStream, academic.TwelfthYear, percent(academic.TwelfthPercentage)},
		{"Diploma", academic.DiplomaInstitution, "", academic.DiplomaStream, academic.DiplomaYear, percent(academic.DiplomaPercentage)},
		{"Graduation", academic.GraduationUniversity, "", "", academic.GraduationYear, percent(academic.GraduationPercentage)},
	}
	const rowHeight = 10.0

	p.ensure(rowHeight * float64(len(rows)+1))
	p.doc.SetLineWidth(0.3)
	p.doc.SetXY(marginLeft, p.y)
	p.font("B", 6)
	for i, h := range headers {
		p.doc.CellFormat(widths[i], rowHeight, h, "1", 0, "C", false, 0, "")
	}
	p.y += rowHeight

	p.font("", 6)
	for _, row := range rows {
		p.doc.SetXY(marginLeft, p.y)
		for i, cell := range row {
			text := ""
			if lines := p.doc.SplitText(p.tr(cell), widths[i]-2); len(lines) > 0 {
				text = lines[0]
			}
			p.doc.CellFormat(widths[i], rowHeight, text, "1", 0, "L", false, 0, "")
		}
		p.y += rowHeight
	}
}

func paymentSection(p *page, details *domain.PaymentDetails) {
	if details == nil {
		p.twoFields("Payment Method", domain.PaymentOption("").Label(), "Application Fee", rupees(0))
		p.twoFields("Amount Paid", rupees(0), "Remaining Amount", rupees(0))
		return
	}
	p.twoFields("Payment Method", details.PaymentOption.Label(), "Application Fee", rupees(details.ApplicationFee))
	p.twoFields("Amount Paid", rupees(details.Amount), "Remaining Amount", rupees(details.RemainingAmount))
	if details.DiscountAmount > 0 {
		p.twoFields("Coupon", details.CouponCode, "Discount", rupees(details.DiscountAmount))
	}
	if details.PaymentID != "" {
		p.field("Payment ID", details.PaymentID)
	}
}

func (r *Renderer) RenderReceipt(w io.Writer, account domain.StudentAccount) error {
	now := r.now()
	p := newPage("Payment receipt " + account.StudentID)
	p.header("EXISTING STUDENT - PAYMENT RECEIPT")

	academicYear := account.AcademicYear
	if academicYear == "" {
		academicYear = fmt.Sprint(now.Year())
	}

	p.section("STUDENT INFORMATION")
	p.twoFields("Student ID", account.StudentID, "Student Name", account.FullName)
	p.twoFields("Email", account.Email, "Phone", account.Phone)
	p.twoFields("Admission Date", account.AdmissionDate, "Academic Year", academicYear)
	p.y += 5

	p.section("PROGRAM INFORMATION")
	p.field("Selected Program", account.SelectedProgram)
	p.twoFields("Specialization", account.Specialization, "Campus", account.Campus)
	p.y += 5

	p.section("PAYMENT INFORMATION")
	p.twoFields("Total Fee", rupees(account.TotalFee), "Amount Paid", rupees(account.PaidAmount))
	p.twoFields("Remaining Balance", rupees(account.RemainingAmount), "Payment Progress", progress(account))
	p.twoFields("Payment Status", account.PaymentStatus, "Last Payment", account.LastPaymentDate)

	if len(account.Transactions) > 0 {
		latest := account.Transactions[0]
		p.y += 5
		p.section("RECENT PAYMENT DETAILS")
		p.twoFields("Payment Amount", rupees(latest.Amount), "Payment Type", latest.Description)
		p.twoFields("Transaction ID", latest.TransactionID, "Payment Date", latest.CreatedAt)
	}
	p.y += 5

	p.ensure(30)
	p.font("B", 11)
	p.text(marginLeft, p.y, "IMPORTANT NOTES")
	p.y += 10
	p.bullets(receiptNotes)

	p.signature("Authorized Signature:", now)
	p.footer()
	return output(p, w)
}

// progress is the paid share of the account total; the total falls back to paid plus remaining.
func progress(account domain.StudentAccount) string {
	total := account.PaidAmount + account.RemainingAmount
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", account.PaidAmount/total*100)
}

func output(p *page, w io.Writer) error {
	if err := p.doc.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := p.doc.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
