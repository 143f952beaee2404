package domain

import (
	"strings"
	"time"
)

type Course struct {
	ID          string    `json:"_id" yaml:"id"`
	Slug        string    `json:"slug" yaml:"slug"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	IsActive    bool      `json:"isActive" yaml:"isActive"`
	Programs    []Program `json:"programs" yaml:"programs"`
}

type Program struct {
	ID                string        `json:"_id" yaml:"id"`
	Slug              string        `json:"slug" yaml:"slug"`
	Title             string        `json:"title" yaml:"title"`
	ParentCourseSlug  string        `json:"parentCourseSlug,omitempty" yaml:"parentCourseSlug"`
	ParentCourseTitle string        `json:"parentCourseTitle,omitempty" yaml:"parentCourseTitle"`
	Duration          string        `json:"duration,omitempty" yaml:"duration"`
	Description       string        `json:"description,omitempty" yaml:"description"`
	ShortDescription  string        `json:"shortDescription,omitempty" yaml:"shortDescription"`
	FeeStructure      *FeeStructure `json:"feeStructure,omitempty" yaml:"feeStructure"`
	IsActive          bool          `json:"isActive" yaml:"isActive"`
}

type FeeStructure struct {
	TotalFee           float64     `json:"totalFee" yaml:"totalFee"`
	MonthlyFee         float64     `json:"monthlyFee" yaml:"monthlyFee"`
	YearlyFee          float64     `json:"yearlyFee" yaml:"yearlyFee"`
	ProcessingFee      float64     `json:"processingFee" yaml:"processingFee"`
	RegistrationFee    float64     `json:"registrationFee" yaml:"registrationFee"`
	EMIOptions         []EMIOption `json:"emiOptions" yaml:"emiOptions"`
	DiscountPercentage float64     `json:"discountPercentage" yaml:"discountPercentage"`
	CouponCodes        []Coupon    `json:"couponCodes" yaml:"couponCodes"`
	PaymentTerms       string      `json:"paymentTerms,omitempty" yaml:"paymentTerms"`
	RefundPolicy       string      `json:"refundPolicy,omitempty" yaml:"refundPolicy"`
	IsActive           bool        `json:"isActive" yaml:"isActive"`
}

type EMIOption struct {
	Months        int     `json:"months" yaml:"months"`
	MonthlyAmount float64 `json:"monthlyAmount" yaml:"monthlyAmount"`
	TotalAmount   float64 `json:"totalAmount" yaml:"totalAmount"`
	ProcessingFee float64 `json:"processingFee" yaml:"processingFee"`
	InterestRate  float64 `json:"interestRate" yaml:"interestRate"`
	IsActive      bool    `json:"isActive" yaml:"isActive"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	Code            string       `json:"code" yaml:"code"`
	DiscountType    DiscountType `json:"discountType" yaml:"discountType"`
	DiscountValue   float64      `json:"discountValue" yaml:"discountValue"`
	MinimumAmount   float64      `json:"minimumAmount" yaml:"minimumAmount"`
	MaximumDiscount float64      `json:"maximumDiscount" yaml:"maximumDiscount"`
	ValidFrom       time.Time    `json:"validFrom" yaml:"validFrom"`
	ValidUntil      time.Time    `json:"validUntil" yaml:"validUntil"`
	UsageLimit      int          `json:"usageLimit" yaml:"usageLimit"`
	UsedCount       int          `json:"usedCount" yaml:"usedCount"`
	IsActive        bool         `json:"isActive" yaml:"isActive"`
	Description     string       `json:"description,omitempty" yaml:"description"`
}

// Applicable reports whether the coupon matches code and may be redeemed at now.
func (c Coupon) Applicable(code string, now time.Time) bool {
	return strings.EqualFold(c.Code, strings.TrimSpace(code)) &&
		c.IsActive &&
		!now.Before(c.ValidFrom) &&
		!now.After(c.ValidUntil) &&
		c.UsedCount < c.UsageLimit
}

type CouponResult struct {
	IsValid        bool    `json:"isValid"`
	DiscountAmount float64 `json:"discountAmount"`
	FinalAmount    float64 `json:"finalAmount"`
	Coupon         *Coupon `json:"coupon,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// FeeLookup is the fee structure of one active program together with its ids.
type FeeLookup struct {
	FeeStructure *FeeStructure
	CourseID     string
	ProgramID    string
	CourseTitle  string
	Duration     string
}

// FindFeeStructure looks up the active program of an active course.
func FindFeeStructure(courses []Course, courseSlug, programSlug string) (FeeLookup, bool) {
	for _, course := range courses {
		if course.Slug != courseSlug || !course.IsActive {
			continue
		}
		for _, program := range course.Programs {
			if program.Slug != programSlug || !program.IsActive {
				continue
			}
			return FeeLookup{
				FeeStructure: program.FeeStructure,
				CourseID:     course.ID,
				ProgramID:    program.ID,
				CourseTitle:  course.Title,
				Duration:     program.Duration,
			}, program.FeeStructure != nil
		}
		return FeeLookup{}, false
	}
	return FeeLookup{}, false
}

type FeeQuote struct {
	ApplicationFee  float64       `json:"applicationFee"`
	TotalCourseFee  float64       `json:"totalCourseFee"`
	PaymentOption   PaymentOption `json:"paymentOption"`
	BaseAmount      float64       `json:"baseAmount"`
	RemainingAmount float64       `json:"remainingAmount"`
	DiscountAmount  float64       `json:"discountAmount"`
	FinalAmount     float64       `json:"finalAmount"`
	CourseName      string        `json:"courseName"`
	CourseDuration  string        `json:"courseDuration"`
	CourseID        string        `json:"courseId,omitempty"`
	ProgramID       string        `json:"programId,omitempty"`
	CouponCode      string        `json:"couponCode,omitempty"`
	Coupon          *CouponResult `json:"coupon,omitempty"`
	EMIOptions      []EMIOption   `json:"emiOptions,omitempty"`
	DefaultedFees   bool          `json:"defaultedFees"`
}

// QuoteRequest selects what the applicant is paying for.
type QuoteRequest struct {
	PaymentOption PaymentOption `json:"paymentOption"`
	CustomAmount  *float64      `json:"customAmount,omitempty"`
	CouponCode    string        `json:"couponCode,omitempty"`
}

// CompletionRequest carries the signed checkout callback. What was paid for is
// taken from the pending order, never from the request.
type CompletionRequest struct {
	PaymentSignature
}

// OrderRequest is the gateway order body; Amount is in minor units (paise).
type OrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Order struct {
	OrderID  string  `json:"orderId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type Verification struct {
	IsOK      bool   `json:"isOk"`
	Message   string `json:"message"`
	OrderID   string `json:"orderId,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
}

// CheckoutOptions configures the hosted checkout widget on the client.
type CheckoutOptions struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	OrderID     string            `json:"order_id"`
	Prefill     CheckoutPrefill   `json:"prefill"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type CheckoutPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type Checkout struct {
	Order   Order           `json:"order"`
	Options CheckoutOptions `json:"options"`
	Quote   *FeeQuote       `json:"quote,omitempty"`
}

// PaymentSignature is the signed callback returned by the checkout widget.
type PaymentSignature struct {
	OrderID   string `json:"razorpayOrderId"`
	PaymentID string `json:"razorpayPaymentId"`
	Signature string `json:"razorpaySignature"`
}

type PaymentKind string

const (
	PaymentKindApplication PaymentKind = "application"
	PaymentKindPortal      PaymentKind = "portal"
)

// PaymentEvent is published once a verified payment has been applied to a session.
type PaymentEvent struct {
	ID         string        `json:"id"`
	Kind       PaymentKind   `json:"kind"`
	SessionID  string        `json:"sessionId"`
	UserID     string        `json:"userId,omitempty"`
	OrderID    string        `json:"orderId"`
	PaymentID  string        `json:"paymentId"`
	Amount     float64       `json:"amount"`
	Option     PaymentOption `json:"paymentOption,omitempty"`
	CouponCode string        `json:"couponCode,omitempty"`
	CourseID   string        `json:"courseId,omitempty"`
	ProgramID  string        `json:"programId,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

type AuditStatus string

const (
	AuditOrderCreated AuditStatus = "order_created"
	AuditVerified     AuditStatus = "verified"
	AuditRejected     AuditStatus = "rejected"
	AuditCompleted    AuditStatus = "completed"
	AuditSubmitted    AuditStatus = "submitted"
	AuditSubmitFailed AuditStatus = "submit_failed"
)

// PendingOrder is a gateway order opened by a checkout and not yet completed.
// Completion settles exactly the amount recorded here.
type PendingOrder struct {
	OrderID    string            `json:"orderId"`
	Kind       PaymentKind       `json:"kind"`
	Amount     float64           `json:"amount"`
	Quote      *FeeQuote         `json:"quote,omitempty"`
	PortalType PortalPaymentType `json:"portalType,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type PendingOrders map[string]PendingOrder

func (p PendingOrders) Clone() PendingOrders {
	if p == nil {
		return nil
	}
	out := make(PendingOrders, len(p))
	for id, order := range p {
		if order.Quote != nil {
			quote := *order.Quote
			order.Quote = &quote
		}
		out[id] = order
	}
	return out
}

type PaymentAuditEntry struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	OrderID   string      `json:"orderId"`
	PaymentID string      `json:"paymentId,omitempty"`
	Kind      PaymentKind `json:"kind,omitempty"`
	Status    AuditStatus `json:"status"`
	Amount    float64     `json:"amount"`
	Detail    string      `json:"detail,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
