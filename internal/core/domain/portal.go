package domain

import (
	"fmt"
	"strings"
)

type PortalPaymentType string

const (
	PortalPaymentFull    PortalPaymentType = "full"
	PortalPaymentPartial PortalPaymentType = "partial"
)

func ParsePortalPaymentType(raw string) (PortalPaymentType, error) {
	switch PortalPaymentType(strings.ToLower(strings.TrimSpace(raw))) {
	case PortalPaymentFull:
		return PortalPaymentFull, nil
	case PortalPaymentPartial:
		return PortalPaymentPartial, nil
	default:
		return "", fmt.Errorf("%w: unknown payment type %q", ErrInvalidInput, raw)
	}
}

func (t PortalPaymentType) Description() string {
	if t == PortalPaymentFull {
		return "Full payment"
	}
	return "Partial payment"
}

type PaymentTransaction struct {
	TransactionID  string  `json:"transactionId"`
	Amount         float64 `json:"amount"`
	PaymentMethod  string  `json:"paymentMethod"`
	PaymentGateway string  `json:"paymentGateway"`
	Status         string  `json:"status"`
	Description    string  `json:"description"`
	Remarks        string  `json:"remarks"`
	CreatedAt      string  `json:"createdAt"`
}

type AppliedCoupon struct {
	CouponCode     string  `json:"couponCode"`
	DiscountAmount float64 `json:"discountAmount"`
	DiscountType   string  `json:"discountType"`
	OriginalValue  float64 `json:"originalValue"`
	AppliedAt      string  `json:"appliedAt"`
}

// StudentAccount is the fee position of an enrolled student as shown in the payment portal.
type StudentAccount struct {
	StudentID         string               `json:"studentId"`
	FullName          string               `json:"fullName"`
	Email             string               `json:"email"`
	Phone             string               `json:"phone"`
	ProgramCategory   string               `json:"programCategory"`
	SelectedProgram   string               `json:"selectedProgram"`
	Specialization    string               `json:"specialization"`
	Campus            string               `json:"campus"`
	AdmissionDate     string               `json:"admissionDate"`
	HasInitialPayment bool                 `json:"hasInitialPayment"`
	ApplicationFee    float64              `json:"applicationFee"`
	PaidAmount        float64              `json:"paidAmount"`
	RemainingAmount   float64              `json:"remainingAmount"`
	AcademicYear      string               `json:"academicYear"`
	PaymentStatus     string               `json:"paymentStatus"`
	TotalFee          float64              `json:"totalFee"`
	ProcessingFee     float64              `json:"processingFee"`
	RegistrationFee   float64              `json:"registrationFee"`
	CourseFee         float64              `json:"courseFee"`
	TotalAmountPaid   float64              `json:"totalAmountPaid"`
	TotalAmountDue    float64              `json:"totalAmountDue"`
	TotalDiscount     float64              `json:"totalDiscount"`
	NextPaymentDate   string               `json:"nextPaymentDate,omitempty"`
	AppliedCoupons    []AppliedCoupon      `json:"appliedCoupons"`
	Transactions      []PaymentTransaction `json:"paymentTransactions"`
	LastPaymentDate   string               `json:"lastPaymentDate"`
	ApplicationStatus string               `json:"applicationStatus"`
	IsActive          bool                 `json:"isActive"`
}

func (a StudentAccount) Clone() StudentAccount {
	out := a
	out.AppliedCoupons = append([]AppliedCoupon(nil), a.AppliedCoupons...)
	out.Transactions = append([]PaymentTransaction(nil), a.Transactions...)
	return out
}

// ApplyPayment moves amount from the outstanding balance to the paid total.
func (a *StudentAccount) ApplyPayment(amount float64, txn PaymentTransaction) {
	a.PaidAmount += amount
	a.TotalAmountPaid += amount
	a.RemainingAmount -= amount
	if a.RemainingAmount < 0 {
		a.RemainingAmount = 0
	}
	a.TotalAmountDue = a.RemainingAmount
	a.HasInitialPayment = a.PaidAmount > 0
	if a.RemainingAmount == 0 {
		a.PaymentStatus = "completed"
	}
	if txn.CreatedAt != "" {
		a.LastPaymentDate = txn.CreatedAt
	}
	a.Transactions = append([]PaymentTransaction{txn}, a.Transactions...)
}

// PaymentRecord is the body of the backend record-payment call.
type PaymentRecord struct {
	Amount         float64 `json:"amount"`
	TransactionID  string  `json:"transactionId"`
	OrderID        string  `json:"orderId"`
	PaymentMethod  string  `json:"paymentMethod"`
	PaymentGateway string  `json:"paymentGateway"`
	Status         string  `json:"status"`
	Description    string  `json:"description"`
	Remarks        string  `json:"remarks"`
}

func NewPaymentRecord(kind PortalPaymentType, amount float64, orderID, paymentID string) PaymentRecord {
	return PaymentRecord{
		Amount:         amount,
		TransactionID:  paymentID,
		OrderID:        orderID,
		PaymentMethod:  "online",
		PaymentGateway: "razorpay",
		Status:         "success",
		Description:    kind.Description(),
		Remarks:        "Payment completed successfully",
	}
}

// PortalCheckoutRequest selects the portal payment; CustomAmount applies to partial payments.
type PortalCheckoutRequest struct {
	PaymentType  PortalPaymentType `json:"paymentType"`
	CustomAmount float64           `json:"customAmount,omitempty"`
}

type PortalCompletionRequest struct {
	PaymentSignature
}
