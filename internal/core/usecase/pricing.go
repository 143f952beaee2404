package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

const (
	defaultApplicationFee = 1000
	defaultTotalCourseFee = 50000
	minimumCustomAmount   = 100
)

const (
	msgFeeStructureNotFound = "Fee structure not found"
	msgInvalidCoupon        = "Invalid or expired coupon code"
	msgEnterPaymentAmount   = "Please enter a payment amount"
	msgEnterValidAmount     = "Please enter a valid amount"
)

// ValidateCoupon applies code to amount under the coupons of fees.
func ValidateCoupon(fees *domain.FeeStructure, code string, amount float64, now time.Time) domain.CouponResult {
	if fees == nil {
		return domain.CouponResult{FinalAmount: amount, Error: msgFeeStructureNotFound}
	}

	var coupon *domain.Coupon
	for i := range fees.CouponCodes {
		if fees.CouponCodes[i].Applicable(code, now) {
			c := fees.CouponCodes[i]
			coupon = &c
			break
		}
	}
	if coupon == nil {
		return domain.CouponResult{FinalAmount: amount, Error: msgInvalidCoupon}
	}
	if amount < coupon.MinimumAmount {
		return domain.CouponResult{
			FinalAmount: amount,
			Error:       "Minimum amount required: ₹" + domain.FormatINR(coupon.MinimumAmount),
		}
	}

	value := decimal.NewFromFloat(amount)
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case domain.DiscountPercentage:
		discount = value.Mul(decimal.NewFromFloat(coupon.DiscountValue)).Div(decimal.NewFromInt(100))
		discount = decimal.Min(discount, decimal.NewFromFloat(coupon.MaximumDiscount))
	default:
		discount = decimal.NewFromFloat(coupon.DiscountValue)
	}
	final := decimal.Max(decimal.Zero, value.Sub(discount))

	return domain.CouponResult{
		IsValid:        true,
		DiscountAmount: discount.Round(2).InexactFloat64(),
		FinalAmount:    final.Round(2).InexactFloat64(),
		Coupon:         coupon,
	}
}

// ActiveEMIOptions returns the EMI plans of fees that are currently offered.
func ActiveEMIOptions(fees *domain.FeeStructure) []domain.EMIOption {
	if fees == nil {
		return nil
	}
	out := make([]domain.EMIOption, 0, len(fees.EMIOptions))
	for _, opt := range fees.EMIOptions {
		if opt.IsActive {
			out = append(out, opt)
		}
	}
	return out
}

// QuoteFees prices req against the program's fee structure, falling back to the
// default fees when the program has none.
func QuoteFees(lookup domain.FeeLookup, found bool, req domain.QuoteRequest, now time.Time) (domain.FeeQuote, error) {
	quote := domain.FeeQuote{
		PaymentOption:  req.PaymentOption,
		CourseName:     lookup.CourseTitle,
		CourseDuration: lookup.Duration,
		CourseID:       lookup.CourseID,
		ProgramID:      lookup.ProgramID,
		CouponCode:     req.CouponCode,
	}

	applicationFee := decimal.NewFromInt(defaultApplicationFee)
	totalFee := decimal.NewFromInt(defaultTotalCourseFee)
	var fees *domain.FeeStructure
	if found && lookup.FeeStructure != nil {
		fees = lookup.FeeStructure
		applicationFee = decimal.NewFromFloat(fees.RegistrationFee)
		totalFee = decimal.NewFromFloat(fees.TotalFee)
		quote.EMIOptions = ActiveEMIOptions(fees)
	} else {
		quote.DefaultedFees = true
	}
	quote.ApplicationFee = applicationFee.InexactFloat64()
	quote.TotalCourseFee = totalFee.InexactFloat64()

	var base, remaining decimal.Decimal
	switch req.PaymentOption {
	case domain.PaymentOptionApplication:
		base = applicationFee
	case domain.PaymentOptionCourse:
		base = totalFee.Add(applicationFee)
	case domain.PaymentOptionCustom:
		ceiling := totalFee.Add(applicationFee)
		custom, err := validateCustomAmount(req.CustomAmount, ceiling)
		if err != nil {
			return domain.FeeQuote{}, err
		}
		base = custom
		remaining = ceiling.Sub(custom)
	default:
		return domain.FeeQuote{}, domain.NewPublicError(domain.ErrInvalidInput, "Please select a payment option",
			fmt.Errorf("unknown payment option %q", req.PaymentOption))
	}

	quote.BaseAmount = base.Round(2).InexactFloat64()
	quote.RemainingAmount = remaining.Round(2).InexactFloat64()
	quote.FinalAmount = quote.BaseAmount

	if req.CouponCode != "" {
		result := ValidateCoupon(fees, req.CouponCode, quote.BaseAmount, now)
		quote.Coupon = &result
		if result.IsValid {
			quote.DiscountAmount = result.DiscountAmount
			quote.FinalAmount = result.FinalAmount
		}
	}
	return quote, nil
}

func validateCustomAmount(amount *float64, ceiling decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, domain.NewPublicError(domain.ErrInvalidInput, msgEnterPaymentAmount, nil)
	}
	if math.IsNaN(*amount) || math.IsInf(*amount, 0) || *amount <= 0 {
		return decimal.Zero, domain.NewPublicError(domain.ErrInvalidInput, msgEnterValidAmount, nil)
	}
	value := decimal.NewFromFloat(*amount)
	if value.GreaterThan(ceiling) {
		return decimal.Zero, domain.NewPublicError(domain.ErrInvalidInput,
			"Amount cannot exceed total amount of ₹"+domain.FormatINR(ceiling.InexactFloat64()), nil)
	}
	if value.LessThan(decimal.NewFromInt(minimumCustomAmount)) {
		return decimal.Zero, domain.NewPublicError(domain.ErrInvalidInput,
			"Minimum payment amount is ₹"+domain.FormatINR(minimumCustomAmount), nil)
	}
	return value, nil
}
