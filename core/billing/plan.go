package billing

import "errors"

var ErrNegativeAmount = errors.New("course amount cannot be negative")

const (
	// depositPercent is the share of the course price due at enrollment.
	depositPercent = 30
	// monthlyInstallments is the number of equal post-deposit payments.
	monthlyInstallments = 12
)

// PlanBreakdown is the computed deposit/installment split of a course price.
// All amounts are in the currency's minor units.
type PlanBreakdown struct {
	TotalAmount       int64 `json:"total_amount"`
	DepositAmount     int64 `json:"deposit_amount"`
	MonthlyAmount     int64 `json:"monthly_amount"`
	RemainingPayments int   `json:"remaining_payments"`
}

// ComputePlan splits a non-negative course price into a 30% deposit
// (rounded half up) and 12 monthly installments (floor division).
// The division residual is not lost: InstallmentAmount adds it to the
// final installment, so deposit + 11*monthly + final == total exactly.
func ComputePlan(totalAmount int64) (PlanBreakdown, error) {
	if totalAmount < 0 {
		return PlanBreakdown{}, ErrNegativeAmount
	}
	deposit := (totalAmount*depositPercent + 50) / 100
	monthly := (totalAmount - deposit) / monthlyInstallments
	return PlanBreakdown{
		TotalAmount:       totalAmount,
		DepositAmount:     deposit,
		MonthlyAmount:     monthly,
		RemainingPayments: monthlyInstallments,
	}, nil
}

// Residual is the part of the total not covered by the deposit and the 12
// equal installments; at most 11 minor units.
func (b PlanBreakdown) Residual() int64 {
	return b.TotalAmount - b.DepositAmount - b.MonthlyAmount*monthlyInstallments
}

// InstallmentAmount returns the amount due when `remaining` payments are
// left; the final installment carries the rounding residual.
func (b PlanBreakdown) InstallmentAmount(remaining int) int64 {
	if remaining == 1 {
		return b.MonthlyAmount + b.Residual()
	}
	return b.MonthlyAmount
}
