package billing

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/nxuacademy/backend/core"
)

// Enrollment statuses
type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// Payment plan statuses
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
)

// PaymentKind discriminates deposit payments from monthly installments.
type PaymentKind string

const (
	PaymentDeposit PaymentKind = "deposit"
	PaymentMonthly PaymentKind = "monthly"
)

func (k PaymentKind) Valid() bool {
	return k == PaymentDeposit || k == PaymentMonthly
}

type Student struct {
	ID                int         `json:"id"`
	UserID            string      `json:"user_id"`
	FullName          string      `json:"full_name"`
	Email             string      `json:"email"`
	Phone             string      `json:"phone"`
	GatewayCustomerID null.String `json:"gateway_customer_id"`
	IsActive          bool        `json:"is_active"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

type Enrollment struct {
	ID        int              `json:"id"`
	StudentID int              `json:"student_id"`
	CourseID  string           `json:"course_id"`
	Status    EnrollmentStatus `json:"status"`
	StartDate null.Time        `json:"start_date"`
	EndDate   null.Time        `json:"end_date"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PaymentPlan tracks the deposit and the 12 monthly installments of one
// Enrollment. Amounts are in the currency's minor units.
type PaymentPlan struct {
	ID                int        `json:"id"`
	StudentID         int        `json:"student_id"`
	EnrollmentID      int        `json:"enrollment_id"`
	TotalAmount       int64      `json:"total_amount"`
	DepositAmount     int64      `json:"deposit_amount"`
	MonthlyAmount     int64      `json:"monthly_amount"`
	DepositPaid       bool       `json:"deposit_paid"`
	RemainingPayments int        `json:"remaining_payments"`
	Status            PlanStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (p PaymentPlan) Breakdown() PlanBreakdown {
	return PlanBreakdown{
		TotalAmount:       p.TotalAmount,
		DepositAmount:     p.DepositAmount,
		MonthlyAmount:     p.MonthlyAmount,
		RemainingPayments: p.RemainingPayments,
	}
}

// InstallmentAmount returns the amount due for the next monthly payment.
// The rounding residual is carried by the final installment.
func (p PaymentPlan) InstallmentAmount() int64 {
	return p.Breakdown().InstallmentAmount(p.RemainingPayments)
}

// Payment is an immutable record of one confirmed transaction,
// appended only once the gateway reports success.
type Payment struct {
	ID                   int         `json:"id"`
	PaymentPlanID        int         `json:"payment_plan_id"`
	StudentID            int         `json:"student_id"`
	Amount               int64       `json:"amount"`
	GatewayTransactionID string      `json:"gateway_transaction_id"`
	Status               string      `json:"status"`
	Type                 PaymentKind `json:"type"`
	PaymentDate          time.Time   `json:"payment_date"`
	CreatedAt            time.Time   `json:"created_at"`
}

// NewEnrollment contains information needed to enroll a student in a course.
// CourseAmount is resolved server-side from the course catalog.
type NewEnrollment struct {
	FullName     string `json:"full_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"omitempty,min=7,max=20"`
	CourseID     string `json:"course_id" validate:"required"`
	CourseAmount int64  `json:"-"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.FullName = core.CleanString(ne.FullName)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.Phone = core.CleanString(ne.Phone)
	ne.CourseID = core.CleanString(ne.CourseID)
	return validate.Struct(ne)
}

// EnrollmentResult is what a successful enrollment hands back to the caller:
// the created records plus the gateway's client secret for completing the
// deposit payment out of band.
type EnrollmentResult struct {
	Student      Student     `json:"student"`
	Enrollment   Enrollment  `json:"enrollment"`
	PaymentPlan  PaymentPlan `json:"payment_plan"`
	ClientSecret string      `json:"client_secret"`
}
