package billing

import (
	"context"

	"github.com/nxuacademy/backend/core"
)

// StudentFilter matches a Student by ID or by (lowercased) email.
type StudentFilter struct {
	ID    int
	Email string
}

// Repository is the ledger store. PaymentPlan and Payment rows are written
// only through the Service (initial creation) and the Reconciler (state
// transitions); uniqueness of student emails and gateway transaction ids is
// enforced by storage constraints, not application checks.
type Repository interface {
	// Atomically runs fn inside one storage transaction; the executor it
	// receives must be passed to every repository call made within fn.
	// Any error from fn rolls the whole transaction back.
	Atomically(ctx context.Context, fn func(exec core.DBExecutor) error) error

	CreateStudent(ctx context.Context, st Student, exec ...core.DBExecutor) (Student, error)
	SetStudentCustomerRef(ctx context.Context, studentID int, ref string, exec ...core.DBExecutor) error
	GetStudent(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) (Student, error)

	CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
	SetEnrollmentStatus(ctx context.Context, id int, status EnrollmentStatus, exec ...core.DBExecutor) error
	GetEnrollment(ctx context.Context, id int, exec ...core.DBExecutor) (Enrollment, error)

	CreatePaymentPlan(ctx context.Context, plan PaymentPlan, exec ...core.DBExecutor) (PaymentPlan, error)
	GetPaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) (PaymentPlan, error)
	// LockPaymentPlan reads the plan while holding its row lock for the
	// remainder of the enclosing transaction.
	LockPaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) (PaymentPlan, error)
	// ActivatePaymentPlan marks the deposit paid and the plan active.
	ActivatePaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) error
	// DecrementRemainingPayments atomically decrements the counter of the
	// given plan, marking the plan completed when it reaches 0, and returns
	// the new value. The counter never goes below 0.
	DecrementRemainingPayments(ctx context.Context, id int, exec ...core.DBExecutor) (int, error)

	CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
	QueryPayments(ctx context.Context, planID int, exec ...core.DBExecutor) ([]Payment, error)
}
