package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/billing"
)

const pqUniqueViolation = "23505"

// trapUniqueErr maps a psql unique violation on the given constraint to a domain error.
func trapUniqueErr(err error, constraint string, domainErr error) (error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation && pqErr.Constraint == constraint {
		return domainErr, true
	}
	return err, false
}

type billingRepository struct {
	db core.DB
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db core.DB) *billingRepository {
	return &billingRepository{db: db}
}

func (repo billingRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to billing.ErrNotFound
func (repo billingRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return billing.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo billingRepository) Atomically(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

type studentRow struct {
	ID                int         `db:"id"`
	UserID            string      `db:"user_id"`
	FullName          string      `db:"full_name"`
	Email             string      `db:"email"`
	Phone             null.String `db:"phone"`
	GatewayCustomerID null.String `db:"gateway_customer_id"`
	IsActive          bool        `db:"is_active"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func (r studentRow) unpack() billing.Student {
	return billing.Student{
		ID:                r.ID,
		UserID:            r.UserID,
		FullName:          r.FullName,
		Email:             r.Email,
		Phone:             r.Phone.String,
		GatewayCustomerID: r.GatewayCustomerID,
		IsActive:          r.IsActive,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (repo billingRepository) CreateStudent(ctx context.Context, st billing.Student, exec ...core.DBExecutor) (billing.Student, error) {
	const query = `
		INSERT INTO students (user_id, full_name, email, phone, gateway_customer_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := repo.getExec(exec).QueryRowxContext(
		ctx, query,
		st.UserID, st.FullName, st.Email, null.NewString(st.Phone, st.Phone != ""),
		st.GatewayCustomerID, st.IsActive, st.CreatedAt, st.UpdatedAt,
	).Scan(&st.ID)
	if err != nil {
		if mapped, ok := trapUniqueErr(err, "students_email_key", billing.ErrDuplicateEmail); ok {
			return billing.Student{}, mapped
		}
		return billing.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (repo billingRepository) SetStudentCustomerRef(ctx context.Context, studentID int, ref string, exec ...core.DBExecutor) error {
	const query = `
		UPDATE students SET gateway_customer_id = $1, updated_at = $2
		WHERE id = $3 AND gateway_customer_id IS NULL`

	res, err := repo.getExec(exec).ExecContext(ctx, query, ref, time.Now().UTC(), studentID)
	if err != nil {
		return errors.Wrap(err, "setting gateway customer ref")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "setting gateway customer ref")
	} else if n == 0 {
		return errors.Errorf("student %d not found or customer ref already set", studentID)
	}
	return nil
}

func (repo billingRepository) GetStudent(ctx context.Context, filter billing.StudentFilter, exec ...core.DBExecutor) (billing.Student, error) {
	var (
		row   studentRow
		query = `SELECT * FROM students WHERE `
		arg   interface{}
	)
	switch {
	case filter.ID != 0:
		query += `id = $1`
		arg = filter.ID
	case filter.Email != "":
		query += `email = $1`
		arg = filter.Email
	default:
		return billing.Student{}, billing.ErrNotFound
	}

	if err := repo.getExec(exec).GetContext(ctx, &row, query, arg); err != nil {
		return billing.Student{}, repo.trapNoRowsErr(err, "finding student")
	}
	return row.unpack(), nil
}

type enrollmentRow struct {
	ID        int       `db:"id"`
	StudentID int       `db:"student_id"`
	CourseID  string    `db:"course_id"`
	Status    string    `db:"status"`
	StartDate null.Time `db:"start_date"`
	EndDate   null.Time `db:"end_date"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r enrollmentRow) unpack() billing.Enrollment {
	return billing.Enrollment{
		ID:        r.ID,
		StudentID: r.StudentID,
		CourseID:  r.CourseID,
		Status:    billing.EnrollmentStatus(r.Status),
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (repo billingRepository) CreateEnrollment(ctx context.Context, enr billing.Enrollment, exec ...core.DBExecutor) (billing.Enrollment, error) {
	const query = `
		INSERT INTO enrollments (student_id, course_id, status, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := repo.getExec(exec).QueryRowxContext(
		ctx, query,
		enr.StudentID, enr.CourseID, enr.Status, enr.StartDate, enr.EndDate, enr.CreatedAt, enr.UpdatedAt,
	).Scan(&enr.ID)
	if err != nil {
		return billing.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo billingRepository) SetEnrollmentStatus(ctx context.Context, id int, status billing.EnrollmentStatus, exec ...core.DBExecutor) error {
	const query = `UPDATE enrollments SET status = $1, updated_at = $2 WHERE id = $3`

	res, err := repo.getExec(exec).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating enrollment status")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "updating enrollment status")
	} else if n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func (repo billingRepository) GetEnrollment(ctx context.Context, id int, exec ...core.DBExecutor) (billing.Enrollment, error) {
	var row enrollmentRow
	if err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM enrollments WHERE id = $1`, id); err != nil {
		return billing.Enrollment{}, repo.trapNoRowsErr(err, "finding enrollment")
	}
	return row.unpack(), nil
}

type paymentPlanRow struct {
	ID                int       `db:"id"`
	EnrollmentID      int       `db:"enrollment_id"`
	StudentID         int       `db:"student_id"`
	TotalAmount       int64     `db:"total_amount"`
	DepositAmount     int64     `db:"deposit_amount"`
	MonthlyAmount     int64     `db:"monthly_amount"`
	RemainingPayments int       `db:"remaining_payments"`
	DepositPaid       bool      `db:"deposit_paid"`
	Status            string    `db:"status"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r paymentPlanRow) unpack() billing.PaymentPlan {
	return billing.PaymentPlan{
		ID:                r.ID,
		StudentID:         r.StudentID,
		EnrollmentID:      r.EnrollmentID,
		TotalAmount:       r.TotalAmount,
		DepositAmount:     r.DepositAmount,
		MonthlyAmount:     r.MonthlyAmount,
		DepositPaid:       r.DepositPaid,
		RemainingPayments: r.RemainingPayments,
		Status:            billing.PlanStatus(r.Status),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (repo billingRepository) CreatePaymentPlan(ctx context.Context, plan billing.PaymentPlan, exec ...core.DBExecutor) (billing.PaymentPlan, error) {
	const query = `
		INSERT INTO payment_plans
			(enrollment_id, student_id, total_amount, deposit_amount, monthly_amount,
			 remaining_payments, deposit_paid, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := repo.getExec(exec).QueryRowxContext(
		ctx, query,
		plan.EnrollmentID, plan.StudentID, plan.TotalAmount, plan.DepositAmount, plan.MonthlyAmount,
		plan.RemainingPayments, plan.DepositPaid, plan.Status, plan.CreatedAt, plan.UpdatedAt,
	).Scan(&plan.ID)
	if err != nil {
		return billing.PaymentPlan{}, errors.Wrap(err, "inserting payment plan")
	}
	return plan, nil
}

func (repo billingRepository) GetPaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) (billing.PaymentPlan, error) {
	var row paymentPlanRow
	if err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM payment_plans WHERE id = $1`, id); err != nil {
		return billing.PaymentPlan{}, repo.trapNoRowsErr(err, "finding payment plan")
	}
	return row.unpack(), nil
}

func (repo billingRepository) LockPaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) (billing.PaymentPlan, error) {
	var row paymentPlanRow
	if err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM payment_plans WHERE id = $1 FOR UPDATE`, id); err != nil {
		return billing.PaymentPlan{}, repo.trapNoRowsErr(err, "locking payment plan")
	}
	return row.unpack(), nil
}

func (repo billingRepository) ActivatePaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) error {
	const query = `
		UPDATE payment_plans SET deposit_paid = TRUE, status = $1, updated_at = $2
		WHERE id = $3 AND deposit_paid = FALSE`

	res, err := repo.getExec(exec).ExecContext(ctx, query, billing.PlanActive, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "activating payment plan")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "activating payment plan")
	} else if n == 0 {
		return billing.ErrDepositAlreadyPaid
	}
	return nil
}

func (repo billingRepository) DecrementRemainingPayments(ctx context.Context, id int, exec ...core.DBExecutor) (int, error) {
	// the status flips to completed in the same statement that spends the
	// last remaining payment, so no reader can observe an in-between state.
	const query = `
		UPDATE payment_plans
		SET remaining_payments = remaining_payments - 1,
		    status = CASE WHEN remaining_payments - 1 = 0 THEN $1 ELSE status END,
		    updated_at = $2
		WHERE id = $3 AND remaining_payments > 0
		RETURNING remaining_payments`

	var remaining int
	err := repo.getExec(exec).QueryRowxContext(ctx, query, billing.PlanCompleted, time.Now().UTC(), id).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, billing.ErrPlanAlreadySettled
		}
		return 0, errors.Wrap(err, "decrementing remaining payments")
	}
	return remaining, nil
}

type paymentRow struct {
	ID                   int       `db:"id"`
	PlanID               int       `db:"plan_id"`
	StudentID            int       `db:"student_id"`
	GatewayTransactionID string    `db:"gateway_transaction_id"`
	Amount               int64     `db:"amount"`
	Type                 string    `db:"type"`
	Status               string    `db:"status"`
	PaymentDate          time.Time `db:"payment_date"`
	CreatedAt            time.Time `db:"created_at"`
}

func (r paymentRow) unpack() billing.Payment {
	return billing.Payment{
		ID:                   r.ID,
		PaymentPlanID:        r.PlanID,
		StudentID:            r.StudentID,
		Amount:               r.Amount,
		GatewayTransactionID: r.GatewayTransactionID,
		Status:               r.Status,
		Type:                 billing.PaymentKind(r.Type),
		PaymentDate:          r.PaymentDate,
		CreatedAt:            r.CreatedAt,
	}
}

func (repo billingRepository) CreatePayment(ctx context.Context, p billing.Payment, exec ...core.DBExecutor) (billing.Payment, error) {
	const query = `
		INSERT INTO payments (plan_id, student_id, gateway_transaction_id, amount, type, status, payment_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := repo.getExec(exec).QueryRowxContext(
		ctx, query,
		p.PaymentPlanID, p.StudentID, p.GatewayTransactionID, p.Amount, p.Type, p.Status, p.PaymentDate, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		if mapped, ok := trapUniqueErr(err, "payments_gateway_transaction_id_key", billing.ErrDuplicateTransaction); ok {
			return billing.Payment{}, mapped
		}
		return billing.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo billingRepository) QueryPayments(ctx context.Context, planID int, exec ...core.DBExecutor) ([]billing.Payment, error) {
	var rows []paymentRow
	err := repo.getExec(exec).SelectContext(ctx, &rows, `SELECT * FROM payments WHERE plan_id = $1 ORDER BY id`, planID)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}

	payments := make([]billing.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.unpack())
	}
	return payments, nil
}
