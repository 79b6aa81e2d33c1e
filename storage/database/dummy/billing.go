package dummydb

import (
	"context"
	"sort"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/billing"
)

type billingRepository struct {
	db *DB
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *DB) *billingRepository {
	return &billingRepository{db: db}
}

// Atomically snapshots the whole store and restores it if fn fails. Blocks
// are serialized, so row locking is a no-op here.
func (repo *billingRepository) Atomically(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	repo.db.txMu.Lock()
	defer repo.db.txMu.Unlock()

	snap := repo.db.snapshot()
	if err := fn(nil); err != nil {
		repo.db.restore(snap)
		return err
	}
	return nil
}

func (repo *billingRepository) CreateStudent(ctx context.Context, st billing.Student, exec ...core.DBExecutor) (billing.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.students {
		if existing.Email == st.Email {
			return billing.Student{}, billing.ErrDuplicateEmail
		}
	}

	repo.db.studentPK++
	st.ID = repo.db.studentPK
	repo.db.students[st.ID] = st
	return st, nil
}

func (repo *billingRepository) SetStudentCustomerRef(ctx context.Context, studentID int, ref string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st, ok := repo.db.students[studentID]
	if !ok {
		return billing.ErrNotFound
	}
	if st.GatewayCustomerID.Valid {
		return billing.ErrNotFound
	}
	st.GatewayCustomerID.SetValid(ref)
	repo.db.students[studentID] = st
	return nil
}

func (repo *billingRepository) GetStudent(ctx context.Context, filter billing.StudentFilter, exec ...core.DBExecutor) (billing.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != 0 {
		if st, ok := repo.db.students[filter.ID]; ok {
			return st, nil
		}
		return billing.Student{}, billing.ErrNotFound
	}
	for _, st := range repo.db.students {
		if st.Email == filter.Email {
			return st, nil
		}
	}
	return billing.Student{}, billing.ErrNotFound
}

func (repo *billingRepository) CreateEnrollment(ctx context.Context, enr billing.Enrollment, exec ...core.DBExecutor) (billing.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.enrollmentPK++
	enr.ID = repo.db.enrollmentPK
	repo.db.enrollments[enr.ID] = enr
	return enr, nil
}

func (repo *billingRepository) SetEnrollmentStatus(ctx context.Context, id int, status billing.EnrollmentStatus, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	enr, ok := repo.db.enrollments[id]
	if !ok {
		return billing.ErrNotFound
	}
	enr.Status = status
	repo.db.enrollments[id] = enr
	return nil
}

func (repo *billingRepository) GetEnrollment(ctx context.Context, id int, exec ...core.DBExecutor) (billing.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok {
		return enr, nil
	}
	return billing.Enrollment{}, billing.ErrNotFound
}

func (repo *billingRepository) CreatePaymentPlan(ctx context.Context, plan billing.PaymentPlan, exec ...core.DBExecutor) (billing.PaymentPlan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.planPK++
	plan.ID = repo.db.planPK
	repo.db.plans[plan.ID] = plan
	return plan, nil
}

func (repo *billingRepository) GetPaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) (billing.PaymentPlan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if plan, ok := repo.db.plans[id]; ok {
		return plan, nil
	}
	return billing.PaymentPlan{}, billing.ErrNotFound
}

func (repo *billingRepository) LockPaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) (billing.PaymentPlan, error) {
	return repo.GetPaymentPlan(ctx, id, exec...)
}

func (repo *billingRepository) ActivatePaymentPlan(ctx context.Context, id int, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	plan, ok := repo.db.plans[id]
	if !ok {
		return billing.ErrNotFound
	}
	if plan.DepositPaid {
		return billing.ErrDepositAlreadyPaid
	}
	plan.DepositPaid = true
	plan.Status = billing.PlanActive
	repo.db.plans[id] = plan
	return nil
}

func (repo *billingRepository) DecrementRemainingPayments(ctx context.Context, id int, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	plan, ok := repo.db.plans[id]
	if !ok {
		return 0, billing.ErrNotFound
	}
	if plan.RemainingPayments == 0 {
		return 0, billing.ErrPlanAlreadySettled
	}
	plan.RemainingPayments--
	if plan.RemainingPayments == 0 {
		plan.Status = billing.PlanCompleted
	}
	repo.db.plans[id] = plan
	return plan.RemainingPayments, nil
}

func (repo *billingRepository) CreatePayment(ctx context.Context, p billing.Payment, exec ...core.DBExecutor) (billing.Payment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.payments {
		if existing.GatewayTransactionID == p.GatewayTransactionID {
			return billing.Payment{}, billing.ErrDuplicateTransaction
		}
	}

	repo.db.paymentPK++
	p.ID = repo.db.paymentPK
	repo.db.payments[p.ID] = p
	return p, nil
}

func (repo *billingRepository) QueryPayments(ctx context.Context, planID int, exec ...core.DBExecutor) ([]billing.Payment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var payments []billing.Payment
	for _, p := range repo.db.payments {
		if p.PaymentPlanID == planID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return payments, nil
}
