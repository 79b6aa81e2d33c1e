package billing_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/billing"
	emailsvc "github.com/nxuacademy/backend/services/email"
)

func TestService_Enroll(t *testing.T) {
	svc, _, repo, gw := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")

	// plan matches the 30% / 12-installment split
	if res.PaymentPlan.TotalAmount != coursePrice {
		t.Errorf("TotalAmount = %d, want %d", res.PaymentPlan.TotalAmount, coursePrice)
	}
	if res.PaymentPlan.DepositAmount != 108000 {
		t.Errorf("DepositAmount = %d, want 108000", res.PaymentPlan.DepositAmount)
	}
	if res.PaymentPlan.MonthlyAmount != 21000 {
		t.Errorf("MonthlyAmount = %d, want 21000", res.PaymentPlan.MonthlyAmount)
	}
	if res.PaymentPlan.RemainingPayments != 12 {
		t.Errorf("RemainingPayments = %d, want 12", res.PaymentPlan.RemainingPayments)
	}

	// everything starts pending; activation is the reconciler's job
	if res.Enrollment.Status != billing.EnrollmentPending {
		t.Errorf("Enrollment.Status = %s, want %s", res.Enrollment.Status, billing.EnrollmentPending)
	}
	if res.PaymentPlan.Status != billing.PlanPending {
		t.Errorf("PaymentPlan.Status = %s, want %s", res.PaymentPlan.Status, billing.PlanPending)
	}
	if res.PaymentPlan.DepositPaid {
		t.Error("DepositPaid = true, want false")
	}
	if res.ClientSecret == "" {
		t.Error("ClientSecret is empty")
	}

	// the deposit authorization carries the full correlation
	auth := gw.lastAuth(t)
	if auth.Amount != res.PaymentPlan.DepositAmount {
		t.Errorf("authorized amount = %d, want %d", auth.Amount, res.PaymentPlan.DepositAmount)
	}
	if auth.Correlation.Kind != billing.PaymentDeposit {
		t.Errorf("correlation kind = %s, want %s", auth.Correlation.Kind, billing.PaymentDeposit)
	}
	if auth.Correlation.PlanID != res.PaymentPlan.ID {
		t.Errorf("correlation plan = %d, want %d", auth.Correlation.PlanID, res.PaymentPlan.ID)
	}

	if !res.Student.GatewayCustomerID.Valid {
		t.Error("student has no gateway customer ref")
	}
	st, err := repo.GetStudent(ctx, billing.StudentFilter{Email: "ada@test.cd"})
	if err != nil {
		t.Fatalf("GetStudent() failed: %v", err)
	}
	if st.ID != res.Student.ID {
		t.Errorf("persisted student id = %d, want %d", st.ID, res.Student.ID)
	}

	if len(emailsvc.SentMessages) != 1 {
		t.Errorf("sent %d emails, want 1", len(emailsvc.SentMessages))
	}
}

func TestService_Enroll_duplicateEmail(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	enroll(t, svc, "ada@test.cd")

	_, err := svc.Enroll(ctx, newEnrollment("ada@test.cd"))
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Enroll() error = %v, want *core.ValidationError", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "email" {
		t.Errorf("ValidationError fields = %+v, want one error on 'email'", vErr.Fields)
	}
}

func TestService_Enroll_gatewayFailureRollsBack(t *testing.T) {
	svc, _, repo, gw := setup(t)
	ctx := context.Background()

	gw.customerErr = errors.New("stripe is down")

	_, err := svc.Enroll(ctx, newEnrollment("ada@test.cd"))
	if errors.Cause(err) != billing.ErrGatewayUnavailable {
		t.Fatalf("Enroll() error = %v, want %v", err, billing.ErrGatewayUnavailable)
	}

	// the whole transaction is rolled back: no partial student record
	if _, err = repo.GetStudent(ctx, billing.StudentFilter{Email: "ada@test.cd"}); errors.Cause(err) != billing.ErrNotFound {
		t.Errorf("GetStudent() error = %v, want %v", err, billing.ErrNotFound)
	}

	// the same email can enroll again once the gateway recovers
	gw.customerErr = nil
	enroll(t, svc, "ada@test.cd")
}

func TestService_Enroll_authorizationFailureKeepsRecords(t *testing.T) {
	svc, _, repo, gw := setup(t)
	ctx := context.Background()

	gw.authErr = errors.New("stripe is down")

	_, err := svc.Enroll(ctx, newEnrollment("ada@test.cd"))
	if errors.Cause(err) != billing.ErrGatewayUnavailable {
		t.Fatalf("Enroll() error = %v, want %v", err, billing.ErrGatewayUnavailable)
	}

	// records are committed before the authorization; they survive the failure
	if _, err = repo.GetStudent(ctx, billing.StudentFilter{Email: "ada@test.cd"}); err != nil {
		t.Errorf("GetStudent() failed: %v", err)
	}
}

func TestService_RequestMonthlyPayment(t *testing.T) {
	svc, rec, _, gw := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")
	planID := res.PaymentPlan.ID

	// the deposit gates the first installment
	if _, err := svc.RequestMonthlyPayment(ctx, planID); errors.Cause(err) != billing.ErrDepositUnpaid {
		t.Fatalf("RequestMonthlyPayment() error = %v, want %v", err, billing.ErrDepositUnpaid)
	}

	payDeposit(t, rec, res.PaymentPlan)

	auth, err := svc.RequestMonthlyPayment(ctx, planID)
	if err != nil {
		t.Fatalf("RequestMonthlyPayment() failed: %v", err)
	}
	if auth.ClientSecret == "" {
		t.Error("ClientSecret is empty")
	}

	req := gw.lastAuth(t)
	if req.Amount != res.PaymentPlan.MonthlyAmount {
		t.Errorf("authorized amount = %d, want %d", req.Amount, res.PaymentPlan.MonthlyAmount)
	}
	if req.Correlation.Kind != billing.PaymentMonthly {
		t.Errorf("correlation kind = %s, want %s", req.Correlation.Kind, billing.PaymentMonthly)
	}
}

func TestService_RequestMonthlyPayment_unknownPlan(t *testing.T) {
	svc, _, _, _ := setup(t)

	if _, err := svc.RequestMonthlyPayment(context.Background(), 404); errors.Cause(err) != billing.ErrNotFound {
		t.Errorf("RequestMonthlyPayment() error = %v, want %v", err, billing.ErrNotFound)
	}
}

func TestService_RequestMonthlyPayment_settledPlan(t *testing.T) {
	svc, rec, repo, _ := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")
	payDeposit(t, rec, res.PaymentPlan)

	// settle all 12 installments
	for i := 0; i < 12; i++ {
		plan, err := repo.GetPaymentPlan(ctx, res.PaymentPlan.ID)
		if err != nil {
			t.Fatalf("GetPaymentPlan() failed: %v", err)
		}
		ev := succeededEvent(
			"txn_monthly_"+string(rune('a'+i)), plan, billing.PaymentMonthly, plan.InstallmentAmount())
		if err = rec.Process(ctx, ev); err != nil {
			t.Fatalf("Process(monthly %d) failed: %v", i+1, err)
		}
	}

	if _, err := svc.RequestMonthlyPayment(ctx, res.PaymentPlan.ID); errors.Cause(err) != billing.ErrPlanAlreadySettled {
		t.Errorf("RequestMonthlyPayment() error = %v, want %v", err, billing.ErrPlanAlreadySettled)
	}
}
