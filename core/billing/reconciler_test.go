package billing_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"github.com/nxuacademy/backend/core/billing"
	emailsvc "github.com/nxuacademy/backend/services/email"
)

func TestReconciler_Process_deposit(t *testing.T) {
	svc, rec, repo, _ := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")
	plan := res.PaymentPlan
	emailsvc.ClearSentMessages()

	ev := succeededEvent("txn_1", plan, billing.PaymentDeposit, plan.DepositAmount)
	if err := rec.Process(ctx, ev); err != nil {
		t.Fatalf("Process() failed: %v", err)
	}

	got, err := repo.GetPaymentPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetPaymentPlan() failed: %v", err)
	}
	if !got.DepositPaid {
		t.Error("DepositPaid = false, want true")
	}
	if got.Status != billing.PlanActive {
		t.Errorf("plan status = %s, want %s", got.Status, billing.PlanActive)
	}
	if got.RemainingPayments != 12 {
		t.Errorf("RemainingPayments = %d, want 12 (deposit does not consume one)", got.RemainingPayments)
	}

	enr, err := repo.GetEnrollment(ctx, plan.EnrollmentID)
	if err != nil {
		t.Fatalf("GetEnrollment() failed: %v", err)
	}
	if enr.Status != billing.EnrollmentActive {
		t.Errorf("enrollment status = %s, want %s", enr.Status, billing.EnrollmentActive)
	}

	payments, err := repo.QueryPayments(ctx, plan.ID)
	if err != nil {
		t.Fatalf("QueryPayments() failed: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("got %d payments, want 1", len(payments))
	}
	if payments[0].Type != billing.PaymentDeposit || payments[0].GatewayTransactionID != "txn_1" {
		t.Errorf("unexpected payment record: %+v", payments[0])
	}

	if len(emailsvc.SentMessages) != 1 {
		t.Errorf("sent %d receipt emails, want 1", len(emailsvc.SentMessages))
	}
}

func TestReconciler_Process_replayIsDropped(t *testing.T) {
	svc, rec, repo, _ := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")
	plan := res.PaymentPlan
	payDeposit(t, rec, plan)

	ev := succeededEvent("txn_monthly", plan, billing.PaymentMonthly, plan.MonthlyAmount)
	if err := rec.Process(ctx, ev); err != nil {
		t.Fatalf("Process() failed: %v", err)
	}

	// same gateway transaction id delivered again
	if err := rec.Process(ctx, ev); errors.Cause(err) != billing.ErrDuplicateTransaction {
		t.Fatalf("Process(replay) error = %v, want %v", err, billing.ErrDuplicateTransaction)
	}

	got, err := repo.GetPaymentPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetPaymentPlan() failed: %v", err)
	}
	if got.RemainingPayments != 11 {
		t.Errorf("RemainingPayments = %d, want 11 (replay must not decrement)", got.RemainingPayments)
	}

	payments, _ := repo.QueryPayments(ctx, plan.ID)
	if len(payments) != 2 { // deposit + one monthly
		t.Errorf("got %d payments, want 2", len(payments))
	}
}

func TestReconciler_Process_secondDepositIsDropped(t *testing.T) {
	svc, rec, repo, _ := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")
	plan := res.PaymentPlan
	payDeposit(t, rec, plan)

	// a distinct transaction still cannot pay the deposit twice
	ev := succeededEvent("txn_other", plan, billing.PaymentDeposit, plan.DepositAmount)
	if err := rec.Process(ctx, ev); errors.Cause(err) != billing.ErrDepositAlreadyPaid {
		t.Fatalf("Process() error = %v, want %v", err, billing.ErrDepositAlreadyPaid)
	}

	payments, _ := repo.QueryPayments(ctx, plan.ID)
	if len(payments) != 1 {
		t.Errorf("got %d payments, want 1", len(payments))
	}
}

func TestReconciler_Process_monthlyBeforeDeposit(t *testing.T) {
	svc, rec, repo, _ := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")
	plan := res.PaymentPlan

	ev := succeededEvent("txn_1", plan, billing.PaymentMonthly, plan.MonthlyAmount)
	if err := rec.Process(ctx, ev); errors.Cause(err) != billing.ErrDepositUnpaid {
		t.Fatalf("Process() error = %v, want %v", err, billing.ErrDepositUnpaid)
	}

	payments, _ := repo.QueryPayments(ctx, plan.ID)
	if len(payments) != 0 {
		t.Errorf("got %d payments, want 0", len(payments))
	}
}

func TestReconciler_Process_fullPlanLifecycle(t *testing.T) {
	svc, rec, repo, _ := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")
	plan := res.PaymentPlan
	payDeposit(t, rec, plan)

	var collected = plan.DepositAmount
	for i := 1; i <= 12; i++ {
		current, err := repo.GetPaymentPlan(ctx, plan.ID)
		if err != nil {
			t.Fatalf("GetPaymentPlan() failed: %v", err)
		}
		amount := current.InstallmentAmount()

		ev := succeededEvent(fmt.Sprintf("txn_%d", i), current, billing.PaymentMonthly, amount)
		if err = rec.Process(ctx, ev); err != nil {
			t.Fatalf("Process(monthly %d) failed: %v", i, err)
		}
		collected += amount

		current, _ = repo.GetPaymentPlan(ctx, plan.ID)
		if current.RemainingPayments != 12-i {
			t.Fatalf("after %d payments RemainingPayments = %d, want %d", i, current.RemainingPayments, 12-i)
		}
	}

	if collected != plan.TotalAmount {
		t.Errorf("collected %d, want the full price %d", collected, plan.TotalAmount)
	}

	final, _ := repo.GetPaymentPlan(ctx, plan.ID)
	if final.Status != billing.PlanCompleted {
		t.Errorf("plan status = %s, want %s", final.Status, billing.PlanCompleted)
	}

	// the settled plan rejects one more distinct transaction
	ev := succeededEvent("txn_13", plan, billing.PaymentMonthly, plan.MonthlyAmount)
	if err := rec.Process(ctx, ev); errors.Cause(err) != billing.ErrPlanAlreadySettled {
		t.Errorf("Process() error = %v, want %v", err, billing.ErrPlanAlreadySettled)
	}
}

func TestReconciler_Process_guards(t *testing.T) {
	svc, rec, repo, _ := setup(t)
	ctx := context.Background()

	res := enroll(t, svc, "ada@test.cd")
	plan := res.PaymentPlan

	tests := []struct {
		name    string
		ev      billing.Event
		wantErr error
	}{
		{name: "ignored event", ev: billing.Event{Kind: billing.EventIgnored}},
		{name: "failed event", ev: billing.Event{
			Kind:          billing.EventFailed,
			TransactionID: "txn_f",
			Correlation:   billing.Correlation{PlanID: plan.ID, StudentID: plan.StudentID, Kind: billing.PaymentDeposit},
		}},
		{name: "unknown kind", ev: billing.Event{Kind: "mystery"}, wantErr: billing.ErrMalformedEvent},
		{name: "missing plan correlation", ev: billing.Event{
			Kind:          billing.EventSucceeded,
			TransactionID: "txn_1",
			Correlation:   billing.Correlation{StudentID: plan.StudentID, Kind: billing.PaymentDeposit},
		}, wantErr: billing.ErrMalformedEvent},
		{name: "bad payment kind", ev: billing.Event{
			Kind:          billing.EventSucceeded,
			TransactionID: "txn_1",
			Correlation:   billing.Correlation{PlanID: plan.ID, StudentID: plan.StudentID, Kind: "weekly"},
		}, wantErr: billing.ErrMalformedEvent},
		{name: "missing transaction id", ev: billing.Event{
			Kind:        billing.EventSucceeded,
			Correlation: billing.Correlation{PlanID: plan.ID, StudentID: plan.StudentID, Kind: billing.PaymentDeposit},
		}, wantErr: billing.ErrMalformedEvent},
		{name: "student mismatch", ev: billing.Event{
			Kind:          billing.EventSucceeded,
			TransactionID: "txn_1",
			Correlation:   billing.Correlation{PlanID: plan.ID, StudentID: plan.StudentID + 99, Kind: billing.PaymentDeposit},
		}, wantErr: billing.ErrMalformedEvent},
		{name: "unknown plan", ev: billing.Event{
			Kind:          billing.EventSucceeded,
			TransactionID: "txn_1",
			Correlation:   billing.Correlation{PlanID: 404, StudentID: plan.StudentID, Kind: billing.PaymentDeposit},
		}, wantErr: billing.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := rec.Process(ctx, tt.ev); errors.Cause(err) != tt.wantErr {
				t.Errorf("Process() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	// none of the rejected events left a mutation behind
	payments, _ := repo.QueryPayments(ctx, plan.ID)
	if len(payments) != 0 {
		t.Errorf("got %d payments, want 0", len(payments))
	}
	got, _ := repo.GetPaymentPlan(ctx, plan.ID)
	if got.Status != billing.PlanPending || got.DepositPaid {
		t.Errorf("plan mutated: %+v", got)
	}
}
