package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/nxuacademy/backend/core/billing"
)

var webhookAck = []byte(`{"received":true}`)

func Test_webhookApi_depositLifecycle(t *testing.T) {
	deps := setup(t)

	res := enrollStudent(t, deps, "ada@test.cd")
	plan := res.PaymentPlan

	tests := []httpTest{
		{
			name:     "garbage payload",
			body:     []byte(`not json`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "webhook rejected"}),
		},
		{
			name:     "missing correlation",
			body:     paymentEventBody(t, "succeeded", "txn_x", 100, 0, 0, "deposit"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "webhook rejected"}),
		},
		{
			name:     "unknown plan",
			body:     paymentEventBody(t, "succeeded", "txn_x", 100, 404, plan.StudentID, "deposit"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "webhook rejected"}),
		},
		{
			name:     "unhandled event type is acknowledged",
			body:     paymentEventBody(t, "customer.updated", "txn_x", 0, 0, 0, ""),
			wantCode: http.StatusOK,
			wantData: webhookAck,
		},
		{
			name:     "failed payment is acknowledged",
			body:     paymentEventBody(t, "failed", "txn_fail", plan.DepositAmount, plan.ID, plan.StudentID, "deposit"),
			wantCode: http.StatusOK,
			wantData: webhookAck,
		},
		{
			name:     "monthly before deposit is acknowledged and dropped",
			body:     paymentEventBody(t, "succeeded", "txn_early", plan.MonthlyAmount, plan.ID, plan.StudentID, "monthly"),
			wantCode: http.StatusOK,
			wantData: webhookAck,
		},
		{
			name:     "deposit succeeds",
			body:     paymentEventBody(t, "succeeded", "txn_dep", plan.DepositAmount, plan.ID, plan.StudentID, "deposit"),
			wantCode: http.StatusOK,
			wantData: webhookAck,
		},
		{
			name:     "deposit replay is acknowledged and dropped",
			body:     paymentEventBody(t, "succeeded", "txn_dep", plan.DepositAmount, plan.ID, plan.StudentID, "deposit"),
			wantCode: http.StatusOK,
			wantData: webhookAck,
		},
		{
			name:     "second deposit with a new transaction is dropped",
			body:     paymentEventBody(t, "succeeded", "txn_dep2", plan.DepositAmount, plan.ID, plan.StudentID, "deposit"),
			wantCode: http.StatusOK,
			wantData: webhookAck,
		},
		{
			name:     "monthly succeeds",
			body:     paymentEventBody(t, "succeeded", "txn_m1", plan.MonthlyAmount, plan.ID, plan.StudentID, "monthly"),
			wantCode: http.StatusOK,
			wantData: webhookAck,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/webhook/payments", tt.body)
			deps.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// exactly one deposit and one monthly got applied
	ctx := context.Background()
	got, err := deps.repo.GetPaymentPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetPaymentPlan() failed: %v", err)
	}
	if !got.DepositPaid || got.Status != billing.PlanActive {
		t.Errorf("plan = %+v, want active with deposit paid", got)
	}
	if got.RemainingPayments != 11 {
		t.Errorf("RemainingPayments = %d, want 11", got.RemainingPayments)
	}

	payments, err := deps.repo.QueryPayments(ctx, plan.ID)
	if err != nil {
		t.Fatalf("QueryPayments() failed: %v", err)
	}
	if len(payments) != 2 {
		t.Errorf("got %d payments, want 2", len(payments))
	}

	enr, err := deps.repo.GetEnrollment(ctx, plan.EnrollmentID)
	if err != nil {
		t.Fatalf("GetEnrollment() failed: %v", err)
	}
	if enr.Status != billing.EnrollmentActive {
		t.Errorf("enrollment status = %s, want %s", enr.Status, billing.EnrollmentActive)
	}
}
