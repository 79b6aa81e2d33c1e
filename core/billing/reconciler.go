package billing

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/nxuacademy/backend/core"
)

// Reconciler consumes verified payment-outcome events and advances the
// payment plan and enrollment state machines:
//
//	pending --deposit success--> active --12x monthly success--> completed
//
// Replayed deliveries (same gateway transaction id) are rejected by the
// payments table's uniqueness constraint and treated as no-ops, so
// at-least-once webhook delivery never double-applies a transition.
type Reconciler struct {
	repo    Repository
	mailSvc core.EmailService
	conf    *core.Config
	logger  core.Logger
}

func NewReconciler(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

// Process applies one event. State-machine rejections come back as typed
// errors (ErrDepositAlreadyPaid, ErrDepositUnpaid, ErrPlanAlreadySettled,
// ErrDuplicateTransaction); none of them leaves a mutation behind.
func (rec *Reconciler) Process(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventIgnored:
		return nil
	case EventFailed:
		// no retry is scheduled here; a new authorization must be requested
		// explicitly by the caller
		rec.logger.Warn(fmt.Sprintf("payment failed: txn=%s plan=%d", ev.TransactionID, ev.Correlation.PlanID))
		return nil
	case EventSucceeded:
	default:
		return ErrMalformedEvent
	}

	if err := ev.Correlation.Validate(); err != nil {
		return err
	}
	if ev.TransactionID == "" {
		return ErrMalformedEvent
	}

	now := time.Now().UTC()
	err := rec.repo.Atomically(ctx, func(exec core.DBExecutor) error {
		plan, err := rec.repo.LockPaymentPlan(ctx, ev.Correlation.PlanID, exec)
		if err != nil {
			return err
		}
		if plan.StudentID != ev.Correlation.StudentID {
			return ErrMalformedEvent
		}

		payment := Payment{
			PaymentPlanID:        plan.ID,
			StudentID:            plan.StudentID,
			Amount:               ev.Amount,
			GatewayTransactionID: ev.TransactionID,
			Status:               "completed",
			Type:                 ev.Correlation.Kind,
			PaymentDate:          now,
			CreatedAt:            now,
		}

		switch ev.Correlation.Kind {
		case PaymentDeposit:
			if plan.DepositPaid {
				return ErrDepositAlreadyPaid
			}
			if _, err = rec.repo.CreatePayment(ctx, payment, exec); err != nil {
				return err
			}
			if err = rec.repo.ActivatePaymentPlan(ctx, plan.ID, exec); err != nil {
				return errors.Wrap(err, "activating payment plan")
			}
			return rec.repo.SetEnrollmentStatus(ctx, plan.EnrollmentID, EnrollmentActive, exec)

		case PaymentMonthly:
			if !plan.DepositPaid {
				return ErrDepositUnpaid
			}
			if plan.RemainingPayments == 0 {
				return ErrPlanAlreadySettled
			}
			if _, err = rec.repo.CreatePayment(ctx, payment, exec); err != nil {
				return err
			}
			if _, err = rec.repo.DecrementRemainingPayments(ctx, plan.ID, exec); err != nil {
				return errors.Wrap(err, "decrementing remaining payments")
			}
			return nil

		default:
			return ErrMalformedEvent
		}
	})
	if err != nil {
		if errors.Cause(err) == ErrDuplicateTransaction {
			rec.logger.Info(fmt.Sprintf("replayed payment event dropped: txn=%s plan=%d", ev.TransactionID, ev.Correlation.PlanID))
		}
		return err
	}

	rec.sendReceiptMail(ctx, ev)
	return nil
}

func (rec *Reconciler) sendReceiptMail(ctx context.Context, ev Event) {
	st, err := rec.repo.GetStudent(ctx, StudentFilter{ID: ev.Correlation.StudentID})
	if err != nil {
		rec.logger.Error(fmt.Sprintf("finding student %d for receipt: %v", ev.Correlation.StudentID, err), err)
		return
	}
	subject := "Payment received"
	if ev.Correlation.Kind == PaymentDeposit {
		subject = "Deposit received - enrollment activated"
	}
	rec.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: st.FullName, Address: st.Email}},
			Subject:      subject,
			TemplateName: "payment-receipt",
			TemplateData: struct {
				FullName string
				Amount   int64
				Kind     PaymentKind
			}{st.FullName, ev.Amount, ev.Correlation.Kind},
		},
	)
}
