package billing

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/nxuacademy/backend/core"
)

var (
	// errors
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateEmail       = errors.New("a student with this email is already enrolled")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrDepositUnpaid        = errors.New("deposit must be paid first")
	ErrDepositAlreadyPaid   = errors.New("deposit already paid")
	ErrPlanAlreadySettled   = errors.New("all payments have been completed")
	ErrMalformedEvent       = errors.New("event is missing correlation metadata")
	ErrNoCustomerRef        = errors.New("student has no payment customer reference")
)

// Service orchestrates enrollment: student + gateway customer + enrollment +
// payment plan are created in one storage transaction, then the deposit
// authorization is requested as the sole non-transactional tail step.
type Service struct {
	repo    Repository
	gateway Gateway
	mailSvc core.EmailService
	conf    *core.Config
	logger  core.Logger
}

func NewService(repo Repository, gateway Gateway, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (EnrollmentResult, error) {
	breakdown, err := ComputePlan(ne.CourseAmount)
	if err != nil {
		return EnrollmentResult{}, err
	}

	var (
		st   Student
		enr  Enrollment
		plan PaymentPlan
	)
	now := time.Now().UTC()

	err = svc.repo.Atomically(ctx, func(exec core.DBExecutor) error {
		var err error
		st, err = svc.repo.CreateStudent(ctx, Student{
			UserID:    uuid.New().String(),
			FullName:  ne.FullName,
			Email:     ne.Email,
			Phone:     ne.Phone,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}, exec)
		if err != nil {
			if errors.Cause(err) == ErrDuplicateEmail {
				return core.NewValidationError(ErrDuplicateEmail, core.FieldError{Field: "email", Error: ErrDuplicateEmail.Error()})
			}
			return errors.Wrap(err, "creating student")
		}

		custRef, err := svc.gateway.CreateCustomer(ctx, st.Email, st.FullName)
		if err != nil {
			return errors.WithMessagef(ErrGatewayUnavailable, "creating gateway customer: %v", err)
		}
		if err = svc.repo.SetStudentCustomerRef(ctx, st.ID, custRef, exec); err != nil {
			return errors.Wrap(err, "persisting gateway customer ref")
		}
		st.GatewayCustomerID = null.StringFrom(custRef)

		enr, err = svc.repo.CreateEnrollment(ctx, Enrollment{
			StudentID: st.ID,
			CourseID:  ne.CourseID,
			Status:    EnrollmentPending,
			CreatedAt: now,
			UpdatedAt: now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating enrollment")
		}

		plan, err = svc.repo.CreatePaymentPlan(ctx, PaymentPlan{
			StudentID:         st.ID,
			EnrollmentID:      enr.ID,
			TotalAmount:       breakdown.TotalAmount,
			DepositAmount:     breakdown.DepositAmount,
			MonthlyAmount:     breakdown.MonthlyAmount,
			DepositPaid:       false,
			RemainingPayments: breakdown.RemainingPayments,
			Status:            PlanPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}, exec)
		return errors.Wrap(err, "creating payment plan")
	})
	if err != nil {
		return EnrollmentResult{}, err
	}

	auth, err := svc.gateway.CreateAuthorization(ctx, AuthorizationRequest{
		Amount:     plan.DepositAmount,
		Currency:   svc.conf.Currency,
		CustomerID: st.GatewayCustomerID.String,
		Correlation: Correlation{
			PlanID:    plan.ID,
			StudentID: st.ID,
			Kind:      PaymentDeposit,
		},
	})
	if err != nil {
		// records persist; the caller may retry the deposit authorization
		return EnrollmentResult{}, errors.WithMessagef(ErrGatewayUnavailable, "requesting deposit authorization: %v", err)
	}

	svc.sendEnrollmentConfirmationMail(st, enr, plan)

	return EnrollmentResult{
		Student:      st,
		Enrollment:   enr,
		PaymentPlan:  plan,
		ClientSecret: auth.ClientSecret,
	}, nil
}

// RequestMonthlyPayment asks the gateway for a new installment authorization.
// The deposit gates the first installment; the final installment carries the
// rounding residual.
func (svc *Service) RequestMonthlyPayment(ctx context.Context, planID int) (Authorization, error) {
	plan, err := svc.repo.GetPaymentPlan(ctx, planID)
	if err != nil {
		return Authorization{}, err
	}
	if !plan.DepositPaid {
		return Authorization{}, ErrDepositUnpaid
	}
	if plan.RemainingPayments == 0 {
		return Authorization{}, ErrPlanAlreadySettled
	}

	st, err := svc.repo.GetStudent(ctx, StudentFilter{ID: plan.StudentID})
	if err != nil {
		return Authorization{}, errors.Wrap(err, "finding plan's student")
	}
	if !st.GatewayCustomerID.Valid {
		return Authorization{}, ErrNoCustomerRef
	}

	auth, err := svc.gateway.CreateAuthorization(ctx, AuthorizationRequest{
		Amount:     plan.InstallmentAmount(),
		Currency:   svc.conf.Currency,
		CustomerID: st.GatewayCustomerID.String,
		Correlation: Correlation{
			PlanID:    plan.ID,
			StudentID: st.ID,
			Kind:      PaymentMonthly,
		},
	})
	if err != nil {
		return Authorization{}, errors.WithMessagef(ErrGatewayUnavailable, "requesting monthly authorization: %v", err)
	}
	return auth, nil
}

func (svc *Service) GetPaymentPlan(ctx context.Context, planID int) (PaymentPlan, error) {
	return svc.repo.GetPaymentPlan(ctx, planID)
}

func (svc *Service) sendEnrollmentConfirmationMail(st Student, enr Enrollment, plan PaymentPlan) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: st.FullName, Address: st.Email}},
			Subject:      "Your enrollment is in progress",
			TemplateName: "enrollment-confirmation",
			TemplateData: struct {
				FullName      string
				CourseID      string
				DepositAmount int64
				MonthlyAmount int64
			}{st.FullName, enr.CourseID, plan.DepositAmount, plan.MonthlyAmount},
		},
	)
}
