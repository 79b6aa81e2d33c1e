package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/billing"
	"github.com/nxuacademy/backend/core/course"
)

var errGatewayUnavailable = echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")

type enrollmentApi struct {
	svc      *billing.Service
	validate *validator.Validate
}

func registerEnrollmentAPI(e *echo.Echo, svc *billing.Service, validate *validator.Validate) {
	api := enrollmentApi{
		svc:      svc,
		validate: validate,
	}

	e.POST("/enrollments", api.create)
	e.GET("/payments/plan/:planId", api.retrievePlan)
	e.POST("/payments/monthly/:planId", api.requestMonthlyPayment)
	e.GET("/courses", api.listCourses)
}

// Handlers

func (api *enrollmentApi) create(ctx echo.Context) error {
	var data billing.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// the catalog is the only source of prices; client amounts are never trusted
	crs, err := course.Get(data.CourseID)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: course.ErrNotFound.Error()})
	}
	data.CourseAmount = crs.Price

	res, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == billing.ErrGatewayUnavailable {
			return errGatewayUnavailable
		}
		return errors.Wrap(err, "enrolling student")
	}

	return ctx.JSON(http.StatusCreated, res)
}

func (api *enrollmentApi) retrievePlan(ctx echo.Context) error {
	planID, err := strconv.Atoi(ctx.Param("planId"))
	if err != nil {
		return errHttpNotFound
	}

	plan, err := api.svc.GetPaymentPlan(ctx.Request().Context(), planID)
	if err != nil {
		if errors.Cause(err) == billing.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding payment plan")
	}

	return ctx.JSON(http.StatusOK, plan)
}

func (api *enrollmentApi) requestMonthlyPayment(ctx echo.Context) error {
	planID, err := strconv.Atoi(ctx.Param("planId"))
	if err != nil {
		return errHttpNotFound
	}

	auth, err := api.svc.RequestMonthlyPayment(ctx.Request().Context(), planID)
	if err != nil {
		switch errors.Cause(err) {
		case billing.ErrNotFound:
			return errHttpNotFound
		case billing.ErrDepositUnpaid, billing.ErrPlanAlreadySettled, billing.ErrNoCustomerRef:
			return core.NewValidationError(errors.Cause(err))
		case billing.ErrGatewayUnavailable:
			return errGatewayUnavailable
		}
		return errors.Wrap(err, "requesting monthly payment")
	}

	return ctx.JSON(http.StatusOK, auth)
}

func (api *enrollmentApi) listCourses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, course.All())
}
