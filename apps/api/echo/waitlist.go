package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nxuacademy/backend/core/waitlist"
)

type waitlistApi struct {
	svc      *waitlist.Service
	validate *validator.Validate
}

func registerWaitlistAPI(e *echo.Echo, svc *waitlist.Service, validate *validator.Validate) {
	api := waitlistApi{
		svc:      svc,
		validate: validate,
	}

	e.POST("/waitlist", api.join)
	e.GET("/waitlist/referrals/:code", api.referralCount)
}

// Handlers

func (api *waitlistApi) join(ctx echo.Context) error {
	var data waitlist.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.Join(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "joining waitlist")
	}

	return ctx.JSON(http.StatusCreated, entry)
}

func (api *waitlistApi) referralCount(ctx echo.Context) error {
	code := ctx.Param("code")

	count, err := api.svc.ReferralCount(ctx.Request().Context(), code)
	if err != nil {
		if errors.Cause(err) == waitlist.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "counting referrals")
	}

	return ctx.JSON(http.StatusOK, echo.Map{"referral_code": code, "count": count})
}
