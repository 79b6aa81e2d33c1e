package echoapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/billing"
)

var errWebhookRejected = echo.NewHTTPError(http.StatusBadRequest, "webhook rejected")

type webhookApi struct {
	reconciler *billing.Reconciler
	gateway    billing.Gateway
	logger     core.Logger
}

func registerWebhookAPI(e *echo.Echo, reconciler *billing.Reconciler, gateway billing.Gateway, logger core.Logger) {
	api := webhookApi{
		reconciler: reconciler,
		gateway:    gateway,
		logger:     logger,
	}

	e.POST("/webhook/payments", api.handlePaymentEvent)
}

// handlePaymentEvent verifies and applies one gateway notification.
// State-machine rejections still return 200, otherwise an at-least-once
// gateway would redeliver events we have already decided to drop.
func (api *webhookApi) handlePaymentEvent(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook payload")
	}

	ev, err := api.gateway.VerifyEvent(payload, ctx.Request().Header)
	if err != nil {
		api.logger.Warn(fmt.Sprintf("webhook verification failed: %v", err))
		return errWebhookRejected
	}

	if err = api.reconciler.Process(ctx.Request().Context(), ev); err != nil {
		switch errors.Cause(err) {
		case billing.ErrMalformedEvent, billing.ErrNotFound:
			api.logger.Warn(fmt.Sprintf("webhook correlation failed: %v", err))
			return errWebhookRejected
		case billing.ErrDuplicateTransaction, billing.ErrDepositAlreadyPaid,
			billing.ErrDepositUnpaid, billing.ErrPlanAlreadySettled:
			// dropped on purpose; acknowledge so the gateway stops retrying
			api.logger.Info(fmt.Sprintf("payment event %s dropped: %v", ev.TransactionID, errors.Cause(err)))
		default:
			return errors.Wrap(err, "processing payment event")
		}
	}

	return ctx.JSON(http.StatusOK, echo.Map{"received": true})
}
