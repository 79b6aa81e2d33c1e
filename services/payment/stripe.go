package paymentsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/billing"
)

const signatureHeader = "Stripe-Signature"

// correlation metadata keys attached to every payment intent
const (
	metaPlanID    = "paymentPlanId"
	metaStudentID = "studentId"
	metaType      = "type"
)

type stripeGateway struct {
	sc            *client.API
	webhookSecret string
	logger        core.Logger
}

var _ billing.Gateway = (*stripeGateway)(nil)

func NewStripeGateway(conf *core.Config, logger core.Logger) *stripeGateway {
	sc := &client.API{}
	sc.Init(conf.Stripe.SecretKey, nil)
	return &stripeGateway{
		sc:            sc,
		webhookSecret: conf.Stripe.WebhookSecret,
		logger:        logger,
	}
}

func (gw *stripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx

	cust, err := gw.sc.Customers.New(params)
	if err != nil {
		return "", errors.Wrap(err, "creating stripe customer")
	}
	return cust.ID, nil
}

func (gw *stripeGateway) CreateAuthorization(ctx context.Context, req billing.AuthorizationRequest) (billing.Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		Customer: stripe.String(req.CustomerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("always"),
		},
	}
	params.Context = ctx
	params.AddMetadata(metaPlanID, strconv.Itoa(req.Correlation.PlanID))
	params.AddMetadata(metaStudentID, strconv.Itoa(req.Correlation.StudentID))
	params.AddMetadata(metaType, string(req.Correlation.Kind))

	pi, err := gw.sc.PaymentIntents.New(params)
	if err != nil {
		return billing.Authorization{}, errors.Wrap(err, "creating stripe payment intent")
	}
	return billing.Authorization{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// VerifyEvent checks the webhook signature and translates the payload into a
// typed billing.Event. Event types the reconciler does not care about come
// back as EventIgnored.
func (gw *stripeGateway) VerifyEvent(payload []byte, header http.Header) (billing.Event, error) {
	ev, err := webhook.ConstructEvent(payload, header.Get(signatureHeader), gw.webhookSecret)
	if err != nil {
		return billing.Event{}, errors.Wrap(err, "verifying webhook signature")
	}

	var kind billing.EventKind
	switch string(ev.Type) {
	case "payment_intent.succeeded":
		kind = billing.EventSucceeded
	case "payment_intent.payment_failed":
		kind = billing.EventFailed
	default:
		return billing.Event{Kind: billing.EventIgnored}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return billing.Event{}, errors.Wrap(err, "decoding payment intent")
	}

	corr, err := parseCorrelation(pi.Metadata)
	if err != nil {
		return billing.Event{}, err
	}
	return billing.Event{
		Kind:          kind,
		TransactionID: pi.ID,
		Amount:        pi.Amount,
		Correlation:   corr,
	}, nil
}

func parseCorrelation(metadata map[string]string) (billing.Correlation, error) {
	planID, err := strconv.Atoi(metadata[metaPlanID])
	if err != nil {
		return billing.Correlation{}, billing.ErrMalformedEvent
	}
	studentID, err := strconv.Atoi(metadata[metaStudentID])
	if err != nil {
		return billing.Correlation{}, billing.ErrMalformedEvent
	}
	corr := billing.Correlation{
		PlanID:    planID,
		StudentID: studentID,
		Kind:      billing.PaymentKind(metadata[metaType]),
	}
	if err := corr.Validate(); err != nil {
		return billing.Correlation{}, err
	}
	return corr, nil
}
