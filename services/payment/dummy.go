package paymentsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nxuacademy/backend/core/billing"
)

// dummyGateway is a local stand-in for the payment processor: it mints fake
// customer and transaction ids and decodes webhook payloads as plain JSON
// events without signature verification. Debug mode only.
type dummyGateway struct {
	mu             sync.Mutex
	customers      []string
	authorizations []billing.AuthorizationRequest
}

var _ billing.Gateway = (*dummyGateway)(nil)

func NewDummyGateway() *dummyGateway {
	return &dummyGateway{}
}

func (gw *dummyGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	id := "cus_" + uuid.New().String()
	gw.mu.Lock()
	gw.customers = append(gw.customers, id)
	gw.mu.Unlock()
	return id, nil
}

func (gw *dummyGateway) CreateAuthorization(ctx context.Context, req billing.AuthorizationRequest) (billing.Authorization, error) {
	gw.mu.Lock()
	gw.authorizations = append(gw.authorizations, req)
	gw.mu.Unlock()

	id := "pi_" + uuid.New().String()
	return billing.Authorization{ID: id, ClientSecret: id + "_secret"}, nil
}

// dummyEvent is the raw payload shape the dummy gateway accepts.
type dummyEvent struct {
	Kind          string `json:"kind"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	PlanID        int    `json:"plan_id"`
	StudentID     int    `json:"student_id"`
	Type          string `json:"type"`
}

func (gw *dummyGateway) VerifyEvent(payload []byte, header http.Header) (billing.Event, error) {
	var raw dummyEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return billing.Event{}, errors.Wrap(err, "decoding dummy event")
	}

	var kind billing.EventKind
	switch raw.Kind {
	case "succeeded":
		kind = billing.EventSucceeded
	case "failed":
		kind = billing.EventFailed
	default:
		return billing.Event{Kind: billing.EventIgnored}, nil
	}

	corr := billing.Correlation{
		PlanID:    raw.PlanID,
		StudentID: raw.StudentID,
		Kind:      billing.PaymentKind(raw.Type),
	}
	if err := corr.Validate(); err != nil {
		return billing.Event{}, err
	}
	return billing.Event{
		Kind:          kind,
		TransactionID: raw.TransactionID,
		Amount:        raw.Amount,
		Correlation:   corr,
	}, nil
}
