package billing

import (
	"context"
	"net/http"
)

// EventKind is the outcome a gateway notification reports.
type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	// EventIgnored marks notification types the reconciler does not act on.
	EventIgnored EventKind = "ignored"
)

// Correlation is the typed token tying an asynchronous gateway notification
// back to the plan and student it concerns. It is attached as metadata to
// every authorization request and validated at the ingestion boundary
// before any state-machine logic runs.
type Correlation struct {
	PlanID    int
	StudentID int
	Kind      PaymentKind
}

func (c Correlation) Validate() error {
	if c.PlanID <= 0 || c.StudentID <= 0 || !c.Kind.Valid() {
		return ErrMalformedEvent
	}
	return nil
}

// Event is a verified, decoded payment-outcome notification.
type Event struct {
	Kind          EventKind
	TransactionID string
	Amount        int64
	Correlation   Correlation
}

type AuthorizationRequest struct {
	Amount      int64
	Currency    string
	CustomerID  string
	Correlation Correlation
}

// Authorization is the gateway handle the payer uses to complete a payment
// out of band.
type Authorization struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// Gateway is any third-party payment processor that can register customers,
// authorize payments and report outcomes asynchronously.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (Authorization, error)
	// VerifyEvent authenticates a raw webhook delivery and decodes it.
	// Implementations must reject unverified payloads; an Event only
	// reaches the Reconciler after this gate.
	VerifyEvent(payload []byte, header http.Header) (Event, error)
}
