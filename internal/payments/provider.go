package payments

import (
	"context"

	"github.com/vendora-market/vendora-backend/pkg/enums"
	"github.com/vendora-market/vendora-backend/pkg/square"
)

// SessionParams describes one hosted checkout session request.
type SessionParams struct {
	Name           string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	ReferenceID    string
}

// Session is the provider's handle for an open checkout attempt.
type Session struct {
	ProviderRef string
	CheckoutURL string
}

// Provider abstracts the asynchronous payment gateway. Session creation
// returns a redirect URL; the final status arrives later via webhook.
type Provider interface {
	CreateSession(ctx context.Context, params SessionParams) (*Session, error)
}

// SquareProvider backs Provider with Square payment links.
type SquareProvider struct {
	client *square.Client
}

func NewSquareProvider(client *square.Client) *SquareProvider {
	return &SquareProvider{client: client}
}

func (p *SquareProvider) CreateSession(ctx context.Context, params SessionParams) (*Session, error) {
	link, err := p.client.CreatePaymentLink(ctx, square.PaymentLinkParams{
		Name:           params.Name,
		AmountCents:    params.AmountCents,
		Currency:       params.Currency,
		IdempotencyKey: params.IdempotencyKey,
		ReferenceID:    params.ReferenceID,
	})
	if err != nil {
		return nil, err
	}

	providerRef := link.OrderRef
	if providerRef == "" {
		providerRef = link.LinkID
	}
	return &Session{
		ProviderRef: providerRef,
		CheckoutURL: link.CheckoutURL,
	}, nil
}

// SessionStatus polls the provider for the current state of a payment. It
// backs the reconciliation sweeps so a transaction whose webhook never
// arrived is not failed while the provider already settled it.
func (p *SquareProvider) SessionStatus(ctx context.Context, providerRef string) (enums.TransactionStatus, error) {
	payment, err := p.client.GetPayment(ctx, providerRef)
	if err != nil {
		return enums.TransactionStatusPending, err
	}

	status := ""
	if s := payment.GetStatus(); s != nil {
		status = *s
	}
	switch status {
	case "COMPLETED":
		return enums.TransactionStatusCompleted, nil
	case "FAILED", "CANCELED":
		return enums.TransactionStatusFailed, nil
	default:
		return enums.TransactionStatusPending, nil
	}
}
