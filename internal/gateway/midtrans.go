package gateway

import (
	"context"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// Midtrans creates Snap sessions and queries payment status through the Core API.
type Midtrans struct {
	snap      snap.Client
	core      coreapi.Client
	serverKey string
}

func NewMidtrans(serverKey string, production bool) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	m := &Midtrans{serverKey: serverKey}
	m.snap.New(serverKey, env)
	m.core.New(serverKey, env)
	return m
}

func (m *Midtrans) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:       it.ID,
			Name:     truncate(it.Name, 50),
			Price:    it.Price,
			Qty:      it.Qty,
			Category: it.Category,
		})
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.GrossAmount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Items: &items,
	}

	resp, mErr := m.snap.CreateTransaction(snapReq)
	if mErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrGateway, mErr.Message)
	}
	if resp == nil || resp.Token == "" {
		return nil, fmt.Errorf("%w: empty snap response", ErrGateway)
	}

	return &Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (m *Midtrans) Status(ctx context.Context, orderID string) (*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, mErr := m.core.CheckTransaction(orderID)
	if mErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrGateway, mErr.Message)
	}

	n := &Notification{
		OrderID:           resp.OrderID,
		TransactionStatus: resp.TransactionStatus,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		SignatureKey:      resp.SignatureKey,
		PaymentType:       resp.PaymentType,
		FraudStatus:       resp.FraudStatus,
		TransactionTime:   resp.TransactionTime,
		SettlementTime:    resp.SettlementTime,
		PermataVANumber:   resp.PermataVaNumber,
	}
	for _, va := range resp.VaNumbers {
		n.VANumbers = append(n.VANumbers, VANumber{Bank: va.Bank, VANumber: va.VANumber})
	}
	return n, nil
}

func (m *Midtrans) VerifySignature(n Notification) bool {
	return VerifySignature(n, m.serverKey)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
