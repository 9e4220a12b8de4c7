package gateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrGateway = errors.New("payment gateway error")

const orderIDDelimiter = "-"

type Customer struct {
	Email string
	Name  string
	Phone string
}

type Item struct {
	ID       string
	Name     string
	Price    int64
	Qty      int32
	Category string
}

type SessionRequest struct {
	OrderID     string
	GrossAmount int64
	Customer    Customer
	Items       []Item
}

type Session struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// Notification is the gateway's view of a payment, received by webhook or
// fetched through the status API.
type Notification struct {
	OrderID           string     `json:"order_id"`
	TransactionStatus string     `json:"transaction_status"`
	StatusCode        string     `json:"status_code"`
	GrossAmount       string     `json:"gross_amount"`
	SignatureKey      string     `json:"signature_key"`
	PaymentType       string     `json:"payment_type"`
	FraudStatus       string     `json:"fraud_status"`
	TransactionTime   string     `json:"transaction_time"`
	SettlementTime    string     `json:"settlement_time"`
	ExpiryTime        string     `json:"expiry_time"`
	PDFURL            string     `json:"pdf_url"`
	VANumbers         []VANumber `json:"va_numbers"`
	PermataVANumber   string     `json:"permata_va_number"`
	BillKey           string     `json:"bill_key"`
}

// VANumber picks the first virtual account number the gateway reported.
func (n Notification) VANumber() string {
	for _, va := range n.VANumbers {
		if va.VANumber != "" {
			return va.VANumber
		}
	}
	if n.PermataVANumber != "" {
		return n.PermataVANumber
	}
	return n.BillKey
}

type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	Status(ctx context.Context, orderID string) (*Notification, error)
	VerifySignature(n Notification) bool
}

// NewOrderID derives a gateway order id from a transaction id. The suffix
// keeps retried sessions unique on the gateway side.
func NewOrderID(transactionID string, now time.Time) string {
	return transactionID + orderIDDelimiter + strconv.FormatInt(now.Unix(), 10)
}

// TransactionIDFromOrderID reverses NewOrderID. An order id without the
// delimiter is taken as the transaction id itself.
func TransactionIDFromOrderID(orderID string) string {
	if i := strings.Index(orderID, orderIDDelimiter); i >= 0 {
		return orderID[:i]
	}
	return orderID
}

// Signature is hex(SHA512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func VerifySignature(n Notification, serverKey string) bool {
	if n.SignatureKey == "" || serverKey == "" {
		return false
	}
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) == 1
}

// ParseTime reads gateway timestamps ("2006-01-02 15:04:05", Asia/Jakarta).
func ParseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.FixedZone("WIB", 7*60*60)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", value, loc)
	if err != nil {
		return nil
	}
	return &t
}
