package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Statuses set through the authenticated API.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// Statuses reported by the payment gateway.
const (
	StatusCapture       = "capture"
	StatusSettlement    = "settlement"
	StatusAuthorize     = "authorize"
	StatusDeny          = "deny"
	StatusCancel        = "cancel"
	StatusExpire        = "expire"
	StatusFailure       = "failure"
	StatusRefund        = "refund"
	StatusPartialRefund = "partial_refund"
)

var gatewayStatuses = map[string]bool{
	StatusPending:       true,
	StatusCapture:       true,
	StatusSettlement:    true,
	StatusAuthorize:     true,
	StatusDeny:          true,
	StatusCancel:        true,
	StatusExpire:        true,
	StatusFailure:       true,
	StatusRefund:        true,
	StatusPartialRefund: true,
}

func IsGatewayStatus(status string) bool {
	return gatewayStatuses[status]
}

// SellerSnapshot is copied from the seller's account when the transaction is created.
type SellerSnapshot struct {
	ID       string `gorm:"type:varchar(64);index" json:"id"`
	Username string `gorm:"type:varchar(50)" json:"username"`
	Email    string `gorm:"type:varchar(255)" json:"email"`
	Phone    string `gorm:"type:varchar(20)" json:"phone"`
}

// ProductSnapshot is copied from the listing when the transaction is created.
type ProductSnapshot struct {
	ID         string `gorm:"type:varchar(64);index" json:"id"`
	Name       string `gorm:"type:varchar(255)" json:"name"`
	Price      int64  `json:"price"`
	Image      string `gorm:"type:text" json:"image"`
	Category   string `gorm:"type:varchar(100)" json:"category"`
	Quantity   int    `json:"quantity"`
	TotalPrice int64  `json:"total_price"`
}

type Transaction struct {
	TransactionID      string          `gorm:"type:varchar(32);primaryKey" json:"transaction_id"`
	PaymentID          string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_id"`
	Seller             SellerSnapshot  `gorm:"embedded;embeddedPrefix:seller_" json:"seller"`
	BuyerID            string          `gorm:"type:varchar(64);index" json:"buyer_id"`
	BuyerEmail         string          `gorm:"type:varchar(255);index;not null" json:"email_buyer"`
	Product            ProductSnapshot `gorm:"embedded;embeddedPrefix:product_" json:"product"`
	Datetime           time.Time       `gorm:"not null" json:"datetime"`
	PaymentStatus      string          `gorm:"type:varchar(30);not null;index;default:pending" json:"payment_status"`
	PaymentDescription string          `gorm:"type:text" json:"payment_description"`
	MidtransOrderID    string          `gorm:"type:varchar(64);index" json:"midtrans_order_id"`
	SnapToken          string          `gorm:"type:varchar(255)" json:"snap_token"`
	RedirectURL        string          `gorm:"type:text" json:"redirect_url"`
	PaymentType        string          `gorm:"type:varchar(50)" json:"payment_type"`
	VANumber           string          `gorm:"type:varchar(64)" json:"va_number"`
	PDFURL             string          `gorm:"type:text" json:"pdf_url"`
	SettlementTime     *time.Time      `json:"settlement_time"`
	ExpiryTime         *time.Time      `json:"expiry_time"`
	Version            int             `gorm:"not null;default:1" json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewTransactionID returns "TR" followed by 12 upper-case hex characters.
// The ID never contains '-', which the gateway order id uses as delimiter.
func NewTransactionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TR" + strings.ToUpper(raw[:12])
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) (err error) {
	if t.TransactionID == "" {
		t.TransactionID = NewTransactionID()
	}
	if t.PaymentID == "" {
		t.PaymentID = uuid.NewString()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return
}

func (t *Transaction) IsBuyer(email string) bool {
	return email != "" && strings.EqualFold(t.BuyerEmail, email)
}

func (t *Transaction) IsSeller(userID string) bool {
	return userID != "" && t.Seller.ID == userID
}
