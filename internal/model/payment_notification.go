package model

import "gorm.io/datatypes"

const (
	NotificationApplied  = "applied"
	NotificationRejected = "rejected"
	NotificationNotFound = "not_found"
	NotificationFailed   = "failed"
)

// PaymentNotification is the audit row kept for every gateway callback received.
type PaymentNotification struct {
	BaseModel
	OrderID           string         `gorm:"type:varchar(64);index" json:"order_id"`
	TransactionID     string         `gorm:"type:varchar(32);index" json:"transaction_id"`
	TransactionStatus string         `gorm:"type:varchar(30)" json:"transaction_status"`
	SignatureValid    bool           `json:"signature_valid"`
	Payload           datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Result            string         `gorm:"type:varchar(20)" json:"result"`
	Error             string         `gorm:"type:text" json:"error,omitempty"`
}
