package model

import "time"

const (
	ChatSent      = "sent"
	ChatDelivered = "delivered"
	ChatRead      = "read"
)

type Chat struct {
	BaseModel
	SenderID   string    `gorm:"type:varchar(64);not null;index" json:"sender_id"`
	ReceiverID string    `gorm:"type:varchar(64);not null;index" json:"receiver_id"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	Datetime   time.Time `gorm:"not null;index" json:"datetime"`
	Status     string    `gorm:"type:varchar(20);not null;default:sent" json:"status"`
}
