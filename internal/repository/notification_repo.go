package repository

import (
	"go-marketplace/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(n *model.PaymentNotification) error
	MarkResult(id, result, errMsg string) error
}

type notificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db}
}

func (r *notificationRepo) Create(n *model.PaymentNotification) error {
	return r.db.Create(n).Error
}

func (r *notificationRepo) MarkResult(id, result, errMsg string) error {
	return r.db.Model(&model.PaymentNotification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"result": result,
		"error":  errMsg,
	}).Error
}
