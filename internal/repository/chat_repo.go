package repository

import (
	"errors"
	"time"

	"go-marketplace/internal/model"

	"gorm.io/gorm"
)

type ChatRepository interface {
	Create(chat *model.Chat) error
	FindByID(id string) (*model.Chat, error)
	FindConversation(userID, otherID string, p Pagination) ([]model.Chat, int64, error)
	FindLatestPerPartner(userID string) ([]model.Chat, error)
	UpdateStatus(id, status string) error
	SoftDelete(id string) error
}

type chatRepo struct {
	db *gorm.DB
}

func NewChatRepo(db *gorm.DB) ChatRepository {
	return &chatRepo{db}
}

func (r *chatRepo) Create(chat *model.Chat) error {
	return r.db.Create(chat).Error
}

func (r *chatRepo) FindByID(id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.First(&chat, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// FindConversation returns one page of the messages exchanged between two
// users in either direction, oldest first.
func (r *chatRepo) FindConversation(userID, otherID string, p Pagination) ([]model.Chat, int64, error) {
	var chats []model.Chat
	var total int64

	q := r.db.Model(&model.Chat{}).Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userID, otherID, otherID, userID,
	)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("datetime ASC").Offset(p.Offset()).Limit(p.Limit).Find(&chats).Error
	return chats, total, err
}

// FindLatestPerPartner returns the newest live message per conversation
// partner, newest conversation first.
func (r *chatRepo) FindLatestPerPartner(userID string) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.Raw(`
		SELECT * FROM (
			SELECT DISTINCT ON (partner_id) chats.*,
				CASE WHEN sender_id = @user THEN receiver_id ELSE sender_id END AS partner_id
			FROM chats
			WHERE deleted_at IS NULL AND (sender_id = @user OR receiver_id = @user)
			ORDER BY partner_id, datetime DESC
		) latest
		ORDER BY datetime DESC`,
		map[string]interface{}{"user": userID},
	).Scan(&chats).Error
	return chats, err
}

func (r *chatRepo) UpdateStatus(id, status string) error {
	return r.db.Model(&model.Chat{}).Where("id = ?", id).Update("status", status).Error
}

func (r *chatRepo) SoftDelete(id string) error {
	now := time.Now()
	return r.db.Model(&model.Chat{}).Where("id = ?", id).Updates(map[string]interface{}{
		"deleted_at": now,
		"updated_at": now,
	}).Error
}
