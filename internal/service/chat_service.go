package service

import (
	"context"
	"strings"
	"time"

	"go-marketplace/internal/events"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"

	"go.uber.org/zap"
)

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required,notblank"`
	Message    string `json:"message" validate:"required,notblank,max=1000"`
}

type UpdateChatStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=delivered read"`
}

// Conversation summarizes the latest message exchanged with one partner.
type Conversation struct {
	OtherUserID         string               `json:"other_user_id"`
	OtherUser           *model.PublicProfile `json:"other_user"`
	LastMessage         string               `json:"last_message"`
	LastMessageTime     time.Time            `json:"last_message_time"`
	LastMessageStatus   string               `json:"last_message_status"`
	LastMessageSenderID string               `json:"last_message_sender_id"`
}

type ConversationPage struct {
	Messages   []model.Chat         `json:"messages"`
	OtherUser  *model.PublicProfile `json:"other_user"`
	Pagination PageMeta             `json:"pagination"`
}

type ChatService interface {
	SendMessage(ctx context.Context, sender Identity, req SendMessageRequest) (*model.Chat, error)
	ListConversations(userID string) ([]Conversation, error)
	GetConversation(userID, otherID string, page, limit int) (*ConversationPage, error)
	UpdateStatus(userID, chatID string, req UpdateChatStatusRequest) (*model.Chat, error)
	DeleteMessage(userID, chatID string) error
}

type chatService struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	notifier Notifier
	events   events.Publisher
	log      *zap.Logger
	now      func() time.Time
}

func NewChatService(chatRepo repository.ChatRepository, userRepo repository.UserRepository, notifier Notifier, pub events.Publisher, log *zap.Logger) ChatService {
	return &chatService{
		chatRepo: chatRepo,
		userRepo: userRepo,
		notifier: notifier,
		events:   pub,
		log:      log,
		now:      time.Now,
	}
}

func (s *chatService) SendMessage(ctx context.Context, sender Identity, req SendMessageRequest) (*model.Chat, error) {
	req.Message = strings.TrimSpace(req.Message)
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)

	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.ReceiverID == sender.UserID {
		return nil, ErrCannotMessageSelf
	}

	// 2. Receiver must exist
	receiver, err := s.userRepo.FindByID(req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrReceiverNotFound
	}

	// 3. Store
	chat := &model.Chat{
		SenderID:   sender.UserID,
		ReceiverID: receiver.ID,
		Message:    req.Message,
		Datetime:   s.now(),
		Status:     model.ChatSent,
	}
	if err := s.chatRepo.Create(chat); err != nil {
		return nil, err
	}

	// 4. Push to the receiver
	s.notifier.SendToUsers(map[string]interface{}{
		"type": "chat_message",
		"chat": chat,
	}, receiver.ID)

	if err := s.events.Publish(ctx, events.TopicChatMessageSent, chat.ID, map[string]interface{}{
		"chat_id":     chat.ID,
		"sender_id":   chat.SenderID,
		"receiver_id": chat.ReceiverID,
	}); err != nil {
		s.log.Warn("publish chat message failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}

	return chat, nil
}

func (s *chatService) ListConversations(userID string) ([]Conversation, error) {
	latest, err := s.chatRepo.FindLatestPerPartner(userID)
	if err != nil {
		return nil, err
	}

	out := make([]Conversation, 0, len(latest))
	for _, chat := range latest {
		partnerID := chat.SenderID
		if partnerID == userID {
			partnerID = chat.ReceiverID
		}

		conv := Conversation{
			OtherUserID:         partnerID,
			LastMessage:         chat.Message,
			LastMessageTime:     chat.Datetime,
			LastMessageStatus:   chat.Status,
			LastMessageSenderID: chat.SenderID,
		}
		partner, err := s.userRepo.FindByID(partnerID)
		if err != nil {
			return nil, err
		}
		if partner != nil {
			conv.OtherUser = partner.ToPublicProfile()
		}
		out = append(out, conv)
	}
	return out, nil
}

func (s *chatService) GetConversation(userID, otherID string, page, limit int) (*ConversationPage, error) {
	other, err := s.userRepo.FindByID(otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	p := repository.NewPagination(page, limit, chatPageLimit, maxPageLimit)
	chats, total, err := s.chatRepo.FindConversation(userID, otherID, p)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []model.Chat{}
	}

	return &ConversationPage{
		Messages:   chats,
		OtherUser:  other.ToPublicProfile(),
		Pagination: newPageMeta(p, total),
	}, nil
}

func (s *chatService) UpdateStatus(userID, chatID string, req UpdateChatStatusRequest) (*model.Chat, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	chat, err := s.chatRepo.FindByID(chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	if chat.ReceiverID != userID {
		return nil, ErrNotReceiver
	}

	if err := s.chatRepo.UpdateStatus(chatID, req.Status); err != nil {
		return nil, err
	}
	chat.Status = req.Status

	s.notifier.SendToUsers(map[string]interface{}{
		"type":    "chat_status",
		"chat_id": chat.ID,
		"status":  chat.Status,
	}, chat.SenderID)

	return chat, nil
}

func (s *chatService) DeleteMessage(userID, chatID string) error {
	chat, err := s.chatRepo.FindByID(chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return ErrChatNotFound
	}
	if chat.SenderID != userID {
		return ErrNotSender
	}
	return s.chatRepo.SoftDelete(chatID)
}
