package service

import (
	"context"
	"io"
	"sync"
	"time"

	"go-marketplace/internal/gateway"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/pkg/googleauth"

	"github.com/stretchr/testify/mock"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(user *model.User) error {
	args := m.Called(user)
	if user.ID == "" {
		user.ID = "generated-user"
	}
	return args.Error(0)
}

func (m *MockUserRepo) FindByID(id string) (*model.User, error) {
	args := m.Called(id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindByEmail(email string) (*model.User, error) {
	args := m.Called(email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindByUsername(username string) (*model.User, error) {
	args := m.Called(username)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindByGoogleUID(uid string) (*model.User, error) {
	args := m.Called(uid)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindByResetToken(token string, now time.Time) (*model.User, error) {
	args := m.Called(token, now)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindAll(p repository.Pagination) ([]model.User, int64, error) {
	args := m.Called(p)
	users, _ := args.Get(0).([]model.User)
	return users, args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepo) Update(id string, fields map[string]interface{}) error {
	return m.Called(id, fields).Error(0)
}

func (m *MockUserRepo) UpdateAccessToken(id string, token *string) error {
	return m.Called(id, token).Error(0)
}

func (m *MockUserRepo) UpdatePassword(id, hashedPassword string) error {
	return m.Called(id, hashedPassword).Error(0)
}

func (m *MockUserRepo) SetResetToken(id, token string, expires time.Time) error {
	return m.Called(id, token, expires).Error(0)
}

func (m *MockUserRepo) SoftDelete(id string) error {
	return m.Called(id).Error(0)
}

type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) Create(product *model.Product) error {
	args := m.Called(product)
	if product.ID == "" {
		product.ID = "generated-product"
	}
	return args.Error(0)
}

func (m *MockProductRepo) FindByID(id string) (*model.Product, error) {
	args := m.Called(id)
	p, _ := args.Get(0).(*model.Product)
	return p, args.Error(1)
}

func (m *MockProductRepo) Search(f repository.ProductFilter, p repository.Pagination) ([]model.Product, int64, error) {
	args := m.Called(f, p)
	products, _ := args.Get(0).([]model.Product)
	return products, args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepo) Update(id string, fields map[string]interface{}) error {
	return m.Called(id, fields).Error(0)
}

func (m *MockProductRepo) SoftDelete(id string) error {
	return m.Called(id).Error(0)
}

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Create(tx *model.Transaction) error {
	return m.Called(tx).Error(0)
}

func (m *MockTransactionRepo) FindByID(id string) (*model.Transaction, error) {
	args := m.Called(id)
	tx, _ := args.Get(0).(*model.Transaction)
	return tx, args.Error(1)
}

func (m *MockTransactionRepo) FindByParty(userID, email, party string, p repository.Pagination) ([]model.Transaction, int64, error) {
	args := m.Called(userID, email, party, p)
	txs, _ := args.Get(0).([]model.Transaction)
	return txs, args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepo) UpdateWithVersion(id string, version int, fields map[string]interface{}) error {
	return m.Called(id, version, fields).Error(0)
}

func (m *MockTransactionRepo) GetSalesSummary(sellerID string) (*repository.SalesSummary, error) {
	args := m.Called(sellerID)
	s, _ := args.Get(0).(*repository.SalesSummary)
	return s, args.Error(1)
}

type MockChatRepo struct {
	mock.Mock
}

func (m *MockChatRepo) Create(chat *model.Chat) error {
	args := m.Called(chat)
	if chat.ID == "" {
		chat.ID = "generated-chat"
	}
	return args.Error(0)
}

func (m *MockChatRepo) FindByID(id string) (*model.Chat, error) {
	args := m.Called(id)
	c, _ := args.Get(0).(*model.Chat)
	return c, args.Error(1)
}

func (m *MockChatRepo) FindConversation(userID, otherID string, p repository.Pagination) ([]model.Chat, int64, error) {
	args := m.Called(userID, otherID, p)
	chats, _ := args.Get(0).([]model.Chat)
	return chats, args.Get(1).(int64), args.Error(2)
}

func (m *MockChatRepo) FindLatestPerPartner(userID string) ([]model.Chat, error) {
	args := m.Called(userID)
	chats, _ := args.Get(0).([]model.Chat)
	return chats, args.Error(1)
}

func (m *MockChatRepo) UpdateStatus(id, status string) error {
	return m.Called(id, status).Error(0)
}

func (m *MockChatRepo) SoftDelete(id string) error {
	return m.Called(id).Error(0)
}

type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Create(n *model.PaymentNotification) error {
	args := m.Called(n)
	if n.ID == "" {
		n.ID = "notif-1"
	}
	return args.Error(0)
}

func (m *MockNotificationRepo) MarkResult(id, result, errMsg string) error {
	return m.Called(id, result, errMsg).Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(*gateway.Session)
	return s, args.Error(1)
}

func (m *MockGateway) Status(ctx context.Context, orderID string) (*gateway.Notification, error) {
	args := m.Called(ctx, orderID)
	n, _ := args.Get(0).(*gateway.Notification)
	return n, args.Error(1)
}

func (m *MockGateway) VerifySignature(n gateway.Notification) bool {
	return m.Called(n).Bool(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(to, subject, htmlBody string) error {
	return m.Called(to, subject, htmlBody).Error(0)
}

type MockGoogleVerifier struct {
	mock.Mock
}

func (m *MockGoogleVerifier) Verify(ctx context.Context, token string) (*googleauth.Identity, error) {
	args := m.Called(ctx, token)
	id, _ := args.Get(0).(*googleauth.Identity)
	return id, args.Error(1)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, body, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type sentMessage struct {
	payload interface{}
	userIDs []string
}

// fakeNotifier records realtime pushes.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) SendToUsers(payload interface{}, userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{payload: payload, userIDs: userIDs})
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
