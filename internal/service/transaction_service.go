package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-marketplace/internal/events"
	"go-marketplace/internal/gateway"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/pkg/cache"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// webhookRetries bounds the re-read/re-apply loop on version conflicts.
const webhookRetries = 3

var (
	ErrSellerNotFound = newError(ErrNotFound, "seller not found")
	ErrTotalMismatch  = newError(ErrBusinessRule, "total_price does not match price x quantity")
)

type CreateTransactionRequest struct {
	ProductID  string `json:"product_id" validate:"required,notblank"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
	TotalPrice *int64 `json:"total_price" validate:"required,gte=0"`
}

type UpdateStatusRequest struct {
	PaymentStatus      string  `json:"payment_status" validate:"required,oneof=pending completed cancelled refunded"`
	PaymentDescription *string `json:"payment_description" validate:"omitempty,max=500"`
}

type CreateTransactionResult struct {
	Transaction    *model.Transaction `json:"transaction"`
	PaymentSession *gateway.Session   `json:"payment_session"`
	PaymentError   string             `json:"payment_error,omitempty"`
}

type TransactionPage struct {
	Transactions []model.Transaction `json:"transactions"`
	Pagination   PageMeta            `json:"pagination"`
}

type TransactionService interface {
	CreateTransaction(ctx context.Context, buyer Identity, req CreateTransactionRequest) (*CreateTransactionResult, error)
	CreatePaymentSession(ctx context.Context, caller Identity, id string) (*CreateTransactionResult, error)
	GetTransaction(caller Identity, id string) (*model.Transaction, error)
	ListMyTransactions(caller Identity, party string, page, limit int) (*TransactionPage, error)
	UpdateStatus(ctx context.Context, caller Identity, id string, req UpdateStatusRequest) (*model.Transaction, error)
	HandleNotification(ctx context.Context, n gateway.Notification, raw []byte) (*model.Transaction, error)
	SyncPaymentStatus(ctx context.Context, caller Identity, id string) (*model.Transaction, error)
}

type TransactionDeps struct {
	Transactions  repository.TransactionRepository
	Products      repository.ProductRepository
	Users         repository.UserRepository
	Notifications repository.NotificationRepository
	Gateway       gateway.PaymentGateway
	Cache         cache.Cache
	Notifier      Notifier
	Events        events.Publisher
	Log           *zap.Logger
}

type transactionService struct {
	txRepo      repository.TransactionRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	notifRepo   repository.NotificationRepository
	gateway     gateway.PaymentGateway
	cache       cache.Cache
	notifier    Notifier
	events      events.Publisher
	log         *zap.Logger
	now         func() time.Time
}

func NewTransactionService(d TransactionDeps) TransactionService {
	return &transactionService{
		txRepo:      d.Transactions,
		productRepo: d.Products,
		userRepo:    d.Users,
		notifRepo:   d.Notifications,
		gateway:     d.Gateway,
		cache:       d.Cache,
		notifier:    d.Notifier,
		events:      d.Events,
		log:         d.Log,
		now:         time.Now,
	}
}

func (s *transactionService) CreateTransaction(ctx context.Context, buyer Identity, req CreateTransactionRequest) (*CreateTransactionResult, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)

	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}

	// 2. Resolve buyer, product and seller
	buyerUser, err := s.userRepo.FindByID(buyer.UserID)
	if err != nil {
		return nil, err
	}
	if buyerUser == nil {
		return nil, ErrUserNotFound
	}
	product, err := s.productRepo.FindByID(req.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	// 3. Business rules, checked before anything is written
	if product.UserID == buyerUser.ID {
		return nil, ErrCannotBuyOwnProduct
	}
	if product.Stock != nil && req.Quantity > *product.Stock {
		return nil, ErrInsufficientStock
	}
	total := product.Price * int64(req.Quantity)
	if *req.TotalPrice != total {
		return nil, ErrTotalMismatch
	}
	seller, err := s.userRepo.FindByID(product.UserID)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, ErrSellerNotFound
	}

	// 4. Persist the snapshot
	tx := &model.Transaction{
		TransactionID: model.NewTransactionID(),
		PaymentID:     uuid.NewString(),
		Seller: model.SellerSnapshot{
			ID:       seller.ID,
			Username: seller.Username,
			Email:    seller.Email,
			Phone:    seller.PhoneNumber,
		},
		BuyerID:    buyerUser.ID,
		BuyerEmail: buyerUser.Email,
		Product: model.ProductSnapshot{
			ID:         product.ID,
			Name:       product.Name,
			Price:      product.Price,
			Image:      product.Image,
			Category:   product.Category,
			Quantity:   req.Quantity,
			TotalPrice: total,
		},
		Datetime:      s.now(),
		PaymentStatus: model.StatusPending,
		Version:       1,
	}
	if err := s.txRepo.Create(tx); err != nil {
		return nil, err
	}

	// 5. Delist the product. The transaction is already committed, so a
	// failure here is logged and the buyer still gets their transaction id.
	if err := s.productRepo.SoftDelete(product.ID); err != nil {
		s.log.Error("delist product failed",
			zap.String("transaction_id", tx.TransactionID),
			zap.String("product_id", product.ID),
			zap.Error(err),
		)
	}
	if err := s.cache.Delete(ctx, cache.ProductKey(product.ID)); err != nil {
		s.log.Warn("product cache evict failed", zap.String("product_id", product.ID), zap.Error(err))
	}

	s.log.Info("transaction created",
		zap.String("transaction_id", tx.TransactionID),
		zap.String("product_id", product.ID),
		zap.String("buyer_id", buyerUser.ID),
		zap.String("seller_id", seller.ID),
	)
	s.publish(ctx, events.TopicTransactionCreated, tx)
	s.notify(tx, "transaction_created", fmt.Sprintf("%s bought '%s'", buyerUser.Username, product.Name))

	// 6-7. Payment session. A failure leaves the pending transaction in place.
	result := &CreateTransactionResult{Transaction: tx}
	session, err := s.openSession(ctx, tx, buyerUser)
	if err != nil {
		s.log.Error("payment session failed", zap.String("transaction_id", tx.TransactionID), zap.Error(err))
		result.PaymentError = err.Error()
		return result, nil
	}
	result.PaymentSession = session

	// 8. Return transaction + session
	return result, nil
}

// CreatePaymentSession retries session creation for a pending transaction.
func (s *transactionService) CreatePaymentSession(ctx context.Context, caller Identity, id string) (*CreateTransactionResult, error) {
	tx, err := s.txRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	if !tx.IsBuyer(caller.Email) {
		return nil, ErrOnlyBuyerPay
	}
	if tx.PaymentStatus != model.StatusPending {
		return nil, ErrNotPending
	}

	buyerUser, err := s.userRepo.FindByID(tx.BuyerID)
	if err != nil {
		return nil, err
	}
	if buyerUser == nil {
		buyerUser = &model.User{Email: tx.BuyerEmail}
	}

	session, err := s.openSession(ctx, tx, buyerUser)
	if err != nil {
		return nil, err
	}
	return &CreateTransactionResult{Transaction: tx, PaymentSession: session}, nil
}

// openSession requests a gateway session under a fresh order id and stores
// the token and redirect URL on the transaction.
func (s *transactionService) openSession(ctx context.Context, tx *model.Transaction, buyer *model.User) (*gateway.Session, error) {
	orderID := gateway.NewOrderID(tx.TransactionID, s.now())

	item := gateway.Item{
		ID:       tx.Product.ID,
		Name:     tx.Product.Name,
		Price:    tx.Product.Price,
		Qty:      int32(tx.Product.Quantity),
		Category: tx.Product.Category,
	}

	session, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		OrderID:     orderID,
		GrossAmount: tx.Product.TotalPrice,
		Customer: gateway.Customer{
			Email: tx.BuyerEmail,
			Name:  buyer.Username,
			Phone: buyer.PhoneNumber,
		},
		Items: []gateway.Item{item},
	})
	if err != nil {
		return nil, upstream("payment gateway", err)
	}

	fields := map[string]interface{}{
		"midtrans_order_id": orderID,
		"snap_token":        session.Token,
		"redirect_url":      session.RedirectURL,
	}
	if err := s.txRepo.UpdateWithVersion(tx.TransactionID, tx.Version, fields); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	tx.MidtransOrderID = orderID
	tx.SnapToken = session.Token
	tx.RedirectURL = session.RedirectURL
	tx.Version++

	return session, nil
}

func (s *transactionService) GetTransaction(caller Identity, id string) (*model.Transaction, error) {
	tx, err := s.txRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	if !tx.IsBuyer(caller.Email) && !tx.IsSeller(caller.UserID) && !caller.IsAdmin() {
		return nil, ErrNotTransactionParty
	}
	return tx, nil
}

func (s *transactionService) ListMyTransactions(caller Identity, party string, page, limit int) (*TransactionPage, error) {
	switch party {
	case repository.PartyBuyer, repository.PartySeller, repository.PartyAny:
	default:
		return nil, newError(ErrBusinessRule, "as must be buyer or seller")
	}

	p := repository.NewPagination(page, limit, defaultPageLimit, maxPageLimit)
	txs, total, err := s.txRepo.FindByParty(caller.UserID, caller.Email, party, p)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	return &TransactionPage{Transactions: txs, Pagination: newPageMeta(p, total)}, nil
}

// UpdateStatus applies an authenticated status change:
//
//	pending -> cancelled   buyer only
//	pending -> completed   seller only
//	any     -> refunded    seller only
func (s *transactionService) UpdateStatus(ctx context.Context, caller Identity, id string, req UpdateStatusRequest) (*model.Transaction, error) {
	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}

	tx, err := s.txRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}

	// 2. Authorize the transition
	if err := checkTransition(tx, caller, req.PaymentStatus); err != nil {
		return nil, err
	}

	// 3. Version-checked write
	fields := map[string]interface{}{"payment_status": req.PaymentStatus}
	if req.PaymentDescription != nil {
		fields["payment_description"] = *req.PaymentDescription
	}
	if err := s.txRepo.UpdateWithVersion(tx.TransactionID, tx.Version, fields); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}

	previous := tx.PaymentStatus
	tx.PaymentStatus = req.PaymentStatus
	if req.PaymentDescription != nil {
		tx.PaymentDescription = *req.PaymentDescription
	}
	tx.Version++

	s.log.Info("transaction status updated",
		zap.String("transaction_id", tx.TransactionID),
		zap.String("from", previous),
		zap.String("to", tx.PaymentStatus),
		zap.String("by", caller.UserID),
	)

	// 4. Broadcast
	s.afterStatusChange(ctx, tx, previous, "user")
	return tx, nil
}

func checkTransition(tx *model.Transaction, caller Identity, target string) error {
	switch target {
	case model.StatusCancelled:
		if !tx.IsBuyer(caller.Email) {
			return ErrOnlyBuyerCancel
		}
		if tx.PaymentStatus != model.StatusPending {
			return ErrNotPending
		}
	case model.StatusCompleted:
		if !tx.IsSeller(caller.UserID) {
			return ErrOnlySellerComplete
		}
		if tx.PaymentStatus != model.StatusPending {
			return ErrNotPending
		}
	case model.StatusRefunded:
		if !tx.IsSeller(caller.UserID) {
			return ErrOnlySellerRefund
		}
	default:
		return ErrInvalidTransition
	}
	return nil
}

// HandleNotification reconciles a gateway callback. After the signature
// check the gateway status overwrites whatever is stored.
func (s *transactionService) HandleNotification(ctx context.Context, n gateway.Notification, raw []byte) (*model.Transaction, error) {
	txID := gateway.TransactionIDFromOrderID(n.OrderID)

	// 1. Audit row
	record := &model.PaymentNotification{
		OrderID:           n.OrderID,
		TransactionID:     txID,
		TransactionStatus: n.TransactionStatus,
		SignatureValid:    s.gateway.VerifySignature(n),
		Payload:           datatypes.JSON(raw),
	}
	if err := s.notifRepo.Create(record); err != nil {
		s.log.Error("payment notification log failed", zap.String("order_id", n.OrderID), zap.Error(err))
	}

	// 2. Signature
	if !record.SignatureValid {
		s.log.Warn("payment notification rejected", zap.String("order_id", n.OrderID))
		s.markNotification(record, model.NotificationRejected, ErrInvalidSignature)
		return nil, ErrInvalidSignature
	}
	if txID == "" || n.TransactionStatus == "" {
		err := newError(ErrBusinessRule, "order_id and transaction_status are required")
		s.markNotification(record, model.NotificationFailed, err)
		return nil, err
	}

	// 3. Apply
	tx, err := s.applyGatewayStatus(ctx, txID, n)
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		s.markNotification(record, model.NotificationNotFound, err)
		return nil, err
	case err != nil:
		s.markNotification(record, model.NotificationFailed, err)
		return nil, err
	}

	s.markNotification(record, model.NotificationApplied, nil)
	return tx, nil
}

// SyncPaymentStatus pulls the current status from the gateway and applies
// it the same way a webhook would.
func (s *transactionService) SyncPaymentStatus(ctx context.Context, caller Identity, id string) (*model.Transaction, error) {
	tx, err := s.GetTransaction(caller, id)
	if err != nil {
		return nil, err
	}
	if tx.MidtransOrderID == "" {
		return nil, newError(ErrBusinessRule, "transaction has no payment session yet")
	}

	n, err := s.gateway.Status(ctx, tx.MidtransOrderID)
	if err != nil {
		return nil, upstream("payment status", err)
	}
	if n.TransactionStatus == "" || n.TransactionStatus == tx.PaymentStatus {
		return tx, nil
	}
	return s.applyGatewayStatus(ctx, tx.TransactionID, *n)
}

func (s *transactionService) applyGatewayStatus(ctx context.Context, txID string, n gateway.Notification) (*model.Transaction, error) {
	for attempt := 1; attempt <= webhookRetries; attempt++ {
		tx, err := s.txRepo.FindByID(txID)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			return nil, ErrTransactionNotFound
		}

		previous := tx.PaymentStatus
		fields := applyGatewayFields(tx, n)

		err = s.txRepo.UpdateWithVersion(txID, tx.Version, fields)
		if errors.Is(err, repository.ErrVersionConflict) {
			s.log.Warn("gateway status write conflicted, retrying",
				zap.String("transaction_id", txID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		tx.Version++

		s.log.Info("gateway status applied",
			zap.String("transaction_id", txID),
			zap.String("from", previous),
			zap.String("to", tx.PaymentStatus),
		)
		s.afterStatusChange(ctx, tx, previous, "gateway")
		return tx, nil
	}
	return nil, ErrConcurrentUpdate
}

// applyGatewayFields merges gateway data into tx and returns the columns to
// write. Empty gateway values leave stored metadata untouched.
func applyGatewayFields(tx *model.Transaction, n gateway.Notification) map[string]interface{} {
	fields := map[string]interface{}{"payment_status": n.TransactionStatus}
	tx.PaymentStatus = n.TransactionStatus

	if n.OrderID != "" {
		fields["midtrans_order_id"] = n.OrderID
		tx.MidtransOrderID = n.OrderID
	}
	if n.PaymentType != "" {
		fields["payment_type"] = n.PaymentType
		tx.PaymentType = n.PaymentType
	}
	if va := n.VANumber(); va != "" {
		fields["va_number"] = va
		tx.VANumber = va
	}
	if n.PDFURL != "" {
		fields["pdf_url"] = n.PDFURL
		tx.PDFURL = n.PDFURL
	}
	if t := gateway.ParseTime(n.SettlementTime); t != nil {
		fields["settlement_time"] = *t
		tx.SettlementTime = t
	}
	if t := gateway.ParseTime(n.ExpiryTime); t != nil {
		fields["expiry_time"] = *t
		tx.ExpiryTime = t
	}
	return fields
}

func (s *transactionService) markNotification(record *model.PaymentNotification, result string, cause error) {
	if record.ID == "" {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.notifRepo.MarkResult(record.ID, result, msg); err != nil {
		s.log.Error("payment notification update failed", zap.String("id", record.ID), zap.Error(err))
	}
}

func (s *transactionService) afterStatusChange(ctx context.Context, tx *model.Transaction, previous, source string) {
	s.notify(tx, "status_changed", fmt.Sprintf("transaction %s is now %s", tx.TransactionID, tx.PaymentStatus))
	if err := s.events.Publish(ctx, events.TopicTransactionStatusChanged, tx.TransactionID, map[string]interface{}{
		"transaction_id": tx.TransactionID,
		"from":           previous,
		"to":             tx.PaymentStatus,
		"source":         source,
		"version":        tx.Version,
	}); err != nil {
		s.log.Warn("publish status change failed", zap.String("transaction_id", tx.TransactionID), zap.Error(err))
	}
}

func (s *transactionService) publish(ctx context.Context, topic string, tx *model.Transaction) {
	if err := s.events.Publish(ctx, topic, tx.TransactionID, tx); err != nil {
		s.log.Warn("publish event failed", zap.String("topic", topic), zap.String("transaction_id", tx.TransactionID), zap.Error(err))
	}
}

func (s *transactionService) notify(tx *model.Transaction, action, message string) {
	s.notifier.SendToUsers(map[string]interface{}{
		"type":   "transaction_update",
		"action": action,
		"transaction": map[string]interface{}{
			"transaction_id": tx.TransactionID,
			"payment_status": tx.PaymentStatus,
			"product_id":     tx.Product.ID,
			"product_name":   tx.Product.Name,
			"total_price":    tx.Product.TotalPrice,
		},
		"message": message,
	}, tx.BuyerID, tx.Seller.ID)
}
