package repository

import (
	"errors"

	"go-marketplace/internal/model"

	"gorm.io/gorm"
)

const (
	PartyBuyer  = "buyer"
	PartySeller = "seller"
	PartyAny    = ""
)

type TransactionRepository interface {
	Create(tx *model.Transaction) error
	FindByID(id string) (*model.Transaction, error)
	FindByParty(userID, email, party string, p Pagination) ([]model.Transaction, int64, error)
	UpdateWithVersion(id string, version int, fields map[string]interface{}) error
	GetSalesSummary(sellerID string) (*SalesSummary, error)
}

// StatusBreakdown is one row of the per-status aggregation.
type StatusBreakdown struct {
	Status  string `json:"status"`
	Count   int64  `json:"count"`
	Revenue int64  `json:"revenue"`
}

// SalesSummary untuk overview penjual
type SalesSummary struct {
	TotalTransactions int64             `json:"total_transactions"`
	SettledRevenue    int64             `json:"settled_revenue"`
	ByStatus          []StatusBreakdown `json:"by_status"`
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(tx *model.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *transactionRepo) FindByID(id string) (*model.Transaction, error) {
	var transaction model.Transaction
	err := r.db.First(&transaction, "transaction_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// FindByParty lists transactions where the user is the buyer (by email),
// the seller (by id), or either when party is empty. Newest first.
func (r *transactionRepo) FindByParty(userID, email, party string, p Pagination) ([]model.Transaction, int64, error) {
	var transactions []model.Transaction
	var total int64

	q := r.db.Model(&model.Transaction{})
	switch party {
	case PartyBuyer:
		q = q.Where("LOWER(buyer_email) = LOWER(?)", email)
	case PartySeller:
		q = q.Where("seller_id = ?", userID)
	default:
		q = q.Where("LOWER(buyer_email) = LOWER(?) OR seller_id = ?", email, userID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("datetime DESC").Offset(p.Offset()).Limit(p.Limit).Find(&transactions).Error
	return transactions, total, err
}

// UpdateWithVersion writes fields only if the stored version still equals
// version, and bumps it. Zero matched rows means a concurrent writer won.
func (r *transactionRepo) UpdateWithVersion(id string, version int, fields map[string]interface{}) error {
	for _, k := range []string{"transaction_id", "payment_id", "created_at"} {
		delete(fields, k)
	}
	fields["version"] = gorm.Expr("version + 1")

	res := r.db.Model(&model.Transaction{}).
		Where("transaction_id = ? AND version = ?", id, version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *transactionRepo) GetSalesSummary(sellerID string) (*SalesSummary, error) {
	var rows []StatusBreakdown

	err := r.db.Model(&model.Transaction{}).
		Select("payment_status AS status, COUNT(*) AS count, COALESCE(SUM(product_total_price), 0) AS revenue").
		Where("seller_id = ?", sellerID).
		Group("payment_status").
		Order("payment_status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := &SalesSummary{ByStatus: rows}
	for _, row := range rows {
		summary.TotalTransactions += row.Count
		switch row.Status {
		case model.StatusSettlement, model.StatusCapture, model.StatusCompleted:
			summary.SettledRevenue += row.Revenue
		}
	}
	return summary, nil
}
