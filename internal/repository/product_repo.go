package repository

import (
	"errors"
	"strings"
	"time"

	"go-marketplace/internal/model"

	"gorm.io/gorm"
)

type ProductFilter struct {
	Query    string // case-insensitive substring of name
	Category string
	UserID   string
}

type ProductRepository interface {
	Create(product *model.Product) error
	FindByID(id string) (*model.Product, error)
	Search(f ProductFilter, p Pagination) ([]model.Product, int64, error)
	Update(id string, fields map[string]interface{}) error
	SoftDelete(id string) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

func (r *productRepo) FindByID(id string) (*model.Product, error) {
	var product model.Product
	err := r.db.First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) Search(f ProductFilter, p Pagination) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q := r.db.Model(&model.Product{})
	if f.Query != "" {
		q = q.Where("name ILIKE ?", "%"+escapeLike(f.Query)+"%")
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) = LOWER(?)", f.Category)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&products).Error
	return products, total, err
}

func (r *productRepo) Update(id string, fields map[string]interface{}) error {
	for _, k := range []string{"id", "created_at", "user_id", "deleted_at"} {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil
	}
	return r.db.Model(&model.Product{}).Where("id = ?", id).Updates(fields).Error
}

// SoftDelete stamps deleted_at and updated_at; the row is kept.
func (r *productRepo) SoftDelete(id string) error {
	now := time.Now()
	return r.db.Model(&model.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
		"deleted_at": now,
		"updated_at": now,
	}).Error
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
