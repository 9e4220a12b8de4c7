package repository

import (
	"errors"
	"time"

	"go-marketplace/internal/model"

	"gorm.io/gorm"
)

// UserRepository finders return (nil, nil) when no live user matches.
type UserRepository interface {
	Create(user *model.User) error
	FindByID(id string) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	FindByUsername(username string) (*model.User, error)
	FindByGoogleUID(uid string) (*model.User, error)
	FindByResetToken(token string, now time.Time) (*model.User, error)
	FindAll(p Pagination) ([]model.User, int64, error)
	Update(id string, fields map[string]interface{}) error
	UpdateAccessToken(id string, token *string) error
	UpdatePassword(id, hashedPassword string) error
	SetResetToken(id, token string, expires time.Time) error
	SoftDelete(id string) error
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db}
}

func (r *userRepo) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *userRepo) findOne(query string, args ...interface{}) (*model.User, error) {
	var user model.User
	err := r.db.Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByID(id string) (*model.User, error) {
	return r.findOne("id = ?", id)
}

func (r *userRepo) FindByEmail(email string) (*model.User, error) {
	return r.findOne("LOWER(email) = LOWER(?)", email)
}

func (r *userRepo) FindByUsername(username string) (*model.User, error) {
	return r.findOne("username = ?", username)
}

func (r *userRepo) FindByGoogleUID(uid string) (*model.User, error) {
	return r.findOne("google_uid = ?", uid)
}

func (r *userRepo) FindByResetToken(token string, now time.Time) (*model.User, error) {
	return r.findOne("reset_password_token = ? AND reset_password_expires > ?", token, now)
}

func (r *userRepo) FindAll(p Pagination) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	if err := r.db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&users).Error
	return users, total, err
}

// Update applies a shallow merge. Identity columns are never written here.
func (r *userRepo) Update(id string, fields map[string]interface{}) error {
	for _, k := range []string{"id", "created_at", "email", "role", "deleted_at"} {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil
	}
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *userRepo) UpdateAccessToken(id string, token *string) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Update("access_token", token).Error
}

// UpdatePassword also consumes any outstanding reset token.
func (r *userRepo) UpdatePassword(id, hashedPassword string) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password":               hashedPassword,
		"reset_password_token":   nil,
		"reset_password_expires": nil,
	}).Error
}

func (r *userRepo) SetResetToken(id, token string, expires time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"reset_password_token":   token,
		"reset_password_expires": expires,
	}).Error
}

// SoftDelete stamps deleted_at and revokes the session in a single write.
func (r *userRepo) SoftDelete(id string) error {
	now := time.Now()
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token": nil,
		"deleted_at":   now,
		"updated_at":   now,
	}).Error
}
