package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User represents an account. Email is unique among live (non-deleted) users.
type User struct {
	BaseModel
	Email                string     `gorm:"type:varchar(255);not null;index:idx_users_email_live,unique,where:deleted_at IS NULL" json:"email"`
	Password             *string    `gorm:"type:varchar(255)" json:"-"` // nil for federated accounts
	Username             string     `gorm:"type:varchar(50);index" json:"username"`
	Address              string     `gorm:"type:varchar(255)" json:"address"`
	PhoneNumber          string     `gorm:"type:varchar(20)" json:"phone_number"`
	Role                 string     `gorm:"type:varchar(20);not null;default:user" json:"role"`
	AccessToken          *string    `gorm:"type:text" json:"-"`
	ResetPasswordToken   *string    `gorm:"type:varchar(128);index" json:"-"`
	ResetPasswordExpires *time.Time `json:"-"`
	GoogleUID            *string    `gorm:"type:varchar(128);index" json:"-"`
	ProfilePicture       string     `gorm:"type:text" json:"profile_picture"`
	AuthProvider         string     `gorm:"type:varchar(20);not null;default:local" json:"auth_provider"`
}

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	hash := string(hashedPassword)
	u.Password = &hash
	return nil
}

// CheckPassword verifies if the provided password matches the stored hash.
// Accounts without a password never match.
func (u *User) CheckPassword(password string) bool {
	if u.Password == nil || *u.Password == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(*u.Password), []byte(password))
	return err == nil
}

func (u *User) HasPassword() bool {
	return u.Password != nil && *u.Password != ""
}

// UserResponse is used for API responses (without sensitive data)
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	Address        string    `json:"address"`
	PhoneNumber    string    `json:"phone_number"`
	Role           string    `json:"role"`
	ProfilePicture string    `json:"profile_picture"`
	AuthProvider   string    `json:"auth_provider"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		Address:        u.Address,
		PhoneNumber:    u.PhoneNumber,
		Role:           u.Role,
		ProfilePicture: u.ProfilePicture,
		AuthProvider:   u.AuthProvider,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// PublicProfile is what another user sees in chat listings.
type PublicProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

func (u *User) ToPublicProfile() *PublicProfile {
	return &PublicProfile{
		ID:             u.ID,
		Name:           u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
	}
}
