package model

// Product is a listing. A nil Stock means the seller set no limit.
type Product struct {
	BaseModel
	Name        string `gorm:"type:varchar(255);not null;index" json:"name"`
	Price       int64  `gorm:"not null;default:0" json:"price"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `gorm:"type:varchar(100);index" json:"category"`
	Image       string `gorm:"type:text" json:"image"`
	UserID      string `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Stock       *int   `json:"stock"`
}
