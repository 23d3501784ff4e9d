package models

import "time"

// User mirrors the identity store's users table. Rows are owned by the
// external identity service; the chat core only reads display fields.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Username        string    `gorm:"uniqueIndex;not null" json:"username"`
	Nickname        string    `json:"nickname"`
	ProfileImageURL string    `json:"profile_image_url"`
	CreatedAt       time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
