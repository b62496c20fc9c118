package models

import (
	"gorm.io/gorm"
)

// User モデルの定義
type User struct {
	gorm.Model
	Nickname           string `gorm:"not null"`
	SubscriptionStatus string `gorm:"not null"` // 課金ステータス (free, standard, premium)
}
