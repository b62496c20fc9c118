package models

import (
	"time"

	"gorm.io/gorm"
)

// レーティング種別
const (
	RatingClassic = "CLASSIC"
	RatingRapid   = "RAPID"
	RatingBlitz   = "BLITZ"
	RatingBullet  = "BULLET"
)

// DefaultRating はレーティング未登録ユーザーの初期値です。
const DefaultRating = 1200

// RatingRecord モデルの定義。ユーザーとレーティング種別ごとに一行。
type RatingRecord struct {
	gorm.Model
	UserID      uint   `gorm:"not null;uniqueIndex:idx_user_rating_type"`
	RatingType  string `gorm:"not null;uniqueIndex:idx_user_rating_type"`
	Rating      int    `gorm:"not null"`
	GamesPlayed int    `gorm:"not null"`
	Wins        int    `gorm:"not null"`
	Losses      int    `gorm:"not null"`
	Draws       int    `gorm:"not null"`
	PeakRating  int    `gorm:"not null"`
	PeakDate    time.Time
}

// IsValidRatingType はクライアントから受け取ったレーティング種別を検証します。
func IsValidRatingType(rt string) bool {
	switch rt {
	case RatingClassic, RatingRapid, RatingBlitz, RatingBullet:
		return true
	}
	return false
}
