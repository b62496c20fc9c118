package models

import (
	"gorm.io/gorm"
)

// ゲームセッションの状態
const (
	GameStatusPending   = "PENDING"
	GameStatusActive    = "ACTIVE"
	GameStatusCompleted = "COMPLETED"
	GameStatusDraw      = "DRAW"
)

// 終局理由
const (
	ReasonCheckmate   = "checkmate"
	ReasonResignation = "resignation"
	ReasonTimeout     = "timeout"
	ReasonStalemate   = "stalemate"
	ReasonAgreement   = "agreement"
	ReasonDrawRule    = "draw_rule"
	ReasonAbandoned   = "abandoned" // クリーンナップで打ち切られた放置ゲーム
)

// GameRecord モデルの定義。終局後のゲームはこのテーブルにのみ残る。
type GameRecord struct {
	gorm.Model
	GameID      string `gorm:"uniqueIndex;not null"` // UUID
	WhiteID     uint   `gorm:"not null"`
	BlackID     uint   `gorm:"not null"`
	TimeControl string `gorm:"not null"` // 例: "5+3"
	RatingType  string `gorm:"not null"`
	Rated       bool   `gorm:"not null"`
	Status      string `gorm:"not null"`
	Winner      string // "white"、"black"、引き分けの場合は空
	Reason      string
	FEN         string
	MovesUCI    string // スペース区切りのUCI形式の手順
	StartTime   int64
	FinishTime  int64
}
