// Package storage は永続化の境界とそのGORM実装を持ちます。
package storage

import (
	"context"
	"errors"

	"chessarena/models"
)

// Sentinel store errors.
var (
	ErrNotFound = errors.New("not found")
)

// GameSpec はゲーム作成時に確定している情報です。
type GameSpec struct {
	GameID      string
	WhiteID     uint
	BlackID     uint
	TimeControl string
	RatingType  string
	Rated       bool
	StartTime   int64
}

// GamePatch はゲームレコードの部分更新です。nilのフィールドは変更されません。
type GamePatch struct {
	Status     *string
	Winner     *string
	Reason     *string
	FEN        *string
	MovesUCI   *string
	FinishTime *int64
}

// Store は永続化の境界です。コアはこのインターフェースのみに依存し、
// スキーマやクエリの詳細には触れません。
type Store interface {
	CreateGame(ctx context.Context, spec GameSpec) (*models.GameRecord, error)
	UpdateGame(ctx context.Context, gameID string, patch GamePatch) error
	// GetRating はレコードが無い場合 ErrNotFound を返します。
	GetRating(ctx context.Context, userID uint, ratingType string) (*models.RatingRecord, error)
	// SaveRatings は両者のレーティングを単一トランザクションで保存します。
	SaveRatings(ctx context.Context, white, black *models.RatingRecord) error
}
