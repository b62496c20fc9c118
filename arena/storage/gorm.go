package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chessarena/models"
)

// gormStore はStoreのGORM/PostgreSQL実装です。
type gormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore はGORMバックエンドのStoreを生成します。
func NewGormStore(db *gorm.DB, logger *zap.Logger) Store {
	return &gormStore{db: db, logger: logger}
}

func (s *gormStore) CreateGame(ctx context.Context, spec GameSpec) (*models.GameRecord, error) {
	record := &models.GameRecord{
		GameID:      spec.GameID,
		WhiteID:     spec.WhiteID,
		BlackID:     spec.BlackID,
		TimeControl: spec.TimeControl,
		RatingType:  spec.RatingType,
		Rated:       spec.Rated,
		Status:      models.GameStatusPending,
		StartTime:   spec.StartTime,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		s.logger.Error("ゲームレコードの作成に失敗しました", zap.Error(err))
		return nil, fmt.Errorf("create game: %w", err)
	}
	return record, nil
}

func (s *gormStore) UpdateGame(ctx context.Context, gameID string, patch GamePatch) error {
	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Winner != nil {
		updates["winner"] = *patch.Winner
	}
	if patch.Reason != nil {
		updates["reason"] = *patch.Reason
	}
	if patch.FEN != nil {
		updates["fen"] = *patch.FEN
	}
	if patch.MovesUCI != nil {
		updates["moves_uci"] = *patch.MovesUCI
	}
	if patch.FinishTime != nil {
		updates["finish_time"] = *patch.FinishTime
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&models.GameRecord{}).
		Where("game_id = ?", gameID).Updates(updates)
	if result.Error != nil {
		s.logger.Error("ゲームレコードの更新に失敗しました",
			zap.String("gameID", gameID), zap.Error(result.Error))
		return fmt.Errorf("update game %s: %w", gameID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) GetRating(ctx context.Context, userID uint, ratingType string) (*models.RatingRecord, error) {
	var record models.RatingRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND rating_type = ?", userID, ratingType).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return &record, nil
}

func (s *gormStore) SaveRatings(ctx context.Context, white, black *models.RatingRecord) error {
	// 両者の更新を一つのトランザクションにまとめる。片方だけの反映は
	// 許されない。
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range []*models.RatingRecord{white, black} {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "rating_type"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"rating", "games_played", "wins", "losses", "draws",
					"peak_rating", "peak_date", "updated_at",
				}),
			}).Create(record).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("レーティングの保存に失敗しました", zap.Error(err))
		return fmt.Errorf("save ratings: %w", err)
	}
	return nil
}
