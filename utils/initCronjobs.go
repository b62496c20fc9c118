package utils

import (
	"time"

	"chessarena/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CronCleaner はゲームレコードの定期クリーンナップを行います。
func CronCleaner(db *gorm.DB, logger *zap.Logger) {
	c := cron.New()

	// サーバー再起動などで取り残されたゲームを放棄扱いにするジョブ
	c.AddFunc("@hourly", func() {
		logger.Info("放棄されたゲームを整理する処理を開始")
		result := db.Model(&models.GameRecord{}).
			Where("status IN ? AND updated_at <= ?",
				[]string{models.GameStatusPending, models.GameStatusActive},
				time.Now().Add(-24*time.Hour)).
			Updates(map[string]interface{}{
				"status": models.GameStatusCompleted,
				"reason": models.ReasonAbandoned,
			})
		if result.Error != nil {
			logger.Error("放棄されたゲームの整理に失敗しました", zap.Error(result.Error))
		} else if result.RowsAffected > 0 {
			logger.Info("放棄されたゲームを整理しました", zap.Int("games", int(result.RowsAffected)))
		}
	})

	// 古い終局済みゲームを削除するジョブ（"分 時 日 月 曜日"）
	c.AddFunc("0 3 * * *", func() {
		logger.Info("古いゲームレコードを削除する処理を開始")
		result := db.Where("status IN ? AND finish_time <= ?",
			[]string{models.GameStatusCompleted, models.GameStatusDraw},
			time.Now().Add(-90*24*time.Hour).Unix()).
			Delete(&models.GameRecord{})
		if result.Error != nil {
			logger.Error("古いゲームレコードの削除に失敗しました", zap.Error(result.Error))
		} else {
			logger.Info("古いゲームレコードの削除完了", zap.Int("games_deleted", int(result.RowsAffected)))
		}
	})

	c.Start()
}
