package handlers

import (
	"errors"
	"net/http"

	"chessarena/middlewares"
	"chessarena/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileHandler は自分のニックネームと種別ごとのレーティングを返します。
func ProfileHandler(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, err := middlewares.GetUserIDFromToken(c, logger)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		logger.Error("ユーザーの取得に失敗しました", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	var ratings []models.RatingRecord
	if err := db.Where("user_id = ?", userID).Find(&ratings).Error; err != nil {
		logger.Error("レーティングの取得に失敗しました", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ratings"})
		return
	}

	ratingsByType := make(map[string]gin.H, len(ratings))
	for _, r := range ratings {
		ratingsByType[r.RatingType] = gin.H{
			"rating":     r.Rating,
			"peakRating": r.PeakRating,
			"wins":       r.Wins,
			"losses":     r.Losses,
			"draws":      r.Draws,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":   user.ID,
		"nickname": user.Nickname,
		"ratings":  ratingsByType,
	})
}

// HistoryHandler は自分の終局済みゲームを新しい順に返します。
func HistoryHandler(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, err := middlewares.GetUserIDFromToken(c, logger)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var games []models.GameRecord
	err = db.Where("(white_id = ? OR black_id = ?) AND status IN ?",
		userID, userID, []string{models.GameStatusCompleted, models.GameStatusDraw}).
		Order("finish_time DESC").
		Limit(50).
		Find(&games).Error
	if err != nil {
		logger.Error("対局履歴の取得に失敗しました", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch games"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games})
}
