package handlers

import (
	"net/http"

	"chessarena/middlewares"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// トークン発行リクエストの構造体
type TokenRequest struct {
	Nickname string `json:"nickname"`
	UserID   uint   `json:"userId"` // 0なら新規ゲストとして発行
}

// TokenHandler はゲスト用JWTを発行します。UserIDを渡すと同じユーザーの
// トークンを再発行します。
func TokenHandler(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Nickname == "" {
		req.Nickname = "Guest"
	}

	token, userID, err := middlewares.GenerateToken(db, logger, req.Nickname, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "userId": userID})
}
