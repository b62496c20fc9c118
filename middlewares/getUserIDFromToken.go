package middlewares

import (
	"fmt"
	"strings"

	"chessarena/auth"
	"chessarena/models"

	"github.com/gin-gonic/gin"

	jwt "github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
)

// GetUserIDFromToken はリクエストのAuthorizationヘッダーからユーザーIDを
// 取り出します。HTTPハンドラーでの認証に使います。
func GetUserIDFromToken(c *gin.Context, logger *zap.Logger) (uint, error) {
	tokenString := c.GetHeader("Authorization")
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}
	if tokenString == "" {
		return 0, fmt.Errorf("authorization header is missing")
	}

	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return auth.JwtKey, nil
	})
	if err != nil || !token.Valid {
		logger.Error("トークンの検証に失敗しました", zap.Error(err))
		return 0, fmt.Errorf("invalid token")
	}

	return claims.UserID, nil
}
