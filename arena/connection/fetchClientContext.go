package connection

import (
	"context"

	"net/http"

	"strings"

	"fmt"

	"chessarena/auth"

	"chessarena/models"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dgrijalva/jwt-go"
)

// ClientContext はクライアントのセッション情報を保持するための構造体です。
type ClientContext struct {
	UserID   uint
	Nickname string
	Claims   *models.MyClaims // JWTクレームを含む
}

// TokenValidation はAuthorizationヘッダー（またはクエリパラメータtoken）の
// JWTを検証してクレームを返します。ブラウザのWebSocketクライアントは
// ヘッダーを付けられないことがあるためクエリも受け付けます。
func TokenValidation(r *http.Request, logger *zap.Logger) (*models.MyClaims, error) {
	tokenString := r.Header.Get("Authorization")
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}

	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return auth.JwtKey, nil
	})

	if err != nil || !token.Valid {
		logger.Error("Failed to validate token", zap.Error(err))
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	return claims, nil
}

// FetchClientContext はトークンを検証し、ユーザーの存在を確認した上で
// 接続コンテキストを返します。
func FetchClientContext(ctx context.Context, r *http.Request, db *gorm.DB, logger *zap.Logger) (*ClientContext, error) {
	claims, err := TokenValidation(r, logger)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}

	var user models.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		logger.Error("Failed to fetch user", zap.Error(err))
		return nil, fmt.Errorf("user fetch failed: %w", err)
	}

	return &ClientContext{
		UserID:   user.ID,
		Nickname: user.Nickname,
		Claims:   claims, // JWTクレームを含む
	}, nil
}
