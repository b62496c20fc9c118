package auth

import (
	"os"

	"chessarena/models"

	jwt "github.com/dgrijalva/jwt-go"
)

// JwtKey はトークンの署名鍵です。環境変数 JWT_SECRET_KEY から読み込みます。
var JwtKey = loadJwtKey()

func loadJwtKey() []byte {
	if key := os.Getenv("JWT_SECRET_KEY"); key != "" {
		return []byte(key)
	}
	// 開発用のフォールバック。本番では必ず環境変数で設定する
	return []byte("dev-insecure-secret")
}

func IsValidToken(tokenString string) (bool, error) {
	claims := &models.MyClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return JwtKey, nil
	})

	if err != nil {
		return false, err
	}

	return token.Valid, nil
}
