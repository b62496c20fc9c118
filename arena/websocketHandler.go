// Package arena はリアルタイム対局サーバーのWebSocket入口です。
package arena

import (
	"context"

	"net/http"

	"chessarena/arena/actions"
	"chessarena/arena/connection"
	"chessarena/models"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// WebSocket接続へのアップグレードを行う関数
func HandleConnections(ctx context.Context, w http.ResponseWriter, r *http.Request, db *gorm.DB, rdb *redis.Client, deps actions.Deps, upgrader websocket.Upgrader) {
	logger := deps.Logger

	// セッションIDの検証と復元。無ければJWTで認証する
	var userID uint
	sessionID := r.Header.Get("SessionID")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session")
	}
	if sessionID != "" {
		restoredID, valid := connection.ValidateSessionID(ctx, rdb, sessionID, logger)
		if !valid {
			// セッションIDが無効または期限切れの場合
			http.Error(w, "Invalid or expired session ID", http.StatusUnauthorized)
			return
		}
		userID = restoredID
		// 旧セッションは削除し、接続確立後に新しいIDを発行する
		connection.DeleteSessionID(ctx, rdb, sessionID)
	} else {
		clientContext, err := connection.FetchClientContext(ctx, r, db, logger)
		if err != nil {
			logger.Error("Error fetching client context", zap.Error(err))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID = clientContext.UserID
	}

	// WebSocket接続へのアップグレードと確立
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// WebSocket接続のアップグレードに失敗
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := &models.Client{
		Conn:   conn,
		UserID: userID,
	}

	// ハブに登録。同一ユーザーの旧接続があれば閉じて置き換える
	if displaced := deps.Hub.Register(client); displaced != nil {
		logger.Info("Displacing previous connection", zap.Uint("UserID", userID))
		displaced.Conn.Close()
	}
	logger.Info("New client added", zap.Uint("UserID", userID))

	// 新しいセッションIDの発行と保存
	if err := connection.GenerateAndStoreSessionID(ctx, client, rdb, logger); err != nil {
		logger.Error("Failed to generate or store session ID", zap.Error(err))
	}

	// Ping/Pongの設定と読み取りゴルーチンの起動
	connection.SetupKeepalive(client)
	go connection.MaintainConnection(client, logger)
	go actions.HandleClient(context.Background(), client, deps)

	// 進行中のゲームがあれば復帰させ、現在の局面を送り直す
	deps.Orchestrator.HandleConnect(userID)
}
