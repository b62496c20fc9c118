package actions

import (
	"encoding/json"
	"time"

	"chessarena/arena/broadcast"
	"chessarena/models"

	"go.uber.org/zap"
)

// チャットメッセージを処理する関数。保存はせず、同じゲームルームの
// 参加者へそのまま中継します。
func handleChatMessage(client *models.Client, payload json.RawMessage, deps Deps) {
	var cmd models.ChatCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Message == "" {
		sendError(client, models.CmdChatMessage, "Invalid chat payload", deps.Logger)
		return
	}

	// 自分が参加しているゲームにしか送れない
	gameID, inGame := deps.Orchestrator.GameOf(client.UserID)
	if !inGame || gameID != cmd.GameID {
		sendError(client, models.CmdChatMessage, "Not in this game", deps.Logger)
		return
	}

	timestamp := time.Now().Format(time.RFC3339)
	deps.Logger.Info("Received chat message",
		zap.Uint("from", client.UserID),
		zap.String("gameID", gameID),
		zap.String("timestamp", timestamp),
	)

	deps.Hub.ToRoom(gameID, broadcast.ChatMessage{
		GameID:    gameID,
		Message:   cmd.Message,
		From:      client.UserID,
		Timestamp: timestamp,
	})
}
