// Package actions はWebSocketで受信したクライアントコマンドを各
// コンポーネントへ振り分けます。
package actions

import (
	"context"
	"encoding/json"

	"chessarena/arena/broadcast"
	"chessarena/arena/game"
	"chessarena/arena/matchmaking"
	"chessarena/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Deps は読み取りゴルーチンが使うコンポーネント一式です。
type Deps struct {
	Hub          *broadcast.Hub
	Coordinator  *matchmaking.Coordinator
	Orchestrator *game.Orchestrator
	Logger       *zap.Logger
}

// HandleClient はクライアントごとのメッセージ読み取りゴルーチンです。
// 接続が切れたら後片付け（ハブからの削除と切断通知）を行います。
func HandleClient(ctx context.Context, client *models.Client, deps Deps) {
	defer func() {
		client.Conn.Close()
		// 再接続で新しい接続に置き換えられていた場合、旧ゴルーチンが
		// 新しいキュー待ちや在席状態を壊してはいけない
		if !deps.Hub.Unregister(client) {
			return
		}
		// キュー待ちのまま切断したリクエストは破棄する
		deps.Coordinator.Cancel(client.UserID)
		deps.Orchestrator.HandleDisconnect(client.UserID)
		deps.Logger.Info("Client removed", zap.Uint("UserID", client.UserID))
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				deps.Logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		// 受信したメッセージをJSON形式でデコード
		var cmd models.ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			deps.Logger.Error("Error decoding message", zap.Error(err))
			sendError(client, "", "Invalid message format", deps.Logger)
			continue
		}

		// メッセージタイプに基づいて適切なアクションを実行
		switch cmd.Type {
		case models.CmdFindMatch:
			handleFindMatch(ctx, client, cmd.Payload, deps)
		case models.CmdCancelMatch:
			handleCancelMatch(client, deps)
		case models.CmdAccept:
			handleAcceptMatch(ctx, client, cmd.Payload, deps)
		case models.CmdDecline:
			handleDeclineMatch(ctx, client, cmd.Payload, deps)
		case models.CmdMove:
			handleMove(ctx, client, cmd.Payload, deps)
		case models.CmdResign:
			handleResign(ctx, client, cmd.Payload, deps)
		case models.CmdOfferDraw:
			handleOfferDraw(ctx, client, cmd.Payload, deps)
		case models.CmdAcceptDraw:
			handleAcceptDraw(ctx, client, cmd.Payload, deps)
		case models.CmdChatMessage:
			handleChatMessage(client, cmd.Payload, deps)
		default:
			deps.Logger.Info("Received unknown message type", zap.String("type", cmd.Type))
			sendError(client, cmd.Type, "Unknown command", deps.Logger)
		}
	}
}

// sendError はコマンドへの失敗応答をクライアントに返すヘルパーです。
func sendError(client *models.Client, command, message string, logger *zap.Logger) {
	if err := broadcast.Send(client, broadcast.ErrorEvent{Command: command, Message: message}); err != nil {
		logger.Error("Failed to send error message", zap.Uint("to", client.UserID), zap.Error(err))
	}
}
