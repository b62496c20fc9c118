package connection

import (
	"context"
	"encoding/json"
	"time"

	"chessarena/arena/broadcast"
	"chessarena/models"

	"go.uber.org/zap"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// セッションIDの有効期限。切断後もこの間は同じセッションで復帰できる
const sessionTTL = 24 * time.Hour

// ValidateSessionID はRedisのセッションIDを検証し、有効ならユーザーIDを
// 返します。
func ValidateSessionID(ctx context.Context, rdb *redis.Client, sessionID string, logger *zap.Logger) (uint, bool) {
	if sessionID == "" {
		return 0, false
	}

	sessionInfoJSON, err := rdb.Get(ctx, "session:"+sessionID).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Error("Failed to retrieve session info", zap.Error(err))
		}
		return 0, false
	}

	var sessionInfo map[string]uint
	if err := json.Unmarshal([]byte(sessionInfoJSON), &sessionInfo); err != nil {
		logger.Error("Failed to decode session info", zap.Error(err))
		return 0, false
	}

	userID, ok := sessionInfo["userID"]
	if !ok {
		logger.Error("Invalid session info: missing userID")
		return 0, false
	}
	return userID, true
}

// DeleteSessionID は使用済みのセッションIDを破棄します。
func DeleteSessionID(ctx context.Context, rdb *redis.Client, sessionID string) {
	rdb.Del(ctx, "session:"+sessionID)
}

// GenerateAndStoreSessionID は新しいセッションIDを発行してRedisに保存し、
// クライアントに送り返します。
func GenerateAndStoreSessionID(ctx context.Context, client *models.Client, rdb *redis.Client, logger *zap.Logger) error {
	sessionID := uuid.New().String()

	// セッション情報をJSON形式でエンコード
	sessionInfo := map[string]uint{
		"userID": client.UserID,
	}
	sessionInfoJSON, err := json.Marshal(sessionInfo)
	if err != nil {
		logger.Error("Error encoding session info", zap.Error(err))
		return err
	}

	// セッションIDとセッション情報をRedisに保存
	err = rdb.Set(ctx, "session:"+sessionID, sessionInfoJSON, sessionTTL).Err()
	if err != nil {
		logger.Error("Error storing session info in Redis", zap.Error(err))
		return err
	}

	// セッションIDをクライアントに送り返す
	if err := broadcast.Send(client, broadcast.Session{SessionID: sessionID, UserID: client.UserID}); err != nil {
		logger.Error("Error sending session ID to client", zap.Error(err))
		return err
	}
	logger.Info("Session ID issued", zap.Uint("userID", client.UserID))
	return nil
}
