package connection

import (
	"time"

	"chessarena/models"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
)

const (
	pingPeriod = 10 * time.Second // 10秒ごとにPingを送信
	pongWait   = 60 * time.Second // Pongが来なければ読み取りをタイムアウトさせる
)

// SetupKeepalive はPongハンドラと読み取りデッドラインを設定します。
// 読み取りゴルーチンを起動する前に呼びます。
func SetupKeepalive(c *models.Client) {
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait)) // 読み取りデッドラインを更新
		return nil
	})
}

// MaintainConnection はPingを定期送信して接続を監視します。送信に失敗したら
// 接続を閉じ、読み取りゴルーチン側の切断処理に委ねます。
func MaintainConnection(c *models.Client, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
			logger.Info("Ping failed, closing connection",
				zap.Uint("UserID", c.UserID), zap.Error(err))
			c.Conn.Close()
			return
		}
	}
}
