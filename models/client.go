package models

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Websocketクライアントを定義
type Client struct {
	Conn   *websocket.Conn
	UserID uint // JWTから抽出したユーザーID
	GameID string

	writeMu sync.Mutex
}

// WriteJSON は複数ゴルーチンからの書き込みを直列化して送信します。
// gorilla/websocketは並行書き込みを許可しないため必須です。
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// WriteMessage はロック付きでメッセージを送信します。
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}
