package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"chessarena/models"
)

// Notifier は通知配信の境界です。コアの各コンポーネントはこの
// インターフェースのみに依存し、トランスポートには触れません。
type Notifier interface {
	// ToUser は特定ユーザーに送信します。オフラインならfalseを返します。
	ToUser(userID uint, event Event) bool
	// ToRoom はゲームルームの全参加者に送信します。
	ToRoom(gameID string, event Event)
}

// envelope はワイヤ上のイベント形式です。
type envelope struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

// Hub は接続中クライアントとゲームルームの対応を管理し、
// NotifierをWebSocket上に実装します。
type Hub struct {
	mu     sync.RWMutex
	byUser map[uint]*models.Client
	rooms  map[string]map[uint]*models.Client
	logger *zap.Logger
}

// NewHub は空のハブを生成します。
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		byUser: make(map[uint]*models.Client),
		rooms:  make(map[string]map[uint]*models.Client),
		logger: logger,
	}
}

// Register はクライアントを登録します。同一ユーザーの旧接続があれば
// 置き換え、置き換えられた接続を返します。
func (h *Hub) Register(client *models.Client) *models.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.byUser[client.UserID]
	h.byUser[client.UserID] = client
	if client.GameID != "" {
		h.joinRoomLocked(client.GameID, client)
	}
	return old
}

// Unregister はクライアントを取り除きます。すでに新しい接続に
// 置き換えられている場合は何もせずfalseを返します。呼び出し側は
// この戻り値で切断の後片付けをするかどうかを判断します。
func (h *Hub) Unregister(client *models.Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[client.UserID] != client {
		return false
	}
	delete(h.byUser, client.UserID)
	if client.GameID != "" {
		if room, exists := h.rooms[client.GameID]; exists {
			delete(room, client.UserID)
			if len(room) == 0 {
				delete(h.rooms, client.GameID)
			}
		}
	}
	return true
}

// JoinRoom はユーザーの現接続をゲームルームに参加させます。
func (h *Hub) JoinRoom(gameID string, userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, online := h.byUser[userID]
	if !online {
		return
	}
	client.GameID = gameID
	h.joinRoomLocked(gameID, client)
}

// CloseRoom は終局したゲームのルームを破棄します。
func (h *Hub) CloseRoom(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.rooms[gameID] {
		client.GameID = ""
	}
	delete(h.rooms, gameID)
}

// Online はユーザーが接続中かどうかを返します。
func (h *Hub) Online(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, online := h.byUser[userID]
	return online
}

// RoomOnlineCount はルーム内の接続数を返します。
func (h *Hub) RoomOnlineCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID])
}

// ToUser は特定ユーザーにイベントを送信します。
func (h *Hub) ToUser(userID uint, event Event) bool {
	h.mu.RLock()
	client, online := h.byUser[userID]
	h.mu.RUnlock()
	if !online {
		return false
	}
	h.send(client, event)
	return true
}

// ToRoom はルーム内の全クライアントにイベントを送信します。
func (h *Hub) ToRoom(gameID string, event Event) {
	h.mu.RLock()
	room := h.rooms[gameID]
	clients := make([]*models.Client, 0, len(room))
	for _, client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.send(client, event)
	}
}

// ToOpponents はルーム内の指定ユーザー以外に送信します（接続状態の通知用）。
func (h *Hub) ToOpponents(gameID string, userID uint, event Event) {
	h.mu.RLock()
	room := h.rooms[gameID]
	clients := make([]*models.Client, 0, len(room))
	for id, client := range room {
		if id != userID {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.send(client, event)
	}
}

// Send は単一クライアントへ直接イベントを送ります。ハブ登録前の
// セッション通知などに使います。
func Send(client *models.Client, event Event) error {
	return client.WriteJSON(envelope{Type: event.EventType(), Payload: event})
}

func (h *Hub) send(client *models.Client, event Event) {
	if err := client.WriteJSON(envelope{Type: event.EventType(), Payload: event}); err != nil {
		h.logger.Error("Failed to send event",
			zap.Uint("userID", client.UserID),
			zap.String("event", event.EventType()),
			zap.Error(err),
		)
	}
}

func (h *Hub) joinRoomLocked(gameID string, client *models.Client) {
	room, exists := h.rooms[gameID]
	if !exists {
		room = make(map[uint]*models.Client)
		h.rooms[gameID] = room
	}
	room[client.UserID] = client
}
