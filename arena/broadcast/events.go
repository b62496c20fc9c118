// Package broadcast は型付きイベントDTOとWebSocket配信ハブを実装します。
package broadcast

// サーバーからクライアントへ送るイベント名
const (
	TypeQueued        = "queued"
	TypeMatchFound    = "match-found"
	TypeMatchDeclined = "match-declined"
	TypeMatchError    = "match-error"
	TypeGameStart     = "game-start"
	TypeMove          = "move"
	TypeTurnChanged   = "turnChanged"
	TypeTimerUpdate   = "timerUpdate"
	TypeDrawOffered   = "drawOffered"
	TypeTimeOut       = "timeOut"
	TypeGameEnded     = "gameEnded"
	TypeOnlineStatus  = "onlineStatus"
	TypeChatMessage   = "chatMessage"
	TypeSession       = "session"
	TypeError         = "error"
)

// Event は全ての配信イベントが実装するインターフェースです。
// ワイヤ上では {"type": ..., "payload": ...} の封筒に包まれます。
type Event interface {
	EventType() string
}

// Queued はマッチ相手が見つからず待機に入ったことを通知します。
type Queued struct {
	TimeControl string `json:"timeControl"`
	RatingType  string `json:"ratingType"`
	MinRating   int    `json:"minRating"`
	MaxRating   int    `json:"maxRating"`
}

func (Queued) EventType() string { return TypeQueued }

// MatchFound はマッチ提案の成立を両者に通知します。
type MatchFound struct {
	ProposalID  string `json:"proposalId"`
	OpponentID  uint   `json:"opponentId"`
	TimeControl string `json:"timeControl"`
	RatingType  string `json:"ratingType"`
	Rated       bool   `json:"rated"`
}

func (MatchFound) EventType() string { return TypeMatchFound }

// MatchDeclined は相手が提案を辞退したことを通知します。
type MatchDeclined struct {
	ProposalID string `json:"proposalId"`
	By         uint   `json:"by"`
	Requeued   bool   `json:"requeued"` // 自分のリクエストが再キューされたか
}

func (MatchDeclined) EventType() string { return TypeMatchDeclined }

// MatchError は双方承諾後のゲーム作成失敗などを通知します。提案は破棄
// されているため、受け取った側は再度キューに入る必要があります。
type MatchError struct {
	ProposalID string `json:"proposalId,omitempty"`
	Message    string `json:"message"`
}

func (MatchError) EventType() string { return TypeMatchError }

// GameStart はゲーム開始を通知します。
type GameStart struct {
	GameID      string `json:"gameId"`
	WhiteID     uint   `json:"whiteId"`
	BlackID     uint   `json:"blackId"`
	TimeControl string `json:"timeControl"`
	RatingType  string `json:"ratingType"`
	Rated       bool   `json:"rated"`
	FEN         string `json:"fen"`
	Turn        string `json:"turn"`
	WhiteTimeMs int64  `json:"whiteTimeLeft"`
	BlackTimeMs int64  `json:"blackTimeLeft"`
}

func (GameStart) EventType() string { return TypeGameStart }

// Move は成立した一手をルームに配信します。
type Move struct {
	GameID    string `json:"gameId"`
	MoveUCI   string `json:"move"`
	FEN       string `json:"fen"`
	Turn      string `json:"turn"`
	Check     bool   `json:"check"`
	Checkmate bool   `json:"checkmate"`
	Stalemate bool   `json:"stalemate"`
	Draw      bool   `json:"draw"`
}

func (Move) EventType() string { return TypeMove }

// TurnChanged は手番の交代と残り時間を配信します。
type TurnChanged struct {
	GameID      string `json:"gameId"`
	Turn        string `json:"turn"`
	WhiteTimeMs int64  `json:"whiteTimeLeft"`
	BlackTimeMs int64  `json:"blackTimeLeft"`
}

func (TurnChanged) EventType() string { return TypeTurnChanged }

// TimerUpdate は毎秒の残り時間を配信します。
type TimerUpdate struct {
	GameID      string `json:"gameId"`
	WhiteTimeMs int64  `json:"whiteTimeLeft"`
	BlackTimeMs int64  `json:"blackTimeLeft"`
	CurrentTurn string `json:"currentTurn"`
}

func (TimerUpdate) EventType() string { return TypeTimerUpdate }

// DrawOffered は引き分け提案をルームに配信します。
type DrawOffered struct {
	GameID string `json:"gameId"`
	By     uint   `json:"by"`
}

func (DrawOffered) EventType() string { return TypeDrawOffered }

// TimeOut は時間切れによる決着を配信します。
type TimeOut struct {
	GameID string `json:"gameId"`
	Winner uint   `json:"winner"`
	Loser  uint   `json:"loser"`
}

func (TimeOut) EventType() string { return TypeTimeOut }

// GameEnded は終局の結果を配信します。winner は引き分けの場合空です。
type GameEnded struct {
	GameID string `json:"gameId"`
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason"`
}

func (GameEnded) EventType() string { return TypeGameEnded }

// OnlineStatus は対戦相手の接続状態を通知します。
type OnlineStatus struct {
	UserID   uint `json:"userID"`
	IsOnline bool `json:"isOnline"`
}

func (OnlineStatus) EventType() string { return TypeOnlineStatus }

// ChatMessage はルーム内チャットの中継です。From 0 はシステムメッセージ。
type ChatMessage struct {
	GameID    string `json:"gameId"`
	Message   string `json:"message"`
	From      uint   `json:"from"`
	Timestamp string `json:"timestamp"`
}

func (ChatMessage) EventType() string { return TypeChatMessage }

// Session は接続直後に再接続用のセッションIDを返します。
type Session struct {
	SessionID string `json:"sessionID"`
	UserID    uint   `json:"userID"`
}

func (Session) EventType() string { return TypeSession }

// ErrorEvent はコマンドに対する失敗応答です。
type ErrorEvent struct {
	Command string `json:"command,omitempty"`
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return TypeError }
