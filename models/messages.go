package models

import (
	"encoding/json"
	"fmt"
)

// クライアントから受信するコマンドの種別
const (
	CmdFindMatch   = "findMatch"
	CmdCancelMatch = "cancelMatch"
	CmdAccept      = "acceptMatch"
	CmdDecline     = "declineMatch"
	CmdMove        = "move"
	CmdResign      = "resign"
	CmdOfferDraw   = "offerDraw"
	CmdAcceptDraw  = "acceptDraw"
	CmdChatMessage = "chatMessage"
)

// ClientCommand は受信メッセージの外枠です。typeで分岐し、payloadを
// コマンドごとの構造体にデコードします。
type ClientCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// FindMatchCommand はマッチング開始コマンドです。Min/MaxRating省略時は
// 自分のレーティング±100がウィンドウになります。
type FindMatchCommand struct {
	TimeControl string `json:"timeControl"`
	RatingType  string `json:"ratingType"`
	Rated       bool   `json:"rated"`
	MinRating   *int   `json:"minRating,omitempty"`
	MaxRating   *int   `json:"maxRating,omitempty"`
}

// Validate はマッチング設定の形式を検証します。
func (c *FindMatchCommand) Validate() error {
	if _, err := ParseTimeControl(c.TimeControl); err != nil {
		return err
	}
	if !IsValidRatingType(c.RatingType) {
		return fmt.Errorf("invalid rating type: %q", c.RatingType)
	}
	if c.MinRating != nil && c.MaxRating != nil && *c.MinRating > *c.MaxRating {
		return fmt.Errorf("minRating %d exceeds maxRating %d", *c.MinRating, *c.MaxRating)
	}
	return nil
}

// ProposalCommand は提案の承諾・辞退コマンドです。
type ProposalCommand struct {
	ProposalID string `json:"proposalId"`
}

// MoveCommand は着手コマンドです。Promotionは "q"、"r"、"b"、"n" のいずれか。
type MoveCommand struct {
	GameID    string `json:"gameId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Validate は着手の形式（マス目表記）を検証します。合法性の判定はルール
// エンジンが行うのでここでは形だけを見ます。
func (c *MoveCommand) Validate() error {
	if c.GameID == "" {
		return fmt.Errorf("gameId is required")
	}
	if !isSquare(c.From) || !isSquare(c.To) {
		return fmt.Errorf("invalid square notation: %q-%q", c.From, c.To)
	}
	switch c.Promotion {
	case "", "q", "r", "b", "n":
	default:
		return fmt.Errorf("invalid promotion piece: %q", c.Promotion)
	}
	return nil
}

func isSquare(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// GameCommand はゲームIDのみを伴うコマンド（投了・引き分け提案など）です。
type GameCommand struct {
	GameID string `json:"gameId"`
}

// ChatCommand はルーム内チャットです。保存はせず中継のみ行います。
type ChatCommand struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}
