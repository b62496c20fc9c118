package models

import (
	"time"
)

// 提案に対する各ユーザーの応答状態
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalDeclined = "declined"
)

// MatchProposal は二者間のマッチ提案です。双方が承諾するまでRedis上に
// TTL付きで保持され、解決または期限切れで破棄されます。
type MatchProposal struct {
	ProposalID string `json:"proposalId"`
	Player1    uint   `json:"player1"`
	Player2    uint   `json:"player2"`
	// 辞退・期限切れ時の再キュー用に元のリクエストを保持する
	Request1  MatchRequest `json:"request1"`
	Request2  MatchRequest `json:"request2"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Involves はユーザーがこの提案の当事者かどうかを返します。
func (p *MatchProposal) Involves(userID uint) bool {
	return p.Player1 == userID || p.Player2 == userID
}

// Opponent は相手側のユーザーIDを返します。
func (p *MatchProposal) Opponent(userID uint) uint {
	if p.Player1 == userID {
		return p.Player2
	}
	return p.Player1
}

// RequestOf はユーザー自身の元リクエストを返します。
func (p *MatchProposal) RequestOf(userID uint) MatchRequest {
	if p.Player1 == userID {
		return p.Request1
	}
	return p.Request2
}
