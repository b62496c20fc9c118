// Package proposal は二者間マッチ提案のTTL付きストアと承諾・辞退の
// ハンドシェイクを実装します。バックエンドはRedisで、プロセスを跨いで
// 共有される唯一の可変状態です。
package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chessarena/models"
)

// ハンドシェイクに関するエラー
var (
	ErrProposalExpired = errors.New("proposal expired or not found")
	ErrNotParticipant  = errors.New("user is not a party to this proposal")
)

// Accept の結果
const (
	// StatusWaiting: 自分は承諾済みで相手の応答待ち
	StatusWaiting = "waiting"
	// StatusBothAccepted: 双方承諾が確定し、この呼び出しがゲーム作成を担当する
	StatusBothAccepted = "both-accepted"
	// StatusResolved: 双方承諾だが、ゲーム作成は相手側の呼び出しが担当済み
	StatusResolved = "already-resolved"
)

// DefaultTTL は提案の生存時間です。期限内に双方が承諾しなければ
// Redisのキー期限切れで自動的に破棄されます（辞退と同じ扱い）。
const DefaultTTL = 40 * time.Second

// Store はRedisバックエンドの提案ストアです。
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore は提案ストアを生成します。
func NewStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl, logger: logger}
}

func proposalKey(id string) string { return "proposal:" + id }
func acceptKey(id string) string   { return "proposal:" + id + ":accept" }
func winnerKey(id string) string   { return "proposal:" + id + ":winner" }

// Create は二つのリクエストから提案を作って保存し、TTLを設定します。
func (s *Store) Create(ctx context.Context, req1, req2 models.MatchRequest) (*models.MatchProposal, error) {
	p := &models.MatchProposal{
		ProposalID: uuid.New().String(),
		Player1:    req1.UserID,
		Player2:    req2.UserID,
		Request1:   req1,
		Request2:   req2,
		CreatedAt:  time.Now(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode proposal: %w", err)
	}
	if err := s.rdb.Set(ctx, proposalKey(p.ProposalID), data, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to store proposal", zap.Error(err))
		return nil, fmt.Errorf("store proposal: %w", err)
	}
	s.logger.Info("Match proposal created",
		zap.String("proposalID", p.ProposalID),
		zap.Uint("player1", p.Player1),
		zap.Uint("player2", p.Player2),
	)
	return p, nil
}

// Get は提案を読み出します。期限切れ・存在しない場合は ErrProposalExpired。
func (s *Store) Get(ctx context.Context, proposalID string) (*models.MatchProposal, error) {
	data, err := s.rdb.Get(ctx, proposalKey(proposalID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrProposalExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load proposal: %w", err)
	}
	var p models.MatchProposal
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	return &p, nil
}

// Accept はユーザーの承諾を記録します。双方の承諾が揃った場合、勝者キーの
// SETNXでゲーム作成の担当をちょうど一回だけ決めます。各承諾は自分のハッシュ
// フィールドにだけ書き込むため、読んで書き戻す方式のような更新の喪失は
// 起きません。
func (s *Store) Accept(ctx context.Context, userID uint, proposalID string) (string, *models.MatchProposal, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return "", nil, err
	}
	if !p.Involves(userID) {
		return "", nil, ErrNotParticipant
	}

	field := strconv.FormatUint(uint64(userID), 10)
	if err := s.rdb.HSet(ctx, acceptKey(proposalID), field, models.ProposalAccepted).Err(); err != nil {
		return "", nil, fmt.Errorf("record accept: %w", err)
	}
	s.rdb.Expire(ctx, acceptKey(proposalID), s.ttl)

	states, err := s.rdb.HGetAll(ctx, acceptKey(proposalID)).Result()
	if err != nil {
		return "", nil, fmt.Errorf("read accept states: %w", err)
	}
	if len(states) < 2 {
		return StatusWaiting, p, nil
	}

	// 双方承諾。SETNXに勝った呼び出しだけがゲームを作成する
	won, err := s.rdb.SetNX(ctx, winnerKey(proposalID), field, s.ttl).Result()
	if err != nil {
		return "", nil, fmt.Errorf("claim proposal: %w", err)
	}
	if !won {
		return StatusResolved, p, nil
	}
	return StatusBothAccepted, p, nil
}

// Decline は提案を辞退して破棄し、再キュー処理のために提案を返します。
func (s *Store) Decline(ctx context.Context, userID uint, proposalID string) (*models.MatchProposal, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.Involves(userID) {
		return nil, ErrNotParticipant
	}
	s.Delete(ctx, proposalID)
	s.logger.Info("Match proposal declined",
		zap.String("proposalID", proposalID), zap.Uint("by", userID))
	return p, nil
}

// Delete は提案と付随する状態キーを破棄します。
func (s *Store) Delete(ctx context.Context, proposalID string) {
	if err := s.rdb.Del(ctx,
		proposalKey(proposalID), acceptKey(proposalID), winnerKey(proposalID)).Err(); err != nil {
		s.logger.Error("Failed to delete proposal keys",
			zap.String("proposalID", proposalID), zap.Error(err))
	}
}
