// Package matchmaking はレーティングウィンドウ付きマッチングプールと
// その調整役を実装します。
package matchmaking

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"chessarena/models"
)

// マッチングに関するエラー
var (
	ErrAlreadyQueued = errors.New("user already has an active match request")
	ErrAlreadyInGame = errors.New("user is already in an active game")
)

const (
	// RequestTTL を過ぎた待機リクエストは掃除で破棄される
	RequestTTL = 60 * time.Second
	// ExpandInterval ごとに待機中リクエストのウィンドウが広がる
	ExpandInterval = 10 * time.Second
	expandStep     = 100
	expandCap      = 400 // 元の中心からの最大拡大幅
)

// Pool はプールキーごとのFIFOキューを持つマッチングプールです。
// ユーザーは全キューを通して同時に一件しかリクエストを持てません。
type Pool struct {
	mu     sync.Mutex
	queues map[models.PoolKey][]*models.MatchRequest
	byUser map[uint]models.PoolKey
	logger *zap.Logger
}

// NewPool は空のプールを生成します。
func NewPool(logger *zap.Logger) *Pool {
	return &Pool{
		queues: make(map[models.PoolKey][]*models.MatchRequest),
		byUser: make(map[uint]models.PoolKey),
		logger: logger,
	}
}

// Enqueue はリクエストをキューの末尾に追加します。
func (p *Pool) Enqueue(req *models.MatchRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byUser[req.UserID]; exists {
		return ErrAlreadyQueued
	}
	key := req.Key()
	p.queues[key] = append(p.queues[key], req)
	p.byUser[req.UserID] = key
	p.logger.Info("Match request enqueued",
		zap.Uint("userID", req.UserID),
		zap.String("timeControl", req.TimeControl),
		zap.String("ratingType", req.RatingType),
		zap.Int("minRating", req.MinRating),
		zap.Int("maxRating", req.MaxRating),
	)
	return nil
}

// Remove はユーザーのリクエストを全プールから取り除きます。
func (p *Pool) Remove(userID uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(userID)
}

// Waiting はユーザーが現在待機中かどうかを返します。
func (p *Pool) Waiting(userID uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, exists := p.byUser[userID]
	return exists
}

// Len は待機中リクエストの総数を返します。
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byUser)
}

// FindCompatible は挿入順で最初に条件の合う相手を返します。プールは
// 変更しません。最適な相手ではなく、最も長く待っている相手が優先です。
func (p *Pool) FindCompatible(req *models.MatchRequest) *models.MatchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findLocked(req)
}

// MatchAndRemove は FindCompatible と相手のリクエスト削除を単一の
// ロック区間で行います。第三のリクエストが同じ相手を二重に取ることは
// ありません。req 自体はまだプールに入っていない前提です。
func (p *Pool) MatchAndRemove(req *models.MatchRequest) *models.MatchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	opponent := p.findLocked(req)
	if opponent == nil {
		return nil
	}
	p.removeLocked(opponent.UserID)
	return opponent
}

// SweepExpired はTTLを超えた待機リクエストを破棄し、そのユーザーIDを
// 返します。
func (p *Pool) SweepExpired(now time.Time) []uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	var swept []uint
	for key, queue := range p.queues {
		kept := queue[:0]
		for _, req := range queue {
			if now.Sub(req.EnqueuedAt) > RequestTTL {
				delete(p.byUser, req.UserID)
				swept = append(swept, req.UserID)
				continue
			}
			kept = append(kept, req)
		}
		if len(kept) == 0 {
			delete(p.queues, key)
		} else {
			p.queues[key] = kept
		}
	}
	if len(swept) > 0 {
		p.logger.Info("Swept expired match requests", zap.Int("count", len(swept)))
	}
	return swept
}

// ExpandAndPair は待機中リクエストのウィンドウを広げた上で、各キュー内を
// FIFO順に突き合わせます。成立したペアは両方ともプールから取り除かれます。
func (p *Pool) ExpandAndPair(now time.Time) [][2]*models.MatchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, queue := range p.queues {
		for _, req := range queue {
			// 元の中心から±expandCapを上限に段階的に広げる
			if req.MinRating > req.Center-expandCap {
				req.MinRating = max(req.Center-expandCap, req.MinRating-expandStep)
			}
			if req.MaxRating < req.Center+expandCap {
				req.MaxRating = min(req.Center+expandCap, req.MaxRating+expandStep)
			}
		}
	}

	var pairs [][2]*models.MatchRequest
	for _, queue := range p.queues {
		claimed := make(map[uint]bool)
		for i, a := range queue {
			if claimed[a.UserID] {
				continue
			}
			for _, b := range queue[i+1:] {
				if claimed[b.UserID] || !a.CompatibleWith(b) {
					continue
				}
				claimed[a.UserID] = true
				claimed[b.UserID] = true
				pairs = append(pairs, [2]*models.MatchRequest{a, b})
				break
			}
		}
	}
	for _, pair := range pairs {
		p.removeLocked(pair[0].UserID)
		p.removeLocked(pair[1].UserID)
	}
	return pairs
}

func (p *Pool) findLocked(req *models.MatchRequest) *models.MatchRequest {
	queue := p.queues[req.Key()]
	for _, candidate := range queue {
		if candidate.CompatibleWith(req) {
			return candidate
		}
	}
	return nil
}

func (p *Pool) removeLocked(userID uint) bool {
	key, exists := p.byUser[userID]
	if !exists {
		return false
	}
	delete(p.byUser, userID)
	queue := p.queues[key]
	for i, req := range queue {
		if req.UserID == userID {
			p.queues[key] = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(p.queues[key]) == 0 {
		delete(p.queues, key)
	}
	return true
}
